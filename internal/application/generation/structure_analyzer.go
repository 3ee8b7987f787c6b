package generation

import (
	"context"

	wfmodel "slide-content-api/internal/workflow/model"
	apperrors "slide-content-api/pkg/errors"
	"slide-content-api/pkg/logger"
)

// StructureInvoker Phase-1 结构分析链的抽象，便于测试替换
type StructureInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error)
}

// ContentInvoker Phase-3 预算约束内容生成链的抽象
type ContentInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.ContentGenerateOutput, error)
}

// SingleStepInvoker 单步回退生成链的抽象
type SingleStepInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.SingleStepInput) (*wfmodel.SingleStepOutput, error)
}

// ComponentContentInvoker 组件装配路径内容生成链的抽象
type ComponentContentInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error)
}

// StructureAnalyzer Phase-1 结构分析。首次输出不可解析或不合法时，
// 追加"仅返回 JSON"的强约束重试一次；再失败即为生成错误。
type StructureAnalyzer struct {
	chain StructureInvoker
}

func NewStructureAnalyzer(chain StructureInvoker) *StructureAnalyzer {
	return &StructureAnalyzer{chain: chain}
}

// Analyze 返回经过校验的结构规划
func (a *StructureAnalyzer) Analyze(ctx context.Context, in *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
	out, err := a.chain.Invoke(ctx, in)
	if err == nil {
		if verr := out.Plan.Validate(); verr == nil {
			return out, nil
		} else {
			err = verr
		}
	}
	logger.Warn(ctx, "structure analysis failed, retrying with strict json constraint", "error", err.Error())

	retry := *in
	retry.StrictJSON = true
	out, retryErr := a.chain.Invoke(ctx, &retry)
	if retryErr != nil {
		return nil, apperrors.Wrap(retryErr, apperrors.CodeUnparseablePlan,
			"structure analysis failed after strict retry")
	}
	if verr := out.Plan.Validate(); verr != nil {
		return nil, apperrors.Wrap(verr, apperrors.CodeUnparseablePlan,
			"structure plan invalid after strict retry")
	}
	return out, nil
}
