package generation

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"slide-content-api/internal/application/registry"
	"slide-content-api/internal/config"
	"slide-content-api/internal/domain/entity"
	wfmodel "slide-content-api/internal/workflow/model"
	apperrors "slide-content-api/pkg/errors"
	"slide-content-api/pkg/logger"
	"slide-content-api/pkg/metrics"
)

// AssembleRequest 组件装配请求：用 count 个某组件实例填满给定区域
type AssembleRequest struct {
	ComponentID string
	Variant     string
	Count       int

	// RegionGridWidth/Height 分配给整个区域的网格单元数，用于约束缩放
	RegionGridWidth  int
	RegionGridHeight int
	// RegionWidthPx/HeightPx 区域像素尺寸，用于实例几何
	RegionWidthPx  int
	RegionHeightPx int

	Narrative string
	Topics    []string
	Context   entity.ContentContext

	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// ComponentAssembler 组件装配路径：查定义 → 择排布 → 缩放插槽限制 →
// 单次 LLM 调用填充全部实例 → 渲染。
type ComponentAssembler struct {
	cfg config.GenerationConfig

	registry  *registry.Registry
	selector  *ArrangementSelector
	builder   *LayoutBuilder
	scaler    *ConstraintScaler
	content   ComponentContentInvoker
	formatter *HTMLFormatter
}

func NewComponentAssembler(
	cfg config.GenerationConfig,
	reg *registry.Registry,
	selector *ArrangementSelector,
	builder *LayoutBuilder,
	scaler *ConstraintScaler,
	content ComponentContentInvoker,
	formatter *HTMLFormatter,
) *ComponentAssembler {
	return &ComponentAssembler{
		cfg:       cfg,
		registry:  reg,
		selector:  selector,
		builder:   builder,
		scaler:    scaler,
		content:   content,
		formatter: formatter,
	}
}

// Assemble 执行装配。确定性失败（组件不存在、数量不支持）同步返回；
// LLM 失败不做回退，装配路径没有低约束替代输出。
func (a *ComponentAssembler) Assemble(ctx context.Context, req *AssembleRequest) (*entity.AssemblyResult, error) {
	start := time.Now()

	if req == nil {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "request is nil")
	}
	req.Context.Normalize()

	def, err := a.registry.Get(req.ComponentID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.ComponentIDKey, def.ID)

	arrangement, err := a.selector.Select(def, req.Count, req.RegionWidthPx, req.RegionHeightPx, a.cfg.GutterPx)
	if err != nil {
		return nil, err
	}

	geometries, err := a.builder.Build(arrangement, req.Count, req.RegionWidthPx, req.RegionHeightPx, a.cfg.GutterPx)
	if err != nil {
		return nil, err
	}

	// 缩放以单实例获得的网格面积为准
	instGridW := maxInt(req.RegionGridWidth/arrangement.Columns, 1)
	instGridH := maxInt(req.RegionGridHeight/arrangement.Rows, 1)
	limits, err := a.scaler.Scale(def, instGridW, instGridH)
	if err != nil {
		return nil, err
	}

	limitVars := make([]wfmodel.SlotLimitVar, 0, len(limits))
	for _, l := range limits {
		limitVars = append(limitVars, wfmodel.SlotLimitVar{
			Slot:     l.Slot,
			Role:     string(l.Role),
			MinChars: l.MinChars,
			MaxChars: l.MaxChars,
		})
	}

	phaseCtx := ctx
	if a.cfg.PhaseTimeout > 0 {
		var cancel context.CancelFunc
		phaseCtx, cancel = context.WithTimeout(ctx, a.cfg.PhaseTimeout)
		defer cancel()
	}

	out, err := a.content.Invoke(phaseCtx, &wfmodel.ComponentContentInput{
		ComponentID:   def.ID,
		Description:   def.Description,
		InstanceCount: req.Count,
		SlotLimits:    limitVars,
		Narrative:     req.Narrative,
		Topics:        req.Topics,
		Audience:      string(req.Context.Audience),
		Purpose:       string(req.Context.Purpose),
		Provider:      req.Provider,
		Model:         req.Model,
		Temperature:   req.Temperature,
		MaxTokens:     req.MaxTokens,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "component content generation failed")
	}

	instances, overflows, err := a.buildInstances(def, req, limits, out.Instances, geometries)
	if err != nil {
		return nil, err
	}

	html, err := a.formatter.RenderAssembly(def, arrangement, instances)
	if err != nil {
		return nil, err
	}

	return &entity.AssemblyResult{
		ComponentID: def.ID,
		Variant:     req.Variant,
		Arrangement: arrangement,
		Instances:   instances,
		HTML:        html,
		Meta: entity.GenerationMeta{
			Mode:        ModeMultiStep,
			Overflows:   overflows,
			Usage:       []entity.LLMUsage{usageFromMeta(out.Meta)},
			GeneratedAt: time.Now().UTC(),
			DurationMs:  time.Since(start).Milliseconds(),
		},
	}, nil
}

// buildInstances 将 LLM 输出按索引对齐到几何位置并渲染；
// 实例数不足视为生成失败，插槽超限记为警告。
func (a *ComponentAssembler) buildInstances(
	def *entity.ComponentDefinition,
	req *AssembleRequest,
	limits []entity.ScaledSlotLimits,
	generated []wfmodel.InstanceSlots,
	geometries []entity.InstanceGeometry,
) ([]entity.ComponentInstance, []entity.OverflowWarning, error) {
	byIndex := make(map[int]map[string]string, len(generated))
	for _, g := range generated {
		byIndex[g.Index] = g.Slots
	}

	maxBySlot := make(map[string]int, len(limits))
	for _, l := range limits {
		maxBySlot[l.Slot] = l.MaxChars
	}

	var overflows []entity.OverflowWarning
	instances := make([]entity.ComponentInstance, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		slots, ok := byIndex[i]
		if !ok {
			return nil, nil, apperrors.Newf(apperrors.CodeGenerationFailed,
				"no content generated for instance %d", i)
		}

		html, err := a.formatter.RenderComponentInstance(def, req.Variant, slots)
		if err != nil {
			return nil, nil, err
		}

		for slot, text := range slots {
			budget, ok := maxBySlot[slot]
			if !ok || budget <= 0 {
				continue
			}
			chars := utf8.RuneCountInString(text)
			if chars <= budget {
				continue
			}
			variance := float64(chars-budget) / float64(budget)
			within := variance <= a.cfg.OverflowTolerance
			overflows = append(overflows, entity.OverflowWarning{
				SectionID:       fmt.Sprintf("instance-%d/%s", i, slot),
				BudgetChars:     budget,
				GeneratedChars:  chars,
				VariancePercent: variance * 100,
				WithinTolerance: within,
			})
			metrics.OverflowTotal.WithLabelValues(fmt.Sprintf("%t", within)).Inc()
		}

		instances = append(instances, entity.ComponentInstance{
			Index:    i,
			Slots:    slots,
			HTML:     html,
			Geometry: geometries[i],
		})
	}

	return instances, overflows, nil
}
