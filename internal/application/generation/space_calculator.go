// Package generation 实现幻灯片内容生成流水线的应用服务
package generation

import (
	"math"

	"slide-content-api/internal/domain/entity"
	apperrors "slide-content-api/pkg/errors"
)

const (
	// usableRatio 每个轴向的可用比例，余量留给页边距
	usableRatio = 0.8

	// minLinesPerSection / minCharsPerSection 预算下限：空间再小也给出可用预算
	minLinesPerSection = 1
	minCharsPerSection = 10
)

// SpaceCalculator Phase-2 空间预算计算。纯函数式：同样输入产出同样预算，
// 不做任何 LLM 调用。
type SpaceCalculator struct{}

func NewSpaceCalculator() *SpaceCalculator {
	return &SpaceCalculator{}
}

// Calculate 依据画布、布局与分区权重推导每分区的字符/行预算。
// 单列布局按权重切分可用高度，多列布局按权重切分可用宽度。
func (c *SpaceCalculator) Calculate(canvas entity.Canvas, plan *entity.StructurePlan, typography entity.TypographySpec) (*entity.SpaceBudget, error) {
	if err := canvas.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidCanvas, "invalid canvas")
	}
	if plan == nil {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "structure plan is nil")
	}
	if err := plan.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeValidationFailed, "invalid structure plan")
	}

	// 归一化在副本上进行，调用方的规划不被修改
	normalized := *plan
	normalized.Sections = append([]entity.SectionPlan(nil), plan.Sections...)
	normalized.NormalizeWeights()

	usableWidth := float64(canvas.Width) * usableRatio
	usableHeight := float64(canvas.Height) * usableRatio

	budget := &entity.SpaceBudget{
		Canvas:       canvas,
		UsableWidth:  usableWidth,
		UsableHeight: usableHeight,
		Sections:     make([]entity.SectionBudget, 0, len(normalized.Sections)),
	}

	vertical := normalized.Layout.ColumnCount() == 1

	for _, section := range normalized.Sections {
		typo, ok := typography.Lookup(section.Role)
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeTypographyMissing,
				"no typography for role %q (section %s)", section.Role, section.ID)
		}

		var widthPx, heightPx float64
		if vertical {
			widthPx = usableWidth
			heightPx = usableHeight * section.Weight
		} else {
			widthPx = usableWidth * section.Weight
			heightPx = usableHeight
		}

		sb := deriveSectionBudget(section, typo, widthPx, heightPx)
		budget.Sections = append(budget.Sections, sb)
		budget.TotalChars += sb.MaxChars
		budget.TotalLines += sb.MaxLines
	}

	return budget, nil
}

// deriveSectionBudget 行预算 = floor(高度 / 行高像素)；
// 字符预算 = floor(宽度 / 平均字符宽度) × 行数，带最小下限。
func deriveSectionBudget(section entity.SectionPlan, typo entity.RoleTypography, widthPx, heightPx float64) entity.SectionBudget {
	lineHeightPx := typo.FontSize * typo.LineHeight
	charWidthPx := typo.FontSize * typo.EffectiveCharWidthRatio()

	lines := int(math.Floor(heightPx / lineHeightPx))
	if lines < minLinesPerSection {
		lines = minLinesPerSection
	}

	charsPerLine := int(math.Floor(widthPx / charWidthPx))
	chars := charsPerLine * lines
	if chars < minCharsPerSection {
		chars = minCharsPerSection
	}

	return entity.SectionBudget{
		SectionID:  section.ID,
		Role:       section.Role,
		MaxChars:   chars,
		MaxLines:   lines,
		FontSize:   typo.FontSize,
		LineHeight: typo.LineHeight,
		WidthPx:    widthPx,
		HeightPx:   heightPx,
	}
}
