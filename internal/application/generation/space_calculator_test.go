package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slide-content-api/internal/domain/entity"
	apperrors "slide-content-api/pkg/errors"
)

func threeColumnBodyPlan() *entity.StructurePlan {
	return &entity.StructurePlan{
		Layout: entity.LayoutThreeColumn,
		Sections: []entity.SectionPlan{
			{ID: "col-1", Role: "body", Weight: 1},
			{ID: "col-2", Role: "body", Weight: 1},
			{ID: "col-3", Role: "body", Weight: 1},
		},
	}
}

func TestSpaceCalculatorThreeColumnEqualWeights(t *testing.T) {
	calc := NewSpaceCalculator()

	budget, err := calc.Calculate(
		entity.Canvas{Width: 1800, Height: 840},
		threeColumnBodyPlan(),
		entity.TypographySpec{},
	)
	require.NoError(t, err)

	assert.InDelta(t, 1440.0, budget.UsableWidth, 1e-9)
	assert.InDelta(t, 672.0, budget.UsableHeight, 1e-9)
	require.Len(t, budget.Sections, 3)

	for _, s := range budget.Sections {
		// 1440 / 3 = 480px 宽、整个可用高度
		assert.InDelta(t, 480.0, s.WidthPx, 1e-9)
		assert.InDelta(t, 672.0, s.HeightPx, 1e-9)
		// body 兜底排版 24px × 1.4 行高 = 33.6px/行；floor(672/33.6) = 20 行
		assert.Equal(t, 20, s.MaxLines)
		// floor(480 / (24×0.55)) = 36 字符/行
		assert.Equal(t, 36*20, s.MaxChars)
	}
	assert.Equal(t, 3*720, budget.TotalChars)
	assert.Equal(t, 60, budget.TotalLines)
}

func TestSpaceCalculatorSingleColumnSplitsHeightByWeight(t *testing.T) {
	calc := NewSpaceCalculator()

	plan := &entity.StructurePlan{
		Layout: entity.LayoutSingleColumn,
		Sections: []entity.SectionPlan{
			{ID: "headline", Role: "title", Weight: 1},
			{ID: "detail", Role: "body", Weight: 3},
		},
	}

	budget, err := calc.Calculate(entity.Canvas{Width: 1280, Height: 720}, plan, entity.TypographySpec{})
	require.NoError(t, err)
	require.Len(t, budget.Sections, 2)

	headline, ok := budget.SectionByID("headline")
	require.True(t, ok)
	detail, ok := budget.SectionByID("detail")
	require.True(t, ok)

	// 权重 1:3，高度按比例切分，宽度均为整个可用宽度
	assert.InDelta(t, budget.UsableHeight*0.25, headline.HeightPx, 1e-9)
	assert.InDelta(t, budget.UsableHeight*0.75, detail.HeightPx, 1e-9)
	assert.InDelta(t, budget.UsableWidth, headline.WidthPx, 1e-9)
	assert.InDelta(t, budget.UsableWidth, detail.WidthPx, 1e-9)
}

func TestSpaceCalculatorWeightSlicesConserveUsableSpace(t *testing.T) {
	calc := NewSpaceCalculator()

	plan := &entity.StructurePlan{
		Layout: entity.LayoutTwoColumn,
		Sections: []entity.SectionPlan{
			{ID: "left", Role: "body", Weight: 0.37},
			{ID: "right", Role: "body", Weight: 0.63},
		},
	}

	budget, err := calc.Calculate(entity.Canvas{Width: 1600, Height: 900}, plan, entity.TypographySpec{})
	require.NoError(t, err)

	var widthSum float64
	for _, s := range budget.Sections {
		widthSum += s.WidthPx
	}
	assert.InDelta(t, budget.UsableWidth, widthSum, 1e-6)
}

func TestSpaceCalculatorZeroWeightsSplitEqually(t *testing.T) {
	calc := NewSpaceCalculator()

	plan := &entity.StructurePlan{
		Layout: entity.LayoutTwoColumn,
		Sections: []entity.SectionPlan{
			{ID: "a", Role: "body"},
			{ID: "b", Role: "body"},
		},
	}

	budget, err := calc.Calculate(entity.Canvas{Width: 1600, Height: 900}, plan, entity.TypographySpec{})
	require.NoError(t, err)

	a, _ := budget.SectionByID("a")
	b, _ := budget.SectionByID("b")
	assert.InDelta(t, a.WidthPx, b.WidthPx, 1e-9)
	// 调用方的规划不被归一化副作用修改
	assert.Zero(t, plan.Sections[0].Weight)
}

func TestSpaceCalculatorMonotoneInCanvasSize(t *testing.T) {
	calc := NewSpaceCalculator()

	small, err := calc.Calculate(entity.Canvas{Width: 800, Height: 600}, threeColumnBodyPlan(), entity.TypographySpec{})
	require.NoError(t, err)
	large, err := calc.Calculate(entity.Canvas{Width: 1920, Height: 1080}, threeColumnBodyPlan(), entity.TypographySpec{})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, large.TotalChars, small.TotalChars)
	assert.GreaterOrEqual(t, large.TotalLines, small.TotalLines)
}

func TestSpaceCalculatorDeterministic(t *testing.T) {
	calc := NewSpaceCalculator()
	canvas := entity.Canvas{Width: 1366, Height: 768}

	first, err := calc.Calculate(canvas, threeColumnBodyPlan(), entity.TypographySpec{})
	require.NoError(t, err)
	second, err := calc.Calculate(canvas, threeColumnBodyPlan(), entity.TypographySpec{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSpaceCalculatorTinyCanvasAppliesFloors(t *testing.T) {
	calc := NewSpaceCalculator()

	plan := &entity.StructurePlan{
		Layout:   entity.LayoutSingleColumn,
		Sections: []entity.SectionPlan{{ID: "only", Role: "title", Weight: 1}},
	}

	budget, err := calc.Calculate(entity.Canvas{Width: 20, Height: 20}, plan, entity.TypographySpec{})
	require.NoError(t, err)

	s, _ := budget.SectionByID("only")
	assert.Equal(t, 1, s.MaxLines)
	assert.Equal(t, 10, s.MaxChars)
}

func TestSpaceCalculatorCallerTypographyOverridesDefaults(t *testing.T) {
	calc := NewSpaceCalculator()

	plan := &entity.StructurePlan{
		Layout:   entity.LayoutSingleColumn,
		Sections: []entity.SectionPlan{{ID: "only", Role: "body", Weight: 1}},
	}
	spec := entity.TypographySpec{Roles: map[string]entity.RoleTypography{
		"body": {FontSize: 48, LineHeight: 1.5},
	}}

	withOverride, err := calc.Calculate(entity.Canvas{Width: 1280, Height: 720}, plan, spec)
	require.NoError(t, err)
	withDefault, err := calc.Calculate(entity.Canvas{Width: 1280, Height: 720}, plan, entity.TypographySpec{})
	require.NoError(t, err)

	// 更大的字号意味着更少的字符预算
	assert.Less(t, withOverride.TotalChars, withDefault.TotalChars)
	assert.InDelta(t, 48.0, withOverride.Sections[0].FontSize, 1e-9)
}

func TestSpaceCalculatorErrors(t *testing.T) {
	calc := NewSpaceCalculator()
	okCanvas := entity.Canvas{Width: 1280, Height: 720}

	t.Run("invalid canvas", func(t *testing.T) {
		_, err := calc.Calculate(entity.Canvas{Width: 0, Height: 720}, threeColumnBodyPlan(), entity.TypographySpec{})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCanvas))
	})

	t.Run("nil plan", func(t *testing.T) {
		_, err := calc.Calculate(okCanvas, nil, entity.TypographySpec{})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("unknown layout", func(t *testing.T) {
		plan := &entity.StructurePlan{
			Layout:   entity.LayoutStructure("grid"),
			Sections: []entity.SectionPlan{{ID: "a", Role: "body", Weight: 1}},
		}
		_, err := calc.Calculate(okCanvas, plan, entity.TypographySpec{})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
	})

	t.Run("typography missing for role", func(t *testing.T) {
		plan := &entity.StructurePlan{
			Layout:   entity.LayoutSingleColumn,
			Sections: []entity.SectionPlan{{ID: "a", Role: "sidebar_note", Weight: 1}},
		}
		_, err := calc.Calculate(okCanvas, plan, entity.TypographySpec{})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeTypographyMissing))
	})
}
