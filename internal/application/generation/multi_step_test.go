package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slide-content-api/internal/config"
	"slide-content-api/internal/domain/entity"
	wfmodel "slide-content-api/internal/workflow/model"
	apperrors "slide-content-api/pkg/errors"
)

type contentFunc func(ctx context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.ContentGenerateOutput, error)

func (f contentFunc) Invoke(ctx context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.ContentGenerateOutput, error) {
	return f(ctx, in)
}

type singleStepFunc func(ctx context.Context, in *wfmodel.SingleStepInput) (*wfmodel.SingleStepOutput, error)

func (f singleStepFunc) Invoke(ctx context.Context, in *wfmodel.SingleStepInput) (*wfmodel.SingleStepOutput, error) {
	return f(ctx, in)
}

func generationConfig() config.GenerationConfig {
	return config.GenerationConfig{OverflowTolerance: 0.10, GutterPx: 16}
}

func okStructure() StructureInvoker {
	return structureFunc(func(_ context.Context, _ *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
		return validPlanOutput(), nil
	})
}

func okContent() ContentInvoker {
	return contentFunc(func(_ context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.ContentGenerateOutput, error) {
		sections := make([]wfmodel.SectionContent, 0, len(in.Sections))
		for _, s := range in.Sections {
			sections = append(sections, wfmodel.SectionContent{ID: s.ID, Text: "content for " + s.ID})
		}
		return &wfmodel.ContentGenerateOutput{Sections: sections}, nil
	})
}

func failingSingleStep(t *testing.T) SingleStepInvoker {
	return singleStepFunc(func(_ context.Context, _ *wfmodel.SingleStepInput) (*wfmodel.SingleStepOutput, error) {
		t.Helper()
		t.Fatal("fallback must not be invoked")
		return nil, nil
	})
}

func okSingleStep() SingleStepInvoker {
	return singleStepFunc(func(_ context.Context, _ *wfmodel.SingleStepInput) (*wfmodel.SingleStepOutput, error) {
		return &wfmodel.SingleStepOutput{
			Layout: "single_column",
			Sections: []wfmodel.SectionContent{
				{ID: "main", Text: "fallback content"},
			},
		}, nil
	})
}

func newGenerator(structure StructureInvoker, content ContentInvoker, fallback SingleStepInvoker) *MultiStepGenerator {
	return NewMultiStepGenerator(
		generationConfig(),
		NewStructureAnalyzer(structure),
		NewSpaceCalculator(),
		content,
		fallback,
		NewHTMLFormatter(),
	)
}

func defaultRequest() *SlideRequest {
	return &SlideRequest{
		Narrative: "Quarterly revenue grew 12% on strong enterprise demand.",
		Topics:    []string{"revenue", "enterprise"},
		Canvas:    entity.Canvas{Width: 1800, Height: 840},
	}
}

func TestMultiStepGeneratorHappyPath(t *testing.T) {
	gen := newGenerator(okStructure(), okContent(), failingSingleStep(t))

	result, err := gen.Generate(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.Equal(t, ModeMultiStep, result.Meta.Mode)
	assert.False(t, result.Meta.FallbackUsed)
	assert.Equal(t, entity.LayoutTwoColumn, result.Layout)
	require.Len(t, result.Sections, 2)
	assert.Equal(t, "left", result.Sections[0].ID)
	assert.Equal(t, "right", result.Sections[1].ID)

	require.NotNil(t, result.Budget)
	assert.Positive(t, result.Budget.TotalChars)
	assert.Contains(t, result.HTML, "content for left")
	assert.Len(t, result.Meta.Usage, 2)
	assert.Empty(t, result.Meta.Overflows)
	assert.Positive(t, result.Meta.BudgetUtilization)
}

func TestMultiStepGeneratorReportsOverflow(t *testing.T) {
	overlong := contentFunc(func(_ context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.ContentGenerateOutput, error) {
		sections := make([]wfmodel.SectionContent, 0, len(in.Sections))
		for _, s := range in.Sections {
			// 超出预算两倍
			sections = append(sections, wfmodel.SectionContent{
				ID:   s.ID,
				Text: strings.Repeat("x", s.MaxChars*2),
			})
		}
		return &wfmodel.ContentGenerateOutput{Sections: sections}, nil
	})

	gen := newGenerator(okStructure(), overlong, failingSingleStep(t))

	result, err := gen.Generate(context.Background(), defaultRequest())
	require.NoError(t, err)

	// 超预算是警告不是失败
	assert.Equal(t, ModeMultiStep, result.Meta.Mode)
	require.Len(t, result.Meta.Overflows, 2)
	for _, o := range result.Meta.Overflows {
		assert.False(t, o.WithinTolerance)
		assert.Equal(t, o.BudgetChars*2, o.GeneratedChars)
		assert.InDelta(t, 100.0, o.VariancePercent, 1e-9)
	}
	assert.InDelta(t, 2.0, result.Meta.BudgetUtilization, 1e-9)
}

func TestMultiStepGeneratorOverflowWithinTolerance(t *testing.T) {
	slightly := contentFunc(func(_ context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.ContentGenerateOutput, error) {
		sections := make([]wfmodel.SectionContent, 0, len(in.Sections))
		for _, s := range in.Sections {
			// 超出 5%，在 10% 容忍内
			extra := s.MaxChars / 20
			sections = append(sections, wfmodel.SectionContent{
				ID:   s.ID,
				Text: strings.Repeat("x", s.MaxChars+extra),
			})
		}
		return &wfmodel.ContentGenerateOutput{Sections: sections}, nil
	})

	gen := newGenerator(okStructure(), slightly, failingSingleStep(t))

	result, err := gen.Generate(context.Background(), defaultRequest())
	require.NoError(t, err)

	require.NotEmpty(t, result.Meta.Overflows)
	for _, o := range result.Meta.Overflows {
		assert.True(t, o.WithinTolerance)
	}
}

func TestMultiStepGeneratorFallsBackOnStructureFailure(t *testing.T) {
	badStructure := structureFunc(func(_ context.Context, _ *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
		return nil, errors.New("model returned prose")
	})

	fallbackCalls := 0
	fallback := singleStepFunc(func(_ context.Context, _ *wfmodel.SingleStepInput) (*wfmodel.SingleStepOutput, error) {
		fallbackCalls++
		return &wfmodel.SingleStepOutput{
			Layout:   "single_column",
			Sections: []wfmodel.SectionContent{{ID: "main", Text: "fallback content"}},
		}, nil
	})

	gen := newGenerator(badStructure, okContent(), fallback)

	result, err := gen.Generate(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, fallbackCalls)
	assert.Equal(t, ModeSingleStep, result.Meta.Mode)
	assert.True(t, result.Meta.FallbackUsed)
	assert.Equal(t, entity.PhaseStructure, result.Meta.FailedPhase)
	assert.NotEmpty(t, result.Meta.FailureReason)
	assert.Nil(t, result.Budget)
	assert.Contains(t, result.HTML, "fallback content")
}

func TestMultiStepGeneratorFallsBackOnContentFailure(t *testing.T) {
	badContent := contentFunc(func(_ context.Context, _ *wfmodel.ContentGenerateInput) (*wfmodel.ContentGenerateOutput, error) {
		return nil, errors.New("empty slide content output")
	})

	gen := newGenerator(okStructure(), badContent, okSingleStep())

	result, err := gen.Generate(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.True(t, result.Meta.FallbackUsed)
	assert.Equal(t, entity.PhaseContent, result.Meta.FailedPhase)
}

func TestMultiStepGeneratorFallsBackOnMissingSection(t *testing.T) {
	partial := contentFunc(func(_ context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.ContentGenerateOutput, error) {
		// 只返回第一个分区
		return &wfmodel.ContentGenerateOutput{
			Sections: []wfmodel.SectionContent{{ID: in.Sections[0].ID, Text: "only one"}},
		}, nil
	})

	gen := newGenerator(okStructure(), partial, okSingleStep())

	result, err := gen.Generate(context.Background(), defaultRequest())
	require.NoError(t, err)
	assert.True(t, result.Meta.FallbackUsed)
	assert.Equal(t, entity.PhaseContent, result.Meta.FailedPhase)
}

func TestMultiStepGeneratorFallbackFailureIsTerminal(t *testing.T) {
	badStructure := structureFunc(func(_ context.Context, _ *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
		return nil, errors.New("model returned prose")
	})
	badFallback := singleStepFunc(func(_ context.Context, _ *wfmodel.SingleStepInput) (*wfmodel.SingleStepOutput, error) {
		return nil, errors.New("provider unavailable")
	})

	gen := newGenerator(badStructure, okContent(), badFallback)

	_, err := gen.Generate(context.Background(), defaultRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeFallbackFailed))
}

func TestMultiStepGeneratorValidationErrorsDoNotFallBack(t *testing.T) {
	t.Run("empty narrative", func(t *testing.T) {
		gen := newGenerator(okStructure(), okContent(), failingSingleStep(t))
		req := defaultRequest()
		req.Narrative = "  "
		_, err := gen.Generate(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("invalid canvas", func(t *testing.T) {
		gen := newGenerator(okStructure(), okContent(), failingSingleStep(t))
		req := defaultRequest()
		req.Canvas = entity.Canvas{Width: -1, Height: 720}
		_, err := gen.Generate(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidCanvas))
	})

	t.Run("unknown styling mode", func(t *testing.T) {
		gen := newGenerator(okStructure(), okContent(), failingSingleStep(t))
		req := defaultRequest()
		req.StylingMode = StylingMode("plain")
		_, err := gen.Generate(context.Background(), req)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("typography missing", func(t *testing.T) {
		oddRole := structureFunc(func(_ context.Context, _ *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
			return &wfmodel.StructureAnalyzeOutput{
				Plan: &entity.StructurePlan{
					Layout:   entity.LayoutSingleColumn,
					Sections: []entity.SectionPlan{{ID: "a", Role: "sidebar_note", Weight: 1}},
				},
			}, nil
		})
		gen := newGenerator(oddRole, okContent(), failingSingleStep(t))
		_, err := gen.Generate(context.Background(), defaultRequest())
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeTypographyMissing))
	})
}

func TestMultiStepGeneratorNormalizesContext(t *testing.T) {
	var seen *wfmodel.StructureAnalyzeInput
	spy := structureFunc(func(_ context.Context, in *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
		seen = in
		return validPlanOutput(), nil
	})

	gen := newGenerator(spy, okContent(), failingSingleStep(t))
	_, err := gen.Generate(context.Background(), defaultRequest())
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "professional", seen.Audience)
	assert.Equal(t, "inform", seen.Purpose)
	assert.Equal(t, "topic-detail", seen.StructurePattern)
}
