package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slide-content-api/internal/domain/entity"
	wfmodel "slide-content-api/internal/workflow/model"
	apperrors "slide-content-api/pkg/errors"
)

type structureFunc func(ctx context.Context, in *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error)

func (f structureFunc) Invoke(ctx context.Context, in *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
	return f(ctx, in)
}

func validPlanOutput() *wfmodel.StructureAnalyzeOutput {
	return &wfmodel.StructureAnalyzeOutput{
		Plan: &entity.StructurePlan{
			Layout: entity.LayoutTwoColumn,
			Sections: []entity.SectionPlan{
				{ID: "left", Role: "title", Weight: 1},
				{ID: "right", Role: "body", Weight: 2},
			},
		},
	}
}

func TestStructureAnalyzerFirstAttemptSucceeds(t *testing.T) {
	calls := 0
	analyzer := NewStructureAnalyzer(structureFunc(func(_ context.Context, in *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
		calls++
		assert.False(t, in.StrictJSON)
		return validPlanOutput(), nil
	}))

	out, err := analyzer.Analyze(context.Background(), &wfmodel.StructureAnalyzeInput{Narrative: "n"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, entity.LayoutTwoColumn, out.Plan.Layout)
}

func TestStructureAnalyzerRetriesWithStrictConstraint(t *testing.T) {
	calls := 0
	analyzer := NewStructureAnalyzer(structureFunc(func(_ context.Context, in *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
		calls++
		if calls == 1 {
			assert.False(t, in.StrictJSON)
			return nil, errors.New("failed to parse structure plan json")
		}
		assert.True(t, in.StrictJSON)
		return validPlanOutput(), nil
	}))

	out, err := analyzer.Analyze(context.Background(), &wfmodel.StructureAnalyzeInput{Narrative: "n"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NotNil(t, out.Plan)
}

func TestStructureAnalyzerRetriesOnInvalidPlan(t *testing.T) {
	calls := 0
	analyzer := NewStructureAnalyzer(structureFunc(func(_ context.Context, _ *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
		calls++
		if calls == 1 {
			// 可解析但不合法：未知布局
			return &wfmodel.StructureAnalyzeOutput{
				Plan: &entity.StructurePlan{Layout: "mosaic", Sections: []entity.SectionPlan{{ID: "a"}}},
			}, nil
		}
		return validPlanOutput(), nil
	}))

	_, err := analyzer.Analyze(context.Background(), &wfmodel.StructureAnalyzeInput{Narrative: "n"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestStructureAnalyzerFailsAfterRetry(t *testing.T) {
	analyzer := NewStructureAnalyzer(structureFunc(func(_ context.Context, _ *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
		return nil, errors.New("still not json")
	}))

	_, err := analyzer.Analyze(context.Background(), &wfmodel.StructureAnalyzeInput{Narrative: "n"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnparseablePlan))
	assert.True(t, apperrors.IsGenerationError(err))
}
