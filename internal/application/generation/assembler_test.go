package generation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slide-content-api/internal/application/registry"
	"slide-content-api/internal/config"
	wfmodel "slide-content-api/internal/workflow/model"
	apperrors "slide-content-api/pkg/errors"
)

type componentContentFunc func(ctx context.Context, in *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error)

func (f componentContentFunc) Invoke(ctx context.Context, in *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error) {
	return f(ctx, in)
}

const assemblerCardJSON = `{
  "component_id": "metric_card",
  "description": "A KPI card",
  "template": "<div class=\"metric-card\"><span>{{value}}</span><span>{{label}}</span></div>",
  "slots": {
    "value": {"role": "metric", "min": 1, "baseline": 6, "max": 12},
    "label": {"role": "label", "min": 5, "baseline": 20, "max": 40}
  },
  "space_requirements": {"min_grid_width": 3, "min_grid_height": 2},
  "ideal_aspect_ratio": 1.5,
  "arrangement_rules": {
    "valid_arrangements": {
      "1": [{"rows": 1, "columns": 1}],
      "4": [{"rows": 2, "columns": 2}, {"rows": 1, "columns": 4}]
    }
  },
  "scaling_rules": {"floor": 3, "ceiling": 80}
}`

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metric_card.json"), []byte(assemblerCardJSON), 0o644))
	r, err := registry.NewRegistry(config.RegistryConfig{Path: dir, Eager: true})
	require.NoError(t, err)
	return r
}

func okComponentContent() ComponentContentInvoker {
	return componentContentFunc(func(_ context.Context, in *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error) {
		instances := make([]wfmodel.InstanceSlots, 0, in.InstanceCount)
		for i := 0; i < in.InstanceCount; i++ {
			instances = append(instances, wfmodel.InstanceSlots{
				Index: i,
				Slots: map[string]string{"value": "42", "label": "metric"},
			})
		}
		return &wfmodel.ComponentContentOutput{Instances: instances}, nil
	})
}

func newAssembler(t *testing.T, content ComponentContentInvoker) *ComponentAssembler {
	t.Helper()
	return NewComponentAssembler(
		config.GenerationConfig{OverflowTolerance: 0.10, GutterPx: 16},
		testRegistry(t),
		NewArrangementSelector(),
		NewLayoutBuilder(),
		NewConstraintScaler(config.ScalingConfig{BandPercent: 0.15, MinScale: 0.5, MaxScale: 2.0}),
		content,
		NewHTMLFormatter(),
	)
}

func assembleRequest() *AssembleRequest {
	return &AssembleRequest{
		ComponentID:      "metric_card",
		Count:            4,
		RegionGridWidth:  12,
		RegionGridHeight: 8,
		RegionWidthPx:    1200,
		RegionHeightPx:   800,
		Narrative:        "Four KPIs from the quarter.",
	}
}

func TestComponentAssemblerHappyPath(t *testing.T) {
	asm := newAssembler(t, okComponentContent())

	result, err := asm.Assemble(context.Background(), assembleRequest())
	require.NoError(t, err)

	assert.Equal(t, "metric_card", result.ComponentID)
	assert.Equal(t, 2, result.Arrangement.Rows)
	assert.Equal(t, 2, result.Arrangement.Columns)
	require.Len(t, result.Instances, 4)

	for i, inst := range result.Instances {
		assert.Equal(t, i, inst.Index)
		assert.Contains(t, inst.HTML, "<span>42</span>")
		assert.NotContains(t, inst.HTML, "{{")
	}
	assert.Contains(t, result.HTML, `data-arrangement="2x2"`)
	assert.Empty(t, result.Meta.Overflows)
}

func TestComponentAssemblerPassesScaledLimitsToLLM(t *testing.T) {
	var seen *wfmodel.ComponentContentInput
	spy := componentContentFunc(func(_ context.Context, in *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error) {
		seen = in
		return okComponentContent().Invoke(context.Background(), in)
	})

	asm := newAssembler(t, spy)
	_, err := asm.Assemble(context.Background(), assembleRequest())
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, 4, seen.InstanceCount)
	require.Len(t, seen.SlotLimits, 2)
	// 2x2 排布，每实例 6x4 网格 = 24 单元，参考 6 单元 → 因子钳制到 2.0
	for _, l := range seen.SlotLimits {
		assert.Positive(t, l.MinChars)
		assert.Greater(t, l.MaxChars, l.MinChars)
	}
}

func TestComponentAssemblerUnknownComponent(t *testing.T) {
	asm := newAssembler(t, okComponentContent())
	req := assembleRequest()
	req.ComponentID = "ghost"

	_, err := asm.Assemble(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeComponentNotFound))
}

func TestComponentAssemblerUnsupportedCount(t *testing.T) {
	asm := newAssembler(t, okComponentContent())
	req := assembleRequest()
	req.Count = 7

	_, err := asm.Assemble(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedCount))
}

func TestComponentAssemblerLLMFailureHasNoFallback(t *testing.T) {
	failing := componentContentFunc(func(_ context.Context, _ *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error) {
		return nil, errors.New("provider unavailable")
	})

	asm := newAssembler(t, failing)
	_, err := asm.Assemble(context.Background(), assembleRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLLMCallFailed))
}

func TestComponentAssemblerMissingInstanceFails(t *testing.T) {
	partial := componentContentFunc(func(_ context.Context, in *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error) {
		return &wfmodel.ComponentContentOutput{
			Instances: []wfmodel.InstanceSlots{
				{Index: 0, Slots: map[string]string{"value": "1", "label": "only one"}},
			},
		}, nil
	})

	asm := newAssembler(t, partial)
	_, err := asm.Assemble(context.Background(), assembleRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))
}

func TestComponentAssemblerSlotMismatchFails(t *testing.T) {
	wrongSlots := componentContentFunc(func(_ context.Context, in *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error) {
		instances := make([]wfmodel.InstanceSlots, 0, in.InstanceCount)
		for i := 0; i < in.InstanceCount; i++ {
			instances = append(instances, wfmodel.InstanceSlots{
				Index: i,
				Slots: map[string]string{"value": "42"}, // label 缺失
			})
		}
		return &wfmodel.ComponentContentOutput{Instances: instances}, nil
	})

	asm := newAssembler(t, wrongSlots)
	_, err := asm.Assemble(context.Background(), assembleRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSlotMismatch))
}

func TestComponentAssemblerRecordsSlotOverflow(t *testing.T) {
	overlong := componentContentFunc(func(_ context.Context, in *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error) {
		instances := make([]wfmodel.InstanceSlots, 0, in.InstanceCount)
		for i := 0; i < in.InstanceCount; i++ {
			instances = append(instances, wfmodel.InstanceSlots{
				Index: i,
				Slots: map[string]string{
					"value": "42",
					"label": strings.Repeat("x", 500),
				},
			})
		}
		return &wfmodel.ComponentContentOutput{Instances: instances}, nil
	})

	asm := newAssembler(t, overlong)
	result, err := asm.Assemble(context.Background(), assembleRequest())
	require.NoError(t, err)

	require.NotEmpty(t, result.Meta.Overflows)
	for _, o := range result.Meta.Overflows {
		assert.False(t, o.WithinTolerance)
		assert.Contains(t, o.SectionID, "/label")
	}
}
