package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slide-content-api/internal/config"
	apperrors "slide-content-api/pkg/errors"
)

const metricCardJSON = `{
  "component_id": "metric_card",
  "description": "A KPI card with a headline number",
  "template": "<div class=\"metric-card\"><span class=\"value\">{{value}}</span><span class=\"label\">{{label}}</span></div>",
  "slots": {
    "value": {"role": "metric", "min": 1, "baseline": 6, "max": 12},
    "label": {"role": "label", "min": 5, "baseline": 20, "max": 40}
  },
  "space_requirements": {"min_grid_width": 3, "min_grid_height": 2},
  "arrangement_rules": {
    "valid_arrangements": {
      "1": [{"rows": 1, "columns": 1}],
      "2": [{"rows": 1, "columns": 2}],
      "4": [{"rows": 2, "columns": 2}, {"rows": 1, "columns": 4}]
    }
  },
  "scaling_rules": {"floor": 3, "ceiling": 80}
}`

const quoteBlockJSON = `{
  "component_id": "quote_block",
  "description": "A pull quote with attribution",
  "template": "<blockquote>{{quote}}<cite>{{author}}</cite></blockquote>",
  "slots": {
    "quote": {"role": "body", "min": 20, "baseline": 80, "max": 160},
    "author": {"role": "label", "min": 3, "baseline": 15, "max": 30}
  },
  "space_requirements": {"min_grid_width": 6, "min_grid_height": 3},
  "arrangement_rules": {
    "valid_arrangements": {"1": [{"rows": 1, "columns": 1}]}
  },
  "scaling_rules": {"floor": 5, "ceiling": 240}
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRegistryEagerLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "metric_card.json", metricCardJSON)
	writeFile(t, dir, "quote_block.json", quoteBlockJSON)

	r, err := NewRegistry(config.RegistryConfig{Path: dir, Eager: true})
	require.NoError(t, err)

	assert.Equal(t, 2, r.Count())

	def, err := r.Get("metric_card")
	require.NoError(t, err)
	assert.Equal(t, "metric_card", def.ID)
	assert.Len(t, def.Slots, 2)

	defs := r.List()
	require.Len(t, defs, 2)
	assert.Equal(t, "metric_card", defs[0].ID)
	assert.Equal(t, "quote_block", defs[1].ID)
}

func TestRegistryGetUnknownComponent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "metric_card.json", metricCardJSON)

	r, err := NewRegistry(config.RegistryConfig{Path: dir, Eager: true})
	require.NoError(t, err)

	_, err = r.Get("nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeComponentNotFound))
}

func TestRegistryRejectsInvalidDefinition(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{
			name: "template references undeclared slot",
			json: `{
				"component_id": "broken",
				"template": "<div>{{missing}}</div>",
				"slots": {"value": {"role": "metric", "min": 1, "baseline": 2, "max": 3}},
				"space_requirements": {"min_grid_width": 1, "min_grid_height": 1},
				"arrangement_rules": {"valid_arrangements": {"1": [{"rows": 1, "columns": 1}]}},
				"scaling_rules": {}
			}`,
		},
		{
			name: "slot bounds out of order",
			json: `{
				"component_id": "broken",
				"template": "<div>{{value}}</div>",
				"slots": {"value": {"role": "metric", "min": 10, "baseline": 5, "max": 20}},
				"space_requirements": {"min_grid_width": 1, "min_grid_height": 1},
				"arrangement_rules": {"valid_arrangements": {"1": [{"rows": 1, "columns": 1}]}},
				"scaling_rules": {}
			}`,
		},
		{
			name: "arrangement too small for count",
			json: `{
				"component_id": "broken",
				"template": "<div>{{value}}</div>",
				"slots": {"value": {"role": "metric", "min": 1, "baseline": 2, "max": 3}},
				"space_requirements": {"min_grid_width": 1, "min_grid_height": 1},
				"arrangement_rules": {"valid_arrangements": {"4": [{"rows": 1, "columns": 2}]}},
				"scaling_rules": {}
			}`,
		},
		{
			name: "not json",
			json: `{{{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "broken.json", tt.json)

			_, err := NewRegistry(config.RegistryConfig{Path: dir, Eager: true})
			require.Error(t, err)
			assert.True(t, apperrors.IsConfigurationError(err), "expected configuration error, got %v", err)
		})
	}
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", metricCardJSON)
	writeFile(t, dir, "b.json", metricCardJSON)

	_, err := NewRegistry(config.RegistryConfig{Path: dir, Eager: true})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidDefinition))
}

func TestRegistryReloadKeepsOldSnapshotOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "metric_card.json", metricCardJSON)

	r, err := NewRegistry(config.RegistryConfig{Path: dir, Eager: true})
	require.NoError(t, err)
	require.Equal(t, 1, r.Count())

	writeFile(t, dir, "metric_card.json", `not json at all`)

	err = r.Reload(context.Background())
	require.Error(t, err)

	// 旧快照仍然可用
	assert.Equal(t, 1, r.Count())
	_, err = r.Get("metric_card")
	assert.NoError(t, err)
}

func TestRegistryReloadPicksUpNewComponents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "metric_card.json", metricCardJSON)

	r, err := NewRegistry(config.RegistryConfig{Path: dir, Eager: true})
	require.NoError(t, err)
	require.Equal(t, 1, r.Count())

	writeFile(t, dir, "quote_block.json", quoteBlockJSON)
	require.NoError(t, r.Reload(context.Background()))

	assert.Equal(t, 2, r.Count())
	_, err = r.Get("quote_block")
	assert.NoError(t, err)
}

func TestRegistryIndexFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "metric_card.json", metricCardJSON)
	writeFile(t, dir, "quote_block.json", quoteBlockJSON)
	// 索引只指向其中一个，加载范围以索引为准
	writeFile(t, dir, "component_index.json", `{"components": {"metric_card": "metric_card.json"}}`)

	r, err := NewRegistry(config.RegistryConfig{
		Path:      dir,
		IndexFile: "component_index.json",
		Eager:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Count())
	_, err = r.Get("quote_block")
	assert.Error(t, err)
}

func TestRegistryLazyStartsEmpty(t *testing.T) {
	r, err := NewRegistry(config.RegistryConfig{Path: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Count())
	assert.True(t, r.LoadedAt().IsZero())
}
