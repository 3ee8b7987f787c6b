package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slide-content-api/internal/domain/entity"
	apperrors "slide-content-api/pkg/errors"
)

func arrangeableComponent() *entity.ComponentDefinition {
	return &entity.ComponentDefinition{
		ID:       "metric_card",
		Template: "<div>{{value}}</div>",
		Slots: map[string]entity.SlotSpec{
			"value": {Role: entity.SlotRoleMetric, MinChars: 1, BaselineChars: 6, MaxChars: 12},
		},
		Space:            entity.SpaceRequirements{MinGridWidth: 3, MinGridHeight: 2},
		IdealAspectRatio: 1.5,
		Arrangements: entity.ArrangementRules{
			ValidArrangements: map[string][]entity.Arrangement{
				"1": {{Rows: 1, Columns: 1}},
				"4": {
					{Rows: 2, Columns: 2},
					{Rows: 1, Columns: 4},
					{Rows: 4, Columns: 1},
				},
				"6": {
					{Rows: 2, Columns: 3},
					{Rows: 3, Columns: 2},
				},
			},
		},
	}
}

func TestArrangementSelectorPrefersLeastDistortion(t *testing.T) {
	selector := NewArrangementSelector()
	def := arrangeableComponent()

	// 1200×800 区域，4 实例：
	//   2x2 → 实例 592×392，比 1.51，失真 ~1.007
	//   1x4 → 实例 288×800，比 0.36，失真 ~4.17
	//   4x1 → 实例 1200×188，比 6.38，失真 ~4.26
	arr, err := selector.Select(def, 4, 1200, 800, 16)
	require.NoError(t, err)
	assert.Equal(t, entity.Arrangement{Rows: 2, Columns: 2}, arr)
}

func TestArrangementSelectorAdaptsToRegionShape(t *testing.T) {
	selector := NewArrangementSelector()
	def := arrangeableComponent()

	// 扁而宽的区域应选横排
	wide, err := selector.Select(def, 4, 2400, 300, 16)
	require.NoError(t, err)
	assert.Equal(t, entity.Arrangement{Rows: 1, Columns: 4}, wide)

	// 窄而高的区域应选竖排
	tall, err := selector.Select(def, 4, 320, 1600, 16)
	require.NoError(t, err)
	assert.Equal(t, entity.Arrangement{Rows: 4, Columns: 1}, tall)
}

func TestArrangementSelectorDeterministic(t *testing.T) {
	selector := NewArrangementSelector()
	def := arrangeableComponent()

	first, err := selector.Select(def, 6, 1200, 800, 16)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := selector.Select(def, 6, 1200, 800, 16)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestArrangementSelectorTieBreaksByFewerRows(t *testing.T) {
	selector := NewArrangementSelector()
	def := arrangeableComponent()
	def.IdealAspectRatio = 1.0
	def.Arrangements = entity.ArrangementRules{
		ValidArrangements: map[string][]entity.Arrangement{
			// 正方形区域、零间距时 2x2 与 2x2 之外再给一个同失真候选
			"4": {{Rows: 4, Columns: 1}, {Rows: 1, Columns: 4}},
		},
	}

	// 正方形区域，两候选失真相同（互为转置），取行数更少者
	arr, err := selector.Select(def, 4, 1000, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, entity.Arrangement{Rows: 1, Columns: 4}, arr)
}

func TestArrangementSelectorRejectsUndeclaredCount(t *testing.T) {
	selector := NewArrangementSelector()
	def := arrangeableComponent()

	_, err := selector.Select(def, 5, 1200, 800, 16)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedCount))
	assert.Contains(t, err.Error(), "1, 4, 6")
}

func TestArrangementSelectorTotality(t *testing.T) {
	// 每个声明过的实例数都必须给出结果
	selector := NewArrangementSelector()
	def := arrangeableComponent()

	for _, count := range def.Arrangements.SupportedCounts() {
		arr, err := selector.Select(def, count, 1200, 800, 16)
		require.NoError(t, err, "count %d", count)
		assert.GreaterOrEqual(t, arr.Capacity(), count)
	}
}

func TestLayoutBuilderFullGrid(t *testing.T) {
	builder := NewLayoutBuilder()

	geoms, err := builder.Build(entity.Arrangement{Rows: 2, Columns: 2}, 4, 1216, 816, 16)
	require.NoError(t, err)
	require.Len(t, geoms, 4)

	// (1216 - 16) / 2 = 600；(816 - 16) / 2 = 400
	for i, g := range geoms {
		assert.Equal(t, i, g.Index)
		assert.Equal(t, 600, g.Width)
		assert.Equal(t, 400, g.Height)
	}
	assert.Equal(t, 0, geoms[0].X)
	assert.Equal(t, 0, geoms[0].Y)
	assert.Equal(t, 616, geoms[1].X)
	assert.Equal(t, 0, geoms[1].Y)
	assert.Equal(t, 0, geoms[2].X)
	assert.Equal(t, 416, geoms[2].Y)
	assert.Equal(t, 616, geoms[3].X)
	assert.Equal(t, 416, geoms[3].Y)
}

func TestLayoutBuilderPartialLastRowLeftAligned(t *testing.T) {
	builder := NewLayoutBuilder()

	geoms, err := builder.Build(entity.Arrangement{Rows: 2, Columns: 2}, 3, 1216, 816, 16)
	require.NoError(t, err)
	require.Len(t, geoms, 3)

	// 第三个实例落在第二行第一列，尺寸与满行一致
	assert.Equal(t, 0, geoms[2].X)
	assert.Equal(t, 416, geoms[2].Y)
	assert.Equal(t, geoms[0].Width, geoms[2].Width)
	assert.Equal(t, geoms[0].Height, geoms[2].Height)
}

func TestLayoutBuilderNoOverlap(t *testing.T) {
	builder := NewLayoutBuilder()

	geoms, err := builder.Build(entity.Arrangement{Rows: 2, Columns: 3}, 6, 1200, 800, 16)
	require.NoError(t, err)

	for i := range geoms {
		for j := i + 1; j < len(geoms); j++ {
			a, b := geoms[i], geoms[j]
			overlapX := a.X < b.X+b.Width && b.X < a.X+a.Width
			overlapY := a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
			assert.False(t, overlapX && overlapY, "instances %d and %d overlap", i, j)
		}
	}
}

func TestLayoutBuilderErrors(t *testing.T) {
	builder := NewLayoutBuilder()

	_, err := builder.Build(entity.Arrangement{Rows: 1, Columns: 2}, 3, 1200, 800, 16)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))

	_, err = builder.Build(entity.Arrangement{Rows: 1, Columns: 10}, 10, 50, 50, 16)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}
