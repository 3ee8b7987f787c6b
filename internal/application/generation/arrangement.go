package generation

import (
	"fmt"
	"strings"

	"slide-content-api/internal/domain/entity"
	apperrors "slide-content-api/pkg/errors"
)

// ArrangementSelector 在组件声明的合法排布中为给定实例数择优。
// 未声明的实例数一律拒绝，不做静默就近处理。
type ArrangementSelector struct{}

func NewArrangementSelector() *ArrangementSelector {
	return &ArrangementSelector{}
}

// Select 返回失真度最小的排布。失真度 = max(r, 1/r)，
// r 为单实例实际宽高比与组件理想宽高比之商。
// 并列时取行数更少者，再取列数更少者，保证确定性。
func (s *ArrangementSelector) Select(def *entity.ComponentDefinition, count, regionWidth, regionHeight, gutterPx int) (entity.Arrangement, error) {
	if def == nil {
		return entity.Arrangement{}, apperrors.New(apperrors.CodeValidationFailed, "component definition is nil")
	}
	if count <= 0 {
		return entity.Arrangement{}, apperrors.Newf(apperrors.CodeValidationFailed,
			"instance count must be positive, got %d", count)
	}
	if regionWidth <= 0 || regionHeight <= 0 {
		return entity.Arrangement{}, apperrors.Newf(apperrors.CodeValidationFailed,
			"region dimensions must be positive, got %dx%d", regionWidth, regionHeight)
	}

	candidates := def.Arrangements.For(count)
	if len(candidates) == 0 {
		return entity.Arrangement{}, apperrors.Newf(apperrors.CodeUnsupportedCount,
			"component %s does not support %d instances (supported: %s)",
			def.ID, count, formatCounts(def.Arrangements.SupportedCounts()))
	}

	ideal := def.AspectRatio()
	best := candidates[0]
	bestScore := arrangementDistortion(best, regionWidth, regionHeight, gutterPx, ideal)

	for _, cand := range candidates[1:] {
		score := arrangementDistortion(cand, regionWidth, regionHeight, gutterPx, ideal)
		if score < bestScore ||
			(score == bestScore && (cand.Rows < best.Rows ||
				(cand.Rows == best.Rows && cand.Columns < best.Columns))) {
			best = cand
			bestScore = score
		}
	}
	return best, nil
}

// arrangementDistortion 单实例宽高比偏离理想宽高比的程度，1.0 为完美
func arrangementDistortion(a entity.Arrangement, regionWidth, regionHeight, gutterPx int, ideal float64) float64 {
	w := instanceSpan(regionWidth, a.Columns, gutterPx)
	h := instanceSpan(regionHeight, a.Rows, gutterPx)
	if w <= 0 || h <= 0 {
		return 1e9
	}
	r := (w / h) / ideal
	if r < 1 {
		return 1 / r
	}
	return r
}

// instanceSpan 单实例在一个轴向上的跨度：区域减去间距后均分
func instanceSpan(region, cells, gutterPx int) float64 {
	return (float64(region) - float64(cells-1)*float64(gutterPx)) / float64(cells)
}

func formatCounts(counts []int) string {
	if len(counts) == 0 {
		return "none"
	}
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return strings.Join(parts, ", ")
}

// LayoutBuilder 将选定排布展开为每个实例的具体几何位置
type LayoutBuilder struct{}

func NewLayoutBuilder() *LayoutBuilder {
	return &LayoutBuilder{}
}

// Build 按行优先顺序放置 count 个实例。尾行不满时靠左对齐，
// 实例尺寸在所有行保持一致。
func (b *LayoutBuilder) Build(arrangement entity.Arrangement, count, regionWidth, regionHeight, gutterPx int) ([]entity.InstanceGeometry, error) {
	if arrangement.Rows <= 0 || arrangement.Columns <= 0 {
		return nil, apperrors.Newf(apperrors.CodeValidationFailed,
			"invalid arrangement %s", arrangement)
	}
	if count <= 0 || count > arrangement.Capacity() {
		return nil, apperrors.Newf(apperrors.CodeValidationFailed,
			"arrangement %s cannot place %d instances", arrangement, count)
	}

	cellWidth := int(instanceSpan(regionWidth, arrangement.Columns, gutterPx))
	cellHeight := int(instanceSpan(regionHeight, arrangement.Rows, gutterPx))
	if cellWidth <= 0 || cellHeight <= 0 {
		return nil, apperrors.Newf(apperrors.CodeValidationFailed,
			"region %dx%d too small for arrangement %s with %dpx gutter",
			regionWidth, regionHeight, arrangement, gutterPx)
	}

	geometries := make([]entity.InstanceGeometry, 0, count)
	for i := 0; i < count; i++ {
		row := i / arrangement.Columns
		col := i % arrangement.Columns
		geometries = append(geometries, entity.InstanceGeometry{
			Index:  i,
			X:      col * (cellWidth + gutterPx),
			Y:      row * (cellHeight + gutterPx),
			Width:  cellWidth,
			Height: cellHeight,
		})
	}
	return geometries, nil
}
