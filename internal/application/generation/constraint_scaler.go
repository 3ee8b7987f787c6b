package generation

import (
	"math"
	"sort"

	"slide-content-api/internal/config"
	"slide-content-api/internal/domain/entity"
	apperrors "slide-content-api/pkg/errors"
)

// ConstraintScaler 按实际分配空间与参考空间之比，等比缩放组件插槽的字符限制。
// 纯函数式，无 LLM 调用。
type ConstraintScaler struct {
	cfg config.ScalingConfig
}

func NewConstraintScaler(cfg config.ScalingConfig) *ConstraintScaler {
	return &ConstraintScaler{cfg: cfg}
}

// Scale 计算给定实际网格面积下每个插槽的字符限制。
// 缩放因子 = clamp(实际面积 / 参考面积, [min_scale, max_scale])；
// 因子恰为 1.0 时原样返回定义中的限制，不经过带宽重算。
func (s *ConstraintScaler) Scale(def *entity.ComponentDefinition, gridWidth, gridHeight int) ([]entity.ScaledSlotLimits, error) {
	if def == nil {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "component definition is nil")
	}
	if gridWidth <= 0 || gridHeight <= 0 {
		return nil, apperrors.Newf(apperrors.CodeValidationFailed,
			"grid dimensions must be positive, got %dx%d", gridWidth, gridHeight)
	}
	refArea := def.Space.ReferenceArea()
	if refArea <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidDefinition,
			"component %s has no reference area", def.ID)
	}

	factor := float64(gridWidth*gridHeight) / float64(refArea)
	factor = clampFloat(factor, s.minScale(), s.maxScale())

	names := make([]string, 0, len(def.Slots))
	for name := range def.Slots {
		names = append(names, name)
	}
	sort.Strings(names)

	limits := make([]entity.ScaledSlotLimits, 0, len(names))
	for _, name := range names {
		slot := def.Slots[name]
		limits = append(limits, s.scaleSlot(name, slot, def.Scaling, factor))
	}
	return limits, nil
}

// scaleSlot 单插槽缩放。基线乘以因子，min/max 为新基线两侧的带宽，
// 再套用组件级地板/天花板并恢复 min <= baseline <= max 次序。
func (s *ConstraintScaler) scaleSlot(name string, slot entity.SlotSpec, rules entity.ScalingRules, factor float64) entity.ScaledSlotLimits {
	if factor == 1.0 {
		return entity.ScaledSlotLimits{
			Slot:          name,
			Role:          slot.Role,
			MinChars:      slot.MinChars,
			BaselineChars: slot.BaselineChars,
			MaxChars:      slot.MaxChars,
			ScaleFactor:   1.0,
		}
	}

	band := rules.BandPercent
	if band <= 0 {
		band = s.cfg.BandPercent
	}

	baseline := int(math.Round(float64(slot.BaselineChars) * factor))
	minChars := int(math.Round(float64(baseline) * (1 - band)))
	maxChars := int(math.Round(float64(baseline) * (1 + band)))

	if rules.FloorChars > 0 {
		minChars = maxInt(minChars, rules.FloorChars)
		baseline = maxInt(baseline, rules.FloorChars)
		maxChars = maxInt(maxChars, rules.FloorChars)
	}
	if rules.CeilingChars > 0 {
		minChars = minInt(minChars, rules.CeilingChars)
		baseline = minInt(baseline, rules.CeilingChars)
		maxChars = minInt(maxChars, rules.CeilingChars)
	}

	minChars = maxInt(minChars, 1)
	baseline = maxInt(baseline, minChars)
	maxChars = maxInt(maxChars, baseline)

	return entity.ScaledSlotLimits{
		Slot:          name,
		Role:          slot.Role,
		MinChars:      minChars,
		BaselineChars: baseline,
		MaxChars:      maxChars,
		ScaleFactor:   factor,
	}
}

func (s *ConstraintScaler) minScale() float64 {
	if s.cfg.MinScale > 0 {
		return s.cfg.MinScale
	}
	return 0.5
}

func (s *ConstraintScaler) maxScale() float64 {
	if s.cfg.MaxScale > 0 {
		return s.cfg.MaxScale
	}
	return 2.0
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
