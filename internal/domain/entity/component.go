// Package entity 定义领域实体
package entity

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SlotRole 插槽语义角色
type SlotRole string

const (
	SlotRoleTitle    SlotRole = "title"
	SlotRoleSubtitle SlotRole = "subtitle"
	SlotRoleBody     SlotRole = "body"
	SlotRoleLabel    SlotRole = "label"
	SlotRoleMetric   SlotRole = "metric"
	SlotRoleIcon     SlotRole = "icon"
)

// SlotSpec 组件模板中一个可填充区域的规格
type SlotSpec struct {
	Name          string   `json:"name"`
	Role          SlotRole `json:"role"`
	MinChars      int      `json:"min"`
	BaselineChars int      `json:"baseline"`
	MaxChars      int      `json:"max"`
}

// Validate 校验 min <= baseline <= max 不变式
func (s *SlotSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("slot name is empty")
	}
	if s.MinChars <= 0 {
		return fmt.Errorf("slot %s: min chars must be positive, got %d", s.Name, s.MinChars)
	}
	if s.MinChars > s.BaselineChars || s.BaselineChars > s.MaxChars {
		return fmt.Errorf("slot %s: expected min <= baseline <= max, got %d/%d/%d",
			s.Name, s.MinChars, s.BaselineChars, s.MaxChars)
	}
	return nil
}

// ComponentVariant 组件的视觉皮肤
type ComponentVariant struct {
	ID          string            `json:"id"`
	Description string            `json:"description,omitempty"`
	// Classes 插槽角色 -> 附加 CSS 类名
	Classes map[string]string `json:"classes,omitempty"`
}

// SpaceRequirements 组件的参考空间需求（网格单元）
type SpaceRequirements struct {
	MinGridWidth  int `json:"min_grid_width"`
	MinGridHeight int `json:"min_grid_height"`
}

// ReferenceArea 参考面积，约束缩放的分母
func (s SpaceRequirements) ReferenceArea() int {
	return s.MinGridWidth * s.MinGridHeight
}

// Arrangement 实例的行列排布
type Arrangement struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// Capacity 该排布可容纳的实例数
func (a Arrangement) Capacity() int {
	return a.Rows * a.Columns
}

func (a Arrangement) String() string {
	return fmt.Sprintf("%dx%d", a.Rows, a.Columns)
}

// ArrangementRules 按实例数声明的合法排布；未声明的数量一律拒绝
type ArrangementRules struct {
	// ValidArrangements JSON 键为实例数（字符串形式）
	ValidArrangements map[string][]Arrangement `json:"valid_arrangements"`
}

// For 返回 count 对应的已声明排布（可能为空）
func (r ArrangementRules) For(count int) []Arrangement {
	if r.ValidArrangements == nil {
		return nil
	}
	return r.ValidArrangements[fmt.Sprintf("%d", count)]
}

// SupportedCounts 返回声明过的实例数，升序
func (r ArrangementRules) SupportedCounts() []int {
	counts := make([]int, 0, len(r.ValidArrangements))
	for k := range r.ValidArrangements {
		var n int
		if _, err := fmt.Sscanf(k, "%d", &n); err == nil {
			counts = append(counts, n)
		}
	}
	sort.Ints(counts)
	return counts
}

// ScalingRules 每插槽字符上限随空间缩放的规则
type ScalingRules struct {
	// FloorChars 无论空间多小，单字段内容不得低于该字符数（0 表示无下限）
	FloorChars int `json:"floor"`
	// CeilingChars 无论空间多大，单字段内容不得超过该字符数（0 表示无上限）
	CeilingChars int `json:"ceiling"`
	// BandPercent 缩放后 min/max 相对新 baseline 的带宽；0 时使用服务级默认
	BandPercent float64 `json:"band_percent,omitempty"`
}

// ComponentDefinition 可复用的 HTML 组件定义
type ComponentDefinition struct {
	ID          string   `json:"component_id"`
	Description string   `json:"description,omitempty"`
	UseCases    []string `json:"use_cases,omitempty"`
	// Template 含 {{slot}} 占位符的 HTML 模板
	Template string                      `json:"template"`
	Slots    map[string]SlotSpec         `json:"slots"`
	Variants map[string]ComponentVariant `json:"variants,omitempty"`
	Space    SpaceRequirements           `json:"space_requirements"`
	// IdealAspectRatio 单实例理想宽高比，排布择优使用；0 时取 4:3
	IdealAspectRatio float64          `json:"ideal_aspect_ratio,omitempty"`
	Arrangements     ArrangementRules `json:"arrangement_rules"`
	Scaling          ScalingRules     `json:"scaling_rules"`
}

var slotPlaceholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// TemplatePlaceholders 提取模板中引用的插槽名（去重）
func (d *ComponentDefinition) TemplatePlaceholders() []string {
	matches := slotPlaceholderRe.FindAllStringSubmatch(d.Template, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	sort.Strings(names)
	return names
}

// Validate 加载期校验：插槽与模板占位符必须一一对应，排布容量必须足够
func (d *ComponentDefinition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("component_id is empty")
	}
	if strings.TrimSpace(d.Template) == "" {
		return fmt.Errorf("component %s: template is empty", d.ID)
	}
	if len(d.Slots) == 0 {
		return fmt.Errorf("component %s: no slots declared", d.ID)
	}
	if d.Space.MinGridWidth <= 0 || d.Space.MinGridHeight <= 0 {
		return fmt.Errorf("component %s: space requirements must be positive, got %dx%d",
			d.ID, d.Space.MinGridWidth, d.Space.MinGridHeight)
	}

	placeholders := d.TemplatePlaceholders()
	referenced := make(map[string]struct{}, len(placeholders))
	for _, name := range placeholders {
		if _, ok := d.Slots[name]; !ok {
			return fmt.Errorf("component %s: template references undeclared slot %q", d.ID, name)
		}
		referenced[name] = struct{}{}
	}
	for name, slot := range d.Slots {
		s := slot
		if s.Name == "" {
			s.Name = name
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("component %s: %w", d.ID, err)
		}
		if _, ok := referenced[name]; !ok {
			return fmt.Errorf("component %s: slot %q is never referenced in template", d.ID, name)
		}
	}

	for key, arrangements := range d.Arrangements.ValidArrangements {
		var count int
		if _, err := fmt.Sscanf(key, "%d", &count); err != nil || count <= 0 {
			return fmt.Errorf("component %s: invalid arrangement count key %q", d.ID, key)
		}
		if len(arrangements) == 0 {
			return fmt.Errorf("component %s: empty arrangement list for count %d", d.ID, count)
		}
		for _, a := range arrangements {
			if a.Rows <= 0 || a.Columns <= 0 {
				return fmt.Errorf("component %s: invalid arrangement %s for count %d", d.ID, a, count)
			}
			if a.Capacity() < count {
				return fmt.Errorf("component %s: arrangement %s cannot hold %d instances", d.ID, a, count)
			}
		}
	}

	if d.Scaling.FloorChars < 0 || d.Scaling.CeilingChars < 0 {
		return fmt.Errorf("component %s: negative scaling bounds", d.ID)
	}
	if d.Scaling.CeilingChars > 0 && d.Scaling.FloorChars > d.Scaling.CeilingChars {
		return fmt.Errorf("component %s: scaling floor %d exceeds ceiling %d",
			d.ID, d.Scaling.FloorChars, d.Scaling.CeilingChars)
	}
	return nil
}

// AspectRatio 返回理想宽高比，缺省 4:3
func (d *ComponentDefinition) AspectRatio() float64 {
	if d.IdealAspectRatio > 0 {
		return d.IdealAspectRatio
	}
	return 4.0 / 3.0
}
