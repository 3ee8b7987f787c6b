// Package entity 定义领域实体
package entity

import "fmt"

// Canvas 画布尺寸（像素）
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate 校验画布尺寸为正
func (c Canvas) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("canvas dimensions must be positive, got %dx%d", c.Width, c.Height)
	}
	return nil
}

// RoleTypography 某语义角色的排版参数
type RoleTypography struct {
	// FontSize 字号（像素）
	FontSize float64 `json:"font_size"`
	// LineHeight 行高倍数
	LineHeight float64 `json:"line_height"`
	// CharWidthRatio 平均字符宽度相对字号的比例；0 时取 DefaultCharWidthRatio
	CharWidthRatio float64 `json:"char_width_ratio,omitempty"`
}

// DefaultCharWidthRatio 无衬线比例字体的平均字符宽度比例
const DefaultCharWidthRatio = 0.55

// Valid 排版参数是否可用
func (t RoleTypography) Valid() bool {
	return t.FontSize > 0 && t.LineHeight > 0
}

// EffectiveCharWidthRatio 返回字符宽度比例，带默认值
func (t RoleTypography) EffectiveCharWidthRatio() float64 {
	if t.CharWidthRatio > 0 {
		return t.CharWidthRatio
	}
	return DefaultCharWidthRatio
}

// TypographySpec 调用方按语义角色提供的排版规格
type TypographySpec struct {
	Roles map[string]RoleTypography `json:"roles"`
}

// fallbackTypography 文档化的兜底排版表；仅当调用方未提供对应角色时使用
var fallbackTypography = map[string]RoleTypography{
	"title":    {FontSize: 40, LineHeight: 1.2},
	"subtitle": {FontSize: 28, LineHeight: 1.3},
	"body":     {FontSize: 24, LineHeight: 1.4},
	"label":    {FontSize: 18, LineHeight: 1.3},
	"caption":  {FontSize: 14, LineHeight: 1.3},
}

// Lookup 按角色查找排版参数；调用方规格优先，其次兜底表
func (s TypographySpec) Lookup(role string) (RoleTypography, bool) {
	if t, ok := s.Roles[role]; ok && t.Valid() {
		return t, true
	}
	if t, ok := fallbackTypography[role]; ok {
		return t, true
	}
	return RoleTypography{}, false
}

// SectionBudget 单个分区的字符/行预算及其推导依据
type SectionBudget struct {
	SectionID  string  `json:"section_id"`
	Role       string  `json:"role"`
	MaxChars   int     `json:"max_chars"`
	MaxLines   int     `json:"max_lines"`
	FontSize   float64 `json:"font_size"`
	LineHeight float64 `json:"line_height"`
	// WidthPx/HeightPx 分区获得的可用空间切片
	WidthPx  float64 `json:"width_px"`
	HeightPx float64 `json:"height_px"`
}

// SpaceBudget Phase-2 的确定性空间预算
type SpaceBudget struct {
	Canvas       Canvas          `json:"canvas"`
	UsableWidth  float64         `json:"usable_width"`
	UsableHeight float64         `json:"usable_height"`
	Sections     []SectionBudget `json:"sections"`
	TotalChars   int             `json:"total_chars"`
	TotalLines   int             `json:"total_lines"`
}

// SectionByID 按分区 ID 查找预算
func (b *SpaceBudget) SectionByID(id string) (SectionBudget, bool) {
	for _, s := range b.Sections {
		if s.SectionID == id {
			return s, true
		}
	}
	return SectionBudget{}, false
}
