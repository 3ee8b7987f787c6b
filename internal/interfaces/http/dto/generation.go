package dto

import (
	"slide-content-api/internal/application/generation"
	"slide-content-api/internal/domain/entity"
)

// CanvasDTO 画布尺寸
type CanvasDTO struct {
	Width  int `json:"width" binding:"required,gt=0"`
	Height int `json:"height" binding:"required,gt=0"`
}

// TypographyRoleDTO 单角色排版参数
type TypographyRoleDTO struct {
	FontSize       float64 `json:"font_size" binding:"required,gt=0"`
	LineHeight     float64 `json:"line_height" binding:"required,gt=0"`
	CharWidthRatio float64 `json:"char_width_ratio,omitempty"`
}

// GenerateSlideRequest 幻灯片生成请求
type GenerateSlideRequest struct {
	PresentationID string    `json:"presentation_id,omitempty"`
	Narrative      string    `json:"narrative" binding:"required"`
	Topics         []string  `json:"topics,omitempty"`
	Canvas         CanvasDTO `json:"canvas" binding:"required"`

	Audience string `json:"audience,omitempty"`
	Purpose  string `json:"purpose,omitempty"`

	// Typography 按语义角色覆盖排版参数；缺省角色走服务兜底表
	Typography map[string]TypographyRoleDTO `json:"typography,omitempty"`

	// StylingMode 输出风格，缺省 css_classes
	StylingMode string `json:"styling_mode,omitempty" binding:"omitempty,oneof=inline_styles css_classes"`

	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// SectionDTO 响应中的单分区内容
type SectionDTO struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// GenerateSlideResponse 幻灯片生成响应
type GenerateSlideResponse struct {
	PresentationID string                `json:"presentation_id,omitempty"`
	Layout         string                `json:"layout"`
	Sections       []SectionDTO          `json:"sections"`
	HTML           string                `json:"html"`
	Budget         *entity.SpaceBudget   `json:"budget,omitempty"`
	Meta           entity.GenerationMeta `json:"meta"`
}

// ToSlideRequest 转换为应用层请求
func (r *GenerateSlideRequest) ToSlideRequest() *generation.SlideRequest {
	var typography entity.TypographySpec
	if len(r.Typography) > 0 {
		typography.Roles = make(map[string]entity.RoleTypography, len(r.Typography))
		for role, t := range r.Typography {
			typography.Roles[role] = entity.RoleTypography{
				FontSize:       t.FontSize,
				LineHeight:     t.LineHeight,
				CharWidthRatio: t.CharWidthRatio,
			}
		}
	}

	return &generation.SlideRequest{
		Narrative: r.Narrative,
		Topics:    r.Topics,
		Canvas:    entity.Canvas{Width: r.Canvas.Width, Height: r.Canvas.Height},
		Context: entity.ContentContext{
			Audience: entity.Audience(r.Audience),
			Purpose:  entity.Purpose(r.Purpose),
		},
		Typography:  typography,
		StylingMode: generation.StylingMode(r.StylingMode),
		Provider:    r.Provider,
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
}

// FromSlideResult 转换应用层结果为响应
func FromSlideResult(presentationID string, result *generation.SlideResult) GenerateSlideResponse {
	sections := make([]SectionDTO, 0, len(result.Sections))
	for _, s := range result.Sections {
		sections = append(sections, SectionDTO{ID: s.ID, Role: s.Role, Text: s.Text})
	}
	return GenerateSlideResponse{
		PresentationID: presentationID,
		Layout:         string(result.Layout),
		Sections:       sections,
		HTML:           result.HTML,
		Budget:         result.Budget,
		Meta:           result.Meta,
	}
}
