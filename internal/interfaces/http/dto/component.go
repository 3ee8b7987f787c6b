package dto

import (
	"slide-content-api/internal/application/generation"
	"slide-content-api/internal/domain/entity"
)

// ComponentSummary 组件列表项
type ComponentSummary struct {
	ID          string   `json:"component_id"`
	Description string   `json:"description,omitempty"`
	UseCases    []string `json:"use_cases,omitempty"`
	// SupportedCounts 该组件声明过排布的实例数
	SupportedCounts []int    `json:"supported_counts"`
	Variants        []string `json:"variants,omitempty"`
}

// FromComponentDefinition 转换组件定义为列表项
func FromComponentDefinition(def *entity.ComponentDefinition) ComponentSummary {
	variants := make([]string, 0, len(def.Variants))
	for id := range def.Variants {
		variants = append(variants, id)
	}
	return ComponentSummary{
		ID:              def.ID,
		Description:     def.Description,
		UseCases:        def.UseCases,
		SupportedCounts: def.Arrangements.SupportedCounts(),
		Variants:        variants,
	}
}

// AssembleComponentRequest 组件装配请求
type AssembleComponentRequest struct {
	Variant string `json:"variant,omitempty"`
	Count   int    `json:"count" binding:"required,gt=0"`

	Region RegionDTO `json:"region" binding:"required"`

	Narrative string   `json:"narrative" binding:"required"`
	Topics    []string `json:"topics,omitempty"`
	Audience  string   `json:"audience,omitempty"`
	Purpose   string   `json:"purpose,omitempty"`

	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// RegionDTO 装配目标区域：网格单元数用于缩放，像素尺寸用于几何
type RegionDTO struct {
	GridWidth  int `json:"grid_width" binding:"required,gt=0"`
	GridHeight int `json:"grid_height" binding:"required,gt=0"`
	WidthPx    int `json:"width_px" binding:"required,gt=0"`
	HeightPx   int `json:"height_px" binding:"required,gt=0"`
}

// ToAssembleRequest 转换为应用层请求
func (r *AssembleComponentRequest) ToAssembleRequest(componentID string) *generation.AssembleRequest {
	return &generation.AssembleRequest{
		ComponentID:      componentID,
		Variant:          r.Variant,
		Count:            r.Count,
		RegionGridWidth:  r.Region.GridWidth,
		RegionGridHeight: r.Region.GridHeight,
		RegionWidthPx:    r.Region.WidthPx,
		RegionHeightPx:   r.Region.HeightPx,
		Narrative:        r.Narrative,
		Topics:           r.Topics,
		Context: entity.ContentContext{
			Audience: entity.Audience(r.Audience),
			Purpose:  entity.Purpose(r.Purpose),
		},
		Provider:    r.Provider,
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
}

// ReloadResponse 注册表重载响应
type ReloadResponse struct {
	Components int    `json:"components"`
	LoadedAt   string `json:"loaded_at"`
}
