// Package entity 定义领域实体
package entity

import "time"

// ScaledSlotLimits 约束缩放后的单插槽字符限制
type ScaledSlotLimits struct {
	Slot          string  `json:"slot"`
	Role          SlotRole `json:"role"`
	MinChars      int     `json:"min"`
	BaselineChars int     `json:"baseline"`
	MaxChars      int     `json:"max"`
	ScaleFactor   float64 `json:"scale_factor"`
}

// InstanceGeometry 一个组件实例在网格中的具体几何位置
type InstanceGeometry struct {
	Index  int `json:"index"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ComponentInstance 填充完成的单个组件实例
type ComponentInstance struct {
	Index    int               `json:"index"`
	Slots    map[string]string `json:"slots"`
	HTML     string            `json:"html"`
	Geometry InstanceGeometry  `json:"geometry"`
}

// GenerationPhase 多步生成的阶段标识
type GenerationPhase string

const (
	PhaseStructure GenerationPhase = "structure_analysis"
	PhaseBudget    GenerationPhase = "space_calculation"
	PhaseContent   GenerationPhase = "content_generation"
	PhaseFormat    GenerationPhase = "html_formatting"
)

// LLMUsage 单次 LLM 调用的用量
type LLMUsage struct {
	Provider         string `json:"provider,omitempty"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// OverflowWarning 生成内容超出预算的非致命警告
type OverflowWarning struct {
	SectionID       string  `json:"section_id"`
	BudgetChars     int     `json:"budget_chars"`
	GeneratedChars  int     `json:"generated_chars"`
	VariancePercent float64 `json:"variance_percent"`
	WithinTolerance bool    `json:"within_tolerance"`
}

// GenerationMeta 生成结果的元数据；调用方据此区分高置信预算输出与回退输出
type GenerationMeta struct {
	Mode              string            `json:"mode"`
	FallbackUsed      bool              `json:"fallback_used"`
	FailedPhase       GenerationPhase   `json:"failed_phase,omitempty"`
	FailureReason     string            `json:"failure_reason,omitempty"`
	Layout            LayoutStructure   `json:"layout,omitempty"`
	BudgetUtilization float64           `json:"budget_utilization,omitempty"`
	Overflows         []OverflowWarning `json:"overflows,omitempty"`
	Usage             []LLMUsage        `json:"usage,omitempty"`
	GeneratedAt       time.Time         `json:"generated_at"`
	DurationMs        int64             `json:"duration_ms"`
}

// AssemblyResult 组件装配路径的输出
type AssemblyResult struct {
	ComponentID string              `json:"component_id"`
	Variant     string              `json:"variant,omitempty"`
	Arrangement Arrangement         `json:"arrangement"`
	Instances   []ComponentInstance `json:"instances"`
	HTML        string              `json:"html"`
	Meta        GenerationMeta      `json:"meta"`
}

// SlideSummary 演示文稿历史中一张幻灯片的摘要
type SlideSummary struct {
	SlideNumber int       `json:"slide_number"`
	Topic       string    `json:"topic"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
}
