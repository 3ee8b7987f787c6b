package model

import (
	"slide-content-api/internal/domain/entity"
)

// StructureAnalyzeInput Phase-1 结构分析链的输入
type StructureAnalyzeInput struct {
	Narrative string
	Topics    []string

	Audience         string
	Purpose          string
	ToneRegister     string
	StructurePattern string

	CanvasWidth  int
	CanvasHeight int
	MaxSections  int

	// HistoryContext 演示文稿历史摘要，仅作提示上下文
	HistoryContext string

	// StrictJSON 重试时附加“仅返回 JSON”的强约束
	StrictJSON bool

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// StructureAnalyzeOutput Phase-1 输出
type StructureAnalyzeOutput struct {
	Plan *entity.StructurePlan
	Raw  string
	Meta LLMUsageMeta
}

// SectionBudgetVar 提示模板中单分区预算的展开形式
type SectionBudgetVar struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	MaxChars int    `json:"max_chars"`
	MaxLines int    `json:"max_lines"`
}

// ContentGenerateInput Phase-3 预算约束内容生成链的输入
type ContentGenerateInput struct {
	Narrative string
	Topics    []string

	Audience         string
	Purpose          string
	ToneRegister     string
	StructurePattern string
	MaxBullets       int

	Layout         string
	Sections       []SectionBudgetVar
	HistoryContext string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// SectionContent 单分区生成的内容
type SectionContent struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ContentGenerateOutput Phase-3 输出
type ContentGenerateOutput struct {
	Sections []SectionContent
	Raw      string
	Meta     LLMUsageMeta
}

// SingleStepInput 单步回退生成的输入；无预算约束，仅宽松提示
type SingleStepInput struct {
	Narrative string
	Topics    []string

	Audience string
	Purpose  string

	CanvasWidth  int
	CanvasHeight int

	HistoryContext string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// SingleStepOutput 单步回退生成的输出
type SingleStepOutput struct {
	Sections []SectionContent
	Layout   string
	Raw      string
	Meta     LLMUsageMeta
}

// SlotLimitVar 提示模板中单插槽限制的展开形式
type SlotLimitVar struct {
	Slot     string `json:"slot"`
	Role     string `json:"role"`
	MinChars int    `json:"min"`
	MaxChars int    `json:"max"`
}

// ComponentContentInput 组件装配路径的内容生成输入
type ComponentContentInput struct {
	ComponentID   string
	Description   string
	InstanceCount int
	SlotLimits    []SlotLimitVar

	Narrative string
	Topics    []string
	Audience  string
	Purpose   string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// InstanceSlots 单实例各插槽生成的文本
type InstanceSlots struct {
	Index int               `json:"index"`
	Slots map[string]string `json:"slots"`
}

// ComponentContentOutput 组件装配路径的内容生成输出
type ComponentContentOutput struct {
	Instances []InstanceSlots
	Raw       string
	Meta      LLMUsageMeta
}
