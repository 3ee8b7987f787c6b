// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strings"
)

// LayoutStructure 幻灯片整体布局结构
type LayoutStructure string

const (
	LayoutSingleColumn LayoutStructure = "single_column"
	LayoutTwoColumn    LayoutStructure = "two_column"
	LayoutThreeColumn  LayoutStructure = "three_column"
)

// ColumnCount 布局隐含的列数
func (l LayoutStructure) ColumnCount() int {
	switch l {
	case LayoutTwoColumn:
		return 2
	case LayoutThreeColumn:
		return 3
	default:
		return 1
	}
}

// Valid 是否为已知布局
func (l LayoutStructure) Valid() bool {
	switch l {
	case LayoutSingleColumn, LayoutTwoColumn, LayoutThreeColumn:
		return true
	}
	return false
}

// SectionPlan 结构规划中的一个内容分区
type SectionPlan struct {
	ID          string  `json:"id"`
	Role        string  `json:"role"`
	Weight      float64 `json:"weight"`
	ContentType string  `json:"content_type,omitempty"`
}

// StructurePlan Phase-1 的结构规划结果；每次请求新建，不持久化
type StructurePlan struct {
	Layout    LayoutStructure `json:"layout"`
	Sections  []SectionPlan   `json:"sections"`
	Rationale string          `json:"rationale,omitempty"`
}

// Validate 校验规划的基本形状
func (p *StructurePlan) Validate() error {
	if !p.Layout.Valid() {
		return fmt.Errorf("unknown layout structure: %q", p.Layout)
	}
	if len(p.Sections) == 0 {
		return fmt.Errorf("structure plan has no sections")
	}
	for i := range p.Sections {
		if strings.TrimSpace(p.Sections[i].ID) == "" {
			return fmt.Errorf("section %d has empty id", i)
		}
		if p.Sections[i].Weight < 0 {
			return fmt.Errorf("section %s has negative weight", p.Sections[i].ID)
		}
	}
	return nil
}

// NormalizeWeights 将分区权重归一化为总和 1；全零权重视为均分
func (p *StructurePlan) NormalizeWeights() {
	var sum float64
	for i := range p.Sections {
		sum += p.Sections[i].Weight
	}
	if sum <= 0 {
		equal := 1.0 / float64(len(p.Sections))
		for i := range p.Sections {
			p.Sections[i].Weight = equal
		}
		return
	}
	for i := range p.Sections {
		p.Sections[i].Weight /= sum
	}
}

// Audience 受众维度
type Audience string

const (
	AudienceProfessional Audience = "professional"
	AudienceExecutive    Audience = "executive"
	AudienceGeneral      Audience = "general"
)

// Purpose 目的维度
type Purpose string

const (
	PurposeInform   Purpose = "inform"
	PurposePersuade Purpose = "persuade"
	PurposeInstruct Purpose = "instruct"
)

// ContentContext 调优 LLM 提示的受众/目的维度，与视觉主题无关
type ContentContext struct {
	Audience Audience `json:"audience"`
	Purpose  Purpose  `json:"purpose"`
}

// Normalize 应用默认值 (audience=professional, purpose=inform)
func (c *ContentContext) Normalize() {
	switch c.Audience {
	case AudienceProfessional, AudienceExecutive, AudienceGeneral:
	default:
		c.Audience = AudienceProfessional
	}
	switch c.Purpose {
	case PurposeInform, PurposePersuade, PurposeInstruct:
	default:
		c.Purpose = PurposeInform
	}
}

// MaxBullets 受众决定的要点数上限
func (c ContentContext) MaxBullets() int {
	switch c.Audience {
	case AudienceExecutive:
		return 3
	case AudienceGeneral:
		return 6
	default:
		return 5
	}
}

// ToneRegister 受众决定的语体
func (c ContentContext) ToneRegister() string {
	switch c.Audience {
	case AudienceExecutive:
		return "concise, outcome-oriented"
	case AudienceGeneral:
		return "plain, approachable"
	default:
		return "precise, domain-aware"
	}
}

// StructurePattern 目的决定的结构模式
func (c ContentContext) StructurePattern() string {
	switch c.Purpose {
	case PurposePersuade:
		return "claim-evidence-impact"
	case PurposeInstruct:
		return "step-by-step"
	default:
		return "topic-detail"
	}
}
