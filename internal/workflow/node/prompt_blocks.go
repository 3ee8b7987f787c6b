package node

import (
	"fmt"
	"strings"

	wfmodel "slide-content-api/internal/workflow/model"
)

// BuildBudgetBlock 将分区预算展开为提示文本块
func BuildBudgetBlock(sections []wfmodel.SectionBudgetVar) string {
	if len(sections) == 0 {
		return ""
	}
	lines := make([]string, 0, len(sections)+1)
	lines = append(lines, "Hard budgets per section (do not exceed):")
	for _, s := range sections {
		lines = append(lines, fmt.Sprintf("- %s (%s): at most %d characters, at most %d lines", s.ID, s.Role, s.MaxChars, s.MaxLines))
	}
	return strings.Join(lines, "\n")
}

// BuildSlotLimitsBlock 将插槽限制展开为提示文本块
func BuildSlotLimitsBlock(limits []wfmodel.SlotLimitVar) string {
	if len(limits) == 0 {
		return ""
	}
	lines := make([]string, 0, len(limits)+1)
	lines = append(lines, "Character limits per slot:")
	for _, l := range limits {
		lines = append(lines, fmt.Sprintf("- %s (%s): %d-%d characters", l.Slot, l.Role, l.MinChars, l.MaxChars))
	}
	return strings.Join(lines, "\n")
}

// BuildTopicsBlock 将主题列表展开为提示文本块
func BuildTopicsBlock(topics []string) string {
	cleaned := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		cleaned = append(cleaned, "- "+t)
	}
	if len(cleaned) == 0 {
		return ""
	}
	return strings.Join(cleaned, "\n")
}
