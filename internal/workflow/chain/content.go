package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	llmctx "slide-content-api/internal/domain/service"
	wfmodel "slide-content-api/internal/workflow/model"
	wfnode "slide-content-api/internal/workflow/node"
	workflowport "slide-content-api/internal/workflow/port"
	workflowprompt "slide-content-api/internal/workflow/prompt"
)

// ContentChain Phase-3 预算约束内容生成链
type ContentChain struct {
	factory workflowport.ChatModelFactory
}

func NewContentChain(factory workflowport.ChatModelFactory) *ContentChain {
	return &ContentChain{factory: factory}
}

func (c *ContentChain) Invoke(ctx context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.ContentGenerateOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if len(in.Sections) == 0 {
		return nil, fmt.Errorf("no budgeted sections")
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptSlideContentV1)
	if err != nil {
		return nil, err
	}

	history := strings.TrimSpace(in.HistoryContext)
	if history == "" {
		history = "(none)"
	}

	vars := map[string]any{
		"narrative":         wfnode.TruncateByRunes(strings.TrimSpace(in.Narrative), 8000),
		"topics_block":      wfnode.BuildTopicsBlock(in.Topics),
		"audience":          in.Audience,
		"purpose":           in.Purpose,
		"tone_register":     in.ToneRegister,
		"structure_pattern": in.StructurePattern,
		"max_bullets":       in.MaxBullets,
		"layout":            in.Layout,
		"budget_block":      wfnode.BuildBudgetBlock(in.Sections),
		"history_context":   wfnode.TruncateByRunes(history, 4000),
	}

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "slide_content_generate", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildContentModelOptions(in, true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		outMsg, err = chatModel.Generate(ctx, msgs, buildContentModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	raw := wfnode.ExtractJSONObject(outMsg.Content)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty slide content output")
	}

	var parsed struct {
		Sections []wfmodel.SectionContent `json:"sections"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse slide content json: %w", err)
	}
	if len(parsed.Sections) == 0 {
		return nil, fmt.Errorf("slide content has no sections")
	}

	meta := wfmodel.LLMUsageMeta{
		Provider:    strings.TrimSpace(in.Provider),
		Model:       strings.TrimSpace(in.Model),
		GeneratedAt: time.Now().UTC(),
	}
	if in.Temperature != nil {
		meta.Temperature = float64(*in.Temperature)
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}

	return &wfmodel.ContentGenerateOutput{
		Sections: parsed.Sections,
		Raw:      raw,
		Meta:     meta,
	}, nil
}

func buildContentModelOptions(in *wfmodel.ContentGenerateInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in == nil {
		return opts
	}
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "slide_content",
					"strict": false,
					"schema": sectionContentJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func sectionContentJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"sections"},
		"properties": map[string]any{
			"sections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"id", "text"},
					"properties": map[string]any{
						"id":   map[string]any{"type": "string"},
						"text": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}
