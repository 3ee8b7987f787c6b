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

// SingleStepChain 单步回退生成链：宽松提示，无预算约束
type SingleStepChain struct {
	factory workflowport.ChatModelFactory
}

func NewSingleStepChain(factory workflowport.ChatModelFactory) *SingleStepChain {
	return &SingleStepChain{factory: factory}
}

func (c *SingleStepChain) Invoke(ctx context.Context, in *wfmodel.SingleStepInput) (*wfmodel.SingleStepOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Narrative) == "" {
		return nil, fmt.Errorf("narrative is required")
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptSingleStepSlideV1)
	if err != nil {
		return nil, err
	}

	history := strings.TrimSpace(in.HistoryContext)
	if history == "" {
		history = "(none)"
	}

	vars := map[string]any{
		"narrative":       wfnode.TruncateByRunes(strings.TrimSpace(in.Narrative), 8000),
		"topics_block":    wfnode.BuildTopicsBlock(in.Topics),
		"audience":        in.Audience,
		"purpose":         in.Purpose,
		"canvas_width":    in.CanvasWidth,
		"canvas_height":   in.CanvasHeight,
		"history_context": wfnode.TruncateByRunes(history, 4000),
	}

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "single_step_generate", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildSingleStepModelOptions(in, true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		outMsg, err = chatModel.Generate(ctx, msgs, buildSingleStepModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	raw := wfnode.ExtractJSONObject(outMsg.Content)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty single-step output")
	}

	var parsed struct {
		Layout   string                   `json:"layout"`
		Sections []wfmodel.SectionContent `json:"sections"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse single-step json: %w", err)
	}
	if len(parsed.Sections) == 0 {
		return nil, fmt.Errorf("single-step output has no sections")
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

	return &wfmodel.SingleStepOutput{
		Sections: parsed.Sections,
		Layout:   parsed.Layout,
		Raw:      raw,
		Meta:     meta,
	}, nil
}

func buildSingleStepModelOptions(in *wfmodel.SingleStepInput, enableSchema bool) []model.Option {
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
					"name":   "single_step_slide",
					"strict": false,
					"schema": singleStepJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func singleStepJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"layout", "sections"},
		"properties": map[string]any{
			"layout": map[string]any{"type": "string"},
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
