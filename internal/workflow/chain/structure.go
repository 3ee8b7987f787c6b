package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"slide-content-api/internal/domain/entity"
	llmctx "slide-content-api/internal/domain/service"
	wfmodel "slide-content-api/internal/workflow/model"
	wfnode "slide-content-api/internal/workflow/node"
	workflowport "slide-content-api/internal/workflow/port"
	workflowprompt "slide-content-api/internal/workflow/prompt"
)

// StructureChain Phase-1 结构分析链：一次 LLM 调用产出结构规划
type StructureChain struct {
	factory workflowport.ChatModelFactory
}

func NewStructureChain(factory workflowport.ChatModelFactory) *StructureChain {
	return &StructureChain{factory: factory}
}

var defaultPromptRegistry = workflowprompt.NewRegistry()

func (c *StructureChain) Invoke(ctx context.Context, in *wfmodel.StructureAnalyzeInput) (*wfmodel.StructureAnalyzeOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Narrative) == "" {
		return nil, fmt.Errorf("narrative is required")
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptStructurePlanV1)
	if err != nil {
		return nil, err
	}

	strictBlock := ""
	if in.StrictJSON {
		strictBlock = "- CRITICAL: your previous answer was not valid JSON. Return ONLY the JSON object, no prose, no code fences."
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
		"canvas_width":      in.CanvasWidth,
		"canvas_height":     in.CanvasHeight,
		"max_sections":      in.MaxSections,
		"history_context":   wfnode.TruncateByRunes(history, 4000),
		"strict_block":      strictBlock,
	}

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "structure_analyze", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildStructureModelOptions(in, true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		outMsg, err = chatModel.Generate(ctx, msgs, buildStructureModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	raw := wfnode.ExtractJSONObject(outMsg.Content)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty structure plan output")
	}

	var plan entity.StructurePlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse structure plan json: %w", err)
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

	return &wfmodel.StructureAnalyzeOutput{
		Plan: &plan,
		Raw:  raw,
		Meta: meta,
	}, nil
}

func buildStructureModelOptions(in *wfmodel.StructureAnalyzeInput, enableSchema bool) []model.Option {
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
					"name":   "structure_plan",
					"strict": false,
					"schema": structurePlanJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func structurePlanJSONSchema() map[string]any {
	// 说明：schema 以“最小可用”为目标，避免过度约束导致模型输出失败。
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"layout", "sections"},
		"properties": map[string]any{
			"layout": map[string]any{
				"type": "string",
				"enum": []any{
					string(entity.LayoutSingleColumn),
					string(entity.LayoutTwoColumn),
					string(entity.LayoutThreeColumn),
				},
			},
			"sections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"id", "role", "weight"},
					"properties": map[string]any{
						"id":           map[string]any{"type": "string"},
						"role":         map[string]any{"type": "string"},
						"weight":       map[string]any{"type": "number"},
						"content_type": map[string]any{"type": "string"},
					},
				},
			},
			"rationale": map[string]any{"type": "string"},
		},
	}
}
