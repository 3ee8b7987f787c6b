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

// ComponentContentChain 组件装配路径的插槽内容生成链
type ComponentContentChain struct {
	factory workflowport.ChatModelFactory
}

func NewComponentContentChain(factory workflowport.ChatModelFactory) *ComponentContentChain {
	return &ComponentContentChain{factory: factory}
}

func (c *ComponentContentChain) Invoke(ctx context.Context, in *wfmodel.ComponentContentInput) (*wfmodel.ComponentContentOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if in.InstanceCount <= 0 {
		return nil, fmt.Errorf("instance count must be positive")
	}
	if len(in.SlotLimits) == 0 {
		return nil, fmt.Errorf("no slot limits")
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptComponentContentV1)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{
		"component_id":          strings.TrimSpace(in.ComponentID),
		"component_description": strings.TrimSpace(in.Description),
		"narrative":             wfnode.TruncateByRunes(strings.TrimSpace(in.Narrative), 8000),
		"topics_block":          wfnode.BuildTopicsBlock(in.Topics),
		"audience":              in.Audience,
		"purpose":               in.Purpose,
		"slot_limits_block":     wfnode.BuildSlotLimitsBlock(in.SlotLimits),
		"instance_count":        in.InstanceCount,
		"max_index":             in.InstanceCount - 1,
	}

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "component_content", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildComponentModelOptions(in, true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		outMsg, err = chatModel.Generate(ctx, msgs, buildComponentModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	raw := wfnode.ExtractJSONObject(outMsg.Content)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty component content output")
	}

	var parsed struct {
		Instances []wfmodel.InstanceSlots `json:"instances"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse component content json: %w", err)
	}
	if len(parsed.Instances) == 0 {
		return nil, fmt.Errorf("component content has no instances")
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

	return &wfmodel.ComponentContentOutput{
		Instances: parsed.Instances,
		Raw:       raw,
		Meta:      meta,
	}, nil
}

func buildComponentModelOptions(in *wfmodel.ComponentContentInput, enableSchema bool) []model.Option {
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
					"name":   "component_content",
					"strict": false,
					"schema": componentContentJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func componentContentJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"instances"},
		"properties": map[string]any{
			"instances": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"index", "slots"},
					"properties": map[string]any{
						"index": map[string]any{"type": "integer"},
						"slots": map[string]any{
							"type":                 "object",
							"additionalProperties": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	}
}
