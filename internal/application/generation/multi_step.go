package generation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"slide-content-api/internal/config"
	"slide-content-api/internal/domain/entity"
	wfmodel "slide-content-api/internal/workflow/model"
	apperrors "slide-content-api/pkg/errors"
	"slide-content-api/pkg/logger"
	"slide-content-api/pkg/metrics"
)

// 生成模式标签
const (
	ModeMultiStep  = "multi_step"
	ModeSingleStep = "single_step"
)

// SlideRequest 一次幻灯片生成请求
type SlideRequest struct {
	Narrative  string
	Topics     []string
	Canvas     entity.Canvas
	Context    entity.ContentContext
	Typography entity.TypographySpec

	// HistoryContext 演示文稿历史摘要，空串表示无历史
	HistoryContext string

	// StylingMode 输出风格；空串取 css_classes
	StylingMode StylingMode

	// Provider/Model 为空时走配置默认
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	// MaxSections Phase-1 提示中的分区数上限；0 取默认 5
	MaxSections int
}

// SlideResult 幻灯片生成结果
type SlideResult struct {
	Layout   entity.LayoutStructure `json:"layout"`
	Sections []SectionRender        `json:"sections"`
	HTML     string                 `json:"html"`
	Budget   *entity.SpaceBudget    `json:"budget,omitempty"`
	Meta     entity.GenerationMeta  `json:"meta"`
}

// MultiStepGenerator 三阶段生成流水线：结构分析 → 空间预算 → 约束内容生成。
// 任一 LLM 阶段失败时回退到单步生成，回退结果在元数据中显式标记。
type MultiStepGenerator struct {
	cfg config.GenerationConfig

	analyzer   *StructureAnalyzer
	calculator *SpaceCalculator
	content    ContentInvoker
	fallback   SingleStepInvoker
	formatter  *HTMLFormatter
}

func NewMultiStepGenerator(
	cfg config.GenerationConfig,
	analyzer *StructureAnalyzer,
	calculator *SpaceCalculator,
	content ContentInvoker,
	fallback SingleStepInvoker,
	formatter *HTMLFormatter,
) *MultiStepGenerator {
	return &MultiStepGenerator{
		cfg:        cfg,
		analyzer:   analyzer,
		calculator: calculator,
		content:    content,
		fallback:   fallback,
		formatter:  formatter,
	}
}

// Generate 执行完整流水线。确定性阶段的失败（画布非法、排版缺失）同步返回，
// 不触发回退；仅 LLM 阶段的失败走单步回退。
func (g *MultiStepGenerator) Generate(ctx context.Context, req *SlideRequest) (*SlideResult, error) {
	start := time.Now()

	if req == nil {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "request is nil")
	}
	if strings.TrimSpace(req.Narrative) == "" {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "narrative is required")
	}
	if err := req.Canvas.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidCanvas, "invalid canvas")
	}
	if !req.StylingMode.Valid() {
		return nil, apperrors.Newf(apperrors.CodeValidationFailed, "unknown styling mode %q", req.StylingMode)
	}
	req.Context.Normalize()

	result, err := g.generateMultiStep(ctx, req, start)
	if err == nil {
		g.observe(result, nil)
		return result, nil
	}
	if !apperrors.IsGenerationError(err) {
		// 配置/校验错误不可通过重试消除，直接上抛
		g.observe(nil, err)
		return nil, err
	}

	failedPhase := phaseOf(err)
	logger.Warn(ctx, "multi-step generation failed, falling back to single-step",
		"failed_phase", string(failedPhase), "error", err.Error())
	metrics.FallbackTotal.WithLabelValues(string(failedPhase)).Inc()

	result, fbErr := g.generateFallback(ctx, req, failedPhase, err, start)
	if fbErr != nil {
		wrapped := apperrors.Wrap(fbErr, apperrors.CodeFallbackFailed,
			"single-step fallback failed").WithDetail(err.Error())
		g.observe(nil, wrapped)
		return nil, wrapped
	}
	g.observe(result, nil)
	return result, nil
}

// generateMultiStep 三阶段主路径
func (g *MultiStepGenerator) generateMultiStep(ctx context.Context, req *SlideRequest, start time.Time) (*SlideResult, error) {
	maxSections := req.MaxSections
	if maxSections <= 0 {
		maxSections = 5
	}

	// Phase 1：结构分析
	phaseCtx, cancel := g.phaseContext(ctx)
	structOut, err := g.analyzer.Analyze(phaseCtx, &wfmodel.StructureAnalyzeInput{
		Narrative:        req.Narrative,
		Topics:           req.Topics,
		Audience:         string(req.Context.Audience),
		Purpose:          string(req.Context.Purpose),
		ToneRegister:     req.Context.ToneRegister(),
		StructurePattern: req.Context.StructurePattern(),
		CanvasWidth:      req.Canvas.Width,
		CanvasHeight:     req.Canvas.Height,
		MaxSections:      maxSections,
		HistoryContext:   req.HistoryContext,
		Provider:         req.Provider,
		Model:            req.Model,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
	})
	cancel()
	if err != nil {
		return nil, phaseError(entity.PhaseStructure, err)
	}
	plan := structOut.Plan

	// Phase 2：确定性空间预算
	budget, err := g.calculator.Calculate(req.Canvas, plan, req.Typography)
	if err != nil {
		// 确定性阶段只产出配置/校验错误
		return nil, err
	}

	// Phase 3：预算约束内容生成
	budgetVars := make([]wfmodel.SectionBudgetVar, 0, len(budget.Sections))
	for _, s := range budget.Sections {
		budgetVars = append(budgetVars, wfmodel.SectionBudgetVar{
			ID:       s.SectionID,
			Role:     s.Role,
			MaxChars: s.MaxChars,
			MaxLines: s.MaxLines,
		})
	}

	phaseCtx, cancel = g.phaseContext(ctx)
	contentOut, err := g.content.Invoke(phaseCtx, &wfmodel.ContentGenerateInput{
		Narrative:        req.Narrative,
		Topics:           req.Topics,
		Audience:         string(req.Context.Audience),
		Purpose:          string(req.Context.Purpose),
		ToneRegister:     req.Context.ToneRegister(),
		StructurePattern: req.Context.StructurePattern(),
		MaxBullets:       req.Context.MaxBullets(),
		Layout:           string(plan.Layout),
		Sections:         budgetVars,
		HistoryContext:   req.HistoryContext,
		Provider:         req.Provider,
		Model:            req.Model,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
	})
	cancel()
	if err != nil {
		return nil, phaseError(entity.PhaseContent, err)
	}

	sections, err := alignSections(plan, contentOut.Sections)
	if err != nil {
		return nil, phaseError(entity.PhaseContent, err)
	}

	// Phase 4：HTML 渲染
	html, err := g.formatter.RenderSlide(plan.Layout, sections, req.StylingMode)
	if err != nil {
		return nil, phaseError(entity.PhaseFormat,
			apperrors.Wrap(err, apperrors.CodeGenerationFailed, "rendering failed"))
	}

	overflows, utilization := g.overflowReport(budget, sections)

	return &SlideResult{
		Layout:   plan.Layout,
		Sections: sections,
		HTML:     html,
		Budget:   budget,
		Meta: entity.GenerationMeta{
			Mode:              ModeMultiStep,
			Layout:            plan.Layout,
			BudgetUtilization: utilization,
			Overflows:         overflows,
			Usage: []entity.LLMUsage{
				usageFromMeta(structOut.Meta),
				usageFromMeta(contentOut.Meta),
			},
			GeneratedAt: time.Now().UTC(),
			DurationMs:  time.Since(start).Milliseconds(),
		},
	}, nil
}

// generateFallback 单步回退路径。输出经由同一渲染器，调用方拿到的
// HTML 结构与主路径一致，但元数据中 fallback_used 为真。
func (g *MultiStepGenerator) generateFallback(ctx context.Context, req *SlideRequest, failedPhase entity.GenerationPhase, cause error, start time.Time) (*SlideResult, error) {
	phaseCtx, cancel := g.phaseContext(ctx)
	defer cancel()

	out, err := g.fallback.Invoke(phaseCtx, &wfmodel.SingleStepInput{
		Narrative:      req.Narrative,
		Topics:         req.Topics,
		Audience:       string(req.Context.Audience),
		Purpose:        string(req.Context.Purpose),
		CanvasWidth:    req.Canvas.Width,
		CanvasHeight:   req.Canvas.Height,
		HistoryContext: req.HistoryContext,
		Provider:       req.Provider,
		Model:          req.Model,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	layout := entity.LayoutStructure(out.Layout)
	if !layout.Valid() {
		layout = entity.LayoutSingleColumn
	}

	sections := make([]SectionRender, 0, len(out.Sections))
	for i, s := range out.Sections {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			id = fmt.Sprintf("section-%d", i+1)
		}
		sections = append(sections, SectionRender{ID: id, Role: "body", Text: s.Text})
	}

	html, err := g.formatter.RenderSlide(layout, sections, req.StylingMode)
	if err != nil {
		return nil, err
	}

	return &SlideResult{
		Layout:   layout,
		Sections: sections,
		HTML:     html,
		Meta: entity.GenerationMeta{
			Mode:          ModeSingleStep,
			FallbackUsed:  true,
			FailedPhase:   failedPhase,
			FailureReason: cause.Error(),
			Layout:        layout,
			Usage:         []entity.LLMUsage{usageFromMeta(out.Meta)},
			GeneratedAt:   time.Now().UTC(),
			DurationMs:    time.Since(start).Milliseconds(),
		},
	}, nil
}

// alignSections 按规划顺序对齐生成内容；缺失分区视为生成失败
func alignSections(plan *entity.StructurePlan, generated []wfmodel.SectionContent) ([]SectionRender, error) {
	byID := make(map[string]string, len(generated))
	for _, s := range generated {
		byID[s.ID] = s.Text
	}

	sections := make([]SectionRender, 0, len(plan.Sections))
	for _, p := range plan.Sections {
		text, ok := byID[p.ID]
		if !ok || strings.TrimSpace(text) == "" {
			return nil, apperrors.Newf(apperrors.CodeGenerationFailed,
				"no content generated for section %q", p.ID)
		}
		sections = append(sections, SectionRender{ID: p.ID, Role: p.Role, Text: text})
	}
	return sections, nil
}

// overflowReport 对照预算统计超限分区与整体利用率
func (g *MultiStepGenerator) overflowReport(budget *entity.SpaceBudget, sections []SectionRender) ([]entity.OverflowWarning, float64) {
	var overflows []entity.OverflowWarning
	var generatedTotal int

	for _, s := range sections {
		chars := utf8.RuneCountInString(s.Text)
		generatedTotal += chars

		sb, ok := budget.SectionByID(s.ID)
		if !ok || chars <= sb.MaxChars {
			continue
		}
		variance := float64(chars-sb.MaxChars) / float64(sb.MaxChars)
		within := variance <= g.cfg.OverflowTolerance
		overflows = append(overflows, entity.OverflowWarning{
			SectionID:       s.ID,
			BudgetChars:     sb.MaxChars,
			GeneratedChars:  chars,
			VariancePercent: variance * 100,
			WithinTolerance: within,
		})
		metrics.OverflowTotal.WithLabelValues(fmt.Sprintf("%t", within)).Inc()
	}

	var utilization float64
	if budget.TotalChars > 0 {
		utilization = float64(generatedTotal) / float64(budget.TotalChars)
		metrics.BudgetUtilization.Observe(utilization)
	}
	return overflows, utilization
}

func (g *MultiStepGenerator) phaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.PhaseTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.cfg.PhaseTimeout)
}

func (g *MultiStepGenerator) observe(result *SlideResult, err error) {
	if err != nil {
		metrics.SlideGenerationTotal.WithLabelValues(ModeMultiStep, "failure").Inc()
		return
	}
	metrics.SlideGenerationTotal.WithLabelValues(result.Meta.Mode, "success").Inc()
	metrics.SlideGenerationDuration.WithLabelValues(result.Meta.Mode).
		Observe(float64(result.Meta.DurationMs) / 1000)
}

// phaseTaggedError 携带失败阶段的生成错误
type phaseTaggedError struct {
	phase entity.GenerationPhase
	err   error
}

func (e *phaseTaggedError) Error() string { return e.err.Error() }
func (e *phaseTaggedError) Unwrap() error { return e.err }

func phaseError(phase entity.GenerationPhase, err error) error {
	if !apperrors.IsGenerationError(err) {
		// LLM 链的原始错误（超时、网络、解析）统一归为 LLM 调用失败
		err = apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "llm phase failed")
	}
	return &phaseTaggedError{phase: phase, err: err}
}

func phaseOf(err error) entity.GenerationPhase {
	for err != nil {
		if tagged, ok := err.(*phaseTaggedError); ok {
			return tagged.phase
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return entity.PhaseStructure
}

func usageFromMeta(m wfmodel.LLMUsageMeta) entity.LLMUsage {
	return entity.LLMUsage{
		Provider:         m.Provider,
		Model:            m.Model,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
	}
}
