package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"slide-content-api/internal/application/generation"
	"slide-content-api/internal/application/session"
	"slide-content-api/internal/config"
	"slide-content-api/internal/domain/entity"
	"slide-content-api/internal/interfaces/http/dto"
	"slide-content-api/pkg/logger"
)

// GenerationHandler 幻灯片生成处理器
type GenerationHandler struct {
	cfg       *config.Config
	generator *generation.MultiStepGenerator
	sessions  *session.Manager
}

// NewGenerationHandler 创建幻灯片生成处理器
func NewGenerationHandler(cfg *config.Config, generator *generation.MultiStepGenerator, sessions *session.Manager) *GenerationHandler {
	return &GenerationHandler{
		cfg:       cfg,
		generator: generator,
		sessions:  sessions,
	}
}

// Generate 生成一张幻灯片
// @Summary 生成幻灯片内容
// @Description 多步流水线生成空间感知的幻灯片内容，LLM 阶段失败时回退单步生成
// @Tags Slides
// @Accept json
// @Produce json
// @Param request body dto.GenerateSlideRequest true "生成请求"
// @Success 200 {object} dto.Response[dto.GenerateSlideResponse]
// @Router /v1/slides/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateSlideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.PresentationID != "" {
		ctx = logger.WithContext(ctx, logger.PresentationIDKey, req.PresentationID)
	}

	slideReq := req.ToSlideRequest()
	slideReq.Provider = provider
	slideReq.Model = model

	// 历史摘要只作提示上下文，取失败不阻塞生成
	if h.sessions != nil && req.PresentationID != "" {
		history, err := h.sessions.ContextSummary(ctx, req.PresentationID)
		if err != nil {
			logger.Warn(ctx, "failed to load presentation history", "error", err.Error())
		} else {
			slideReq.HistoryContext = history
		}
	}

	result, err := h.generator.Generate(ctx, slideReq)
	if err != nil {
		logger.Error(ctx, "slide generation failed", err)
		dto.FromAppError(c, err)
		return
	}

	h.recordHistory(c, &req, result)
	dto.Success(c, dto.FromSlideResult(req.PresentationID, result))
}

// History 查询演示文稿的幻灯片历史
// @Summary 查询幻灯片历史
// @Tags Slides
// @Produce json
// @Param pid path string true "演示文稿 ID"
// @Router /v1/presentations/{pid}/history [get]
func (h *GenerationHandler) History(c *gin.Context) {
	history, err := h.sessions.History(c.Request.Context(), c.Param("pid"))
	if err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Success(c, history)
}

// ClearHistory 清空演示文稿历史
// @Summary 清空幻灯片历史
// @Tags Slides
// @Produce json
// @Param pid path string true "演示文稿 ID"
// @Router /v1/presentations/{pid}/history [delete]
func (h *GenerationHandler) ClearHistory(c *gin.Context) {
	pid := c.Param("pid")
	if pid == "" {
		dto.BadRequest(c, "presentation id is required")
		return
	}
	if err := h.sessions.Clear(c.Request.Context(), pid); err != nil {
		logger.Error(c.Request.Context(), "failed to clear slide history", err)
		dto.FromAppError(c, err)
		return
	}
	dto.NoContent(c)
}

// recordHistory 将生成结果摘要追加到演示文稿历史；失败仅告警
func (h *GenerationHandler) recordHistory(c *gin.Context, req *dto.GenerateSlideRequest, result *generation.SlideResult) {
	if h.sessions == nil || req.PresentationID == "" {
		return
	}

	topic := ""
	if len(req.Topics) > 0 {
		topic = req.Topics[0]
	} else {
		topic = truncateTopic(req.Narrative, 60)
	}

	summaryText := ""
	if len(result.Sections) > 0 {
		summaryText = truncateTopic(result.Sections[0].Text, 120)
	}

	err := h.sessions.Append(c.Request.Context(), req.PresentationID, entity.SlideSummary{
		Topic:     topic,
		Summary:   summaryText,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Warn(c.Request.Context(), "failed to record slide history", "error", err.Error())
	}
}
