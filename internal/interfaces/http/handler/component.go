package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"slide-content-api/internal/application/generation"
	"slide-content-api/internal/application/registry"
	"slide-content-api/internal/config"
	"slide-content-api/internal/interfaces/http/dto"
	"slide-content-api/pkg/logger"
)

// ComponentHandler 组件定义库与装配处理器
type ComponentHandler struct {
	cfg       *config.Config
	registry  *registry.Registry
	assembler *generation.ComponentAssembler
}

// NewComponentHandler 创建组件处理器
func NewComponentHandler(cfg *config.Config, reg *registry.Registry, assembler *generation.ComponentAssembler) *ComponentHandler {
	return &ComponentHandler{
		cfg:       cfg,
		registry:  reg,
		assembler: assembler,
	}
}

// List 列出全部组件
// @Summary 列出组件定义
// @Tags Components
// @Produce json
// @Success 200 {object} dto.Response[[]dto.ComponentSummary]
// @Router /v1/components [get]
func (h *ComponentHandler) List(c *gin.Context) {
	defs := h.registry.List()
	summaries := make([]dto.ComponentSummary, 0, len(defs))
	for _, def := range defs {
		summaries = append(summaries, dto.FromComponentDefinition(def))
	}
	dto.Success(c, summaries)
}

// Get 获取单个组件定义
// @Summary 获取组件定义
// @Tags Components
// @Produce json
// @Param id path string true "组件 ID"
// @Router /v1/components/{id} [get]
func (h *ComponentHandler) Get(c *gin.Context) {
	def, err := h.registry.Get(c.Param("id"))
	if err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Success(c, def)
}

// Reload 热重载组件定义库
// @Summary 重载组件定义
// @Description 重新读取组件目录并原子替换；失败时保留旧定义继续服务
// @Tags Components
// @Produce json
// @Router /v1/components/reload [post]
func (h *ComponentHandler) Reload(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.registry.Reload(ctx); err != nil {
		logger.Error(ctx, "registry reload failed", err)
		dto.FromAppError(c, err)
		return
	}
	dto.Success(c, dto.ReloadResponse{
		Components: h.registry.Count(),
		LoadedAt:   h.registry.LoadedAt().UTC().Format(time.RFC3339),
	})
}

// Assemble 用组件实例填充区域
// @Summary 组件装配
// @Description 选排布、缩放插槽限制、生成内容并渲染为定位好的 HTML
// @Tags Components
// @Accept json
// @Produce json
// @Param id path string true "组件 ID"
// @Param request body dto.AssembleComponentRequest true "装配请求"
// @Router /v1/components/{id}/assemble [post]
func (h *ComponentHandler) Assemble(c *gin.Context) {
	var req dto.AssembleComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	asmReq := req.ToAssembleRequest(c.Param("id"))
	asmReq.Provider = provider
	asmReq.Model = model

	result, err := h.assembler.Assemble(c.Request.Context(), asmReq)
	if err != nil {
		logger.Error(c.Request.Context(), "component assembly failed", err,
			"component_id", asmReq.ComponentID)
		dto.FromAppError(c, err)
		return
	}
	dto.Success(c, result)
}
