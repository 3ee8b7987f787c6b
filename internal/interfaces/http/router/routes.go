// Package router 提供 HTTP 路由配置
package router

import (
	"slide-content-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	generationHandler *handler.GenerationHandler,
	componentHandler *handler.ComponentHandler,
) {
	// 幻灯片生成
	slides := v1.Group("/slides")
	{
		slides.POST("/generate", generationHandler.Generate)
	}

	// 演示文稿历史
	presentations := v1.Group("/presentations")
	{
		presentations.GET("/:pid/history", generationHandler.History)
		presentations.DELETE("/:pid/history", generationHandler.ClearHistory)
	}

	// 组件定义库与装配
	components := v1.Group("/components")
	{
		components.GET("", componentHandler.List)
		components.POST("/reload", componentHandler.Reload)
		components.GET("/:id", componentHandler.Get)
		components.POST("/:id/assemble", componentHandler.Assemble)
	}
}
