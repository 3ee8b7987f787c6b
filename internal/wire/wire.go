// Package wire 提供依赖装配
package wire

import (
	"context"

	"slide-content-api/internal/application/generation"
	"slide-content-api/internal/application/registry"
	"slide-content-api/internal/application/session"
	"slide-content-api/internal/config"
	"slide-content-api/internal/infrastructure/llm"
	"slide-content-api/internal/infrastructure/persistence/redis"
	"slide-content-api/internal/interfaces/http/handler"
	"slide-content-api/internal/interfaces/http/router"
	"slide-content-api/internal/workflow/chain"
	"slide-content-api/pkg/logger"
)

// App 应用依赖容器
type App struct {
	Router   *router.Router
	Registry *registry.Registry
	Redis    *redis.Client
}

// InitializeApp 装配完整应用；返回的 cleanup 负责释放外部连接
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	// 数据层
	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn(ctx, "failed to close redis client", "error", err.Error())
		}
	}

	cache := redis.NewCache(redisClient)
	sessions := session.NewManager(cfg.Session, cache)

	// 组件定义库
	reg, err := registry.NewRegistry(cfg.Registry)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// LLM 工作流
	factory := llm.NewEinoFactory(cfg)
	structureChain := chain.NewStructureChain(factory)
	contentChain := chain.NewContentChain(factory)
	singleStepChain := chain.NewSingleStepChain(factory)
	componentChain := chain.NewComponentContentChain(factory)

	// 生成流水线
	analyzer := generation.NewStructureAnalyzer(structureChain)
	calculator := generation.NewSpaceCalculator()
	formatter := generation.NewHTMLFormatter()
	generator := generation.NewMultiStepGenerator(
		cfg.Generation,
		analyzer,
		calculator,
		contentChain,
		singleStepChain,
		formatter,
	)

	// 组件装配路径
	assembler := generation.NewComponentAssembler(
		cfg.Generation,
		reg,
		generation.NewArrangementSelector(),
		generation.NewLayoutBuilder(),
		generation.NewConstraintScaler(cfg.Scaling),
		componentChain,
		formatter,
	)

	// HTTP 层
	r := router.New(cfg, router.Handlers{
		Health:     handler.NewHealthHandler(redisClient, reg),
		Generation: handler.NewGenerationHandler(cfg, generator, sessions),
		Component:  handler.NewComponentHandler(cfg, reg, assembler),
	})

	app := &App{
		Router:   r,
		Registry: reg,
		Redis:    redisClient,
	}
	return app, cleanup, nil
}
