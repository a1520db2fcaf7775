// internal/api/router.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SceneScribe/internal/auth"
	"github.com/Corphon/SceneScribe/internal/di"
	"github.com/Corphon/SceneScribe/internal/services"
	"github.com/Corphon/SceneScribe/internal/utils"
)

// RouterOptions 路由层可调参数
type RouterOptions struct {
	DebugMode    bool
	AIRateLimit  int // 每分钟每用户
	IngestLimit  int // 每分钟每用户
	RateWindow   time.Duration
	DisableRates bool
}

// SetupRouter 从容器取出已初始化的服务并配置HTTP路由
func SetupRouter(container *di.Container, tokenConfig *auth.TokenConfig, opts RouterOptions) (*gin.Engine, error) {
	transformService, err := di.Resolve[*services.TransformService](container, di.ServiceTransform)
	if err != nil {
		return nil, err
	}
	generationService, err := di.Resolve[*services.GenerationService](container, di.ServiceGeneration)
	if err != nil {
		return nil, err
	}
	extractionService, err := di.Resolve[*services.ExtractionService](container, di.ServiceExtraction)
	if err != nil {
		return nil, err
	}
	contextService, err := di.Resolve[*services.ContextService](container, di.ServiceContext)
	if err != nil {
		return nil, err
	}
	progressService, err := di.Resolve[*services.ProgressService](container, di.ServiceProgress)
	if err != nil {
		return nil, err
	}
	llmService, err := di.Resolve[*services.LLMService](container, di.ServiceLLM)
	if err != nil {
		return nil, err
	}
	metrics, err := di.Resolve[*utils.APIMetrics](container, di.ServiceMetrics)
	if err != nil {
		return nil, err
	}
	ws, err := di.Resolve[*WebSocketManager](container, di.ServiceWebSocket)
	if err != nil {
		return nil, err
	}

	settings, err := di.Resolve[*services.SettingsService](container, di.ServiceSettings)
	if err != nil {
		return nil, err
	}

	handler := NewHandler(
		transformService,
		generationService,
		extractionService,
		contextService,
		progressService,
		llmService,
		metrics,
		ws,
	)
	handler.Settings = settings
	return NewRouter(handler, tokenConfig, opts), nil
}

// NewRouter 注册全部路由
func NewRouter(handler *Handler, tokenConfig *auth.TokenConfig, opts RouterOptions) *gin.Engine {
	if !opts.DebugMode && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(corsMiddleware())
	r.Use(MetricsMiddleware(handler.Metrics))
	if opts.DebugMode {
		r.Use(gin.Logger())
	}

	window := opts.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	aiLimit := opts.AIRateLimit
	if aiLimit <= 0 {
		aiLimit = 30
	}
	ingestLimit := opts.IngestLimit
	if ingestLimit <= 0 {
		ingestLimit = 10
	}

	authRequired := AuthMiddleware(tokenConfig)

	// WebSocket 支持
	if handler.WebSocket != nil {
		r.GET("/ws/projects/:id", authRequired, handler.WebSocket.ServeProject)
	}

	api := r.Group("/api")
	{
		api.GET("/health", handler.HealthCheck)
		api.GET("/metrics", handler.GetMetrics)

		ai := api.Group("/ai", authRequired)
		if !opts.DisableRates {
			ai.Use(NewRateLimiter(aiLimit, window).Middleware())
		}
		{
			ai.POST("/transform", handler.TransformText)
			ai.POST("/generate", handler.GenerateContent)
		}

		notes := api.Group("/notes", authRequired)
		if !opts.DisableRates {
			notes.Use(NewRateLimiter(ingestLimit, window).Middleware())
		}
		{
			notes.POST("/ingest", handler.IngestNote)
		}

		api.GET("/chapters/:id/context", authRequired, handler.GetChapterContext)
		api.GET("/progress/:taskID", authRequired, handler.SubscribeProgress)

		if handler.Settings != nil {
			settings := api.Group("/settings", authRequired)
			{
				settings.GET("/llm", handler.GetLLMSettings)
				settings.PUT("/llm", handler.UpdateLLMSettings)
				settings.GET("/history", handler.GetSettingsHistory)
			}
		}
	}

	return r
}
