// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Corphon/SceneScribe/internal/api"
	"github.com/Corphon/SceneScribe/internal/config"
	"github.com/Corphon/SceneScribe/internal/di"
	"github.com/Corphon/SceneScribe/internal/events"
	_ "github.com/Corphon/SceneScribe/internal/llm/providers/google"
	_ "github.com/Corphon/SceneScribe/internal/llm/providers/openai"
	"github.com/Corphon/SceneScribe/internal/services"
	"github.com/Corphon/SceneScribe/internal/storage"
	"github.com/Corphon/SceneScribe/internal/tracer"
	"github.com/Corphon/SceneScribe/internal/utils"
)

const (
	shutdownTimeout     = 30 * time.Second
	taskCleanupInterval = 10 * time.Minute
	taskMaxAge          = 30 * time.Minute
)

// httpServer 便于在测试中替换真实服务器
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 持有进程生命周期内的全部资源
type App struct {
	config    *config.AppConfig
	container *di.Container
	router    http.Handler
	server    httpServer
	stopChan  chan os.Signal

	store          storage.Store
	bus            *events.Bus
	ws             *api.WebSocketManager
	cancel         context.CancelFunc
	tracerShutdown func(context.Context) error
	cleanupOnce    sync.Once
}

var (
	instance   *App
	instanceMu sync.Mutex
)

// GetApp 返回进程级别的应用实例
func GetApp() *App {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		instance = New(config.GetCurrentConfig(), di.GetContainer())
	}
	return instance
}

// New 创建应用实例，不做任何初始化
func New(cfg *config.AppConfig, container *di.Container) *App {
	if container == nil {
		container = di.NewContainer()
	}
	return &App{
		config:    cfg,
		container: container,
		stopChan:  make(chan os.Signal, 1),
	}
}

// Initialize 依次初始化日志、追踪、服务和路由
func (a *App) Initialize(authSecret string) error {
	if a.config == nil {
		return fmt.Errorf("配置未加载")
	}

	if err := initLogger(a.config.LogDir, a.config.DebugMode); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	a.tracerShutdown = tracer.InitTracer(a.config.OTelEnabled, a.config.OTelEndpoint)

	if err := a.InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	tokenConfig, err := api.InitializeAuth(authSecret, a.config.DebugMode)
	if err != nil {
		return err
	}

	router, err := api.SetupRouter(a.container, tokenConfig, api.RouterOptions{DebugMode: a.config.DebugMode})
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router
	a.server = &http.Server{
		Addr:              ":" + a.config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// InitServices 按依赖顺序创建服务并注册到容器
func (a *App) InitServices() error {
	cfg := a.config
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	metrics := utils.NewAPIMetrics()
	a.container.Register(di.ServiceMetrics, metrics)
	metrics.StartMetricsCollection(ctx)

	store, err := storage.Open(cfg.StoreBackend, cfg.DataDir, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("打开存储失败: %w", err)
	}
	a.store = store
	a.container.Register(di.ServiceStore, store)

	llmService, err := services.NewLLMService()
	if err != nil || llmService == nil {
		utils.GetLogger().Warn("LLM服务创建失败，使用空服务", map[string]interface{}{"err": err})
		llmService = services.NewEmptyLLMService()
	}
	llmService.SetMetrics(metrics)
	if ready, state := llmService.GetProviderStatus(); !ready {
		utils.GetLogger().Warn("⚠️ LLM服务未就绪", map[string]interface{}{"state": state})
	}
	a.container.Register(di.ServiceLLM, llmService)
	a.container.Register(di.ServiceSettings, services.NewSettingsService(llmService))

	contextService := services.NewContextService(store, cfg.ContextChapterWords, cfg.ContextItemWords)
	a.container.Register(di.ServiceContext, contextService)
	a.container.Register(di.ServiceTransform, services.NewTransformService(llmService, metrics))
	a.container.Register(di.ServiceGeneration, services.NewGenerationService(llmService, contextService))

	a.bus = events.NewBus()
	a.container.Register(di.ServiceEventBus, a.bus)

	a.container.Register(di.ServiceExtraction, services.NewExtractionService(
		llmService, store, cfg.ConfidenceThreshold,
		services.WithPublisher(a.bus),
		services.WithExtractionMetrics(metrics),
	))

	progress := services.NewProgressService()
	a.container.Register(di.ServiceProgress, progress)
	go cleanupTasks(ctx, progress)

	a.ws = api.NewWebSocketManager(0)
	a.container.Register(di.ServiceWebSocket, a.ws)

	stream, err := a.bus.SubscribeNoteIngested(ctx)
	if err != nil {
		return fmt.Errorf("订阅摄取事件失败: %w", err)
	}
	go a.ws.ForwardNoteEvents(ctx, stream)

	utils.GetLogger().Info("✅ 所有服务初始化完成", map[string]interface{}{
		"store":    cfg.StoreBackend,
		"provider": llmService.GetProviderName(),
		"services": len(a.container.GetNames()),
	})
	return nil
}

func cleanupTasks(ctx context.Context, progress *services.ProgressService) {
	ticker := time.NewTicker(taskCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := progress.CleanupCompletedTasks(taskMaxAge); n > 0 {
				utils.GetLogger().Debug("已清理过期任务", map[string]interface{}{"count": n})
			}
		}
	}
}

// Run 启动HTTP服务并阻塞到收到停止信号
func (a *App) Run() error {
	if a.server == nil {
		return fmt.Errorf("应用未初始化")
	}
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-a.stopChan:
	case err := <-errCh:
		a.cleanup()
		return fmt.Errorf("服务器运行失败: %w", err)
	}

	utils.GetLogger().Info("🛑 正在关闭服务器...", nil)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(ctx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	utils.GetLogger().Info("✅ 服务器优雅关闭完成", nil)
	return nil
}

// Stop 请求 Run 返回
func (a *App) Stop() {
	select {
	case a.stopChan <- syscall.SIGTERM:
	default:
	}
}

// cleanup 释放后台任务和存储，可重复调用
func (a *App) cleanup() {
	a.cleanupOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		if a.ws != nil {
			a.ws.Shutdown()
		}
		if a.bus != nil {
			if err := a.bus.Close(); err != nil {
				utils.GetLogger().Warn("关闭事件总线失败", map[string]interface{}{"err": err})
			}
		}
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				utils.GetLogger().Warn("关闭存储失败", map[string]interface{}{"err": err})
			}
		}
		if a.tracerShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.tracerShutdown(ctx)
		}
		_ = utils.GetLogger().Sync()
	})
}

// GetConfig 返回应用配置
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// GetDIContainer 返回依赖注入容器
func (a *App) GetDIContainer() *di.Container {
	return a.container
}

// Router 返回HTTP处理器
func (a *App) Router() http.Handler {
	return a.router
}

// IsDebugMode 是否为调试模式
func (a *App) IsDebugMode() bool {
	return a.config != nil && a.config.DebugMode
}

func initLogger(logDir string, debug bool) error {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}
	return utils.InitLogger(filepath.Join(logDir, "scenescribe.log"), debug)
}
