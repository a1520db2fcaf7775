// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Corphon/SceneScribe/internal/config"
	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/llm"
	"github.com/Corphon/SceneScribe/internal/tracer"
	"github.com/Corphon/SceneScribe/internal/utils"
)

var ErrLLMNotReady = errors.New("llm service not ready")

var providerDefaultModels = map[string]string{
	"google":     "gemini-2.0-flash",
	"openai":     "gpt-4o-mini",
	"openrouter": "openai/gpt-4o-mini",
}

// Generator 是模型调用的最小接口
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc 允许普通函数充当 Generator
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate 实现 Generator
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// jsonGenerator 由支持JSON输出模式的生成器实现
type jsonGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// generateStructured 优先使用JSON模式
func generateStructured(ctx context.Context, g Generator, prompt string) (string, error) {
	if jg, ok := g.(jsonGenerator); ok {
		return jg.GenerateJSON(ctx, prompt)
	}
	return g.Generate(ctx, prompt)
}

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	isReady            bool
	readyState         string
	activeDefaultModel string

	metrics *utils.APIMetrics
}

// NewLLMService 根据当前配置创建LLM服务
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		service.providerName = cfg.LLMProvider
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil // 返回未就绪服务而不是错误
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.activeDefaultModel = extractDefaultModel(cfg.LLMConfig)
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewLLMServiceWithProvider 使用已初始化的提供者创建服务
func NewLLMServiceWithProvider(name string, provider llm.Provider, defaultModel string) *LLMService {
	service := createBaseLLMService()
	service.provider = provider
	service.providerName = name
	service.activeDefaultModel = strings.TrimSpace(defaultModel)
	service.isReady = provider != nil
	if service.isReady {
		service.readyState = "Ready"
	}
	return service
}

// NewEmptyLLMService 创建一个空的LLM服务实例作为后备方案
func NewEmptyLLMService() *LLMService {
	service := createBaseLLMService()
	service.providerName = "empty"
	service.readyState = "Standby Service Mode – Please configure the API key in settings"
	return service
}

func createBaseLLMService() *LLMService {
	return &LLMService{
		readyState: "Uninitialized",
		metrics:    utils.NewAPIMetrics(),
	}
}

// SetMetrics 替换指标记录器
func (s *LLMService) SetMetrics(m *utils.APIMetrics) {
	s.metrics = m
}

// IsReady 返回服务是否已就绪
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// GetReadyState 返回服务就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderStatus 返回服务是否就绪以及可读描述
func (s *LLMService) GetProviderStatus() (bool, string) {
	if s == nil {
		return false, "LLM服务实例未初始化"
	}
	if s.IsReady() {
		return true, "Ready"
	}
	return false, s.GetReadyState()
}

// GetProviderName 返回当前提供者名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// UpdateProvider 更新LLM服务的提供商
func (s *LLMService) UpdateProvider(providerName string, cfg map[string]string) error {
	provider, err := llm.GetProvider(providerName, cfg)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = extractDefaultModel(cfg)
	s.isReady = true
	s.readyState = "Ready"
	return nil
}

// Generate 以普通文本模式调用模型
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	return s.complete(ctx, llm.CompletionRequest{Prompt: prompt, Temperature: 0.7})
}

// GenerateJSON 以JSON模式调用模型，用于需要结构化解析的流程
func (s *LLMService) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return s.complete(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: "Return your response in valid JSON format, without adding explanations or preambles.",
		Temperature:  0.3,
		JSONMode:     true,
	})
}

func (s *LLMService) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return "", apperrors.NewTransportError("模型服务未就绪: "+state, ErrLLMNotReady)
	}
	provider := s.provider
	providerName := s.providerName
	s.providerMutex.RUnlock()

	req.Model = s.resolveModel(req.Model)

	ctx, span := tracer.Tracer("llm").Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", providerName),
		attribute.String("llm.model", req.Model),
		attribute.Bool("llm.json_mode", req.JSONMode),
	)

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		if s.metrics != nil {
			s.metrics.RecordError("transport", "llm")
		}
		utils.GetLogger().Error("模型调用失败", map[string]interface{}{
			"provider": providerName,
			"model":    req.Model,
			"err":      err,
		})
		if ctx.Err() != nil {
			return "", apperrors.NewAppError(apperrors.ErrorTypeTimeout, "模型调用超时或被取消", err)
		}
		return "", apperrors.NewTransportError("模型调用失败", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLLMRequest(providerName, req.Model, resp.TokensUsed, time.Since(start))
	}
	span.SetAttributes(attribute.Int("llm.tokens", resp.TokensUsed))
	return resp.Text, nil
}

// GetDefaultModel 获取当前配置的默认模型
func (s *LLMService) GetDefaultModel() string {
	return s.resolveModel("")
}

// resolveModel 根据请求和配置确定应使用的模型
func (s *LLMService) resolveModel(requestedModel string) string {
	if trimmed := strings.TrimSpace(requestedModel); trimmed != "" {
		return trimmed
	}

	s.providerMutex.RLock()
	provider := s.provider
	providerName := s.providerName
	activeDefault := s.activeDefaultModel
	s.providerMutex.RUnlock()

	if activeDefault != "" {
		return activeDefault
	}

	if provider != nil {
		if models := provider.GetSupportedModels(); len(models) > 0 {
			if model := strings.TrimSpace(models[0]); model != "" {
				return model
			}
		}
	}

	if model, exists := providerDefaultModels[providerName]; exists {
		return model
	}
	return providerDefaultModels["google"]
}

func extractDefaultModel(cfg map[string]string) string {
	if cfg == nil {
		return ""
	}
	if model := strings.TrimSpace(cfg["default_model"]); model != "" {
		return model
	}
	if model := strings.TrimSpace(cfg["model"]); model != "" {
		return model
	}
	return ""
}
