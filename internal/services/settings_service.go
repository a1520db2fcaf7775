// internal/services/settings_service.go
package services

import (
	"strings"
	"sync"
	"time"

	"github.com/Corphon/SceneScribe/internal/config"
	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/utils"
)

// 各提供商的默认模型，请求未指定时补齐
var settingsDefaultModels = map[string]string{
	"google":     "gemini-2.0-flash",
	"openai":     "gpt-4o-mini",
	"openrouter": "openai/gpt-4o-mini",
}

// LLMSettings 对外展示的模型配置，不含密钥明文
type LLMSettings struct {
	Provider     string `json:"provider"`
	DefaultModel string `json:"defaultModel"`
	BaseURL      string `json:"baseUrl,omitempty"`
	APIKeyHint   string `json:"apiKeyHint,omitempty"`
	Ready        bool   `json:"ready"`
	State        string `json:"state"`
}

// SettingsChange 配置变更记录
type SettingsChange struct {
	Timestamp time.Time `json:"timestamp"`
	ChangedBy string    `json:"changedBy"`
	Section   string    `json:"section"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
}

// SettingsService 管理模型提供商配置：校验、持久化并热切换 LLMService
type SettingsService struct {
	mu         sync.RWMutex
	llm        *LLMService
	history    []SettingsChange
	maxHistory int
}

// NewSettingsService 创建配置服务
func NewSettingsService(llm *LLMService) *SettingsService {
	return &SettingsService{
		llm:        llm,
		history:    make([]SettingsChange, 0, 16),
		maxHistory: 200,
	}
}

// GetLLMSettings 当前模型配置
func (s *SettingsService) GetLLMSettings() LLMSettings {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	ready, state := s.llm.GetProviderStatus()
	return LLMSettings{
		Provider:     cfg.LLMProvider,
		DefaultModel: s.llm.GetDefaultModel(),
		BaseURL:      cfg.LLMConfig["base_url"],
		APIKeyHint:   maskSecret(cfg.LLMConfig["api_key"]),
		Ready:        ready,
		State:        state,
	}
}

// UpdateLLMConfig 先用新配置初始化提供商，成功后才落盘，失败时保留旧配置
func (s *SettingsService) UpdateLLMConfig(provider string, values map[string]string, changedBy string) (LLMSettings, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return LLMSettings{}, apperrors.NewValidationError("provider不能为空", nil)
	}
	if strings.TrimSpace(values["api_key"]) == "" {
		return LLMSettings{}, apperrors.NewValidationError("api_key不能为空", nil)
	}

	next := make(map[string]string, len(values)+1)
	for k, v := range values {
		next[k] = strings.TrimSpace(v)
	}
	if next["default_model"] == "" {
		next["default_model"] = settingsDefaultModels[provider]
	}

	old := config.GetCurrentConfig()

	if err := s.llm.UpdateProvider(provider, next); err != nil {
		return LLMSettings{}, apperrors.NewValidationError("提供商初始化失败", err)
	}
	if err := config.UpdateLLMConfig(provider, next); err != nil {
		// 内存中的提供商已切换，落盘失败只记录
		utils.GetLogger().Error("保存模型配置失败", map[string]interface{}{
			"provider": provider,
			"err":      err,
		})
	}

	s.recordChange("llm.provider", old.LLMProvider, provider, changedBy)
	s.recordChange("llm.default_model", old.LLMConfig["default_model"], next["default_model"], changedBy)
	if old.LLMConfig["api_key"] != next["api_key"] {
		s.recordChange("llm.api_key", maskSecret(old.LLMConfig["api_key"]), maskSecret(next["api_key"]), changedBy)
	}

	utils.GetLogger().Info("模型配置已更新", map[string]interface{}{
		"provider":   provider,
		"model":      next["default_model"],
		"changed_by": changedBy,
	})
	return s.GetLLMSettings(), nil
}

// GetChangeHistory 最近的变更，limit<=0 返回全部
func (s *SettingsService) GetChangeHistory(limit int) []SettingsChange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]SettingsChange, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}

func (s *SettingsService) recordChange(section, oldValue, newValue, changedBy string) {
	if oldValue == newValue {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) >= s.maxHistory {
		s.history = s.history[1:]
	}
	s.history = append(s.history, SettingsChange{
		Timestamp: time.Now(),
		ChangedBy: changedBy,
		Section:   section,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
}

// maskSecret 只保留末四位
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
