// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"

	"github.com/Corphon/SceneScribe/internal/utils"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
	// secretKey 非空时 config.json 中的 api_key 以密文保存
	secretKey string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 存储配置
	StoreBackend string `json:"store_backend"`
	StoreDSN     string `json:"store_dsn,omitempty"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`

	// 提取与上下文
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	ContextChapterWords int     `json:"context_chapter_words"`
	ContextItemWords    int     `json:"context_item_words"`

	// 可观测性
	OTelEnabled  bool   `json:"otel_enabled"`
	OTelEndpoint string `json:"otel_endpoint,omitempty"`
}

// Config 存储从环境变量读取的配置
type Config struct {
	Port                string
	DataDir             string
	LogDir              string
	DebugMode           bool
	StoreBackend        string
	StoreDSN            string
	LLMProvider         string
	LLMAPIKey           string
	LLMModel            string
	LLMBaseURL          string
	AuthSecret          string
	ConfidenceThreshold float64
	ContextChapterWords int
	ContextItemWords    int
	OTelEnabled         bool
	OTelEndpoint        string
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:                getEnv("PORT", "8080"),
		DataDir:             getEnvPath("DATA_DIR", "data"),
		LogDir:              getEnvPath("LOG_DIR", "logs"),
		DebugMode:           getEnvBool("DEBUG_MODE", true),
		StoreBackend:        getEnv("STORE_BACKEND", "file"),
		StoreDSN:            getEnv("STORE_DSN", ""),
		LLMProvider:         getEnv("LLM_PROVIDER", "google"),
		LLMAPIKey:           getEnv("LLM_API_KEY", ""),
		LLMModel:            getEnv("LLM_MODEL", ""),
		LLMBaseURL:          getEnv("LLM_BASE_URL", ""),
		AuthSecret:          getEnv("AUTH_SECRET_KEY", ""),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.8),
		ContextChapterWords: getEnvInt("CONTEXT_CHAPTER_WORDS", 3000),
		ContextItemWords:    getEnvInt("CONTEXT_ITEM_WORDS", 200),
		OTelEnabled:         getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}

	if config.ConfidenceThreshold < 0 || config.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD必须在0到1之间: %v", config.ConfidenceThreshold)
	}

	switch config.StoreBackend {
	case "file", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("不支持的存储后端: %s", config.StoreBackend)
	}

	if config.LLMAPIKey == "" {
		// 只记录警告，不返回错误
		log.Println("警告: 未设置LLM_API_KEY，AI功能在配置前不可用")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("警告: %s=%q 无效，使用默认值 %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("警告: %s=%q 无效，使用默认值 %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}

// FromBase 由环境配置构造 AppConfig
func FromBase(base *Config) *AppConfig {
	llmConfig := map[string]string{
		"api_key": base.LLMAPIKey,
	}
	if base.LLMModel != "" {
		llmConfig["default_model"] = base.LLMModel
	}
	if base.LLMBaseURL != "" {
		llmConfig["base_url"] = base.LLMBaseURL
	}

	return &AppConfig{
		Port:                base.Port,
		DataDir:             base.DataDir,
		LogDir:              base.LogDir,
		DebugMode:           base.DebugMode,
		StoreBackend:        base.StoreBackend,
		StoreDSN:            base.StoreDSN,
		LLMProvider:         base.LLMProvider,
		LLMConfig:           llmConfig,
		ConfidenceThreshold: base.ConfidenceThreshold,
		ContextChapterWords: base.ContextChapterWords,
		ContextItemWords:    base.ContextItemWords,
		OTelEnabled:         base.OTelEnabled,
		OTelEndpoint:        base.OTelEndpoint,
	}
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = FromBase(baseConfig)
	secretKey = baseConfig.AuthSecret

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 文件只保留LLM设置，其余以环境变量为准
				merged := *currentConfig
				if savedConfig.LLMProvider != "" {
					merged.LLMProvider = savedConfig.LLMProvider
				}
				if savedConfig.LLMConfig != nil {
					savedConfig.LLMConfig["api_key"] = openSavedKey(savedConfig.LLMConfig["api_key"], baseConfig.LLMAPIKey)
					merged.LLMConfig = savedConfig.LLMConfig
				}
				currentConfig = &merged
			}
		}
	}

	return saveLocked()
}

// openSavedKey 解密已保存的密钥；为空或无法解密时退回环境变量中的密钥
func openSavedKey(saved, fallback string) string {
	if saved == "" {
		return fallback
	}
	if !utils.IsEncrypted(saved) {
		return saved
	}
	if secretKey == "" {
		log.Printf("⚠️ 已保存的API密钥为密文，但未配置 AUTH_SECRET_KEY，改用环境变量")
		return fallback
	}
	plain, err := utils.Decrypt(saved, secretKey)
	if err != nil {
		log.Printf("⚠️ 无法解密已保存的API密钥，改用环境变量: %v", err)
		return fallback
	}
	return plain
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, err := Load()
		if err != nil {
			baseConfig = &Config{Port: "8080", DataDir: "data", LogDir: "logs", StoreBackend: "file",
				LLMProvider: "google", ConfidenceThreshold: 0.8, ContextChapterWords: 3000, ContextItemWords: 200}
		}
		return FromBase(baseConfig)
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}

// UpdateLLMConfig 更新LLM配置
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return saveLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return saveLocked()
}

func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	// DSN可能包含密码，不落盘
	toSave := *currentConfig
	toSave.StoreDSN = ""
	if key := toSave.LLMConfig["api_key"]; secretKey != "" && key != "" && !utils.IsEncrypted(key) {
		enc, err := utils.Encrypt(key, secretKey)
		if err != nil {
			return fmt.Errorf("加密API密钥失败: %w", err)
		}
		toSave.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
		for k, v := range currentConfig.LLMConfig {
			toSave.LLMConfig[k] = v
		}
		toSave.LLMConfig["api_key"] = enc
	}

	data, err := json.MarshalIndent(&toSave, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
