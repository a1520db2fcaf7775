// cmd/server/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Corphon/SceneScribe/internal/app"
	"github.com/Corphon/SceneScribe/internal/config"
	"github.com/Corphon/SceneScribe/internal/di"
)

func main() {
	log.Println("🚀 启动 SceneScribe 服务器...")

	// 1. 首先加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s", baseConfig.Port)

	// 2. 创建必要的目录
	createDirectories(baseConfig)
	log.Println("✅ 目录结构创建完成")

	// 3. 初始化配置系统
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("初始化配置系统失败: %v", err)
	}
	log.Println("✅ 配置系统初始化完成")

	// 4. 初始化服务与路由
	container := di.GetContainer()
	application := app.New(config.GetCurrentConfig(), container)
	if err := application.Initialize(baseConfig.AuthSecret); err != nil {
		log.Fatalf("❌ 初始化应用失败: %v", err)
	}
	log.Printf("✅ 依赖注入容器初始化完成，服务数量: %d", len(container.GetNames()))

	if err := performHealthCheck(container); err != nil {
		log.Printf("⚠️ 服务健康检查警告: %v", err)
	}

	// 5. 启动服务器
	log.Printf("🌐 服务器启动在端口 %s (存储: %s)", baseConfig.Port, baseConfig.StoreBackend)
	log.Printf("🔗 健康检查: http://localhost:%s/api/health", baseConfig.Port)

	if err := application.Run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// 健康检查函数
func performHealthCheck(container *di.Container) error {
	criticalServices := []string{di.ServiceLLM, di.ServiceStore, di.ServiceExtraction, di.ServiceGeneration}

	for _, serviceName := range criticalServices {
		if !container.Has(serviceName) {
			return fmt.Errorf("关键服务未注册: %s", serviceName)
		}
	}

	log.Println("✅ 服务健康检查通过")
	return nil
}

// createDirectories 创建应用所需的目录结构
func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "documents"),
		cfg.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("创建目录失败 %s: %v", dir, err)
		}
	}
}
