// cmd/demo/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Corphon/SceneScribe/internal/editor"
	"github.com/Corphon/SceneScribe/internal/utils"
)

const sampleText = `The city woke slowly. Fog rolled in from the harbor and settled between the towers, and the first trams rattled along the wet rails.

Mara stood at the window of the archive, holding the letter she had not yet dared to open.`

func main() {
	server := flag.String("server", envOr("SCRIBE_SERVER", "http://localhost:8080"), "SceneScribe 服务地址")
	token := flag.String("token", os.Getenv("SCRIBE_TOKEN"), "Bearer 令牌")
	offline := flag.Bool("offline", false, "不连接服务，使用本地模拟模型")
	file := flag.String("file", "", "载入的文本文件")
	chapter := flag.String("chapter", "demo-chapter", "生成内容时使用的章节ID")
	project := flag.String("project", "", "生成内容时使用的项目ID")
	noAltScreen := flag.Bool("no-alt-screen", false, "不使用备用屏幕")
	flag.Parse()

	logFile := fmt.Sprintf("logs/demo_%s.log", time.Now().Format("2006-01-02"))
	if err := utils.InitLogger(logFile, false); err != nil {
		log.Printf("⚠️ 无法初始化日志: %v", err)
	}

	text := sampleText
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			fmt.Println("读取文件失败:", err)
			os.Exit(1)
		}
		text = string(data)
	}

	var ai aiBackend = offlineAI{delay: 600 * time.Millisecond}
	if !*offline {
		ai = editor.NewAIClient(*server, *token)
	}

	sess := newSession(text, ai, *chapter, *project)
	defer sess.close()

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(newModel(sess), opts...).Run(); err != nil {
		fmt.Println("程序错误:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
