// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/SceneScribe/internal/models"
	"github.com/Corphon/SceneScribe/internal/services"
	"github.com/Corphon/SceneScribe/internal/utils"
)

// asyncIngestTimeout 后台摄取任务的最长执行时间
const asyncIngestTimeout = 5 * time.Minute

// Handler 处理API请求
type Handler struct {
	TransformService  *services.TransformService
	GenerationService *services.GenerationService
	ExtractionService *services.ExtractionService
	ContextService    *services.ContextService
	ProgressService   *services.ProgressService
	LLMService        *services.LLMService
	Metrics           *utils.APIMetrics
	WebSocket         *WebSocketManager
	Settings          *services.SettingsService
	rh                *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(
	transformService *services.TransformService,
	generationService *services.GenerationService,
	extractionService *services.ExtractionService,
	contextService *services.ContextService,
	progressService *services.ProgressService,
	llmService *services.LLMService,
	metrics *utils.APIMetrics,
	ws *WebSocketManager,
) *Handler {
	return &Handler{
		TransformService:  transformService,
		GenerationService: generationService,
		ExtractionService: extractionService,
		ContextService:    contextService,
		ProgressService:   progressService,
		LLMService:        llmService,
		Metrics:           metrics,
		WebSocket:         ws,
		rh:                NewResponseHelper(),
	}
}

// TransformText 改写选中的文本
func (h *Handler) TransformText(c *gin.Context) {
	var req models.TransformationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rh.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	resp, err := h.TransformService.Transform(c.Request.Context(), req)
	if err != nil {
		h.rh.AppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GenerateContent 基于章节上下文生成笔记、beat 或正文
func (h *Handler) GenerateContent(c *gin.Context) {
	var req models.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rh.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	resp, err := h.GenerationService.Generate(c.Request.Context(), req)
	if err != nil {
		h.rh.AppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetChapterContext 返回章节的渲染上下文，便于调试提示内容
func (h *Handler) GetChapterContext(c *gin.Context) {
	text, err := h.ContextService.AssembleText(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.rh.AppError(c, err)
		return
	}
	h.rh.Success(c, gin.H{"chapterId": c.Param("id"), "context": text})
}

// IngestNote 分类并提取笔记中的实体；?async=true 时立即返回任务ID
func (h *Handler) IngestNote(c *gin.Context) {
	var req models.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rh.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	async, _ := strconv.ParseBool(c.Query("async"))
	if !async {
		result, err := h.ExtractionService.Ingest(c.Request.Context(), req, nil)
		if err != nil {
			h.rh.AppError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	if req.Content == "" {
		h.rh.BadRequest(c, "content不能为空")
		return
	}

	taskID := uuid.NewString()
	tracker := h.ProgressService.CreateTracker(taskID)
	go h.runIngestTask(tracker, req)

	c.JSON(http.StatusAccepted, gin.H{
		"taskId":      taskID,
		"progressUrl": fmt.Sprintf("/api/progress/%s", taskID),
	})
}

func (h *Handler) runIngestTask(tracker *services.ProgressTracker, req models.IngestRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncIngestTimeout)
	defer cancel()

	result, err := h.ExtractionService.Ingest(ctx, req, tracker)
	if err != nil {
		utils.GetLogger().Error("后台摄取任务失败", map[string]interface{}{
			"task_id": tracker.TaskID,
			"err":     err,
		})
		tracker.Fail(err.Error())
		return
	}
	tracker.Complete("笔记摄取完成", result)
}

// SubscribeProgress 以 SSE 推送任务进度
func (h *Handler) SubscribeProgress(c *gin.Context) {
	taskID := c.Param("taskID")
	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		h.rh.NotFound(c, ErrorTaskNotFound, "任务不存在")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	writeEvent(c, "connected", gin.H{"taskId": taskID})

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			writeEvent(c, "progress", update)
			if update.Status == services.TaskCompleted || update.Status == services.TaskFailed {
				return
			}
		case <-heartbeat.C:
			writeEvent(c, "heartbeat", gin.H{"time": time.Now().Unix()})
		}
	}
}

func writeEvent(c *gin.Context, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, payload)
	c.Writer.Flush()
}

// HealthCheck 返回服务与模型状态
func (h *Handler) HealthCheck(c *gin.Context) {
	ready, state := h.LLMService.GetProviderStatus()
	provider := ""
	if h.LLMService != nil {
		provider = h.LLMService.GetProviderName()
	}

	response := gin.H{
		"status": "ok",
		"llm": gin.H{
			"ready":    ready,
			"state":    state,
			"provider": provider,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.WebSocket != nil {
		response["websocket"] = h.WebSocket.GetStatus()
	}
	c.JSON(http.StatusOK, response)
}

// GetMetrics 返回运行时指标
func (h *Handler) GetMetrics(c *gin.Context) {
	if h.Metrics == nil {
		h.rh.Success(c, gin.H{})
		return
	}
	h.rh.Success(c, h.Metrics.Collector().GetMetrics())
}
