// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/Corphon/SceneScribe/internal/models"
)

// 任务状态
const (
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// stageProgress 提取流水线各阶段对应的进度百分比
var stageProgress = map[models.ExtractionStage]int{
	models.StageReceived:            0,
	models.StageClassifying:         10,
	models.StageEnrichingCharacters: 35,
	models.StageEnrichingLocations:  55,
	models.StageEnrichingEvents:     75,
	models.StagePersisting:          90,
	models.StageDone:                100,
}

// ProgressUpdate 表示进度更新
type ProgressUpdate struct {
	Progress int                    `json:"progress"` // 进度百分比 (0-100)
	Stage    models.ExtractionStage `json:"stage,omitempty"`
	Message  string                 `json:"message"`
	Status   string                 `json:"status"` // running, completed, failed
	Result   interface{}            `json:"result,omitempty"`
}

// ProgressReporter 由流水线调用以报告阶段变化
type ProgressReporter interface {
	Stage(stage models.ExtractionStage, message string)
}

// ProgressTracker 跟踪长时间运行任务的进度
type ProgressTracker struct {
	TaskID       string
	Progress     int
	CurrentStage models.ExtractionStage
	Message      string
	Status       string
	Result       interface{}
	StartTime    time.Time
	UpdateTime   time.Time
	Done         chan struct{}

	subscribers map[chan ProgressUpdate]bool
	mutex       sync.Mutex
}

// ProgressService 管理所有进度跟踪器
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker 创建新的进度跟踪器，已存在时返回现有追踪器
func (s *ProgressService) CreateTracker(taskID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		return tracker
	}

	now := time.Now()
	tracker := &ProgressTracker{
		TaskID:       taskID,
		CurrentStage: models.StageReceived,
		Message:      "任务初始化中...",
		Status:       TaskRunning,
		StartTime:    now,
		UpdateTime:   now,
		Done:         make(chan struct{}),
		subscribers:  make(map[chan ProgressUpdate]bool),
	}
	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker 获取进度跟踪器
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// CleanupCompletedTasks 清理已结束且超过 maxAge 的任务
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		finished := tracker.Status != TaskRunning
		old := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if finished && old {
			delete(s.trackers, id)
			removed++
		}
	}
	return removed
}

// UpdateProgress 更新任务进度，进度只增不减
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != TaskRunning {
		return
	}
	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()
	t.broadcastLocked()
}

// Stage 实现 ProgressReporter
func (t *ProgressTracker) Stage(stage models.ExtractionStage, message string) {
	if stage == models.StageFailed {
		t.Fail(message)
		return
	}
	t.mutex.Lock()
	if t.Status == TaskRunning {
		t.CurrentStage = stage
	}
	t.mutex.Unlock()
	t.UpdateProgress(stageProgress[stage], message)
}

// Complete 标记任务完成并附带结果
func (t *ProgressTracker) Complete(message string, result interface{}) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != TaskRunning {
		return
	}
	if message == "" {
		message = "任务已完成"
	}
	t.Progress = 100
	t.CurrentStage = models.StageDone
	t.Message = message
	t.Status = TaskCompleted
	t.Result = result
	t.UpdateTime = time.Now()
	t.broadcastLocked()
	close(t.Done)
}

// Fail 标记任务失败
func (t *ProgressTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != TaskRunning {
		return
	}
	t.CurrentStage = models.StageFailed
	t.Message = fmt.Sprintf("任务失败: %s", errorMsg)
	t.Status = TaskFailed
	t.UpdateTime = time.Now()
	t.broadcastLocked()
	close(t.Done)
}

// Snapshot 当前状态
func (t *ProgressTracker) Snapshot() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.updateLocked()
}

// Subscribe 订阅进度更新，立即收到当前状态
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan ProgressUpdate, 10)
	t.subscribers[subscriber] = true
	subscriber <- t.updateLocked()
	return subscriber
}

// Unsubscribe 取消订阅
func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.subscribers[subscriber] {
		delete(t.subscribers, subscriber)
		close(subscriber)
	}
}

func (t *ProgressTracker) updateLocked() ProgressUpdate {
	return ProgressUpdate{
		Progress: t.Progress,
		Stage:    t.CurrentStage,
		Message:  t.Message,
		Status:   t.Status,
		Result:   t.Result,
	}
}

// broadcastLocked 非阻塞通知所有订阅者，通道已满则跳过
func (t *ProgressTracker) broadcastLocked() {
	update := t.updateLocked()
	for subscriber := range t.subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}
