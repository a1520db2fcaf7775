package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScribe/internal/models"
)

func TestProgressTrackerStages(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("task-1")
	assert.Same(t, tracker, svc.CreateTracker("task-1"))

	sub := tracker.Subscribe()
	initial := <-sub
	assert.Equal(t, TaskRunning, initial.Status)
	assert.Equal(t, models.StageReceived, initial.Stage)

	tracker.Stage(models.StageEnrichingLocations, "locations")
	update := <-sub
	assert.Equal(t, 55, update.Progress)
	assert.Equal(t, models.StageEnrichingLocations, update.Stage)

	// 进度不回退
	tracker.Stage(models.StageClassifying, "")
	assert.Equal(t, 55, (<-sub).Progress)

	tracker.Complete("", map[string]string{"noteId": "n1"})
	done := <-sub
	assert.Equal(t, TaskCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.NotNil(t, done.Result)

	// 结束后的调用被忽略，不会重复关闭 Done
	tracker.Fail("late")
	tracker.Complete("again", nil)
	assert.Equal(t, TaskCompleted, tracker.Snapshot().Status)

	select {
	case <-tracker.Done:
	default:
		t.Fatal("Done should be closed")
	}

	tracker.Unsubscribe(sub)
	tracker.Unsubscribe(sub)
}

func TestProgressTrackerFailAndCleanup(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("task-2")
	tracker.Stage(models.StageFailed, "model format")

	snap := tracker.Snapshot()
	assert.Equal(t, TaskFailed, snap.Status)
	assert.Equal(t, models.StageFailed, snap.Stage)
	assert.Contains(t, snap.Message, "model format")

	svc.CreateTracker("task-3")
	assert.Equal(t, 0, svc.CleanupCompletedTasks(time.Hour))

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, svc.CleanupCompletedTasks(time.Millisecond))
	_, ok := svc.GetTracker("task-2")
	assert.False(t, ok)
	_, ok = svc.GetTracker("task-3")
	require.True(t, ok)
}
