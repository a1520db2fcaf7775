package editor

import (
	"sync"
	"time"
)

// Scheduler 负责延迟执行，回调必须在 Loop 协程上运行
type Scheduler interface {
	// AfterFunc 在 d 之后执行 f，返回的函数用于取消
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// Loop 串行执行投递的任务，相当于界面事件循环
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewLoop 创建并启动事件循环
func NewLoop() *Loop {
	l := &Loop{
		tasks:   make(chan func(), 256),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		select {
		case f := <-l.tasks:
			f()
		case <-l.done:
			return
		}
	}
}

// Post 投递任务；循环已关闭时返回 false
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- f:
		return true
	case <-l.done:
		return false
	}
}

// Do 投递任务并等待其执行完毕；不能在 Loop 协程内调用
func (l *Loop) Do(f func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		f()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.stopped:
		return false
	}
}

// AfterFunc 实现 Scheduler：计时器到期后把 f 投递回循环
func (l *Loop) AfterFunc(d time.Duration, f func()) func() {
	var (
		mu        sync.Mutex
		cancelled bool
	)
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			mu.Lock()
			c := cancelled
			mu.Unlock()
			if !c {
				f()
			}
		})
	})
	return func() {
		mu.Lock()
		cancelled = true
		mu.Unlock()
		t.Stop()
	}
}

// Close 停止循环并等待协程退出，未执行的任务被丢弃
func (l *Loop) Close() {
	l.stopOnce.Do(func() { close(l.done) })
	<-l.stopped
}
