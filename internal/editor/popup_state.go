package editor

import "sync"

// PopupKind 当前激活的弹窗
type PopupKind int

const (
	PopupNone PopupKind = iota
	PopupScribe
	PopupWrite
)

func (k PopupKind) String() string {
	switch k {
	case PopupScribe:
		return "scribeActive"
	case PopupWrite:
		return "writeActive"
	default:
		return "none"
	}
}

// PopupListener 在状态变化时被同步调用
type PopupListener func(prev, next PopupKind)

// PopupStore 是弹窗状态的唯一持有者。所有修改都经过 Set，读取通过订阅。
// 一个弹窗激活时另一个在同一次 Set 调用中收到通知，不存在两个弹窗同时可见的帧。
type PopupStore struct {
	mu        sync.Mutex
	state     PopupKind
	nextID    int
	listeners map[int]PopupListener
	order     []int
}

// NewPopupStore 创建初始为 PopupNone 的状态容器
func NewPopupStore() *PopupStore {
	return &PopupStore{listeners: make(map[int]PopupListener)}
}

// Get 当前状态
func (s *PopupStore) Get() PopupKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set 切换状态并按订阅顺序同步通知；状态未变时不通知
func (s *PopupStore) Set(next PopupKind) {
	s.mu.Lock()
	prev := s.state
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	listeners := make([]PopupListener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
}

// Subscribe 注册监听器，返回取消函数
func (s *PopupStore) Subscribe(l PopupListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}
