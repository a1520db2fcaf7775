package editor

import "sync"

// HighlightClass 富文本中选区高亮装饰的类名
const HighlightClass = "scribe-highlight"

// OverlaySpan 覆盖层中的一段文本；文字透明，只有高亮段有背景
type OverlaySpan struct {
	Text        string
	Highlighted bool
}

// OverlayNode 叠放在纯文本输入框上方的覆盖节点，排版参数与源表面完全一致
type OverlayNode struct {
	Bounds Rect
	Style  TextStyle
	Scroll Point
	Spans  [3]OverlaySpan
}

// OverlayLayer 覆盖节点的挂载点
type OverlayLayer interface {
	Mount(n *OverlayNode)
	Unmount(n *OverlayNode)
}

// MemoryLayer 记录已挂载节点的 OverlayLayer
type MemoryLayer struct {
	mu    sync.Mutex
	nodes []*OverlayNode
}

// Mount 实现 OverlayLayer
func (l *MemoryLayer) Mount(n *OverlayNode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes = append(l.nodes, n)
}

// Unmount 实现 OverlayLayer
func (l *MemoryLayer) Unmount(n *OverlayNode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, v := range l.nodes {
		if v == n {
			l.nodes = append(l.nodes[:i], l.nodes[i+1:]...)
			return
		}
	}
}

// Nodes 当前挂载的节点
func (l *MemoryLayer) Nodes() []*OverlayNode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*OverlayNode(nil), l.nodes...)
}

// PlainOverlay 一个已挂载的覆盖节点及其滚动订阅
type PlainOverlay struct {
	layer       OverlayLayer
	node        *OverlayNode
	unsubscribe func()
}

// ShowPlainOverlay 在纯文本表面上方挂载覆盖层，高亮 r
func ShowPlainOverlay(layer OverlayLayer, s PlainSurface, r Range) *PlainOverlay {
	runes := []rune(s.Text())
	r = r.Clamp(len(runes))

	node := &OverlayNode{
		Bounds: s.Bounds(),
		Style:  s.Style(),
		Scroll: s.ScrollOffset(),
		Spans: [3]OverlaySpan{
			{Text: string(runes[:r.Start])},
			{Text: string(runes[r.Start:r.End]), Highlighted: true},
			{Text: string(runes[r.End:])},
		},
	}
	layer.Mount(node)

	o := &PlainOverlay{layer: layer, node: node}
	o.unsubscribe = s.OnScroll(func(p Point) { node.Scroll = p })
	return o
}

// Node 覆盖节点
func (o *PlainOverlay) Node() *OverlayNode { return o.node }

// Remove 卸载节点并取消滚动订阅，可重复调用
func (o *PlainOverlay) Remove() {
	if o.node == nil {
		return
	}
	o.unsubscribe()
	o.layer.Unmount(o.node)
	o.node = nil
}

// Highlight 管理被锁定区间的视觉提示：纯文本表面用覆盖层，富文本用装饰
type Highlight struct {
	layer   OverlayLayer
	overlay *PlainOverlay
	rich    RichDocument
}

// NewHighlight 创建高亮管理器
func NewHighlight(layer OverlayLayer) *Highlight {
	return &Highlight{layer: layer}
}

// Show 清除旧高亮后高亮 s 上的 r
func (h *Highlight) Show(s Surface, r Range) {
	h.Clear()
	switch v := s.(type) {
	case RichDocument:
		v.AddDecoration(HighlightClass, r)
		h.rich = v
	case PlainSurface:
		if h.layer != nil {
			h.overlay = ShowPlainOverlay(h.layer, v, r)
		}
	}
}

// Clear 移除所有高亮
func (h *Highlight) Clear() {
	if h.overlay != nil {
		h.overlay.Remove()
		h.overlay = nil
	}
	if h.rich != nil {
		h.rich.ClearDecorations(HighlightClass)
		h.rich = nil
	}
}
