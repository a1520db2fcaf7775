package editor

// 默认弹窗尺寸
var (
	DefaultScribeSize = Size{W: 320, H: 180}
	DefaultWriteSize  = Size{W: 280, H: 120}
)

type placement struct {
	candidate Point
	origin    Rect
}

// Coordinator 负责弹窗的放置与外部点击关闭。弹窗互斥由 PopupStore 保证，
// 协调器仅订阅状态并在每次激活、视口变化、滚动时重新放置。
type Coordinator struct {
	store    *PopupStore
	viewport Size
	sizes    map[PopupKind]Size
	pending  map[PopupKind]placement

	active PopupKind
	anchor Anchor
	onMove func(PopupKind, Anchor)

	unsubscribe func()
}

// NewCoordinator 创建协调器并订阅弹窗状态
func NewCoordinator(store *PopupStore, viewport Size) *Coordinator {
	c := &Coordinator{
		store:    store,
		viewport: viewport,
		sizes: map[PopupKind]Size{
			PopupScribe: DefaultScribeSize,
			PopupWrite:  DefaultWriteSize,
		},
		pending: make(map[PopupKind]placement),
	}
	c.unsubscribe = store.Subscribe(c.onState)
	return c
}

// OnPlace 每次计算出新位置时回调；kind 为 PopupNone 表示弹窗已隐藏
func (c *Coordinator) OnPlace(f func(PopupKind, Anchor)) { c.onMove = f }

// SetPopupSize 设置弹窗实际渲染尺寸
func (c *Coordinator) SetPopupSize(kind PopupKind, size Size) {
	c.sizes[kind] = size
	if c.active == kind {
		c.place()
	}
}

// Prepare 记录下一次激活 kind 时使用的候选坐标，不改变状态
func (c *Coordinator) Prepare(kind PopupKind, candidate Point, origin Rect) {
	c.pending[kind] = placement{candidate: candidate, origin: origin}
	if c.active == kind {
		c.place()
	}
}

// Open 记录候选坐标并激活弹窗
func (c *Coordinator) Open(kind PopupKind, candidate Point, origin Rect) {
	c.Prepare(kind, candidate, origin)
	c.store.Set(kind)
}

// Close 关闭当前弹窗
func (c *Coordinator) Close() {
	c.store.Set(PopupNone)
}

// Active 当前激活的弹窗
func (c *Coordinator) Active() PopupKind { return c.active }

// Anchor 当前弹窗位置
func (c *Coordinator) Anchor() (Anchor, bool) {
	return c.anchor, c.active != PopupNone
}

// PopupRect 当前弹窗占据的区域
func (c *Coordinator) PopupRect() (Rect, bool) {
	if c.active == PopupNone {
		return Rect{}, false
	}
	size := c.sizes[c.active]
	return Rect{X: c.anchor.Left, Y: c.anchor.Top, W: size.W, H: size.H}, true
}

// ViewportChanged 视口尺寸变化
func (c *Coordinator) ViewportChanged(viewport Size) {
	c.viewport = viewport
	c.place()
}

// Scrolled 页面滚动 delta 后锚点随内容移动
func (c *Coordinator) Scrolled(delta Point) {
	for kind, p := range c.pending {
		p.candidate = Point{X: p.candidate.X - delta.X, Y: p.candidate.Y - delta.Y}
		p.origin = p.origin.Offset(-delta.X, -delta.Y)
		c.pending[kind] = p
	}
	c.place()
}

// PointerDown 在弹窗与其来源表面之外按下时立即关闭弹窗，返回是否关闭
func (c *Coordinator) PointerDown(p Point) bool {
	rect, open := c.PopupRect()
	if !open || rect.Contains(p) || c.pending[c.active].origin.Contains(p) {
		return false
	}
	c.Close()
	return true
}

// Stop 取消订阅
func (c *Coordinator) Stop() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Coordinator) onState(_, next PopupKind) {
	c.active = next
	if next == PopupNone {
		c.anchor = Anchor{}
		if c.onMove != nil {
			c.onMove(PopupNone, Anchor{})
		}
		return
	}
	c.place()
}

func (c *Coordinator) place() {
	if c.active == PopupNone {
		return
	}
	c.anchor = Place(c.pending[c.active].candidate, c.sizes[c.active], c.viewport)
	if c.onMove != nil {
		c.onMove(c.active, c.anchor)
	}
}
