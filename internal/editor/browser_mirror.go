package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserMirror 在无头 Chrome 中渲染镜像节点并用 getBoundingClientRect 测量选区。
// 用于校验 MirrorMeasurer 与真实浏览器排版一致。
type BrowserMirror struct {
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
}

var _ TextMeasurer = (*BrowserMirror)(nil)

// NewBrowserMirror 启动无头浏览器；controlURL 为空时自动下载或查找本地 Chrome
func NewBrowserMirror(ctx context.Context, controlURL string) (*BrowserMirror, error) {
	m := &BrowserMirror{timeout: 15 * time.Second}

	if controlURL == "" {
		m.launcher = launcher.New().Headless(true)
		url, err := m.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		m.kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	m.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	m.page = page
	return m, nil
}

type jsRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

const measureScript = `() => {
	const root = document.getElementById('mirror').getBoundingClientRect();
	const sel = document.getElementById('sel').getBoundingClientRect();
	return JSON.stringify({x: sel.left - root.left, y: sel.top - root.top, w: sel.width, h: sel.height});
}`

const charWidthScript = `() => {
	const probe = document.getElementById('probe').getBoundingClientRect();
	return JSON.stringify({x: 0, y: 0, w: probe.width / 100, h: probe.height});
}`

// mirrorCSS 内容区样式；内边距由调用方在坐标上补偿
func mirrorCSS(style TextStyle, width float64) string {
	return fmt.Sprintf(
		"position:absolute;top:0;left:0;margin:0;padding:0;border:0;width:%gpx;"+
			"white-space:pre-wrap;overflow-wrap:break-word;word-break:normal;"+
			"font-family:%s;font-size:%gpx;line-height:%gpx;tab-size:%d;",
		width, style.FontFamily, style.FontSize, style.LineHeight, max(style.TabSize, 1),
	)
}

func (m *BrowserMirror) eval(markup, script string) (jsRect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page := m.page.Timeout(m.timeout)
	if err := page.SetDocumentContent("<!doctype html><html><body style=\"margin:0\">" + markup + "</body></html>"); err != nil {
		return jsRect{}, fmt.Errorf("render mirror: %w", err)
	}
	res, err := page.Eval(script)
	if err != nil {
		return jsRect{}, fmt.Errorf("measure mirror: %w", err)
	}
	var rect jsRect
	if err := json.Unmarshal([]byte(res.Value.Str()), &rect); err != nil {
		return jsRect{}, fmt.Errorf("decode measurement: %w", err)
	}
	return rect, nil
}

// MeasureRange 实现 TextMeasurer
func (m *BrowserMirror) MeasureRange(s Surface, r Range) (Rect, error) {
	style := s.Style()
	bounds := s.Bounds()
	width := bounds.W - style.Padding.Left - style.Padding.Right
	if width <= 0 {
		return Rect{}, ErrNoLayout
	}

	runes := []rune(s.Text())
	r = r.Clamp(len(runes))

	var b strings.Builder
	fmt.Fprintf(&b, `<div id="mirror" style="%s">`, mirrorCSS(style, width))
	b.WriteString(html.EscapeString(string(runes[:r.Start])))
	b.WriteString(`<span id="sel">`)
	b.WriteString(html.EscapeString(string(runes[r.Start:r.End])))
	b.WriteString(`</span>`)
	b.WriteString(html.EscapeString(string(runes[r.End:])))
	b.WriteString(`</div>`)

	rect, err := m.eval(b.String(), measureScript)
	if err != nil {
		return Rect{}, err
	}

	scroll := s.ScrollOffset()
	return Rect{X: rect.X, Y: rect.Y, W: rect.W, H: rect.H}.Offset(
		bounds.X+style.Padding.Left-scroll.X,
		bounds.Y+style.Padding.Top-scroll.Y,
	), nil
}

// CharWidth 浏览器中该字体窄字符的实际前进宽度
func (m *BrowserMirror) CharWidth(style TextStyle) (float64, error) {
	markup := fmt.Sprintf(`<span id="probe" style="white-space:pre;font-family:%s;font-size:%gpx;">%s</span>`,
		style.FontFamily, style.FontSize, strings.Repeat("x", 100))
	rect, err := m.eval(markup, charWidthScript)
	if err != nil {
		return 0, err
	}
	return rect.W, nil
}

// Close 关闭页面与浏览器
func (m *BrowserMirror) Close() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
	}
	m.kill()
	return err
}

func (m *BrowserMirror) kill() {
	if m.launcher != nil {
		m.launcher.Kill()
	}
}
