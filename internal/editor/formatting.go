package editor

import "slices"

// FormattingWatcher 订阅富文本文档的变更通知，只在生效格式集合变化时回调
type FormattingWatcher struct {
	doc         RichDocument
	last        []string
	onChange    func(active []string)
	unsubscribe func()
}

// WatchFormatting 立即以当前格式回调一次，之后仅在变化时回调
func WatchFormatting(doc RichDocument, onChange func(active []string)) *FormattingWatcher {
	w := &FormattingWatcher{
		doc:      doc,
		last:     doc.ActiveMarks(),
		onChange: onChange,
	}
	onChange(w.last)
	w.unsubscribe = doc.Subscribe(w.handle)
	return w
}

func (w *FormattingWatcher) handle(change DocChange) {
	if change.Kind == ChangeDecorations {
		return
	}
	active := w.doc.ActiveMarks()
	if slices.Equal(active, w.last) {
		return
	}
	w.last = active
	w.onChange(active)
}

// Active 最近一次的格式集合
func (w *FormattingWatcher) Active() []string {
	return append([]string(nil), w.last...)
}

// Stop 取消订阅
func (w *FormattingWatcher) Stop() {
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
}
