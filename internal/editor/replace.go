package editor

import "unicode/utf8"

// Replace 把 text 合并回活动文档，替换 r。
// r 是请求发出时保存的偏移；文档若已变化仍按原偏移应用（超出当前长度时截断）。
// 表面已销毁时不做任何修改并返回 false。
func Replace(s Surface, r Range, text string) (Range, bool) {
	if s == nil || !s.Live() {
		return Range{}, false
	}
	n := utf8.RuneCountInString(text)

	switch v := s.(type) {
	case RichDocument:
		r = r.Clamp(utf8.RuneCountInString(v.Text()))
		v.DeleteRange(r)
		v.InsertText(r.Start, text)
		inserted := Range{Start: r.Start, End: r.Start + n}
		v.Select(inserted)
		return inserted, true

	case PlainSurface:
		runes := []rune(v.Text())
		r = r.Clamp(len(runes))
		v.SetValue(string(runes[:r.Start]) + text + string(runes[r.End:]))
		v.SetCaret(r.Start + n)
		// 程序化赋值不会通知监听器
		v.DispatchInput()
		return Range{Start: r.Start, End: r.Start + n}, true
	}
	return Range{}, false
}

// Insert 在光标位置插入文本
func Insert(s Surface, at int, text string) (Range, bool) {
	return Replace(s, Range{Start: at, End: at}, text)
}
