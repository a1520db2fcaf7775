package editor

// 弹窗放置参数，单位为像素
const (
	EdgeMargin   = 20.0
	MinTop       = 10.0
	AnchorOffset = 8.0
)

// Place 根据候选坐标、弹窗尺寸和视口计算弹窗位置。
// 底部空间不足时翻转到锚点上方；结果对相同输入是幂等的。
func Place(candidate Point, popup, viewport Size) Anchor {
	left := candidate.X
	if maxLeft := viewport.W - popup.W - EdgeMargin; left > maxLeft {
		left = maxLeft
	}
	if left < EdgeMargin {
		left = EdgeMargin
	}

	a := Anchor{Left: left}
	if candidate.Y+popup.H > viewport.H-EdgeMargin {
		a.Top = candidate.Y - popup.H - AnchorOffset
		a.PositionedAbove = true
	} else {
		a.Top = candidate.Y + AnchorOffset
	}
	if a.Top < MinTop {
		a.Top = MinTop
	}
	return a
}
