package input

// Rect is a displayed-frame rectangle in physical pixels, positioned within
// a larger viewport (e.g. letterboxed video inside a window).
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether (px,py) — in the same pixel space as r — falls
// inside the displayed rectangle.
func (r Rect) Contains(px, py float64) bool {
	return px >= r.X && px < r.X+r.W && py >= r.Y && py < r.Y+r.H
}

// NormalizeInFrame maps a point in viewport pixel space to [0,1] coordinates
// relative to the displayed frame, for an event already confirmed to be
// inside that frame by Rect.Contains. Points outside the frame must be
// suppressed by the caller before reaching the wire.
func NormalizeInFrame(r Rect, px, py float64) (x, y float64) {
	if r.W <= 0 || r.H <= 0 {
		return 0, 0
	}
	return (px - r.X) / r.W, (py - r.Y) / r.H
}

// Denormalize maps a client-displayed-frame-normalized (x,y) in [0,1] to
// physical pixels on a screen of the given logical size, scaled by the
// device pixel ratio (1.0 on everything but a Retina-class macOS display).
func Denormalize(x, y float64, screenW, screenH int, devicePixelRatio float64) (px, py int) {
	if devicePixelRatio <= 0 {
		devicePixelRatio = 1
	}
	px = int(x * float64(screenW) * devicePixelRatio)
	py = int(y * float64(screenH) * devicePixelRatio)
	return px, py
}
