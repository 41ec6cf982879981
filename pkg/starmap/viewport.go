package starmap

import (
	"math"
	"time"
)

// Map and gesture tuning. The map is a fixed-extent square; all pan
// and zoom state is clamped against it.
const (
	MapExtent = 10000.0

	ZoomMin  = 0.2
	ZoomMax  = 5.0
	zoomStep = 1.01

	holdToDrag   = 500 * time.Millisecond
	momentumStep = 10 * time.Millisecond

	// Per-axis clamp on a single pointer-move's velocity contribution.
	velocityClamp = 30.0
	// Overall velocity cap; keeps a wild fling from teleporting the map.
	velocityMax = 120.0

	panDamping  = 0.18
	panFriction = 0.9
)

type gestureState int

const (
	gestureIdle gestureState = iota
	gesturePossibleDrag
	gestureDragging
)

// Viewport owns pan/zoom state and the gesture machine that drives it.
// All methods take the current time explicitly; nothing reads the wall
// clock, which keeps the fixed-step momentum loop deterministic in
// tests.
type Viewport struct {
	OriginX, OriginY float64
	Zoom             float64
	ScreenW, ScreenH float64

	state        gestureState
	holdDeadline time.Time
	lastX, lastY float64
	velX, velY   float64
	lastStep     time.Time
	accum        time.Duration
}

func NewViewport(screenW, screenH float64) *Viewport {
	return &Viewport{
		OriginX: MapExtent / 2,
		OriginY: MapExtent / 2,
		Zoom:    1.0,
		ScreenW: screenW,
		ScreenH: screenH,
	}
}

// ScreenToWorld converts a screen-pixel coordinate to world space.
// The screen-center offset term keeps the point under the cursor fixed
// while zooming.
func (v *Viewport) ScreenToWorld(sx, sy float64) (float64, float64) {
	cx, cy := v.ScreenW/2, v.ScreenH/2
	wx := sx*v.Zoom + v.OriginX + cx*(1-v.Zoom)
	wy := sy*v.Zoom + v.OriginY + cy*(1-v.Zoom)
	return wx, wy
}

// WorldToScreen is the exact inverse of ScreenToWorld.
func (v *Viewport) WorldToScreen(wx, wy float64) (float64, float64) {
	cx, cy := v.ScreenW/2, v.ScreenH/2
	sx := (wx - v.OriginX - cx*(1-v.Zoom)) / v.Zoom
	sy := (wy - v.OriginY - cy*(1-v.Zoom)) / v.Zoom
	return sx, sy
}

// VisibleRect returns the world-space rectangle currently on screen.
func (v *Viewport) VisibleRect() Rect {
	x0, y0 := v.ScreenToWorld(0, 0)
	x1, y1 := v.ScreenToWorld(v.ScreenW, v.ScreenH)
	return Rect{
		MinX: math.Min(x0, x1), MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1), MaxY: math.Max(y0, y1),
	}
}

// AdjustZoom applies scroll-wheel ticks multiplicatively and clamps.
func (v *Viewport) AdjustZoom(ticks float64) {
	if ticks == 0 {
		return
	}
	v.Zoom *= math.Pow(zoomStep, ticks)
	if v.Zoom > ZoomMax {
		v.Zoom = ZoomMax
	}
	if v.Zoom < ZoomMin {
		v.Zoom = ZoomMin
	}
}

// PointerDown arms the hold timer. A drag is only recognized once the
// timer elapses; movement alone never starts one.
func (v *Viewport) PointerDown(x, y float64, now time.Time) {
	if v.state != gestureIdle {
		return
	}
	v.state = gesturePossibleDrag
	v.holdDeadline = now.Add(holdToDrag)
	v.lastX, v.lastY = x, y
}

// PointerMove feeds drag deltas into the pan velocity. Each axis
// contribution is clamped, and the accumulated velocity is capped.
func (v *Viewport) PointerMove(x, y float64, now time.Time) {
	if v.state != gestureDragging {
		v.lastX, v.lastY = x, y
		return
	}
	dx := clampAbs(v.lastX-x, velocityClamp)
	dy := clampAbs(v.lastY-y, velocityClamp)
	v.velX = clampAbs(v.velX+dx, velocityMax)
	v.velY = clampAbs(v.velY+dy, velocityMax)
	v.lastX, v.lastY = x, y
}

// PointerUp ends the gesture. It reports a click when the hold timer
// never fired: pointer-down immediately followed by pointer-up.
// Momentum from a finished drag keeps coasting in Step.
func (v *Viewport) PointerUp(now time.Time) (clicked bool) {
	switch v.state {
	case gesturePossibleDrag:
		v.state = gestureIdle
		return true
	case gestureDragging:
		v.state = gestureIdle
	}
	return false
}

// PointerLeave cancels any gesture without producing a click.
func (v *Viewport) PointerLeave() {
	v.state = gestureIdle
}

// Dragging reports whether a drag has been recognized.
func (v *Viewport) Dragging() bool {
	return v.state == gestureDragging
}

// Step advances the gesture machine and the momentum integrator. The
// origin moves in fixed 10ms ticks regardless of how often Step is
// called; leftover time carries over in the accumulator.
func (v *Viewport) Step(now time.Time) {
	if v.state == gesturePossibleDrag && !now.Before(v.holdDeadline) {
		v.state = gestureDragging
	}

	if v.lastStep.IsZero() {
		v.lastStep = now
		return
	}
	v.accum += now.Sub(v.lastStep)
	v.lastStep = now
	if v.accum > 250*time.Millisecond {
		// Don't replay a long stall (window hidden, debugger) as motion.
		v.accum = 250 * time.Millisecond
	}

	for v.accum >= momentumStep {
		v.accum -= momentumStep
		v.OriginX = clampRange(v.OriginX+v.velX*v.Zoom*panDamping, 0, MapExtent)
		v.OriginY = clampRange(v.OriginY+v.velY*v.Zoom*panDamping, 0, MapExtent)
		if v.state != gestureDragging {
			v.velX *= panFriction
			v.velY *= panFriction
			if math.Abs(v.velX) < 0.01 {
				v.velX = 0
			}
			if math.Abs(v.velY) < 0.01 {
				v.velY = 0
			}
		}
	}
}

func clampAbs(v, lim float64) float64 {
	if v > lim {
		return lim
	}
	if v < -lim {
		return -lim
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
