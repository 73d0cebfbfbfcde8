package wl

import (
	"math"

	"github.com/kichirouhoshino/wine-wayland/w32"
)

// BufferScale is the scale of the surface's main output, 1 without one.
func (s *Surface) BufferScale() int32 {
	if o := s.MainOutput(); o != nil {
		return o.BufferScale()
	}
	return 1
}

// CoordsFromWine converts window-local guest coordinates to surface-local
// coordinates.
func (s *Surface) CoordsFromWine(x, y int32) (float64, float64) {
	scale := float64(s.BufferScale())
	if o := s.MainOutput(); o != nil {
		ws := o.WineScale()
		return float64(x) * ws / scale, float64(y) * ws / scale
	}
	return float64(x) / scale, float64(y) / scale
}

func (s *Surface) CoordsRoundedFromWine(x, y int32) (int32, int32) {
	wx, wy := s.CoordsFromWine(x, y)
	return int32(math.Round(wx)), int32(math.Round(wy))
}

// CoordsToWine converts surface-local coordinates to window-local guest
// coordinates.
func (s *Surface) CoordsToWine(x, y float64) (int32, int32) {
	scale := float64(s.BufferScale())
	ws := 1.0
	if o := s.MainOutput(); o != nil {
		ws = o.WineScale()
	}
	return int32(math.Round(x * scale / ws)), int32(math.Round(y * scale / ws))
}

// windowOrigin is the guest screen position of surface-local 0,0.
func (s *Surface) windowOrigin() w32.Point {
	r, _ := s.c.ws.WindowRect(s.Window())
	return w32.Point{X: r.Left + s.offsetX.Load(), Y: r.Top + s.offsetY.Load()}
}

func (s *Surface) CoordsToScreen(x, y float64) w32.Point {
	wx, wy := s.CoordsToWine(x, y)
	o := s.windowOrigin()
	return w32.Point{X: wx + o.X, Y: wy + o.Y}
}

func (s *Surface) CoordsFromScreen(p w32.Point) (float64, float64) {
	o := s.windowOrigin()
	return s.CoordsFromWine(p.X-o.X, p.Y-o.Y)
}

// FullscreenFit returns the guest size of a fullscreen window that fills
// the largest part of a width x height surface while keeping the aspect
// ratio of the guest display mode.
func (s *Surface) FullscreenFit(width, height int32) (int32, int32) {
	w, h := float64(width), float64(height)
	if o := s.MainOutput(); o != nil {
		mw, mh := o.WineMode()
		if mw > 0 && mh > 0 && height > 0 {
			aspect := w / h
			wineAspect := float64(mw) / float64(mh)
			if aspect > wineAspect {
				w = h * wineAspect
			} else {
				h = w / wineAspect
			}
		}
	}
	return s.CoordsToWine(w, h)
}
