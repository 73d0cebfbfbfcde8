package wl

import (
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
)

// Buffer is pixel content that can be committed to a surface. Sizes are in
// guest units.
type Buffer interface {
	Proxy() wlp.Buffer
	Size() (int32, int32)
	SetBusy(busy bool)
}

// CommitBuffer attaches buf with one damage rectangle per entry of damage
// and commits. Buffers that may not be shown in the current state are
// dropped and marked not busy; the result reports whether buf was committed.
func (s *Surface) CommitBuffer(buf Buffer, damage []w32.Rect) bool {
	s.mu.Lock()
	bw, bh := buf.Size()
	width, height := s.CoordsRoundedFromWine(bw, bh)
	if !s.drawingAllowed || !s.current.IsCompatible(width, height, s.current.Flags) {
		s.mu.Unlock()
		s.log().Tracef("dropping %dx%d buffer", bw, bh)
		buf.SetBusy(false)
		return false
	}

	s.wl.Attach(buf.Proxy(), 0, 0)
	for _, r := range damage {
		s.wl.DamageBuffer(r.Left, r.Top, r.Width(), r.Height())
	}
	s.wl.Commit()
	s.mapped = true
	s.mu.Unlock()

	if err := s.c.Flush(); err != nil {
		s.log().WithError(err).Error("flush after commit failed")
	}
	return true
}

// EnsureMapped commits a blank buffer to an unmapped surface, parents
// first, so that children committing content get frame callbacks.
func (s *Surface) EnsureMapped() {
	if parent := s.Parent(); parent != nil {
		parent.EnsureMapped()
	}

	s.mu.Lock()
	if s.mapped {
		s.mu.Unlock()
		return
	}
	width, height, flags := s.current.Width, s.current.Height, s.current.Flags
	s.mu.Unlock()

	// large enough to stay visible when the compositor scales it down
	if width == 0 {
		width = 32
	}
	if height == 0 {
		height = 32
	}
	var wineWidth, wineHeight int32
	if flags&ConfigureFullscreen != 0 && flags&ConfigureMaximized == 0 {
		wineWidth, wineHeight = s.FullscreenFit(width, height)
	} else {
		wineWidth, wineHeight = s.CoordsToWine(float64(width), float64(height))
	}

	buf, err := NewShmBuffer(s.c, wineWidth, wineHeight, wlp.ShmFormatARGB8888)
	if err != nil {
		s.log().WithError(err).Warn("unable to create dummy buffer")
		return
	}
	buf.DestroyOnRelease()
	if !s.CommitBuffer(buf, []w32.Rect{w32.NewRect(0, 0, wineWidth, wineHeight)}) {
		buf.Destroy()
	}
}

// ReconfigurePosition moves a subsurface relative to its parent. Changes
// take effect on ReconfigureApply.
func (s *Surface) ReconfigurePosition(x, y int32) {
	wx, wy := s.CoordsRoundedFromWine(x, y)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subsurface != nil {
		s.subsurface.SetPosition(wx, wy)
	}
}

// ReconfigureGeometry sets the visible part of a toplevel surface, kept
// within what the current configure allows.
func (s *Surface) ReconfigureGeometry(x, y, width, height int32) {
	wx, wy := s.CoordsRoundedFromWine(x, y)
	ww, wh := s.CoordsRoundedFromWine(width, height)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.xdgSurface == nil || ww == 0 || wh == 0 {
		return
	}
	switch {
	case s.current.Flags&ConfigureMaximized != 0:
		ww, wh = s.current.Width, s.current.Height
	case s.current.Flags&ConfigureFullscreen != 0:
		ww, wh = min32(ww, s.current.Width), min32(wh, s.current.Height)
	}
	s.xdgSurface.SetWindowGeometry(wx, wy, ww, wh)
}

// ReconfigureSize scales the surface to width x height through its
// viewport. A zero size unsets the destination.
func (s *Surface) ReconfigureSize(width, height int32) {
	ww, wh := s.CoordsRoundedFromWine(width, height)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewport == nil {
		return
	}
	if ww != 0 && wh != 0 {
		s.viewport.SetDestination(ww, wh)
	} else {
		s.viewport.SetDestination(-1, -1)
	}
}

// ReconfigureApply commits pending geometry changes of the surface, its
// GL/VK child and its parent.
func (s *Surface) ReconfigureApply() {
	if glvk := s.refGLVK(); glvk != nil {
		glvk.wl.Commit()
		s.UnrefGLVK()
	}
	s.wl.Commit()
	if parent := s.Parent(); parent != nil {
		parent.wl.Commit()
	}
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
