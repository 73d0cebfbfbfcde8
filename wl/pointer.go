package wl

import (
	"sync"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
)

// LockReason records why the pointer was locked.
type LockReason uint32

const (
	LockReasonClip LockReason = 1 << iota
	LockReasonSetCursorPos
)

// Pointer is the seat pointer and its focus. The hooks run on the dispatch
// goroutine with guest screen coordinates.
type Pointer struct {
	c  *Client
	mu *sync.Mutex

	wl           wlp.Pointer
	relative     wlp.RelativePointer
	focused      *Surface
	enterSerial  uint32
	lockedReason LockReason

	OnMotion         func(hwnd w32.HWND, pos w32.Point)
	OnRelativeMotion func(hwnd w32.HWND, dx, dy int32)
	OnButton         func(hwnd w32.HWND, button uint32, pressed bool)
	OnLeave          func(hwnd w32.HWND)
}

func (p *Pointer) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wl != nil
}

func (p *Pointer) Focused() *Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focused
}

// Relative reports whether relative motion events are delivered.
func (p *Pointer) Relative() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.relative != nil
}

func (p *Pointer) setAvailable(seat wlp.Seat, available bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case available && p.wl == nil:
		ptr, err := seat.GetPointer(p)
		if err != nil {
			log.WithError(err).Error("unable to get pointer")
			return
		}
		p.wl = ptr
		log.Debug("pointer available")
	case !available && p.wl != nil:
		if p.relative != nil {
			p.relative.Destroy()
			p.relative = nil
		}
		p.wl.Release()
		p.wl = nil
		p.focused = nil
		log.Debug("pointer removed")
	}
}

func (p *Pointer) clearFocus(s *Surface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.focused == s {
		p.focused = nil
	}
}

// setRelative switches relative motion on or off for the pointer.
func (p *Pointer) setRelative(enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if enable && p.relative == nil && p.wl != nil && p.c.RelativePointerManager != nil {
		rel, err := p.c.RelativePointerManager.GetRelativePointer(p.wl, relativePointerListener{p})
		if err != nil {
			log.WithError(err).Warn("unable to get relative pointer")
			return
		}
		p.relative = rel
	} else if !enable && p.relative != nil {
		p.relative.Destroy()
		p.relative = nil
	}
}

func (p *Pointer) Enter(serial uint32, surface wlp.Surface, x, y wlp.Fixed) {
	s := p.c.surfaceFor(surface)
	p.mu.Lock()
	p.focused = s
	p.enterSerial = serial
	p.mu.Unlock()
	if s != nil {
		p.motion(s, x, y)
	}
}

func (p *Pointer) Leave(serial uint32, surface wlp.Surface) {
	p.mu.Lock()
	s := p.focused
	p.focused = nil
	p.mu.Unlock()
	if s != nil && p.OnLeave != nil {
		p.OnLeave(s.Window())
	}
}

func (p *Pointer) Motion(time uint32, x, y wlp.Fixed) {
	if s := p.Focused(); s != nil {
		p.motion(s, x, y)
	}
}

func (p *Pointer) motion(s *Surface, x, y wlp.Fixed) {
	// absolute motion is ignored while locked
	if p.Relative() || p.OnMotion == nil {
		return
	}
	p.OnMotion(s.Window(), s.CoordsToScreen(x.Float(), y.Float()))
}

func (p *Pointer) Button(serial, time, button, state uint32) {
	s := p.Focused()
	if s == nil || p.OnButton == nil {
		return
	}
	p.OnButton(s.Window(), button, state == 1)
}

func (p *Pointer) Axis(time, axis uint32, value wlp.Fixed) {}

func (p *Pointer) Frame() {}

type relativePointerListener struct {
	p *Pointer
}

func (l relativePointerListener) RelativeMotion(utime uint64, dx, dy, dxUnaccel, dyUnaccel wlp.Fixed) {
	s := l.p.Focused()
	if s == nil || l.p.OnRelativeMotion == nil {
		return
	}
	wx, wy := s.CoordsToWine(dx.Float(), dy.Float())
	l.p.OnRelativeMotion(s.Window(), wx, wy)
}
