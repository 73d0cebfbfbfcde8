package wl

import (
	"math"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
)

// ConstraintInput is the guest cursor state a pointer constraint is
// derived from. Rectangles are in guest screen coordinates.
type ConstraintInput struct {
	Clip          w32.Rect
	Client        w32.Rect
	VirtualScreen w32.Rect
	CursorVisible bool
	SetCursorPos  bool
	LockedReason  LockReason
}

type ConstraintDecision struct {
	Lock         bool
	Confine      bool
	LockedReason LockReason
	// ClientClip is the confinement area.
	ClientClip w32.Rect
}

// DecideConstraint picks between locking, confining or releasing the
// pointer.
func DecideConstraint(in ConstraintInput) ConstraintDecision {
	clip := in.Clip.Intersect(in.VirtualScreen)
	d := ConstraintDecision{ClientClip: clip.Intersect(in.Client)}

	if !d.ClientClip.Empty() || clip.Empty() {
		// a fullscreen client cannot tell an explicit full screen clip from
		// no clip at all, so it may lock either way
		lockClip := clip != in.VirtualScreen || in.Client == in.VirtualScreen
		confineClip := clip != in.VirtualScreen
		needsUnlock := in.LockedReason != 0 &&
			(in.CursorVisible || (in.LockedReason&LockReasonClip != 0 && !lockClip))

		if !needsUnlock && !in.CursorVisible && (lockClip || in.SetCursorPos) {
			d.LockedReason = in.LockedReason
			if lockClip {
				d.LockedReason |= LockReasonClip
			}
			if in.SetCursorPos {
				d.LockedReason |= LockReasonSetCursorPos
			}
			d.Lock = true
		} else if in.CursorVisible && confineClip {
			d.Confine = true
		}
	}
	return d
}

// UpdatePointerConstraint applies the current guest clip and cursor state
// to the surface, or to its GL/VK child when there is one.
func (s *Surface) UpdatePointerConstraint() {
	c := s.c
	s.mu.Lock()
	setCursorPos := s.setCursorPos
	s.setCursorPos = false
	s.mu.Unlock()

	p := c.Pointer
	p.mu.Lock()
	ptr, reason := p.wl, p.lockedReason
	p.mu.Unlock()
	if c.PointerConstraints == nil || ptr == nil {
		return
	}

	client, _ := c.ws.ClientRect(s.Window())
	in := ConstraintInput{
		Clip:          c.ws.ClipRect(),
		Client:        client,
		VirtualScreen: c.ws.VirtualScreen(),
		CursorVisible: c.ws.CursorVisible(),
		SetCursorPos:  setCursorPos,
		LockedReason:  reason,
	}

	target := s
	if glvk := s.refGLVK(); glvk != nil {
		defer s.UnrefGLVK()
		s.mu.Lock()
		locked, confined := s.locked, s.confined
		s.locked, s.confined = nil, nil
		s.mu.Unlock()
		if locked != nil {
			locked.Destroy()
		}
		if confined != nil {
			confined.Destroy()
		}
		target = glvk
	}

	d := DecideConstraint(in)
	s.log().Tracef("constraint clip=%v client=%v lock=%t confine=%t", in.Clip, in.Client, d.Lock, d.Confine)

	p.mu.Lock()
	p.lockedReason = d.LockedReason
	p.mu.Unlock()

	target.mu.Lock()
	if !d.Lock && target.locked != nil {
		if pos := c.ws.CursorPos(); client.Contains(pos) {
			x, y := target.CoordsFromScreen(pos)
			target.locked.SetCursorPositionHint(wlp.FixedFromFloat(x), wlp.FixedFromFloat(y))
			target.wl.Commit()
		}
		target.locked.Destroy()
		target.locked = nil
	}
	if !d.Confine && target.confined != nil {
		target.confined.Destroy()
		target.confined = nil
	}

	switch {
	case d.Confine:
		left, top := target.CoordsFromScreen(w32.Point{X: d.ClientClip.Left, Y: d.ClientClip.Top})
		right, bottom := target.CoordsFromScreen(w32.Point{X: d.ClientClip.Right, Y: d.ClientClip.Bottom})
		region, err := c.Compositor.CreateRegion()
		if err != nil {
			s.log().WithError(err).Warn("unable to create confine region")
			break
		}
		region.Add(int32(math.Round(left)), int32(math.Round(top)),
			int32(math.Round(right-left)), int32(math.Round(bottom-top)))
		if target.confined == nil {
			target.confined, err = c.PointerConstraints.ConfinePointer(target.wl, ptr, region, wlp.ConstraintLifetimePersistent, nil)
			if err != nil {
				s.log().WithError(err).Warn("unable to confine pointer")
			}
		} else {
			target.confined.SetRegion(region)
		}
		region.Destroy()
	case d.Lock:
		if target.locked == nil {
			var err error
			target.locked, err = c.PointerConstraints.LockPointer(target.wl, ptr, nil, wlp.ConstraintLifetimePersistent, nil)
			if err != nil {
				s.log().WithError(err).Warn("unable to lock pointer")
			}
		} else {
			target.locked.SetRegion(nil)
		}
	}
	if d.Confine || d.Lock {
		target.wl.Commit()
	}
	locked := target.locked != nil
	target.mu.Unlock()

	if p.Focused() == target {
		p.setRelative(locked)
	}
}
