package wl

import (
	"math"

	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
	"github.com/pkg/errors"
)

// GLVK returns the GL/VK child without taking a reference.
func (s *Surface) GLVK() *Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.glvk
}

func (s *Surface) refGLVK() *Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.glvk == nil {
		return nil
	}
	return s.glvk.Ref()
}

// CreateOrRefGLVK references the GL/VK child of s, creating it over the
// client area when there is none yet.
func (s *Surface) CreateOrRefGLVK() error {
	s.glvkMu.Lock()
	defer s.glvkMu.Unlock()
	if s.refGLVK() != nil {
		return nil
	}

	glvk, err := s.c.CreatePlain()
	if err != nil {
		return err
	}
	s.Ref()
	s.addChild(glvk)
	glvk.mu.Lock()
	glvk.parent = s
	glvk.mu.Unlock()
	sub, err := s.c.Subcompositor.GetSubsurface(glvk.wl, s.wl)
	if err != nil {
		glvk.destroy()
		return errors.Wrap(err, "unable to create gl/vk subsurface")
	}
	sub.SetDesync()
	sub.PlaceAbove(s.wl)

	glvk.mu.Lock()
	glvk.subsurface = sub
	glvk.role = RoleSubsurface
	glvk.mu.Unlock()
	glvk.hwnd.Store(s.hwnd.Load())
	glvk.output.Store(s.MainOutput())

	s.mu.Lock()
	s.glvk = glvk
	s.mu.Unlock()

	if hwnd := s.Window(); hwnd != 0 {
		window, _ := s.c.ws.WindowRect(hwnd)
		client, _ := s.c.ws.ClientRect(hwnd)
		client = client.Offset(-window.Left, -window.Top)
		s.ReconfigureGLVK(client.Left, client.Top, client.Width(), client.Height())
	}
	s.ReconfigureApply()
	s.log().WithField("glvk", glvk.ID).Debug("created gl/vk child")
	return nil
}

// UnrefGLVK drops a reference to the GL/VK child, destroying it at zero.
func (s *Surface) UnrefGLVK() {
	s.mu.Lock()
	glvk := s.glvk
	if glvk == nil {
		s.mu.Unlock()
		return
	}
	n := glvk.ref.Add(-1)
	if n == 0 {
		s.glvk = nil
	}
	s.mu.Unlock()
	glvk.log().Tracef("glvk ref %d->%d", n+1, n)
	if n == 0 {
		glvk.destroy()
	}
}

// ReconfigureGLVK places the GL/VK child at x,y in window coordinates.
// A zero size maps to a 1x1 viewport since many applications do not cope
// with a 0x0 GL/VK surface.
func (s *Surface) ReconfigureGLVK(x, y, width, height int32) {
	glvk := s.refGLVK()
	if glvk == nil {
		return
	}
	defer s.UnrefGLVK()

	wx, wy := s.CoordsRoundedFromWine(x, y)
	ww, wh := s.CoordsRoundedFromWine(width, height)
	glvk.offsetX.Store(x)
	glvk.offsetY.Store(y)

	glvk.mu.Lock()
	defer glvk.mu.Unlock()
	if glvk.subsurface != nil {
		glvk.subsurface.SetPosition(wx, wy)
	}
	if glvk.viewport != nil {
		if ww != 0 && wh != 0 {
			glvk.viewport.SetDestination(ww, wh)
		} else {
			glvk.viewport.SetDestination(1, 1)
		}
	}
}

// LockCommits holds off reconfigurations of s while content is committed
// to its GL/VK child, so that a frame never lands on half applied geometry.
func (s *Surface) LockCommits() {
	s.commitMu.Lock()
}

func (s *Surface) UnlockCommits() {
	s.commitMu.Unlock()
}

// CommitForeign attaches a buffer produced by another process to the
// surface, or to its GL/VK child when glvk is set, with full damage. done
// gets the frame callback of the commit.
func (s *Surface) CommitForeign(glvk bool, buf wlp.Buffer, done wlp.CallbackListener) bool {
	s.LockCommits()
	defer s.UnlockCommits()
	s.mu.Lock()
	target := s.wl
	if glvk {
		target = nil
		if s.glvk != nil {
			target = s.glvk.wl
		}
	}
	allowed := s.drawingAllowed
	s.mu.Unlock()
	if !allowed || target == nil {
		return false
	}

	s.EnsureMapped()

	var frameErr error
	s.mu.Lock()
	target.Attach(buf, 0, 0)
	target.DamageBuffer(0, 0, math.MaxInt32, math.MaxInt32)
	if done != nil {
		_, frameErr = target.Frame(done)
	}
	target.Commit()
	s.mu.Unlock()
	if frameErr != nil {
		done.Done(0)
	}
	return true
}
