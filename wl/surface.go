package wl

import (
	"sync"
	"sync/atomic"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

type SurfaceID uint32

type Role int

const (
	RoleNone Role = iota
	RoleToplevel
	RoleSubsurface
)

func (r Role) String() string {
	switch r {
	case RoleToplevel:
		return "toplevel"
	case RoleSubsurface:
		return "subsurface"
	}
	return "none"
}

// Surface is one wl_surface and the role objects attached to it. A child
// holds a counted reference to its parent; the parent only lists its
// children.
type Surface struct {
	ID SurfaceID

	c         *Client
	ref       atomic.Int32
	hwnd      atomic.Uintptr
	destroyed atomic.Bool
	output    atomic.Pointer[Output]
	offsetX   atomic.Int32
	offsetY   atomic.Int32

	// glvkMu serializes GL/VK child creation. commitMu keeps content
	// commits to the GL/VK child out of a reconfiguration; it is taken
	// before mu.
	glvkMu   sync.Mutex
	commitMu sync.Mutex

	mu             *sync.Mutex
	role           Role
	clearedRole    Role
	parent         *Surface
	children       []*Surface
	outputRefs     []*Output
	pending        Configure
	current        Configure
	mapped         bool
	drawingAllowed bool
	fullscreen     bool
	glvk           *Surface
	setCursorPos   bool

	wl         wlp.Surface
	viewport   wlp.Viewport
	xdgSurface wlp.XdgSurface
	toplevel   wlp.XdgToplevel
	subsurface wlp.Subsurface
	locked     wlp.LockedPointer
	confined   wlp.ConfinedPointer
}

func (s *Surface) log() *logrus.Entry {
	return log.WithFields(logrus.Fields{"surface": s.ID, "hwnd": s.Window()})
}

// CreatePlain creates a role-less surface that may not be drawn on.
func (c *Client) CreatePlain() (*Surface, error) {
	s := &Surface{c: c, mu: &sync.Mutex{}}
	var err error
	s.wl, err = c.Compositor.CreateSurface(surfaceListener{s})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create surface")
	}
	if c.Viewporter != nil {
		if s.viewport, err = c.Viewporter.GetViewport(s.wl); err != nil {
			s.wl.Destroy()
			return nil, errors.Wrap(err, "unable to create viewport")
		}
	}
	s.ref.Store(1)
	c.register(s)
	s.log().Trace("created plain surface")
	return s, nil
}

func (s *Surface) Window() w32.HWND {
	return w32.HWND(s.hwnd.Load())
}

// Proxy is the underlying wl_surface.
func (s *Surface) Proxy() wlp.Surface {
	return s.wl
}

func (s *Surface) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Surface) Parent() *Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parent
}

func (s *Surface) Mapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapped
}

func (s *Surface) DrawingAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawingAllowed
}

func (s *Surface) RefCount() int32 {
	return s.ref.Load()
}

func (s *Surface) Ref() *Surface {
	n := s.ref.Add(1)
	s.log().Tracef("ref %d->%d", n-1, n)
	return s
}

// Unref drops a reference and destroys the surface when it was the last.
func (s *Surface) Unref() {
	n := s.ref.Add(-1)
	s.log().Tracef("ref %d->%d", n+1, n)
	if n == 0 {
		s.destroy()
	}
}

func (s *Surface) checkRole(role Role) error {
	if s.role != RoleNone {
		return errors.Wrapf(ErrRoleMismatch, "surface is already a %s", s.role)
	}
	if s.clearedRole != RoleNone && s.clearedRole != role {
		return errors.Wrapf(ErrRoleMismatch, "surface was a %s, cannot become a %s", s.clearedRole, role)
	}
	return nil
}

// MakeToplevel gives the toplevel role to a plain surface and blocks until
// the compositor sent the first configure.
func (s *Surface) MakeToplevel(parent *Surface) error {
	s.mu.Lock()
	if err := s.checkRole(RoleToplevel); err != nil {
		s.mu.Unlock()
		return err
	}
	s.drawingAllowed = true
	xdgSurface, err := s.c.WmBase.GetXdgSurface(s.wl, xdgSurfaceListener{s})
	if err != nil {
		s.drawingAllowed = false
		s.mu.Unlock()
		return errors.Wrap(err, "unable to create xdg surface")
	}
	s.xdgSurface = xdgSurface
	toplevel, err := xdgSurface.GetToplevel(toplevelListener{s})
	if err != nil {
		xdgSurface.Destroy()
		s.xdgSurface = nil
		s.drawingAllowed = false
		s.mu.Unlock()
		return errors.Wrap(err, "unable to create xdg toplevel")
	}
	s.toplevel = toplevel
	s.mu.Unlock()

	if parent != nil {
		if pt := parent.xdgToplevel(); pt != nil {
			toplevel.SetParent(pt)
		}
	}
	if s.c.appID != "" {
		toplevel.SetAppID(s.c.appID)
	}
	s.wl.Commit()

	s.mu.Lock()
	s.role = RoleToplevel
	s.mu.Unlock()

	for {
		s.mu.Lock()
		waiting := s.current.Serial == 0 && s.pending.Serial == 0
		s.mu.Unlock()
		if !waiting {
			break
		}
		if err := s.c.Roundtrip(); err != nil {
			s.ClearRole()
			return errors.Wrap(err, "waiting for first configure")
		}
	}
	s.log().Debug("made toplevel")
	return nil
}

func (s *Surface) xdgToplevel() wlp.XdgToplevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toplevel
}

// MakeSubsurface gives the subsurface role to a plain surface.
func (s *Surface) MakeSubsurface(parent *Surface) error {
	s.mu.Lock()
	if err := s.checkRole(RoleSubsurface); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	parent.Ref()
	parent.addChild(s)

	sub, err := s.c.Subcompositor.GetSubsurface(s.wl, parent.wl)
	if err != nil {
		parent.removeChild(s)
		parent.Unref()
		return errors.Wrap(err, "unable to create subsurface")
	}
	sub.SetDesync()

	s.mu.Lock()
	s.parent = parent
	s.subsurface = sub
	s.drawingAllowed = true
	s.mu.Unlock()
	s.output.Store(parent.MainOutput())

	s.wl.Commit()

	s.mu.Lock()
	s.role = RoleSubsurface
	s.mu.Unlock()
	s.log().WithField("parent", parent.ID).Debug("made subsurface")
	return nil
}

func (s *Surface) addChild(child *Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = append(s.children, child)
}

func (s *Surface) removeChild(child *Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = sliceutils.Filter(s.children, func(c *Surface) bool { return c != child })
}

func (s *Surface) Children() []*Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Surface(nil), s.children...)
}

// ClearRole makes the surface plain again. Only the role it had may be
// assigned to it afterwards.
func (s *Surface) ClearRole() {
	s.mu.Lock()
	s.drawingAllowed = false
	parent := s.parent
	s.parent = nil
	if s.role != RoleNone {
		s.clearedRole = s.role
	}
	s.role = RoleNone
	toplevel, xdgSurface, sub := s.toplevel, s.xdgSurface, s.subsurface
	s.toplevel, s.xdgSurface, s.subsurface = nil, nil, nil
	s.pending = Configure{}
	s.current = Configure{}
	s.mu.Unlock()

	if parent != nil {
		parent.removeChild(s)
		parent.Unref()
	}
	if toplevel != nil {
		toplevel.Destroy()
	}
	if xdgSurface != nil {
		xdgSurface.Destroy()
	}
	if sub != nil {
		sub.Destroy()
	}
	s.Unmap()
	s.log().Debug("cleared role")
}

// Unmap hides the surface.
func (s *Surface) Unmap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wl.Attach(nil, 0, 0)
	s.wl.Commit()
	s.mapped = false
}

func (s *Surface) destroy() {
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}
	s.log().Debug("destroying surface")
	s.c.clearFocus(s)

	s.mu.Lock()
	for _, child := range s.children {
		child.mu.Lock()
		child.parent = nil
		child.mu.Unlock()
	}
	s.children = nil
	s.outputRefs = nil
	s.glvk = nil
	parent := s.parent
	s.parent = nil
	var objects []interface{ Destroy() error }
	for _, o := range []interface{ Destroy() error }{s.locked, s.confined, s.viewport, s.toplevel, s.xdgSurface, s.subsurface, s.wl} {
		if o != nil {
			objects = append(objects, o)
		}
	}
	s.locked, s.confined, s.viewport, s.toplevel, s.xdgSurface, s.subsurface = nil, nil, nil, nil, nil, nil
	s.mu.Unlock()

	for _, o := range objects {
		o.Destroy()
	}
	if parent != nil {
		parent.removeChild(s)
		parent.Unref()
	}
	s.c.unregister(s)
	s.c.Flush()
}

// SetTitle sets the window title of a toplevel.
func (s *Surface) SetTitle(title string) {
	if t := s.xdgToplevel(); t != nil {
		t.SetTitle(title)
	}
}

// SetWindowFullscreen records whether the guest window wants to be
// fullscreen, which changes how the origin output is picked.
func (s *Surface) SetWindowFullscreen(fullscreen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullscreen = fullscreen
}

// RequestCursorPosLock marks the next pointer constraint update as caused
// by the guest warping the cursor.
func (s *Surface) RequestCursorPosLock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCursorPos = true
}

type surfaceListener struct {
	s *Surface
}

func (l surfaceListener) Enter(o wlp.Output) {
	l.s.EnterOutput(l.s.c.outputFor(o))
}

func (l surfaceListener) Leave(o wlp.Output) {
	if l.s.xdgToplevel() == nil {
		return
	}
	if out := l.s.c.outputFor(o); out != nil {
		l.s.LeaveOutput(out)
	}
}
