package waylanddrv

import (
	"github.com/kichirouhoshino/wine-wayland/event"
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/w32/types/ws"
	"github.com/kichirouhoshino/wine-wayland/wl"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// windowPositioner is implemented by window systems the driver may resize
// windows in, like w32.Desktop.
type windowPositioner interface {
	SetWindowPos(hwnd w32.HWND, rect, client w32.Rect) error
}

// CreateWindow gives hwnd a wayland surface. Child windows become
// subsurfaces of their parent's surface, other windows toplevels owned by
// the parent's toplevel if it has one.
func (d *Driver) CreateWindow(hwnd, parent w32.HWND, title string) error {
	l := log.WithField("hwnd", hwnd)
	s, err := d.Client.CreatePlain()
	if err != nil {
		return err
	}
	var ps *wl.Surface
	if parent != 0 {
		if ps = d.Client.ForWindow(parent); ps != nil {
			defer ps.Unref()
		}
	}

	if d.ws.Style(hwnd).Has(ws.Child) {
		if ps == nil {
			s.Unref()
			return errors.Wrapf(wl.ErrNoSurface, "parent %#x of child window", parent)
		}
		err = s.MakeSubsurface(ps)
	} else {
		err = s.MakeToplevel(ps)
		s.SetTitle(title)
	}
	if err != nil {
		s.Unref()
		return errors.Wrap(err, "unable to give window a role")
	}
	d.Client.BindWindow(hwnd, s)
	l.WithField("surface", s.ID).Debug("created window surface")
	d.WindowPosChanged(hwnd)
	return nil
}

// DestroyWindow drops every wayland and vulkan object of hwnd.
func (d *Driver) DestroyWindow(hwnd w32.HWND) {
	if vk := d.loadedVulkan(); vk != nil {
		vk.InvalidateWindow(hwnd)
	}
	if d.server != nil {
		d.server.DestroyWindow(hwnd)
	}
	s := d.Client.ForWindow(hwnd)
	if s == nil {
		return
	}
	d.Client.UnbindWindow(hwnd)
	s.Unref()
	s.Unref()
	log.WithField("hwnd", hwnd).Debug("destroyed window surface")
}

func (d *Driver) SetWindowText(hwnd w32.HWND, title string) {
	if s := d.Client.ForWindow(hwnd); s != nil {
		s.SetTitle(title)
		s.Unref()
	}
}

// guestFlags is the configure state the guest window is in, as far as it
// can tell. Activation and resizing are the compositor's business.
func (d *Driver) guestFlags(hwnd w32.HWND, rect w32.Rect, pending wl.ConfigureFlags) wl.ConfigureFlags {
	flags := pending &^ (wl.ConfigureMaximized | wl.ConfigureFullscreen)
	if d.ws.Style(hwnd).Has(ws.Maximize) {
		flags |= wl.ConfigureMaximized
	}
	if rect == d.ws.VirtualScreen() {
		flags |= wl.ConfigureFullscreen
	}
	return flags
}

// WindowPosChanged applies the guest window geometry to its surface. A
// pending configure the new geometry satisfies is acknowledged first.
func (d *Driver) WindowPosChanged(hwnd w32.HWND) {
	s := d.Client.ForWindow(hwnd)
	if s == nil {
		return
	}
	defer s.Unref()
	rect, ok := d.ws.WindowRect(hwnd)
	if !ok {
		return
	}
	client, _ := d.ws.ClientRect(hwnd)
	l := log.WithFields(logrus.Fields{"hwnd": hwnd, "rect": rect, "client": client})

	pending := s.PendingConfigure()
	flags := d.guestFlags(hwnd, rect, pending.Flags)
	s.SetWindowFullscreen(flags&wl.ConfigureFullscreen != 0)
	if pending.Serial != 0 {
		width, height := s.CoordsRoundedFromWine(rect.Width(), rect.Height())
		if pending.IsCompatible(width, height, flags) {
			s.AckPendingConfigure()
		} else {
			l.WithField("serial", pending.Serial).Trace("geometry does not satisfy pending configure")
		}
	}

	s.LockCommits()
	defer s.UnlockCommits()
	switch s.Role() {
	case wl.RoleToplevel:
		s.ReconfigureGeometry(0, 0, rect.Width(), rect.Height())
		s.ReconfigureSize(rect.Width(), rect.Height())
	case wl.RoleSubsurface:
		if parent := s.Parent(); parent != nil {
			if pr, ok := d.ws.WindowRect(parent.Window()); ok {
				s.ReconfigurePosition(rect.Left-pr.Left, rect.Top-pr.Top)
			}
		}
		s.ReconfigureSize(rect.Width(), rect.Height())
	}
	s.ReconfigureGLVK(client.Left-rect.Left, client.Top-rect.Top, client.Width(), client.Height())
	s.ReconfigureApply()
	l.Trace("reconfigured window surface")
}

// ClipCursor updates the pointer constraint of the foreground window after
// the guest clip rectangle or cursor visibility changed.
func (d *Driver) ClipCursor(foreground w32.HWND) {
	if s := d.Client.ForWindow(foreground); s != nil {
		s.UpdatePointerConstraint()
		s.Unref()
	}
}

// SetCursorPos locks the pointer for a guest cursor warp so that relative
// motion keeps flowing.
func (d *Driver) SetCursorPos(foreground w32.HWND) {
	if s := d.Client.ForWindow(foreground); s != nil {
		s.RequestCursorPosLock()
		s.UpdatePointerConstraint()
		s.Unref()
	}
}

// configureWindow resizes the window to the pending configure, when the
// compositor proposed a size and the window system lets us.
func (d *Driver) configureWindow(hwnd w32.HWND) {
	s := d.Client.ForWindow(hwnd)
	if s == nil {
		return
	}
	pending := s.PendingConfigure()
	s.MarkPendingProcessed()
	pos, ok := d.ws.(windowPositioner)
	if pending.Width != 0 && pending.Height != 0 && ok {
		width, height := s.CoordsToWine(float64(pending.Width), float64(pending.Height))
		if pending.Flags&wl.ConfigureFullscreen != 0 && pending.Flags&wl.ConfigureMaximized == 0 {
			width, height = s.FullscreenFit(pending.Width, pending.Height)
		}
		rect, _ := d.ws.WindowRect(hwnd)
		client, _ := d.ws.ClientRect(hwnd)
		next := w32.NewRect(rect.Left, rect.Top, width, height)
		nextClient := w32.Rect{
			Left:   client.Left,
			Top:    client.Top,
			Right:  next.Right - (rect.Right - client.Right),
			Bottom: next.Bottom - (rect.Bottom - client.Bottom),
		}
		if err := pos.SetWindowPos(hwnd, next, nextClient); err != nil {
			log.WithError(err).WithField("hwnd", hwnd).Warn("unable to resize window")
		}
	}
	s.Unref()
	d.WindowPosChanged(hwnd)
}

// WindowMessage handles a driver private message, reporting whether msg was
// one.
func (d *Driver) WindowMessage(msg event.Message) bool {
	hwnd := w32.HWND(msg.Window)
	switch msg.ID {
	case w32.WMWaylandConfigure:
		d.configureWindow(hwnd)
	case w32.WMWaylandSurfaceOutputChange:
		d.WindowPosChanged(hwnd)
	case w32.WMWaylandInit, w32.WMWaylandRemoteSurface:
		log.WithFields(logrus.Fields{"hwnd": hwnd, "msg": msg.ID}).Trace("ignoring driver message")
	default:
		return false
	}
	return true
}

// ProcessMessages handles the driver messages queued in q, leaving every
// other message in place.
func (d *Driver) ProcessMessages(q *event.Queue) (int, error) {
	n, err := q.Peep(nil, event.Get, w32.WMWaylandInit, w32.WMWaylandRemoteSurface)
	if err != nil || n == 0 {
		return 0, err
	}
	msgs := make([]event.Message, n)
	n, err = q.Peep(msgs, event.Get, w32.WMWaylandInit, w32.WMWaylandRemoteSurface)
	if err != nil {
		return 0, errors.Wrap(err, "unable to take driver messages")
	}
	for _, msg := range msgs[:n] {
		d.WindowMessage(msg)
	}
	return n, nil
}
