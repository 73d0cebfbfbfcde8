package wl

import (
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
)

type ConfigureFlags uint32

const (
	ConfigureMaximized ConfigureFlags = 1 << iota
	ConfigureActivated
	ConfigureResizing
	ConfigureFullscreen
)

const configureStateMask = ConfigureMaximized | ConfigureActivated | ConfigureResizing | ConfigureFullscreen

// Configure is a compositor proposal of size and state.
type Configure struct {
	Serial    uint32
	Width     int32
	Height    int32
	Flags     ConfigureFlags
	Processed bool
}

// IsCompatible reports whether a buffer of width x height in the given state
// may be committed against c. The state flags must match. A maximized
// configure rejects smaller sizes, larger ones are cut down by the window
// geometry; a fullscreen one accepts any size for the same reason.
func (c Configure) IsCompatible(width, height int32, flags ConfigureFlags) bool {
	if flags&configureStateMask != c.Flags&configureStateMask {
		return false
	}
	if c.Flags&ConfigureMaximized != 0 && (width < c.Width || height < c.Height) {
		return false
	}
	return true
}

func (s *Surface) PendingConfigure() Configure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Surface) CurrentConfigure() Configure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// MarkPendingProcessed records that the window handled the posted
// configure, so the next one is posted again even if this one stays
// unacknowledged.
func (s *Surface) MarkPendingProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Processed = true
}

// AckPendingConfigure makes the pending configure current.
func (s *Surface) AckPendingConfigure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ackPendingConfigure()
}

func (s *Surface) ackPendingConfigure() {
	if s.xdgSurface == nil || s.pending.Serial == 0 {
		return
	}
	s.log().WithField("serial", s.pending.Serial).Debugf("current configure %dx%d flags=%#x",
		s.pending.Width, s.pending.Height, s.pending.Flags)
	s.current = s.pending
	if err := s.xdgSurface.AckConfigure(s.current.Serial); err != nil {
		s.log().WithError(err).Warn("unable to ack configure")
	}
	s.pending = Configure{}
}

type xdgSurfaceListener struct {
	s *Surface
}

// Configure stores the serial and notifies the window. Configures arriving
// before the window processed the last notification only update pending.
func (l xdgSurfaceListener) Configure(serial uint32) {
	s := l.s
	s.mu.Lock()
	lastSerial, lastProcessed := s.pending.Serial, s.pending.Processed
	s.pending.Serial = serial
	s.pending.Processed = false
	if lastSerial != 0 && !lastProcessed {
		s.mu.Unlock()
		s.log().WithField("serial", lastSerial).Trace("not reposting configure")
		return
	}
	hwnd := s.Window()
	if hwnd == 0 {
		s.ackPendingConfigure()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.c.ws.PostMessage(hwnd, w32.WMWaylandConfigure, 0, 0); err != nil {
		s.log().WithError(err).Warn("unable to post configure")
	}
}

type toplevelListener struct {
	s *Surface
}

func (l toplevelListener) Configure(width, height int32, states []uint32) {
	var flags ConfigureFlags
	for _, state := range states {
		switch state {
		case wlp.XdgToplevelStateMaximized:
			flags |= ConfigureMaximized
		case wlp.XdgToplevelStateActivated:
			flags |= ConfigureActivated
		case wlp.XdgToplevelStateResizing:
			flags |= ConfigureResizing
		case wlp.XdgToplevelStateFullscreen:
			flags |= ConfigureFullscreen
		}
	}
	s := l.s
	s.mu.Lock()
	s.pending.Width = width
	s.pending.Height = height
	s.pending.Flags = flags
	s.mu.Unlock()
	if flags&ConfigureActivated != 0 {
		s.c.setKeyboardFocus(s)
	}
	s.log().Tracef("toplevel configure %dx%d flags=%#x", width, height, flags)
}

// Close asks the window to close like the system menu would.
func (l toplevelListener) Close() {
	if hwnd := l.s.Window(); hwnd != 0 {
		l.s.c.ws.PostMessage(hwnd, w32.WMSysCommand, w32.SCClose, 0)
	}
}
