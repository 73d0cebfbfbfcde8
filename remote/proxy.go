package remote

import (
	"fmt"
	"net"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var log = logrus.WithField("component", "remote")

// SocketPath is where the process owning the surfaces of display listens.
func SocketPath(display string) string {
	if display == "" {
		display = "wayland-0"
	}
	return filepath.Join(xdg.RuntimeDir, "wine-wayland", fmt.Sprintf("remote-%s.sock", filepath.Base(display)))
}

// Proxy stands in for the wayland surface of a window owned by another
// process.
type Proxy struct {
	Window  w32.HWND
	Surface SurfaceType

	mu   sync.Mutex
	conn *net.UnixConn
}

// Dial connects to the surface owner at path and registers interest in the
// window's surface.
func Dial(path string, hwnd w32.HWND, typ SurfaceType) (*Proxy, error) {
	addr, err := net.ResolveUnixAddr("unixpacket", path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve remote socket (%s)", path)
	}
	conn, err := net.DialUnix("unixpacket", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to remote surface owner (%s)", path)
	}
	p := &Proxy{Window: hwnd, Surface: typ, conn: conn}
	if err := p.send(&Message{Type: MessageCreate}); err != nil {
		conn.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{"hwnd": hwnd, "type": typ}).Debug("remote proxy created")
	return p, nil
}

func (p *Proxy) send(m *Message) error {
	m.Window = p.Window
	m.Surface = p.Surface
	data, fds, err := m.Encode()
	if err != nil {
		return err
	}
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return errors.New("remote proxy is closed")
	}
	if _, _, err := p.conn.WriteMsgUnix(data, oob, nil); err != nil {
		return errors.Wrapf(err, "unable to send %s message", m.Type)
	}
	return nil
}

// Commit hands buf to the surface owner. released is set once the
// compositor let go of the buffer, nil for detached commits; throttle is
// set on the next frame and only returned for throttled commits.
func (p *Proxy) Commit(buf Buffer, mode CommitMode) (released, throttle *Event, err error) {
	m := &Message{Type: MessageCommit, Mode: mode, Buffer: buf}
	if mode != CommitDetached {
		if released, err = NewEvent(); err != nil {
			return nil, nil, err
		}
		m.Released = released
	}
	if mode == CommitThrottled {
		if throttle, err = NewEvent(); err != nil {
			released.Close()
			return nil, nil, err
		}
		m.Throttle = throttle
	}
	if err := p.send(m); err != nil {
		if released != nil {
			released.Close()
		}
		if throttle != nil {
			throttle.Close()
		}
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{"hwnd": p.Window, "mode": mode}).Trace("committed remote buffer")
	return released, throttle, nil
}

// DispatchEvents asks the owner to process pending compositor events for
// the surface.
func (p *Proxy) DispatchEvents() error {
	return p.send(&Message{Type: MessageDispatchEvents})
}

func (p *Proxy) Close() error {
	err := p.send(&Message{Type: MessageDestroy})
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	return err
}

func closeFD(fd int) {
	if fd >= 0 {
		unix.Close(fd)
	}
}
