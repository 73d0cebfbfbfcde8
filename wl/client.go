package wl

import (
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

var log = logrus.WithField("component", "wl")

var (
	ErrRoleMismatch = errors.New("surface already had a different role")
	ErrNoSurface    = errors.New("window has no wayland surface")
)

// Conn is the connection level part of the protocol the surface model uses.
type Conn interface {
	Roundtrip() error
	Flush() error
}

// Globals holds the bound compositor globals. Optional ones may be nil.
type Globals struct {
	Compositor             wlp.Compositor
	Subcompositor          wlp.Subcompositor
	Shm                    wlp.Shm
	WmBase                 wlp.WmBase
	Seat                   wlp.Seat
	PointerConstraints     wlp.PointerConstraints
	RelativePointerManager wlp.RelativePointerManager
	Viewporter             wlp.Viewporter
	LinuxDmabuf            wlp.LinuxDmabuf
}

// Client is the per-process wayland state: the connection, bound globals,
// outputs and every live surface.
type Client struct {
	Globals

	conn  Conn
	ctx   *wlp.Context
	ws    w32.WindowSystem
	appID string

	Pointer *Pointer

	mu            *sync.Mutex
	surfaces      map[SurfaceID]*Surface
	byProxy       map[uint32]*Surface
	windows       map[w32.HWND]*Surface
	nextID        SurfaceID
	outputs       []*Output
	outputGlobals map[uint32]*Output
	keyboardFocus *Surface

	// OnOutputsChanged runs on the dispatch goroutine after an output is
	// added, removed or updated.
	OnOutputsChanged func()
}

// NewClient builds a Client over already bound globals.
func NewClient(conn Conn, g Globals, ws w32.WindowSystem, appID string) *Client {
	c := &Client{
		Globals:       g,
		conn:          conn,
		ws:            ws,
		appID:         appID,
		mu:            &sync.Mutex{},
		surfaces:      make(map[SurfaceID]*Surface),
		byProxy:       make(map[uint32]*Surface),
		windows:       make(map[w32.HWND]*Surface),
		outputGlobals: make(map[uint32]*Output),
	}
	c.Pointer = &Pointer{c: c, mu: &sync.Mutex{}}
	return c
}

// Connect dials the compositor socket and binds the globals the driver uses.
// An empty display falls back to $WAYLAND_DISPLAY, then wayland-0.
func Connect(display string, ws w32.WindowSystem, appID string) (*Client, error) {
	if display == "" {
		display = os.Getenv("WAYLAND_DISPLAY")
	}
	if display == "" {
		display = "wayland-0"
	}
	path := display
	if !filepath.IsAbs(path) {
		path = filepath.Join(xdg.RuntimeDir, display)
	}
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve unix socket address (%s)", path)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to wayland server at (%s)", path)
	}

	ctx := wlp.NewContext(conn)
	c := NewClient(ctx, Globals{}, ws, appID)
	c.ctx = ctx
	if err := ctx.Start(c); err != nil {
		ctx.Close()
		return nil, errors.Wrap(err, "starting context failed")
	}
	// globals, then the events of the objects bound from them
	for i := 0; i < 2; i++ {
		if err := ctx.Roundtrip(); err != nil {
			ctx.Close()
			return nil, errors.Wrap(err, "initial roundtrip failed")
		}
	}
	if c.Compositor == nil || c.Subcompositor == nil || c.Shm == nil || c.WmBase == nil {
		ctx.Close()
		return nil, errors.New("compositor lacks a required global")
	}
	log.WithField("display", path).Debug("connected")
	return c, nil
}

// Context is the protocol connection, nil when built with NewClient.
func (c *Client) Context() *wlp.Context {
	return c.ctx
}

func (c *Client) WindowSystem() w32.WindowSystem {
	return c.ws
}

func (c *Client) Roundtrip() error {
	return c.conn.Roundtrip()
}

func (c *Client) Flush() error {
	return c.conn.Flush()
}

// Global binds the globals the driver knows about as they are announced.
func (c *Client) Global(g wlp.Global) {
	l := log.WithField("interface", g.Interface)
	bind := func(version uint32, listener interface{}) wlp.Object {
		o, err := c.ctx.Bind(g, version, listener)
		if err != nil {
			l.WithError(err).Error("unable to bind global")
			return nil
		}
		return o
	}
	switch g.Interface {
	case wlp.CompositorInterface:
		if o := bind(4, nil); o != nil {
			c.Compositor = o.(wlp.Compositor)
		}
	case wlp.SubcompositorInterface:
		if o := bind(1, nil); o != nil {
			c.Subcompositor = o.(wlp.Subcompositor)
		}
	case wlp.ShmInterface:
		if o := bind(1, nil); o != nil {
			c.Shm = o.(wlp.Shm)
		}
	case wlp.WmBaseInterface:
		if o := bind(1, c); o != nil {
			c.WmBase = o.(wlp.WmBase)
		}
	case wlp.SeatInterface:
		if c.Seat != nil {
			return
		}
		if o := bind(5, seatListener{c}); o != nil {
			c.Seat = o.(wlp.Seat)
		}
	case wlp.PointerConstraintsInterface:
		if o := bind(1, nil); o != nil {
			c.PointerConstraints = o.(wlp.PointerConstraints)
		}
	case wlp.RelativePointerManagerInterface:
		if o := bind(1, nil); o != nil {
			c.RelativePointerManager = o.(wlp.RelativePointerManager)
		}
	case wlp.ViewporterInterface:
		if o := bind(1, nil); o != nil {
			c.Viewporter = o.(wlp.Viewporter)
		}
	case wlp.LinuxDmabufInterface:
		if o := bind(3, nil); o != nil {
			c.LinuxDmabuf = o.(wlp.LinuxDmabuf)
		}
	case wlp.OutputInterface:
		out := NewOutput("", 0, 0, 0, 0, 1)
		out.onDone = func(*Output) { c.outputsChanged() }
		if o := bind(4, outputListener{out}); o != nil {
			out.proxy = o.(wlp.Output)
			c.mu.Lock()
			c.outputGlobals[g.Name] = out
			c.mu.Unlock()
			c.AddOutput(out)
		}
	default:
		return
	}
	l.Trace("bound global")
}

func (c *Client) GlobalRemove(name uint32) {
	c.mu.Lock()
	out, ok := c.outputGlobals[name]
	delete(c.outputGlobals, name)
	c.mu.Unlock()
	if ok {
		c.RemoveOutput(out)
		out.proxy.Release()
	}
}

// Ping answers the compositor's liveness check.
func (c *Client) Ping(serial uint32) {
	if err := c.WmBase.Pong(serial); err != nil {
		log.WithError(err).Warn("unable to pong")
	}
}

func (c *Client) AddOutput(o *Output) {
	c.mu.Lock()
	c.outputs = append(c.outputs, o)
	c.mu.Unlock()
	c.outputsChanged()
}

// RemoveOutput forgets an output and makes every surface leave it.
func (c *Client) RemoveOutput(o *Output) {
	c.mu.Lock()
	c.outputs = sliceutils.Filter(c.outputs, func(out *Output) bool { return out != o })
	surfaces := make([]*Surface, 0, len(c.surfaces))
	for _, s := range c.surfaces {
		surfaces = append(surfaces, s)
	}
	c.mu.Unlock()
	for _, s := range surfaces {
		s.LeaveOutput(o)
	}
	c.outputsChanged()
}

func (c *Client) Outputs() []*Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Output(nil), c.outputs...)
}

// OutputByName returns the output called name, nil if there is none.
func (c *Client) OutputByName(name string) *Output {
	found := sliceutils.Filter(c.Outputs(), func(o *Output) bool {
		o.Mu.RLock()
		defer o.Mu.RUnlock()
		return o.Name == name
	})
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

func (c *Client) outputFor(p wlp.Output) *Output {
	if p == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.outputs {
		if o.proxy != nil && o.proxy.ID() == p.ID() {
			return o
		}
	}
	return nil
}

func (c *Client) outputsChanged() {
	if c.OnOutputsChanged != nil {
		c.OnOutputsChanged()
	}
}

func (c *Client) register(s *Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	s.ID = c.nextID
	c.surfaces[s.ID] = s
	c.byProxy[s.wl.ID()] = s
}

func (c *Client) unregister(s *Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.surfaces, s.ID)
	if s.wl != nil {
		delete(c.byProxy, s.wl.ID())
	}
	if c.windows[s.Window()] == s {
		delete(c.windows, s.Window())
	}
	if c.keyboardFocus == s {
		c.keyboardFocus = nil
	}
}

// Surface looks up a live surface by id.
func (c *Client) Surface(id SurfaceID) *Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surfaces[id]
}

func (c *Client) surfaceFor(p wlp.Surface) *Surface {
	if p == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byProxy[p.ID()]
}

// BindWindow makes s the surface of hwnd.
func (c *Client) BindWindow(hwnd w32.HWND, s *Surface) {
	s.hwnd.Store(uintptr(hwnd))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows[hwnd] = s
}

func (c *Client) UnbindWindow(hwnd w32.HWND) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.windows, hwnd)
}

// ForWindow returns a new reference to the surface of hwnd, or nil. The
// caller must Unref it.
func (c *Client) ForWindow(hwnd w32.HWND) *Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.windows[hwnd]
	if s == nil {
		return nil
	}
	return s.Ref()
}

func (c *Client) KeyboardFocus() *Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyboardFocus
}

func (c *Client) setKeyboardFocus(s *Surface) {
	c.mu.Lock()
	c.keyboardFocus = s
	c.mu.Unlock()
}

// clearFocus drops s from every input focus slot.
func (c *Client) clearFocus(s *Surface) {
	c.Pointer.clearFocus(s)
	c.mu.Lock()
	if c.keyboardFocus == s {
		c.keyboardFocus = nil
	}
	c.mu.Unlock()
}

// Close destroys every remaining surface, children are unlinked rather than
// destroyed through their parents, then closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	surfaces := make([]*Surface, 0, len(c.surfaces))
	for _, s := range c.surfaces {
		surfaces = append(surfaces, s)
	}
	c.mu.Unlock()
	for _, s := range surfaces {
		s.destroy()
	}
	if c.ctx != nil {
		return c.ctx.Close()
	}
	return nil
}

type seatListener struct {
	c *Client
}

func (l seatListener) Capabilities(capabilities uint32) {
	l.c.Pointer.setAvailable(l.c.Seat, capabilities&wlp.SeatCapabilityPointer != 0)
}

func (l seatListener) Name(string) {}
