package wl

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
)

// recorder collects the requests sent to fake protocol objects.
type recorder struct {
	mu    sync.Mutex
	calls []string
	id    uint32
}

func (r *recorder) record(o *fake, req string, args ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := fmt.Sprintf("%s.%s", name(o), req)
	if len(args) > 0 {
		call += fmt.Sprint(args...)
	}
	r.calls = append(r.calls, call)
	return nil
}

func (r *recorder) new(iface string, l interface{}) *fake {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id++
	return &fake{r: r, id: r.id, iface: iface, l: l}
}

// Calls returns the requests recorded so far and forgets them.
func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.calls
	r.calls = nil
	return c
}

func (r *recorder) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.Contains(c, prefix) {
			n++
		}
	}
	return n
}

// fake implements every protocol interface the surface model uses.
type fake struct {
	r     *recorder
	id    uint32
	iface string
	l     interface{}
}

func (f *fake) ID() uint32        { return f.id }
func (f *fake) Interface() string { return f.iface }
func (f *fake) Destroy() error    { return f.r.record(f, "destroy") }
func (f *fake) Release() error    { return f.r.record(f, "release") }

func (f *fake) CreateSurface(l wlp.SurfaceListener) (wlp.Surface, error) {
	return f.r.new("wl_surface", l), nil
}

func (f *fake) CreateRegion() (wlp.Region, error) {
	return f.r.new("wl_region", nil), nil
}

func (f *fake) Attach(b wlp.Buffer, x, y int32) error {
	if b == nil {
		return f.r.record(f, "attach", " nil")
	}
	return f.r.record(f, "attach", " ", b.Interface())
}

func (f *fake) Damage(x, y, w, h int32) error { return f.r.record(f, "damage") }

func (f *fake) Frame(l wlp.CallbackListener) (wlp.Callback, error) {
	f.r.record(f, "frame")
	return f.r.new("wl_callback", l), nil
}

func (f *fake) SetOpaqueRegion(wlp.Region) error { return f.r.record(f, "set_opaque_region") }
func (f *fake) SetInputRegion(wlp.Region) error  { return f.r.record(f, "set_input_region") }
func (f *fake) Commit() error                    { return f.r.record(f, "commit") }
func (f *fake) SetBufferScale(s int32) error     { return f.r.record(f, "set_buffer_scale", " ", s) }

func (f *fake) DamageBuffer(x, y, w, h int32) error {
	return f.r.record(f, "damage_buffer", fmt.Sprintf(" %d,%d %dx%d", x, y, w, h))
}

func (f *fake) Add(x, y, w, h int32) error {
	return f.r.record(f, "add", fmt.Sprintf(" %d,%d %dx%d", x, y, w, h))
}

func (f *fake) Subtract(x, y, w, h int32) error { return f.r.record(f, "subtract") }

func (f *fake) GetSubsurface(s, parent wlp.Surface) (wlp.Subsurface, error) {
	return f.r.new("wl_subsurface", nil), nil
}

func (f *fake) SetPosition(x, y int32) error {
	return f.r.record(f, "set_position", fmt.Sprintf(" %d,%d", x, y))
}

func (f *fake) PlaceAbove(wlp.Surface) error { return f.r.record(f, "place_above") }
func (f *fake) PlaceBelow(wlp.Surface) error { return f.r.record(f, "place_below") }
func (f *fake) SetSync() error               { return f.r.record(f, "set_sync") }
func (f *fake) SetDesync() error             { return f.r.record(f, "set_desync") }

func (f *fake) CreatePool(fd int, size int32) (wlp.ShmPool, error) {
	return f.r.new("wl_shm_pool", nil), nil
}

func (f *fake) CreateBuffer(offset, w, h, stride int32, format uint32, l wlp.BufferListener) (wlp.Buffer, error) {
	f.r.record(f, "create_buffer", fmt.Sprintf(" %dx%d", w, h))
	return f.r.new("wl_buffer", l), nil
}

func (f *fake) Resize(int32) error { return f.r.record(f, "resize") }

func (f *fake) GetPointer(l wlp.PointerListener) (wlp.Pointer, error) {
	return f.r.new("wl_pointer", l), nil
}

func (f *fake) SetCursor(serial uint32, s wlp.Surface, x, y int32) error {
	return f.r.record(f, "set_cursor")
}

func (f *fake) GetXdgSurface(s wlp.Surface, l wlp.XdgSurfaceListener) (wlp.XdgSurface, error) {
	return f.r.new("xdg_surface", l), nil
}

func (f *fake) Pong(serial uint32) error { return f.r.record(f, "pong", " ", serial) }

func (f *fake) GetToplevel(l wlp.XdgToplevelListener) (wlp.XdgToplevel, error) {
	return f.r.new("xdg_toplevel", l), nil
}

func (f *fake) SetWindowGeometry(x, y, w, h int32) error {
	return f.r.record(f, "set_window_geometry", fmt.Sprintf(" %d,%d %dx%d", x, y, w, h))
}

func (f *fake) AckConfigure(serial uint32) error {
	return f.r.record(f, "ack_configure", " ", serial)
}

func (f *fake) SetParent(wlp.XdgToplevel) error { return f.r.record(f, "set_parent") }
func (f *fake) SetTitle(t string) error         { return f.r.record(f, "set_title", " ", t) }
func (f *fake) SetAppID(id string) error        { return f.r.record(f, "set_app_id", " ", id) }
func (f *fake) SetMaxSize(w, h int32) error     { return f.r.record(f, "set_max_size") }
func (f *fake) SetMinSize(w, h int32) error     { return f.r.record(f, "set_min_size") }
func (f *fake) SetMaximized() error             { return f.r.record(f, "set_maximized") }
func (f *fake) UnsetMaximized() error           { return f.r.record(f, "unset_maximized") }
func (f *fake) SetFullscreen(wlp.Output) error  { return f.r.record(f, "set_fullscreen") }
func (f *fake) UnsetFullscreen() error          { return f.r.record(f, "unset_fullscreen") }
func (f *fake) SetMinimized() error             { return f.r.record(f, "set_minimized") }

func (f *fake) LockPointer(s wlp.Surface, p wlp.Pointer, r wlp.Region, lifetime uint32, l wlp.LockedPointerListener) (wlp.LockedPointer, error) {
	f.r.record(f, "lock_pointer", fmt.Sprintf(" %s@%d", s.Interface(), s.ID()))
	return f.r.new("zwp_locked_pointer_v1", l), nil
}

func (f *fake) ConfinePointer(s wlp.Surface, p wlp.Pointer, r wlp.Region, lifetime uint32, l wlp.ConfinedPointerListener) (wlp.ConfinedPointer, error) {
	f.r.record(f, "confine_pointer", fmt.Sprintf(" %s@%d", s.Interface(), s.ID()))
	return f.r.new("zwp_confined_pointer_v1", l), nil
}

func (f *fake) SetCursorPositionHint(x, y wlp.Fixed) error {
	return f.r.record(f, "set_cursor_position_hint", fmt.Sprintf(" %.0f,%.0f", x.Float(), y.Float()))
}

func (f *fake) SetRegion(wlp.Region) error { return f.r.record(f, "set_region") }

func (f *fake) GetRelativePointer(p wlp.Pointer, l wlp.RelativePointerListener) (wlp.RelativePointer, error) {
	return f.r.new("zwp_relative_pointer_v1", l), nil
}

func (f *fake) GetViewport(s wlp.Surface) (wlp.Viewport, error) {
	return f.r.new("wp_viewport", nil), nil
}

func (f *fake) SetSource(x, y, w, h wlp.Fixed) error { return f.r.record(f, "set_source") }

func (f *fake) SetDestination(w, h int32) error {
	return f.r.record(f, "set_destination", fmt.Sprintf(" %dx%d", w, h))
}

// fakeConn delivers compositor events when the client roundtrips.
type fakeConn struct {
	mu         sync.Mutex
	onRoundtip func()
	roundtrips int
	flushes    int
}

func (c *fakeConn) Roundtrip() error {
	c.mu.Lock()
	c.roundtrips++
	f := c.onRoundtip
	c.mu.Unlock()
	if f != nil {
		f()
	}
	return nil
}

func (c *fakeConn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

type testEnv struct {
	r       *recorder
	conn    *fakeConn
	desktop *w32.Desktop
	client  *Client
}

var testScreen = w32.NewRect(0, 0, 1920, 1080)

func newTestEnv() *testEnv {
	r := &recorder{}
	e := &testEnv{r: r, conn: &fakeConn{}, desktop: w32.NewDesktop(testScreen)}
	g := Globals{
		Compositor:             r.new("wl_compositor", nil),
		Subcompositor:          r.new("wl_subcompositor", nil),
		Shm:                    r.new("wl_shm", nil),
		WmBase:                 r.new("xdg_wm_base", nil),
		Seat:                   r.new("wl_seat", nil),
		PointerConstraints:     r.new("zwp_pointer_constraints_v1", nil),
		RelativePointerManager: r.new("zwp_relative_pointer_manager_v1", nil),
		Viewporter:             r.new("wp_viewporter", nil),
	}
	e.client = NewClient(e.conn, g, e.desktop, "wine-test")
	return e
}

// configure sends a toplevel configure followed by the surface configure.
func configure(s *Surface, serial uint32, w, h int32, states ...uint32) {
	s.toplevel.(*fake).l.(wlp.XdgToplevelListener).Configure(w, h, states)
	s.xdgSurface.(*fake).l.(wlp.XdgSurfaceListener).Configure(serial)
}

// newToplevel creates a toplevel whose first configure has the given
// serial, bound to a new window.
func (e *testEnv) newToplevel(serial uint32, w, h int32, states ...uint32) (*Surface, w32.HWND) {
	s, err := e.client.CreatePlain()
	if err != nil {
		panic(err)
	}
	e.conn.onRoundtip = func() {
		configure(s, serial, w, h, states...)
		e.conn.onRoundtip = nil
	}
	if err := s.MakeToplevel(nil); err != nil {
		panic(err)
	}
	hwnd := e.desktop.CreateWindow(w32.NewRect(100, 100, 640, 480), w32.NewRect(100, 120, 640, 460), 0)
	e.client.BindWindow(hwnd, s)
	e.r.Calls()
	return s, hwnd
}

func name(o wlp.Object) string {
	return fmt.Sprintf("%s@%d", o.Interface(), o.ID())
}
