// Package native opens a libwayland-client connection next to the pure Go
// one, for host libraries that need real wl_display and wl_surface
// pointers. Host Vulkan creates its surfaces on it.
package native

import (
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "native")

const DefaultLibrary = "libwayland-client.so.0"

const (
	displayGetRegistry = 1
	registryBind       = 0
	compositorCreate   = 0
	surfaceDestroy     = 0

	marshalFlagDestroy = 1 << 0

	// wl_surface 4 added damage_buffer, host WSI code relies on it.
	maxCompositorVersion = 4
)

type library struct {
	handle uintptr

	displayConnect    func(name *byte) uintptr
	displayDisconnect func(display uintptr)
	displayRoundtrip  func(display uintptr) int32
	proxyAddListener  func(proxy uintptr, listener *uintptr, data uintptr) int32
	proxyDestroy      func(proxy uintptr)
	proxyGetVersion   func(proxy uintptr) uint32
	// wl_proxy_marshal_array_flags, the only marshal entry point that is
	// not variadic.
	proxyMarshal func(proxy uintptr, opcode uint32, iface uintptr, version, flags uint32, args *argument) uintptr

	registryInterface   uintptr
	compositorInterface uintptr
	surfaceInterface    uintptr
}

// argument is a union wl_argument.
type argument uint64

func openLibrary(path string) (*library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load %s", path)
	}
	l := &library{handle: handle}
	funcs := []struct {
		fptr any
		name string
	}{
		{&l.displayConnect, "wl_display_connect"},
		{&l.displayDisconnect, "wl_display_disconnect"},
		{&l.displayRoundtrip, "wl_display_roundtrip"},
		{&l.proxyAddListener, "wl_proxy_add_listener"},
		{&l.proxyDestroy, "wl_proxy_destroy"},
		{&l.proxyGetVersion, "wl_proxy_get_version"},
		{&l.proxyMarshal, "wl_proxy_marshal_array_flags"},
	}
	for _, f := range funcs {
		sym, err := purego.Dlsym(handle, f.name)
		if err != nil {
			purego.Dlclose(handle)
			return nil, errors.Wrapf(err, "unable to load %s", f.name)
		}
		purego.RegisterFunc(f.fptr, sym)
	}
	interfaces := []struct {
		addr *uintptr
		name string
	}{
		{&l.registryInterface, "wl_registry_interface"},
		{&l.compositorInterface, "wl_compositor_interface"},
		{&l.surfaceInterface, "wl_surface_interface"},
	}
	for _, i := range interfaces {
		sym, err := purego.Dlsym(handle, i.name)
		if err != nil {
			purego.Dlclose(handle)
			return nil, errors.Wrapf(err, "unable to load %s", i.name)
		}
		*i.addr = sym
	}
	return l, nil
}

// Registry listeners cannot carry Go pointers through libwayland, the
// listener data is a key into displays instead.
var (
	callbacks struct {
		once     sync.Once
		listener [2]uintptr
	}
	displays struct {
		mu   sync.Mutex
		next uintptr
		byID map[uintptr]*Display
	}
)

func registryListener() *uintptr {
	callbacks.once.Do(func() {
		callbacks.listener[0] = purego.NewCallback(onGlobal)
		callbacks.listener[1] = purego.NewCallback(onGlobalRemove)
	})
	return &callbacks.listener[0]
}

func register(d *Display) uintptr {
	displays.mu.Lock()
	defer displays.mu.Unlock()
	if displays.byID == nil {
		displays.byID = make(map[uintptr]*Display)
	}
	displays.next++
	displays.byID[displays.next] = d
	return displays.next
}

func unregister(id uintptr) {
	displays.mu.Lock()
	defer displays.mu.Unlock()
	delete(displays.byID, id)
}

func lookup(id uintptr) *Display {
	displays.mu.Lock()
	defer displays.mu.Unlock()
	return displays.byID[id]
}

func onGlobal(data, registry uintptr, name uint32, iface uintptr, version uint32) {
	d := lookup(data)
	if d == nil || goString(iface) != "wl_compositor" {
		return
	}
	d.compositorName = name
	d.compositorVersion = min(version, maxCompositorVersion)
}

func onGlobalRemove(data, registry uintptr, name uint32) {}

// goString copies the NUL terminated C string at p.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	var b []byte
	for ptr := *(*unsafe.Pointer)(unsafe.Pointer(&p)); *(*byte)(ptr) != 0; ptr = unsafe.Add(ptr, 1) {
		b = append(b, *(*byte)(ptr))
	}
	return string(b)
}

// cString returns a NUL terminated copy of s.
func cString(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

// Display is a libwayland-client connection with a bound wl_compositor.
type Display struct {
	lib        *library
	id         uintptr
	display    uintptr
	registry   uintptr
	compositor uintptr

	compositorName    uint32
	compositorVersion uint32

	// mu serializes roundtrips on the default queue.
	mu sync.Mutex
}

// Connect dlopens the library at path and connects to the compositor
// socket display, $WAYLAND_DISPLAY when empty.
func Connect(path, display string) (*Display, error) {
	if display == "" {
		display = os.Getenv("WAYLAND_DISPLAY")
	}
	if display == "" {
		display = "wayland-0"
	}
	lib, err := openLibrary(path)
	if err != nil {
		return nil, err
	}
	d := &Display{lib: lib}
	if err := d.connect(display); err != nil {
		d.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{"display": display, "compositor": d.compositorVersion}).Debug("connected native display")
	return d, nil
}

func (d *Display) connect(display string) error {
	d.display = d.lib.displayConnect(cString(display))
	if d.display == 0 {
		return errors.Errorf("unable to connect to %s", display)
	}
	args := [1]argument{}
	d.registry = d.lib.proxyMarshal(d.display, displayGetRegistry, d.lib.registryInterface,
		d.lib.proxyGetVersion(d.display), 0, &args[0])
	if d.registry == 0 {
		return errors.New("wl_display.get_registry failed")
	}
	d.id = register(d)
	if d.lib.proxyAddListener(d.registry, registryListener(), d.id) != 0 {
		return errors.New("unable to listen on the registry")
	}
	if d.lib.displayRoundtrip(d.display) < 0 {
		return errors.New("registry roundtrip failed")
	}
	if d.compositorName == 0 {
		return errors.New("compositor has no wl_compositor")
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()
	name := cString("wl_compositor")
	pinner.Pin(name)
	bind := [4]argument{
		argument(d.compositorName),
		argument(uintptr(unsafe.Pointer(name))),
		argument(d.compositorVersion),
		0,
	}
	d.compositor = d.lib.proxyMarshal(d.registry, registryBind, d.lib.compositorInterface,
		d.compositorVersion, 0, &bind[0])
	if d.compositor == 0 {
		return errors.New("wl_registry.bind of wl_compositor failed")
	}
	return nil
}

// Handle is the wl_display pointer.
func (d *Display) Handle() uintptr {
	return d.display
}

// CreateSurface creates a wl_surface that nothing is ever committed to.
func (d *Display) CreateSurface() (*Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	args := [1]argument{}
	proxy := d.lib.proxyMarshal(d.compositor, compositorCreate, d.lib.surfaceInterface,
		d.lib.proxyGetVersion(d.compositor), 0, &args[0])
	if proxy == 0 {
		return nil, errors.New("wl_compositor.create_surface failed")
	}
	if d.lib.displayRoundtrip(d.display) < 0 {
		d.lib.proxyMarshal(proxy, surfaceDestroy, 0, d.lib.proxyGetVersion(proxy), marshalFlagDestroy, &args[0])
		return nil, errors.New("native display lost")
	}
	return &Surface{d: d, proxy: proxy}, nil
}

// Close disconnects. Surfaces must be destroyed first.
func (d *Display) Close() error {
	if d.id != 0 {
		unregister(d.id)
		d.id = 0
	}
	if d.compositor != 0 {
		d.lib.proxyDestroy(d.compositor)
		d.compositor = 0
	}
	if d.registry != 0 {
		d.lib.proxyDestroy(d.registry)
		d.registry = 0
	}
	if d.display != 0 {
		d.lib.displayDisconnect(d.display)
		d.display = 0
	}
	return purego.Dlclose(d.lib.handle)
}

// Surface is a wl_surface of a Display.
type Surface struct {
	d     *Display
	proxy uintptr
	once  sync.Once
}

// Handle is the wl_surface pointer.
func (s *Surface) Handle() uintptr {
	return s.proxy
}

func (s *Surface) Destroy() {
	s.once.Do(func() {
		var args [1]argument
		s.d.lib.proxyMarshal(s.proxy, surfaceDestroy, 0, s.d.lib.proxyGetVersion(s.proxy), marshalFlagDestroy, &args[0])
	})
}
