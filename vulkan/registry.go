package vulkan

import (
	"sync"
	"sync/atomic"

	"github.com/kichirouhoshino/wine-wayland/w32"
)

type device struct {
	handle Device
	phys   PhysicalDevice
	// remote is set when both the instance and the device support the
	// extensions needed to export swapchain images to another process.
	remote bool
}

type surface struct {
	handle   SurfaceKHR
	hwnd     w32.HWND
	instance Instance
	// window is the local toplevel, referenced together with its GL/VK
	// child. dummy stands in for it when the window is presented through
	// the remote surface server.
	window WindowSurface
	dummy  NativeSurface
	valid  atomic.Bool
}

func (s *surface) remote() bool {
	return s != nil && s.dummy != nil
}

// release drops the wayland objects the surface holds.
func (s *surface) release() {
	if s.window != nil {
		s.window.UnrefGLVK()
		s.window.Unref()
		s.window = nil
	}
	if s.dummy != nil {
		s.dummy.Destroy()
		s.dummy = nil
	}
}

type swapchain struct {
	handle SwapchainKHR
	hwnd   w32.HWND
	device *device
	window WindowSurface
	extent Extent2D
	valid  atomic.Bool

	remote *RemoteSwapchain
	funcs  *DeviceFuncs
}

func (s *swapchain) isRemote() bool {
	return s != nil && s.remote != nil
}

func (s *swapchain) release() {
	if s.window != nil {
		s.window.UnrefGLVK()
		s.window.Unref()
		s.window = nil
	}
	if s.remote != nil {
		s.remote.Destroy()
		s.remote = nil
	}
}

// registry maps host handles to driver state. The lock is only held for
// map access, never across a host or protocol call.
type registry struct {
	mu         sync.Mutex
	surfaces   map[SurfaceKHR]*surface
	swapchains map[SwapchainKHR]*swapchain
	devices    map[Device]*device
}

func newRegistry() *registry {
	return &registry{
		surfaces:   make(map[SurfaceKHR]*surface),
		swapchains: make(map[SwapchainKHR]*swapchain),
		devices:    make(map[Device]*device),
	}
}

func (r *registry) addSurface(s *surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surfaces[s.handle] = s
}

func (r *registry) surface(h SurfaceKHR) *surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surfaces[h]
}

func (r *registry) removeSurface(h SurfaceKHR) *surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.surfaces[h]
	delete(r.surfaces, h)
	return s
}

// validSurface is false for unknown and invalidated surfaces.
func (r *registry) validSurface(h SurfaceKHR) bool {
	s := r.surface(h)
	return s != nil && s.valid.Load()
}

func (r *registry) addSwapchain(s *swapchain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swapchains[s.handle] = s
}

func (r *registry) swapchain(h SwapchainKHR) *swapchain {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swapchains[h]
}

func (r *registry) removeSwapchain(h SwapchainKHR) *swapchain {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.swapchains[h]
	delete(r.swapchains, h)
	return s
}

func (r *registry) addDevice(d *device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.handle] = d
}

func (r *registry) device(h Device) *device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[h]
}

func (r *registry) removeDevice(h Device) *device {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.devices[h]
	delete(r.devices, h)
	return d
}

// invalidateWindow marks every surface and swapchain of hwnd as lost.
func (r *registry) invalidateWindow(hwnd w32.HWND) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.swapchains {
		if s.hwnd == hwnd {
			s.valid.Store(false)
			n++
		}
	}
	for _, s := range r.surfaces {
		if s.hwnd == hwnd {
			s.valid.Store(false)
			n++
		}
	}
	return n
}

// drain empties the registry, returning what was left in it.
func (r *registry) drain() ([]*swapchain, []*surface, []*device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		swapchains []*swapchain
		surfaces   []*surface
		devices    []*device
	)
	for h, s := range r.swapchains {
		swapchains = append(swapchains, s)
		delete(r.swapchains, h)
	}
	for h, s := range r.surfaces {
		surfaces = append(surfaces, s)
		delete(r.surfaces, h)
	}
	for h, d := range r.devices {
		devices = append(devices, d)
		delete(r.devices, h)
	}
	return swapchains, surfaces, devices
}
