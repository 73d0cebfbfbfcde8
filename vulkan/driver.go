// Package vulkan implements the Vulkan surface and swapchain entry points of
// the driver on top of the host Vulkan loader. Windows owned by this process
// present through their GL/VK subsurface; windows owned by another process
// present through a RemoteSwapchain.
package vulkan

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/kichirouhoshino/wine-wayland/remote"
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

var log = logrus.WithField("component", "vulkan")

// DriverVersion is the version of the driver table. Callers built against
// another version get ErrUnavailable.
const DriverVersion uint32 = 11

var ErrUnavailable = errors.New("vulkan driver unavailable")

// Extensions needed on both sides to export swapchain images to another
// process. Hosts may lack some of them.
var (
	instanceExtensionsRemote = []string{
		"VK_KHR_external_fence_capabilities",
		"VK_KHR_external_memory_capabilities",
		"VK_KHR_external_semaphore_capabilities",
		"VK_KHR_get_physical_device_properties2",
	}
	deviceExtensionsRemote = []string{
		"VK_KHR_external_fence",
		"VK_KHR_external_fence_fd",
		"VK_KHR_external_memory",
		"VK_KHR_external_memory_fd",
		"VK_KHR_external_semaphore",
		"VK_KHR_external_semaphore_fd",
	}
)

type Options struct {
	Windows Windows
	// Native is the libwayland connection host Vulkan surfaces are created
	// on. Surface creation fails without it.
	Native NativeDisplay
	// Remote allows presenting into windows owned by other processes.
	Remote bool
	// Dial connects to the owner of a window; RemoteSocket is dialed when
	// it is nil.
	Dial         func(hwnd w32.HWND) (Proxy, error)
	RemoteSocket string
}

type Driver struct {
	host    *Host
	lib     *Library
	windows Windows
	ws      w32.WindowSystem
	native  NativeDisplay
	remote  bool
	dial    func(hwnd w32.HWND) (Proxy, error)

	reg *registry
}

func NewDriver(host *Host, opts Options) *Driver {
	d := &Driver{
		host:    host,
		windows: opts.Windows,
		ws:      opts.Windows.WindowSystem(),
		native:  opts.Native,
		remote:  opts.Remote,
		dial:    opts.Dial,
		reg:     newRegistry(),
	}
	if d.dial == nil {
		path := opts.RemoteSocket
		d.dial = func(hwnd w32.HWND) (Proxy, error) {
			return remote.Dial(path, hwnd, remote.SurfaceGLVK)
		}
	}
	if d.native == nil {
		log.Warn("no native wayland handles, vulkan surfaces cannot be created")
	}
	return d
}

// Load opens the host loader at path and builds a Driver on it.
func Load(path string, opts Options) (*Driver, error) {
	lib, host, err := Open(path)
	if err != nil {
		return nil, err
	}
	d := NewDriver(host, opts)
	d.lib = lib
	return d, nil
}

// Close drops the wayland and remote state of every object still
// registered. The host objects belong to the application.
func (d *Driver) Close() error {
	swapchains, surfaces, _ := d.reg.drain()
	for _, s := range swapchains {
		s.release()
	}
	for _, s := range surfaces {
		s.release()
	}
	if d.lib != nil {
		return d.lib.Close()
	}
	return nil
}

var process struct {
	mu     sync.Mutex
	once   *sync.Once
	load   func() (*Driver, error)
	driver *Driver
}

// SetLoader installs how the process driver is created on the first
// GetDriver call.
func SetLoader(load func() (*Driver, error)) {
	process.mu.Lock()
	defer process.mu.Unlock()
	process.once = &sync.Once{}
	process.load = load
	process.driver = nil
}

// GetDriver returns the process driver, loading it once.
func GetDriver(version uint32) (*Driver, error) {
	if version != DriverVersion {
		log.WithFields(logrus.Fields{"want": version, "have": DriverVersion}).Error("vulkan driver version mismatch")
		return nil, ErrUnavailable
	}
	process.mu.Lock()
	defer process.mu.Unlock()
	if process.once == nil || process.load == nil {
		return nil, ErrUnavailable
	}
	process.once.Do(func() {
		d, err := process.load()
		if err != nil {
			log.WithError(err).Error("unable to load vulkan driver")
			return
		}
		process.driver = d
	})
	if process.driver == nil {
		return nil, ErrUnavailable
	}
	return process.driver, nil
}

// InvalidateWindow marks the Vulkan objects of a destroyed window as lost.
func (d *Driver) InvalidateWindow(hwnd w32.HWND) {
	if n := d.reg.invalidateWindow(hwnd); n > 0 {
		log.WithFields(logrus.Fields{"hwnd": hwnd, "objects": n}).Debug("invalidated vulkan objects")
	}
}

func warnAllocator(allocator unsafe.Pointer) {
	if allocator != nil {
		log.Warn("allocation callbacks are not supported")
	}
}

func (d *Driver) instanceSupportsRemote() bool {
	props, res := d.host.instanceExtensions()
	if res != Success {
		log.WithField("result", res).Error("vkEnumerateInstanceExtensionProperties failed")
		return false
	}
	return containsAll(props, instanceExtensionsRemote)
}

// withExtensions appends the names of extra missing from names.
func withExtensions(names, extra []string) []string {
	missing := sliceutils.Filter(extra, func(e string) bool {
		for _, n := range names {
			if n == e {
				return false
			}
		}
		return true
	})
	return append(names, missing...)
}

// instanceExtensionNames swaps the win32 surface extension for the wayland
// one. An application enabling no extensions gets none added.
func instanceExtensionNames(names []string, withRemote bool) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names)+len(instanceExtensionsRemote))
	for _, n := range names {
		if n == KHRWin32SurfaceExtensionName {
			n = KHRWaylandSurfaceExtensionName
		}
		out = append(out, n)
	}
	if withRemote {
		out = withExtensions(out, instanceExtensionsRemote)
	}
	return out
}

func deviceExtensionNames(names []string, withRemote bool) []string {
	if len(names) == 0 {
		return nil
	}
	out := append([]string(nil), names...)
	if withRemote {
		out = withExtensions(out, deviceExtensionsRemote)
	}
	return out
}

func (d *Driver) CreateInstance(info *InstanceCreateInfo, allocator unsafe.Pointer, instance *Instance) Result {
	warnAllocator(allocator)
	withRemote := d.remote && d.instanceSupportsRemote()

	var pinner runtime.Pinner
	defer pinner.Unpin()
	host := *info
	host.EnabledLayerCount, host.EnabledLayerNames = 0, nil
	names := instanceExtensionNames(GoStrings(info.EnabledExtensionNames, info.EnabledExtensionCount), withRemote)
	host.EnabledExtensionNames, host.EnabledExtensionCount = CStrings(&pinner, names)
	log.WithField("extensions", names).Trace("creating instance")
	return d.host.CreateInstance(&host, nil, instance)
}

func (d *Driver) DestroyInstance(instance Instance, allocator unsafe.Pointer) {
	warnAllocator(allocator)
	d.host.DestroyInstance(instance, nil)
}

// EnumerateInstanceExtensionProperties reports the host extensions with the
// wayland surface extension renamed to the win32 one.
func (d *Driver) EnumerateInstanceExtensionProperties(layer *byte, count *uint32, props *ExtensionProperties) Result {
	if layer != nil {
		log.Error("layer enumeration is not supported")
		return ErrorLayerNotPresent
	}
	res := d.host.EnumerateInstanceExtensionProperties(nil, count, props)
	if props == nil || res < 0 {
		return res
	}
	out := slice(props, *count)
	for i := range out {
		if out[i].Name() == KHRWaylandSurfaceExtensionName {
			out[i].SetName(KHRWin32SurfaceExtensionName)
			out[i].SpecVersion = KHRWin32SurfaceSpecVersion
		}
	}
	return res
}

// CreateDevice records whether the device can export swapchain images,
// enabling the needed extensions when it can.
func (d *Driver) CreateDevice(phys PhysicalDevice, info *DeviceCreateInfo, allocator unsafe.Pointer, out *Device) Result {
	warnAllocator(allocator)
	props, res := d.host.deviceExtensions(phys)
	if res != Success {
		log.WithField("result", res).Error("vkEnumerateDeviceExtensionProperties failed")
		return res
	}
	dev := &device{phys: phys}
	dev.remote = d.remote && containsAll(props, deviceExtensionsRemote) && d.instanceSupportsRemote()

	var pinner runtime.Pinner
	defer pinner.Unpin()
	host := *info
	host.EnabledLayerCount, host.EnabledLayerNames = 0, nil
	names := deviceExtensionNames(GoStrings(info.EnabledExtensionNames, info.EnabledExtensionCount), dev.remote)
	host.EnabledExtensionNames, host.EnabledExtensionCount = CStrings(&pinner, names)
	if res := d.host.CreateDevice(phys, &host, nil, out); res != Success {
		log.WithField("result", res).Error("vkCreateDevice failed")
		return res
	}
	dev.handle = *out
	d.reg.addDevice(dev)
	log.WithFields(logrus.Fields{"device": dev.handle, "remote": dev.remote}).Debug("created device")
	return Success
}

func (d *Driver) DestroyDevice(handle Device, allocator unsafe.Pointer) {
	warnAllocator(allocator)
	if d.reg.removeDevice(handle) == nil {
		return
	}
	d.host.DestroyDevice(handle, nil)
}

// CreateWin32SurfaceKHR creates a host wayland surface on the window's GL/VK
// child, or on a dummy surface when another process owns the window.
func (d *Driver) CreateWin32SurfaceKHR(instance Instance, info *Win32SurfaceCreateInfo, allocator unsafe.Pointer, out *SurfaceKHR) Result {
	warnAllocator(allocator)
	hwnd := w32.HWND(info.Hwnd)
	l := log.WithField("hwnd", hwnd)
	if d.native == nil {
		l.Error("no native wayland display for host vulkan")
		return ErrorOutOfHostMemory
	}
	s := &surface{hwnd: hwnd, instance: instance}

	window := d.windows.SurfaceForWindow(hwnd)
	mapper, direct := d.native.(SurfaceMapper)
	if window != nil && !direct {
		window.Unref()
		window = nil
		l.Debug("presenting local window through the remote surface server")
	}
	var native uintptr
	if window != nil {
		if err := window.CreateOrRefGLVK(); err != nil {
			window.Unref()
			l.WithError(err).Error("unable to create gl/vk surface")
			return ErrorOutOfHostMemory
		}
		s.window = window
		if proxy := window.GLVKProxy(); proxy != nil {
			native = mapper.NativeSurface(proxy)
		}
	} else {
		if !d.remote || !d.instanceSupportsRemote() {
			l.Error("remote vulkan surface is not supported by the instance")
			return ErrorOutOfHostMemory
		}
		dummy, err := d.native.CreateSurface()
		if err != nil {
			l.WithError(err).Error("unable to create dummy surface")
			return ErrorOutOfHostMemory
		}
		s.dummy = dummy
		native = dummy.Handle()
	}
	if native == 0 {
		s.release()
		l.Error("no native wayland surface for host vulkan")
		return ErrorOutOfHostMemory
	}

	create := &WaylandSurfaceCreateInfo{
		SType:   StructureTypeWaylandSurfaceCreateInfoKHR,
		Display: d.native.Handle(),
		Surface: native,
	}
	if res := d.host.CreateWaylandSurfaceKHR(instance, create, nil, out); res != Success {
		s.release()
		l.WithField("result", res).Error("vkCreateWaylandSurfaceKHR failed")
		return res
	}
	s.handle = *out
	s.valid.Store(true)
	d.reg.addSurface(s)
	l.WithFields(logrus.Fields{"surface": s.handle, "remote": s.remote()}).Debug("created vulkan surface")
	return Success
}

func (d *Driver) DestroySurfaceKHR(instance Instance, handle SurfaceKHR, allocator unsafe.Pointer) {
	warnAllocator(allocator)
	s := d.reg.removeSurface(handle)
	if s == nil {
		return
	}
	d.host.DestroySurfaceKHR(instance, handle, nil)
	s.release()
}

// CreateSwapchainKHR creates the host swapchain. Remote surfaces also get
// a RemoteSwapchain whose images are what the application renders to.
func (d *Driver) CreateSwapchainKHR(handle Device, info *SwapchainCreateInfo, allocator unsafe.Pointer, out *SwapchainKHR) Result {
	warnAllocator(allocator)
	host := *info
	// wayland does not allow empty buffers
	if host.ImageExtent.Width == 0 {
		host.ImageExtent.Width = 1
	}
	if host.ImageExtent.Height == 0 {
		host.ImageExtent.Height = 1
	}

	dev := d.reg.device(handle)
	if dev == nil {
		return ErrorDeviceLost
	}
	surf := d.reg.surface(host.Surface)
	if surf == nil || !surf.valid.Load() {
		return ErrorSurfaceLostKHR
	}

	if res := d.host.CreateSwapchainKHR(handle, &host, nil, out); res != Success {
		return res
	}
	sc := &swapchain{handle: *out, hwnd: surf.hwnd, device: dev, extent: host.ImageExtent}
	l := log.WithFields(logrus.Fields{"hwnd": sc.hwnd, "swapchain": sc.handle})
	fail := func(res Result) Result {
		sc.release()
		d.host.DestroySwapchainKHR(handle, sc.handle, nil)
		*out = 0
		return res
	}

	if !surf.remote() {
		window := d.windows.SurfaceForWindow(surf.hwnd)
		if window == nil {
			l.Error("window lost its surface")
			return fail(ErrorSurfaceLostKHR)
		}
		if err := window.CreateOrRefGLVK(); err != nil {
			window.Unref()
			l.WithError(err).Error("unable to reference gl/vk surface")
			return fail(ErrorOutOfHostMemory)
		}
		sc.window = window
	} else {
		if !dev.remote {
			l.Error("device does not support remote vulkan")
			return fail(ErrorOutOfHostMemory)
		}
		funcs, err := d.host.DeviceFuncs(surf.instance, handle)
		if err != nil {
			l.WithError(err).Error("unable to load device functions")
			return fail(ErrorOutOfHostMemory)
		}
		proxy, err := d.dial(sc.hwnd)
		if err != nil {
			l.WithError(err).Error("unable to reach window owner")
			return fail(ErrorOutOfHostMemory)
		}
		rs, err := NewRemoteSwapchain(funcs, dev.phys, handle, proxy, &host)
		if err != nil {
			l.WithError(err).Error("unable to create remote swapchain")
			return fail(ErrorOutOfHostMemory)
		}
		rs.lost = func() bool { return !sc.valid.Load() }
		sc.remote = rs
		sc.funcs = funcs
	}

	sc.valid.Store(true)
	d.reg.addSwapchain(sc)
	l.WithFields(logrus.Fields{
		"width":  sc.extent.Width,
		"height": sc.extent.Height,
		"remote": sc.isRemote(),
	}).Debug("created swapchain")
	return Success
}

func (d *Driver) DestroySwapchainKHR(handle Device, swapchain SwapchainKHR, allocator unsafe.Pointer) {
	warnAllocator(allocator)
	sc := d.reg.removeSwapchain(swapchain)
	if sc == nil {
		return
	}
	d.host.DestroySwapchainKHR(handle, swapchain, nil)
	sc.release()
}

func (d *Driver) GetSwapchainImagesKHR(handle Device, swapchain SwapchainKHR, count *uint32, images *Image) Result {
	sc := d.reg.swapchain(swapchain)
	if sc != nil && !sc.valid.Load() {
		return ErrorSurfaceLostKHR
	}
	if sc.isRemote() {
		return sc.remote.Images(count, slice(images, *count))
	}
	return d.host.GetSwapchainImagesKHR(handle, swapchain, count, images)
}

// AcquireNextImageKHR fails with ErrorSurfaceLostKHR once the window is
// destroyed, also while a remote acquire is waiting.
func (d *Driver) AcquireNextImageKHR(handle Device, swapchain SwapchainKHR, timeout uint64, semaphore Semaphore, fence Fence, index *uint32) Result {
	sc := d.reg.swapchain(swapchain)
	if sc != nil && !sc.valid.Load() {
		return ErrorSurfaceLostKHR
	}
	if sc.isRemote() {
		i, res := sc.remote.Acquire(timeout, semaphore, fence)
		if res == Success {
			*index = i
		}
		return res
	}
	return d.host.AcquireNextImageKHR(handle, swapchain, timeout, semaphore, fence, index)
}

// GetPhysicalDeviceWin32PresentationSupportKHR asks the host about the
// compositor connection, assuming support without one.
func (d *Driver) GetPhysicalDeviceWin32PresentationSupportKHR(phys PhysicalDevice, family uint32) bool {
	if d.native == nil {
		return true
	}
	return d.host.GetPhysicalDeviceWaylandPresentationSupportKHR(phys, family, d.native.Handle()) != 0
}

func (d *Driver) GetPhysicalDeviceSurfaceSupportKHR(phys PhysicalDevice, family uint32, surface SurfaceKHR, supported *uint32) Result {
	if !d.reg.validSurface(surface) {
		return ErrorSurfaceLostKHR
	}
	return d.host.GetPhysicalDeviceSurfaceSupportKHR(phys, family, surface, supported)
}

func (d *Driver) GetPhysicalDeviceSurfacePresentModesKHR(phys PhysicalDevice, surface SurfaceKHR, count *uint32, modes *PresentMode) Result {
	if !d.reg.validSurface(surface) {
		return ErrorSurfaceLostKHR
	}
	return d.host.GetPhysicalDeviceSurfacePresentModesKHR(phys, surface, count, modes)
}

func (d *Driver) GetDeviceGroupSurfacePresentModesKHR(handle Device, surface SurfaceKHR, modes *uint32) Result {
	if !d.reg.validSurface(surface) {
		return ErrorSurfaceLostKHR
	}
	if d.host.GetDeviceGroupSurfacePresentModesKHR == nil {
		return ErrorExtensionNotPresent
	}
	return d.host.GetDeviceGroupSurfacePresentModesKHR(handle, surface, modes)
}

func (d *Driver) GetPhysicalDevicePresentRectanglesKHR(phys PhysicalDevice, surface SurfaceKHR, count *uint32, rects *Rect2D) Result {
	if d.host.GetPhysicalDevicePresentRectanglesKHR == nil {
		return ErrorExtensionNotPresent
	}
	return d.host.GetPhysicalDevicePresentRectanglesKHR(phys, surface, count, rects)
}

// GetNativeSurface maps a surface to the host one. They are the same.
func (d *Driver) GetNativeSurface(surface SurfaceKHR) SurfaceKHR {
	return surface
}
