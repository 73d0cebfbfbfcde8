package vulkan

import (
	"sync"
	"unsafe"

	"github.com/kichirouhoshino/wine-wayland/remote"
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
	"github.com/pkg/errors"
)

type fakeWLSurface struct {
	wlp.Surface
	id uint32
}

type fakeNativeSurface struct {
	handle    uintptr
	destroyed bool
}

func (s *fakeNativeSurface) Handle() uintptr { return s.handle }
func (s *fakeNativeSurface) Destroy()        { s.destroyed = true }

// fakeNative is a libwayland connection of its own, like native.Display.
type fakeNative struct {
	surfaces []*fakeNativeSurface
	fail     bool
}

func (n *fakeNative) Handle() uintptr { return 0xd15 }

func (n *fakeNative) CreateSurface() (NativeSurface, error) {
	if n.fail {
		return nil, errors.New("native display lost")
	}
	s := &fakeNativeSurface{handle: 0xd00 + uintptr(len(n.surfaces))}
	n.surfaces = append(n.surfaces, s)
	return s, nil
}

// fakeSharedNative also reaches the window surfaces.
type fakeSharedNative struct {
	*fakeNative
}

func (fakeSharedNative) NativeSurface(s wlp.Surface) uintptr {
	return uintptr(s.(*fakeWLSurface).id)
}

type fakeWindow struct {
	refs     int
	glvkRefs int
	mapped   int
	drawing  bool
	glvk     *fakeWLSurface
	locked   bool
	locks    int
}

func (w *fakeWindow) LockCommits() {
	if w.locked {
		panic("commit lock taken twice")
	}
	w.locked = true
	w.locks++
}

func (w *fakeWindow) UnlockCommits() { w.locked = false }

func (w *fakeWindow) CreateOrRefGLVK() error {
	w.glvkRefs++
	return nil
}

func (w *fakeWindow) UnrefGLVK() { w.glvkRefs-- }

func (w *fakeWindow) GLVKProxy() wlp.Surface {
	if w.glvkRefs == 0 {
		return nil
	}
	return w.glvk
}

func (w *fakeWindow) DrawingAllowed() bool { return w.drawing }
func (w *fakeWindow) EnsureMapped()        { w.mapped++ }
func (w *fakeWindow) Unref()               { w.refs-- }

type fakeWindows struct {
	desktop *w32.Desktop
	windows map[w32.HWND]*fakeWindow
}

func newFakeWindows() *fakeWindows {
	return &fakeWindows{
		desktop: w32.NewDesktop(w32.NewRect(0, 0, 1920, 1080)),
		windows: make(map[w32.HWND]*fakeWindow),
	}
}

// local creates a window owned by this process with a client area of w by h.
func (f *fakeWindows) local(w, h int32) (w32.HWND, *fakeWindow) {
	hwnd := f.desktop.CreateWindow(w32.NewRect(100, 100, w+10, h+30), w32.NewRect(105, 125, w, h), 0)
	win := &fakeWindow{drawing: true, glvk: &fakeWLSurface{id: uint32(hwnd)}}
	f.windows[hwnd] = win
	return hwnd, win
}

// foreign creates a window owned by another process.
func (f *fakeWindows) foreign(w, h int32) w32.HWND {
	return f.desktop.CreateWindow(w32.NewRect(0, 0, w, h), w32.NewRect(0, 0, w, h), 0)
}

func (f *fakeWindows) SurfaceForWindow(hwnd w32.HWND) WindowSurface {
	win, ok := f.windows[hwnd]
	if !ok {
		return nil
	}
	win.refs++
	return win
}

func (f *fakeWindows) WindowSystem() w32.WindowSystem { return f.desktop }

type commit struct {
	buf  remote.Buffer
	mode remote.CommitMode
}

type fakeProxy struct {
	mu       sync.Mutex
	commits  []commit
	released []*remote.Event
	fail     bool
	closed   bool
}

func (p *fakeProxy) Commit(buf remote.Buffer, mode remote.CommitMode) (*remote.Event, *remote.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, nil, errors.New("connection reset")
	}
	released, err := remote.NewEvent()
	if err != nil {
		return nil, nil, err
	}
	p.commits = append(p.commits, commit{buf, mode})
	p.released = append(p.released, released)
	return released, nil, nil
}

func (p *fakeProxy) DispatchEvents() error { return nil }

func (p *fakeProxy) Close() error {
	p.closed = true
	return nil
}

// fakeVK stands in for the host loader. Handles are handed out in order.
type fakeVK struct {
	instanceExts []string
	deviceExts   []string
	formats      []SurfaceFormat
	caps         SurfaceCapabilities

	next       uint64
	enabled    []string
	devEnabled []string
	surfaces   map[SurfaceKHR]WaylandSurfaceCreateInfo
	swapchains map[SwapchainKHR]SwapchainCreateInfo
	presented  int
	imported   int
	onPresent  func()
	onWait     func()

	images  map[Image]bool
	memory  map[DeviceMemory]bool
	pipeFDs []int
}

func newFakeVK() *fakeVK {
	return &fakeVK{
		instanceExts: append([]string{KHRSurfaceExtensionName, KHRWaylandSurfaceExtensionName}, instanceExtensionsRemote...),
		deviceExts:   append([]string{KHRSwapchainExtensionName}, deviceExtensionsRemote...),
		formats: []SurfaceFormat{
			{Format: FormatB8G8R8A8Srgb},
			{Format: 64},
			{Format: FormatR8G8B8A8Unorm},
		},
		caps:       SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8},
		surfaces:   make(map[SurfaceKHR]WaylandSurfaceCreateInfo),
		swapchains: make(map[SwapchainKHR]SwapchainCreateInfo),
		images:     make(map[Image]bool),
		memory:     make(map[DeviceMemory]bool),
	}
}

func (f *fakeVK) handle() uint64 {
	f.next++
	return f.next
}

func props(names []string) []ExtensionProperties {
	out := make([]ExtensionProperties, len(names))
	for i, n := range names {
		out[i].SetName(n)
		out[i].SpecVersion = 1
	}
	return out
}

func fill[T any](all []T, count *uint32, out *T) Result {
	if out == nil {
		*count = uint32(len(all))
		return Success
	}
	n := copy(slice(out, *count), all)
	if n < len(all) {
		*count = uint32(n)
		return Incomplete
	}
	*count = uint32(n)
	return Success
}

func (f *fakeVK) host() *Host {
	return &Host{
		CreateInstance: func(info *InstanceCreateInfo, _ unsafe.Pointer, instance *Instance) Result {
			f.enabled = GoStrings(info.EnabledExtensionNames, info.EnabledExtensionCount)
			*instance = Instance(f.handle())
			return Success
		},
		DestroyInstance: func(Instance, unsafe.Pointer) {},
		EnumerateInstanceExtensionProperties: func(_ *byte, count *uint32, out *ExtensionProperties) Result {
			return fill(props(f.instanceExts), count, out)
		},
		EnumerateDeviceExtensionProperties: func(_ PhysicalDevice, _ *byte, count *uint32, out *ExtensionProperties) Result {
			return fill(props(f.deviceExts), count, out)
		},
		CreateDevice: func(_ PhysicalDevice, info *DeviceCreateInfo, _ unsafe.Pointer, device *Device) Result {
			f.devEnabled = GoStrings(info.EnabledExtensionNames, info.EnabledExtensionCount)
			*device = Device(f.handle())
			return Success
		},
		DestroyDevice: func(Device, unsafe.Pointer) {},
		CreateWaylandSurfaceKHR: func(_ Instance, info *WaylandSurfaceCreateInfo, _ unsafe.Pointer, surface *SurfaceKHR) Result {
			*surface = SurfaceKHR(f.handle())
			f.surfaces[*surface] = *info
			return Success
		},
		DestroySurfaceKHR: func(_ Instance, surface SurfaceKHR, _ unsafe.Pointer) {
			delete(f.surfaces, surface)
		},
		CreateSwapchainKHR: func(_ Device, info *SwapchainCreateInfo, _ unsafe.Pointer, swapchain *SwapchainKHR) Result {
			*swapchain = SwapchainKHR(f.handle())
			f.swapchains[*swapchain] = *info
			return Success
		},
		DestroySwapchainKHR: func(_ Device, swapchain SwapchainKHR, _ unsafe.Pointer) {
			delete(f.swapchains, swapchain)
		},
		GetSwapchainImagesKHR: func(_ Device, _ SwapchainKHR, count *uint32, images *Image) Result {
			return fill([]Image{0x51, 0x52}, count, images)
		},
		AcquireNextImageKHR: func(_ Device, _ SwapchainKHR, _ uint64, _ Semaphore, _ Fence, index *uint32) Result {
			*index = 1
			return Success
		},
		QueuePresentKHR: func(Queue, *PresentInfo) Result {
			if f.onPresent != nil {
				f.onPresent()
			}
			f.presented++
			return Success
		},
		GetPhysicalDeviceSurfaceCapabilitiesKHR: func(_ PhysicalDevice, _ SurfaceKHR, caps *SurfaceCapabilities) Result {
			*caps = f.caps
			return Success
		},
		GetPhysicalDeviceSurfaceFormatsKHR: func(_ PhysicalDevice, _ SurfaceKHR, count *uint32, out *SurfaceFormat) Result {
			return fill(f.formats, count, out)
		},
		GetPhysicalDeviceSurfacePresentModesKHR: func(_ PhysicalDevice, _ SurfaceKHR, count *uint32, out *PresentMode) Result {
			return fill([]PresentMode{PresentModeFIFO}, count, out)
		},
		GetPhysicalDeviceSurfaceSupportKHR: func(_ PhysicalDevice, _ uint32, _ SurfaceKHR, supported *uint32) Result {
			*supported = 1
			return Success
		},
		GetPhysicalDeviceWaylandPresentationSupportKHR: func(PhysicalDevice, uint32, uintptr) uint32 {
			return 1
		},
		DeviceFuncs: func(Instance, Device) (*DeviceFuncs, error) {
			return f.deviceFuncs(), nil
		},
	}
}

func (f *fakeVK) deviceFuncs() *DeviceFuncs {
	return &DeviceFuncs{
		CreateImage: func(_ Device, _ *ImageCreateInfo, _ unsafe.Pointer, image *Image) Result {
			*image = Image(f.handle())
			f.images[*image] = true
			return Success
		},
		DestroyImage: func(_ Device, image Image, _ unsafe.Pointer) { delete(f.images, image) },
		AllocateMemory: func(_ Device, _ *MemoryAllocateInfo, _ unsafe.Pointer, memory *DeviceMemory) Result {
			*memory = DeviceMemory(f.handle())
			f.memory[*memory] = true
			return Success
		},
		FreeMemory:      func(_ Device, memory DeviceMemory, _ unsafe.Pointer) { delete(f.memory, memory) },
		BindImageMemory: func(Device, Image, DeviceMemory, uint64) Result { return Success },
		GetImageMemoryRequirements: func(_ Device, _ Image, reqs *MemoryRequirements) {
			reqs.Size = 4096
			reqs.MemoryTypeBits = 0b11
		},
		GetPhysicalDeviceMemoryProperties: func(_ PhysicalDevice, props *PhysicalDeviceMemoryProperties) {
			props.MemoryTypeCount = 2
		},
		ImportSemaphoreFdKHR: func(Device, *ImportSemaphoreFdInfo) Result {
			f.imported++
			return Success
		},
		ImportFenceFdKHR: func(Device, *ImportFenceFdInfo) Result {
			f.imported++
			return Success
		},
		GetMemoryFdKHR: func(_ Device, _ *MemoryGetFdInfo, fd *int32) Result {
			*fd = -1
			return Success
		},
		GetImageSubresourceLayout: func(_ Device, _ Image, _ *ImageSubresource, layout *SubresourceLayout) {
			layout.RowPitch = 256
		},
		GetSemaphoreFdKHR: func(_ Device, _ *SemaphoreGetFdInfo, fd *int32) Result {
			if f.onWait != nil {
				f.onWait()
			}
			if len(f.pipeFDs) == 0 {
				*fd = -1
				return Success
			}
			*fd = int32(f.pipeFDs[0])
			f.pipeFDs = f.pipeFDs[1:]
			return Success
		},
	}
}
