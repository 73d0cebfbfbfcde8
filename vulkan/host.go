package vulkan

import "unsafe"

// Host is the table of host Vulkan entry points the driver forwards to.
// Fields marked optional may be nil when the loader does not export them;
// callers check before use.
type Host struct {
	CreateInstance                                 func(info *InstanceCreateInfo, allocator unsafe.Pointer, instance *Instance) Result
	DestroyInstance                                func(instance Instance, allocator unsafe.Pointer)
	EnumerateInstanceExtensionProperties           func(layer *byte, count *uint32, props *ExtensionProperties) Result
	EnumerateDeviceExtensionProperties             func(phys PhysicalDevice, layer *byte, count *uint32, props *ExtensionProperties) Result
	CreateDevice                                   func(phys PhysicalDevice, info *DeviceCreateInfo, allocator unsafe.Pointer, device *Device) Result
	DestroyDevice                                  func(device Device, allocator unsafe.Pointer)
	CreateWaylandSurfaceKHR                        func(instance Instance, info *WaylandSurfaceCreateInfo, allocator unsafe.Pointer, surface *SurfaceKHR) Result
	DestroySurfaceKHR                              func(instance Instance, surface SurfaceKHR, allocator unsafe.Pointer)
	CreateSwapchainKHR                             func(device Device, info *SwapchainCreateInfo, allocator unsafe.Pointer, swapchain *SwapchainKHR) Result
	DestroySwapchainKHR                            func(device Device, swapchain SwapchainKHR, allocator unsafe.Pointer)
	GetSwapchainImagesKHR                          func(device Device, swapchain SwapchainKHR, count *uint32, images *Image) Result
	AcquireNextImageKHR                            func(device Device, swapchain SwapchainKHR, timeout uint64, semaphore Semaphore, fence Fence, index *uint32) Result
	QueuePresentKHR                                func(queue Queue, info *PresentInfo) Result
	GetPhysicalDeviceSurfaceCapabilitiesKHR        func(phys PhysicalDevice, surface SurfaceKHR, caps *SurfaceCapabilities) Result
	GetPhysicalDeviceSurfaceFormatsKHR             func(phys PhysicalDevice, surface SurfaceKHR, count *uint32, formats *SurfaceFormat) Result
	GetPhysicalDeviceSurfacePresentModesKHR        func(phys PhysicalDevice, surface SurfaceKHR, count *uint32, modes *PresentMode) Result
	GetPhysicalDeviceSurfaceSupportKHR             func(phys PhysicalDevice, family uint32, surface SurfaceKHR, supported *uint32) Result
	GetPhysicalDeviceWaylandPresentationSupportKHR func(phys PhysicalDevice, family uint32, display uintptr) uint32

	// optional
	GetPhysicalDeviceSurfaceCapabilities2KHR func(phys PhysicalDevice, info *PhysicalDeviceSurfaceInfo2, caps *SurfaceCapabilities2) Result
	GetPhysicalDeviceSurfaceFormats2KHR      func(phys PhysicalDevice, info *PhysicalDeviceSurfaceInfo2, count *uint32, formats *SurfaceFormat2) Result
	GetDeviceGroupSurfacePresentModesKHR     func(device Device, surface SurfaceKHR, modes *uint32) Result
	GetPhysicalDevicePresentRectanglesKHR    func(phys PhysicalDevice, surface SurfaceKHR, count *uint32, rects *Rect2D) Result

	// DeviceFuncs resolves the per device entry points used by remote
	// swapchains.
	DeviceFuncs func(instance Instance, device Device) (*DeviceFuncs, error)
}

// DeviceFuncs are resolved through the instance and device proc addresses.
type DeviceFuncs struct {
	CreateImage                       func(device Device, info *ImageCreateInfo, allocator unsafe.Pointer, image *Image) Result
	DestroyImage                      func(device Device, image Image, allocator unsafe.Pointer)
	AllocateMemory                    func(device Device, info *MemoryAllocateInfo, allocator unsafe.Pointer, memory *DeviceMemory) Result
	FreeMemory                        func(device Device, memory DeviceMemory, allocator unsafe.Pointer)
	BindImageMemory                   func(device Device, image Image, memory DeviceMemory, offset uint64) Result
	GetImageMemoryRequirements        func(device Device, image Image, reqs *MemoryRequirements)
	GetPhysicalDeviceMemoryProperties func(phys PhysicalDevice, props *PhysicalDeviceMemoryProperties)
	ImportSemaphoreFdKHR              func(device Device, info *ImportSemaphoreFdInfo) Result
	ImportFenceFdKHR                  func(device Device, info *ImportFenceFdInfo) Result
	GetMemoryFdKHR                    func(device Device, info *MemoryGetFdInfo, fd *int32) Result
	GetImageSubresourceLayout         func(device Device, image Image, sub *ImageSubresource, layout *SubresourceLayout)
	GetSemaphoreFdKHR                 func(device Device, info *SemaphoreGetFdInfo, fd *int32) Result
}

// enumerate runs the two call count protocol of query.
func enumerate[T any](query func(count *uint32, out *T) Result) ([]T, Result) {
	var count uint32
	if res := query(&count, nil); res != Success {
		return nil, res
	}
	out := make([]T, count)
	if count == 0 {
		return out, Success
	}
	if res := query(&count, &out[0]); res != Success {
		return nil, res
	}
	return out[:count], Success
}

func (h *Host) instanceExtensions() ([]ExtensionProperties, Result) {
	return enumerate(func(count *uint32, props *ExtensionProperties) Result {
		return h.EnumerateInstanceExtensionProperties(nil, count, props)
	})
}

func (h *Host) deviceExtensions(phys PhysicalDevice) ([]ExtensionProperties, Result) {
	return enumerate(func(count *uint32, props *ExtensionProperties) Result {
		return h.EnumerateDeviceExtensionProperties(phys, nil, count, props)
	})
}

// containsAll reports whether every name in required is among props.
func containsAll(props []ExtensionProperties, required []string) bool {
	have := make(map[string]bool, len(props))
	for i := range props {
		have[props[i].Name()] = true
	}
	for _, name := range required {
		if !have[name] {
			return false
		}
	}
	return true
}
