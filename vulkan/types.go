package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Dispatchable handles are pointers on the host side, the others are
// 64 bit values on every platform.
type (
	Instance       uintptr
	PhysicalDevice uintptr
	Device         uintptr
	Queue          uintptr

	SurfaceKHR   uint64
	SwapchainKHR uint64
	Image        uint64
	DeviceMemory uint64
	Semaphore    uint64
	Fence        uint64
)

type Result int32

const (
	Success                   Result = 0
	NotReady                  Result = 1
	Timeout                   Result = 2
	Incomplete                Result = 5
	ErrorOutOfHostMemory      Result = -1
	ErrorOutOfDeviceMemory    Result = -2
	ErrorInitializationFailed Result = -3
	ErrorDeviceLost           Result = -4
	ErrorLayerNotPresent      Result = -6
	ErrorExtensionNotPresent  Result = -7
	ErrorIncompatibleDriver   Result = -9
	ErrorSurfaceLostKHR       Result = -1000000000
	SuboptimalKHR             Result = 1000001003
	ErrorOutOfDateKHR         Result = -1000001004
)

var resultNames = map[Result]string{
	Success:                   "VK_SUCCESS",
	NotReady:                  "VK_NOT_READY",
	Timeout:                   "VK_TIMEOUT",
	Incomplete:                "VK_INCOMPLETE",
	ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	ErrorSurfaceLostKHR:       "VK_ERROR_SURFACE_LOST_KHR",
	SuboptimalKHR:             "VK_SUBOPTIMAL_KHR",
	ErrorOutOfDateKHR:         "VK_ERROR_OUT_OF_DATE_KHR",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(r))
}

// Error makes results usable as errors. Only negative results are failures.
func (r Result) Error() string {
	return r.String()
}

// Err is nil for non-negative results.
func (r Result) Err() error {
	if r >= 0 {
		return nil
	}
	return r
}

type StructureType int32

const (
	StructureTypeInstanceCreateInfo            StructureType = 1
	StructureTypeDeviceCreateInfo              StructureType = 3
	StructureTypeMemoryAllocateInfo            StructureType = 5
	StructureTypeImageCreateInfo               StructureType = 14
	StructureTypeSwapchainCreateInfoKHR        StructureType = 1000001000
	StructureTypePresentInfoKHR                StructureType = 1000001001
	StructureTypeWaylandSurfaceCreateInfoKHR   StructureType = 1000006000
	StructureTypeWin32SurfaceCreateInfoKHR     StructureType = 1000009000
	StructureTypeExternalMemoryImageCreateInfo StructureType = 1000072001
	StructureTypeExportMemoryAllocateInfo      StructureType = 1000072002
	StructureTypeMemoryGetFdInfoKHR            StructureType = 1000074002
	StructureTypeImportSemaphoreFdInfoKHR      StructureType = 1000079000
	StructureTypeSemaphoreGetFdInfoKHR         StructureType = 1000079001
	StructureTypeImportFenceFdInfoKHR          StructureType = 1000115000
	StructureTypePhysicalDeviceSurfaceInfo2KHR StructureType = 1000119000
	StructureTypeSurfaceCapabilities2KHR       StructureType = 1000119001
	StructureTypeSurfaceFormat2KHR             StructureType = 1000119002
)

type Format uint32

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8Unorm Format = 37
	FormatR8G8B8A8Srgb  Format = 43
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8Srgb  Format = 50
)

type ColorSpace uint32

const ColorSpaceSRGBNonlinear ColorSpace = 0

type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

const (
	SwapchainCreateSplitInstanceBindRegions uint32 = 0x1
	SwapchainCreateProtected                uint32 = 0x2
	SwapchainCreateMutableFormat            uint32 = 0x4

	ImageCreateMutableFormat            uint32 = 0x8
	ImageCreateSplitInstanceBindRegions uint32 = 0x40
	ImageCreateProtected                uint32 = 0x800

	MemoryPropertyProtected uint32 = 0x20

	CompositeAlphaOpaque uint32 = 0x1

	ImageType2D          uint32 = 1
	ImageTilingLinear    uint32 = 1
	ImageLayoutUndefined uint32 = 0
	SampleCount1         uint32 = 1
	ImageAspectColor     uint32 = 0x1

	ExternalMemoryHandleTypeDmaBuf    uint32 = 0x200
	ExternalSemaphoreHandleTypeSyncFd uint32 = 0x10
	ExternalFenceHandleTypeSyncFd     uint32 = 0x8
	SemaphoreImportTemporary          uint32 = 0x1
	FenceImportTemporary              uint32 = 0x1

	DeviceGroupPresentModeLocal uint32 = 0x1
)

const (
	MaxExtensionNameSize = 256

	KHRSurfaceExtensionName        = "VK_KHR_surface"
	KHRSwapchainExtensionName      = "VK_KHR_swapchain"
	KHRWin32SurfaceExtensionName   = "VK_KHR_win32_surface"
	KHRWin32SurfaceSpecVersion     = 6
	KHRWaylandSurfaceExtensionName = "VK_KHR_wayland_surface"
)

// The structs below follow the C layout of their Vk counterparts and are
// handed to the host loader as is.

type Extent2D struct {
	Width, Height uint32
}

type Extent3D struct {
	Width, Height, Depth uint32
}

type Offset2D struct {
	X, Y int32
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type ExtensionProperties struct {
	ExtensionName [MaxExtensionNameSize]byte
	SpecVersion   uint32
}

func (p *ExtensionProperties) Name() string {
	return unix.ByteSliceToString(p.ExtensionName[:])
}

func (p *ExtensionProperties) SetName(name string) {
	p.ExtensionName = [MaxExtensionNameSize]byte{}
	copy(p.ExtensionName[:MaxExtensionNameSize-1], name)
}

type InstanceCreateInfo struct {
	SType                 StructureType
	Next                  unsafe.Pointer
	Flags                 uint32
	ApplicationInfo       unsafe.Pointer
	EnabledLayerCount     uint32
	EnabledLayerNames     **byte
	EnabledExtensionCount uint32
	EnabledExtensionNames **byte
}

type DeviceCreateInfo struct {
	SType                 StructureType
	Next                  unsafe.Pointer
	Flags                 uint32
	QueueCreateInfoCount  uint32
	QueueCreateInfos      unsafe.Pointer
	EnabledLayerCount     uint32
	EnabledLayerNames     **byte
	EnabledExtensionCount uint32
	EnabledExtensionNames **byte
	EnabledFeatures       unsafe.Pointer
}

type Win32SurfaceCreateInfo struct {
	SType     StructureType
	Next      unsafe.Pointer
	Flags     uint32
	Hinstance uintptr
	Hwnd      uintptr
}

type WaylandSurfaceCreateInfo struct {
	SType   StructureType
	Next    unsafe.Pointer
	Flags   uint32
	Display uintptr
	Surface uintptr
}

type SurfaceCapabilities struct {
	MinImageCount           uint32
	MaxImageCount           uint32
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	MaxImageArrayLayers     uint32
	SupportedTransforms     uint32
	CurrentTransform        uint32
	SupportedCompositeAlpha uint32
	SupportedUsageFlags     uint32
}

type SurfaceCapabilities2 struct {
	SType               StructureType
	Next                unsafe.Pointer
	SurfaceCapabilities SurfaceCapabilities
}

type PhysicalDeviceSurfaceInfo2 struct {
	SType   StructureType
	Next    unsafe.Pointer
	Surface SurfaceKHR
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceFormat2 struct {
	SType         StructureType
	Next          unsafe.Pointer
	SurfaceFormat SurfaceFormat
}

type SwapchainCreateInfo struct {
	SType                 StructureType
	Next                  unsafe.Pointer
	Flags                 uint32
	Surface               SurfaceKHR
	MinImageCount         uint32
	ImageFormat           Format
	ImageColorSpace       ColorSpace
	ImageExtent           Extent2D
	ImageArrayLayers      uint32
	ImageUsage            uint32
	ImageSharingMode      uint32
	QueueFamilyIndexCount uint32
	QueueFamilyIndices    *uint32
	PreTransform          uint32
	CompositeAlpha        uint32
	PresentMode           PresentMode
	Clipped               uint32
	OldSwapchain          SwapchainKHR
}

type PresentInfo struct {
	SType              StructureType
	Next               unsafe.Pointer
	WaitSemaphoreCount uint32
	WaitSemaphores     *Semaphore
	SwapchainCount     uint32
	Swapchains         *SwapchainKHR
	ImageIndices       *uint32
	Results            *Result
}

type ImageCreateInfo struct {
	SType                 StructureType
	Next                  unsafe.Pointer
	Flags                 uint32
	ImageType             uint32
	Format                Format
	Extent                Extent3D
	MipLevels             uint32
	ArrayLayers           uint32
	Samples               uint32
	Tiling                uint32
	Usage                 uint32
	SharingMode           uint32
	QueueFamilyIndexCount uint32
	QueueFamilyIndices    *uint32
	InitialLayout         uint32
}

type ExternalMemoryImageCreateInfo struct {
	SType       StructureType
	Next        unsafe.Pointer
	HandleTypes uint32
}

type ExportMemoryAllocateInfo struct {
	SType       StructureType
	Next        unsafe.Pointer
	HandleTypes uint32
}

type MemoryAllocateInfo struct {
	SType           StructureType
	Next            unsafe.Pointer
	AllocationSize  uint64
	MemoryTypeIndex uint32
}

type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

type MemoryType struct {
	PropertyFlags uint32
	HeapIndex     uint32
}

type MemoryHeap struct {
	Size  uint64
	Flags uint32
}

type PhysicalDeviceMemoryProperties struct {
	MemoryTypeCount uint32
	MemoryTypes     [32]MemoryType
	MemoryHeapCount uint32
	MemoryHeaps     [16]MemoryHeap
}

type MemoryGetFdInfo struct {
	SType      StructureType
	Next       unsafe.Pointer
	Memory     DeviceMemory
	HandleType uint32
}

type ImageSubresource struct {
	AspectMask uint32
	MipLevel   uint32
	ArrayLayer uint32
}

type SubresourceLayout struct {
	Offset     uint64
	Size       uint64
	RowPitch   uint64
	ArrayPitch uint64
	DepthPitch uint64
}

type ImportSemaphoreFdInfo struct {
	SType      StructureType
	Next       unsafe.Pointer
	Semaphore  Semaphore
	Flags      uint32
	HandleType uint32
	Fd         int32
}

type ImportFenceFdInfo struct {
	SType      StructureType
	Next       unsafe.Pointer
	Fence      Fence
	Flags      uint32
	HandleType uint32
	Fd         int32
}

type SemaphoreGetFdInfo struct {
	SType      StructureType
	Next       unsafe.Pointer
	Semaphore  Semaphore
	HandleType uint32
}

// CStrings builds a char** array of NUL terminated copies of ss, pinned in
// p until p is unpinned.
func CStrings(p *runtime.Pinner, ss []string) (**byte, uint32) {
	if len(ss) == 0 {
		return nil, 0
	}
	ptrs := make([]*byte, len(ss))
	for i, s := range ss {
		b := append([]byte(s), 0)
		p.Pin(&b[0])
		ptrs[i] = &b[0]
	}
	p.Pin(&ptrs[0])
	return &ptrs[0], uint32(len(ss))
}

// GoStrings copies n strings out of a char** array.
func GoStrings(pp **byte, n uint32) []string {
	if pp == nil || n == 0 {
		return nil
	}
	ptrs := unsafe.Slice(pp, n)
	out := make([]string, n)
	for i, p := range ptrs {
		out[i] = unix.BytePtrToString(p)
	}
	return out
}

// slice views a C array as a Go slice; nil when p is nil.
func slice[T any](p *T, n uint32) []T {
	if p == nil {
		return nil
	}
	return unsafe.Slice(p, n)
}
