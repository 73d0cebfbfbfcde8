package vulkan

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/kichirouhoshino/wine-wayland/remote"
	"github.com/kichirouhoshino/wine-wayland/ticker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	minRemoteImages = 4
	// waitSlice bounds each wait so process wide proxy failures surface.
	waitSlice = 10 * time.Millisecond
	// reclaimTimeout is how long acquire waits for a release before it takes
	// image 0 back, so that a window process waiting on us cannot deadlock
	// against us waiting on it.
	reclaimTimeout uint32 = 100
	// throttleTimeout caps the wait for a frame event, the compositor may
	// stop sending them for hidden surfaces.
	throttleTimeout uint32 = 100
)

// Proxy is the connection to the process owning the window surface.
type Proxy interface {
	Commit(buf remote.Buffer, mode remote.CommitMode) (released, throttle *remote.Event, err error)
	DispatchEvents() error
	Close() error
}

type remoteImage struct {
	image    Image
	memory   DeviceMemory
	format   Format
	width    uint32
	height   uint32
	busy     bool
	buffer   remote.Buffer
	released *remote.Event
}

func (img *remoteImage) release() {
	if img.released != nil {
		img.released.Close()
		img.released = nil
	}
	img.busy = false
}

// RemoteSwapchain presents into a window owned by another process. Its
// images live in exportable linear memory and are handed over as dma-bufs.
// Like any swapchain it must be externally synchronized by the caller.
type RemoteSwapchain struct {
	funcs    *DeviceFuncs
	device   Device
	proxy    Proxy
	images   []remoteImage
	mode     remote.CommitMode
	throttle *remote.Event

	// lost reports that the window went away, nil when it cannot.
	lost func() bool
	now  func() uint32
}

func (rs *RemoteSwapchain) isLost() bool {
	return rs.lost != nil && rs.lost()
}

// NewRemoteSwapchain allocates max(info.MinImageCount, 4) images. The
// swapchain owns proxy from here on, also on failure.
func NewRemoteSwapchain(funcs *DeviceFuncs, phys PhysicalDevice, device Device, proxy Proxy, info *SwapchainCreateInfo) (*RemoteSwapchain, error) {
	rs := &RemoteSwapchain{
		funcs:  funcs,
		device: device,
		proxy:  proxy,
		images: make([]remoteImage, max(info.MinImageCount, minRemoteImages)),
		mode:   remote.CommitNormal,
		now:    ticker.GetAsMS,
	}
	if info.PresentMode == PresentModeFIFO {
		rs.mode = remote.CommitThrottled
	}
	for i := range rs.images {
		if err := rs.initImage(phys, info, &rs.images[i]); err != nil {
			rs.Destroy()
			return nil, errors.Wrapf(err, "unable to create remote image %d", i)
		}
	}
	log.WithFields(logrus.Fields{
		"images": len(rs.images),
		"format": info.ImageFormat,
		"width":  info.ImageExtent.Width,
		"height": info.ImageExtent.Height,
		"mode":   rs.mode,
	}).Debug("created remote swapchain")
	return rs, nil
}

func imageCreateFlags(info *SwapchainCreateInfo) uint32 {
	var flags uint32
	if info.Flags&SwapchainCreateProtected != 0 {
		flags |= ImageCreateProtected
	}
	if info.Flags&SwapchainCreateMutableFormat != 0 {
		flags |= ImageCreateMutableFormat
	}
	if info.Flags&SwapchainCreateSplitInstanceBindRegions != 0 {
		flags |= ImageCreateSplitInstanceBindRegions
	}
	return flags
}

func memoryPropertyFlags(info *SwapchainCreateInfo) uint32 {
	if info.Flags&SwapchainCreateProtected != 0 {
		return MemoryPropertyProtected
	}
	return 0
}

func (rs *RemoteSwapchain) initImage(phys PhysicalDevice, info *SwapchainCreateInfo, img *remoteImage) error {
	img.format = info.ImageFormat
	img.width = info.ImageExtent.Width
	img.height = info.ImageExtent.Height
	for i := range img.buffer.FDs {
		img.buffer.FDs[i] = -1
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()

	external := &ExternalMemoryImageCreateInfo{
		SType:       StructureTypeExternalMemoryImageCreateInfo,
		HandleTypes: ExternalMemoryHandleTypeDmaBuf,
	}
	pinner.Pin(external)
	// Without VK_EXT_image_drm_format_modifier the layout of optimal tiling
	// cannot be queried, linear is the only layout another process can
	// import: DRM_FORMAT_MOD_LINEAR with a single plane.
	create := &ImageCreateInfo{
		SType:         StructureTypeImageCreateInfo,
		Next:          unsafe.Pointer(external),
		Flags:         imageCreateFlags(info),
		ImageType:     ImageType2D,
		Format:        info.ImageFormat,
		Extent:        Extent3D{info.ImageExtent.Width, info.ImageExtent.Height, 1},
		MipLevels:     1,
		ArrayLayers:   info.ImageArrayLayers,
		Samples:       SampleCount1,
		Tiling:        ImageTilingLinear,
		Usage:         info.ImageUsage,
		SharingMode:   info.ImageSharingMode,
		InitialLayout: ImageLayoutUndefined,
	}
	if res := rs.funcs.CreateImage(rs.device, create, nil, &img.image); res != Success {
		return errors.Wrap(res, "vkCreateImage failed")
	}

	var reqs MemoryRequirements
	var props PhysicalDeviceMemoryProperties
	rs.funcs.GetImageMemoryRequirements(rs.device, img.image, &reqs)
	rs.funcs.GetPhysicalDeviceMemoryProperties(phys, &props)
	flags := memoryPropertyFlags(info)
	typeIndex := -1
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		if reqs.MemoryTypeBits&(1<<i) != 0 && props.MemoryTypes[i].PropertyFlags&flags == flags {
			typeIndex = int(i)
		}
	}
	if typeIndex < 0 {
		return errors.New("no suitable memory type")
	}
	export := &ExportMemoryAllocateInfo{
		SType:       StructureTypeExportMemoryAllocateInfo,
		HandleTypes: ExternalMemoryHandleTypeDmaBuf,
	}
	pinner.Pin(export)
	alloc := &MemoryAllocateInfo{
		SType:           StructureTypeMemoryAllocateInfo,
		Next:            unsafe.Pointer(export),
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(typeIndex),
	}
	if res := rs.funcs.AllocateMemory(rs.device, alloc, nil, &img.memory); res != Success {
		return errors.Wrap(res, "vkAllocateMemory failed")
	}
	if res := rs.funcs.BindImageMemory(rs.device, img.image, img.memory, 0); res != Success {
		return errors.Wrap(res, "vkBindImageMemory failed")
	}

	var fd int32 = -1
	getFD := &MemoryGetFdInfo{
		SType:      StructureTypeMemoryGetFdInfoKHR,
		Memory:     img.memory,
		HandleType: ExternalMemoryHandleTypeDmaBuf,
	}
	if res := rs.funcs.GetMemoryFdKHR(rs.device, getFD, &fd); res != Success {
		return errors.Wrap(res, "vkGetMemoryFdKHR failed")
	}
	img.buffer.FDs[0] = int(fd)
	img.buffer.Planes = 1
	img.buffer.Modifier = DRMFormatModLinear

	var layout SubresourceLayout
	rs.funcs.GetImageSubresourceLayout(rs.device, img.image, &ImageSubresource{AspectMask: ImageAspectColor}, &layout)
	img.buffer.Offsets[0] = uint32(layout.Offset)
	img.buffer.Strides[0] = uint32(layout.RowPitch)

	ignoreAlpha := info.CompositeAlpha&CompositeAlphaOpaque != 0
	img.buffer.Format = DRMFormat(img.format, ignoreAlpha)
	if img.buffer.Format == DRMFormatInvalid {
		return errors.Errorf("format %d has no dma-buf equivalent", img.format)
	}
	img.buffer.Width = int32(img.width)
	img.buffer.Height = int32(img.height)
	return nil
}

// Images implements vkGetSwapchainImagesKHR.
func (rs *RemoteSwapchain) Images(count *uint32, images []Image) Result {
	n := uint32(len(rs.images))
	if images == nil {
		*count = n
		return Success
	}
	res := Success
	if *count < n {
		res = Incomplete
	}
	if *count > n {
		*count = n
	}
	for i := uint32(0); i < *count && int(i) < len(images); i++ {
		images[i] = rs.images[i].image
	}
	return res
}

func (rs *RemoteSwapchain) freeImage() int {
	for i := range rs.images {
		if !rs.images[i].busy {
			return i
		}
	}
	return -1
}

// waitReleased waits up to timeout for the compositor to release one of
// the presented images and frees it.
func (rs *RemoteSwapchain) waitReleased(timeout time.Duration) error {
	if err := rs.proxy.DispatchEvents(); err != nil {
		return err
	}
	var (
		events  []*remote.Event
		indices []int
	)
	for i := range rs.images {
		if rs.images[i].released != nil {
			events = append(events, rs.images[i].released)
			indices = append(indices, i)
		}
	}
	if len(events) == 0 {
		time.Sleep(timeout)
		return nil
	}
	i, err := remote.WaitAny(events, timeout)
	if err != nil {
		return err
	}
	if i >= 0 {
		rs.images[indices[i]].release()
	}
	return nil
}

// Acquire implements vkAcquireNextImageKHR. The semaphore and fence get an
// already signalled payload, the image is ready once it is free.
func (rs *RemoteSwapchain) Acquire(timeout uint64, semaphore Semaphore, fence Fence) (uint32, Result) {
	start := rs.now()
	if rs.isLost() {
		return 0, ErrorSurfaceLostKHR
	}
	index := rs.freeImage()
	for index < 0 {
		if timeout == 0 {
			return 0, NotReady
		}
		if rs.isLost() {
			return 0, ErrorSurfaceLostKHR
		}
		if err := rs.waitReleased(waitSlice); err != nil {
			log.WithError(err).Error("waiting for remote buffer release failed")
			return 0, ErrorOutOfHostMemory
		}
		index = rs.freeImage()
		elapsed := ticker.Since(start, rs.now())
		if index < 0 && elapsed > reclaimTimeout {
			log.WithField("elapsed", elapsed).Debug("no remote buffer released, reclaiming image 0")
			index = 0
			rs.images[0].release()
		}
		if index < 0 && uint64(elapsed) > timeout/uint64(time.Millisecond) {
			return 0, Timeout
		}
	}

	// An fd of -1 imports a payload that has already signalled.
	if semaphore != 0 {
		info := &ImportSemaphoreFdInfo{
			SType:      StructureTypeImportSemaphoreFdInfoKHR,
			Semaphore:  semaphore,
			Flags:      SemaphoreImportTemporary,
			HandleType: ExternalSemaphoreHandleTypeSyncFd,
			Fd:         -1,
		}
		if res := rs.funcs.ImportSemaphoreFdKHR(rs.device, info); res != Success {
			log.WithField("result", res).Error("vkImportSemaphoreFdKHR failed")
			return 0, ErrorOutOfHostMemory
		}
	}
	if fence != 0 {
		info := &ImportFenceFdInfo{
			SType:      StructureTypeImportFenceFdInfoKHR,
			Fence:      fence,
			Flags:      FenceImportTemporary,
			HandleType: ExternalFenceHandleTypeSyncFd,
			Fd:         -1,
		}
		if res := rs.funcs.ImportFenceFdKHR(rs.device, info); res != Success {
			log.WithField("result", res).Error("vkImportFenceFdKHR failed")
			return 0, ErrorOutOfHostMemory
		}
	}
	rs.images[index].busy = true
	return uint32(index), Success
}

// waitThrottle blocks until the frame event of the previous commit fires,
// for at most throttleTimeout.
func (rs *RemoteSwapchain) waitThrottle() {
	start := rs.now()
	var elapsed uint32
	for elapsed < throttleTimeout && rs.throttle != nil {
		if err := rs.proxy.DispatchEvents(); err != nil {
			break
		}
		set, err := rs.throttle.Wait(waitSlice)
		if err != nil {
			break
		}
		if set {
			rs.throttle.Close()
			rs.throttle = nil
		}
		elapsed = ticker.Since(start, rs.now())
	}
	log.WithField("elapsed", elapsed).Trace("remote throttle done")
	if rs.throttle != nil {
		rs.throttle.Close()
		rs.throttle = nil
	}
}

// Present commits image index to the window owner. The image stays busy
// until the owner reports it released.
func (rs *RemoteSwapchain) Present(index uint32) error {
	if int(index) >= len(rs.images) {
		return errors.Errorf("image index %d out of range", index)
	}
	if rs.isLost() {
		return errors.New("window destroyed")
	}
	img := &rs.images[index]
	img.busy = true
	if rs.throttle != nil {
		rs.waitThrottle()
	}
	released, throttle, err := rs.proxy.Commit(img.buffer, rs.mode)
	if err != nil {
		img.release()
		return errors.Wrap(err, "remote commit failed")
	}
	if img.released != nil {
		img.released.Close()
	}
	img.released = released
	rs.throttle = throttle
	return nil
}

// Destroy closes the proxy and frees every image.
func (rs *RemoteSwapchain) Destroy() {
	if rs.proxy != nil {
		if err := rs.proxy.Close(); err != nil {
			log.WithError(err).Warn("closing remote proxy failed")
		}
		rs.proxy = nil
	}
	for i := range rs.images {
		img := &rs.images[i]
		if img.image != 0 {
			rs.funcs.DestroyImage(rs.device, img.image, nil)
		}
		if img.memory != 0 {
			rs.funcs.FreeMemory(rs.device, img.memory, nil)
		}
		img.release()
		for p := range img.buffer.FDs {
			closeFD(img.buffer.FDs[p])
			img.buffer.FDs[p] = -1
		}
	}
	if rs.throttle != nil {
		rs.throttle.Close()
		rs.throttle = nil
	}
}
