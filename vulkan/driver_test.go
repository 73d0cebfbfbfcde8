package vulkan

import (
	"runtime"
	"testing"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDriver struct {
	*Driver
	vk      *fakeVK
	windows *fakeWindows
	display *fakeNative
	proxy   *fakeProxy
	dialed  []w32.HWND
}

// newTestDriver builds a driver whose native display reaches the window
// surfaces.
func newTestDriver(t *testing.T, remote bool) *testDriver {
	t.Helper()
	display := &fakeNative{}
	return newTestDriverNative(t, remote, display, fakeSharedNative{display})
}

// newTestDriverNative builds a driver on native, which wraps display.
func newTestDriverNative(t *testing.T, remote bool, display *fakeNative, native NativeDisplay) *testDriver {
	t.Helper()
	td := &testDriver{
		vk:      newFakeVK(),
		windows: newFakeWindows(),
		display: display,
		proxy:   &fakeProxy{},
	}
	td.Driver = NewDriver(td.vk.host(), Options{
		Windows: td.windows,
		Native:  native,
		Remote:  remote,
		Dial: func(hwnd w32.HWND) (Proxy, error) {
			td.dialed = append(td.dialed, hwnd)
			return td.proxy, nil
		},
	})
	t.Cleanup(func() { td.Close() })
	return td
}

func (td *testDriver) instance(t *testing.T, names ...string) Instance {
	t.Helper()
	var pinner runtime.Pinner
	defer pinner.Unpin()
	info := &InstanceCreateInfo{SType: StructureTypeInstanceCreateInfo}
	info.EnabledExtensionNames, info.EnabledExtensionCount = CStrings(&pinner, names)
	var instance Instance
	require.Equal(t, Success, td.CreateInstance(info, nil, &instance))
	return instance
}

func (td *testDriver) device(t *testing.T) Device {
	t.Helper()
	var pinner runtime.Pinner
	defer pinner.Unpin()
	info := &DeviceCreateInfo{SType: StructureTypeDeviceCreateInfo}
	info.EnabledExtensionNames, info.EnabledExtensionCount = CStrings(&pinner, []string{KHRSwapchainExtensionName})
	var dev Device
	require.Equal(t, Success, td.CreateDevice(1, info, nil, &dev))
	return dev
}

func (td *testDriver) surface(t *testing.T, instance Instance, hwnd w32.HWND) SurfaceKHR {
	t.Helper()
	var s SurfaceKHR
	info := &Win32SurfaceCreateInfo{SType: StructureTypeWin32SurfaceCreateInfoKHR, Hwnd: uintptr(hwnd)}
	require.Equal(t, Success, td.CreateWin32SurfaceKHR(instance, info, nil, &s))
	return s
}

func swapchainInfo(surface SurfaceKHR, width, height uint32) *SwapchainCreateInfo {
	return &SwapchainCreateInfo{
		SType:            StructureTypeSwapchainCreateInfoKHR,
		Surface:          surface,
		MinImageCount:    2,
		ImageFormat:      FormatB8G8R8A8Unorm,
		ImageExtent:      Extent2D{Width: width, Height: height},
		ImageArrayLayers: 1,
		PresentMode:      PresentModeMailbox,
	}
}

func TestInstanceExtensionNames(t *testing.T) {
	assert.Nil(t, instanceExtensionNames(nil, true))

	names := instanceExtensionNames([]string{KHRSurfaceExtensionName, KHRWin32SurfaceExtensionName}, false)
	assert.Equal(t, []string{KHRSurfaceExtensionName, KHRWaylandSurfaceExtensionName}, names)

	names = instanceExtensionNames([]string{KHRWin32SurfaceExtensionName, "VK_KHR_get_physical_device_properties2"}, true)
	assert.Equal(t, []string{
		KHRWaylandSurfaceExtensionName,
		"VK_KHR_get_physical_device_properties2",
		"VK_KHR_external_fence_capabilities",
		"VK_KHR_external_memory_capabilities",
		"VK_KHR_external_semaphore_capabilities",
	}, names)
}

func TestCreateInstance(t *testing.T) {
	td := newTestDriver(t, true)
	td.instance(t, KHRSurfaceExtensionName, KHRWin32SurfaceExtensionName)
	assert.Subset(t, td.vk.enabled, instanceExtensionsRemote)
	assert.Contains(t, td.vk.enabled, KHRWaylandSurfaceExtensionName)
	assert.NotContains(t, td.vk.enabled, KHRWin32SurfaceExtensionName)
}

func TestCreateInstanceWithoutRemoteSupport(t *testing.T) {
	td := newTestDriver(t, true)
	td.vk.instanceExts = []string{KHRSurfaceExtensionName, KHRWaylandSurfaceExtensionName}
	td.instance(t, KHRSurfaceExtensionName, KHRWin32SurfaceExtensionName)
	assert.Equal(t, []string{KHRSurfaceExtensionName, KHRWaylandSurfaceExtensionName}, td.vk.enabled)
}

func TestEnumerateInstanceExtensionProperties(t *testing.T) {
	td := newTestDriver(t, false)

	var count uint32
	require.Equal(t, Success, td.EnumerateInstanceExtensionProperties(nil, &count, nil))
	props := make([]ExtensionProperties, count)
	require.Equal(t, Success, td.EnumerateInstanceExtensionProperties(nil, &count, &props[0]))
	assert.Equal(t, KHRWin32SurfaceExtensionName, props[1].Name())
	assert.EqualValues(t, KHRWin32SurfaceSpecVersion, props[1].SpecVersion)

	layer := []byte("VK_LAYER_KHRONOS_validation\x00")
	assert.Equal(t, ErrorLayerNotPresent, td.EnumerateInstanceExtensionProperties(&layer[0], &count, nil))
}

func TestCreateDevice(t *testing.T) {
	td := newTestDriver(t, true)
	dev := td.device(t)
	assert.True(t, td.reg.device(dev).remote)
	assert.Subset(t, td.vk.devEnabled, deviceExtensionsRemote)

	td.vk.deviceExts = []string{KHRSwapchainExtensionName}
	dev = td.device(t)
	assert.False(t, td.reg.device(dev).remote)
	assert.Equal(t, []string{KHRSwapchainExtensionName}, td.vk.devEnabled)

	td.DestroyDevice(dev, nil)
	assert.Nil(t, td.reg.device(dev))
	td.DestroyDevice(dev, nil)
}

func TestLocalSurface(t *testing.T) {
	td := newTestDriver(t, false)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	hwnd, win := td.windows.local(640, 480)

	s := td.surface(t, instance, hwnd)
	assert.Equal(t, 1, win.refs)
	assert.Equal(t, 1, win.glvkRefs)
	created := td.vk.surfaces[s]
	assert.EqualValues(t, 0xd15, created.Display)
	assert.EqualValues(t, hwnd, created.Surface)

	td.DestroySurfaceKHR(instance, s, nil)
	assert.Zero(t, win.refs)
	assert.Zero(t, win.glvkRefs)
	assert.Empty(t, td.vk.surfaces)

	td.DestroySurfaceKHR(instance, s, nil)
}

func TestSurfaceWithoutNative(t *testing.T) {
	td := newTestDriver(t, false)
	td.native = nil
	hwnd, win := td.windows.local(640, 480)

	var s SurfaceKHR
	res := td.CreateWin32SurfaceKHR(1, &Win32SurfaceCreateInfo{Hwnd: uintptr(hwnd)}, nil, &s)
	assert.Equal(t, ErrorOutOfHostMemory, res)
	assert.Zero(t, win.refs)
	assert.Zero(t, win.glvkRefs)
	assert.True(t, td.GetPhysicalDeviceWin32PresentationSupportKHR(1, 0))
}

func TestRemoteSurface(t *testing.T) {
	td := newTestDriver(t, true)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	hwnd := td.windows.foreign(320, 200)

	s := td.surface(t, instance, hwnd)
	require.Len(t, td.display.surfaces, 1)
	assert.True(t, td.reg.surface(s).remote())
	assert.EqualValues(t, 0xd00, td.vk.surfaces[s].Surface)

	td.DestroySurfaceKHR(instance, s, nil)
	assert.True(t, td.display.surfaces[0].destroyed)
}

func TestRemoteSurfaceDisabled(t *testing.T) {
	td := newTestDriver(t, false)
	hwnd := td.windows.foreign(320, 200)

	var s SurfaceKHR
	res := td.CreateWin32SurfaceKHR(1, &Win32SurfaceCreateInfo{Hwnd: uintptr(hwnd)}, nil, &s)
	assert.Equal(t, ErrorOutOfHostMemory, res)
	assert.Empty(t, td.display.surfaces)
}

func TestLocalSwapchain(t *testing.T) {
	td := newTestDriver(t, false)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	dev := td.device(t)
	hwnd, win := td.windows.local(640, 480)
	s := td.surface(t, instance, hwnd)

	var sc SwapchainKHR
	require.Equal(t, Success, td.CreateSwapchainKHR(dev, swapchainInfo(s, 0, 0), nil, &sc))
	assert.Equal(t, Extent2D{Width: 1, Height: 1}, td.vk.swapchains[sc].ImageExtent)
	assert.Equal(t, 2, win.refs)
	assert.Equal(t, 2, win.glvkRefs)

	var count uint32
	assert.Equal(t, Success, td.GetSwapchainImagesKHR(dev, sc, &count, nil))
	assert.EqualValues(t, 2, count)
	var index uint32
	assert.Equal(t, Success, td.AcquireNextImageKHR(dev, sc, 0, 0, 0, &index))
	assert.EqualValues(t, 1, index)

	td.DestroySwapchainKHR(dev, sc, nil)
	assert.Equal(t, 1, win.refs)
	assert.Equal(t, 1, win.glvkRefs)
	assert.Empty(t, td.vk.swapchains)
}

func TestSwapchainErrors(t *testing.T) {
	td := newTestDriver(t, false)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	dev := td.device(t)
	hwnd, _ := td.windows.local(640, 480)
	s := td.surface(t, instance, hwnd)

	var sc SwapchainKHR
	assert.Equal(t, ErrorDeviceLost, td.CreateSwapchainKHR(dev+100, swapchainInfo(s, 640, 480), nil, &sc))
	assert.Equal(t, ErrorSurfaceLostKHR, td.CreateSwapchainKHR(dev, swapchainInfo(s+100, 640, 480), nil, &sc))

	td.InvalidateWindow(hwnd)
	assert.Equal(t, ErrorSurfaceLostKHR, td.CreateSwapchainKHR(dev, swapchainInfo(s, 640, 480), nil, &sc))
	assert.Empty(t, td.vk.swapchains)
}

func TestRemoteSwapchainNeedsRemoteDevice(t *testing.T) {
	td := newTestDriver(t, true)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	td.vk.deviceExts = []string{KHRSwapchainExtensionName}
	dev := td.device(t)
	s := td.surface(t, instance, td.windows.foreign(320, 200))

	sc := SwapchainKHR(42)
	assert.Equal(t, ErrorOutOfHostMemory, td.CreateSwapchainKHR(dev, swapchainInfo(s, 320, 200), nil, &sc))
	assert.Zero(t, sc)
	assert.Empty(t, td.vk.swapchains)
	assert.Empty(t, td.dialed)
}

func TestRemoteSwapchainLifecycle(t *testing.T) {
	td := newTestDriver(t, true)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	dev := td.device(t)
	hwnd := td.windows.foreign(320, 200)
	s := td.surface(t, instance, hwnd)

	var sc SwapchainKHR
	require.Equal(t, Success, td.CreateSwapchainKHR(dev, swapchainInfo(s, 320, 200), nil, &sc))
	assert.Equal(t, []w32.HWND{hwnd}, td.dialed)

	var count uint32
	require.Equal(t, Success, td.GetSwapchainImagesKHR(dev, sc, &count, nil))
	assert.EqualValues(t, minRemoteImages, count)
	images := make([]Image, count)
	require.Equal(t, Success, td.GetSwapchainImagesKHR(dev, sc, &count, &images[0]))
	assert.Len(t, td.vk.images, minRemoteImages)

	var index uint32
	require.Equal(t, Success, td.AcquireNextImageKHR(dev, sc, ^uint64(0), 3, 0, &index))
	assert.Zero(t, index)

	td.DestroySwapchainKHR(dev, sc, nil)
	assert.True(t, td.proxy.closed)
	assert.Empty(t, td.vk.images)
	assert.Empty(t, td.vk.swapchains)
}

func TestOptionalHostFunctions(t *testing.T) {
	td := newTestDriver(t, false)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	hwnd, _ := td.windows.local(640, 480)
	s := td.surface(t, instance, hwnd)

	var modes, count uint32
	assert.Equal(t, ErrorExtensionNotPresent, td.GetDeviceGroupSurfacePresentModesKHR(1, s, &modes))
	assert.Equal(t, ErrorExtensionNotPresent, td.GetPhysicalDevicePresentRectanglesKHR(1, s, &count, nil))

	td.host.GetDeviceGroupSurfacePresentModesKHR = func(_ Device, _ SurfaceKHR, modes *uint32) Result {
		*modes = DeviceGroupPresentModeLocal
		return Success
	}
	assert.Equal(t, Success, td.GetDeviceGroupSurfacePresentModesKHR(1, s, &modes))
	assert.Equal(t, DeviceGroupPresentModeLocal, modes)
	assert.Equal(t, ErrorSurfaceLostKHR, td.GetDeviceGroupSurfacePresentModesKHR(1, s+1, &modes))
	assert.Equal(t, s, td.GetNativeSurface(s))
}

func TestGetDriver(t *testing.T) {
	_, err := GetDriver(DriverVersion + 1)
	assert.ErrorIs(t, err, ErrUnavailable)

	loads := 0
	td := newTestDriver(t, false)
	SetLoader(func() (*Driver, error) {
		loads++
		return td.Driver, nil
	})
	d, err := GetDriver(DriverVersion)
	require.NoError(t, err)
	assert.Same(t, td.Driver, d)
	d, err = GetDriver(DriverVersion)
	require.NoError(t, err)
	assert.Same(t, td.Driver, d)
	assert.Equal(t, 1, loads)

	SetLoader(func() (*Driver, error) { return nil, errors.New("libvulkan.so.1 not found") })
	_, err = GetDriver(DriverVersion)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSurfacesOnOwnNativeDisplay(t *testing.T) {
	display := &fakeNative{}
	td := newTestDriverNative(t, true, display, display)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	dev := td.device(t)

	foreign := td.windows.foreign(320, 200)
	s := td.surface(t, instance, foreign)
	assert.True(t, td.reg.surface(s).remote())
	assert.EqualValues(t, 0xd15, td.vk.surfaces[s].Display)

	hwnd, win := td.windows.local(640, 480)
	local := td.surface(t, instance, hwnd)
	assert.True(t, td.reg.surface(local).remote())
	assert.Zero(t, win.refs)
	assert.Zero(t, win.glvkRefs)
	require.Len(t, display.surfaces, 2)
	assert.EqualValues(t, display.surfaces[1].handle, td.vk.surfaces[local].Surface)

	var sc SwapchainKHR
	require.Equal(t, Success, td.CreateSwapchainKHR(dev, swapchainInfo(local, 640, 480), nil, &sc))
	assert.Equal(t, []w32.HWND{hwnd}, td.dialed)

	display.fail = true
	var lost SurfaceKHR
	res := td.CreateWin32SurfaceKHR(instance, &Win32SurfaceCreateInfo{Hwnd: uintptr(foreign)}, nil, &lost)
	assert.Equal(t, ErrorOutOfHostMemory, res)
}

func TestLocalWindowNeedsRemoteWithoutSharedDisplay(t *testing.T) {
	display := &fakeNative{}
	td := newTestDriverNative(t, false, display, display)
	hwnd, win := td.windows.local(640, 480)

	var s SurfaceKHR
	res := td.CreateWin32SurfaceKHR(1, &Win32SurfaceCreateInfo{Hwnd: uintptr(hwnd)}, nil, &s)
	assert.Equal(t, ErrorOutOfHostMemory, res)
	assert.Zero(t, win.refs)
	assert.Empty(t, display.surfaces)
}

func TestSwapchainLostWithWindow(t *testing.T) {
	td := newTestDriver(t, true)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	dev := td.device(t)
	hwnd := td.windows.foreign(320, 200)
	s := td.surface(t, instance, hwnd)
	var sc SwapchainKHR
	require.Equal(t, Success, td.CreateSwapchainKHR(dev, swapchainInfo(s, 320, 200), nil, &sc))

	td.InvalidateWindow(hwnd)
	var count, index uint32
	assert.Equal(t, ErrorSurfaceLostKHR, td.GetSwapchainImagesKHR(dev, sc, &count, nil))
	assert.Equal(t, ErrorSurfaceLostKHR, td.AcquireNextImageKHR(dev, sc, ^uint64(0), 0, 0, &index))
}
