package vulkan

import (
	"testing"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/w32/types/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceCapabilitiesFollowClientArea(t *testing.T) {
	td := newTestDriver(t, false)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	hwnd, win := td.windows.local(640, 480)
	s := td.surface(t, instance, hwnd)

	var caps SurfaceCapabilities
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceCapabilitiesKHR(1, s, &caps))
	want := Extent2D{Width: 640, Height: 480}
	assert.Equal(t, want, caps.CurrentExtent)
	assert.Equal(t, want, caps.MinImageExtent)
	assert.Equal(t, want, caps.MaxImageExtent)
	assert.EqualValues(t, 2, caps.MinImageCount)

	win.drawing = false
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceCapabilitiesKHR(1, s, &caps))
	assert.Zero(t, caps.CurrentExtent)
	assert.Zero(t, caps.MaxImageExtent)

	win.drawing = true
	require.NoError(t, td.windows.desktop.SetStyle(hwnd, ws.OverlappedWindow|ws.Minimize))
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceCapabilitiesKHR(1, s, &caps))
	assert.Zero(t, caps.CurrentExtent)

	td.InvalidateWindow(hwnd)
	assert.Equal(t, ErrorSurfaceLostKHR, td.GetPhysicalDeviceSurfaceCapabilitiesKHR(1, s, &caps))
}

func TestSurfaceCapabilities2Emulated(t *testing.T) {
	td := newTestDriver(t, true)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	hwnd := td.windows.foreign(320, 200)
	s := td.surface(t, instance, hwnd)

	info := &PhysicalDeviceSurfaceInfo2{SType: StructureTypePhysicalDeviceSurfaceInfo2KHR, Surface: s}
	caps := &SurfaceCapabilities2{SType: StructureTypeSurfaceCapabilities2KHR}
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceCapabilities2KHR(1, info, caps))
	assert.Equal(t, Extent2D{Width: 320, Height: 200}, caps.SurfaceCapabilities.CurrentExtent)
	assert.EqualValues(t, 8, caps.SurfaceCapabilities.MaxImageCount)

	require.NoError(t, td.windows.desktop.SetWindowPos(hwnd, w32.NewRect(0, 0, 800, 600), w32.NewRect(0, 0, 800, 600)))
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceCapabilities2KHR(1, info, caps))
	assert.Equal(t, Extent2D{Width: 800, Height: 600}, caps.SurfaceCapabilities.CurrentExtent)
}

func TestSurfaceFormatsLocal(t *testing.T) {
	td := newTestDriver(t, false)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	hwnd, _ := td.windows.local(640, 480)
	s := td.surface(t, instance, hwnd)

	var count uint32
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceFormatsKHR(1, s, &count, nil))
	assert.EqualValues(t, 3, count)
}

func TestSurfaceFormatsRemote(t *testing.T) {
	td := newTestDriver(t, true)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	s := td.surface(t, instance, td.windows.foreign(320, 200))

	var count uint32
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceFormatsKHR(1, s, &count, nil))
	assert.EqualValues(t, 2, count)

	formats := make([]SurfaceFormat, count)
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceFormatsKHR(1, s, &count, &formats[0]))
	assert.Equal(t, []SurfaceFormat{{Format: FormatB8G8R8A8Srgb}, {Format: FormatR8G8B8A8Unorm}}, formats)

	count = 1
	assert.Equal(t, Incomplete, td.GetPhysicalDeviceSurfaceFormatsKHR(1, s, &count, &formats[0]))

	td.vk.formats = []SurfaceFormat{{Format: 64}}
	assert.Equal(t, ErrorOutOfHostMemory, td.GetPhysicalDeviceSurfaceFormatsKHR(1, s, &count, nil))
}

func TestSurfaceFormats2Emulated(t *testing.T) {
	td := newTestDriver(t, true)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	s := td.surface(t, instance, td.windows.foreign(320, 200))
	info := &PhysicalDeviceSurfaceInfo2{SType: StructureTypePhysicalDeviceSurfaceInfo2KHR, Surface: s}

	var count uint32
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceFormats2KHR(1, info, &count, nil))
	assert.EqualValues(t, 2, count)

	formats := make([]SurfaceFormat2, 3)
	count = 3
	for i := range formats {
		formats[i].SType = StructureTypeSurfaceFormat2KHR
	}
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceFormats2KHR(1, info, &count, &formats[0]))
	assert.EqualValues(t, 2, count)
	assert.Equal(t, FormatB8G8R8A8Srgb, formats[0].SurfaceFormat.Format)
	assert.Equal(t, FormatR8G8B8A8Unorm, formats[1].SurfaceFormat.Format)
	assert.Equal(t, StructureTypeSurfaceFormat2KHR, formats[1].SType)
}

func TestSurfaceQueriesOnLostSurface(t *testing.T) {
	td := newTestDriver(t, false)
	instance := td.instance(t, KHRWin32SurfaceExtensionName)
	hwnd, _ := td.windows.local(640, 480)
	s := td.surface(t, instance, hwnd)

	var supported, count uint32
	require.Equal(t, Success, td.GetPhysicalDeviceSurfaceSupportKHR(1, 0, s, &supported))
	assert.EqualValues(t, 1, supported)
	require.Equal(t, Success, td.GetPhysicalDeviceSurfacePresentModesKHR(1, s, &count, nil))
	assert.EqualValues(t, 1, count)

	td.InvalidateWindow(hwnd)
	assert.Equal(t, ErrorSurfaceLostKHR, td.GetPhysicalDeviceSurfaceSupportKHR(1, 0, s, &supported))
	assert.Equal(t, ErrorSurfaceLostKHR, td.GetPhysicalDeviceSurfacePresentModesKHR(1, s, &count, nil))
	assert.Equal(t, ErrorSurfaceLostKHR, td.GetPhysicalDeviceSurfaceFormatsKHR(1, s, &count, nil))
}
