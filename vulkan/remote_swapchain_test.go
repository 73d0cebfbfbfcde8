package vulkan

import (
	"testing"

	"github.com/kichirouhoshino/wine-wayland/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRemoteSwapchain(t *testing.T, mode PresentMode) (*RemoteSwapchain, *fakeVK, *fakeProxy) {
	t.Helper()
	vk := newFakeVK()
	proxy := &fakeProxy{}
	info := &SwapchainCreateInfo{
		MinImageCount:    2,
		ImageFormat:      FormatB8G8R8A8Unorm,
		ImageExtent:      Extent2D{Width: 64, Height: 32},
		ImageArrayLayers: 1,
		CompositeAlpha:   CompositeAlphaOpaque,
		PresentMode:      mode,
	}
	rs, err := NewRemoteSwapchain(vk.deviceFuncs(), 1, 2, proxy, info)
	require.NoError(t, err)
	t.Cleanup(rs.Destroy)
	return rs, vk, proxy
}

// steppingClock advances by step milliseconds on every read.
func steppingClock(step uint32) func() uint32 {
	var now uint32
	return func() uint32 {
		now += step
		return now
	}
}

func TestRemoteSwapchainImages(t *testing.T) {
	rs, vk, _ := newTestRemoteSwapchain(t, PresentModeMailbox)
	assert.Equal(t, remote.CommitNormal, rs.mode)

	var count uint32
	assert.Equal(t, Success, rs.Images(&count, nil))
	assert.EqualValues(t, minRemoteImages, count)
	assert.Len(t, vk.images, minRemoteImages)
	assert.Len(t, vk.memory, minRemoteImages)

	images := make([]Image, 2)
	count = 2
	assert.Equal(t, Incomplete, rs.Images(&count, images))
	assert.Equal(t, rs.images[0].image, images[0])
	assert.Equal(t, rs.images[1].image, images[1])

	buf := rs.images[0].buffer
	assert.Equal(t, DRMFormatXRGB8888, buf.Format)
	assert.EqualValues(t, 1, buf.Planes)
	assert.EqualValues(t, 256, buf.Strides[0])
	assert.EqualValues(t, 64, buf.Width)
	assert.EqualValues(t, 32, buf.Height)
}

func TestRemoteSwapchainFIFOThrottles(t *testing.T) {
	rs, _, _ := newTestRemoteSwapchain(t, PresentModeFIFO)
	assert.Equal(t, remote.CommitThrottled, rs.mode)
}

func TestRemoteSwapchainDestroy(t *testing.T) {
	vk := newFakeVK()
	proxy := &fakeProxy{}
	info := &SwapchainCreateInfo{
		MinImageCount: 6,
		ImageFormat:   FormatR8G8B8A8Srgb,
		ImageExtent:   Extent2D{Width: 8, Height: 8},
	}
	rs, err := NewRemoteSwapchain(vk.deviceFuncs(), 1, 2, proxy, info)
	require.NoError(t, err)
	assert.Len(t, rs.images, 6)

	rs.Destroy()
	assert.True(t, proxy.closed)
	assert.Empty(t, vk.images)
	assert.Empty(t, vk.memory)
}

func TestRemoteSwapchainRejectsFormat(t *testing.T) {
	vk := newFakeVK()
	proxy := &fakeProxy{}
	info := &SwapchainCreateInfo{ImageFormat: 64, ImageExtent: Extent2D{Width: 8, Height: 8}}
	_, err := NewRemoteSwapchain(vk.deviceFuncs(), 1, 2, proxy, info)
	assert.Error(t, err)
	assert.True(t, proxy.closed)
	assert.Empty(t, vk.images)
}

func TestRemoteAcquire(t *testing.T) {
	rs, vk, _ := newTestRemoteSwapchain(t, PresentModeMailbox)

	for want := uint32(0); want < minRemoteImages; want++ {
		index, res := rs.Acquire(^uint64(0), 7, 9)
		require.Equal(t, Success, res)
		assert.Equal(t, want, index)
	}
	assert.Equal(t, 2*minRemoteImages, vk.imported)

	_, res := rs.Acquire(0, 0, 0)
	assert.Equal(t, NotReady, res)
}

func TestRemoteAcquireAfterRelease(t *testing.T) {
	rs, _, proxy := newTestRemoteSwapchain(t, PresentModeMailbox)
	for range rs.images {
		_, res := rs.Acquire(^uint64(0), 0, 0)
		require.Equal(t, Success, res)
	}

	require.NoError(t, rs.Present(2))
	require.Len(t, proxy.commits, 1)
	assert.Equal(t, rs.images[2].buffer, proxy.commits[0].buf)
	require.NoError(t, proxy.released[0].Set())

	index, res := rs.Acquire(^uint64(0), 0, 0)
	require.Equal(t, Success, res)
	assert.EqualValues(t, 2, index)
}

func TestRemoteAcquireReclaims(t *testing.T) {
	rs, _, _ := newTestRemoteSwapchain(t, PresentModeMailbox)
	for range rs.images {
		_, res := rs.Acquire(^uint64(0), 0, 0)
		require.Equal(t, Success, res)
	}

	rs.now = steppingClock(40)
	index, res := rs.Acquire(^uint64(0), 0, 0)
	require.Equal(t, Success, res)
	assert.EqualValues(t, 0, index)
	assert.True(t, rs.images[0].busy)
}

func TestRemoteAcquireTimeout(t *testing.T) {
	rs, _, _ := newTestRemoteSwapchain(t, PresentModeMailbox)
	for range rs.images {
		_, res := rs.Acquire(^uint64(0), 0, 0)
		require.Equal(t, Success, res)
	}

	rs.now = steppingClock(30)
	_, res := rs.Acquire(20_000_000, 0, 0)
	assert.Equal(t, Timeout, res)
}

func TestRemotePresentFailureFreesImage(t *testing.T) {
	rs, _, proxy := newTestRemoteSwapchain(t, PresentModeMailbox)
	for range rs.images {
		_, res := rs.Acquire(^uint64(0), 0, 0)
		require.Equal(t, Success, res)
	}

	proxy.fail = true
	assert.Error(t, rs.Present(1))
	assert.False(t, rs.images[1].busy)
	assert.Equal(t, 1, rs.freeImage())

	assert.Error(t, rs.Present(uint32(len(rs.images))))
}

func TestRemoteAcquireWindowLost(t *testing.T) {
	rs, _, proxy := newTestRemoteSwapchain(t, PresentModeMailbox)
	for range rs.images {
		_, res := rs.Acquire(^uint64(0), 0, 0)
		require.Equal(t, Success, res)
	}

	checks := 0
	rs.lost = func() bool {
		checks++
		return checks > 2
	}
	rs.now = steppingClock(1)
	_, res := rs.Acquire(^uint64(0), 0, 0)
	assert.Equal(t, ErrorSurfaceLostKHR, res)
	assert.Equal(t, 3, checks)
	for i := range rs.images {
		assert.True(t, rs.images[i].busy, "image %d reclaimed", i)
	}

	assert.Error(t, rs.Present(0))
	assert.Empty(t, proxy.commits)
}
