package vulkan

import (
	"cmp"
	"slices"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// waitSemaphores blocks until every semaphore signalled, by polling the
// sync file exported for each of them.
func waitSemaphores(funcs *DeviceFuncs, dev Device, semaphores []Semaphore) error {
	info := &SemaphoreGetFdInfo{
		SType:      StructureTypeSemaphoreGetFdInfoKHR,
		HandleType: ExternalSemaphoreHandleTypeSyncFd,
	}
	for _, sem := range semaphores {
		info.Semaphore = sem
		var fd int32 = -1
		if res := funcs.GetSemaphoreFdKHR(dev, info, &fd); res != Success {
			return errors.Wrap(res, "vkGetSemaphoreFdKHR failed")
		}
		if fd < 0 {
			return errors.New("invalid semaphore fd")
		}
		err := pollReadable(int(fd))
		unix.Close(int(fd))
		if err != nil {
			return err
		}
	}
	return nil
}

func pollReadable(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "poll failed")
		}
		break
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return errors.Errorf("poll on semaphore fd failed (revents %#x)", fds[0].Revents)
	}
	return nil
}

func closeFD(fd int) {
	if fd >= 0 {
		unix.Close(fd)
	}
}

// validatePresent checks every swapchain of a present. A lost surface wins
// over an out of date one; on failure every result is set to it.
func (d *Driver) validatePresent(info *PresentInfo, swapchains []*swapchain) Result {
	res := Success
	for i, sc := range swapchains {
		drawing := false
		if sc != nil {
			// The owner of a remote window does not commit while drawing
			// is not allowed, so it is assumed here.
			drawing = sc.isRemote() || (sc.window != nil && sc.window.DrawingAllowed())
		}
		var client w32.Rect
		ok := false
		if sc != nil && sc.valid.Load() {
			client, ok = d.ws.ClientRect(sc.hwnd)
		}
		switch {
		case !ok:
			res = ErrorSurfaceLostKHR
		case uint32(client.Width()) != sc.extent.Width || uint32(client.Height()) != sc.extent.Height || !drawing:
			if res == Success {
				res = ErrorOutOfDateKHR
			}
		}
		// Vulkan content sits on a subsurface, which is only visible while
		// its parent is mapped.
		if drawing && !sc.isRemote() {
			sc.window.EnsureMapped()
		}
		if sc != nil {
			log.WithFields(logrus.Fields{
				"index":   i,
				"hwnd":    sc.hwnd,
				"width":   sc.extent.Width,
				"height":  sc.extent.Height,
				"remote":  sc.isRemote(),
				"drawing": drawing,
			}).Trace("validating present")
		}
	}
	if res != Success && info.Results != nil {
		results := slice(info.Results, info.SwapchainCount)
		for i := range results {
			results[i] = res
		}
	}
	return res
}

// lockWindows takes the commit locks of the local windows presented to, in
// swapchain handle order so that concurrent presents agree on it.
func lockWindows(swapchains []*swapchain) (unlock func()) {
	local := make([]*swapchain, 0, len(swapchains))
	for _, sc := range swapchains {
		if sc != nil && sc.window != nil {
			local = append(local, sc)
		}
	}
	slices.SortFunc(local, func(a, b *swapchain) int { return cmp.Compare(a.handle, b.handle) })
	var windows []WindowSurface
	for _, sc := range local {
		if slices.Contains(windows, sc.window) {
			continue
		}
		sc.window.LockCommits()
		windows = append(windows, sc.window)
	}
	return func() {
		for i := len(windows) - 1; i >= 0; i-- {
			windows[i].UnlockCommits()
		}
	}
}

// QueuePresentKHR presents local swapchains through the host. Remote ones
// wait for the semaphores here and commit their image to the window owner.
func (d *Driver) QueuePresentKHR(queue Queue, info *PresentInfo) Result {
	if info.SwapchainCount == 0 || info.Swapchains == nil {
		log.Error("present without swapchains")
		return ErrorOutOfHostMemory
	}
	handles := slice(info.Swapchains, info.SwapchainCount)
	swapchains := make([]*swapchain, len(handles))
	for i, h := range handles {
		swapchains[i] = d.reg.swapchain(h)
	}
	unlock := lockWindows(swapchains)
	defer unlock()
	if res := d.validatePresent(info, swapchains); res != Success {
		return res
	}
	if !swapchains[0].isRemote() {
		return d.host.QueuePresentKHR(queue, info)
	}

	first := swapchains[0]
	if err := waitSemaphores(first.funcs, first.device.handle, slice(info.WaitSemaphores, info.WaitSemaphoreCount)); err != nil {
		log.WithError(err).Error("unable to wait for present semaphores")
		return ErrorOutOfHostMemory
	}
	indices := slice(info.ImageIndices, info.SwapchainCount)
	var results []Result
	if info.Results != nil {
		results = slice(info.Results, info.SwapchainCount)
	}
	ret := Success
	for i, sc := range swapchains {
		res := Success
		var err error
		switch {
		case !sc.valid.Load():
			// window destroyed after validation
			res = ErrorSurfaceLostKHR
		case sc.isRemote():
			err = sc.remote.Present(indices[i])
		default:
			err = errors.New("local swapchain in a remote present")
		}
		if err != nil {
			log.WithError(err).WithField("hwnd", sc.hwnd).Error("remote present failed")
			res = ErrorOutOfHostMemory
		}
		if results != nil {
			results[i] = res
		}
		if res == ErrorSurfaceLostKHR || (res != Success && ret == Success) {
			ret = res
		}
	}
	return ret
}
