package vulkan

import (
	"github.com/kichirouhoshino/wine-wayland/w32/types/ws"
	"github.com/sirupsen/logrus"
)

// setImageExtent makes the extents follow the window's client area, the
// way guest applications expect. Hidden and minimized windows report a
// zero extent so that applications stop rendering.
func (d *Driver) setImageExtent(handle SurfaceKHR, caps *SurfaceCapabilities) {
	s := d.reg.surface(handle)
	if s == nil {
		return
	}
	// The owner of a remote window does not commit while drawing is not
	// allowed, so remote surfaces skip that check.
	zero := !s.remote() && s.window != nil && !s.window.DrawingAllowed()
	if d.ws.Style(s.hwnd).Has(ws.Minimize) {
		zero = true
	}
	var extent Extent2D
	if !zero {
		if client, ok := d.ws.ClientRect(s.hwnd); ok {
			extent = Extent2D{Width: uint32(client.Width()), Height: uint32(client.Height())}
		}
	}
	caps.MinImageExtent = extent
	caps.MaxImageExtent = extent
	caps.CurrentExtent = extent
	log.WithFields(logrus.Fields{"hwnd": s.hwnd, "width": extent.Width, "height": extent.Height}).Trace("surface extent")
}

func (d *Driver) GetPhysicalDeviceSurfaceCapabilitiesKHR(phys PhysicalDevice, surface SurfaceKHR, caps *SurfaceCapabilities) Result {
	if !d.reg.validSurface(surface) {
		return ErrorSurfaceLostKHR
	}
	res := d.host.GetPhysicalDeviceSurfaceCapabilitiesKHR(phys, surface, caps)
	if res == Success {
		d.setImageExtent(surface, caps)
	}
	return res
}

// GetPhysicalDeviceSurfaceCapabilities2KHR falls back to the non-2 query
// when the host lacks it, ignoring extension structs.
func (d *Driver) GetPhysicalDeviceSurfaceCapabilities2KHR(phys PhysicalDevice, info *PhysicalDeviceSurfaceInfo2, caps *SurfaceCapabilities2) Result {
	if !d.reg.validSurface(info.Surface) {
		return ErrorSurfaceLostKHR
	}
	var res Result
	if d.host.GetPhysicalDeviceSurfaceCapabilities2KHR != nil {
		res = d.host.GetPhysicalDeviceSurfaceCapabilities2KHR(phys, info, caps)
	} else {
		if info.Next != nil || caps.Next != nil {
			log.Debug("emulating vkGetPhysicalDeviceSurfaceCapabilities2KHR, pNext is ignored")
		}
		res = d.host.GetPhysicalDeviceSurfaceCapabilitiesKHR(phys, info.Surface, &caps.SurfaceCapabilities)
	}
	if res == Success {
		d.setImageExtent(info.Surface, &caps.SurfaceCapabilities)
	}
	return res
}

// surfaceFormats limits remote surfaces to the formats a remote swapchain
// can share.
func (d *Driver) surfaceFormats(phys PhysicalDevice, handle SurfaceKHR, count *uint32, formats *SurfaceFormat) Result {
	if !d.reg.surface(handle).remote() {
		return d.host.GetPhysicalDeviceSurfaceFormatsKHR(phys, handle, count, formats)
	}
	host, res := enumerate(func(n *uint32, out *SurfaceFormat) Result {
		return d.host.GetPhysicalDeviceSurfaceFormatsKHR(phys, handle, n, out)
	})
	if res != Success {
		log.WithField("result", res).Error("vkGetPhysicalDeviceSurfaceFormatsKHR failed")
		return res
	}
	res = filterFormats(count, slice(formats, *count), host, surfaceFormat)
	if *count == 0 {
		log.Error("no surface format supported by both the host and remote vulkan")
		return ErrorOutOfHostMemory
	}
	return res
}

func (d *Driver) surfaceFormats2(phys PhysicalDevice, info *PhysicalDeviceSurfaceInfo2, count *uint32, formats *SurfaceFormat2) Result {
	if !d.reg.surface(info.Surface).remote() {
		return d.host.GetPhysicalDeviceSurfaceFormats2KHR(phys, info, count, formats)
	}
	host, res := enumerate(func(n *uint32, out *SurfaceFormat2) Result {
		return d.host.GetPhysicalDeviceSurfaceFormats2KHR(phys, info, n, out)
	})
	if res != Success {
		log.WithField("result", res).Error("vkGetPhysicalDeviceSurfaceFormats2KHR failed")
		return res
	}
	res = filterFormats(count, slice(formats, *count), host, surfaceFormat2)
	if *count == 0 {
		log.Error("no surface format supported by both the host and remote vulkan")
		return ErrorOutOfHostMemory
	}
	return res
}

func (d *Driver) GetPhysicalDeviceSurfaceFormatsKHR(phys PhysicalDevice, surface SurfaceKHR, count *uint32, formats *SurfaceFormat) Result {
	if !d.reg.validSurface(surface) {
		return ErrorSurfaceLostKHR
	}
	return d.surfaceFormats(phys, surface, count, formats)
}

// GetPhysicalDeviceSurfaceFormats2KHR falls back to the non-2 query when
// the host lacks it.
func (d *Driver) GetPhysicalDeviceSurfaceFormats2KHR(phys PhysicalDevice, info *PhysicalDeviceSurfaceInfo2, count *uint32, formats *SurfaceFormat2) Result {
	if !d.reg.validSurface(info.Surface) {
		return ErrorSurfaceLostKHR
	}
	if d.host.GetPhysicalDeviceSurfaceFormats2KHR != nil {
		return d.surfaceFormats2(phys, info, count, formats)
	}
	if info.Next != nil {
		log.Debug("emulating vkGetPhysicalDeviceSurfaceFormats2KHR, pNext is ignored")
	}
	if formats == nil {
		return d.surfaceFormats(phys, info.Surface, count, nil)
	}
	host := make([]SurfaceFormat, max(*count, 1))
	res := d.surfaceFormats(phys, info.Surface, count, &host[0])
	if res == Success || res == Incomplete {
		out := slice(formats, *count)
		for i := range out {
			out[i].SurfaceFormat = host[i]
		}
	}
	return res
}
