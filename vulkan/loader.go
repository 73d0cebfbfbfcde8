package vulkan

import (
	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// Library is a dlopened host Vulkan loader.
type Library struct {
	handle uintptr

	getInstanceProcAddr func(instance Instance, name string) uintptr
	getDeviceProcAddr   func(device Device, name string) uintptr
}

type symbol struct {
	fptr     any
	name     string
	optional bool
}

// Open loads the host Vulkan loader at path and fills a Host from its
// exports. A missing optional export leaves its field nil.
func Open(path string) (*Library, *Host, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to load %s", path)
	}
	l := &Library{handle: handle}
	h := &Host{}
	symbols := []symbol{
		{&h.AcquireNextImageKHR, "vkAcquireNextImageKHR", false},
		{&h.CreateDevice, "vkCreateDevice", false},
		{&h.CreateInstance, "vkCreateInstance", false},
		{&h.CreateSwapchainKHR, "vkCreateSwapchainKHR", false},
		{&h.CreateWaylandSurfaceKHR, "vkCreateWaylandSurfaceKHR", false},
		{&h.DestroyDevice, "vkDestroyDevice", false},
		{&h.DestroyInstance, "vkDestroyInstance", false},
		{&h.DestroySurfaceKHR, "vkDestroySurfaceKHR", false},
		{&h.DestroySwapchainKHR, "vkDestroySwapchainKHR", false},
		{&h.EnumerateDeviceExtensionProperties, "vkEnumerateDeviceExtensionProperties", false},
		{&h.EnumerateInstanceExtensionProperties, "vkEnumerateInstanceExtensionProperties", false},
		{&h.GetDeviceGroupSurfacePresentModesKHR, "vkGetDeviceGroupSurfacePresentModesKHR", true},
		{&l.getDeviceProcAddr, "vkGetDeviceProcAddr", false},
		{&l.getInstanceProcAddr, "vkGetInstanceProcAddr", false},
		{&h.GetPhysicalDevicePresentRectanglesKHR, "vkGetPhysicalDevicePresentRectanglesKHR", true},
		{&h.GetPhysicalDeviceSurfaceCapabilities2KHR, "vkGetPhysicalDeviceSurfaceCapabilities2KHR", true},
		{&h.GetPhysicalDeviceSurfaceCapabilitiesKHR, "vkGetPhysicalDeviceSurfaceCapabilitiesKHR", false},
		{&h.GetPhysicalDeviceSurfaceFormats2KHR, "vkGetPhysicalDeviceSurfaceFormats2KHR", true},
		{&h.GetPhysicalDeviceSurfaceFormatsKHR, "vkGetPhysicalDeviceSurfaceFormatsKHR", false},
		{&h.GetPhysicalDeviceSurfacePresentModesKHR, "vkGetPhysicalDeviceSurfacePresentModesKHR", false},
		{&h.GetPhysicalDeviceSurfaceSupportKHR, "vkGetPhysicalDeviceSurfaceSupportKHR", false},
		{&h.GetPhysicalDeviceWaylandPresentationSupportKHR, "vkGetPhysicalDeviceWaylandPresentationSupportKHR", false},
		{&h.GetSwapchainImagesKHR, "vkGetSwapchainImagesKHR", false},
		{&h.QueuePresentKHR, "vkQueuePresentKHR", false},
	}
	for _, s := range symbols {
		sym, err := purego.Dlsym(handle, s.name)
		if err != nil {
			if s.optional {
				log.WithField("symbol", s.name).Debug("optional host function missing")
				continue
			}
			purego.Dlclose(handle)
			return nil, nil, errors.Wrapf(err, "unable to load %s", s.name)
		}
		purego.RegisterFunc(s.fptr, sym)
	}
	h.DeviceFuncs = l.deviceFuncs
	return l, h, nil
}

func (l *Library) deviceFuncs(instance Instance, device Device) (*DeviceFuncs, error) {
	f := &DeviceFuncs{}
	deviceSymbols := []symbol{
		{fptr: &f.CreateImage, name: "vkCreateImage"},
		{fptr: &f.DestroyImage, name: "vkDestroyImage"},
		{fptr: &f.AllocateMemory, name: "vkAllocateMemory"},
		{fptr: &f.FreeMemory, name: "vkFreeMemory"},
		{fptr: &f.BindImageMemory, name: "vkBindImageMemory"},
		{fptr: &f.GetImageMemoryRequirements, name: "vkGetImageMemoryRequirements"},
		{fptr: &f.ImportSemaphoreFdKHR, name: "vkImportSemaphoreFdKHR"},
		{fptr: &f.ImportFenceFdKHR, name: "vkImportFenceFdKHR"},
		{fptr: &f.GetMemoryFdKHR, name: "vkGetMemoryFdKHR"},
		{fptr: &f.GetImageSubresourceLayout, name: "vkGetImageSubresourceLayout"},
		{fptr: &f.GetSemaphoreFdKHR, name: "vkGetSemaphoreFdKHR"},
	}
	for _, s := range deviceSymbols {
		addr := l.getDeviceProcAddr(device, s.name)
		if addr == 0 {
			return nil, errors.Errorf("device function %s missing", s.name)
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	addr := l.getInstanceProcAddr(instance, "vkGetPhysicalDeviceMemoryProperties")
	if addr == 0 {
		return nil, errors.New("instance function vkGetPhysicalDeviceMemoryProperties missing")
	}
	purego.RegisterFunc(&f.GetPhysicalDeviceMemoryProperties, addr)
	return f, nil
}

func (l *Library) Close() error {
	return purego.Dlclose(l.handle)
}
