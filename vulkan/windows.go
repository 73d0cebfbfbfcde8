package vulkan

import (
	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl"
	"github.com/kichirouhoshino/wine-wayland/wl/native"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
)

// WindowSurface is the wayland surface of a local window as the driver
// uses it. Vulkan content goes to its GL/VK child.
type WindowSurface interface {
	CreateOrRefGLVK() error
	UnrefGLVK()
	// GLVKProxy is the child's wl_surface, nil without a child.
	GLVKProxy() wlp.Surface
	DrawingAllowed() bool
	EnsureMapped()
	// LockCommits keeps reconfigurations off the surface while a host
	// present commits to its GL/VK child.
	LockCommits()
	UnlockCommits()
	Unref()
}

// NativeDisplay is a libwayland connection host Vulkan can create
// surfaces on.
type NativeDisplay interface {
	Handle() uintptr
	CreateSurface() (NativeSurface, error)
}

// NativeSurface is a wl_surface of a NativeDisplay. The dummy surfaces
// hosting the Vulkan surface of a remotely presented window are never
// committed to.
type NativeSurface interface {
	Handle() uintptr
	Destroy()
}

// SurfaceMapper is implemented by native displays sharing their connection
// with the window surfaces. Host Vulkan then presents straight into the
// GL/VK child of local windows; otherwise those go through the remote
// surface server of this process like foreign windows do.
type SurfaceMapper interface {
	NativeSurface(s wlp.Surface) uintptr
}

// NativeConnection serves NativeDisplay from a libwayland connection.
func NativeConnection(d *native.Display) NativeDisplay {
	return nativeDisplay{d}
}

type nativeDisplay struct {
	*native.Display
}

func (d nativeDisplay) CreateSurface() (NativeSurface, error) {
	s, err := d.Display.CreateSurface()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Windows gives the driver access to the process' windows.
type Windows interface {
	// SurfaceForWindow returns a new reference to the window's surface,
	// nil when this process does not own one.
	SurfaceForWindow(hwnd w32.HWND) WindowSurface
	WindowSystem() w32.WindowSystem
}

// ClientWindows serves Windows from a wayland client.
func ClientWindows(c *wl.Client) Windows {
	return clientWindows{c}
}

type clientWindows struct {
	c *wl.Client
}

func (w clientWindows) SurfaceForWindow(hwnd w32.HWND) WindowSurface {
	s := w.c.ForWindow(hwnd)
	if s == nil {
		return nil
	}
	return windowSurface{s}
}

func (w clientWindows) WindowSystem() w32.WindowSystem {
	return w.c.WindowSystem()
}

type windowSurface struct {
	*wl.Surface
}

func (s windowSurface) GLVKProxy() wlp.Surface {
	if glvk := s.GLVK(); glvk != nil {
		return glvk.Proxy()
	}
	return nil
}
