package w32

// HWND identifies a guest window.
type HWND uintptr

const (
	WMSysCommand uint32 = 0x0112
	WMApp        uint32 = 0x8000
)

// Driver private messages, posted from compositor callbacks so the work runs
// on the window's own thread.
const (
	WMWaylandInit = WMApp + iota + 0x100
	WMWaylandConfigure
	WMWaylandSurfaceOutputChange
	WMWaylandRemoteSurface
)

const SCClose uintptr = 0xF060
