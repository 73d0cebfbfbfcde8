package wlp

// Interface names as advertised by the registry.
const (
	CompositorInterface             = "wl_compositor"
	SubcompositorInterface          = "wl_subcompositor"
	ShmInterface                    = "wl_shm"
	OutputInterface                 = "wl_output"
	SeatInterface                   = "wl_seat"
	WmBaseInterface                 = "xdg_wm_base"
	PointerConstraintsInterface     = "zwp_pointer_constraints_v1"
	RelativePointerManagerInterface = "zwp_relative_pointer_manager_v1"
	ViewporterInterface             = "wp_viewporter"
	LinuxDmabufInterface            = "zwp_linux_dmabuf_v1"
)

const (
	ShmFormatARGB8888 uint32 = 0
	ShmFormatXRGB8888 uint32 = 1

	SeatCapabilityPointer uint32 = 1

	XdgToplevelStateMaximized  uint32 = 1
	XdgToplevelStateFullscreen uint32 = 2
	XdgToplevelStateResizing   uint32 = 3
	XdgToplevelStateActivated  uint32 = 4

	ConstraintLifetimeOneshot    uint32 = 1
	ConstraintLifetimePersistent uint32 = 2
)

type Callback interface {
	Object
}

type CallbackListener interface {
	Done(data uint32)
}

type Compositor interface {
	Object
	CreateSurface(l SurfaceListener) (Surface, error)
	CreateRegion() (Region, error)
}

// SurfaceListener gets output enter and leave events. The output is nil when
// it was already destroyed.
type SurfaceListener interface {
	Enter(output Output)
	Leave(output Output)
}

type Surface interface {
	Object
	Destroy() error
	Attach(buffer Buffer, x, y int32) error
	Damage(x, y, width, height int32) error
	Frame(l CallbackListener) (Callback, error)
	SetOpaqueRegion(region Region) error
	SetInputRegion(region Region) error
	Commit() error
	SetBufferScale(scale int32) error
	DamageBuffer(x, y, width, height int32) error
}

type Region interface {
	Object
	Destroy() error
	Add(x, y, width, height int32) error
	Subtract(x, y, width, height int32) error
}

type Subcompositor interface {
	Object
	Destroy() error
	GetSubsurface(surface, parent Surface) (Subsurface, error)
}

type Subsurface interface {
	Object
	Destroy() error
	SetPosition(x, y int32) error
	PlaceAbove(sibling Surface) error
	PlaceBelow(sibling Surface) error
	SetSync() error
	SetDesync() error
}

type ShmListener interface {
	Format(format uint32)
}

type Shm interface {
	Object
	CreatePool(fd int, size int32) (ShmPool, error)
}

type ShmPool interface {
	Object
	CreateBuffer(offset, width, height, stride int32, format uint32, l BufferListener) (Buffer, error)
	Destroy() error
	Resize(size int32) error
}

type BufferListener interface {
	Release()
}

type Buffer interface {
	Object
	Destroy() error
}

type OutputListener interface {
	Geometry(x, y, physicalWidth, physicalHeight, subpixel int32, vendor, model string, transform int32)
	Mode(flags uint32, width, height, refresh int32)
	Done()
	Scale(factor int32)
	Name(name string)
	Description(description string)
}

type Output interface {
	Object
	Release() error
}

type SeatListener interface {
	Capabilities(capabilities uint32)
	Name(name string)
}

type Seat interface {
	Object
	GetPointer(l PointerListener) (Pointer, error)
	Release() error
}

// PointerListener gets pointer events. Surfaces are nil when the focused
// surface was already destroyed.
type PointerListener interface {
	Enter(serial uint32, surface Surface, x, y Fixed)
	Leave(serial uint32, surface Surface)
	Motion(time uint32, x, y Fixed)
	Button(serial, time, button, state uint32)
	Axis(time, axis uint32, value Fixed)
	Frame()
}

type Pointer interface {
	Object
	SetCursor(serial uint32, surface Surface, hotspotX, hotspotY int32) error
	Release() error
}

type WmBaseListener interface {
	Ping(serial uint32)
}

type WmBase interface {
	Object
	Destroy() error
	GetXdgSurface(surface Surface, l XdgSurfaceListener) (XdgSurface, error)
	Pong(serial uint32) error
}

type XdgSurfaceListener interface {
	Configure(serial uint32)
}

type XdgSurface interface {
	Object
	Destroy() error
	GetToplevel(l XdgToplevelListener) (XdgToplevel, error)
	SetWindowGeometry(x, y, width, height int32) error
	AckConfigure(serial uint32) error
}

type XdgToplevelListener interface {
	Configure(width, height int32, states []uint32)
	Close()
}

type XdgToplevel interface {
	Object
	Destroy() error
	SetParent(parent XdgToplevel) error
	SetTitle(title string) error
	SetAppID(appID string) error
	SetMaxSize(width, height int32) error
	SetMinSize(width, height int32) error
	SetMaximized() error
	UnsetMaximized() error
	SetFullscreen(output Output) error
	UnsetFullscreen() error
	SetMinimized() error
}

type PointerConstraints interface {
	Object
	Destroy() error
	LockPointer(surface Surface, pointer Pointer, region Region, lifetime uint32, l LockedPointerListener) (LockedPointer, error)
	ConfinePointer(surface Surface, pointer Pointer, region Region, lifetime uint32, l ConfinedPointerListener) (ConfinedPointer, error)
}

type LockedPointerListener interface {
	Locked()
	Unlocked()
}

type LockedPointer interface {
	Object
	Destroy() error
	SetCursorPositionHint(x, y Fixed) error
	SetRegion(region Region) error
}

type ConfinedPointerListener interface {
	Confined()
	Unconfined()
}

type ConfinedPointer interface {
	Object
	Destroy() error
	SetRegion(region Region) error
}

type RelativePointerManager interface {
	Object
	Destroy() error
	GetRelativePointer(pointer Pointer, l RelativePointerListener) (RelativePointer, error)
}

type RelativePointerListener interface {
	RelativeMotion(utime uint64, dx, dy, dxUnaccel, dyUnaccel Fixed)
}

type RelativePointer interface {
	Object
	Destroy() error
}

type Viewporter interface {
	Object
	Destroy() error
	GetViewport(surface Surface) (Viewport, error)
}

type Viewport interface {
	Object
	Destroy() error
	SetSource(x, y, width, height Fixed) error
	SetDestination(width, height int32) error
}

type LinuxDmabuf interface {
	Object
	Destroy() error
	CreateParams(l BufferParamsListener) (BufferParams, error)
}

type BufferParamsListener interface {
	Failed()
}

// BufferParams collects dma-buf planes for one buffer.
type BufferParams interface {
	Object
	Destroy() error
	Add(fd int, plane, offset, stride uint32, modifier uint64) error
	CreateImmed(width, height int32, format, flags uint32, l BufferListener) (Buffer, error)
}
