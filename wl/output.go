package wl

import (
	"sync"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
)

const outputModeCurrent = 0x1

// Output tracks one wl_output. The native mode is what the compositor
// reports; the wine mode is the display mode the guest believes is active.
type Output struct {
	proxy wlp.Output
	Mu    *sync.RWMutex

	Name        string
	Description string
	X           int32
	Y           int32
	Make        string
	Model       string
	Transform   int32
	Width       int32
	Height      int32
	Refresh     int32
	Factor      int32
	WineWidth   int32
	WineHeight  int32

	onDone func(o *Output)
}

func NewOutput(name string, x, y, width, height, factor int32) *Output {
	return &Output{
		Mu:     &sync.RWMutex{},
		Name:   name,
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
		Factor: factor,
	}
}

func (o *Output) Geometry(x, y, physicalWidth, physicalHeight, subpixel int32, vendor, model string, transform int32) {
	o.Mu.Lock()
	defer o.Mu.Unlock()
	o.X = x
	o.Y = y
	o.Make = vendor
	o.Model = model
	o.Transform = transform
}

func (o *Output) Mode(flags uint32, width, height, refresh int32) {
	if flags&outputModeCurrent == 0 {
		return
	}
	o.Mu.Lock()
	defer o.Mu.Unlock()
	o.Width = width
	o.Height = height
	o.Refresh = refresh
}

func (o *Output) Done() {
	if o.onDone != nil {
		o.onDone(o)
	}
}

func (o *Output) Scale(factor int32) {
	o.Mu.Lock()
	defer o.Mu.Unlock()
	o.Factor = factor
}

func (o *Output) SetName(name string) {
	o.Mu.Lock()
	defer o.Mu.Unlock()
	o.Name = name
}

func (o *Output) SetDescription(description string) {
	o.Mu.Lock()
	defer o.Mu.Unlock()
	o.Description = description
}

// SetWineMode changes the guest display mode. Zero restores the native mode.
func (o *Output) SetWineMode(width, height int32) {
	o.Mu.Lock()
	defer o.Mu.Unlock()
	o.WineWidth = width
	o.WineHeight = height
}

// WineMode returns the guest display mode, the native mode when none is set.
func (o *Output) WineMode() (int32, int32) {
	o.Mu.RLock()
	defer o.Mu.RUnlock()
	if o.WineWidth == 0 || o.WineHeight == 0 {
		return o.Width, o.Height
	}
	return o.WineWidth, o.WineHeight
}

// WineScale is the factor between native and guest mode widths.
func (o *Output) WineScale() float64 {
	o.Mu.RLock()
	defer o.Mu.RUnlock()
	if o.WineWidth == 0 || o.Width == 0 {
		return 1
	}
	return float64(o.Width) / float64(o.WineWidth)
}

func (o *Output) BufferScale() int32 {
	o.Mu.RLock()
	defer o.Mu.RUnlock()
	if o.Factor < 1 {
		return 1
	}
	return o.Factor
}

func (o *Output) Position() (int32, int32) {
	o.Mu.RLock()
	defer o.Mu.RUnlock()
	return o.X, o.Y
}

// WineRect is the monitor rectangle in guest screen coordinates.
func (o *Output) WineRect() w32.Rect {
	x, y := o.Position()
	w, h := o.WineMode()
	return w32.NewRect(x, y, w, h)
}

// outputListener adapts the compositor's Name/Description events, which
// collide with the exported fields of Output.
type outputListener struct {
	*Output
}

func (l outputListener) Name(name string)               { l.Output.SetName(name) }
func (l outputListener) Description(description string) { l.Output.SetDescription(description) }

// topLeft reports whether a lies before b in top-left priority order.
func topLeft(a, b *Output) bool {
	ax, ay := a.Position()
	bx, by := b.Position()
	return ax < bx || (ax == bx && ay < by)
}
