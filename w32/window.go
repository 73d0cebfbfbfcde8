package w32

import (
	"sync"

	"github.com/kichirouhoshino/wine-wayland/event"
	"github.com/kichirouhoshino/wine-wayland/w32/types/ws"
	"github.com/pkg/errors"
)

var ErrInvalidWindow = errors.New("invalid window handle")

// WindowSystem is the part of the guest window manager the driver consumes.
// Rectangles are in guest screen coordinates.
type WindowSystem interface {
	WindowRect(hwnd HWND) (Rect, bool)
	ClientRect(hwnd HWND) (Rect, bool)
	Style(hwnd HWND) ws.WindowStyle
	CursorPos() Point
	// CursorVisible is false when the guest hides the cursor.
	CursorVisible() bool
	ClipRect() Rect
	VirtualScreen() Rect
	PostMessage(hwnd HWND, msg uint32, wParam, lParam uintptr) error
}

type window struct {
	rect   Rect
	client Rect
	style  ws.WindowStyle
}

// Desktop is an in-process WindowSystem. Posted messages land in Queue.
type Desktop struct {
	Queue *event.Queue

	mu      sync.RWMutex
	windows map[HWND]*window
	next    HWND
	screen  Rect
	clip    Rect
	cursor  Point
	visible bool
}

func NewDesktop(screen Rect) *Desktop {
	return &Desktop{
		Queue:   event.NewQueue(),
		windows: make(map[HWND]*window),
		next:    0x10020,
		screen:  screen,
		clip:    screen,
		visible: true,
	}
}

// CreateWindow registers a window. client is the client area in screen
// coordinates and must lie inside rect.
func (d *Desktop) CreateWindow(rect, client Rect, style ws.WindowStyle) HWND {
	d.mu.Lock()
	defer d.mu.Unlock()
	hwnd := d.next
	d.next += 4
	d.windows[hwnd] = &window{rect: rect, client: client, style: style}
	return hwnd
}

func (d *Desktop) DestroyWindow(hwnd HWND) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.windows[hwnd]; !ok {
		return ErrInvalidWindow
	}
	delete(d.windows, hwnd)
	return nil
}

func (d *Desktop) SetWindowPos(hwnd HWND, rect, client Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return ErrInvalidWindow
	}
	w.rect, w.client = rect, client
	return nil
}

func (d *Desktop) SetStyle(hwnd HWND, style ws.WindowStyle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return ErrInvalidWindow
	}
	w.style = style
	return nil
}

func (d *Desktop) WindowRect(hwnd HWND) (Rect, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if w, ok := d.windows[hwnd]; ok {
		return w.rect, true
	}
	return Rect{}, false
}

func (d *Desktop) ClientRect(hwnd HWND) (Rect, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if w, ok := d.windows[hwnd]; ok {
		return w.client, true
	}
	return Rect{}, false
}

func (d *Desktop) Style(hwnd HWND) ws.WindowStyle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if w, ok := d.windows[hwnd]; ok {
		return w.style
	}
	return 0
}

func (d *Desktop) SetCursorPos(p Point) {
	d.mu.Lock()
	d.cursor = p
	d.mu.Unlock()
}

func (d *Desktop) CursorPos() Point {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor
}

func (d *Desktop) ShowCursor(visible bool) {
	d.mu.Lock()
	d.visible = visible
	d.mu.Unlock()
}

func (d *Desktop) CursorVisible() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.visible
}

// ClipCursor restricts the cursor; an empty rect resets the clip to the
// whole virtual screen.
func (d *Desktop) ClipCursor(clip Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if clip.Empty() {
		d.clip = d.screen
		return
	}
	d.clip = clip
}

func (d *Desktop) ClipRect() Rect {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.clip
}

func (d *Desktop) VirtualScreen() Rect {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.screen
}

func (d *Desktop) PostMessage(hwnd HWND, msg uint32, wParam, lParam uintptr) error {
	d.mu.RLock()
	_, ok := d.windows[hwnd]
	d.mu.RUnlock()
	if !ok {
		return ErrInvalidWindow
	}
	return d.Queue.Push(event.Message{Window: uintptr(hwnd), ID: msg, WParam: wParam, LParam: lParam})
}
