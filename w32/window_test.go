package w32

import (
	"testing"

	"github.com/kichirouhoshino/wine-wayland/w32/types/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectIntersect(t *testing.T) {
	a := NewRect(0, 0, 100, 100)
	assert.Equal(t, Rect{50, 50, 100, 100}, a.Intersect(NewRect(50, 50, 100, 100)))
	assert.True(t, a.Intersect(NewRect(200, 0, 10, 10)).Empty())
	assert.True(t, a.ContainsRect(NewRect(10, 10, 5, 5)))
	assert.False(t, a.Contains(Point{100, 0}))
}

func TestDesktopPostMessage(t *testing.T) {
	d := NewDesktop(NewRect(0, 0, 1920, 1080))
	hwnd := d.CreateWindow(NewRect(10, 10, 200, 100), NewRect(12, 30, 196, 78), ws.OverlappedWindow)

	require.NoError(t, d.PostMessage(hwnd, WMWaylandConfigure, 0, 0))
	msg, err := d.Queue.Poll()
	require.NoError(t, err)
	assert.Equal(t, uintptr(hwnd), msg.Window)
	assert.Equal(t, WMWaylandConfigure, msg.ID)

	require.NoError(t, d.DestroyWindow(hwnd))
	assert.Equal(t, ErrInvalidWindow, d.PostMessage(hwnd, WMWaylandConfigure, 0, 0))
}

func TestDesktopClip(t *testing.T) {
	d := NewDesktop(NewRect(0, 0, 800, 600))
	d.ClipCursor(NewRect(10, 10, 20, 20))
	assert.Equal(t, NewRect(10, 10, 20, 20), d.ClipRect())
	d.ClipCursor(Rect{})
	assert.Equal(t, d.VirtualScreen(), d.ClipRect())
}

func TestStyleHas(t *testing.T) {
	s := ws.OverlappedWindow | ws.Minimize
	assert.True(t, s.Has(ws.Minimize))
	assert.False(t, s.Has(ws.Maximize))
}
