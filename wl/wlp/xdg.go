package wlp

// xdg_wm_base

type wmBase struct {
	proxy
	l WmBaseListener
}

func init() {
	register(WmBaseInterface, func(p proxy, l WmBaseListener) object { return &wmBase{proxy: p, l: l} })
}

func (*wmBase) Interface() string { return WmBaseInterface }

func (w *wmBase) dispatch(opCode uint16, d *decoder) {
	if opCode == 0 && w.l != nil {
		w.l.Ping(d.uint32())
	}
}

func (w *wmBase) Destroy() error { return w.destroy(0) }

func (w *wmBase) GetXdgSurface(surface Surface, l XdgSurfaceListener) (XdgSurface, error) {
	o, err := w.newChild("xdg_surface", l, 2, func(id newID) []interface{} {
		return []interface{}{id, surface}
	})
	if err != nil {
		return nil, err
	}
	return o.(XdgSurface), nil
}

func (w *wmBase) Pong(serial uint32) error { return w.send(3, serial) }

// xdg_surface

type xdgSurface struct {
	proxy
	l XdgSurfaceListener
}

func init() {
	register("xdg_surface", func(p proxy, l XdgSurfaceListener) object { return &xdgSurface{proxy: p, l: l} })
}

func (*xdgSurface) Interface() string { return "xdg_surface" }

func (x *xdgSurface) dispatch(opCode uint16, d *decoder) {
	if opCode == 0 && x.l != nil {
		x.l.Configure(d.uint32())
	}
}

func (x *xdgSurface) Destroy() error { return x.destroy(0) }

func (x *xdgSurface) GetToplevel(l XdgToplevelListener) (XdgToplevel, error) {
	o, err := x.newChild("xdg_toplevel", l, 1, ids)
	if err != nil {
		return nil, err
	}
	return o.(XdgToplevel), nil
}

func (x *xdgSurface) SetWindowGeometry(px, py, width, height int32) error {
	return x.send(3, px, py, width, height)
}

func (x *xdgSurface) AckConfigure(serial uint32) error { return x.send(4, serial) }

// xdg_toplevel

type xdgToplevel struct {
	proxy
	l XdgToplevelListener
}

func init() {
	register("xdg_toplevel", func(p proxy, l XdgToplevelListener) object { return &xdgToplevel{proxy: p, l: l} })
}

func (*xdgToplevel) Interface() string { return "xdg_toplevel" }

func (t *xdgToplevel) dispatch(opCode uint16, d *decoder) {
	if t.l == nil {
		return
	}
	switch opCode {
	case 0:
		w, h := d.int32(), d.int32()
		states := d.uint32s()
		if d.err == nil {
			t.l.Configure(w, h, states)
		}
	case 1:
		t.l.Close()
	}
}

func (t *xdgToplevel) Destroy() error { return t.destroy(0) }

func (t *xdgToplevel) SetParent(parent XdgToplevel) error {
	return t.send(1, parent)
}

func (t *xdgToplevel) SetTitle(title string) error { return t.send(2, title) }
func (t *xdgToplevel) SetAppID(appID string) error { return t.send(3, appID) }

func (t *xdgToplevel) SetMaxSize(width, height int32) error { return t.send(7, width, height) }
func (t *xdgToplevel) SetMinSize(width, height int32) error { return t.send(8, width, height) }
func (t *xdgToplevel) SetMaximized() error                  { return t.send(9) }
func (t *xdgToplevel) UnsetMaximized() error                { return t.send(10) }

func (t *xdgToplevel) SetFullscreen(output Output) error {
	return t.send(11, output)
}

func (t *xdgToplevel) UnsetFullscreen() error { return t.send(12) }
func (t *xdgToplevel) SetMinimized() error    { return t.send(13) }
