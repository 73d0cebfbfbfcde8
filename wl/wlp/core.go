package wlp

func ids(id newID) []interface{} {
	return []interface{}{id}
}

// wl_compositor

type compositor struct {
	proxy
}

func init() {
	register(CompositorInterface, func(p proxy, _ interface{}) object { return &compositor{proxy: p} })
}

func (*compositor) Interface() string         { return CompositorInterface }
func (*compositor) dispatch(uint16, *decoder) {}

func (c *compositor) CreateSurface(l SurfaceListener) (Surface, error) {
	o, err := c.newChild("wl_surface", l, 0, ids)
	if err != nil {
		return nil, err
	}
	return o.(Surface), nil
}

func (c *compositor) CreateRegion() (Region, error) {
	o, err := c.newChild("wl_region", nil, 1, ids)
	if err != nil {
		return nil, err
	}
	return o.(Region), nil
}

// wl_surface

type surface struct {
	proxy
	l SurfaceListener
}

func init() {
	register("wl_surface", func(p proxy, l SurfaceListener) object { return &surface{proxy: p, l: l} })
}

func (*surface) Interface() string { return "wl_surface" }

func (s *surface) dispatch(opCode uint16, d *decoder) {
	if s.l == nil {
		return
	}
	o, _ := d.object().(Output)
	switch opCode {
	case 0:
		s.l.Enter(o)
	case 1:
		s.l.Leave(o)
	}
}

func (s *surface) Destroy() error { return s.destroy(0) }

func (s *surface) Attach(buffer Buffer, x, y int32) error {
	return s.send(1, buffer, x, y)
}

func (s *surface) Damage(x, y, width, height int32) error {
	return s.send(2, x, y, width, height)
}

func (s *surface) Frame(l CallbackListener) (Callback, error) {
	o, err := s.newChild("wl_callback", l, 3, ids)
	if err != nil {
		return nil, err
	}
	return o.(Callback), nil
}

func (s *surface) SetOpaqueRegion(region Region) error {
	return s.send(4, region)
}

func (s *surface) SetInputRegion(region Region) error {
	return s.send(5, region)
}

func (s *surface) Commit() error                    { return s.send(6) }
func (s *surface) SetBufferScale(scale int32) error { return s.send(8, scale) }

func (s *surface) DamageBuffer(x, y, width, height int32) error {
	return s.send(9, x, y, width, height)
}

// wl_region

type region struct {
	proxy
}

func init() {
	register("wl_region", func(p proxy, _ interface{}) object { return &region{proxy: p} })
}

func (*region) Interface() string         { return "wl_region" }
func (*region) dispatch(uint16, *decoder) {}
func (r *region) Destroy() error          { return r.destroy(0) }

func (r *region) Add(x, y, width, height int32) error {
	return r.send(1, x, y, width, height)
}

func (r *region) Subtract(x, y, width, height int32) error {
	return r.send(2, x, y, width, height)
}

// wl_subcompositor

type subcompositor struct {
	proxy
}

func init() {
	register(SubcompositorInterface, func(p proxy, _ interface{}) object { return &subcompositor{proxy: p} })
}

func (*subcompositor) Interface() string         { return SubcompositorInterface }
func (*subcompositor) dispatch(uint16, *decoder) {}
func (s *subcompositor) Destroy() error          { return s.destroy(0) }

func (s *subcompositor) GetSubsurface(surface, parent Surface) (Subsurface, error) {
	o, err := s.newChild("wl_subsurface", nil, 1, func(id newID) []interface{} {
		return []interface{}{id, surface, parent}
	})
	if err != nil {
		return nil, err
	}
	return o.(Subsurface), nil
}

// wl_subsurface

type subsurface struct {
	proxy
}

func init() {
	register("wl_subsurface", func(p proxy, _ interface{}) object { return &subsurface{proxy: p} })
}

func (*subsurface) Interface() string              { return "wl_subsurface" }
func (*subsurface) dispatch(uint16, *decoder)      {}
func (s *subsurface) Destroy() error               { return s.destroy(0) }
func (s *subsurface) SetPosition(x, y int32) error { return s.send(1, x, y) }
func (s *subsurface) PlaceAbove(sibling Surface) error {
	return s.send(2, sibling)
}
func (s *subsurface) PlaceBelow(sibling Surface) error {
	return s.send(3, sibling)
}
func (s *subsurface) SetSync() error   { return s.send(4) }
func (s *subsurface) SetDesync() error { return s.send(5) }

// wl_shm

type shm struct {
	proxy
	l ShmListener
}

func init() {
	register(ShmInterface, func(p proxy, l ShmListener) object { return &shm{proxy: p, l: l} })
}

func (*shm) Interface() string { return ShmInterface }

func (s *shm) dispatch(opCode uint16, d *decoder) {
	if opCode == 0 && s.l != nil {
		s.l.Format(d.uint32())
	}
}

func (s *shm) CreatePool(fd int, size int32) (ShmPool, error) {
	o, err := s.c.create("wl_shm_pool", nil)
	if err != nil {
		return nil, err
	}
	if err := s.sendFD(0, fd, newID(o.ID()), size); err != nil {
		s.c.forget(o.ID())
		return nil, err
	}
	return o.(ShmPool), nil
}

// wl_shm_pool

type shmPool struct {
	proxy
}

func init() {
	register("wl_shm_pool", func(p proxy, _ interface{}) object { return &shmPool{proxy: p} })
}

func (*shmPool) Interface() string         { return "wl_shm_pool" }
func (*shmPool) dispatch(uint16, *decoder) {}

func (s *shmPool) CreateBuffer(offset, width, height, stride int32, format uint32, l BufferListener) (Buffer, error) {
	o, err := s.newChild("wl_buffer", l, 0, func(id newID) []interface{} {
		return []interface{}{id, offset, width, height, stride, format}
	})
	if err != nil {
		return nil, err
	}
	return o.(Buffer), nil
}

func (s *shmPool) Destroy() error          { return s.destroy(1) }
func (s *shmPool) Resize(size int32) error { return s.send(2, size) }

// wl_buffer

type buffer struct {
	proxy
	l BufferListener
}

func init() {
	register("wl_buffer", func(p proxy, l BufferListener) object { return &buffer{proxy: p, l: l} })
}

func (*buffer) Interface() string { return "wl_buffer" }

func (b *buffer) dispatch(opCode uint16, _ *decoder) {
	if opCode == 0 && b.l != nil {
		b.l.Release()
	}
}

func (b *buffer) Destroy() error { return b.destroy(0) }

// wl_output

type output struct {
	proxy
	l OutputListener
}

func init() {
	register(OutputInterface, func(p proxy, l OutputListener) object { return &output{proxy: p, l: l} })
}

func (*output) Interface() string { return OutputInterface }

func (o *output) dispatch(opCode uint16, d *decoder) {
	if o.l == nil {
		return
	}
	switch opCode {
	case 0:
		x, y := d.int32(), d.int32()
		pw, ph := d.int32(), d.int32()
		subpixel := d.int32()
		vendor, model := d.string(), d.string()
		transform := d.int32()
		if d.err == nil {
			o.l.Geometry(x, y, pw, ph, subpixel, vendor, model, transform)
		}
	case 1:
		flags := d.uint32()
		w, h, refresh := d.int32(), d.int32(), d.int32()
		if d.err == nil {
			o.l.Mode(flags, w, h, refresh)
		}
	case 2:
		o.l.Done()
	case 3:
		o.l.Scale(d.int32())
	case 4:
		o.l.Name(d.string())
	case 5:
		o.l.Description(d.string())
	}
}

func (o *output) Release() error { return o.destroy(0) }

// wl_seat

type seat struct {
	proxy
	l SeatListener
}

func init() {
	register(SeatInterface, func(p proxy, l SeatListener) object { return &seat{proxy: p, l: l} })
}

func (*seat) Interface() string { return SeatInterface }

func (s *seat) dispatch(opCode uint16, d *decoder) {
	if s.l == nil {
		return
	}
	switch opCode {
	case 0:
		s.l.Capabilities(d.uint32())
	case 1:
		s.l.Name(d.string())
	}
}

func (s *seat) GetPointer(l PointerListener) (Pointer, error) {
	o, err := s.newChild("wl_pointer", l, 0, ids)
	if err != nil {
		return nil, err
	}
	return o.(Pointer), nil
}

func (s *seat) Release() error { return s.destroy(3) }

// wl_pointer

type pointer struct {
	proxy
	l PointerListener
}

func init() {
	register("wl_pointer", func(p proxy, l PointerListener) object { return &pointer{proxy: p, l: l} })
}

func (*pointer) Interface() string { return "wl_pointer" }

func (p *pointer) dispatch(opCode uint16, d *decoder) {
	if p.l == nil {
		return
	}
	switch opCode {
	case 0:
		serial := d.uint32()
		s, _ := d.object().(Surface)
		x, y := d.fixed(), d.fixed()
		p.l.Enter(serial, s, x, y)
	case 1:
		serial := d.uint32()
		s, _ := d.object().(Surface)
		p.l.Leave(serial, s)
	case 2:
		t := d.uint32()
		x, y := d.fixed(), d.fixed()
		p.l.Motion(t, x, y)
	case 3:
		serial, t, button, state := d.uint32(), d.uint32(), d.uint32(), d.uint32()
		p.l.Button(serial, t, button, state)
	case 4:
		t, axis := d.uint32(), d.uint32()
		p.l.Axis(t, axis, d.fixed())
	case 5:
		p.l.Frame()
	}
}

func (p *pointer) SetCursor(serial uint32, surface Surface, hotspotX, hotspotY int32) error {
	return p.send(0, serial, surface, hotspotX, hotspotY)
}

func (p *pointer) Release() error { return p.destroy(1) }
