package wlp

// zwp_pointer_constraints_v1

type pointerConstraints struct {
	proxy
}

func init() {
	register(PointerConstraintsInterface, func(p proxy, _ interface{}) object { return &pointerConstraints{proxy: p} })
}

func (*pointerConstraints) Interface() string         { return PointerConstraintsInterface }
func (*pointerConstraints) dispatch(uint16, *decoder) {}
func (pc *pointerConstraints) Destroy() error         { return pc.destroy(0) }

func (pc *pointerConstraints) LockPointer(surface Surface, pointer Pointer, region Region, lifetime uint32, l LockedPointerListener) (LockedPointer, error) {
	o, err := pc.newChild("zwp_locked_pointer_v1", l, 1, func(id newID) []interface{} {
		return []interface{}{id, surface, pointer, region, lifetime}
	})
	if err != nil {
		return nil, err
	}
	return o.(LockedPointer), nil
}

func (pc *pointerConstraints) ConfinePointer(surface Surface, pointer Pointer, region Region, lifetime uint32, l ConfinedPointerListener) (ConfinedPointer, error) {
	o, err := pc.newChild("zwp_confined_pointer_v1", l, 2, func(id newID) []interface{} {
		return []interface{}{id, surface, pointer, region, lifetime}
	})
	if err != nil {
		return nil, err
	}
	return o.(ConfinedPointer), nil
}

type lockedPointer struct {
	proxy
	l LockedPointerListener
}

func init() {
	register("zwp_locked_pointer_v1", func(p proxy, l LockedPointerListener) object { return &lockedPointer{proxy: p, l: l} })
}

func (*lockedPointer) Interface() string { return "zwp_locked_pointer_v1" }

func (lp *lockedPointer) dispatch(opCode uint16, _ *decoder) {
	if lp.l == nil {
		return
	}
	switch opCode {
	case 0:
		lp.l.Locked()
	case 1:
		lp.l.Unlocked()
	}
}

func (lp *lockedPointer) Destroy() error { return lp.destroy(0) }

func (lp *lockedPointer) SetCursorPositionHint(x, y Fixed) error {
	return lp.send(1, x, y)
}

func (lp *lockedPointer) SetRegion(region Region) error {
	return lp.send(2, region)
}

type confinedPointer struct {
	proxy
	l ConfinedPointerListener
}

func init() {
	register("zwp_confined_pointer_v1", func(p proxy, l ConfinedPointerListener) object { return &confinedPointer{proxy: p, l: l} })
}

func (*confinedPointer) Interface() string { return "zwp_confined_pointer_v1" }

func (cp *confinedPointer) dispatch(opCode uint16, _ *decoder) {
	if cp.l == nil {
		return
	}
	switch opCode {
	case 0:
		cp.l.Confined()
	case 1:
		cp.l.Unconfined()
	}
}

func (cp *confinedPointer) Destroy() error { return cp.destroy(0) }

func (cp *confinedPointer) SetRegion(region Region) error {
	return cp.send(1, region)
}

// zwp_relative_pointer_manager_v1

type relativePointerManager struct {
	proxy
}

func init() {
	register(RelativePointerManagerInterface, func(p proxy, _ interface{}) object { return &relativePointerManager{proxy: p} })
}

func (*relativePointerManager) Interface() string         { return RelativePointerManagerInterface }
func (*relativePointerManager) dispatch(uint16, *decoder) {}
func (m *relativePointerManager) Destroy() error          { return m.destroy(0) }

func (m *relativePointerManager) GetRelativePointer(pointer Pointer, l RelativePointerListener) (RelativePointer, error) {
	o, err := m.newChild("zwp_relative_pointer_v1", l, 1, func(id newID) []interface{} {
		return []interface{}{id, pointer}
	})
	if err != nil {
		return nil, err
	}
	return o.(RelativePointer), nil
}

type relativePointer struct {
	proxy
	l RelativePointerListener
}

func init() {
	register("zwp_relative_pointer_v1", func(p proxy, l RelativePointerListener) object { return &relativePointer{proxy: p, l: l} })
}

func (*relativePointer) Interface() string { return "zwp_relative_pointer_v1" }

func (rp *relativePointer) dispatch(opCode uint16, d *decoder) {
	if opCode != 0 || rp.l == nil {
		return
	}
	hi, lo := d.uint32(), d.uint32()
	dx, dy := d.fixed(), d.fixed()
	dxu, dyu := d.fixed(), d.fixed()
	if d.err == nil {
		rp.l.RelativeMotion(uint64(hi)<<32|uint64(lo), dx, dy, dxu, dyu)
	}
}

func (rp *relativePointer) Destroy() error { return rp.destroy(0) }

// wp_viewporter

type viewporter struct {
	proxy
}

func init() {
	register(ViewporterInterface, func(p proxy, _ interface{}) object { return &viewporter{proxy: p} })
}

func (*viewporter) Interface() string         { return ViewporterInterface }
func (*viewporter) dispatch(uint16, *decoder) {}
func (v *viewporter) Destroy() error          { return v.destroy(0) }

func (v *viewporter) GetViewport(surface Surface) (Viewport, error) {
	o, err := v.newChild("wp_viewport", nil, 1, func(id newID) []interface{} {
		return []interface{}{id, surface}
	})
	if err != nil {
		return nil, err
	}
	return o.(Viewport), nil
}

type viewport struct {
	proxy
}

func init() {
	register("wp_viewport", func(p proxy, _ interface{}) object { return &viewport{proxy: p} })
}

func (*viewport) Interface() string         { return "wp_viewport" }
func (*viewport) dispatch(uint16, *decoder) {}
func (v *viewport) Destroy() error          { return v.destroy(0) }

func (v *viewport) SetSource(x, y, width, height Fixed) error {
	return v.send(1, x, y, width, height)
}

func (v *viewport) SetDestination(width, height int32) error {
	return v.send(2, width, height)
}

// zwp_linux_dmabuf_v1

type linuxDmabuf struct {
	proxy
}

func init() {
	register(LinuxDmabufInterface, func(p proxy, _ interface{}) object { return &linuxDmabuf{proxy: p} })
}

func (*linuxDmabuf) Interface() string         { return LinuxDmabufInterface }
func (*linuxDmabuf) dispatch(uint16, *decoder) {}
func (l *linuxDmabuf) Destroy() error          { return l.destroy(0) }

func (l *linuxDmabuf) CreateParams(pl BufferParamsListener) (BufferParams, error) {
	o, err := l.newChild("zwp_linux_buffer_params_v1", pl, 1, ids)
	if err != nil {
		return nil, err
	}
	return o.(BufferParams), nil
}

type bufferParams struct {
	proxy
	l BufferParamsListener
}

func init() {
	register("zwp_linux_buffer_params_v1", func(p proxy, l BufferParamsListener) object { return &bufferParams{proxy: p, l: l} })
}

func (*bufferParams) Interface() string { return "zwp_linux_buffer_params_v1" }

func (b *bufferParams) dispatch(opCode uint16, _ *decoder) {
	if opCode == 1 && b.l != nil {
		b.l.Failed()
	}
}

func (b *bufferParams) Destroy() error { return b.destroy(0) }

func (b *bufferParams) Add(fd int, plane, offset, stride uint32, modifier uint64) error {
	return b.sendFD(1, fd, plane, offset, stride, uint32(modifier>>32), uint32(modifier))
}

func (b *bufferParams) CreateImmed(width, height int32, format, flags uint32, l BufferListener) (Buffer, error) {
	o, err := b.newChild("wl_buffer", l, 3, func(id newID) []interface{} {
		return []interface{}{id, width, height, format, flags}
	})
	if err != nil {
		return nil, err
	}
	return o.(Buffer), nil
}
