package wlp

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var log = logrus.WithField("component", "wlp")

// Object is a protocol object known to a Context.
type Object interface {
	ID() uint32
	Interface() string
}

type object interface {
	Object
	dispatch(opCode uint16, d *decoder)
}

type constructor func(p proxy, listener interface{}) (object, error)

var constructors = make(map[string]constructor)

// Global is a global advertised through the registry.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

type RegistryListener interface {
	Global(g Global)
	GlobalRemove(name uint32)
}

// Context is one connection to the compositor. Requests are written to the
// socket as they are made; events are read and dispatched by a goroutine
// started with Start. Listeners run on that goroutine.
type Context struct {
	mu   *sync.Mutex
	c    *net.UnixConn
	buf  *bytes.Buffer
	obj  map[uint32]object
	last uint32

	gmu *sync.RWMutex
	glb map[uint32]Global

	emu  *sync.Mutex
	err  error
	done chan struct{}

	display  *display
	registry *registry
}

// NewContext wraps an established compositor connection.
func NewContext(conn *net.UnixConn) *Context {
	c := &Context{
		mu:   &sync.Mutex{},
		c:    conn,
		buf:  &bytes.Buffer{},
		obj:  make(map[uint32]object),
		gmu:  &sync.RWMutex{},
		glb:  make(map[uint32]Global),
		emu:  &sync.Mutex{},
		done: make(chan struct{}),
	}
	c.display = &display{proxy: proxy{c: c, id: c.next()}}
	c.obj[c.display.id] = c.display
	return c
}

// Start launches the dispatch goroutine and requests the registry. l sees
// every global as it is announced.
func (c *Context) Start(l RegistryListener) error {
	go c.readLoop()
	r, err := c.display.getRegistry(l)
	if err != nil {
		return errors.Wrap(err, "unable to get registry")
	}
	c.registry = r
	return nil
}

func (c *Context) next() uint32 {
	return atomic.AddUint32(&c.last, 1)
}

func (c *Context) lookup(id uint32) object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.obj[id]
}

// create registers a client side object under a fresh id.
func (c *Context) create(iface string, listener interface{}) (object, error) {
	ctor, ok := constructors[iface]
	if !ok {
		return nil, errors.Errorf("unknown interface %s", iface)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	o, err := ctor(proxy{c: c, id: c.next()}, listener)
	if err != nil {
		return nil, err
	}
	c.obj[o.ID()] = o
	return o, nil
}

func (c *Context) forget(id uint32) {
	c.mu.Lock()
	delete(c.obj, id)
	c.mu.Unlock()
}

// Err returns the error that ended the connection, if any.
func (c *Context) Err() error {
	c.emu.Lock()
	defer c.emu.Unlock()
	return c.err
}

func (c *Context) fail(err error) {
	c.emu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.emu.Unlock()
}

// Done is closed when the dispatch goroutine stops.
func (c *Context) Done() <-chan struct{} {
	return c.done
}

func (c *Context) send(id uint32, opCode uint16, fd int, args ...interface{}) error {
	if err := c.Err(); err != nil {
		return errors.Wrap(err, "global wayland error")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
	binary.Write(c.buf, hostByteOrder, id)
	binary.Write(c.buf, hostByteOrder, uint32(0))
	for _, arg := range args {
		if err := encodeArg(c.buf, arg); err != nil {
			return err
		}
	}
	hostByteOrder.PutUint32(c.buf.Bytes()[4:8], uint32(c.buf.Len())<<16|uint32(opCode))
	var oob []byte
	if fd >= 0 {
		oob = unix.UnixRights(fd)
	}
	if _, _, err := c.c.WriteMsgUnix(c.buf.Bytes(), oob, nil); err != nil {
		c.fail(err)
		return errors.Wrap(err, "unable to write request")
	}
	return nil
}

func (c *Context) readLoop() {
	defer close(c.done)
	buf := make([]byte, 1<<16)
	oob := make([]byte, unix.CmsgSpace(28*4))
	j := 0
	for {
		n, oobn, _, _, err := c.c.ReadMsgUnix(buf[j:], oob)
		if err != nil {
			c.fail(errors.Wrap(err, "connection closed"))
			return
		}
		if n == 0 && oobn == 0 {
			c.fail(errors.Wrap(io.EOF, "connection closed"))
			return
		}
		c.closeFDs(oob[:oobn])
		n += j

		i := 0
		for n-i >= 8 {
			id, opCode, size := DecodeHeader(buf[i:])
			if size < 8 {
				c.fail(errors.Errorf("invalid message size %d", size))
				return
			}
			if n-i < size {
				break
			}
			c.dispatch(id, opCode, buf[i+8:i+size])
			i += size
			if c.Err() != nil {
				return
			}
		}
		j = copy(buf, buf[i:n])
	}
}

// closeFDs drops received descriptors, no event handled here carries one.
func (c *Context) closeFDs(oob []byte) {
	if len(oob) == 0 {
		return
	}
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return
	}
	for i := range scms {
		fds, err := unix.ParseUnixRights(&scms[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			unix.Close(fd)
		}
	}
}

func (c *Context) dispatch(id uint32, opCode uint16, payload []byte) {
	o := c.lookup(id)
	if o == nil {
		log.WithField("id", id).Trace("event for unknown object")
		return
	}
	d := &decoder{c: c, buf: payload}
	o.dispatch(opCode, d)
	if d.err != nil {
		log.WithError(d.err).Errorf("%s@%d: bad event %d", o.Interface(), id, opCode)
	}
}

// Roundtrip blocks until every event sent before the call was dispatched.
func (c *Context) Roundtrip() error {
	done := make(chan struct{})
	var once sync.Once
	if _, err := c.display.sync(CallbackFunc(func(uint32) { once.Do(func() { close(done) }) })); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-c.done:
		return errors.Wrap(c.Err(), "roundtrip")
	}
}

// Flush reports a failed connection. Requests are never held back.
func (c *Context) Flush() error {
	return c.Err()
}

func (c *Context) Close() error {
	return c.c.Close()
}

func (c *Context) Globals() []Global {
	c.gmu.RLock()
	defer c.gmu.RUnlock()
	out := make([]Global, 0, len(c.glb))
	for _, g := range c.glb {
		out = append(out, g)
	}
	return out
}

// Bind creates a client object for the global g at version.
func (c *Context) Bind(g Global, version uint32, listener interface{}) (Object, error) {
	if c.registry == nil {
		return nil, errors.New("context not started")
	}
	if version > g.Version {
		version = g.Version
	}
	o, err := c.create(g.Interface, listener)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid listener for %s", g.Interface)
	}
	if err := c.registry.send(opCodeRegistryBind, g.Name, g.Interface, version, newID(o.ID())); err != nil {
		c.forget(o.ID())
		return nil, errors.Wrapf(err, "unable to bind object: %s", g.Interface)
	}
	return o, nil
}

// proxy is the client side of one object.
type proxy struct {
	c    *Context
	id   uint32
	dead *atomic.Bool
}

func (p proxy) ID() uint32 {
	return p.id
}

func (p proxy) send(opCode uint16, args ...interface{}) error {
	return p.sendFD(opCode, -1, args...)
}

func (p proxy) sendFD(opCode uint16, fd int, args ...interface{}) error {
	if p.dead != nil && p.dead.Load() {
		return errors.New("object has been destroyed")
	}
	return p.c.send(p.id, opCode, fd, args...)
}

// destroy sends a destructor request. The id stays mapped until the
// compositor confirms with delete_id.
func (p proxy) destroy(opCode uint16) error {
	err := p.send(opCode)
	if p.dead != nil {
		p.dead.Store(true)
	}
	return err
}

// newChild creates an object of type iface and sends the request making it.
func (p proxy) newChild(iface string, listener interface{}, opCode uint16, args func(id newID) []interface{}) (object, error) {
	o, err := p.c.create(iface, listener)
	if err != nil {
		return nil, err
	}
	if err := p.send(opCode, args(newID(o.ID()))...); err != nil {
		p.c.forget(o.ID())
		return nil, err
	}
	return o, nil
}

// register adds a constructor for iface. L is the listener type, nil
// listeners are allowed.
func register[L any](iface string, build func(p proxy, l L) object) {
	constructors[iface] = func(p proxy, listener interface{}) (object, error) {
		p.dead = &atomic.Bool{}
		var l L
		if listener != nil {
			var ok bool
			if l, ok = listener.(L); !ok {
				return nil, errors.Errorf("listener %T does not implement %s listener", listener, iface)
			}
		}
		return build(p, l), nil
	}
}

const (
	opCodeDisplaySync        = 0
	opCodeDisplayGetRegistry = 1
	opCodeDisplayError       = 0
	opCodeDisplayDeleteID    = 1

	opCodeRegistryBind         = 0
	opCodeRegistryGlobal       = 0
	opCodeRegistryGlobalRemove = 1

	opCodeCallbackDone = 0
)

type display struct {
	proxy
}

func (*display) Interface() string { return "wl_display" }

func (d *display) sync(l CallbackListener) (Callback, error) {
	o, err := d.newChild("wl_callback", l, opCodeDisplaySync, func(id newID) []interface{} { return []interface{}{id} })
	if err != nil {
		return nil, err
	}
	return o.(Callback), nil
}

func (d *display) getRegistry(l RegistryListener) (*registry, error) {
	r := &registry{proxy: proxy{c: d.c, id: d.c.next()}, l: l}
	d.c.mu.Lock()
	d.c.obj[r.id] = r
	d.c.mu.Unlock()
	if err := d.send(opCodeDisplayGetRegistry, newID(r.id)); err != nil {
		d.c.forget(r.id)
		return nil, err
	}
	return r, nil
}

func (d *display) dispatch(opCode uint16, dec *decoder) {
	switch opCode {
	case opCodeDisplayError:
		o := dec.object()
		code := dec.uint32()
		msg := dec.string()
		err := errors.Errorf("obj: %v, code: %d -> %s", o, code, msg)
		if o != nil {
			err = errors.Errorf("%s@%d: error %d: %s", o.Interface(), o.ID(), code, msg)
		}
		log.WithError(err).Error("protocol error")
		d.c.fail(err)
	case opCodeDisplayDeleteID:
		d.c.forget(dec.uint32())
	}
}

type registry struct {
	proxy
	l RegistryListener
}

func (*registry) Interface() string { return "wl_registry" }

func (r *registry) dispatch(opCode uint16, d *decoder) {
	switch opCode {
	case opCodeRegistryGlobal:
		g := Global{Name: d.uint32(), Interface: d.string(), Version: d.uint32()}
		if d.err != nil {
			return
		}
		r.c.gmu.Lock()
		r.c.glb[g.Name] = g
		r.c.gmu.Unlock()
		log.WithField("interface", g.Interface).Trace("added global")
		if r.l != nil {
			r.l.Global(g)
		}
	case opCodeRegistryGlobalRemove:
		name := d.uint32()
		r.c.gmu.Lock()
		delete(r.c.glb, name)
		r.c.gmu.Unlock()
		if r.l != nil {
			r.l.GlobalRemove(name)
		}
	}
}

type callback struct {
	proxy
	l CallbackListener
}

func init() {
	register("wl_callback", func(p proxy, l CallbackListener) object { return &callback{proxy: p, l: l} })
}

func (*callback) Interface() string { return "wl_callback" }

func (cb *callback) dispatch(opCode uint16, d *decoder) {
	if opCode != opCodeCallbackDone {
		return
	}
	data := d.uint32()
	// callbacks are destroyed by the compositor once done
	cb.c.forget(cb.id)
	if cb.l != nil {
		cb.l.Done(data)
	}
}

// CallbackFunc adapts a function to CallbackListener.
type CallbackFunc func(data uint32)

func (f CallbackFunc) Done(data uint32) {
	f(data)
}
