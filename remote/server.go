package remote

import (
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/kichirouhoshino/wine-wayland/wl"
	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Target is the wayland surface of a window, as implemented by *wl.Surface.
type Target interface {
	CommitForeign(glvk bool, buf wlp.Buffer, done wlp.CallbackListener) bool
	CreateOrRefGLVK() error
	UnrefGLVK()
	Unref()
}

// Host gives the server access to the surfaces of this process.
type Host interface {
	// Target returns a referenced surface of hwnd, nil if it has none.
	Target(hwnd w32.HWND) Target
	CreateParams(l wlp.BufferParamsListener) (wlp.BufferParams, error)
	Flush() error
}

// ClientHost serves the surfaces of a wl.Client.
type ClientHost struct {
	*wl.Client
}

func (h ClientHost) Target(hwnd w32.HWND) Target {
	if s := h.ForWindow(hwnd); s != nil {
		return s
	}
	return nil
}

func (h ClientHost) CreateParams(l wlp.BufferParamsListener) (wlp.BufferParams, error) {
	if h.LinuxDmabuf == nil {
		return nil, errors.New("compositor lacks zwp_linux_dmabuf_v1")
	}
	return h.LinuxDmabuf.CreateParams(l)
}

type surfaceKey struct {
	hwnd w32.HWND
	typ  SurfaceType
}

type surface struct {
	surfaceKey
	ref       int
	target    Target
	buffers   map[*buffer]struct{}
	throttles map[*throttle]struct{}
}

type buffer struct {
	s        *Server
	owner    *surface
	wl       wlp.Buffer
	released *Event
}

type throttle struct {
	s     *Server
	owner *surface
	event *Event
}

// Server commits buffers sent by rendering processes to the surfaces of
// this process. Each (window, surface type) pair is reference counted
// across its proxies.
type Server struct {
	host Host

	mu       *sync.Mutex
	surfaces map[surfaceKey]*surface
	detached map[*buffer]struct{}

	listener *net.UnixListener
	conns    map[*net.UnixConn]struct{}
	closed   atomic.Bool
	wg       sync.WaitGroup
}

func NewServer(host Host) *Server {
	return &Server{
		host:     host,
		mu:       &sync.Mutex{},
		surfaces: make(map[surfaceKey]*surface),
		detached: make(map[*buffer]struct{}),
		conns:    make(map[*net.UnixConn]struct{}),
	}
}

// Listen binds the server socket, replacing a stale one.
func (s *Server) Listen(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "unable to create socket directory")
	}
	os.Remove(path)
	addr, err := net.ResolveUnixAddr("unixpacket", path)
	if err != nil {
		return errors.Wrapf(err, "unable to resolve socket address (%s)", path)
	}
	l, err := net.ListenUnix("unixpacket", addr)
	if err != nil {
		return errors.Wrapf(err, "unable to listen at (%s)", path)
	}
	s.listener = l
	log.WithField("path", path).Debug("remote surface server listening")
	return nil
}

// Serve accepts proxies until Close.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return errors.Wrap(err, "accept failed")
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn *net.UnixConn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	// references still held when the proxy goes away are dropped
	held := make(map[surfaceKey]int)
	defer func() {
		for k, n := range held {
			for ; n > 0; n-- {
				s.Handle(&Message{Type: MessageDestroy, Window: k.hwnd, Surface: k.typ})
			}
		}
	}()

	data := make([]byte, messageSize+1)
	oob := make([]byte, unix.CmsgSpace((MaxPlanes+2)*4))
	for {
		n, oobn, flags, _, err := conn.ReadMsgUnix(data, oob)
		if err != nil || (n == 0 && oobn == 0) {
			return
		}
		var fds []int
		if oobn > 0 {
			fds, err = parseRights(oob[:oobn])
			if err != nil {
				log.WithError(err).Warn("bad control message")
				return
			}
		}
		if flags&unix.MSG_CTRUNC != 0 {
			closeFDs(fds)
			log.Warn("dropping message with truncated fds")
			continue
		}
		m, err := Decode(data[:n], fds)
		if err != nil {
			log.WithError(err).Warn("dropping malformed message")
			continue
		}
		k := surfaceKey{m.Window, m.Surface}
		switch m.Type {
		case MessageCreate:
			held[k]++
		case MessageDestroy:
			if held[k] == 0 {
				continue
			}
			held[k]--
		}
		s.Handle(m)
	}
}

func parseRights(oob []byte) ([]int, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse control message")
	}
	var fds []int
	for _, msg := range msgs {
		f, err := unix.ParseUnixRights(&msg)
		if err != nil {
			continue
		}
		fds = append(fds, f...)
	}
	return fds, nil
}

// Handle processes one proxy request.
func (s *Server) Handle(m *Message) {
	l := log.WithFields(logrus.Fields{"hwnd": m.Window, "type": m.Surface, "msg": m.Type})
	l.Trace("remote surface message")
	switch m.Type {
	case MessageCreate:
		s.handleCreate(m, l)
	case MessageDestroy:
		s.handleDestroy(m)
	case MessageCommit:
		s.handleCommit(m, l)
	case MessageDispatchEvents:
		if err := s.host.Flush(); err != nil {
			l.WithError(err).Warn("flush failed")
		}
	default:
		l.Warn("unknown remote surface message")
	}
}

func acquire(t Target, typ SurfaceType) error {
	if typ == SurfaceGLVK {
		// the GL/VK child holds its own reference to the parent
		defer t.Unref()
		return t.CreateOrRefGLVK()
	}
	return nil
}

func release(t Target, typ SurfaceType) {
	if typ == SurfaceGLVK {
		t.UnrefGLVK()
	} else {
		t.Unref()
	}
}

func (s *Server) handleCreate(m *Message, l *logrus.Entry) {
	if m.Surface != SurfaceNormal && m.Surface != SurfaceGLVK {
		l.Warn("invalid surface type")
		return
	}
	t := s.host.Target(m.Window)
	if t == nil {
		l.Warn("window has no surface")
		return
	}
	if err := acquire(t, m.Surface); err != nil {
		l.WithError(err).Error("unable to create remote surface")
		return
	}

	k := surfaceKey{m.Window, m.Surface}
	s.mu.Lock()
	rs := s.surfaces[k]
	if rs == nil {
		s.surfaces[k] = &surface{
			surfaceKey: k,
			ref:        1,
			target:     t,
			buffers:    make(map[*buffer]struct{}),
			throttles:  make(map[*throttle]struct{}),
		}
		s.mu.Unlock()
		return
	}
	rs.ref++
	// the window may have got a new surface since
	old := rs.target
	rs.target = t
	s.mu.Unlock()
	release(old, m.Surface)
}

func (s *Server) handleDestroy(m *Message) {
	k := surfaceKey{m.Window, m.Surface}
	s.mu.Lock()
	rs := s.surfaces[k]
	if rs == nil {
		s.mu.Unlock()
		return
	}
	rs.ref--
	if rs.ref > 0 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.destroySurface(rs)
}

func (s *Server) destroySurface(rs *surface) {
	s.mu.Lock()
	if s.surfaces[rs.surfaceKey] == rs {
		delete(s.surfaces, rs.surfaceKey)
	}
	buffers, throttles := rs.buffers, rs.throttles
	rs.buffers, rs.throttles = nil, nil
	s.mu.Unlock()

	for b := range buffers {
		b.finish()
	}
	for t := range throttles {
		t.finish()
	}
	release(rs.target, rs.typ)
	log.WithFields(logrus.Fields{"hwnd": rs.hwnd, "type": rs.typ}).Debug("remote surface destroyed")
}

// DestroyWindow drops every remote surface of hwnd whatever its reference
// count.
func (s *Server) DestroyWindow(hwnd w32.HWND) {
	s.mu.Lock()
	var doomed []*surface
	for k, rs := range s.surfaces {
		if k.hwnd == hwnd {
			doomed = append(doomed, rs)
		}
	}
	s.mu.Unlock()
	for _, rs := range doomed {
		s.destroySurface(rs)
	}
}

type paramsListener struct {
	l *logrus.Entry
}

func (p paramsListener) Failed() {
	p.l.Error("compositor rejected dma-buf")
}

func (s *Server) createBuffer(m *Message, l *logrus.Entry) (wlp.Buffer, *buffer, error) {
	defer closeFDs(m.Buffer.FDs[:m.Buffer.Planes])
	params, err := s.host.CreateParams(paramsListener{l})
	if err != nil {
		return nil, nil, err
	}
	defer params.Destroy()
	for i := 0; i < m.Buffer.Planes; i++ {
		if err := params.Add(m.Buffer.FDs[i], uint32(i), m.Buffer.Offsets[i], m.Buffer.Strides[i], m.Buffer.Modifier); err != nil {
			return nil, nil, errors.Wrapf(err, "unable to add plane %d", i)
		}
	}
	b := &buffer{s: s, released: m.Released}
	wb, err := params.CreateImmed(m.Buffer.Width, m.Buffer.Height, m.Buffer.Format, 0, bufferListener{b})
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to create dma-buf buffer")
	}
	b.wl = wb
	return wb, b, nil
}

func (s *Server) handleCommit(m *Message, l *logrus.Entry) {
	fail := func() {
		if m.Released != nil {
			m.Released.Set()
			m.Released.Close()
		}
		if m.Throttle != nil {
			m.Throttle.Set()
			m.Throttle.Close()
		}
	}

	s.mu.Lock()
	rs := s.surfaces[surfaceKey{m.Window, m.Surface}]
	s.mu.Unlock()
	if rs == nil {
		closeFDs(m.Buffer.FDs[:m.Buffer.Planes])
		l.Warn("commit to unknown remote surface")
		fail()
		return
	}

	wb, b, err := s.createBuffer(m, l)
	if err != nil {
		l.WithError(err).Error("unable to import remote buffer")
		fail()
		return
	}

	s.mu.Lock()
	if s.surfaces[rs.surfaceKey] != rs {
		s.mu.Unlock()
		l.Warn("remote surface destroyed during commit")
		b.finish()
		if m.Throttle != nil {
			m.Throttle.Set()
			m.Throttle.Close()
		}
		return
	}
	if m.Released != nil {
		b.owner = rs
		rs.buffers[b] = struct{}{}
	} else {
		// detached buffers outlive their remote surface
		s.detached[b] = struct{}{}
	}
	var th *throttle
	if m.Throttle != nil {
		th = &throttle{s: s, owner: rs, event: m.Throttle}
		rs.throttles[th] = struct{}{}
	}
	target := rs.target
	s.mu.Unlock()

	var done wlp.CallbackListener
	if th != nil {
		done = th
	}
	if !target.CommitForeign(rs.typ == SurfaceGLVK, wb, done) {
		l.Trace("remote commit dropped")
		s.releaseBuffer(b)
		if th != nil {
			th.Done(0)
		}
	}
}

// releaseBuffer forgets b and signals its owner.
func (s *Server) releaseBuffer(b *buffer) {
	s.mu.Lock()
	if b.owner != nil {
		if _, ok := b.owner.buffers[b]; !ok {
			s.mu.Unlock()
			return
		}
		delete(b.owner.buffers, b)
	} else {
		if _, ok := s.detached[b]; !ok {
			s.mu.Unlock()
			return
		}
		delete(s.detached, b)
	}
	s.mu.Unlock()
	b.finish()
}

func (b *buffer) finish() {
	if b.released != nil {
		b.released.Set()
		b.released.Close()
	}
	b.wl.Destroy()
}

type bufferListener struct {
	b *buffer
}

func (l bufferListener) Release() {
	l.b.s.releaseBuffer(l.b)
}

// Done runs on the frame callback of a throttled commit.
func (t *throttle) Done(uint32) {
	t.s.mu.Lock()
	if _, ok := t.owner.throttles[t]; !ok {
		t.s.mu.Unlock()
		return
	}
	delete(t.owner.throttles, t)
	t.s.mu.Unlock()
	t.finish()
}

func (t *throttle) finish() {
	t.event.Set()
	t.event.Close()
}

// Close stops accepting proxies and destroys every remote surface.
func (s *Server) Close() error {
	s.closed.Store(true)
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()

	s.mu.Lock()
	var doomed []*surface
	for _, rs := range s.surfaces {
		doomed = append(doomed, rs)
	}
	detached := s.detached
	s.detached = make(map[*buffer]struct{})
	s.mu.Unlock()
	for _, rs := range doomed {
		s.destroySurface(rs)
	}
	for b := range detached {
		b.finish()
	}
	return err
}
