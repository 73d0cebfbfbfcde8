package remote

import (
	"bytes"
	"encoding/binary"

	"github.com/kichirouhoshino/wine-wayland/w32"
	"github.com/pkg/errors"
)

type MessageType uint32

const (
	MessageCreate MessageType = iota
	MessageDestroy
	MessageCommit
	MessageDispatchEvents
)

func (t MessageType) String() string {
	switch t {
	case MessageCreate:
		return "create"
	case MessageDestroy:
		return "destroy"
	case MessageCommit:
		return "commit"
	case MessageDispatchEvents:
		return "dispatch_events"
	}
	return "unknown"
}

// SurfaceType selects the wayland surface of a window that remote content
// lands on.
type SurfaceType uint32

const (
	SurfaceNormal SurfaceType = iota
	SurfaceGLVK
)

type CommitMode uint32

const (
	// CommitNormal returns a released event.
	CommitNormal CommitMode = iota
	// CommitThrottled also returns an event set on the next frame callback.
	CommitThrottled
	// CommitDetached hands the buffer over for good.
	CommitDetached
)

const MaxPlanes = 4

// Buffer describes a dma-buf. The plane fds are sent along with the commit
// and stay owned by the caller.
type Buffer struct {
	Planes   int
	FDs      [MaxPlanes]int
	Strides  [MaxPlanes]uint32
	Offsets  [MaxPlanes]uint32
	Width    int32
	Height   int32
	Format   uint32
	Modifier uint64
}

// Message is one request from a rendering process to the process owning
// the window's surface.
type Message struct {
	Type    MessageType
	Window  w32.HWND
	Surface SurfaceType
	Mode    CommitMode
	Buffer  Buffer

	// set by Decode for commits
	Released *Event
	Throttle *Event
}

type header struct {
	Type        uint32
	Window      uint64
	Surface     uint32
	Mode        uint32
	Planes      uint32
	Strides     [MaxPlanes]uint32
	Offsets     [MaxPlanes]uint32
	Width       int32
	Height      int32
	Format      uint32
	Modifier    uint64
	HasReleased uint32
	HasThrottle uint32
}

var messageSize = binary.Size(header{})

// Encode returns the message bytes and the fds to pass along, plane fds
// first then the released and throttle events.
func (m *Message) Encode() ([]byte, []int, error) {
	if m.Buffer.Planes < 0 || m.Buffer.Planes > MaxPlanes {
		return nil, nil, errors.Errorf("invalid plane count %d", m.Buffer.Planes)
	}
	h := header{
		Type:     uint32(m.Type),
		Window:   uint64(m.Window),
		Surface:  uint32(m.Surface),
		Mode:     uint32(m.Mode),
		Planes:   uint32(m.Buffer.Planes),
		Strides:  m.Buffer.Strides,
		Offsets:  m.Buffer.Offsets,
		Width:    m.Buffer.Width,
		Height:   m.Buffer.Height,
		Format:   m.Buffer.Format,
		Modifier: m.Buffer.Modifier,
	}
	var fds []int
	if m.Type == MessageCommit {
		fds = append(fds, m.Buffer.FDs[:m.Buffer.Planes]...)
		if m.Released != nil {
			h.HasReleased = 1
			fds = append(fds, m.Released.FD())
		}
		if m.Throttle != nil {
			h.HasThrottle = 1
			fds = append(fds, m.Throttle.FD())
		}
	}
	buf := bytes.NewBuffer(make([]byte, 0, messageSize))
	if err := binary.Write(buf, binary.NativeEndian, &h); err != nil {
		return nil, nil, errors.Wrap(err, "unable to encode message")
	}
	return buf.Bytes(), fds, nil
}

// Decode parses a message and takes ownership of fds.
func Decode(data []byte, fds []int) (*Message, error) {
	m, err := decode(data, fds)
	if err != nil {
		closeFDs(fds)
		return nil, err
	}
	return m, nil
}

func decode(data []byte, fds []int) (*Message, error) {
	if len(data) != messageSize {
		return nil, errors.Errorf("bad message size %d", len(data))
	}
	var h header
	if err := binary.Read(bytes.NewReader(data), binary.NativeEndian, &h); err != nil {
		return nil, errors.Wrap(err, "unable to decode message")
	}
	if h.Planes > MaxPlanes {
		return nil, errors.Errorf("invalid plane count %d", h.Planes)
	}
	m := &Message{
		Type:    MessageType(h.Type),
		Window:  w32.HWND(h.Window),
		Surface: SurfaceType(h.Surface),
		Mode:    CommitMode(h.Mode),
		Buffer: Buffer{
			Planes:   int(h.Planes),
			Strides:  h.Strides,
			Offsets:  h.Offsets,
			Width:    h.Width,
			Height:   h.Height,
			Format:   h.Format,
			Modifier: h.Modifier,
		},
	}
	want := 0
	if m.Type == MessageCommit {
		want = int(h.Planes + h.HasReleased + h.HasThrottle)
	}
	if len(fds) != want {
		return nil, errors.Errorf("%s message carries %d fds, want %d", m.Type, len(fds), want)
	}
	if m.Type != MessageCommit {
		return m, nil
	}
	n := copy(m.Buffer.FDs[:], fds[:m.Buffer.Planes])
	fds = fds[n:]
	if h.HasReleased != 0 {
		m.Released = EventFromFD(fds[0])
		fds = fds[1:]
	}
	if h.HasThrottle != 0 {
		m.Throttle = EventFromFD(fds[0])
	}
	return m, nil
}

func closeFDs(fds []int) {
	for _, fd := range fds {
		closeFD(fd)
	}
}
