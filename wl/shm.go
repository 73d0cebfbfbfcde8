package wl

import (
	"sync"
	"sync/atomic"

	"github.com/kichirouhoshino/wine-wayland/wl/wlp"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ShmBuffer is a wl_buffer backed by a memfd mapping. Its size is in guest
// units.
type ShmBuffer struct {
	Width  int32
	Height int32
	Stride int32
	Format uint32
	Data   []byte

	busy             atomic.Bool
	destroyOnRelease atomic.Bool
	once             sync.Once
	buffer           wlp.Buffer
}

// NewShmBuffer allocates a zeroed width x height buffer through the shm
// global of c.
func NewShmBuffer(c *Client, width, height int32, format uint32) (*ShmBuffer, error) {
	if c.Shm == nil {
		return nil, errors.New("no shm global")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid buffer size %dx%d", width, height)
	}
	stride := width * 4
	size := int(stride) * int(height)

	fd, err := unix.MemfdCreate("wayland-shm", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, errors.Wrap(err, "memfd_create failed")
	}
	defer unix.Close(fd)
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, errors.Wrap(err, "unable to size shm file")
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "unable to map shm file")
	}

	b := &ShmBuffer{Width: width, Height: height, Stride: stride, Format: format, Data: data}
	pool, err := c.Shm.CreatePool(fd, int32(size))
	if err != nil {
		unix.Munmap(data)
		return nil, errors.Wrap(err, "unable to create shm pool")
	}
	b.buffer, err = pool.CreateBuffer(0, width, height, stride, format, shmBufferListener{b})
	pool.Destroy()
	if err != nil {
		unix.Munmap(data)
		return nil, errors.Wrap(err, "unable to create shm buffer")
	}
	log.Tracef("created %dx%d shm buffer", width, height)
	return b, nil
}

func (b *ShmBuffer) Proxy() wlp.Buffer {
	return b.buffer
}

func (b *ShmBuffer) Size() (int32, int32) {
	return b.Width, b.Height
}

// Busy reports whether the compositor may still read the buffer.
func (b *ShmBuffer) Busy() bool {
	return b.busy.Load()
}

func (b *ShmBuffer) SetBusy(busy bool) {
	b.busy.Store(busy)
}

// DestroyOnRelease makes the buffer destroy itself once the compositor
// releases it.
func (b *ShmBuffer) DestroyOnRelease() {
	b.destroyOnRelease.Store(true)
}

func (b *ShmBuffer) Destroy() {
	b.once.Do(func() {
		if b.buffer != nil {
			b.buffer.Destroy()
		}
		if b.Data != nil {
			unix.Munmap(b.Data)
			b.Data = nil
		}
	})
}

type shmBufferListener struct {
	b *ShmBuffer
}

func (l shmBufferListener) Release() {
	l.b.SetBusy(false)
	if l.b.destroyOnRelease.Load() {
		l.b.Destroy()
	}
}
