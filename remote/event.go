package remote

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Event is a manual-reset signal backed by an eventfd, so it can be handed
// to another process. Once set it stays set.
type Event struct {
	fd   int
	once sync.Once
}

func NewEvent() (*Event, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, errors.Wrap(err, "eventfd failed")
	}
	return &Event{fd: fd}, nil
}

// EventFromFD takes ownership of an eventfd received from another process.
func EventFromFD(fd int) *Event {
	return &Event{fd: fd}
}

func (e *Event) FD() int {
	return e.fd
}

func (e *Event) Set() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(e.fd, buf[:]); err != nil && err != unix.EAGAIN {
		return errors.Wrap(err, "unable to signal event")
	}
	return nil
}

func (e *Event) IsSet() bool {
	ok, _ := e.Wait(0)
	return ok
}

// Wait blocks until the event is set or timeout passes. A negative timeout
// waits forever.
func (e *Event) Wait(timeout time.Duration) (bool, error) {
	n, err := WaitAny([]*Event{e}, timeout)
	return n == 0, err
}

func (e *Event) Close() error {
	var err error
	e.once.Do(func() { err = unix.Close(e.fd) })
	return err
}

// WaitAny returns the index of a set event, or -1 when timeout passed first.
func WaitAny(events []*Event, timeout time.Duration) (int, error) {
	fds := make([]unix.PollFd, len(events))
	for i, e := range events {
		fds[i] = unix.PollFd{Fd: int32(e.fd), Events: unix.POLLIN}
	}
	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return -1, errors.Wrap(err, "poll failed")
		}
		if n == 0 {
			return -1, nil
		}
		for i := range fds {
			if fds[i].Revents&unix.POLLIN != 0 {
				return i, nil
			}
		}
		return -1, errors.New("poll returned without a readable event")
	}
}
