package event

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kichirouhoshino/wine-wayland/ticker"
	"github.com/pkg/errors"
)

const MaxQueued = 65535

const (
	Add = iota
	Peek
	Get
)

var WaitTimeoutExceeded error = waitTimeoutError{}

type waitTimeoutError struct{}

func (waitTimeoutError) Error() string   { return "wait timeout exceeded" }
func (waitTimeoutError) Timeout() bool   { return true }
func (waitTimeoutError) Temporary() bool { return true }

type entry struct {
	msg  Message
	prev *entry
	next *entry
}

// Queue is a guest message queue. The zero value is not usable, call
// NewQueue.
type Queue struct {
	lock   *sync.Mutex
	signal chan struct{}

	count         int32
	maxEventsSeen int32

	head *entry
	tail *entry
	free *entry

	watchers []*Watcher
	wmu      *sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		lock:   &sync.Mutex{},
		wmu:    &sync.Mutex{},
		signal: make(chan struct{}, 1),
	}
}

func (q *Queue) add(msg Message) error {
	if atomic.LoadInt32(&q.count) >= MaxQueued {
		return errors.New("message queue is full")
	}

	var e *entry
	if q.free == nil {
		e = &entry{}
	} else {
		e = q.free
		q.free = q.free.next
	}
	e.msg = msg
	e.next = nil

	if q.tail != nil {
		q.tail.next = e
		e.prev = q.tail
		q.tail = e
	} else {
		if q.head != nil {
			panic("invalid queue state, tail exists without head")
		}
		q.head = e
		q.tail = e
		e.prev = nil
	}

	if n := atomic.AddInt32(&q.count, 1); n > q.maxEventsSeen {
		q.maxEventsSeen = n
	}
	return nil
}

func (q *Queue) cut(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if e == q.head {
		q.head = e.next
	}
	if e == q.tail {
		q.tail = e.prev
	}
	e.prev = nil
	e.next = q.free
	q.free = e
	atomic.AddInt32(&q.count, -1)
}

// Peep adds, peeks or removes messages in [minID, maxID]. For Peek and Get a
// nil slice only counts the matching messages.
func (q *Queue) Peep(msgs []Message, action int, minID, maxID uint32) (int, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	used := 0
	switch action {
	case Add:
		for _, msg := range msgs {
			if err := q.add(msg); err != nil {
				return used, errors.Wrap(err, "unable to add message")
			}
			used++
		}
	case Peek, Get:
		for e := q.head; e != nil && (msgs == nil || used < len(msgs)); {
			next := e.next
			if minID <= e.msg.ID && e.msg.ID <= maxID {
				if msgs != nil {
					msgs[used] = e.msg
					if action == Get {
						q.cut(e)
					}
				}
				used++
			}
			e = next
		}
	default:
		return 0, errors.New("invalid action type")
	}
	return used, nil
}

func (q *Queue) Len() int {
	return int(atomic.LoadInt32(&q.count))
}

// Push stamps and queues a message, notifying watchers first.
func (q *Queue) Push(msg Message) error {
	msg.Time = ticker.GetAsMS()

	q.wmu.Lock()
	for _, w := range q.watchers {
		w.Callback(w.Userdata, msg)
	}
	q.wmu.Unlock()

	if _, err := q.Peep([]Message{msg}, Add, 0, 0); err != nil {
		return errors.Wrap(err, "unable to add message to queue")
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

func (q *Queue) Poll() (Message, error) {
	return q.WaitTimeout(0)
}

func (q *Queue) Wait() (Message, error) {
	return q.WaitTimeout(-1)
}

// WaitTimeout returns the oldest message, waiting up to timeout for one to
// arrive. A negative timeout waits forever.
func (q *Queue) WaitTimeout(timeout time.Duration) (Message, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	buf := make([]Message, 1)
	for {
		n, err := q.Peep(buf, Get, 0, ^uint32(0))
		switch {
		case err != nil:
			return Message{}, errors.Wrap(err, "queue peep error")
		case n == 1:
			return buf[0], nil
		case timeout == 0:
			return Message{}, WaitTimeoutExceeded
		}

		select {
		case <-q.signal:
		case <-expired:
			return Message{}, WaitTimeoutExceeded
		}
	}
}

// Filter drops every queued message f rejects.
func (q *Queue) Filter(f Filter, userdata interface{}) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for e := q.head; e != nil; {
		next := e.next
		if !f(userdata, e.msg) {
			q.cut(e)
		}
		e = next
	}
}

func (q *Queue) AddWatch(watcher *Watcher) {
	q.wmu.Lock()
	defer q.wmu.Unlock()
	q.watchers = append(q.watchers, watcher)
}

func (q *Queue) DelWatch(watcher *Watcher) {
	q.wmu.Lock()
	defer q.wmu.Unlock()
	updated := q.watchers[:0]
	for _, w := range q.watchers {
		if w != watcher {
			updated = append(updated, w)
		}
	}
	q.watchers = updated
}
