package event

// Message is a posted guest window message.
type Message struct {
	Window uintptr
	ID     uint32
	WParam uintptr
	LParam uintptr
	Time   uint32
}

// Filter reports whether a queued message should be kept.
type Filter func(userdata interface{}, msg Message) bool

// Watcher is notified of every pushed message before it is queued.
type Watcher struct {
	Callback Filter
	Userdata interface{}
}
