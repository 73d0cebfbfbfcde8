package ticker

import (
	"sync"
	"time"
)

var (
	mu    sync.RWMutex
	start = time.Now()
)

// Initialize resets the tick origin. Ticks wrap around like the guest tick
// count does, so callers must only ever compare them through Since.
func Initialize() {
	mu.Lock()
	start = time.Now()
	mu.Unlock()
}

func Get() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return time.Since(start)
}

func GetAsMS() uint32 {
	return uint32(Get() / time.Millisecond)
}

// Since returns the milliseconds elapsed between the tick start and now,
// handling a wrap of the 32 bit counter.
func Since(start, now uint32) uint32 {
	if now < start {
		return 0xffffffff - start + now + 1
	}
	return now - start
}

// SinceMS is Since measured against the current tick.
func SinceMS(start uint32) uint32 {
	return Since(start, GetAsMS())
}
