package location

import (
	"sync"
	"time"
)

// lastFix remembers the most recent reading so requests with a non-zero
// MaximumAge can be answered without touching the device.
type lastFix struct {
	mu      sync.Mutex
	reading Reading
	ok      bool
}

func (l *lastFix) get(maxAge time.Duration) (Reading, bool) {
	if maxAge <= 0 {
		return Reading{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ok || time.Since(l.reading.Timestamp) > maxAge {
		return Reading{}, false
	}
	return l.reading, true
}

func (l *lastFix) set(r Reading) {
	l.mu.Lock()
	l.reading = r
	l.ok = true
	l.mu.Unlock()
}
