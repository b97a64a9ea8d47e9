package events

import "sync"

// Recorder buffers the most recent events so transport layers can expose them
// to pollers. Older entries are evicted once the capacity is reached.
type Recorder struct {
	mu     sync.RWMutex
	buf    []Event
	cap    int
	cursor int
	full   bool
}

// NewRecorder returns a recorder retaining up to capacity events. A
// non-positive capacity defaults to 256.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 256
	}
	return &Recorder{buf: make([]Event, capacity), cap: capacity}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	r.buf[r.cursor] = evt
	r.cursor = (r.cursor + 1) % r.cap
	if r.cursor == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// Recent returns the buffered events in emission order, oldest first.
func (r *Recorder) Recent() []Event {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		out := make([]Event, r.cursor)
		copy(out, r.buf[:r.cursor])
		return out
	}
	out := make([]Event, 0, r.cap)
	out = append(out, r.buf[r.cursor:]...)
	out = append(out, r.buf[:r.cursor]...)
	return out
}
