package gloam

import "sync"

// EventLoop is the single-threaded dispatcher that owns all render state.
// Idle callbacks queued with AddIdle run on the next Dispatch; Post is the
// only method that may be called from other goroutines.
type EventLoop struct {
	idle []*IdleSource

	mu     sync.Mutex
	posted []func()
	wake   chan struct{}
}

// IdleSource is a queued idle callback. Remove cancels it if it has not run.
type IdleSource struct {
	fn      func()
	removed bool
}

// NewEventLoop creates an empty event loop.
func NewEventLoop() *EventLoop {
	return &EventLoop{wake: make(chan struct{}, 1)}
}

// AddIdle queues fn to run once on the next Dispatch.
func (l *EventLoop) AddIdle(fn func()) *IdleSource {
	s := &IdleSource{fn: fn}
	l.idle = append(l.idle, s)
	return s
}

// Remove cancels the idle callback.
func (s *IdleSource) Remove() {
	if s != nil {
		s.removed = true
	}
}

// Post queues fn from any goroutine. It runs at the start of the next
// Dispatch, before idle callbacks.
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Wake returns a channel that receives after Post. Hosts that block between
// frames can select on it.
func (l *EventLoop) Wake() <-chan struct{} {
	return l.wake
}

// Pending reports whether a Dispatch would run anything.
func (l *EventLoop) Pending() bool {
	l.mu.Lock()
	n := len(l.posted)
	l.mu.Unlock()
	if n > 0 {
		return true
	}
	for _, s := range l.idle {
		if !s.removed {
			return true
		}
	}
	return false
}

// Dispatch runs posted functions and then every idle callback that was queued
// before Dispatch started. Idle callbacks added while dispatching run on the
// following call. It returns the number of callbacks run.
func (l *EventLoop) Dispatch() int {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()

	n := 0
	for _, fn := range posted {
		fn()
		n++
	}

	idle := l.idle
	l.idle = nil
	for _, s := range idle {
		if s.removed {
			continue
		}
		s.removed = true
		s.fn()
		n++
	}
	return n
}
