package gloam

// Signal is a list of callbacks fired with a value of type T. Emit iterates a
// snapshot, so callbacks may connect or disconnect during emission; the change
// applies to the next Emit.
type Signal[T any] struct {
	conns []*Connection[T]
}

// Connection is a handle returned by Connect.
type Connection[T any] struct {
	fn     func(T)
	signal *Signal[T]
}

// Connect registers fn and returns its connection.
func (s *Signal[T]) Connect(fn func(T)) *Connection[T] {
	c := &Connection[T]{fn: fn, signal: s}
	s.conns = append(s.conns, c)
	return c
}

// Disconnect removes the connection from its signal. Calling it twice is a
// no-op.
func (c *Connection[T]) Disconnect() {
	if c == nil || c.signal == nil {
		return
	}
	s := c.signal
	c.signal = nil
	for i, other := range s.conns {
		if other == c {
			s.conns = append(s.conns[:i:i], s.conns[i+1:]...)
			return
		}
	}
}

// Emit calls every connected callback with v.
func (s *Signal[T]) Emit(v T) {
	if len(s.conns) == 0 {
		return
	}
	snapshot := make([]*Connection[T], len(s.conns))
	copy(snapshot, s.conns)
	for _, c := range snapshot {
		c.fn(v)
	}
}

// Len returns the number of connected callbacks.
func (s *Signal[T]) Len() int {
	return len(s.conns)
}
