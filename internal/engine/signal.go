package engine

import "slices"

// Listener receives the single optional argument a Signal is fired with:
// an *Instance, a string, or nil.
type Listener func(arg any)

// Signal is a multi-cast event. Listeners run synchronously, in connection
// order, on the goroutine that calls Fire.
type Signal struct {
	name   string
	nextID uint64
	conns  []*Connection
}

// Connection is the handle returned by Connect. It stays valid after the
// listener is disconnected; Connected reports false from then on.
type Connection struct {
	id        uint64
	signal    *Signal
	fn        Listener
	once      bool
	connected bool
}

func NewSignal(name string) *Signal {
	return &Signal{name: name}
}

func (s *Signal) Name() string {
	return s.name
}

// Connect adds a listener. A nil listener yields a connection that is
// already disconnected.
func (s *Signal) Connect(fn Listener) *Connection {
	if fn == nil {
		return &Connection{signal: s}
	}
	s.nextID++
	c := &Connection{id: s.nextID, signal: s, fn: fn, connected: true}
	s.conns = append(s.conns, c)
	return c
}

// Once adds a listener that disconnects itself before its first call.
func (s *Signal) Once(fn Listener) *Connection {
	c := s.Connect(fn)
	c.once = true
	return c
}

// Fire invokes every listener connected at the time of the call. Listeners
// connected by a handler do not run for this firing; listeners disconnected
// by a handler are skipped.
func (s *Signal) Fire(arg any) {
	if len(s.conns) == 0 {
		return
	}
	for _, c := range slices.Clone(s.conns) {
		if !c.connected {
			continue
		}
		if c.once {
			c.Disconnect()
		}
		c.fn(arg)
	}
}

// DisconnectAll drops every listener. The signal can be connected to again.
func (s *Signal) DisconnectAll() {
	for _, c := range s.conns {
		c.connected = false
	}
	s.conns = nil
}

// ListenerCount returns the number of connected listeners.
func (s *Signal) ListenerCount() int {
	return len(s.conns)
}

func (c *Connection) ID() uint64 {
	return c.id
}

func (c *Connection) Connected() bool {
	return c.connected
}

// Disconnect removes the listener. Calling it twice is harmless.
func (c *Connection) Disconnect() {
	if !c.connected {
		return
	}
	c.connected = false
	s := c.signal
	for i, other := range s.conns {
		if other == c {
			s.conns = slices.Delete(s.conns, i, i+1)
			return
		}
	}
}
