package protocol

// Loopback is the bottom-most layer for a stack under test: whatever is
// Encode'd is queued and handed back to Decode on the next Poll call,
// standing in for an actual transport the way the debugger's embedded
// test doubles stand in for a real serial link.
type Loopback struct {
	Base
	queue [][]byte
}

func NewLoopback() *Loopback { return &Loopback{Base: NewBase()} }

func (l *Loopback) Encode(p []byte) error {
	l.queue = append(l.queue, append([]byte{}, p...))
	return nil
}

func (l *Loopback) Decode(p []byte) error { return l.Up(p) }

// Poll delivers every frame queued by Encode to the layer above, in FIFO
// order, and reports how many frames were delivered.
func (l *Loopback) Poll() (int, error) {
	n := len(l.queue)
	for _, frame := range l.queue {
		if err := l.Up(frame); err != nil {
			return n, err
		}
	}
	l.queue = l.queue[:0]
	return n, nil
}

func (l *Loopback) Reset() { l.queue = nil }

// Callback is a pass-through layer that invokes a user function on every
// decoded frame, the wiring point a poll.Pollable of TypeCallback attaches
// to so an application can react to inbound traffic without its own layer.
type Callback struct {
	Base
	OnDecode func(p []byte)
}

func NewCallback(onDecode func(p []byte)) *Callback {
	return &Callback{Base: NewBase(), OnDecode: onDecode}
}

func (c *Callback) Encode(p []byte) error { return c.Down(p) }

func (c *Callback) Decode(p []byte) error {
	if c.OnDecode != nil {
		c.OnDecode(p)
	}
	return c.Up(p)
}
