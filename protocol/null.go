package protocol

import "time"

// Null is a transparent Layer: Encode and Decode forward unchanged. Used
// as a placeholder bottom or top of a stack under construction, and in
// tests that only care about the layers around it.
type Null struct{ Base }

func NewNull() *Null { return &Null{Base: NewBase()} }

func (n *Null) Encode(p []byte) error { return n.Down(p) }
func (n *Null) Decode(p []byte) error { return n.Up(p) }

// Idle tracks how long it has been since the last Encode or Decode, for a
// layer above (typically a keepalive or connection-timeout policy) to
// query without maintaining its own clock.
type Idle struct {
	Base
	last time.Time
	now  func() time.Time
}

func NewIdle() *Idle {
	i := &Idle{Base: NewBase(), now: time.Now}
	i.last = i.now()
	return i
}

func (i *Idle) Encode(p []byte) error {
	i.last = i.now()
	return i.Down(p)
}

func (i *Idle) Decode(p []byte) error {
	i.last = i.now()
	return i.Up(p)
}

// Since returns how long it has been since the last traffic in either
// direction passed through this layer.
func (i *Idle) Since() time.Duration { return i.now().Sub(i.last) }
