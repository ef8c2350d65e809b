// Package protocol implements the layered transport stack described in
// spec.md §4.D: independent, stackable codecs that each own one concern
// (escaping, segmentation, checksums, retransmission) and compose into a
// bidirectional pipe between a debugger or synchronizer and the wire.
//
// The composition style mirrors the teacher's Store/ValueStore/GroupStore
// interface embedding in package.go: a small interface (Layer) that
// concrete types satisfy directly, plus a Base helper that concrete
// layers embed to get the up/down wiring for free, the way the teacher's
// MsgConn in msg.go carries a log.Logger pair and a bounded write channel
// that every layer built on top of it inherits.
package protocol

import (
	"log"
	"os"
)

// Layer is one codec in a protocol stack. Decode is called with bytes
// arriving from below (closer to the wire); Encode is called with bytes
// headed down to the wire from above. A Layer is free to buffer, split,
// or merge what it's given before calling the corresponding method on
// its neighbor.
type Layer interface {
	// Decode processes bytes received from the layer below and forwards
	// whatever it produces to the layer above via its up handle.
	Decode(p []byte) error
	// Encode processes bytes received from the layer above and forwards
	// whatever it produces to the layer below via its down handle.
	Encode(p []byte) error
	// MTU returns the largest payload this layer can Encode in one call
	// without the result being split across more than one unit at the
	// layer below, or 0 if the layer imposes no bound of its own.
	MTU() int
	// Flush pushes out any data this layer is holding onto, even if it
	// would otherwise wait for more to batch with it.
	Flush() error
	// Reset clears transient state (partial frames, pending acks) after
	// a connection reset, without tearing down the stack itself.
	Reset()
	// Wrap installs up as the layer this Layer calls into on Decode.
	Wrap(up Layer)
	// Stack installs down as the layer this Layer calls into on Encode.
	// Wiring is one-directional; Chain sets up both directions.
	Stack(down Layer)
}

// Base implements the wiring every concrete Layer needs (up/down
// pointers, a logger pair in the teacher's style) so concrete layers
// need only implement Decode/Encode/MTU.
type Base struct {
	up, down Layer

	LogError   *log.Logger
	LogWarning *log.Logger
}

// NewBase returns a Base with stderr loggers, matching the default
// loggers MsgConn constructs for itself.
func NewBase() Base {
	return Base{
		LogError:   log.New(os.Stderr, "", log.LstdFlags),
		LogWarning: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (b *Base) Wrap(up Layer)    { b.up = up }
func (b *Base) Stack(down Layer) { b.down = down }

// Up forwards decoded bytes to the layer above, if one is wired.
func (b *Base) Up(p []byte) error {
	if b.up == nil {
		return nil
	}
	return b.up.Decode(p)
}

// Down forwards encoded bytes to the layer below, if one is wired.
func (b *Base) Down(p []byte) error {
	if b.down == nil {
		return nil
	}
	return b.down.Encode(p)
}

// DownMTU reports the MTU of the layer below, or 0 if there is none.
func (b *Base) DownMTU() int {
	if b.down == nil {
		return 0
	}
	return b.down.MTU()
}

func (b *Base) Flush() error { return nil }
func (b *Base) Reset()       {}
func (b *Base) MTU() int     { return 0 }

// Chain wires layers bottom-to-top (layers[0] is closest to the wire) and
// returns the topmost layer, the one a debugger or synchronizer should
// call Encode on.
func Chain(layers ...Layer) Layer {
	for i := 0; i < len(layers)-1; i++ {
		layers[i+1].Stack(layers[i])
		layers[i].Wrap(layers[i+1])
	}
	return layers[len(layers)-1]
}
