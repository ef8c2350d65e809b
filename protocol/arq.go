package protocol

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// General ARQ byte layout, matching spec.md §6 bit-for-bit: the low 6
// bits carry a rolling sequence number, AckFlag marks an
// acknowledgement, and NopFlag marks a keepalive (or, combined with
// seq 0, a peer reset).
const (
	arqSeqMask = 0x3f
	arqAckFlag = 0x80
	arqNopFlag = 0x40
)

// Clock abstracts time.Now so retransmit scheduling is testable without
// sleeping.
type Clock interface{ Now() time.Time }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type arqMessage struct {
	seq     byte
	payload []byte
}

// Arq is a stop-and-wait automatic-repeat-request layer for
// bidirectional streams: exactly one outbound message is in flight at a
// time, held in an encode queue until the peer acks it, retransmitted on
// an exponential backoff (via backoff.BackOff) rather than a fixed timer.
type Arq struct {
	Base

	mu      sync.Mutex
	queue   []arqMessage
	nextSeq byte // rolling counter, 1..63; 0 is reserved for the reset signal

	lastInSeq  byte
	haveLastIn bool

	retransmitCount     int
	retransmitThreshold int
	onRetransmit        func()

	maxEncodeBuffer int
	onOverflow      func(payload []byte) (drop bool)

	newBackoff  func() backoff.BackOff
	curBackoff  backoff.BackOff
	nextRetryAt time.Time
	timer       Clock
}

// NewArq returns an Arq layer using an exponential backoff (100ms
// initial interval, growing by the backoff library's default multiplier
// of 1.5 with its default randomization, capped at 5s) for retransmits, an encode
// queue capped at 64 messages, and a retransmit-callback threshold of 4.
func NewArq() *Arq {
	return &Arq{
		Base:                NewBase(),
		nextSeq:             1,
		retransmitThreshold: 4,
		maxEncodeBuffer:     64,
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		timer: realClock{},
	}
}

func (a *Arq) bumpSeq() byte {
	s := a.nextSeq
	a.nextSeq++
	if a.nextSeq > arqSeqMask {
		a.nextSeq = 1
	}
	return s
}

// Encode queues p for delivery, transmitting it immediately if nothing
// else is currently in flight.
func (a *Arq) Encode(p []byte) error {
	a.mu.Lock()
	if len(a.queue) >= a.maxEncodeBuffer {
		drop := true
		if a.onOverflow != nil {
			drop = a.onOverflow(p)
		}
		if drop {
			a.mu.Unlock()
			return nil
		}
	}
	msg := arqMessage{seq: a.bumpSeq(), payload: append([]byte{}, p...)}
	a.queue = append(a.queue, msg)
	sendNow := len(a.queue) == 1
	a.mu.Unlock()
	if sendNow {
		return a.transmitHead()
	}
	return nil
}

func (a *Arq) transmitHead() error {
	a.mu.Lock()
	if len(a.queue) == 0 {
		a.mu.Unlock()
		return nil
	}
	msg := a.queue[0]
	a.curBackoff = a.newBackoff()
	a.nextRetryAt = a.timer.Now().Add(a.curBackoff.NextBackOff())
	a.mu.Unlock()
	return a.Down(append([]byte{msg.seq}, msg.payload...))
}

// KeepAlive injects a Nop-flagged packet carrying no payload so the
// remote's ack confirms the link is still alive.
func (a *Arq) KeepAlive() error {
	a.mu.Lock()
	seq := a.bumpSeq()
	a.mu.Unlock()
	return a.Down([]byte{seq | arqNopFlag})
}

func (a *Arq) sendReset() error { return a.Down([]byte{arqNopFlag}) }
func (a *Arq) sendAck(seq byte) error {
	return a.Down([]byte{seq | arqAckFlag})
}

func (a *Arq) Decode(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	hdr := p[0]
	payload := p[1:]
	seq := hdr & arqSeqMask
	isAck := hdr&arqAckFlag != 0
	isNop := hdr&arqNopFlag != 0

	if isAck {
		a.mu.Lock()
		if len(a.queue) > 0 && a.queue[0].seq == seq {
			a.queue = a.queue[1:]
			a.retransmitCount = 0
		}
		a.mu.Unlock()
		return a.transmitHead()
	}

	if isNop && seq == 0 {
		// Peer reset: restart our own sequencing and replay anything
		// still outstanding under fresh sequence numbers.
		a.mu.Lock()
		a.haveLastIn = false
		a.nextSeq = 1
		for i := range a.queue {
			a.queue[i].seq = a.bumpSeq()
		}
		a.mu.Unlock()
		if err := a.sendReset(); err != nil {
			return err
		}
		return a.transmitHead()
	}

	if isNop {
		return a.sendAck(seq)
	}

	a.mu.Lock()
	dup := a.haveLastIn && seq == a.lastInSeq
	if !dup {
		a.lastInSeq = seq
		a.haveLastIn = true
	}
	a.mu.Unlock()
	if !dup {
		if err := a.Up(payload); err != nil {
			return err
		}
	}
	return a.sendAck(seq)
}

// Poll retransmits the in-flight message if its backoff interval has
// elapsed, invoking onRetransmit once the retransmit count for this
// message crosses retransmitThreshold. Returns 1 if a retransmit
// occurred.
func (a *Arq) Poll() (int, error) {
	now := a.timer.Now()
	a.mu.Lock()
	due := len(a.queue) > 0 && !now.Before(a.nextRetryAt)
	var msg arqMessage
	if due {
		msg = a.queue[0]
		a.retransmitCount++
		a.nextRetryAt = now.Add(a.curBackoff.NextBackOff())
	}
	retransmitCount := a.retransmitCount
	threshold := a.retransmitThreshold
	cb := a.onRetransmit
	a.mu.Unlock()
	if !due {
		return 0, nil
	}
	if retransmitCount >= threshold && cb != nil {
		cb()
	}
	if err := a.Down(append([]byte{msg.seq}, msg.payload...)); err != nil {
		return 0, err
	}
	return 1, nil
}

func (a *Arq) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = nil
	a.nextSeq = 1
	a.haveLastIn = false
	a.retransmitCount = 0
}

// DebugArq is the debugger-side reliability layer: request/response
// discipline with 7-bit varint sequence numbers (spec.md §6), where a
// "precious" response is buffered so a duplicate request re-emits it
// verbatim, and a "purgeable" response is sent once and not retained.
type DebugArq struct {
	Base

	haveLastReq bool
	lastReqSeq  uint32
	lastResp    []byte
	precious    bool

	maxBuffer int

	// NextPrecious, set by the caller before Encode, controls whether
	// that response is buffered for duplicate-request replay.
	NextPrecious bool
}

// NewDebugArq returns a DebugArq with a 4KiB response buffer cap;
// responses larger than that are always sent purgeable.
func NewDebugArq() *DebugArq {
	return &DebugArq{Base: NewBase(), maxBuffer: 4096}
}

func encodeDebugSeq(seq uint32, reset bool) []byte {
	if seq <= 0x3f {
		b := byte(seq)
		if reset {
			b |= 0x80
		}
		return []byte{b}
	}
	first := byte(seq&0x3f) | 0x40
	if reset {
		first |= 0x80
	}
	out := []byte{first}
	rest := seq >> 6
	for {
		b := byte(rest & 0x7f)
		rest >>= 7
		if rest != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if rest == 0 {
			break
		}
	}
	return out
}

func decodeDebugSeq(p []byte) (seq uint32, reset bool, n int, ok bool) {
	if len(p) == 0 {
		return 0, false, 0, false
	}
	first := p[0]
	reset = first&0x80 != 0
	multi := first&0x40 != 0
	seq = uint32(first & 0x3f)
	n = 1
	if !multi {
		return seq, reset, n, true
	}
	shift := uint(6)
	for {
		if n >= len(p) {
			return 0, false, 0, false
		}
		b := p[n]
		seq |= uint32(b&0x7f) << shift
		n++
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	return seq, reset, n, true
}

func (d *DebugArq) Encode(p []byte) error {
	precious := d.NextPrecious && len(p) <= d.maxBuffer
	d.NextPrecious = false
	if precious {
		d.lastResp = append([]byte{}, p...)
		d.precious = true
	} else {
		d.lastResp = nil
		d.precious = false
	}
	return d.Down(append(encodeDebugSeq(d.lastReqSeq, false), p...))
}

func (d *DebugArq) Decode(p []byte) error {
	seq, reset, n, ok := decodeDebugSeq(p)
	if !ok {
		return nil
	}
	if reset {
		d.haveLastReq = false
	}
	payload := p[n:]
	if d.haveLastReq && seq == d.lastReqSeq {
		if d.precious && d.lastResp != nil {
			return d.Down(append(encodeDebugSeq(seq, false), d.lastResp...))
		}
		return nil
	}
	d.lastReqSeq = seq
	d.haveLastReq = true
	return d.Up(payload)
}

func (d *DebugArq) Reset() {
	d.haveLastReq = false
	d.lastResp = nil
	d.precious = false
}
