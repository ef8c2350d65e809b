package protocol

// Terminal brackets each encoded message between an APC sequence
// (`ESC _`) and an ST sequence (`ESC \`), the ANSI escape pair a real
// terminal ignores as an "application program command" rather than
// rendering it, so debug traffic can share a line with human-readable
// output on the same link. Bytes arriving outside an APC/ST bracket are
// handed to NonDebug instead of Up.
type Terminal struct {
	Base
	inAPC   bool
	sawEsc  bool
	partial []byte

	// NonDebug receives bytes decoded outside of an APC/ST bracket, e.g.
	// ordinary log output sharing the link.
	NonDebug func(p []byte)
}

const (
	apcIntroducer byte = '_'
	stIntroducer  byte = '\\'
)

func NewTerminal() *Terminal { return &Terminal{Base: NewBase()} }

func (t *Terminal) Encode(p []byte) error {
	out := make([]byte, 0, len(p)+4)
	out = append(out, escByte, apcIntroducer)
	out = append(out, p...)
	out = append(out, escByte, stIntroducer)
	return t.Down(out)
}

func (t *Terminal) Decode(p []byte) error {
	for _, b := range p {
		switch {
		case t.sawEsc:
			t.sawEsc = false
			switch b {
			case apcIntroducer:
				t.inAPC = true
				t.partial = t.partial[:0]
			case stIntroducer:
				if t.inAPC {
					if err := t.Up(append([]byte{}, t.partial...)); err != nil {
						return err
					}
				}
				t.inAPC = false
			default:
				t.emitNonDebug(escByte)
				t.emitNonDebug(b)
			}
		case b == escByte:
			t.sawEsc = true
		case t.inAPC:
			t.partial = append(t.partial, b)
		default:
			t.emitNonDebug(b)
		}
	}
	return nil
}

func (t *Terminal) emitNonDebug(b byte) {
	if t.NonDebug != nil {
		t.NonDebug([]byte{b})
	}
}

func (t *Terminal) Reset() {
	t.inAPC = false
	t.sawEsc = false
	t.partial = nil
}
