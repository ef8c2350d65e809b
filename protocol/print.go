package protocol

import "io"

// Print is a transparent pass-through layer that tees every frame to an
// io.Writer for inspection, the protocol-stack equivalent of the
// teacher's LogFunc hook: it observes without participating.
type Print struct {
	Base
	w       io.Writer
	prefix  string
}

// NewPrint returns a Print layer writing decoded and encoded frames to w,
// each line prefixed to tell the two directions apart.
func NewPrint(w io.Writer, prefix string) *Print {
	return &Print{Base: NewBase(), w: w, prefix: prefix}
}

func (p *Print) Encode(b []byte) error {
	io.WriteString(p.w, p.prefix+"> ")
	p.w.Write(b)
	io.WriteString(p.w, "\n")
	return p.Down(b)
}

func (p *Print) Decode(b []byte) error {
	io.WriteString(p.w, p.prefix+"< ")
	p.w.Write(b)
	io.WriteString(p.w, "\n")
	return p.Up(b)
}
