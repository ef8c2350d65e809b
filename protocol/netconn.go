package protocol

import "net"

// NetConn is a bottom-of-stack Layer over a net.Conn: Encode writes
// directly to the socket, and ReadLoop pumps inbound bytes up the stack
// until a Read fails (for example because the connection closed). It has no notion of
// message framing of its own; whatever sits above it (Segmentation,
// Terminal, ...) is responsible for carving the byte stream into units.
type NetConn struct {
	Base
	conn net.Conn
}

// NewNetConn wraps conn as the bottom layer of a protocol stack.
func NewNetConn(conn net.Conn) *NetConn {
	return &NetConn{Base: NewBase(), conn: conn}
}

func (n *NetConn) Encode(p []byte) error {
	_, err := n.conn.Write(p)
	return err
}

func (n *NetConn) Decode(p []byte) error { return n.Up(p) }

// ReadLoop blocks reading from the connection and delivering each read
// up the stack, until Read returns an error (including a caller-driven
// Close). It is meant to run in its own goroutine, mirroring the
// teacher's MsgConn.reading pattern in msg.go.
func (n *NetConn) ReadLoop() error {
	buf := make([]byte, 4096)
	for {
		nr, err := n.conn.Read(buf)
		if nr > 0 {
			if upErr := n.Up(append([]byte(nil), buf[:nr]...)); upErr != nil {
				n.LogError.Print("stored: delivering inbound bytes: ", upErr)
			}
		}
		if err != nil {
			return err
		}
	}
}

// Close closes the underlying connection.
func (n *NetConn) Close() error { return n.conn.Close() }
