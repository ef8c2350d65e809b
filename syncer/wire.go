package syncer

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Sync opcodes (spec.md §4.F/§6): lower case on a little-endian store,
// upper case on a big-endian one, so a peer can tell a store's
// endianness from the opcode byte alone before it has looked up the
// hash.
const (
	opHello   = 'h'
	opWelcome = 'w'
	opUpdate  = 'u'
	opBye     = 'b'
)

func opcodeFor(base byte, bigEndian bool) byte {
	if bigEndian {
		return base - ('a' - 'A')
	}
	return base
}

func baseOpcode(op byte) (base byte, bigEndian bool) {
	if op >= 'A' && op <= 'Z' {
		return op + ('a' - 'A'), true
	}
	return op, false
}

func orderFor(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func putWidth(dst []byte, v uint64, width int, order binary.ByteOrder) {
	var tmp [8]byte
	order.PutUint64(tmp[:], v)
	if order == binary.BigEndian {
		copy(dst, tmp[8-width:])
	} else {
		copy(dst, tmp[:width])
	}
}

func readWidth(src []byte, width int, order binary.ByteOrder) uint64 {
	var tmp [8]byte
	if order == binary.BigEndian {
		copy(tmp[8-width:], src[:width])
	} else {
		copy(tmp[:width], src[:width])
	}
	return order.Uint64(tmp[:])
}

func put16(dst []byte, v uint16, order binary.ByteOrder) { order.PutUint16(dst, v) }
func read16(src []byte, order binary.ByteOrder) uint16    { return order.Uint16(src) }

func encodeHash(hash uint64) []byte {
	s := strconv.FormatUint(hash, 10)
	out := make([]byte, len(s)+1)
	copy(out, s)
	return out
}

func decodeHash(p []byte) (hash uint64, rest []byte, err error) {
	i := 0
	for i < len(p) && p[i] != 0 {
		i++
	}
	if i == len(p) {
		return 0, nil, fmt.Errorf("syncer: truncated hash")
	}
	hash, err = strconv.ParseUint(string(p[:i]), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("syncer: bad hash: %w", err)
	}
	return hash, p[i+1:], nil
}

// encodeHello builds a Hello message: opcode, null-terminated hash,
// 16-bit local id.
func encodeHello(hash uint64, localID uint16, bigEndian bool) []byte {
	order := orderFor(bigEndian)
	body := encodeHash(hash)
	out := make([]byte, 1+len(body)+2)
	out[0] = opcodeFor(opHello, bigEndian)
	copy(out[1:], body)
	put16(out[1+len(body):], localID, order)
	return out
}

type helloMsg struct {
	hash    uint64
	localID uint16
}

func decodeHello(p []byte, order binary.ByteOrder) (helloMsg, error) {
	hash, rest, err := decodeHash(p)
	if err != nil {
		return helloMsg{}, err
	}
	if len(rest) != 2 {
		return helloMsg{}, fmt.Errorf("syncer: malformed hello")
	}
	return helloMsg{hash: hash, localID: read16(rest, order)}, nil
}

// encodeWelcome builds a Welcome message: opcode, hello_id, welcome_id,
// then the full store buffer verbatim as the remainder of the message.
func encodeWelcome(helloID, welcomeID uint16, buf []byte, bigEndian bool) []byte {
	order := orderFor(bigEndian)
	out := make([]byte, 1+2+2+len(buf))
	out[0] = opcodeFor(opWelcome, bigEndian)
	put16(out[1:], helloID, order)
	put16(out[3:], welcomeID, order)
	copy(out[5:], buf)
	return out
}

type welcomeMsg struct {
	helloID, welcomeID uint16
	buffer             []byte
}

func decodeWelcome(p []byte, order binary.ByteOrder) (welcomeMsg, error) {
	if len(p) < 4 {
		return welcomeMsg{}, fmt.Errorf("syncer: truncated welcome")
	}
	return welcomeMsg{
		helloID:   read16(p, order),
		welcomeID: read16(p[2:], order),
		buffer:    p[4:],
	}, nil
}

// updateRecord is one key/length/bytes triple within an Update message.
type updateRecord struct {
	key   uint64
	value []byte
}

// encodeUpdate builds an Update message for id, with each record's key
// and length sized to keyWidth bytes.
func encodeUpdate(id uint16, keyWidth int, records []updateRecord, bigEndian bool) []byte {
	order := orderFor(bigEndian)
	size := 1 + 2
	for _, r := range records {
		size += keyWidth*2 + len(r.value)
	}
	out := make([]byte, size)
	out[0] = opcodeFor(opUpdate, bigEndian)
	put16(out[1:], id, order)
	off := 3
	for _, r := range records {
		putWidth(out[off:], r.key, keyWidth, order)
		off += keyWidth
		putWidth(out[off:], uint64(len(r.value)), keyWidth, order)
		off += keyWidth
		copy(out[off:], r.value)
		off += len(r.value)
	}
	return out
}

// decodeUpdateID peels off an Update message's 16-bit id, which is fixed
// width independent of the store's key width; the remaining records can
// only be decoded once the id resolves to a store (and thus a key width).
func decodeUpdateID(p []byte, order binary.ByteOrder) (id uint16, rest []byte, err error) {
	if len(p) < 2 {
		return 0, nil, fmt.Errorf("syncer: truncated update")
	}
	return read16(p, order), p[2:], nil
}

func decodeUpdateRecords(rest []byte, keyWidth int, order binary.ByteOrder) ([]updateRecord, error) {
	var records []updateRecord
	for len(rest) > 0 {
		if len(rest) < keyWidth*2 {
			return nil, fmt.Errorf("syncer: truncated update record")
		}
		key := readWidth(rest, keyWidth, order)
		length := readWidth(rest[keyWidth:], keyWidth, order)
		rest = rest[keyWidth*2:]
		if uint64(len(rest)) < length {
			return nil, fmt.Errorf("syncer: truncated update payload")
		}
		records = append(records, updateRecord{key: key, value: rest[:length]})
		rest = rest[length:]
	}
	return records, nil
}

// byeKind distinguishes the three Bye variants decoded from one wire shape.
type byeKind int

const (
	byeAll byeKind = iota
	byeByID
	byeByHash
)

type byeMsg struct {
	kind byeKind
	id   uint16
	hash uint64
}

func encodeByeAll(bigEndian bool) []byte {
	return []byte{opcodeFor(opBye, bigEndian)}
}

func encodeByeID(id uint16, bigEndian bool) []byte {
	order := orderFor(bigEndian)
	out := make([]byte, 3)
	out[0] = opcodeFor(opBye, bigEndian)
	put16(out[1:], id, order)
	return out
}

func encodeByeHash(hash uint64, bigEndian bool) []byte {
	body := encodeHash(hash)
	out := make([]byte, 1+len(body))
	out[0] = opcodeFor(opBye, bigEndian)
	copy(out[1:], body)
	return out
}

func decodeBye(p []byte, order binary.ByteOrder) (byeMsg, error) {
	switch {
	case len(p) == 0:
		return byeMsg{kind: byeAll}, nil
	case len(p) == 2:
		return byeMsg{kind: byeByID, id: read16(p, order)}, nil
	default:
		hash, _, err := decodeHash(p)
		if err != nil {
			return byeMsg{}, err
		}
		return byeMsg{kind: byeByHash, hash: hash}, nil
	}
}
