// Package packet implements the Engine.IO packet: a single tagged frame
// carried over either the polling or the websocket transport.
package packet

import (
	"sync"
)

// Type is the packet type, an ASCII digit '0'..'6' on the wire.
type Type byte

// Packet types, per the Engine.IO v4 protocol.
const (
	OPEN    Type = 0
	CLOSE   Type = 1
	PING    Type = 2
	PONG    Type = 3
	MESSAGE Type = 4
	UPGRADE Type = 5
	NOOP    Type = 6
)

// IsValid reports whether t is one of the seven known packet types.
func (t Type) IsValid() bool {
	return t <= NOOP
}

func (t Type) String() string {
	switch t {
	case OPEN:
		return "open"
	case CLOSE:
		return "close"
	case PING:
		return "ping"
	case PONG:
		return "pong"
	case MESSAGE:
		return "message"
	case UPGRADE:
		return "upgrade"
	case NOOP:
		return "noop"
	default:
		return "unknown"
	}
}

// Kind discriminates the union stored in Data.
type Kind int

const (
	KindNone Kind = iota
	KindText
	KindBinary
	KindJSON
)

// Data is the tagged-union payload of a packet. Only MESSAGE packets may
// carry KindBinary; every other type carries KindText, KindJSON or KindNone.
//
// Zero value is KindNone.
type Data struct {
	kind Kind
	text string
	bin  []byte
	json any
}

// None returns an empty packet payload.
func None() Data { return Data{kind: KindNone} }

// Text wraps a UTF-8 string payload.
func Text(s string) Data { return Data{kind: KindText, text: s} }

// Binary wraps a raw byte payload. Only valid on MESSAGE packets.
func Binary(b []byte) Data { return Data{kind: KindBinary, bin: b} }

// JSON wraps a structured value that will be canonically JSON-encoded.
func JSON(v any) Data { return Data{kind: KindJSON, json: v} }

// Kind reports which alternative of the union is populated.
func (d Data) Kind() Kind { return d.kind }

// IsBinary reports the derived `binary` flag: true iff the data
// is raw bytes.
func (d Data) IsBinary() bool { return d.kind == KindBinary }

// Text returns the string payload and whether d held KindText.
func (d Data) Text() (string, bool) {
	if d.kind == KindText {
		return d.text, true
	}
	return "", false
}

// Bytes returns the binary payload and whether d held KindBinary.
func (d Data) Bytes() ([]byte, bool) {
	if d.kind == KindBinary {
		return d.bin, true
	}
	return nil, false
}

// Value returns the structured JSON value and whether d held KindJSON.
func (d Data) Value() (any, bool) {
	if d.kind == KindJSON {
		return d.json, true
	}
	return nil, false
}

// Options carries per-send packet options.
type Options struct {
	// Compress hints that the transport should compress this packet's
	// eventual HTTP response if the polling transport is in use.
	Compress bool
}

// Packet is one Engine.IO frame. Packets are immutable once constructed
// except through SetData, which also invalidates any cached encoding.
type Packet struct {
	Type    Type
	Data    Data
	Options Options

	mu         sync.Mutex
	cachedText string
	cachedOK   bool
}

// New constructs a packet with no data.
func New(t Type) *Packet {
	return &Packet{Type: t, Data: None()}
}

// NewWithData constructs a packet carrying data.
func NewWithData(t Type, data Data) *Packet {
	return &Packet{Type: t, Data: data}
}

// SetData replaces the packet's payload and invalidates the cached
// encoded form.
func (p *Packet) SetData(d Data) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Data = d
	p.cachedOK = false
	p.cachedText = ""
}

// cacheText stores a computed text encoding for reuse by later callers
// encoding the same packet (e.g. a broadcast to many sessions).
func (p *Packet) cacheText(s string) {
	p.mu.Lock()
	p.cachedText = s
	p.cachedOK = true
	p.mu.Unlock()
}

func (p *Packet) cachedTextEncoding() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cachedText, p.cachedOK
}
