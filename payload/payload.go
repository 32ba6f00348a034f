// Package payload implements the Engine.IO v4 payload codec: the
// concatenation of text-encoded packets carried in a single polling HTTP
// body, plus the JSONP wrapping used when a `j=` query parameter requests it.
package payload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kosmic-labs/engineio/eioerr"
	"github.com/kosmic-labs/engineio/packet"
)

// Separator is the record separator byte between packets in a payload.
const Separator = 0x1E

// MaxPackets is the maximum number of packets a single payload may decode
// to. Decoding a payload with more records fails with eioerr.ErrDecode.
const MaxPackets = 16

// Encode concatenates the text form of each packet, separated by
// Separator. An empty packet list encodes to the empty string.
func Encode(packets []*packet.Packet) (string, error) {
	parts := make([]string, len(packets))
	for i, p := range packets {
		s, err := p.EncodeText(true)
		if err != nil {
			return "", fmt.Errorf("payload: encoding packet %d: %w", i, err)
		}
		parts[i] = s
	}
	return strings.Join(parts, string(rune(Separator))), nil
}

// Decode splits body on Separator and decodes each part as a packet. It
// fails with eioerr.ErrDecode if any part fails to decode or if the packet
// count exceeds MaxPackets.
func Decode(body string) ([]*packet.Packet, error) {
	if body == "" {
		return nil, nil
	}

	parts := strings.Split(body, string(rune(Separator)))
	if len(parts) > MaxPackets {
		return nil, fmt.Errorf("%w: payload exceeds %d packets", eioerr.ErrDecode, MaxPackets)
	}

	packets := make([]*packet.Packet, 0, len(parts))
	for i, part := range parts {
		p, err := packet.DecodeText(part)
		if err != nil {
			return nil, fmt.Errorf("payload: decoding packet %d: %w", i, err)
		}
		packets = append(packets, p)
	}
	return packets, nil
}

// EncodeJSONP wraps an encoded payload body for delivery to a JSONP
// long-poll request (the `j=<n>` query parameter).
func EncodeJSONP(index int, body string) string {
	escaped := jsEscape(body)
	return "___eio[" + strconv.Itoa(index) + `]("` + escaped + `");`
}

// jsEscape produces a JavaScript string literal body safe to embed inside
// double quotes, escaping characters the JSONP wrapper cannot carry raw.
func jsEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString("\\\\")
		case '"':
			b.WriteString("\\\"")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
