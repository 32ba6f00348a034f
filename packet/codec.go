package packet

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kosmic-labs/engineio/eioerr"
)

// maxIntegerDigits is the historical safety valve: a numeric literal longer
// than this is kept as a string instead of being parsed as a JSON number,
// guarding against gratuitously large integer literals. The behavior is
// preserved for compatibility.
const maxIntegerDigits = 100

// EncodeText renders p in the text wire form used on polling (always) and
// on websocket text frames (for non-binary MESSAGE packets).
//
// Shape: the ASCII digit for Type, followed by the payload:
//   - KindText  -> verbatim UTF-8
//   - KindJSON  -> compact JSON
//   - KindBinary with b64=true -> 'b' prefix, then the type digit, then base64
//   - KindNone  -> nothing
func (p *Packet) EncodeText(b64 bool) (string, error) {
	if !p.Type.IsValid() {
		return "", fmt.Errorf("%w: invalid packet type %d", eioerr.ErrDecode, p.Type)
	}

	if p.Data.kind == KindBinary && b64 {
		if cached, ok := p.cachedTextEncoding(); ok {
			return cached, nil
		}
		s := "b" + strconv.Itoa(int(p.Type)) + base64.StdEncoding.EncodeToString(p.Data.bin)
		p.cacheText(s)
		return s, nil
	}

	if cached, ok := p.cachedTextEncoding(); ok {
		return cached, nil
	}

	var body string
	switch p.Data.kind {
	case KindNone:
		body = ""
	case KindText:
		body = p.Data.text
	case KindJSON:
		b, err := json.Marshal(p.Data.json)
		if err != nil {
			return "", fmt.Errorf("%w: %v", eioerr.ErrDecode, err)
		}
		body = string(b)
	case KindBinary:
		// Only reachable when b64 is false and the caller still requested
		// text form (e.g. a protocol violation path); encode raw bytes as
		// Latin-1-safe text is not meaningful, so fall back to base64 to
		// avoid corrupting the frame.
		body = base64.StdEncoding.EncodeToString(p.Data.bin)
	}

	s := strconv.Itoa(int(p.Type)) + body
	p.cacheText(s)
	return s, nil
}

// EncodeBinary renders p in the binary wire form: raw bytes with no type
// prefix, used on websocket binary frames for MESSAGE+bytes packets only.
func (p *Packet) EncodeBinary() ([]byte, error) {
	if p.Type != MESSAGE || p.Data.kind != KindBinary {
		return nil, fmt.Errorf("%w: only a MESSAGE packet with binary data has a binary form", eioerr.ErrDecode)
	}
	return p.Data.bin, nil
}

// DecodeText parses the text wire form of a single packet.
func DecodeText(s string) (*Packet, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty packet", eioerr.ErrDecode)
	}

	if s[0] == 'b' {
		if len(s) < 2 {
			return nil, fmt.Errorf("%w: truncated base64 packet", eioerr.ErrDecode)
		}
		typ, err := parseTypeDigit(s[1])
		if err != nil {
			return nil, err
		}
		raw, err := base64.StdEncoding.DecodeString(s[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64: %v", eioerr.ErrDecode, err)
		}
		if typ != MESSAGE {
			return nil, fmt.Errorf("%w: base64-prefixed packet must be type MESSAGE, got %v", eioerr.ErrDecode, typ)
		}
		return &Packet{Type: MESSAGE, Data: Binary(raw)}, nil
	}

	typ, err := parseTypeDigit(s[0])
	if err != nil {
		return nil, err
	}

	rest := s[1:]
	if rest == "" {
		return &Packet{Type: typ, Data: None()}, nil
	}

	if !(isNumericLiteral(rest) && len(rest) > maxIntegerDigits) {
		var v any
		if err := json.Unmarshal([]byte(rest), &v); err == nil {
			return &Packet{Type: typ, Data: JSON(v)}, nil
		}
		// malformed JSON is not an error: kept as a raw string.
	}

	return &Packet{Type: typ, Data: Text(rest)}, nil
}

// DecodeBinary builds a MESSAGE packet from a raw websocket binary frame.
func DecodeBinary(b []byte) *Packet {
	return &Packet{Type: MESSAGE, Data: Binary(append([]byte(nil), b...))}
}

func parseTypeDigit(b byte) (Type, error) {
	if b < '0' || b > '6' {
		return 0, fmt.Errorf("%w: invalid packet type digit %q", eioerr.ErrDecode, b)
	}
	return Type(b - '0'), nil
}

// isNumericLiteral reports whether s is a bare (optionally negative) integer
// literal, used only to guard the JSON-parse heuristic
func isNumericLiteral(s string) bool {
	i := 0
	if s[0] == '-' {
		i = 1
		if i == len(s) {
			return false
		}
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
