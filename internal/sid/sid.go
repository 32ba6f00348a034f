// Package sid generates Engine.IO session identifiers: an opaque,
// globally-unique-within-process token that doubles as a bearer credential.
package sid

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"sync/atomic"
)

// Generator produces sids that are unique for the lifetime of the process:
// 10 random bytes followed by a monotonic 8-byte sequence number, so that
// even a broken RNG could not repeat a value already handed out.
type Generator struct {
	seq atomic.Uint64
}

// New constructs a fresh sid generator.
func New() *Generator {
	return &Generator{}
}

// Generate returns a new, globally-unique base64url sid.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf[:10]); err != nil {
		return "", err
	}
	binary.BigEndian.PutUint64(buf[10:], g.seq.Add(1)-1)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
