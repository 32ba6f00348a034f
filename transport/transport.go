// Package transport defines the stable request view the dispatcher hands to
// connect hooks, plus concrete adapters over net/http and
// github.com/gorilla/websocket.
//
// A Session never talks to net/http or gorilla/websocket directly; it only
// ever sees Environ and WSConn.
package transport

import (
	"io"
	"net/url"
	"time"
)

// Environ is the stable key/value view of an inbound request that a
// ConnectHandler operates on, regardless of the embedding framework.
type Environ struct {
	Method     string
	Path       string
	Query      url.Values
	Headers    map[string][]string // canonical header names, as net/http stores them
	Body       io.ReadCloser
	RawURI     string
	Scheme     string
	RemoteAddr string
}

// Header returns the first value of the named header, or "".
func (e *Environ) Header(name string) string {
	if v, ok := e.Headers[name]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}

// WSConn is a bidirectional text/binary frame channel delivered by a
// websocket upgrade.
type WSConn interface {
	// Send writes one frame; binary selects a binary vs. text frame.
	Send(data []byte, binary bool) error
	// Receive blocks for the next frame or returns an error on close/timeout.
	Receive() (data []byte, binary bool, err error)
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}
