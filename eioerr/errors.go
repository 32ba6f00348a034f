// Package eioerr defines the error taxonomy shared by the packet, payload,
// session and dispatcher packages.
package eioerr

import "errors"

// Sentinel errors. Use errors.Is against these; wrapped errors add context
// with fmt.Errorf("...: %w", ErrX).
var (
	// ErrDecode indicates a malformed packet or payload from the client.
	ErrDecode = errors.New("engineio: malformed packet or payload")

	// ErrUnknownPacket indicates a packet of unknown type on an established
	// session. The session is not closed; the packet is logged and dropped.
	ErrUnknownPacket = errors.New("engineio: unknown packet type")

	// ErrContentTooLong indicates a POST body exceeding maxHTTPBufferSize.
	ErrContentTooLong = errors.New("engineio: request content too long")

	// ErrQueueEmpty indicates a long-poll GET that timed out waiting for an
	// outbound packet.
	ErrQueueEmpty = errors.New("engineio: long-poll timed out waiting for a packet")

	// ErrSocketClosed indicates a programmatic send after the session closed.
	ErrSocketClosed = errors.New("engineio: socket is closed")

	// ErrPingTimeout indicates the heartbeat expired.
	ErrPingTimeout = errors.New("engineio: ping timeout")

	// ErrTransportError indicates an underlying transport failure.
	ErrTransportError = errors.New("engineio: transport error")

	// ErrTransportClose indicates a clean close of the underlying transport.
	ErrTransportClose = errors.New("engineio: transport closed")
)

// CodeMessage is the {"code":N,"message":"..."} body returned for protocol
// errors, matching the on-wire shape of the Engine.IO protocol.
type CodeMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *CodeMessage) Error() string { return c.Message }

// Well-known protocol error codes.
var (
	UnknownTransport   = &CodeMessage{Code: 0, Message: "Transport unknown"}
	UnknownSid         = &CodeMessage{Code: 1, Message: "Session ID unknown"}
	BadHandshakeMethod = &CodeMessage{Code: 2, Message: "Bad handshake method"}
	BadRequest         = &CodeMessage{Code: 3, Message: "Bad request"}
	Forbidden          = &CodeMessage{Code: 4, Message: "Forbidden"}
	Unauthorized       = &CodeMessage{Code: 5, Message: "Unauthorized"}
	MethodNotFound     = &CodeMessage{Code: 6, Message: "Method not found"}
)

// ConnectionError is delivered to a Server's OnConnectionError hook whenever
// the dispatcher rejects a request with a CodeMessage body, whether or not a
// session already exists for it.
type ConnectionError struct {
	*CodeMessage
	Context map[string]any
}
