package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader is shared across upgrades; CheckOrigin is a no-op here because
// origin verification already happened in the dispatcher's CORS/handshake
// policy before the upgrade is attempted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// GorillaWSConn adapts a *websocket.Conn to the WSConn interface.
type GorillaWSConn struct {
	conn *websocket.Conn
}

// UpgradeHTTP performs the HTTP->WebSocket upgrade on ctx and returns a
// WSConn, or an error if the handshake failed.
func UpgradeHTTP(ctx *HTTPContext, maxMessageSize int64) (*GorillaWSConn, error) {
	conn, err := upgrader.Upgrade(ctx.ResponseWriter(), ctx.Request(), nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return &GorillaWSConn{conn: conn}, nil
}

func (c *GorillaWSConn) Send(data []byte, binary bool) error {
	mt := websocket.TextMessage
	if binary {
		mt = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(mt, data)
}

func (c *GorillaWSConn) Receive() ([]byte, bool, error) {
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, false, err
	}
	return data, mt == websocket.BinaryMessage, nil
}

func (c *GorillaWSConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *GorillaWSConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *GorillaWSConn) Close() error {
	return c.conn.Close()
}

// CloseWithReason sends a normal-closure control frame carrying a
// human-readable reason before closing the underlying connection.
func (c *GorillaWSConn) CloseWithReason(reason string) error {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	return c.conn.Close()
}

// IsCloseError reports whether err from WSConn.Receive represents a normal,
// going-away or no-status close frame, as opposed to a genuine transport
// failure.
// Callers outside this package use it instead of importing gorilla/websocket
// directly to classify a read error.
func IsCloseError(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
