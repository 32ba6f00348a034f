// Package engineio implements the server side of the Engine.IO v4
// transport: packet/payload codecs, the session state machine, and an
// HTTP/WebSocket dispatcher that ties them together behind a net/http
// handler.
package engineio

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/kosmic-labs/engineio/config"
	"github.com/kosmic-labs/engineio/eioerr"
	"github.com/kosmic-labs/engineio/internal/sid"
	"github.com/kosmic-labs/engineio/internal/xlog"
	"github.com/kosmic-labs/engineio/packet"
	"github.com/kosmic-labs/engineio/session"
	"github.com/kosmic-labs/engineio/transport"
)

var log = xlog.New("engine:server")

// ConnectHandler runs synchronously during the handshake, before a session
// is created, and decides whether the connection may proceed. Returning
// ok=false rejects it with a 401; body, if non-nil, replaces the generic
// error as the rejection's JSON payload.
type ConnectHandler func(sid string, environ *transport.Environ) (ok bool, body any)

// Server is the Engine.IO dispatcher: it owns the session registry, applies
// handshake/CORS policy, and exposes a programmatic API alongside its
// net/http.Handler surface.
type Server struct {
	cfg *config.ServerConfig
	ids *sid.Generator

	mu           sync.RWMutex
	clients      map[string]*session.Session
	clientsCount atomic.Int64

	onConnect         ConnectHandler
	onConnection      func(*session.Session)
	onMessage         func(sid string, data packet.Data)
	onDisconnect      func(sid string, reason session.CloseReason)
	onConnectionError func(*eioerr.ConnectionError)

	janitor   *janitor
	closeOnce sync.Once
}

// New builds a Server bound to cfg. cfg may be nil, in which case
// config.New()'s defaults apply.
func New(cfg *config.ServerConfig) *Server {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Server{
		cfg:     cfg,
		ids:     sid.New(),
		clients: make(map[string]*session.Session),
	}
	if cfg.MonitorClients {
		s.janitor = startJanitor(s)
	}
	return s
}

// OnConnect registers the handler run synchronously during the handshake,
// before a session exists, that may reject the connection outright.
func (s *Server) OnConnect(fn ConnectHandler) { s.onConnect = fn }

// OnConnection registers the handler invoked once a handshake completes and
// a session is registered.
func (s *Server) OnConnection(fn func(*session.Session)) { s.onConnection = fn }

// OnMessage registers the handler invoked for every inbound MESSAGE packet.
func (s *Server) OnMessage(fn func(sid string, data packet.Data)) { s.onMessage = fn }

// OnDisconnect registers the handler invoked exactly once per session when
// it closes.
func (s *Server) OnDisconnect(fn func(sid string, reason session.CloseReason)) {
	s.onDisconnect = fn
}

// OnConnectionError registers the handler invoked whenever the dispatcher
// rejects a request with a {code, message} error body: a failed handshake,
// or a request against an existing session that fails validation.
func (s *Server) OnConnectionError(fn func(*eioerr.ConnectionError)) { s.onConnectionError = fn }

// Clients returns a snapshot of the currently connected session ids.
func (s *Server) Clients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.clients))
	for id := range s.clients {
		out = append(out, id)
	}
	return out
}

// ClientsCount returns the number of currently connected sessions.
func (s *Server) ClientsCount() int {
	return int(s.clientsCount.Load())
}

// Session looks up a connected session by id.
func (s *Server) Session(id string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.clients[id]
	return sess, ok
}

// Send enqueues data as a MESSAGE packet to the named session. An unknown
// sid is a no-op.
func (s *Server) Send(id string, data packet.Data) error {
	sess, ok := s.Session(id)
	if !ok {
		return nil
	}
	return sess.Send(packet.NewWithData(packet.MESSAGE, data))
}

// Disconnect closes one session, or every session when id == "".
func (s *Server) Disconnect(id string) error {
	if id == "" {
		s.mu.RLock()
		sessions := make([]*session.Session, 0, len(s.clients))
		for _, sess := range s.clients {
			sessions = append(sessions, sess)
		}
		s.mu.RUnlock()
		for _, sess := range sessions {
			sess.Close(session.ReasonServerDisconnect, false)
		}
		return nil
	}
	sess, ok := s.Session(id)
	if !ok {
		return eioerr.UnknownSid
	}
	sess.Close(session.ReasonServerDisconnect, false)
	return nil
}

// Close disconnects every session and stops the janitor. The Server is not
// usable afterwards.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.janitor != nil {
			s.janitor.stop()
		}
		_ = s.Disconnect("")
	})
}

func (s *Server) register(sess *session.Session) {
	s.mu.Lock()
	s.clients[sess.Id()] = sess
	s.mu.Unlock()
	s.clientsCount.Add(1)
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	_, existed := s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()
	if existed {
		s.clientsCount.Add(-1)
	}
}

// ServeHTTP implements http.Handler, routing between the long-poll/handshake
// path and the WebSocket upgrade path based on whether the request is a
// WebSocket upgrade and whether the websocket transport is enabled.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		s.HandleRequest(w, r)
		return
	}
	if !s.cfg.HasTransport(config.WebSocket) {
		http.Error(w, "Not Implemented", http.StatusNotImplemented)
		return
	}
	s.HandleUpgrade(w, r)
}
