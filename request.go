package engineio

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/kosmic-labs/engineio/config"
	"github.com/kosmic-labs/engineio/eioerr"
	"github.com/kosmic-labs/engineio/packet"
	"github.com/kosmic-labs/engineio/payload"
	"github.com/kosmic-labs/engineio/session"
	"github.com/kosmic-labs/engineio/transport"
)

// supportedEIOVersion is the only Engine.IO protocol version this server
// speaks; anything else gets a 400 rather than a confusing downstream
// decode failure.
const supportedEIOVersion = "4"

// HandleRequest serves the long-polling side of the protocol: a fresh
// handshake when no sid is present, or a GET/POST against an existing
// session.
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug(`handling "%s" http request "%s"`, r.Method, r.URL.RequestURI())

	if !applyCORS(w, r, s.cfg) {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "CORS_ORIGIN"})
		return
	}
	if r.Method == http.MethodOptions {
		return
	}

	if j := r.URL.Query().Get("j"); j != "" {
		if _, err := strconv.Atoi(j); err != nil {
			s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "INVALID_JSONP_INDEX"})
			return
		}
	}

	id := r.URL.Query().Get("sid")
	if id == "" {
		s.handshake(w, r, false)
		return
	}

	sess, ok := s.Session(id)
	if !ok {
		s.abortRequest(w, r, eioerr.UnknownSid, map[string]any{"sid": id})
		return
	}
	if tp := r.URL.Query().Get("transport"); tp != "" && tp != sess.TransportName().String() {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "TRANSPORT_MISMATCH"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.servePoll(w, r, sess)
	case http.MethodPost:
		s.servePost(w, r, sess)
	default:
		s.abortRequest(w, r, eioerr.MethodNotFound, map[string]any{"method": r.Method})
	}
}

// checkEIOVersion rejects any handshake that doesn't declare the supported
// protocol version.
func (s *Server) checkEIOVersion(w http.ResponseWriter, r *http.Request) bool {
	if v := r.URL.Query().Get("EIO"); v != supportedEIOVersion {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "UNSUPPORTED_PROTOCOL_VERSION", "EIO": v})
		return false
	}
	return true
}

// runConnectHook invokes the registered ConnectHandler, if any, and writes
// the 401 rejection itself when it declines the connection. It reports
// false when the caller must stop processing the handshake.
func (s *Server) runConnectHook(w http.ResponseWriter, r *http.Request, id string, environ *transport.Environ) bool {
	if s.onConnect == nil {
		return true
	}
	ok, body := s.onConnect(id, environ)
	if ok {
		return true
	}
	s.abortUnauthorized(w, r, map[string]any{"sid": id}, body)
	return false
}

// handshake allocates a new session for a request carrying no sid,
// validating the requested transport first.
func (s *Server) handshake(w http.ResponseWriter, r *http.Request, viaUpgrade bool) {
	if !s.checkEIOVersion(w, r) {
		return
	}

	transportParam := r.URL.Query().Get("transport")
	name := config.TransportName(transportParam)
	if name != config.Polling && name != config.WebSocket {
		s.abortRequest(w, r, eioerr.UnknownTransport, map[string]any{"transport": transportParam})
		return
	}
	if !s.cfg.HasTransport(name) {
		s.abortRequest(w, r, eioerr.UnknownTransport, map[string]any{"transport": transportParam})
		return
	}
	if !viaUpgrade && r.Method != http.MethodGet {
		s.abortRequest(w, r, eioerr.BadHandshakeMethod, map[string]any{"method": r.Method})
		return
	}
	if name == config.WebSocket && !viaUpgrade {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "TRANSPORT_HANDSHAKE_ERROR"})
		return
	}

	id, err := s.ids.Generate()
	if err != nil {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "SID_GENERATION_FAILURE"})
		return
	}

	environ := transport.NewHTTPContext(w, r).Environ()
	if !s.runConnectHook(w, r, id, environ) {
		return
	}

	initial := session.Polling
	if viaUpgrade {
		initial = session.WebSocket
	}

	sess := session.New(id, s.cfg, initial, r.RemoteAddr, s.onMessage, func(sid string, reason session.CloseReason) {
		s.unregister(sid)
		if s.onDisconnect != nil {
			s.onDisconnect(sid, reason)
		}
	})
	s.register(sess)
	if s.onConnection != nil {
		s.onConnection(sess)
	}

	if viaUpgrade {
		// a caller passing viaUpgrade owns driving the websocket connection
		// from here; the session's OPEN packet is the first frame it writes.
		return
	}

	s.writeCookie(w)
	batch, err := sess.PollDrain(make(chan struct{}))
	if err != nil {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "HANDSHAKE_FLUSH_FAILURE"})
		return
	}
	s.writePollResponse(w, r, batch)
}

// servePoll implements the blocking long-poll GET.
func (s *Server) servePoll(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	batch, err := sess.PollDrain(r.Context().Done())
	if err != nil {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "POLL_TIMEOUT"})
		return
	}
	s.writePollResponse(w, r, batch)
}

// servePost implements the data POST: the body is a payload of
// client-origin packets, fed into the session in order.
func (s *Server) servePost(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	body, err := readBoundedBody(r, s.cfg.MaxHTTPBufferSize)
	if err != nil {
		if errors.Is(err, eioerr.ErrContentTooLong) {
			s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "CONTENT_TOO_LONG"})
			return
		}
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "BODY_READ_FAILURE"})
		return
	}

	if err := sess.FeedPayload(string(body)); err != nil {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "INVALID_PAYLOAD"})
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// readBoundedBody reads r.Body up to limit, reporting eioerr.ErrContentTooLong
// rather than silently truncating an oversized payload.
func readBoundedBody(r *http.Request, limit int64) ([]byte, error) {
	limited := io.LimitReader(r.Body, limit+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, eioerr.ErrContentTooLong
	}
	return body, nil
}

func (s *Server) writePollResponse(w http.ResponseWriter, r *http.Request, batch []*packet.Packet) {
	body, err := payload.Encode(batch)
	if err != nil {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "ENCODE_FAILURE"})
		return
	}

	if j := r.URL.Query().Get("j"); j != "" {
		index, _ := strconv.Atoi(j)
		wrapped := payload.EncodeJSONP(index, body)
		writeResponseBody(w, r, s.cfg, "text/javascript; charset=UTF-8", []byte(wrapped))
		return
	}

	writeResponseBody(w, r, s.cfg, "text/plain; charset=UTF-8", []byte(body))
}

func (s *Server) writeCookie(w http.ResponseWriter) {
	if s.cfg.Cookie == nil {
		return
	}
	c := s.cfg.Cookie
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Path:     c.Path,
		SameSite: c.SameSite,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	})
}

// HandleUpgrade serves the WebSocket side: either a fresh handshake that
// arrives directly over websocket, or the probe/upgrade sequence against an
// existing polling session.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !applyCORS(w, r, s.cfg) {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "CORS_ORIGIN"})
		return
	}

	id := r.URL.Query().Get("sid")
	if id == "" {
		s.upgradeHandshake(w, r)
		return
	}

	sess, ok := s.Session(id)
	if !ok {
		s.abortRequest(w, r, eioerr.UnknownSid, map[string]any{"sid": id})
		return
	}
	if tp := r.URL.Query().Get("transport"); tp != "" && tp != string(config.WebSocket) {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "TRANSPORT_MISMATCH"})
		return
	}
	if sess.State() == session.StateUpgrading || sess.State() == session.StateUpgraded {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "UPGRADE_IN_PROGRESS"})
		return
	}

	ctx := transport.NewHTTPContext(w, r)
	conn, err := transport.UpgradeHTTP(ctx, s.cfg.MaxHTTPBufferSize)
	if err != nil {
		log.Debug("websocket upgrade failed: %v", err)
		return
	}
	if !sess.BeginUpgrade(conn) {
		conn.Close()
	}
}

// upgradeHandshake allocates a brand-new session whose handshake itself
// arrived over websocket, skipping the probe entirely. The connect hook and
// id are resolved before the protocol switch so a rejection can still be
// answered with an ordinary HTTP 401.
func (s *Server) upgradeHandshake(w http.ResponseWriter, r *http.Request) {
	if !s.checkEIOVersion(w, r) {
		return
	}

	transportParam := r.URL.Query().Get("transport")
	if config.TransportName(transportParam) != config.WebSocket {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "TRANSPORT_HANDSHAKE_ERROR"})
		return
	}

	id, genErr := s.ids.Generate()
	if genErr != nil {
		s.abortRequest(w, r, eioerr.BadRequest, map[string]any{"name": "SID_GENERATION_FAILURE"})
		return
	}

	environ := transport.NewHTTPContext(w, r).Environ()
	if !s.runConnectHook(w, r, id, environ) {
		return
	}

	ctx := transport.NewHTTPContext(w, r)
	conn, err := transport.UpgradeHTTP(ctx, s.cfg.MaxHTTPBufferSize)
	if err != nil {
		log.Debug("websocket handshake upgrade failed: %v", err)
		return
	}

	sess := session.New(id, s.cfg, session.WebSocket, r.RemoteAddr, s.onMessage, func(sid string, reason session.CloseReason) {
		s.unregister(sid)
		if s.onDisconnect != nil {
			s.onDisconnect(sid, reason)
		}
	})
	s.register(sess)
	if s.onConnection != nil {
		s.onConnection(sess)
	}

	sess.RunWebSocket(conn)
}
