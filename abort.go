package engineio

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/kosmic-labs/engineio/eioerr"
)

// statusFor maps a protocol CodeMessage onto the HTTP status that carries it.
func statusFor(cm *eioerr.CodeMessage) int {
	switch cm {
	case eioerr.Forbidden:
		return http.StatusForbidden
	case eioerr.Unauthorized:
		return http.StatusUnauthorized
	case eioerr.MethodNotFound:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusBadRequest
	}
}

// abortRequest writes the standard {code, message} protocol error body and,
// when a handler is registered, notifies it via the connection_error hook.
func (s *Server) abortRequest(w http.ResponseWriter, r *http.Request, cm *eioerr.CodeMessage, context map[string]any) {
	if s.onConnectionError != nil {
		s.onConnectionError(&eioerr.ConnectionError{CodeMessage: cm, Context: context})
	}
	writeCodeMessage(w, statusFor(cm), cm)
}

// abortUnauthorized rejects a handshake whose connect handler returned
// ok=false. When body is non-nil it replaces the generic Unauthorized
// CodeMessage as the JSON response, letting the handler surface its own
// rejection payload.
func (s *Server) abortUnauthorized(w http.ResponseWriter, r *http.Request, context map[string]any, body any) {
	if s.onConnectionError != nil {
		s.onConnectionError(&eioerr.ConnectionError{CodeMessage: eioerr.Unauthorized, Context: context})
	}
	if body == nil {
		body = eioerr.Unauthorized
	}
	writeCodeMessage(w, http.StatusUnauthorized, body)
}

func writeCodeMessage(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if b, err := json.Marshal(body); err == nil {
		_, _ = w.Write(b)
		return
	}
	_, _ = io.WriteString(w, `{"code":3,"message":"Bad request"}`)
}
