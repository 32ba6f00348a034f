package engineio

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kosmic-labs/engineio/config"
	"github.com/kosmic-labs/engineio/packet"
	"github.com/kosmic-labs/engineio/payload"
	"github.com/kosmic-labs/engineio/session"
	"github.com/kosmic-labs/engineio/transport"
)

func testServer(opts ...config.Option) *Server {
	cfg := config.New(append([]config.Option{
		config.WithMonitorClients(false),
		config.WithPingInterval(time.Hour),
		config.WithPingTimeout(time.Hour),
	}, opts...)...)
	return New(cfg)
}

func handshakeRequest(t *testing.T, s *Server) (sid string, rr *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/engine.io/?transport=polling&EIO=4", nil)
	rr = httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("handshake: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	packets, err := payload.Decode(rr.Body.String())
	if err != nil {
		t.Fatalf("handshake: decode body: %v", err)
	}
	if len(packets) != 1 || packets[0].Type != packet.OPEN {
		t.Fatalf("handshake: expected a single OPEN packet, got %#v", packets)
	}
	val, ok := packets[0].Data.Value()
	if !ok {
		t.Fatalf("handshake: OPEN packet has no JSON payload")
	}
	obj, ok := val.(map[string]any)
	if !ok {
		t.Fatalf("handshake: OPEN payload is not an object: %#v", val)
	}
	sid, ok = obj["sid"].(string)
	if !ok || sid == "" {
		t.Fatalf("handshake: OPEN payload missing sid: %#v", obj)
	}
	return sid, rr
}

func TestHandshakeAssignsSid(t *testing.T) {
	s := testServer()
	defer s.Close()

	sid, _ := handshakeRequest(t, s)
	if _, ok := s.Session(sid); !ok {
		t.Fatalf("expected session %s to be registered", sid)
	}
	if s.ClientsCount() != 1 {
		t.Fatalf("expected 1 client, got %d", s.ClientsCount())
	}
}

func TestHandshakeUnknownTransportRejected(t *testing.T) {
	s := testServer()
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/engine.io/?transport=carrier-pigeon&EIO=4", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown transport, got %d", rr.Code)
	}
}

func TestHandshakeOnConnectionFires(t *testing.T) {
	s := testServer()
	defer s.Close()

	fired := make(chan string, 1)
	s.OnConnection(func(sess *session.Session) {
		fired <- sess.Id()
	})

	sid, _ := handshakeRequest(t, s)

	select {
	case got := <-fired:
		if got != sid {
			t.Fatalf("expected OnConnection to fire with sid %q, got %q", sid, got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnConnection")
	}
}

func TestPostFeedsMessageToHandler(t *testing.T) {
	s := testServer()
	defer s.Close()

	received := make(chan string, 1)
	s.OnMessage(func(sid string, data packet.Data) {
		text, _ := data.Text()
		received <- text
	})

	sid, _ := handshakeRequest(t, s)

	body, err := payload.Encode([]*packet.Packet{packet.NewWithData(packet.MESSAGE, packet.Text("hi"))})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/engine.io/?sid="+url.QueryEscape(sid), strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	select {
	case text := <-received:
		if text != "hi" {
			t.Fatalf("expected %q, got %q", "hi", text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message handler")
	}
}

func TestPollAfterSendReturnsQueuedPacket(t *testing.T) {
	s := testServer()
	defer s.Close()

	sid, _ := handshakeRequest(t, s)
	if err := s.Send(sid, packet.Text("pushed")); err != nil {
		t.Fatalf("send: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/engine.io/?transport=polling&sid="+url.QueryEscape(sid), nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	packets, err := payload.Decode(rr.Body.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(packets) != 1 || packets[0].Type != packet.MESSAGE {
		t.Fatalf("expected a single MESSAGE packet, got %#v", packets)
	}
	text, _ := packets[0].Data.Text()
	if text != "pushed" {
		t.Fatalf("expected %q, got %q", "pushed", text)
	}
}

func TestUnknownSidRejected(t *testing.T) {
	s := testServer()
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/engine.io/?transport=polling&sid=does-not-exist", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sid, got %d", rr.Code)
	}
}

func TestDisconnectClosesSession(t *testing.T) {
	s := testServer()
	defer s.Close()

	sid, _ := handshakeRequest(t, s)
	if err := s.Disconnect(sid); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, ok := s.Session(sid); ok {
		t.Fatalf("expected session %s to be unregistered after disconnect", sid)
	}
}

func TestHandshakeUnsupportedEIOVersionRejected(t *testing.T) {
	s := testServer()
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/engine.io/?transport=polling&EIO=3", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unsupported EIO version, got %d", rr.Code)
	}
}

func TestHandshakeInvalidJSONPIndexRejected(t *testing.T) {
	s := testServer()
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/engine.io/?transport=polling&EIO=4&j=not-a-number", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-numeric j index, got %d", rr.Code)
	}
}

func TestPollTransportMismatchRejected(t *testing.T) {
	s := testServer()
	defer s.Close()

	sid, _ := handshakeRequest(t, s)

	req := httptest.NewRequest(http.MethodGet, "/engine.io/?transport=websocket&sid="+url.QueryEscape(sid), nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a transport/session mismatch, got %d", rr.Code)
	}
}

func TestUnsupportedMethodRejectedWith405(t *testing.T) {
	s := testServer()
	defer s.Close()

	sid, _ := handshakeRequest(t, s)

	req := httptest.NewRequest(http.MethodPut, "/engine.io/?sid="+url.QueryEscape(sid), nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for an unsupported method, got %d", rr.Code)
	}
}

func TestOnConnectRejectionReturns401(t *testing.T) {
	s := testServer()
	defer s.Close()

	s.OnConnect(func(sid string, environ *transport.Environ) (bool, any) {
		return false, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/engine.io/?transport=polling&EIO=4", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when the connect handler rejects, got %d", rr.Code)
	}
	if s.ClientsCount() != 0 {
		t.Fatalf("expected no session to be registered for a rejected connection, got %d", s.ClientsCount())
	}
}

func TestOnConnectRejectionEmbedsBody(t *testing.T) {
	s := testServer()
	defer s.Close()

	s.OnConnect(func(sid string, environ *transport.Environ) (bool, any) {
		return false, map[string]any{"reason": "bad token"}
	})

	req := httptest.NewRequest(http.MethodGet, "/engine.io/?transport=polling&EIO=4", nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "bad token") {
		t.Fatalf("expected the handler's rejection body to be the response, got %s", rr.Body.String())
	}
}

func TestOnConnectAcceptAllowsHandshake(t *testing.T) {
	s := testServer()
	defer s.Close()

	var gotSid string
	s.OnConnect(func(sid string, environ *transport.Environ) (bool, any) {
		gotSid = sid
		return true, nil
	})

	sid, _ := handshakeRequest(t, s)
	if gotSid != sid {
		t.Fatalf("expected connect handler to observe sid %q, got %q", sid, gotSid)
	}
	if _, ok := s.Session(sid); !ok {
		t.Fatalf("expected session %s to be registered after acceptance", sid)
	}
}
