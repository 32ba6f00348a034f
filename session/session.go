// Package session implements the Engine.IO session state machine: the
// per-client entity that survives a transport upgrade.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/kosmic-labs/engineio/config"
	"github.com/kosmic-labs/engineio/eioerr"
	"github.com/kosmic-labs/engineio/internal/xlog"
	"github.com/kosmic-labs/engineio/packet"
)

var log = xlog.New("engine:session")

// State is one of the six states in the session lifecycle.
type State int

const (
	StateNew State = iota
	StateConnected
	StateUpgrading
	StateUpgraded
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnected:
		return "connected"
	case StateUpgrading:
		return "upgrading"
	case StateUpgraded:
		return "upgraded"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport identifies the low-level transport a session currently rides.
type Transport int

const (
	Polling Transport = iota
	WebSocket
)

func (t Transport) String() string {
	if t == WebSocket {
		return "websocket"
	}
	return "polling"
}

// CloseReason is one of the five disconnect causes.
type CloseReason string

const (
	ReasonClientDisconnect CloseReason = "client disconnect"
	ReasonServerDisconnect CloseReason = "server disconnect"
	ReasonPingTimeout      CloseReason = "ping timeout"
	ReasonTransportError   CloseReason = "transport error"
	ReasonTransportClose   CloseReason = "transport close"
)

// outQueueCapacity bounds the outbound FIFO.
const outQueueCapacity = 256

// maxUpgradePayload bounds the UPGRADE control packet during the probe
// exchange: larger is a protocol violation.
const maxUpgradePayload = 128

// MessageHandler is invoked for every inbound MESSAGE packet, in receipt
// order.
type MessageHandler func(sid string, data packet.Data)

// CloseHandler is invoked exactly once per session when it enters CLOSED.
type CloseHandler func(sid string, reason CloseReason)

// Session is the durable per-client entity
type Session struct {
	id  string
	cfg *config.ServerConfig

	remoteAddress string

	onMessage MessageHandler
	onClose   CloseHandler

	mu        sync.Mutex
	state     State
	transport Transport
	backlog   []*packet.Packet // non-nil only while state == StateUpgrading
	lastPing  time.Time

	outQueue chan *packet.Packet // *packet.Packet(nil) is the sentinel ⊥

	pingTimer *time.Timer
	pongTimer *time.Timer

	closeOnce sync.Once

	data sync.Map // application-owned key/value store; the core never reads it
}

// New allocates a session and emits its single OPEN packet
// Handshake. initial is Polling for a normal handshake, or WebSocket when
// the handshake itself arrived over a websocket upgrade.
func New(id string, cfg *config.ServerConfig, initial Transport, remoteAddress string, onMessage MessageHandler, onClose CloseHandler) *Session {
	s := &Session{
		id:            id,
		cfg:           cfg,
		remoteAddress: remoteAddress,
		onMessage:     onMessage,
		onClose:       onClose,
		transport:     initial,
		lastPing:      time.Now(),
		outQueue:      make(chan *packet.Packet, outQueueCapacity),
	}

	if initial == WebSocket {
		s.state = StateUpgraded
	} else {
		s.state = StateConnected
	}

	s.outQueue <- s.openPacket()
	s.schedulePing()

	return s
}

// Id returns the session identifier.
func (s *Session) Id() string { return s.id }

// RemoteAddress returns the client address captured at handshake time.
func (s *Session) RemoteAddress() string { return s.remoteAddress }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TransportName returns the current transport.
func (s *Session) TransportName() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// Data is the application-owned key/value store;
// the core never reads or writes it except to hand it back to the caller.
func (s *Session) Data() *sync.Map { return &s.data }

// LastPing returns the timestamp of the last PONG received, or of session
// creation if none has arrived yet; used by the janitor's idle check.
func (s *Session) LastPing() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPing
}

func (s *Session) openPacket() *packet.Packet {
	upgrades := []string{}
	if s.cfg.AllowUpgrades && s.transport == Polling && s.cfg.HasTransport(config.WebSocket) {
		upgrades = []string{"websocket"}
	}
	data := map[string]any{
		"sid":          s.id,
		"upgrades":     upgrades,
		"pingInterval": s.cfg.PingInterval.Milliseconds(),
		"pingTimeout":  s.cfg.PingTimeout.Milliseconds(),
		"maxPayload":   s.cfg.MaxHTTPBufferSize,
	}
	raw, err := s.cfg.JSON.Marshal(data)
	if err != nil {
		log.Error("failed to marshal OPEN packet: %v", err)
		raw, _ = json.Marshal(data)
	}
	return packet.NewWithData(packet.OPEN, packet.JSON(json.RawMessage(raw)))
}

// --- heartbeat -------------------------------------

func (s *Session) schedulePing() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.pingTimer = time.AfterFunc(s.cfg.PingInterval, func() {
		log.Debug("session %s: writing ping, expecting pong within %s", s.id, s.cfg.PingTimeout)
		_ = s.forceSend(packet.New(packet.PING))
		s.resetPingTimeout()
	})
	s.mu.Unlock()
}

func (s *Session) resetPingTimeout() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if s.pongTimer != nil {
		s.pongTimer.Stop()
	}
	s.pongTimer = time.AfterFunc(s.cfg.PingTimeout+s.cfg.PingGracePeriod, func() {
		log.Debug("session %s: %v", s.id, eioerr.ErrPingTimeout)
		s.Close(ReasonPingTimeout, false)
	})
	s.mu.Unlock()
}

// --- send / receive ------------------

// Send enqueues an application-origin packet.
func (s *Session) Send(p *packet.Packet) error {
	return s.enqueue(p, false)
}

// forceSend bypasses the backlog, used for probe-origin control packets
// (PING/PONG-probe, NOOP-during-upgrade, the heartbeat PING itself).
func (s *Session) forceSend(p *packet.Packet) error {
	return s.enqueue(p, true)
}

func (s *Session) enqueue(p *packet.Packet, force bool) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return eioerr.ErrSocketClosed
	case StateClosing:
		s.mu.Unlock()
		return nil // draining towards close; application sends are dropped
	case StateUpgrading:
		if !force {
			s.backlog = append(s.backlog, p)
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	s.outQueue <- p
	return nil
}

// Receive dispatches one inbound packet by type. Called in receipt order for a given session.
func (s *Session) Receive(p *packet.Packet) error {
	if s.State() == StateClosed {
		return eioerr.ErrSocketClosed
	}

	switch p.Type {
	case packet.PING:
		log.Debug("session %s: got legacy ping", s.id)
		return s.forceSend(packet.NewWithData(packet.PONG, p.Data))
	case packet.PONG:
		log.Debug("session %s: got pong", s.id)
		s.mu.Lock()
		s.lastPing = time.Now()
		s.mu.Unlock()
		if s.pongTimer != nil {
			s.pongTimer.Stop()
		}
		s.schedulePing()
		return nil
	case packet.MESSAGE:
		if s.onMessage != nil {
			s.onMessage(s.id, p.Data)
		}
		return nil
	case packet.UPGRADE:
		// A stray UPGRADE outside the probe handshake just kicks a pending
		// long-poll so it can return promptly.
		return s.forceSend(packet.New(packet.NOOP))
	case packet.CLOSE:
		s.Close(ReasonClientDisconnect, false)
		return nil
	case packet.OPEN, packet.NOOP:
		return nil
	default:
		return eioerr.ErrUnknownPacket
	}
}

// --- close protocol ---------------------------

// Close runs the close protocol exactly once for this session. When discard
// is false, a CLOSE packet is queued before the session is marked CLOSED;
// when true, the session is torn down immediately without notifying the
// client (used for a forced/abrupt shutdown).
func (s *Session) Close(reason CloseReason, discard bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateClosed {
			s.mu.Unlock()
			return
		}
		s.state = StateClosing
		s.mu.Unlock()

		if !discard {
			select {
			case s.outQueue <- packet.New(packet.CLOSE):
			default:
				log.Debug("session %s: out queue full, dropping final CLOSE frame", s.id)
			}
		}

		s.mu.Lock()
		s.state = StateClosed
		backlog := s.backlog
		s.backlog = nil
		if s.pingTimer != nil {
			s.pingTimer.Stop()
		}
		if s.pongTimer != nil {
			s.pongTimer.Stop()
		}
		s.mu.Unlock()
		_ = backlog // any packets buffered mid-upgrade are dropped on close

		// release any blocked reader (long-poll GET or websocket writer)
		go func() { s.outQueue <- nil }()

		if s.onClose != nil {
			s.onClose(s.id, reason)
		}
	})
}
