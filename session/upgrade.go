package session

import (
	"time"

	"github.com/kosmic-labs/engineio/eioerr"
	"github.com/kosmic-labs/engineio/packet"
	"github.com/kosmic-labs/engineio/transport"
)

// BeginUpgrade starts the websocket probe handshake step 1 on
// an already-CONNECTED polling session. It returns false, leaving conn
// untouched for the caller to close, if the session isn't eligible.
func (s *Session) BeginUpgrade(conn transport.WSConn) bool {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return false
	}
	s.state = StateUpgrading
	s.backlog = make([]*packet.Packet, 0, 8)
	s.mu.Unlock()

	go s.runUpgradeProbe(conn)
	return true
}

// runUpgradeProbe carries out the probe/upgrade exchange: wait for PING "probe", answer PONG "probe", kick any
// pending long-poll with NOOP, then wait for the client's UPGRADE. Any
// deviation reverts the session to CONNECTED and drops the connection.
func (s *Session) runUpgradeProbe(conn transport.WSConn) {
	abort := func() {
		s.mu.Lock()
		s.state = StateConnected
		s.backlog = nil
		s.mu.Unlock()
		conn.Close()
	}

	deadline := s.cfg.UpgradeTimeout
	if deadline <= 0 {
		deadline = 10 * time.Second
	}

	if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		abort()
		return
	}
	data, binary, err := conn.Receive()
	if err != nil || binary {
		abort()
		return
	}
	probe, err := packet.DecodeText(string(data))
	if err != nil || probe.Type != packet.PING {
		abort()
		return
	}
	if text, ok := probe.Data.Text(); !ok || text != "probe" {
		abort()
		return
	}

	pong := packet.NewWithData(packet.PONG, packet.Text("probe"))
	pongText, err := pong.EncodeText(false)
	if err != nil {
		abort()
		return
	}
	if err := conn.Send([]byte(pongText), false); err != nil {
		abort()
		return
	}

	// A pending long-poll GET on the old transport may be blocked waiting
	// for data; NOOP lets it return so the client can close it cleanly.
	_ = s.forceSend(packet.New(packet.NOOP))

	if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		abort()
		return
	}
	data, binary, err = conn.Receive()
	if err != nil || binary || len(data) > maxUpgradePayload {
		abort()
		return
	}
	upgradeMsg, err := packet.DecodeText(string(data))
	if err != nil || upgradeMsg.Type != packet.UPGRADE {
		abort()
		return
	}

	s.mu.Lock()
	backlog := s.backlog
	s.backlog = nil
	s.state = StateUpgraded
	s.transport = WebSocket
	s.mu.Unlock()

	for _, p := range backlog {
		s.outQueue <- p
	}

	log.Debug("session %s: upgraded to websocket", s.id)
	s.runWebSocket(conn)
}

// RunWebSocket drives the reader/writer loop for a session whose transport
// is already websocket, either because the handshake arrived over websocket
// directly or because BeginUpgrade's probe just completed.
func (s *Session) RunWebSocket(conn transport.WSConn) {
	s.runWebSocket(conn)
}

func (s *Session) runWebSocket(conn transport.WSConn) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			p := <-s.outQueue
			if p == nil {
				return
			}
			if err := s.writeFrame(conn, p); err != nil {
				return
			}
		}
	}()

	readDeadline := s.cfg.PingInterval + s.cfg.PingTimeout + s.cfg.PingGracePeriod
	closeReason := ReasonTransportClose

readLoop:
	for {
		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			closeReason = ReasonTransportError
			log.Debug("session %s: %v: %v", s.id, eioerr.ErrTransportError, err)
			break
		}
		data, binary, err := conn.Receive()
		if err != nil {
			if transport.IsCloseError(err) {
				closeReason = ReasonTransportClose
				log.Debug("session %s: %v", s.id, eioerr.ErrTransportClose)
			} else {
				closeReason = ReasonTransportError
				log.Debug("session %s: %v: %v", s.id, eioerr.ErrTransportError, err)
			}
			break
		}

		var p *packet.Packet
		if binary {
			p = packet.DecodeBinary(data)
		} else {
			p, err = packet.DecodeText(string(data))
			if err != nil {
				closeReason = ReasonTransportError
				log.Debug("session %s: %v: %v", s.id, eioerr.ErrTransportError, err)
				break
			}
		}

		if p.Type == packet.CLOSE {
			closeReason = ReasonClientDisconnect
			_ = s.Receive(p)
			break readLoop
		}
		if err := s.Receive(p); err != nil {
			log.Debug("session %s: dropping unreceivable packet: %v", s.id, err)
		}
	}

	select {
	case s.outQueue <- nil:
	default:
		go func() { s.outQueue <- nil }()
	}
	<-writerDone
	conn.Close()
	s.Close(closeReason, true)
}

func (s *Session) writeFrame(conn transport.WSConn, p *packet.Packet) error {
	if p.Type == packet.MESSAGE && p.Data.Kind() == packet.KindBinary {
		b, err := p.EncodeBinary()
		if err != nil {
			return err
		}
		return conn.Send(b, true)
	}
	text, err := p.EncodeText(false)
	if err != nil {
		return err
	}
	return conn.Send([]byte(text), false)
}
