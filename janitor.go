package engineio

import (
	"time"

	"github.com/kosmic-labs/engineio/eioerr"
	"github.com/kosmic-labs/engineio/session"
)

// janitorStaleMargin pads the computed heartbeat deadline to avoid racing
// a session's own per-socket ping timer under ordinary scheduling jitter.
const janitorStaleMargin = 5 * time.Second

// janitor is a backstop sweep over the session registry: every session
// already tears itself down via its own ping-timeout timer, so the janitor
// only ever catches the rare session whose timer didn't fire.
type janitor struct {
	stopCh chan struct{}
}

func startJanitor(s *Server) *janitor {
	j := &janitor{stopCh: make(chan struct{})}
	go j.run(s)
	return j
}

func (j *janitor) run(s *Server) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep(s)
		case <-j.stopCh:
			return
		}
	}
}

func (j *janitor) sweep(s *Server) {
	deadline := s.cfg.PingInterval + s.cfg.PingTimeout + s.cfg.PingGracePeriod + janitorStaleMargin

	s.mu.RLock()
	stale := make([]*session.Session, 0)
	for _, sess := range s.clients {
		if time.Since(sess.LastPing()) > deadline {
			stale = append(stale, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range stale {
		log.Debug("janitor: force-closing stale session %s: %v", sess.Id(), eioerr.ErrPingTimeout)
		sess.Close(session.ReasonPingTimeout, true)
	}
}

func (j *janitor) stop() {
	close(j.stopCh)
}
