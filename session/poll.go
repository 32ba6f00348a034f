package session

import (
	"github.com/kosmic-labs/engineio/eioerr"
	"github.com/kosmic-labs/engineio/packet"
	"github.com/kosmic-labs/engineio/payload"
)

// PollDrain implements the blocking half of a long-poll GET: it waits for at least one packet, then greedily drains
// whatever else is already queued without blocking further, so a payload
// carries as much as is immediately available. It returns ErrQueueEmpty if
// nothing arrives before done fires.
func (s *Session) PollDrain(done <-chan struct{}) ([]*packet.Packet, error) {
	select {
	case p, ok := <-s.outQueue:
		if !ok || p == nil {
			return nil, nil
		}
		batch := []*packet.Packet{p}
	drain:
		for {
			select {
			case p2, ok := <-s.outQueue:
				if !ok || p2 == nil {
					break drain
				}
				batch = append(batch, p2)
			default:
				break drain
			}
		}
		return batch, nil
	case <-done:
		return nil, eioerr.ErrQueueEmpty
	}
}

// FeedPayload decodes a POSTed payload body and dispatches every packet it
// contains, in order, through Receive.
func (s *Session) FeedPayload(body string) error {
	packets, err := payload.Decode(body)
	if err != nil {
		return err
	}
	for _, p := range packets {
		if err := s.Receive(p); err != nil {
			return err
		}
	}
	return nil
}
