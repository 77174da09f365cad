package realtime

import (
	"sync"

	"github.com/sekikawa/project-management-api/internal/auth"
)

// sendBuffer bounds the per-session outbound queue. A session that cannot
// drain this many events is considered slow and loses events rather than
// blocking dispatch to its peers.
const sendBuffer = 64

// Session is one live connection's server-side state: the resolved principal
// and the set of joined groups. Created on connection accept, detached on
// disconnect, never persisted.
type Session struct {
	Principal auth.Principal

	send chan []byte

	mu      sync.Mutex
	closed  bool
	dropped uint64
}

func newSession(p auth.Principal) *Session {
	return &Session{
		Principal: p,
		send:      make(chan []byte, sendBuffer),
	}
}

// Outbound is the FIFO stream of serialized events for this session. The
// channel is closed when the session is detached from the hub.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Send enqueues a serialized message for delivery. Returns false when the
// message was dropped: either the session is closed or its buffer is full.
// Never blocks.
func (s *Session) Send(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		s.dropped++
		return false
	}
}

// close marks the session dead and closes the outbound channel. Idempotent;
// a double disconnect is a no-op.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// Dropped reports how many events were discarded because the session could
// not keep up.
func (s *Session) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
