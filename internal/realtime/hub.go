package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/sekikawa/project-management-api/internal/auth"
)

// Hub is the session registry and fan-out dispatcher. It tracks live
// sessions and their group memberships, purely in memory; state is rebuilt
// from zero on restart. The hub is constructed once in main and injected
// into the websocket handler and the write path.
type Hub struct {
	logger *zap.Logger

	mu       sync.RWMutex
	groups   map[string]map[*Session]struct{}
	sessions map[*Session]map[string]struct{}
	closed   bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:   logger,
		groups:   make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]map[string]struct{}),
	}
}

// Register creates a session for an accepted connection.
func (h *Hub) Register(p auth.Principal) *Session {
	s := newSession(p)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.close()
		return s
	}
	h.sessions[s] = make(map[string]struct{})
	return s
}

// Join adds the session to a named group. Joining twice is a no-op.
func (h *Hub) Join(s *Session, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	joined, ok := h.sessions[s]
	if !ok {
		return
	}
	members := h.groups[group]
	if members == nil {
		members = make(map[*Session]struct{})
		h.groups[group] = members
	}
	members[s] = struct{}{}
	joined[group] = struct{}{}
}

// Leave removes the session from a group. Leaving a group it never joined
// is a no-op.
func (h *Hub) Leave(s *Session, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s, group)
}

func (h *Hub) leaveLocked(s *Session, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if joined, ok := h.sessions[s]; ok {
		delete(joined, group)
	}
}

// Detach removes the session from every group and closes its outbound
// stream. Unconditional and idempotent: a second call is a no-op.
func (h *Hub) Detach(s *Session) {
	h.mu.Lock()
	joined, ok := h.sessions[s]
	if ok {
		for group := range joined {
			if members, exists := h.groups[group]; exists {
				delete(members, s)
				if len(members) == 0 {
					delete(h.groups, group)
				}
			}
		}
		delete(h.sessions, s)
	}
	h.mu.Unlock()
	s.close()
}

// Publish serializes the event once and pushes it to every live session in
// the group. A slow or dead session loses the event without affecting its
// peers. Publishing to an empty group is a cheap no-op; events are never
// buffered for future subscribers.
func (h *Hub) Publish(group string, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to serialize event",
			zap.String("group", group), zap.String("kind", string(evt.Kind)), zap.Error(err))
		return
	}

	h.mu.RLock()
	members := h.groups[group]
	targets := make([]*Session, 0, len(members))
	for s := range members {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.Send(data) {
			h.logger.Warn("dropped event for slow or closed session",
				zap.String("group", group),
				zap.String("kind", string(evt.Kind)),
				zap.Uint64("user_id", s.Principal.ID))
		}
	}
}

// PublishUser pushes an event to a principal's personal inbox group.
func (h *Hub) PublishUser(userID uint64, evt Event) {
	h.Publish(UserGroup(userID), evt)
}

// GroupSize reports the number of live sessions in a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Close detaches every session and refuses new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.groups = make(map[string]map[*Session]struct{})
	h.sessions = make(map[*Session]map[string]struct{})
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
