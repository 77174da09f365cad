package realtime

import (
	"fmt"
	"time"
)

// EventKind discriminates server-to-client events. The client routes on this
// tag; adding a kind means adding it here and to the consumer switch, not
// inventing a new free-form string at a call site.
type EventKind string

const (
	KindProjectUpdated    EventKind = "project_updated"
	KindTeamMemberChanged EventKind = "team_member_changed"
	KindMilestoneChanged  EventKind = "milestone_changed"
	KindCommentChanged    EventKind = "comment_changed"
	KindNotification      EventKind = "notification"
)

// Actor identifies the principal whose mutation produced an event.
type Actor struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Event is the envelope pushed to subscribed sessions. EventType carries the
// kind-specific verb (created, updated, deleted, restored, ...), Data the
// kind-specific payload.
type Event struct {
	Kind      EventKind      `json:"type"`
	EventType string         `json:"event_type,omitempty"`
	ProjectID uint64         `json:"project_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     *Actor         `json:"actor,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(kind EventKind, eventType string, projectID uint64, data map[string]any) Event {
	return Event{
		Kind:      kind,
		EventType: eventType,
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// UserGroup names a principal's personal inbox group.
func UserGroup(userID uint64) string {
	return fmt.Sprintf("user:%d", userID)
}

// ProjectGroup names a project's subscriber room.
func ProjectGroup(projectID uint64) string {
	return fmt.Sprintf("project:%d", projectID)
}
