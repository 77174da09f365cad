package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ActivityType string

const (
	ActivityCreated            ActivityType = "created"
	ActivityUpdated            ActivityType = "updated"
	ActivityStatusChanged      ActivityType = "status_changed"
	ActivityHealthChanged      ActivityType = "health_changed"
	ActivityTeamAdded          ActivityType = "team_added"
	ActivityTeamUpdated        ActivityType = "team_updated"
	ActivityTeamRemoved        ActivityType = "team_removed"
	ActivityMilestoneAdded     ActivityType = "milestone_added"
	ActivityMilestoneUpdated   ActivityType = "milestone_updated"
	ActivityMilestoneCompleted ActivityType = "milestone_completed"
	ActivityMilestoneDeleted   ActivityType = "milestone_deleted"
	ActivityProgressUpdated    ActivityType = "progress_updated"
	ActivityCommentAdded       ActivityType = "comment_added"
	ActivityCommentUpdated     ActivityType = "comment_updated"
	ActivityCommentDeleted     ActivityType = "comment_deleted"
	ActivityDeleted            ActivityType = "deleted"
	ActivityRestored           ActivityType = "restored"
	ActivityBulkUpdated        ActivityType = "bulk_updated"
)

// JSONMap persists a free-form object as a JSON text column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// StringList persists a string slice as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// Activity is one immutable entry in the change ledger. Rows are appended
// inside the transaction that applies the mutation and never modified.
type Activity struct {
	ID             uint64       `gorm:"primarykey" json:"id"`
	ProjectID      uint64       `gorm:"not null;index:idx_activities_project_created" json:"project_id"`
	ActivityType   ActivityType `gorm:"type:varchar(30);not null" json:"activity_type"`
	UserID         *uint64      `gorm:"index" json:"user_id"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	ChangedFields  StringList   `gorm:"type:text" json:"changed_fields"`
	PreviousValues JSONMap      `gorm:"type:text" json:"previous_values"`
	NewValues      JSONMap      `gorm:"type:text" json:"new_values"`
	Metadata       JSONMap      `gorm:"type:text" json:"metadata"`
	CreatedAt      time.Time    `gorm:"index:idx_activities_project_created,sort:desc" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
