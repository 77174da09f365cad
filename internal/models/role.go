package models

import "time"

// Role keys with edit capability on projects they are assigned to.
const (
	RoleKeyLead      = "lead"
	RoleKeyManager   = "manager"
	RoleKeyDeveloper = "developer"
	RoleKeyDesigner  = "designer"
	RoleKeyViewer    = "viewer"
)

type Role struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	Key         string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"key"`
	DisplayName string    `gorm:"type:varchar(100);not null" json:"display_name"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanEdit reports whether the role delegates write capability to a
// non-owner team member. Only lead and manager do.
func (r Role) CanEdit() bool {
	return r.Key == RoleKeyLead || r.Key == RoleKeyManager
}

// DefaultRoles is the fixed role set seeded at migration time.
func DefaultRoles() []Role {
	return []Role{
		{Key: RoleKeyLead, DisplayName: "Project Lead", SortOrder: 1},
		{Key: RoleKeyManager, DisplayName: "Manager", SortOrder: 2},
		{Key: RoleKeyDeveloper, DisplayName: "Developer", SortOrder: 3},
		{Key: RoleKeyDesigner, DisplayName: "Designer", SortOrder: 4},
		{Key: RoleKeyViewer, DisplayName: "Viewer", SortOrder: 5},
	}
}
