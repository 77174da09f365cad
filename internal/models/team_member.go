package models

import "time"

type TeamMember struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	ProjectID uint64    `gorm:"not null;uniqueIndex:idx_team_project_user" json:"project_id"`
	UserID    uint64    `gorm:"not null;uniqueIndex:idx_team_project_user" json:"user_id"`
	RoleID    uint64    `gorm:"not null" json:"role_id"`
	Capacity  int       `gorm:"not null;default:100" json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"-"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role    Role    `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}
