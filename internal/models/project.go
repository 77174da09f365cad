package models

import "time"

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusArchived  ProjectStatus = "archived"
	ProjectStatusCompleted ProjectStatus = "completed"
)

type ProjectHealth string

const (
	ProjectHealthHealthy  ProjectHealth = "healthy"
	ProjectHealthAtRisk   ProjectHealth = "at_risk"
	ProjectHealthCritical ProjectHealth = "critical"
)

type Project struct {
	ID uint64 `gorm:"primarykey" json:"id"`
	Versioned

	Title       string        `gorm:"type:varchar(255);not null;index" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Status      ProjectStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Health      ProjectHealth `gorm:"type:varchar(20);not null;default:'healthy';index" json:"health"`
	Progress    int           `gorm:"not null;default:0" json:"progress"`
	StartDate   *time.Time    `json:"start_date"`
	EndDate     *time.Time    `json:"end_date"`
	OwnerID     uint64        `gorm:"not null;index" json:"owner_id"`

	// Relations
	Owner      User         `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Team       []TeamMember `gorm:"foreignKey:ProjectID" json:"team,omitempty"`
	Milestones []Milestone  `gorm:"foreignKey:ProjectID" json:"milestones,omitempty"`
}

func (p *Project) ResourceID() uint64 { return p.ID }
func (p *Project) Meta() *Versioned   { return &p.Versioned }

// ValidStatus reports whether s is one of the accepted project statuses.
func ValidStatus(s ProjectStatus) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusOnHold, ProjectStatusArchived, ProjectStatusCompleted:
		return true
	}
	return false
}

// ValidHealth reports whether h is one of the accepted health values.
func ValidHealth(h ProjectHealth) bool {
	switch h {
	case ProjectHealthHealthy, ProjectHealthAtRisk, ProjectHealthCritical:
		return true
	}
	return false
}
