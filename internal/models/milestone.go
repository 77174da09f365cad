package models

import "time"

type Milestone struct {
	ID uint64 `gorm:"primarykey" json:"id"`
	Versioned

	ProjectID   uint64     `gorm:"not null;index" json:"project_id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`

	Project Project `gorm:"foreignKey:ProjectID" json:"-"`
}

func (m *Milestone) ResourceID() uint64 { return m.ID }
func (m *Milestone) Meta() *Versioned   { return &m.Versioned }
