package models

type Comment struct {
	ID uint64 `gorm:"primarykey" json:"id"`
	Versioned

	ProjectID uint64  `gorm:"not null;index" json:"project_id"`
	AuthorID  uint64  `gorm:"not null;index" json:"author_id"`
	Body      string  `gorm:"type:text;not null" json:"body"`
	ParentID  *uint64 `gorm:"index" json:"parent_id"`

	Project Project `gorm:"foreignKey:ProjectID" json:"-"`
	Author  User    `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

func (c *Comment) ResourceID() uint64 { return c.ID }
func (c *Comment) Meta() *Versioned   { return &c.Versioned }
