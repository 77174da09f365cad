package models

import "time"

type User struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	Username     string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	DisplayName  string    `gorm:"type:varchar(255)" json:"display_name"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	OwnedProjects []Project    `gorm:"foreignKey:OwnerID" json:"-"`
	Memberships   []TeamMember `gorm:"foreignKey:UserID" json:"-"`
}
