package models

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Versioned carries the concurrency and soft-delete state shared by every
// mutable resource. Etag changes exactly when the persisted row changes;
// Version starts at 1 and only increases on successful write.
type Versioned struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
	Version   int        `gorm:"not null;default:1" json:"version"`
	Etag      string     `gorm:"type:varchar(32);not null" json:"etag"`
}

// ComputeEtag derives the deterministic fingerprint of a row from its
// identity and last-modified timestamp.
func ComputeEtag(id uint64, updatedAt time.Time) string {
	doc, _ := json.Marshal(map[string]string{
		"id":         strconv.FormatUint(id, 10),
		"updated_at": updatedAt.UTC().Format(time.RFC3339Nano),
	})
	return fmt.Sprintf("%x", md5.Sum(doc))
}

// Touch advances the row to a new revision: bumps UpdatedAt and Version and
// regenerates the etag. Must be called inside the transaction that persists
// the change.
func (v *Versioned) Touch(id uint64, now time.Time) {
	v.UpdatedAt = now
	v.Version++
	v.Etag = ComputeEtag(id, now)
}

// Init stamps a freshly created row.
func (v *Versioned) Init(id uint64, now time.Time) {
	v.CreatedAt = now
	v.UpdatedAt = now
	v.Version = 1
	v.Etag = ComputeEtag(id, now)
}

// IsDeleted reports whether the tombstone is set.
func (v *Versioned) IsDeleted() bool {
	return v.DeletedAt != nil
}

// Resource is the common shape shared by every versioned entity.
type Resource interface {
	ResourceID() uint64
	Meta() *Versioned
}
