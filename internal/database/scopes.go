package database

import (
	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/utils"
)

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// Live filters out soft-deleted rows.
func Live(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL")
}

// OnlyDeleted keeps soft-deleted rows only.
func OnlyDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NOT NULL")
}
