package repository

import (
	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/models"
)

// GormActivityRepository is a GORM implementation of ActivityRepository
type GormActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &GormActivityRepository{db: db}
}

// ListRecent returns the newest entries for a project
func (r *GormActivityRepository) ListRecent(projectID uint64, limit int) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}

// Changelog returns filtered, paginated entries, newest first
func (r *GormActivityRepository) Changelog(filter ActivityFilter) ([]models.Activity, int64, error) {
	query := r.db.Model(&models.Activity{}).Where("project_id = ?", filter.ProjectID)

	if filter.ActivityType != nil {
		query = query.Where("activity_type = ?", *filter.ActivityType)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("created_at < ?", *filter.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("created_at DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		listQuery = listQuery.Offset(offset).Limit(filter.PageSize)
	}

	var activities []models.Activity
	if err := listQuery.Preload("User").Find(&activities).Error; err != nil {
		return nil, 0, err
	}
	return activities, total, nil
}
