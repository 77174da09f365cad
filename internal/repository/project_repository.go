package repository

import (
	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/database"
	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/utils"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

func (r *GormProjectRepository) withRelations() *gorm.DB {
	return r.db.
		Preload("Owner").
		Preload("Team").
		Preload("Team.User").
		Preload("Team.Role").
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Where("deleted_at IS NULL").Order("due_date")
		})
}

// FindLive finds a non-deleted project by ID with relations preloaded
func (r *GormProjectRepository) FindLive(id uint64) (*models.Project, error) {
	var project models.Project
	if err := r.withRelations().
		Scopes(database.Live).
		First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// FindAny finds a project by ID including soft-deleted rows
func (r *GormProjectRepository) FindAny(id uint64) (*models.Project, error) {
	var project models.Project
	if err := r.withRelations().First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// List retrieves live projects visible to the viewer
func (r *GormProjectRepository) List(filter ProjectFilter) ([]models.Project, int64, error) {
	query := r.db.Model(&models.Project{}).Where("projects.deleted_at IS NULL")

	if !filter.IsAdmin {
		memberSubQuery := r.db.Model(&models.TeamMember{}).
			Select("1").
			Where("team_members.project_id = projects.id").
			Where("team_members.user_id = ?", filter.ViewerID)
		query = query.Where("projects.owner_id = ? OR EXISTS (?)", filter.ViewerID, memberSubQuery)
	}

	if filter.Status != nil {
		query = query.Where("projects.status = ?", *filter.Status)
	}
	if filter.Health != nil {
		query = query.Where("projects.health = ?", *filter.Health)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("projects.updated_at DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.PaginationParams{
			Offset: (filter.Page - 1) * filter.PageSize,
			Limit:  filter.PageSize,
		}))
	}

	var projects []models.Project
	if err := listQuery.Preload("Owner").Find(&projects).Error; err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// ListDeleted retrieves tombstoned projects owned by the viewer
func (r *GormProjectRepository) ListDeleted(viewerID uint64, isAdmin bool) ([]models.Project, error) {
	query := r.db.Scopes(database.OnlyDeleted)
	if !isAdmin {
		query = query.Where("owner_id = ?", viewerID)
	}

	var projects []models.Project
	if err := query.Order("updated_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// TeamUserIDs returns the user ids of every team member of a project
func (r *GormProjectRepository) TeamUserIDs(projectID uint64) ([]uint64, error) {
	var userIDs []uint64
	err := r.db.Model(&models.TeamMember{}).
		Where("project_id = ?", projectID).
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}
