package repository

import (
	"time"

	"github.com/sekikawa/project-management-api/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)
}

// ProjectFilter holds filtering options for listing projects
type ProjectFilter struct {
	// Viewer scoping: admin sees everything, others see owned or member-of.
	ViewerID uint64
	IsAdmin  bool

	Status   *models.ProjectStatus
	Health   *models.ProjectHealth
	Page     int
	PageSize int
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	// FindLive finds a non-deleted project by ID with relations preloaded
	FindLive(id uint64) (*models.Project, error)

	// FindAny finds a project by ID including soft-deleted rows
	FindAny(id uint64) (*models.Project, error)

	// List retrieves live projects visible to the viewer
	List(filter ProjectFilter) ([]models.Project, int64, error)

	// ListDeleted retrieves tombstoned projects owned by the viewer
	// (all of them for admins)
	ListDeleted(viewerID uint64, isAdmin bool) ([]models.Project, error)

	// TeamUserIDs returns the user ids of every team member of a project
	TeamUserIDs(projectID uint64) ([]uint64, error)
}

// ActivityFilter holds filtering options for the changelog
type ActivityFilter struct {
	ProjectID    uint64
	ActivityType *models.ActivityType
	UserID       *uint64
	Since        *time.Time
	Until        *time.Time
	Page         int
	PageSize     int
}

// ActivityRepository is the append-only change ledger. Entries are written
// inside the mutating transaction and never modified afterwards.
type ActivityRepository interface {
	// ListRecent returns the newest entries for a project
	ListRecent(projectID uint64, limit int) ([]models.Activity, error)

	// Changelog returns filtered, paginated entries, newest first
	Changelog(filter ActivityFilter) ([]models.Activity, int64, error)
}
