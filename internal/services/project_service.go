package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/authz"
	"github.com/sekikawa/project-management-api/internal/constants"
	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/realtime"
	"github.com/sekikawa/project-management-api/internal/repository"
)

// ProjectService coordinates every project mutation: it serializes writes to
// one resource through a transaction guarded by the etag check, appends the
// ledger entry inside that transaction, and fans the event out only after
// commit. A notification that fails to deliver never fails the write.
type ProjectService struct {
	db           *gorm.DB
	projectRepo  repository.ProjectRepository
	activityRepo repository.ActivityRepository
	authorizer   *authz.Authorizer
	hub          *realtime.Hub
	logger       *zap.Logger
}

func NewProjectService(
	db *gorm.DB,
	projectRepo repository.ProjectRepository,
	activityRepo repository.ActivityRepository,
	authorizer *authz.Authorizer,
	hub *realtime.Hub,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		db:           db,
		projectRepo:  projectRepo,
		activityRepo: activityRepo,
		authorizer:   authorizer,
		hub:          hub,
		logger:       logger,
	}
}

// CreateProjectInput holds the fields accepted when creating a project.
type CreateProjectInput struct {
	Title       string
	Description string
	Status      models.ProjectStatus
	Health      models.ProjectHealth
	Progress    int
	StartDate   *time.Time
	EndDate     *time.Time
}

// UpdateProjectInput holds a partial update; nil means "not submitted".
// Etag, when present, is the revision the client last observed.
type UpdateProjectInput struct {
	Title       *string
	Description *string
	Status      *models.ProjectStatus
	Health      *models.ProjectHealth
	Progress    *int
	StartDate   *time.Time
	EndDate     *time.Time
	Etag        *string
}

// BulkUpdateInput applies one set of changes to many owned projects under a
// shared etag expectation.
type BulkUpdateInput struct {
	ProjectIDs []uint64
	Etag       string
	Status     *models.ProjectStatus
	Health     *models.ProjectHealth
}

// Create persists a new project owned by the principal and logs the created
// activity.
func (s *ProjectService) Create(p auth.Principal, in CreateProjectInput) (*models.Project, error) {
	if in.Status == "" {
		in.Status = models.ProjectStatusActive
	}
	if in.Health == "" {
		in.Health = models.ProjectHealthHealthy
	}
	if !models.ValidStatus(in.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, in.Status)
	}
	if !models.ValidHealth(in.Health) {
		return nil, fmt.Errorf("%w: invalid health %q", ErrValidation, in.Health)
	}
	if in.Progress < 0 || in.Progress > constants.MaxProgress {
		return nil, fmt.Errorf("%w: progress must be between 0 and 100", ErrValidation)
	}

	project := &models.Project{
		Versioned:   models.Versioned{Version: 1},
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Health:      in.Health,
		Progress:    in.Progress,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		OwnerID:     p.ID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		project.Etag = models.ComputeEtag(project.ID, project.UpdatedAt)
		if err := tx.Model(project).UpdateColumn("etag", project.Etag).Error; err != nil {
			return err
		}
		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityCreated,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("Project '%s' created", project.Title),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Get returns a live project the principal can view. Absent, soft-deleted
// and inaccessible projects are indistinguishable.
func (s *ProjectService) Get(p auth.Principal, id uint64) (*models.Project, error) {
	project, err := s.projectRepo.FindLive(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !s.authorizer.CanView(p, project) {
		return nil, ErrNotFound
	}
	return project, nil
}

// List returns the live projects visible to the principal.
func (s *ProjectService) List(p auth.Principal, status *models.ProjectStatus, health *models.ProjectHealth, page, pageSize int) ([]models.Project, int64, error) {
	return s.projectRepo.List(repository.ProjectFilter{
		ViewerID: p.ID,
		IsAdmin:  p.IsAdmin,
		Status:   status,
		Health:   health,
		Page:     page,
		PageSize: pageSize,
	})
}

// ListDeleted returns the principal's tombstoned projects.
func (s *ProjectService) ListDeleted(p auth.Principal) ([]models.Project, error) {
	return s.projectRepo.ListDeleted(p.ID, p.IsAdmin)
}

// Update applies a partial update under optimistic concurrency. A stale
// etag aborts with ErrEtagMismatch before anything is applied; a successful
// write bumps the version, regenerates the etag, appends exactly one ledger
// entry, and broadcasts after commit.
func (s *ProjectService) Update(p auth.Principal, id uint64, in UpdateProjectInput) (*models.Project, error) {
	if in.Status != nil && !models.ValidStatus(*in.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, *in.Status)
	}
	if in.Health != nil && !models.ValidHealth(*in.Health) {
		return nil, fmt.Errorf("%w: invalid health %q", ErrValidation, *in.Health)
	}
	if in.Progress != nil && (*in.Progress < 0 || *in.Progress > constants.MaxProgress) {
		return nil, fmt.Errorf("%w: progress must be between 0 and 100", ErrValidation)
	}

	loaded, err := s.Get(p, id)
	if err != nil {
		return nil, err
	}
	if !s.authorizer.CanEdit(p, loaded) {
		return nil, ErrForbidden
	}

	var project models.Project
	var cs *changeSet
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND deleted_at IS NULL", id).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if in.Etag != nil && *in.Etag != "" && *in.Etag != project.Etag {
			return ErrEtagMismatch
		}

		cs = captureProjectChanges(&project, in)
		cols := map[string]any{}
		if in.Title != nil {
			project.Title = *in.Title
			cols["title"] = *in.Title
		}
		if in.Description != nil {
			project.Description = *in.Description
			cols["description"] = *in.Description
		}
		if in.Status != nil {
			project.Status = *in.Status
			cols["status"] = *in.Status
		}
		if in.Health != nil {
			project.Health = *in.Health
			cols["health"] = *in.Health
		}
		if in.Progress != nil {
			project.Progress = *in.Progress
			cols["progress"] = *in.Progress
		}
		if in.StartDate != nil {
			project.StartDate = in.StartDate
			cols["start_date"] = in.StartDate
		}
		if in.EndDate != nil {
			project.EndDate = in.EndDate
			cols["end_date"] = in.EndDate
		}

		readEtag := project.Etag
		project.Touch(project.ID, time.Now())
		cols["updated_at"] = project.UpdatedAt
		cols["version"] = project.Version
		cols["etag"] = project.Etag
		if err := applyVersionedUpdate(tx, &project, readEtag, cols); err != nil {
			return err
		}

		description := "Project updated: no changes made"
		if !cs.empty() {
			description = "Project updated: " + strings.Join(cs.fields(), ", ")
		}
		return tx.Create(&models.Activity{
			ProjectID:      project.ID,
			ActivityType:   activityTypeForUpdate(cs),
			UserID:         &p.ID,
			Description:    description,
			ChangedFields:  cs.fields(),
			PreviousValues: cs.previousValues(),
			NewValues:      cs.newValues(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	evt := realtime.NewEvent(realtime.KindProjectUpdated, "updated", project.ID, map[string]any{
		"title":  project.Title,
		"status": project.Status,
	})
	evt.Actor = actorOf(p)
	s.hub.Publish(realtime.ProjectGroup(project.ID), evt)
	s.notifyTeam(&project, p, "project_updated", "Project Updated",
		fmt.Sprintf("Project '%s' has been updated", project.Title))

	return &project, nil
}

// activityTypeForUpdate maps a diff to its ledger entry type: a lone status
// or health transition gets its dedicated type, anything else is "updated".
func activityTypeForUpdate(cs *changeSet) models.ActivityType {
	if len(cs.changes) == 1 {
		switch cs.changes[0].field {
		case "status":
			return models.ActivityStatusChanged
		case "health":
			return models.ActivityHealthChanged
		}
	}
	return models.ActivityUpdated
}

// SoftDelete sets the tombstone through the ordinary write path so the
// ledger and fan-out see it like any other mutation.
func (s *ProjectService) SoftDelete(p auth.Principal, id uint64) error {
	loaded, err := s.Get(p, id)
	if err != nil {
		return err
	}
	if !s.authorizer.IsOwnerOrAdmin(p, loaded) {
		return ErrForbidden
	}

	var project models.Project
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND deleted_at IS NULL", id).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		readEtag := project.Etag
		now := time.Now()
		project.DeletedAt = &now
		project.Touch(project.ID, now)
		if err := applyVersionedUpdate(tx, &project, readEtag, map[string]any{
			"deleted_at": project.DeletedAt,
			"updated_at": project.UpdatedAt,
			"version":    project.Version,
			"etag":       project.Etag,
		}); err != nil {
			return err
		}
		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityDeleted,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("Project '%s' deleted", project.Title),
		}).Error
	})
	if err != nil {
		return err
	}

	evt := realtime.NewEvent(realtime.KindProjectUpdated, "deleted", project.ID, map[string]any{
		"title": project.Title,
	})
	evt.Actor = actorOf(p)
	s.hub.Publish(realtime.ProjectGroup(project.ID), evt)
	s.notifyTeam(&project, p, "project_deleted", "Project Deleted",
		fmt.Sprintf("Project '%s' has been deleted", project.Title))
	return nil
}

// Restore clears the tombstone. It runs through the same
// transaction/diff/ledger/broadcast pipeline as every other mutation.
func (s *ProjectService) Restore(p auth.Principal, id uint64) (*models.Project, error) {
	loaded, err := s.projectRepo.FindAny(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !s.authorizer.CanView(p, loaded) {
		return nil, ErrNotFound
	}
	if !s.authorizer.IsOwnerOrAdmin(p, loaded) {
		return nil, ErrForbidden
	}
	if !loaded.IsDeleted() {
		return nil, ErrNotDeleted
	}

	var project models.Project
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND deleted_at IS NOT NULL", id).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotDeleted
			}
			return err
		}
		readEtag := project.Etag
		project.DeletedAt = nil
		project.Touch(project.ID, time.Now())
		if err := applyVersionedUpdate(tx, &project, readEtag, map[string]any{
			"deleted_at": nil,
			"updated_at": project.UpdatedAt,
			"version":    project.Version,
			"etag":       project.Etag,
		}); err != nil {
			return err
		}
		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityRestored,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("Project '%s' restored", project.Title),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	evt := realtime.NewEvent(realtime.KindProjectUpdated, "restored", project.ID, map[string]any{
		"title": project.Title,
	})
	evt.Actor = actorOf(p)
	s.hub.Publish(realtime.ProjectGroup(project.ID), evt)
	s.notifyTeam(&project, p, "project_restored", "Project Restored",
		fmt.Sprintf("Project '%s' has been restored", project.Title))
	return &project, nil
}

// BulkUpdate applies one change set to many projects atomically. Bulk
// operations are owner-exclusive; a single stale etag rolls the whole batch
// back.
func (s *ProjectService) BulkUpdate(p auth.Principal, in BulkUpdateInput) ([]models.Project, error) {
	if len(in.ProjectIDs) == 0 {
		return nil, fmt.Errorf("%w: project_ids required", ErrValidation)
	}
	if in.Status != nil && !models.ValidStatus(*in.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, *in.Status)
	}
	if in.Health != nil && !models.ValidHealth(*in.Health) {
		return nil, fmt.Errorf("%w: invalid health %q", ErrValidation, *in.Health)
	}

	var projects []models.Project
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id IN ? AND deleted_at IS NULL", in.ProjectIDs).Find(&projects).Error; err != nil {
			return err
		}
		if len(projects) != len(in.ProjectIDs) {
			return ErrForbidden
		}
		for i := range projects {
			if !p.IsAdmin && projects[i].OwnerID != p.ID {
				return ErrForbidden
			}
		}
		for i := range projects {
			if projects[i].Etag != in.Etag {
				return ErrEtagMismatch
			}
		}

		now := time.Now()
		for i := range projects {
			project := &projects[i]
			cols := map[string]any{}
			if in.Status != nil {
				project.Status = *in.Status
				cols["status"] = *in.Status
			}
			if in.Health != nil {
				project.Health = *in.Health
				cols["health"] = *in.Health
			}
			readEtag := project.Etag
			project.Touch(project.ID, now)
			cols["updated_at"] = project.UpdatedAt
			cols["version"] = project.Version
			cols["etag"] = project.Etag
			if err := applyVersionedUpdate(tx, project, readEtag, cols); err != nil {
				return err
			}
		}

		ids := make([]any, len(projects))
		for i := range projects {
			ids[i] = projects[i].ID
		}
		return tx.Create(&models.Activity{
			ProjectID:    projects[0].ID,
			ActivityType: models.ActivityBulkUpdated,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("Bulk updated %d projects", len(projects)),
			Metadata: models.JSONMap{
				"project_ids":   ids,
				"updated_count": len(projects),
			},
		}).Error
	})
	if err != nil {
		return nil, err
	}

	for i := range projects {
		evt := realtime.NewEvent(realtime.KindProjectUpdated, "bulk_updated", projects[i].ID, map[string]any{
			"updated_count": len(projects),
		})
		evt.Actor = actorOf(p)
		s.hub.Publish(realtime.ProjectGroup(projects[i].ID), evt)
	}
	return projects, nil
}

// Activities returns the newest ledger entries for a project the principal
// can view.
func (s *ProjectService) Activities(p auth.Principal, projectID uint64, limit int) ([]models.Activity, error) {
	if _, err := s.Get(p, projectID); err != nil {
		return nil, err
	}
	return s.activityRepo.ListRecent(projectID, limit)
}

// Changelog returns the filtered, paginated ledger for a project.
func (s *ProjectService) Changelog(p auth.Principal, filter repository.ActivityFilter) ([]models.Activity, int64, error) {
	if _, err := s.Get(p, filter.ProjectID); err != nil {
		return nil, 0, err
	}
	return s.activityRepo.Changelog(filter)
}

// notifyTeam pushes a personal notification to every team member and the
// owner, excluding the actor. Delivery failures are the hub's problem;
// nothing here can fail the committed write.
func (s *ProjectService) notifyTeam(project *models.Project, actor auth.Principal, eventType, title, message string) {
	userIDs, err := s.projectRepo.TeamUserIDs(project.ID)
	if err != nil {
		s.logger.Warn("failed to resolve team for notification",
			zap.Uint64("project_id", project.ID), zap.Error(err))
		return
	}
	userIDs = append(userIDs, project.OwnerID)

	evt := realtime.NewEvent(realtime.KindNotification, eventType, project.ID, map[string]any{
		"title":         title,
		"message":       message,
		"project_title": project.Title,
	})
	evt.Actor = actorOf(actor)

	seen := make(map[uint64]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == actor.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.hub.PublishUser(id, evt)
	}
}

func actorOf(p auth.Principal) *realtime.Actor {
	if !p.IsAuthenticated() {
		return nil
	}
	return &realtime.Actor{ID: p.ID, Name: p.Name}
}
