package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/authz"
	"github.com/sekikawa/project-management-api/internal/constants"
	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/realtime"
)

// MilestoneService follows the same write pipeline as projects: transaction,
// etag check, version bump, ledger entry, post-commit broadcast.
type MilestoneService struct {
	db         *gorm.DB
	authorizer *authz.Authorizer
	hub        *realtime.Hub
	logger     *zap.Logger
}

func NewMilestoneService(db *gorm.DB, authorizer *authz.Authorizer, hub *realtime.Hub, logger *zap.Logger) *MilestoneService {
	return &MilestoneService{db: db, authorizer: authorizer, hub: hub, logger: logger}
}

type CreateMilestoneInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Progress    int
}

type UpdateMilestoneInput struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Progress    *int
	Etag        *string
}

// List returns a project's live milestones in due-date order.
func (s *MilestoneService) List(p auth.Principal, projectID uint64) ([]models.Milestone, error) {
	project, err := s.viewableProject(p, projectID)
	if err != nil {
		return nil, err
	}
	var milestones []models.Milestone
	err = s.db.Where("project_id = ? AND deleted_at IS NULL", project.ID).
		Order("due_date").
		Find(&milestones).Error
	if err != nil {
		return nil, err
	}
	return milestones, nil
}

// Create adds a milestone to a project the principal can edit.
func (s *MilestoneService) Create(p auth.Principal, projectID uint64, in CreateMilestoneInput) (*models.Milestone, error) {
	if in.Progress < 0 || in.Progress > constants.MaxProgress {
		return nil, fmt.Errorf("%w: progress must be between 0 and 100", ErrValidation)
	}
	project, err := s.editableProject(p, projectID)
	if err != nil {
		return nil, err
	}

	milestone := &models.Milestone{
		Versioned:   models.Versioned{Version: 1},
		ProjectID:   project.ID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Progress:    in.Progress,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(milestone).Error; err != nil {
			return err
		}
		milestone.Etag = models.ComputeEtag(milestone.ID, milestone.UpdatedAt)
		if err := tx.Model(milestone).UpdateColumn("etag", milestone.Etag).Error; err != nil {
			return err
		}
		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityMilestoneAdded,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("Milestone '%s' added", milestone.Title),
			Metadata:     models.JSONMap{"milestone_id": milestone.ID},
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(p, project.ID, "added", milestone)
	return milestone, nil
}

// Update applies a partial milestone update under the etag check. Reaching
// 100% progress is logged as a completion; a progress-only change short of
// that gets the progress entry; anything else is a plain update.
func (s *MilestoneService) Update(p auth.Principal, projectID, milestoneID uint64, in UpdateMilestoneInput) (*models.Milestone, error) {
	if in.Progress != nil && (*in.Progress < 0 || *in.Progress > constants.MaxProgress) {
		return nil, fmt.Errorf("%w: progress must be between 0 and 100", ErrValidation)
	}
	project, err := s.editableProject(p, projectID)
	if err != nil {
		return nil, err
	}

	var milestone models.Milestone
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND project_id = ? AND deleted_at IS NULL", milestoneID, project.ID).
			First(&milestone).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if in.Etag != nil && *in.Etag != "" && *in.Etag != milestone.Etag {
			return ErrEtagMismatch
		}

		previousProgress := milestone.Progress
		cols := map[string]any{}
		changed := []string{}
		if in.Title != nil && *in.Title != milestone.Title {
			milestone.Title = *in.Title
			cols["title"] = *in.Title
			changed = append(changed, "title")
		}
		if in.Description != nil && *in.Description != milestone.Description {
			milestone.Description = *in.Description
			cols["description"] = *in.Description
			changed = append(changed, "description")
		}
		if in.DueDate != nil && !equalDate(milestone.DueDate, in.DueDate) {
			milestone.DueDate = in.DueDate
			cols["due_date"] = in.DueDate
			changed = append(changed, "due_date")
		}
		if in.Progress != nil && *in.Progress != milestone.Progress {
			milestone.Progress = *in.Progress
			cols["progress"] = *in.Progress
			changed = append(changed, "progress")
		}

		readEtag := milestone.Etag
		milestone.Touch(milestone.ID, time.Now())
		cols["updated_at"] = milestone.UpdatedAt
		cols["version"] = milestone.Version
		cols["etag"] = milestone.Etag
		if err := applyVersionedUpdate(tx, &milestone, readEtag, cols); err != nil {
			return err
		}

		activityType := models.ActivityMilestoneUpdated
		description := fmt.Sprintf("Milestone '%s' updated", milestone.Title)
		switch {
		case in.Progress != nil && milestone.Progress == constants.MaxProgress && previousProgress != constants.MaxProgress:
			activityType = models.ActivityMilestoneCompleted
			description = fmt.Sprintf("Milestone '%s' completed", milestone.Title)
		case len(changed) == 1 && changed[0] == "progress":
			activityType = models.ActivityProgressUpdated
			description = fmt.Sprintf("Milestone '%s' progress updated to %d%%", milestone.Title, milestone.Progress)
		}
		return tx.Create(&models.Activity{
			ProjectID:     project.ID,
			ActivityType:  activityType,
			UserID:        &p.ID,
			Description:   description,
			ChangedFields: changed,
			Metadata:      models.JSONMap{"milestone_id": milestone.ID},
		}).Error
	})
	if err != nil {
		return nil, err
	}

	eventType := "updated"
	if milestone.Progress == constants.MaxProgress {
		eventType = "completed"
	}
	s.broadcast(p, project.ID, eventType, &milestone)
	return &milestone, nil
}

// Complete marks a milestone finished by driving its progress to 100
// through the ordinary update pipeline.
func (s *MilestoneService) Complete(p auth.Principal, projectID, milestoneID uint64, etag *string) (*models.Milestone, error) {
	done := constants.MaxProgress
	return s.Update(p, projectID, milestoneID, UpdateMilestoneInput{
		Progress: &done,
		Etag:     etag,
	})
}

// Delete tombstones a milestone.
func (s *MilestoneService) Delete(p auth.Principal, projectID, milestoneID uint64) error {
	project, err := s.editableProject(p, projectID)
	if err != nil {
		return err
	}

	var milestone models.Milestone
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND project_id = ? AND deleted_at IS NULL", milestoneID, project.ID).
			First(&milestone).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		readEtag := milestone.Etag
		now := time.Now()
		milestone.DeletedAt = &now
		milestone.Touch(milestone.ID, now)
		if err := applyVersionedUpdate(tx, &milestone, readEtag, map[string]any{
			"deleted_at": milestone.DeletedAt,
			"updated_at": milestone.UpdatedAt,
			"version":    milestone.Version,
			"etag":       milestone.Etag,
		}); err != nil {
			return err
		}
		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityMilestoneDeleted,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("Milestone '%s' deleted", milestone.Title),
			Metadata:     models.JSONMap{"milestone_id": milestone.ID},
		}).Error
	})
	if err != nil {
		return err
	}

	s.broadcast(p, project.ID, "deleted", &milestone)
	return nil
}

func (s *MilestoneService) broadcast(p auth.Principal, projectID uint64, eventType string, m *models.Milestone) {
	evt := realtime.NewEvent(realtime.KindMilestoneChanged, eventType, projectID, map[string]any{
		"id":       m.ID,
		"title":    m.Title,
		"progress": m.Progress,
	})
	evt.Actor = actorOf(p)
	s.hub.Publish(realtime.ProjectGroup(projectID), evt)
}

func (s *MilestoneService) viewableProject(p auth.Principal, projectID uint64) (*models.Project, error) {
	var project models.Project
	err := s.db.Where("id = ? AND deleted_at IS NULL", projectID).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !s.authorizer.CanView(p, &project) {
		return nil, ErrNotFound
	}
	return &project, nil
}

func (s *MilestoneService) editableProject(p auth.Principal, projectID uint64) (*models.Project, error) {
	project, err := s.viewableProject(p, projectID)
	if err != nil {
		return nil, err
	}
	if !s.authorizer.CanEdit(p, project) {
		return nil, ErrForbidden
	}
	return project, nil
}
