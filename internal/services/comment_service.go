package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/authz"
	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/realtime"
)

// CommentService handles project discussion threads. Any viewer may
// comment; only the author (or an admin) may edit or delete their comment.
type CommentService struct {
	db         *gorm.DB
	authorizer *authz.Authorizer
	hub        *realtime.Hub
	logger     *zap.Logger
}

func NewCommentService(db *gorm.DB, authorizer *authz.Authorizer, hub *realtime.Hub, logger *zap.Logger) *CommentService {
	return &CommentService{db: db, authorizer: authorizer, hub: hub, logger: logger}
}

type CreateCommentInput struct {
	Body     string
	ParentID *uint64
}

type UpdateCommentInput struct {
	Body string
	Etag *string
}

// List returns a project's live comments, oldest first.
func (s *CommentService) List(p auth.Principal, projectID uint64) ([]models.Comment, error) {
	project, err := s.viewableProject(p, projectID)
	if err != nil {
		return nil, err
	}
	var comments []models.Comment
	err = s.db.Preload("Author").
		Where("project_id = ? AND deleted_at IS NULL", project.ID).
		Order("created_at").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// Create posts a comment, optionally as a reply.
func (s *CommentService) Create(p auth.Principal, projectID uint64, in CreateCommentInput) (*models.Comment, error) {
	if in.Body == "" {
		return nil, fmt.Errorf("%w: body required", ErrValidation)
	}
	project, err := s.viewableProject(p, projectID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Versioned: models.Versioned{Version: 1},
		ProjectID: project.ID,
		AuthorID:  p.ID,
		Body:      in.Body,
		ParentID:  in.ParentID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if in.ParentID != nil {
			var parent models.Comment
			err := tx.Where("id = ? AND project_id = ? AND deleted_at IS NULL", *in.ParentID, project.ID).
				First(&parent).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: parent comment not found", ErrValidation)
				}
				return err
			}
		}
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		comment.Etag = models.ComputeEtag(comment.ID, comment.UpdatedAt)
		if err := tx.Model(comment).UpdateColumn("etag", comment.Etag).Error; err != nil {
			return err
		}
		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityCommentAdded,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("%s commented on the project", p.Name),
			Metadata:     models.JSONMap{"comment_id": comment.ID},
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(p, project.ID, "added", comment)
	return comment, nil
}

// Update rewrites the comment body under the etag check.
func (s *CommentService) Update(p auth.Principal, projectID, commentID uint64, in UpdateCommentInput) (*models.Comment, error) {
	if in.Body == "" {
		return nil, fmt.Errorf("%w: body required", ErrValidation)
	}
	project, err := s.viewableProject(p, projectID)
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND project_id = ? AND deleted_at IS NULL", commentID, project.ID).
			First(&comment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if comment.AuthorID != p.ID && !p.IsAdmin {
			return ErrForbidden
		}
		if in.Etag != nil && *in.Etag != "" && *in.Etag != comment.Etag {
			return ErrEtagMismatch
		}

		readEtag := comment.Etag
		comment.Body = in.Body
		comment.Touch(comment.ID, time.Now())
		if err := applyVersionedUpdate(tx, &comment, readEtag, map[string]any{
			"body":       comment.Body,
			"updated_at": comment.UpdatedAt,
			"version":    comment.Version,
			"etag":       comment.Etag,
		}); err != nil {
			return err
		}
		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityCommentUpdated,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("%s edited a comment", p.Name),
			Metadata:     models.JSONMap{"comment_id": comment.ID},
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(p, project.ID, "updated", &comment)
	return &comment, nil
}

// Delete tombstones a comment.
func (s *CommentService) Delete(p auth.Principal, projectID, commentID uint64) error {
	project, err := s.viewableProject(p, projectID)
	if err != nil {
		return err
	}

	var comment models.Comment
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND project_id = ? AND deleted_at IS NULL", commentID, project.ID).
			First(&comment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if comment.AuthorID != p.ID && !p.IsAdmin {
			return ErrForbidden
		}
		readEtag := comment.Etag
		now := time.Now()
		comment.DeletedAt = &now
		comment.Touch(comment.ID, now)
		if err := applyVersionedUpdate(tx, &comment, readEtag, map[string]any{
			"deleted_at": comment.DeletedAt,
			"updated_at": comment.UpdatedAt,
			"version":    comment.Version,
			"etag":       comment.Etag,
		}); err != nil {
			return err
		}
		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityCommentDeleted,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("%s deleted a comment", p.Name),
			Metadata:     models.JSONMap{"comment_id": comment.ID},
		}).Error
	})
	if err != nil {
		return err
	}

	s.broadcast(p, project.ID, "deleted", &comment)
	return nil
}

func (s *CommentService) broadcast(p auth.Principal, projectID uint64, eventType string, c *models.Comment) {
	evt := realtime.NewEvent(realtime.KindCommentChanged, eventType, projectID, map[string]any{
		"id":        c.ID,
		"author_id": c.AuthorID,
	})
	evt.Actor = actorOf(p)
	s.hub.Publish(realtime.ProjectGroup(projectID), evt)
}

func (s *CommentService) viewableProject(p auth.Principal, projectID uint64) (*models.Project, error) {
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
