package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/authz"
	"github.com/sekikawa/project-management-api/internal/constants"
	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/realtime"
)

// TeamService manages project membership. Roster changes are owner-or-admin
// operations; each one lands in the ledger and is broadcast to the project
// group after commit.
type TeamService struct {
	db         *gorm.DB
	authorizer *authz.Authorizer
	hub        *realtime.Hub
	logger     *zap.Logger
}

func NewTeamService(db *gorm.DB, authorizer *authz.Authorizer, hub *realtime.Hub, logger *zap.Logger) *TeamService {
	return &TeamService{db: db, authorizer: authorizer, hub: hub, logger: logger}
}

type AddTeamMemberInput struct {
	UserID   uint64
	RoleID   uint64
	Capacity int
}

type UpdateTeamMemberInput struct {
	RoleID   *uint64
	Capacity *int
}

// ListRoles returns the role catalogue.
func (s *TeamService) ListRoles() ([]models.Role, error) {
	var roles []models.Role
	if err := s.db.Order("sort_order").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// ListTeam returns the roster of a project the principal can view.
func (s *TeamService) ListTeam(p auth.Principal, projectID uint64) ([]models.TeamMember, error) {
	project, err := s.viewableProject(p, projectID)
	if err != nil {
		return nil, err
	}
	var members []models.TeamMember
	err = s.db.Preload("User").Preload("Role").
		Where("project_id = ?", project.ID).
		Order("id").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// AddTeamMember puts a user on the roster with a role and capacity.
func (s *TeamService) AddTeamMember(p auth.Principal, projectID uint64, in AddTeamMemberInput) (*models.TeamMember, error) {
	if in.Capacity < 0 || in.Capacity > constants.MaxCapacity {
		return nil, fmt.Errorf("%w: capacity must be between 0 and 100", ErrValidation)
	}
	project, err := s.manageableProject(p, projectID)
	if err != nil {
		return nil, err
	}

	var member models.TeamMember
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, in.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user not found", ErrValidation)
			}
			return err
		}
		var role models.Role
		if err := tx.First(&role, in.RoleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: role not found", ErrValidation)
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.TeamMember{}).
			Where("project_id = ? AND user_id = ?", project.ID, in.UserID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: user is already a team member", ErrValidation)
		}

		member = models.TeamMember{
			ProjectID: project.ID,
			UserID:    in.UserID,
			RoleID:    in.RoleID,
			Capacity:  in.Capacity,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		member.User = user
		member.Role = role

		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityTeamAdded,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("%s added to team as %s", user.Username, role.DisplayName),
			Metadata: models.JSONMap{
				"member_user_id": in.UserID,
				"role":           role.Key,
				"capacity":       in.Capacity,
			},
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.broadcastTeamChange(p, project, "added", map[string]any{
		"user_id":  member.UserID,
		"username": member.User.Username,
		"role":     member.Role.Key,
		"capacity": member.Capacity,
	})
	return &member, nil
}

// UpdateTeamMember changes a member's role or capacity.
func (s *TeamService) UpdateTeamMember(p auth.Principal, projectID, userID uint64, in UpdateTeamMemberInput) (*models.TeamMember, error) {
	if in.Capacity != nil && (*in.Capacity < 0 || *in.Capacity > constants.MaxCapacity) {
		return nil, fmt.Errorf("%w: capacity must be between 0 and 100", ErrValidation)
	}
	project, err := s.manageableProject(p, projectID)
	if err != nil {
		return nil, err
	}

	var member models.TeamMember
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("User").Preload("Role").
			Where("project_id = ? AND user_id = ?", project.ID, userID).
			First(&member).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		cols := map[string]any{}
		if in.RoleID != nil && *in.RoleID != member.RoleID {
			var role models.Role
			if err := tx.First(&role, *in.RoleID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: role not found", ErrValidation)
				}
				return err
			}
			member.RoleID = *in.RoleID
			member.Role = role
			cols["role_id"] = *in.RoleID
		}
		if in.Capacity != nil && *in.Capacity != member.Capacity {
			member.Capacity = *in.Capacity
			cols["capacity"] = *in.Capacity
		}
		if len(cols) == 0 {
			return nil
		}
		if err := tx.Model(&member).UpdateColumns(cols).Error; err != nil {
			return err
		}

		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityTeamUpdated,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("Team membership updated for %s", member.User.Username),
			Metadata: models.JSONMap{
				"member_user_id": member.UserID,
				"role":           member.Role.Key,
				"capacity":       member.Capacity,
			},
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.broadcastTeamChange(p, project, "updated", map[string]any{
		"user_id":  member.UserID,
		"username": member.User.Username,
		"role":     member.Role.Key,
		"capacity": member.Capacity,
	})
	return &member, nil
}

// RemoveTeamMember takes a user off the roster.
func (s *TeamService) RemoveTeamMember(p auth.Principal, projectID, userID uint64) error {
	project, err := s.manageableProject(p, projectID)
	if err != nil {
		return err
	}

	var member models.TeamMember
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("User").
			Where("project_id = ? AND user_id = ?", project.ID, userID).
			First(&member).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&member).Error; err != nil {
			return err
		}
		return tx.Create(&models.Activity{
			ProjectID:    project.ID,
			ActivityType: models.ActivityTeamRemoved,
			UserID:       &p.ID,
			Description:  fmt.Sprintf("%s removed from team", member.User.Username),
			Metadata:     models.JSONMap{"member_user_id": member.UserID},
		}).Error
	})
	if err != nil {
		return err
	}

	s.broadcastTeamChange(p, project, "removed", map[string]any{
		"user_id":  member.UserID,
		"username": member.User.Username,
	})
	return nil
}

func (s *TeamService) broadcastTeamChange(p auth.Principal, project *models.Project, eventType string, data map[string]any) {
	evt := realtime.NewEvent(realtime.KindTeamMemberChanged, eventType, project.ID, data)
	evt.Actor = actorOf(p)
	s.hub.Publish(realtime.ProjectGroup(project.ID), evt)
}

// viewableProject loads a live project the principal can view, hiding its
// existence otherwise.
func (s *TeamService) viewableProject(p auth.Principal, projectID uint64) (*models.Project, error) {
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

// manageableProject is viewableProject plus the owner-or-admin gate used by
// roster mutations.
func (s *TeamService) manageableProject(p auth.Principal, projectID uint64) (*models.Project, error) {
	project, err := s.viewableProject(p, projectID)
	if err != nil {
		return nil, err
	}
	if !s.authorizer.IsOwnerOrAdmin(p, project) {
		return nil, ErrForbidden
	}
	return project, nil
}
