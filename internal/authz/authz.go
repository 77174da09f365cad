package authz

import (
	"errors"

	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/models"
)

// Authorizer decides view/edit/admin capability for (principal, project)
// pairs. It is the single source of truth: the REST middleware and the
// websocket subscribe path both call into this type, never a local copy of
// the rules.
type Authorizer struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Authorizer {
	return &Authorizer{db: db}
}

// CanView is true for admins, the owner, and any team member.
func (a *Authorizer) CanView(p auth.Principal, project *models.Project) bool {
	if !p.IsAuthenticated() {
		return false
	}
	if p.IsAdmin || project.OwnerID == p.ID {
		return true
	}
	member, err := a.membership(p.ID, project.ID)
	return err == nil && member != nil
}

// CanEdit is true for admins and the owner; a team member edits only when
// their role carries edit capability (lead, manager).
func (a *Authorizer) CanEdit(p auth.Principal, project *models.Project) bool {
	if !p.IsAuthenticated() {
		return false
	}
	if p.IsAdmin || project.OwnerID == p.ID {
		return true
	}
	member, err := a.membership(p.ID, project.ID)
	if err != nil || member == nil {
		return false
	}
	return member.Role.CanEdit()
}

// IsOwnerOrAdmin gates the owner-exclusive actions: delete, restore, team
// management, bulk operations. Team roles are never consulted here.
func (a *Authorizer) IsOwnerOrAdmin(p auth.Principal, project *models.Project) bool {
	if !p.IsAuthenticated() {
		return false
	}
	return p.IsAdmin || project.OwnerID == p.ID
}

// CanViewProjectID loads the project and applies CanView. Used by callers
// that only hold an id, such as the websocket subscribe path. A missing or
// soft-deleted project is indistinguishable from an inaccessible one.
func (a *Authorizer) CanViewProjectID(p auth.Principal, projectID uint64) bool {
	var project models.Project
	err := a.db.Where("id = ? AND deleted_at IS NULL", projectID).First(&project).Error
	if err != nil {
		return false
	}
	return a.CanView(p, &project)
}

func (a *Authorizer) membership(userID, projectID uint64) (*models.TeamMember, error) {
	var member models.TeamMember
	err := a.db.Preload("Role").
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}
