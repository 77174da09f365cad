package dto

import (
	"time"

	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/utils"
)

// Envelope wraps every successful response body.
type Envelope struct {
	Success    bool                      `json:"success"`
	Data       any                       `json:"data,omitempty"`
	Pagination *utils.PaginationResponse `json:"pagination,omitempty"`
}

func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func Paginated(data any, pagination utils.PaginationResponse) Envelope {
	return Envelope{Success: true, Data: data, Pagination: &pagination}
}

type UserDTO struct {
	ID          uint64 `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
}

func ToUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		IsAdmin:     u.IsAdmin,
	}
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type RoleDTO struct {
	ID      uint64 `json:"id"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	CanEdit bool   `json:"can_edit"`
}

func ToRoleDTO(r *models.Role) RoleDTO {
	return RoleDTO{
		ID:      r.ID,
		Key:     r.Key,
		Name:    r.DisplayName,
		CanEdit: r.CanEdit(),
	}
}

type TeamMemberDTO struct {
	ID       uint64  `json:"id"`
	UserID   uint64  `json:"user_id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Role     RoleDTO `json:"role"`
	Capacity int     `json:"capacity"`
}

func ToTeamMemberDTO(m *models.TeamMember) TeamMemberDTO {
	return TeamMemberDTO{
		ID:       m.ID,
		UserID:   m.UserID,
		Username: m.User.Username,
		Name:     m.User.DisplayName,
		Role:     ToRoleDTO(&m.Role),
		Capacity: m.Capacity,
	}
}

type MilestoneDTO struct {
	ID          uint64     `json:"id"`
	ProjectID   uint64     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Progress    int        `json:"progress"`
	Version     int        `json:"version"`
	Etag        string     `json:"etag"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func ToMilestoneDTO(m *models.Milestone) MilestoneDTO {
	return MilestoneDTO{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		Title:       m.Title,
		Description: m.Description,
		DueDate:     m.DueDate,
		Progress:    m.Progress,
		Version:     m.Version,
		Etag:        m.Etag,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

type CommentDTO struct {
	ID        uint64    `json:"id"`
	ProjectID uint64    `json:"project_id"`
	AuthorID  uint64    `json:"author_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	ParentID  *uint64   `json:"parent_id"`
	Version   int       `json:"version"`
	Etag      string    `json:"etag"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToCommentDTO(c *models.Comment) CommentDTO {
	return CommentDTO{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		AuthorID:  c.AuthorID,
		Author:    c.Author.DisplayName,
		Body:      c.Body,
		ParentID:  c.ParentID,
		Version:   c.Version,
		Etag:      c.Etag,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type ProjectDTO struct {
	ID          uint64          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Health      string          `json:"health"`
	Progress    int             `json:"progress"`
	StartDate   *time.Time      `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
	OwnerID     uint64          `json:"owner_id"`
	Owner       *UserDTO        `json:"owner,omitempty"`
	Team        []TeamMemberDTO `json:"team,omitempty"`
	Milestones  []MilestoneDTO  `json:"milestones,omitempty"`
	Version     int             `json:"version"`
	Etag        string          `json:"etag"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

func ToProjectDTO(p *models.Project) ProjectDTO {
	out := ProjectDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		Health:      string(p.Health),
		Progress:    p.Progress,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		OwnerID:     p.OwnerID,
		Version:     p.Version,
		Etag:        p.Etag,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		DeletedAt:   p.DeletedAt,
	}
	if p.Owner.ID != 0 {
		owner := ToUserDTO(&p.Owner)
		out.Owner = &owner
	}
	for i := range p.Team {
		out.Team = append(out.Team, ToTeamMemberDTO(&p.Team[i]))
	}
	for i := range p.Milestones {
		out.Milestones = append(out.Milestones, ToMilestoneDTO(&p.Milestones[i]))
	}
	return out
}

func ToProjectDTOs(projects []models.Project) []ProjectDTO {
	out := make([]ProjectDTO, len(projects))
	for i := range projects {
		out[i] = ToProjectDTO(&projects[i])
	}
	return out
}

type ActivityDTO struct {
	ID             uint64         `json:"id"`
	ProjectID      uint64         `json:"project_id"`
	ActivityType   string         `json:"activity_type"`
	UserID         *uint64        `json:"user_id"`
	User           string         `json:"user,omitempty"`
	Description    string         `json:"description"`
	ChangedFields  []string       `json:"changed_fields"`
	PreviousValues map[string]any `json:"previous_values"`
	NewValues      map[string]any `json:"new_values"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}

func ToActivityDTO(a *models.Activity) ActivityDTO {
	out := ActivityDTO{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		ActivityType:   string(a.ActivityType),
		UserID:         a.UserID,
		Description:    a.Description,
		ChangedFields:  a.ChangedFields,
		PreviousValues: a.PreviousValues,
		NewValues:      a.NewValues,
		Metadata:       a.Metadata,
		CreatedAt:      a.CreatedAt,
	}
	if a.User != nil {
		out.User = a.User.DisplayName
	}
	return out
}

func ToActivityDTOs(activities []models.Activity) []ActivityDTO {
	out := make([]ActivityDTO, len(activities))
	for i := range activities {
		out[i] = ToActivityDTO(&activities[i])
	}
	return out
}
