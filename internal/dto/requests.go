package dto

import "time"

type SignupRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateProjectRequest struct {
	Title       string     `json:"title" binding:"required,max=255"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Health      string     `json:"health"`
	Progress    int        `json:"progress" binding:"min=0,max=100"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type UpdateProjectRequest struct {
	Title       *string    `json:"title" binding:"omitempty,max=255"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Health      *string    `json:"health"`
	Progress    *int       `json:"progress" binding:"omitempty,min=0,max=100"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Etag        *string    `json:"etag"`
}

type BulkUpdateRequest struct {
	ProjectIDs []uint64 `json:"project_ids" binding:"required,min=1"`
	Etag       string   `json:"etag" binding:"required"`
	Status     *string  `json:"status"`
	Health     *string  `json:"health"`
}

type AddTeamMemberRequest struct {
	UserID   uint64 `json:"user_id" binding:"required"`
	RoleID   uint64 `json:"role_id" binding:"required"`
	Capacity *int   `json:"capacity" binding:"omitempty,min=0,max=100"`
}

type UpdateTeamMemberRequest struct {
	RoleID   *uint64 `json:"role_id"`
	Capacity *int    `json:"capacity" binding:"omitempty,min=0,max=100"`
}

type CreateMilestoneRequest struct {
	Title       string     `json:"title" binding:"required,max=255"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Progress    int        `json:"progress" binding:"min=0,max=100"`
}

type UpdateMilestoneRequest struct {
	Title       *string    `json:"title" binding:"omitempty,max=255"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Progress    *int       `json:"progress" binding:"omitempty,min=0,max=100"`
	Etag        *string    `json:"etag"`
}

type CreateCommentRequest struct {
	Body     string  `json:"body" binding:"required"`
	ParentID *uint64 `json:"parent_id"`
}

type UpdateCommentRequest struct {
	Body string  `json:"body" binding:"required"`
	Etag *string `json:"etag"`
}
