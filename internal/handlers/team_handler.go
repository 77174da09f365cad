package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sekikawa/project-management-api/internal/constants"
	"github.com/sekikawa/project-management-api/internal/dto"
	apierrors "github.com/sekikawa/project-management-api/internal/errors"
	"github.com/sekikawa/project-management-api/internal/middleware"
	"github.com/sekikawa/project-management-api/internal/services"
)

type TeamHandler struct {
	teamService *services.TeamService
}

func NewTeamHandler(teamService *services.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

// ListRoles handles GET /api/roles
func (h *TeamHandler) ListRoles(c *gin.Context) {
	roles, err := h.teamService.ListRoles()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.RoleDTO, len(roles))
	for i := range roles {
		out[i] = dto.ToRoleDTO(&roles[i])
	}
	c.JSON(http.StatusOK, dto.OK(out))
}

// ListTeam handles GET /api/projects/:id/team
func (h *TeamHandler) ListTeam(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	members, err := h.teamService.ListTeam(p, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.TeamMemberDTO, len(members))
	for i := range members {
		out[i] = dto.ToTeamMemberDTO(&members[i])
	}
	c.JSON(http.StatusOK, dto.OK(out))
}

// AddMember handles POST /api/projects/:id/team
func (h *TeamHandler) AddMember(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.AddTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	capacity := constants.MaxCapacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	member, err := h.teamService.AddTeamMember(p, id, services.AddTeamMemberInput{
		UserID:   req.UserID,
		RoleID:   req.RoleID,
		Capacity: capacity,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.OK(dto.ToTeamMemberDTO(member)))
}

// UpdateMember handles PATCH /api/projects/:id/team/:userId
func (h *TeamHandler) UpdateMember(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	var req dto.UpdateTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	member, err := h.teamService.UpdateTeamMember(p, id, userID, services.UpdateTeamMemberInput{
		RoleID:   req.RoleID,
		Capacity: req.Capacity,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToTeamMemberDTO(member)))
}

// RemoveMember handles DELETE /api/projects/:id/team/:userId
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	if err := h.teamService.RemoveTeamMember(p, id, userID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
