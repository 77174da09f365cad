package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sekikawa/project-management-api/internal/dto"
	apierrors "github.com/sekikawa/project-management-api/internal/errors"
	"github.com/sekikawa/project-management-api/internal/middleware"
	"github.com/sekikawa/project-management-api/internal/services"
)

type MilestoneHandler struct {
	milestoneService *services.MilestoneService
}

func NewMilestoneHandler(milestoneService *services.MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{milestoneService: milestoneService}
}

// List handles GET /api/projects/:id/milestones
func (h *MilestoneHandler) List(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	milestones, err := h.milestoneService.List(p, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.MilestoneDTO, len(milestones))
	for i := range milestones {
		out[i] = dto.ToMilestoneDTO(&milestones[i])
	}
	c.JSON(http.StatusOK, dto.OK(out))
}

// Create handles POST /api/projects/:id/milestones
func (h *MilestoneHandler) Create(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	milestone, err := h.milestoneService.Create(p, id, services.CreateMilestoneInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Progress:    req.Progress,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.OK(dto.ToMilestoneDTO(milestone)))
}

// Update handles PATCH /api/projects/:id/milestones/:milestoneId
func (h *MilestoneHandler) Update(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := parseID(c, "milestoneId")
	if !ok {
		return
	}
	var req dto.UpdateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	milestone, err := h.milestoneService.Update(p, id, milestoneID, services.UpdateMilestoneInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Progress:    req.Progress,
		Etag:        req.Etag,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToMilestoneDTO(milestone)))
}

// Complete handles POST /api/projects/:id/milestones/:milestoneId/complete
func (h *MilestoneHandler) Complete(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := parseID(c, "milestoneId")
	if !ok {
		return
	}
	var req struct {
		Etag *string `json:"etag"`
	}
	// Body is optional; a bare POST completes unconditionally.
	_ = c.ShouldBindJSON(&req)

	milestone, err := h.milestoneService.Complete(p, id, milestoneID, req.Etag)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToMilestoneDTO(milestone)))
}

// Delete handles DELETE /api/projects/:id/milestones/:milestoneId
func (h *MilestoneHandler) Delete(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := parseID(c, "milestoneId")
	if !ok {
		return
	}
	if err := h.milestoneService.Delete(p, id, milestoneID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
