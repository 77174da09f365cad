package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sekikawa/project-management-api/internal/dto"
	apierrors "github.com/sekikawa/project-management-api/internal/errors"
	"github.com/sekikawa/project-management-api/internal/middleware"
	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/repository"
	"github.com/sekikawa/project-management-api/internal/services"
	"github.com/sekikawa/project-management-api/internal/utils"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List handles GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	pagination := utils.GetPaginationParams(c)

	var status *models.ProjectStatus
	if raw := c.Query("status"); raw != "" {
		s := models.ProjectStatus(raw)
		if !models.ValidStatus(s) {
			apierrors.BadRequest(c, "Invalid status filter")
			return
		}
		status = &s
	}
	var health *models.ProjectHealth
	if raw := c.Query("health"); raw != "" {
		hv := models.ProjectHealth(raw)
		if !models.ValidHealth(hv) {
			apierrors.BadRequest(c, "Invalid health filter")
			return
		}
		health = &hv
	}

	projects, total, err := h.projectService.List(p, status, health, pagination.Page, pagination.Limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Paginated(dto.ToProjectDTOs(projects), utils.PaginationResponse{
		Page:  pagination.Page,
		Limit: pagination.Limit,
		Total: total,
	}))
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Create(p, services.CreateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.ProjectStatus(req.Status),
		Health:      models.ProjectHealth(req.Health),
		Progress:    req.Progress,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.OK(dto.ToProjectDTO(project)))
}

// Get handles GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Get(p, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToProjectDTO(project)))
}

// Update handles PATCH /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	in := services.UpdateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Progress:    req.Progress,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Etag:        req.Etag,
	}
	if req.Status != nil {
		s := models.ProjectStatus(*req.Status)
		in.Status = &s
	}
	if req.Health != nil {
		hv := models.ProjectHealth(*req.Health)
		in.Health = &hv
	}

	project, err := h.projectService.Update(p, id, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToProjectDTO(project)))
}

// Delete handles DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.projectService.SoftDelete(p, id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Restore handles POST /api/projects/:id/restore
func (h *ProjectHandler) Restore(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := h.projectService.Restore(p, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToProjectDTO(project)))
}

// Deleted handles GET /api/projects/deleted
func (h *ProjectHandler) Deleted(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	projects, err := h.projectService.ListDeleted(p)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToProjectDTOs(projects)))
}

// BulkUpdate handles POST /api/projects/bulk_update
func (h *ProjectHandler) BulkUpdate(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	var req dto.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	in := services.BulkUpdateInput{
		ProjectIDs: req.ProjectIDs,
		Etag:       req.Etag,
	}
	if req.Status != nil {
		s := models.ProjectStatus(*req.Status)
		in.Status = &s
	}
	if req.Health != nil {
		hv := models.ProjectHealth(*req.Health)
		in.Health = &hv
	}

	projects, err := h.projectService.BulkUpdate(p, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToProjectDTOs(projects)))
}

// Activities handles GET /api/projects/:id/activities
func (h *ProjectHandler) Activities(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	activities, err := h.projectService.Activities(p, id, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToActivityDTOs(activities)))
}

// Changelog handles GET /api/projects/:id/changelog
func (h *ProjectHandler) Changelog(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	pagination := utils.GetPaginationParams(c)

	filter := repository.ActivityFilter{
		ProjectID: id,
		Page:      pagination.Page,
		PageSize:  pagination.Limit,
	}
	if raw := c.Query("activity_type"); raw != "" {
		t := models.ActivityType(raw)
		filter.ActivityType = &t
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid user_id filter")
			return
		}
		filter.UserID = &userID
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid since filter")
			return
		}
		filter.Since = &since
	}
	if raw := c.Query("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid until filter")
			return
		}
		filter.Until = &until
	}

	activities, total, err := h.projectService.Changelog(p, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Paginated(dto.ToActivityDTOs(activities), utils.PaginationResponse{
		Page:  pagination.Page,
		Limit: pagination.Limit,
		Total: total,
	}))
}
