package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sekikawa/project-management-api/internal/dto"
	apierrors "github.com/sekikawa/project-management-api/internal/errors"
	"github.com/sekikawa/project-management-api/internal/middleware"
	"github.com/sekikawa/project-management-api/internal/services"
)

type CommentHandler struct {
	commentService *services.CommentService
}

func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// List handles GET /api/projects/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	comments, err := h.commentService.List(p, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]dto.CommentDTO, len(comments))
	for i := range comments {
		out[i] = dto.ToCommentDTO(&comments[i])
	}
	c.JSON(http.StatusOK, dto.OK(out))
}

// Create handles POST /api/projects/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	comment, err := h.commentService.Create(p, id, services.CreateCommentInput{
		Body:     req.Body,
		ParentID: req.ParentID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.OK(dto.ToCommentDTO(comment)))
}

// Update handles PATCH /api/projects/:id/comments/:commentId
func (h *CommentHandler) Update(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	commentID, ok := parseID(c, "commentId")
	if !ok {
		return
	}
	var req dto.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	comment, err := h.commentService.Update(p, id, commentID, services.UpdateCommentInput{
		Body: req.Body,
		Etag: req.Etag,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToCommentDTO(comment)))
}

// Delete handles DELETE /api/projects/:id/comments/:commentId
func (h *CommentHandler) Delete(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	commentID, ok := parseID(c, "commentId")
	if !ok {
		return
	}
	if err := h.commentService.Delete(p, id, commentID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
