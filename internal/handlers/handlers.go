package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apierrors "github.com/sekikawa/project-management-api/internal/errors"
	"github.com/sekikawa/project-management-api/internal/services"
)

// respondServiceError maps service sentinels onto the HTTP error envelope.
// Unknown errors become a 500 with no internal detail leaked.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		apierrors.NotFound(c, "")
	case errors.Is(err, services.ErrForbidden):
		apierrors.Forbidden(c, "")
	case errors.Is(err, services.ErrEtagMismatch):
		apierrors.Conflict(c, "")
	case errors.Is(err, services.ErrNotDeleted):
		apierrors.BadRequest(c, "Project is not deleted")
	case errors.Is(err, services.ErrValidation):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.BadRequest(c, "Password must be at least 8 characters")
	case errors.Is(err, services.ErrUsernameTaken):
		apierrors.RespondWithError(c, http.StatusConflict,
			apierrors.NewAPIError(apierrors.ErrCodeAlreadyExists, "Username already exists"))
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.RespondWithError(c, http.StatusUnauthorized,
			apierrors.NewAPIError(apierrors.ErrCodeInvalidCredentials, "Invalid username or password"))
	default:
		apierrors.InternalError(c, "")
	}
}

func parseID(c *gin.Context, param string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}
