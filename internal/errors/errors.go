package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	// Authentication errors
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"

	// Authorization errors
	ErrCodeForbidden = "FORBIDDEN"

	// Validation errors
	ErrCodeInvalidInput = "INVALID_INPUT"

	// Resource errors
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeConflict      = "CONFLICT"

	// Service errors
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// APIError is the machine-readable error carried in every failure response.
type APIError struct {
	Code    string `json:"code"`
	Detail  string `json:"detail"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Detail
}

// ErrorResponse is the envelope every failure response uses.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Err     *APIError `json:"error"`
}

// NewAPIError creates a new APIError
func NewAPIError(code, detail string) *APIError {
	return &APIError{
		Code:   code,
		Detail: detail,
	}
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, statusCode int, err *APIError) {
	c.JSON(statusCode, ErrorResponse{Success: false, Err: err})
}

// Helper functions for common error responses

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, NewAPIError(ErrCodeUnauthorized, detail))
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Access denied"
	}
	RespondWithError(c, http.StatusForbidden, NewAPIError(ErrCodeForbidden, detail))
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, NewAPIError(ErrCodeNotFound, detail))
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Invalid request"
	}
	RespondWithError(c, http.StatusBadRequest, NewAPIError(ErrCodeInvalidInput, detail))
}

// BadRequestWithDetails sends a 400 response with field-level detail
func BadRequestWithDetails(c *gin.Context, detail string, details any) {
	err := NewAPIError(ErrCodeInvalidInput, detail)
	err.Details = details
	RespondWithError(c, http.StatusBadRequest, err)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Resource has been modified. Please refresh and try again."
	}
	RespondWithError(c, http.StatusConflict, NewAPIError(ErrCodeConflict, detail))
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Internal server error"
	}
	RespondWithError(c, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, detail))
}
