package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sekikawa/project-management-api/internal/dto"
	apierrors "github.com/sekikawa/project-management-api/internal/errors"
	"github.com/sekikawa/project-management-api/internal/middleware"
	"github.com/sekikawa/project-management-api/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	user, token, err := h.authService.Signup(services.SignupInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.OK(dto.AuthResponse{
		Token: token,
		User:  dto.ToUserDTO(user),
	}))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	user, token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.AuthResponse{
		Token: token,
		User:  dto.ToUserDTO(user),
	}))
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	user, err := h.authService.GetUser(p.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.ToUserDTO(user)))
}
