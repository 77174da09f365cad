package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/authz"
	"github.com/sekikawa/project-management-api/internal/database"
	"github.com/sekikawa/project-management-api/internal/middleware"
	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/realtime"
	"github.com/sekikawa/project-management-api/internal/repository"
	"github.com/sekikawa/project-management-api/internal/services"
)

type apiFixture struct {
	router    *gin.Engine
	db        *gorm.DB
	validator *auth.Validator
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Role{}, &models.Project{}, &models.TeamMember{},
		&models.Milestone{}, &models.Comment{}, &models.Activity{},
	))
	require.NoError(t, database.SeedRoles(db))

	log := zap.NewNop()
	validator := auth.NewValidator("test-secret", time.Hour, log)
	authorizer := authz.New(db)
	hub := realtime.NewHub(log)
	t.Cleanup(hub.Close)

	authService := services.NewAuthService(repository.NewUserRepository(db), validator, log)
	projectService := services.NewProjectService(db,
		repository.NewProjectRepository(db), repository.NewActivityRepository(db),
		authorizer, hub, log)
	teamService := services.NewTeamService(db, authorizer, hub, log)
	milestoneService := services.NewMilestoneService(db, authorizer, hub, log)
	commentService := services.NewCommentService(db, authorizer, hub, log)

	authHandler := NewAuthHandler(authService)
	projectHandler := NewProjectHandler(projectService)
	teamHandler := NewTeamHandler(teamService)
	milestoneHandler := NewMilestoneHandler(milestoneService)
	commentHandler := NewCommentHandler(commentService)

	router := gin.New()
	api := router.Group("/api")
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", middleware.RequireAuth(validator), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.RequireAuth(validator))
	protected.GET("/roles", teamHandler.ListRoles)
	projects := protected.Group("/projects")
	projects.GET("", projectHandler.List)
	projects.POST("", projectHandler.Create)
	projects.GET("/deleted", projectHandler.Deleted)
	projects.POST("/bulk_update", projectHandler.BulkUpdate)
	projects.GET("/:id", projectHandler.Get)
	projects.PATCH("/:id", projectHandler.Update)
	projects.DELETE("/:id", projectHandler.Delete)
	projects.POST("/:id/restore", projectHandler.Restore)
	projects.GET("/:id/activities", projectHandler.Activities)
	projects.GET("/:id/changelog", projectHandler.Changelog)
	projects.GET("/:id/team", teamHandler.ListTeam)
	projects.POST("/:id/team", teamHandler.AddMember)
	projects.PATCH("/:id/team/:userId", teamHandler.UpdateMember)
	projects.DELETE("/:id/team/:userId", teamHandler.RemoveMember)
	projects.GET("/:id/milestones", milestoneHandler.List)
	projects.POST("/:id/milestones", milestoneHandler.Create)
	projects.PATCH("/:id/milestones/:milestoneId", milestoneHandler.Update)
	projects.POST("/:id/milestones/:milestoneId/complete", milestoneHandler.Complete)
	projects.DELETE("/:id/milestones/:milestoneId", milestoneHandler.Delete)
	projects.GET("/:id/comments", commentHandler.List)
	projects.POST("/:id/comments", commentHandler.Create)
	projects.PATCH("/:id/comments/:commentId", commentHandler.Update)
	projects.DELETE("/:id/comments/:commentId", commentHandler.Delete)

	return &apiFixture{router: router, db: db, validator: validator}
}

// signup registers a user through the API and returns their bearer token.
func (f *apiFixture) signup(t *testing.T, username string) string {
	t.Helper()
	w := f.request(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)
	return body.Data.Token
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
