package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/authz"
	"github.com/sekikawa/project-management-api/internal/config"
	"github.com/sekikawa/project-management-api/internal/database"
	"github.com/sekikawa/project-management-api/internal/handlers"
	"github.com/sekikawa/project-management-api/internal/logging"
	"github.com/sekikawa/project-management-api/internal/middleware"
	"github.com/sekikawa/project-management-api/internal/realtime"
	"github.com/sekikawa/project-management-api/internal/repository"
	"github.com/sekikawa/project-management-api/internal/services"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.LogLevel, cfg.GinMode == gin.DebugMode)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := database.Connect(cfg); err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}
	db := database.GetDB()

	validator := auth.NewValidator(cfg.JWTSecret, cfg.JWTLifetime, logger)
	authorizer := authz.New(db)
	hub := realtime.NewHub(logger)

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	authService := services.NewAuthService(userRepo, validator, logger)
	projectService := services.NewProjectService(db, projectRepo, activityRepo, authorizer, hub, logger)
	teamService := services.NewTeamService(db, authorizer, hub, logger)
	milestoneService := services.NewMilestoneService(db, authorizer, hub, logger)
	commentService := services.NewCommentService(db, authorizer, hub, logger)

	authHandler := handlers.NewAuthHandler(authService)
	projectHandler := handlers.NewProjectHandler(projectService)
	teamHandler := handlers.NewTeamHandler(teamService)
	milestoneHandler := handlers.NewMilestoneHandler(milestoneService)
	commentHandler := handlers.NewCommentHandler(commentService)
	wsHandler := realtime.NewHandler(hub, validator, authorizer, logger)

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/me", middleware.RequireAuth(validator), authHandler.Me)
		}

		protected := api.Group("")
		protected.Use(middleware.RequireAuth(validator))
		{
			protected.GET("/roles", teamHandler.ListRoles)

			projects := protected.Group("/projects")
			{
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
			}
		}
	}

	// Websocket handshakes authenticate via ?token=; browsers cannot set
	// headers here, so these routes sit outside RequireAuth.
	router.GET("/ws/notifications", wsHandler.Notifications)
	router.GET("/ws/projects/:id", wsHandler.Project)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	hub.Close()
}
