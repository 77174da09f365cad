package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/authz"
	"github.com/sekikawa/project-management-api/internal/database"
	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/realtime"
	"github.com/sekikawa/project-management-api/internal/repository"
)

// serviceFixture is the shared test world: an in-memory database with the
// seeded role set, a hub, and one user per capability level.
type serviceFixture struct {
	db  *gorm.DB
	hub *realtime.Hub

	projects   *ProjectService
	team       *TeamService
	milestones *MilestoneService
	comments   *CommentService

	owner     auth.Principal
	admin     auth.Principal
	lead      auth.Principal
	developer auth.Principal
	stranger  auth.Principal

	roleID map[string]uint64
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
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
	hub := realtime.NewHub(log)
	t.Cleanup(hub.Close)
	authorizer := authz.New(db)

	f := &serviceFixture{
		db:  db,
		hub: hub,
		projects: NewProjectService(
			db,
			repository.NewProjectRepository(db),
			repository.NewActivityRepository(db),
			authorizer, hub, log,
		),
		team:       NewTeamService(db, authorizer, hub, log),
		milestones: NewMilestoneService(db, authorizer, hub, log),
		comments:   NewCommentService(db, authorizer, hub, log),
		roleID:     map[string]uint64{},
	}

	users := []models.User{
		{Username: "owner", DisplayName: "Owner"},
		{Username: "admin", DisplayName: "Admin", IsAdmin: true},
		{Username: "lead", DisplayName: "Lead"},
		{Username: "dev", DisplayName: "Dev"},
		{Username: "stranger", DisplayName: "Stranger"},
	}
	require.NoError(t, db.Create(&users).Error)
	f.owner = auth.Principal{ID: users[0].ID, Name: "Owner"}
	f.admin = auth.Principal{ID: users[1].ID, Name: "Admin", IsAdmin: true}
	f.lead = auth.Principal{ID: users[2].ID, Name: "Lead"}
	f.developer = auth.Principal{ID: users[3].ID, Name: "Dev"}
	f.stranger = auth.Principal{ID: users[4].ID, Name: "Stranger"}

	var roles []models.Role
	require.NoError(t, db.Find(&roles).Error)
	for _, r := range roles {
		f.roleID[r.Key] = r.ID
	}
	return f
}

// makeProject creates a project owned by f.owner with lead and dev on the
// roster, bypassing the service layer so tests control the starting state.
func (f *serviceFixture) makeProject(t *testing.T, title string) *models.Project {
	t.Helper()
	project := &models.Project{
		Title:   title,
		Status:  models.ProjectStatusActive,
		Health:  models.ProjectHealthHealthy,
		OwnerID: f.owner.ID,
	}
	require.NoError(t, f.db.Create(project).Error)
	project.Init(project.ID, project.UpdatedAt)
	require.NoError(t, f.db.Model(project).UpdateColumns(map[string]any{
		"version": project.Version,
		"etag":    project.Etag,
	}).Error)

	members := []models.TeamMember{
		{ProjectID: project.ID, UserID: f.lead.ID, RoleID: f.roleID[models.RoleKeyLead], Capacity: 100},
		{ProjectID: project.ID, UserID: f.developer.ID, RoleID: f.roleID[models.RoleKeyDeveloper], Capacity: 80},
	}
	require.NoError(t, f.db.Create(&members).Error)
	return project
}

// subscribe attaches a hub session to the project group.
func (f *serviceFixture) subscribe(p auth.Principal, projectID uint64) *realtime.Session {
	sess := f.hub.Register(p)
	f.hub.Join(sess, realtime.ProjectGroup(projectID))
	return sess
}

// inbox attaches a hub session to the principal's personal group.
func (f *serviceFixture) inbox(p auth.Principal) *realtime.Session {
	sess := f.hub.Register(p)
	f.hub.Join(sess, realtime.UserGroup(p.ID))
	return sess
}

// lastActivity returns the newest ledger entry for a project.
func (f *serviceFixture) lastActivity(t *testing.T, projectID uint64) models.Activity {
	t.Helper()
	var activity models.Activity
	require.NoError(t, f.db.Where("project_id = ?", projectID).
		Order("id DESC").First(&activity).Error)
	return activity
}

func (f *serviceFixture) activityCount(t *testing.T, projectID uint64) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Activity{}).
		Where("project_id = ?", projectID).Count(&count).Error)
	return count
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func statusPtr(s models.ProjectStatus) *models.ProjectStatus { return &s }

func healthPtr(h models.ProjectHealth) *models.ProjectHealth { return &h }

func timePtr(ts time.Time) *time.Time { return &ts }
