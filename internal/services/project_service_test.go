package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/realtime"
)

type ProjectServiceSuite struct {
	suite.Suite
	f *serviceFixture
}

func TestProjectServiceSuite(t *testing.T) {
	suite.Run(t, new(ProjectServiceSuite))
}

func (s *ProjectServiceSuite) SetupTest() {
	s.f = newServiceFixture(s.T())
}

func (s *ProjectServiceSuite) readEvent(sess *realtime.Session) realtime.Event {
	select {
	case data, ok := <-sess.Outbound():
		s.Require().True(ok)
		var evt realtime.Event
		s.Require().NoError(json.Unmarshal(data, &evt))
		return evt
	default:
		s.FailNow("expected a queued event")
		return realtime.Event{}
	}
}

func (s *ProjectServiceSuite) TestCreateWritesLedgerAndEtag() {
	project, err := s.f.projects.Create(s.f.owner, CreateProjectInput{Title: "Apollo"})
	s.Require().NoError(err)

	s.Equal(models.ProjectStatusActive, project.Status)
	s.Equal(models.ProjectHealthHealthy, project.Health)
	s.Equal(1, project.Version)
	s.Len(project.Etag, 32)

	activity := s.f.lastActivity(s.T(), project.ID)
	s.Equal(models.ActivityCreated, activity.ActivityType)
}

func (s *ProjectServiceSuite) TestCreateRejectsInvalidStatus() {
	_, err := s.f.projects.Create(s.f.owner, CreateProjectInput{
		Title:  "Broken",
		Status: models.ProjectStatus("bogus"),
	})
	s.ErrorIs(err, ErrValidation)
}

func (s *ProjectServiceSuite) TestGetHidesFromStrangers() {
	project := s.f.makeProject(s.T(), "Secret")

	_, err := s.f.projects.Get(s.f.stranger, project.ID)
	s.ErrorIs(err, ErrNotFound)

	got, err := s.f.projects.Get(s.f.developer, project.ID)
	s.Require().NoError(err)
	s.Equal(project.ID, got.ID)
}

func (s *ProjectServiceSuite) TestUpdateBumpsRevisionAndBroadcasts() {
	project := s.f.makeProject(s.T(), "Apollo")
	sess := s.f.subscribe(s.f.developer, project.ID)
	devInbox := s.f.inbox(s.f.developer)
	ownerInbox := s.f.inbox(s.f.owner)

	updated, err := s.f.projects.Update(s.f.owner, project.ID, UpdateProjectInput{
		Title: strPtr("Apollo 11"),
		Etag:  &project.Etag,
	})
	s.Require().NoError(err)

	s.Equal("Apollo 11", updated.Title)
	s.Equal(project.Version+1, updated.Version)
	s.NotEqual(project.Etag, updated.Etag)

	activity := s.f.lastActivity(s.T(), project.ID)
	s.Equal(models.ActivityUpdated, activity.ActivityType)
	s.Equal([]string{"title"}, []string(activity.ChangedFields))
	s.Equal("Apollo", activity.PreviousValues["title"])
	s.Equal("Apollo 11", activity.NewValues["title"])

	evt := s.readEvent(sess)
	s.Equal(realtime.KindProjectUpdated, evt.Kind)
	s.Equal("updated", evt.EventType)
	s.Equal("Apollo 11", evt.Data["title"])

	// Team members get a personal notification; the actor does not.
	note := s.readEvent(devInbox)
	s.Equal(realtime.KindNotification, note.Kind)
	s.Empty(ownerInbox.Outbound())
}

func (s *ProjectServiceSuite) TestUpdateWithStaleEtagChangesNothing() {
	project := s.f.makeProject(s.T(), "Apollo")
	before := s.f.activityCount(s.T(), project.ID)
	sess := s.f.subscribe(s.f.owner, project.ID)

	_, err := s.f.projects.Update(s.f.owner, project.ID, UpdateProjectInput{
		Title: strPtr("Hijacked"),
		Etag:  strPtr("0123456789abcdef0123456789abcdef"),
	})
	s.ErrorIs(err, ErrEtagMismatch)

	var reloaded models.Project
	s.Require().NoError(s.f.db.First(&reloaded, project.ID).Error)
	s.Equal("Apollo", reloaded.Title)
	s.Equal(project.Version, reloaded.Version)
	s.Equal(project.Etag, reloaded.Etag)
	s.Equal(before, s.f.activityCount(s.T(), project.ID))
	s.Empty(sess.Outbound())
}

// A writer that read the same revision but commits first must win; the loser
// detects the new etag at write time and rolls back. The callback injects the
// competing write on the raw connection between the transaction's snapshot
// read and its update statement.
func (s *ProjectServiceSuite) TestUpdateRejectsConcurrentWriter() {
	project := s.f.makeProject(s.T(), "Apollo")
	before := s.f.activityCount(s.T(), project.ID)

	raced := false
	s.Require().NoError(s.f.db.Callback().Update().Before("gorm:update").Register("interleave", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "projects" {
			return
		}
		raced = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE projects SET etag = ?, version = version + 1 WHERE id = ?",
			"ffffffffffffffffffffffffffffffff", project.ID)
		s.Require().NoError(err)
	}))

	_, err := s.f.projects.Update(s.f.owner, project.ID, UpdateProjectInput{
		Title: strPtr("Hijacked"),
		Etag:  &project.Etag,
	})
	s.ErrorIs(err, ErrEtagMismatch)
	s.True(raced)

	// The losing transaction rolled back whole, ledger entry included.
	var reloaded models.Project
	s.Require().NoError(s.f.db.First(&reloaded, project.ID).Error)
	s.Equal("Apollo", reloaded.Title)
	s.Equal(before, s.f.activityCount(s.T(), project.ID))
}

func (s *ProjectServiceSuite) TestUpdateWithoutEtagSkipsCheck() {
	project := s.f.makeProject(s.T(), "Apollo")

	updated, err := s.f.projects.Update(s.f.owner, project.ID, UpdateProjectInput{
		Title: strPtr("Renamed"),
	})
	s.Require().NoError(err)
	s.Equal("Renamed", updated.Title)
}

func (s *ProjectServiceSuite) TestStatusOnlyUpdateGetsDedicatedActivity() {
	project := s.f.makeProject(s.T(), "Apollo")

	_, err := s.f.projects.Update(s.f.owner, project.ID, UpdateProjectInput{
		Status: statusPtr(models.ProjectStatusOnHold),
	})
	s.Require().NoError(err)
	s.Equal(models.ActivityStatusChanged, s.f.lastActivity(s.T(), project.ID).ActivityType)

	_, err = s.f.projects.Update(s.f.owner, project.ID, UpdateProjectInput{
		Health: healthPtr(models.ProjectHealthAtRisk),
	})
	s.Require().NoError(err)
	s.Equal(models.ActivityHealthChanged, s.f.lastActivity(s.T(), project.ID).ActivityType)
}

func (s *ProjectServiceSuite) TestUpdateIgnoresUnchangedFields() {
	project := s.f.makeProject(s.T(), "Apollo")

	_, err := s.f.projects.Update(s.f.owner, project.ID, UpdateProjectInput{
		Title:  strPtr("Apollo"), // same value, must not be recorded
		Status: statusPtr(models.ProjectStatusCompleted),
	})
	s.Require().NoError(err)

	activity := s.f.lastActivity(s.T(), project.ID)
	s.Equal([]string{"status"}, []string(activity.ChangedFields))
	s.Equal(models.ActivityStatusChanged, activity.ActivityType)
}

func (s *ProjectServiceSuite) TestLeadCanEditDeveloperCannot() {
	project := s.f.makeProject(s.T(), "Apollo")

	_, err := s.f.projects.Update(s.f.lead, project.ID, UpdateProjectInput{
		Title: strPtr("Lead Edit"),
	})
	s.NoError(err)

	_, err = s.f.projects.Update(s.f.developer, project.ID, UpdateProjectInput{
		Title: strPtr("Dev Edit"),
	})
	s.ErrorIs(err, ErrForbidden)
}

func (s *ProjectServiceSuite) TestSoftDeleteAndRestore() {
	project := s.f.makeProject(s.T(), "Apollo")

	// Team roles never gate owner-exclusive actions.
	s.ErrorIs(s.f.projects.SoftDelete(s.f.lead, project.ID), ErrForbidden)
	s.Require().NoError(s.f.projects.SoftDelete(s.f.owner, project.ID))

	_, err := s.f.projects.Get(s.f.owner, project.ID)
	s.ErrorIs(err, ErrNotFound)

	deleted, err := s.f.projects.ListDeleted(s.f.owner)
	s.Require().NoError(err)
	s.Require().Len(deleted, 1)
	s.Equal(project.ID, deleted[0].ID)

	restored, err := s.f.projects.Restore(s.f.owner, project.ID)
	s.Require().NoError(err)
	s.False(restored.IsDeleted())
	s.Equal(models.ActivityRestored, s.f.lastActivity(s.T(), project.ID).ActivityType)

	_, err = s.f.projects.Get(s.f.owner, project.ID)
	s.NoError(err)
}

func (s *ProjectServiceSuite) TestDeleteAndRestoreBroadcastToSubscribers() {
	project := s.f.makeProject(s.T(), "Apollo")
	first := s.f.subscribe(s.f.lead, project.ID)
	second := s.f.subscribe(s.f.developer, project.ID)

	s.Require().NoError(s.f.projects.SoftDelete(s.f.owner, project.ID))

	// Tombstoned projects disappear from the regular listing.
	live, _, err := s.f.projects.List(s.f.owner, nil, nil, 1, 20)
	s.Require().NoError(err)
	s.Empty(live)

	_, err = s.f.projects.Restore(s.f.owner, project.ID)
	s.Require().NoError(err)

	for _, sess := range []*realtime.Session{first, second} {
		evt := s.readEvent(sess)
		s.Equal(realtime.KindProjectUpdated, evt.Kind)
		s.Equal("deleted", evt.EventType)
		s.Equal("Apollo", evt.Data["title"])

		evt = s.readEvent(sess)
		s.Equal(realtime.KindProjectUpdated, evt.Kind)
		s.Equal("restored", evt.EventType)
	}
}

func (s *ProjectServiceSuite) TestRestoreLiveProjectFails() {
	project := s.f.makeProject(s.T(), "Apollo")

	_, err := s.f.projects.Restore(s.f.owner, project.ID)
	s.ErrorIs(err, ErrNotDeleted)
}

func (s *ProjectServiceSuite) TestDeleteBumpsEtagSoStaleWritersConflict() {
	project := s.f.makeProject(s.T(), "Apollo")

	s.Require().NoError(s.f.projects.SoftDelete(s.f.owner, project.ID))
	_, err := s.f.projects.Restore(s.f.owner, project.ID)
	s.Require().NoError(err)

	// A writer holding the pre-delete etag must now conflict.
	_, err = s.f.projects.Update(s.f.owner, project.ID, UpdateProjectInput{
		Title: strPtr("Stale"),
		Etag:  &project.Etag,
	})
	s.ErrorIs(err, ErrEtagMismatch)
}

func (s *ProjectServiceSuite) TestListScopesToViewer() {
	mine := s.f.makeProject(s.T(), "Mine")
	_ = mine

	other := &models.Project{Title: "Foreign", Status: models.ProjectStatusActive,
		Health: models.ProjectHealthHealthy, OwnerID: s.f.stranger.ID}
	s.Require().NoError(s.f.db.Create(other).Error)

	projects, total, err := s.f.projects.List(s.f.owner, nil, nil, 1, 20)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(projects, 1)
	s.Equal("Mine", projects[0].Title)

	// Membership grants visibility too.
	projects, _, err = s.f.projects.List(s.f.developer, nil, nil, 1, 20)
	s.Require().NoError(err)
	s.Len(projects, 1)

	// Admins see everything.
	_, total, err = s.f.projects.List(s.f.admin, nil, nil, 1, 20)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
}

func (s *ProjectServiceSuite) TestBulkUpdateIsOwnerExclusive() {
	project := s.f.makeProject(s.T(), "Apollo")

	_, err := s.f.projects.BulkUpdate(s.f.lead, BulkUpdateInput{
		ProjectIDs: []uint64{project.ID},
		Etag:       project.Etag,
		Status:     statusPtr(models.ProjectStatusArchived),
	})
	s.ErrorIs(err, ErrForbidden)
}

func (s *ProjectServiceSuite) TestBulkUpdateAppliesAndLogsOnce() {
	project := s.f.makeProject(s.T(), "Apollo")
	sess := s.f.subscribe(s.f.developer, project.ID)

	updated, err := s.f.projects.BulkUpdate(s.f.owner, BulkUpdateInput{
		ProjectIDs: []uint64{project.ID},
		Etag:       project.Etag,
		Status:     statusPtr(models.ProjectStatusArchived),
	})
	s.Require().NoError(err)
	s.Require().Len(updated, 1)
	s.Equal(models.ProjectStatusArchived, updated[0].Status)
	s.Equal(project.Version+1, updated[0].Version)

	activity := s.f.lastActivity(s.T(), project.ID)
	s.Equal(models.ActivityBulkUpdated, activity.ActivityType)

	evt := s.readEvent(sess)
	s.Equal("bulk_updated", evt.EventType)
}

func (s *ProjectServiceSuite) TestBulkUpdateIsAllOrNothing() {
	a := s.f.makeProject(s.T(), "A")
	b := s.f.makeProject(s.T(), "B")

	// B's etag differs from A's; the shared expectation cannot hold, so
	// neither project may change.
	_, err := s.f.projects.BulkUpdate(s.f.owner, BulkUpdateInput{
		ProjectIDs: []uint64{a.ID, b.ID},
		Etag:       a.Etag,
		Status:     statusPtr(models.ProjectStatusArchived),
	})
	s.ErrorIs(err, ErrEtagMismatch)

	var reloaded models.Project
	s.Require().NoError(s.f.db.First(&reloaded, a.ID).Error)
	s.Equal(models.ProjectStatusActive, reloaded.Status)
	s.Equal(a.Version, reloaded.Version)
}

func (s *ProjectServiceSuite) TestBulkUpdateRejectsForeignProjects() {
	mine := s.f.makeProject(s.T(), "Mine")
	foreign := &models.Project{Title: "Foreign", Status: models.ProjectStatusActive,
		Health: models.ProjectHealthHealthy, OwnerID: s.f.stranger.ID}
	s.Require().NoError(s.f.db.Create(foreign).Error)

	_, err := s.f.projects.BulkUpdate(s.f.owner, BulkUpdateInput{
		ProjectIDs: []uint64{mine.ID, foreign.ID},
		Etag:       mine.Etag,
	})
	s.ErrorIs(err, ErrForbidden)
}

func (s *ProjectServiceSuite) TestActivitiesAndChangelogRequireView() {
	project := s.f.makeProject(s.T(), "Apollo")

	_, err := s.f.projects.Activities(s.f.stranger, project.ID, 10)
	s.ErrorIs(err, ErrNotFound)

	_, err = s.f.projects.Update(s.f.owner, project.ID, UpdateProjectInput{
		Status: statusPtr(models.ProjectStatusOnHold),
	})
	s.Require().NoError(err)

	activities, err := s.f.projects.Activities(s.f.developer, project.ID, 10)
	s.Require().NoError(err)
	s.NotEmpty(activities)
	// Newest first.
	s.Equal(models.ActivityStatusChanged, activities[0].ActivityType)
}
