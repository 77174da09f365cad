package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekikawa/project-management-api/internal/models"
)

func TestTeamRosterManagement(t *testing.T) {
	f := newServiceFixture(t)
	project := f.makeProject(t, "Apollo")

	var newcomer models.User
	require.NoError(t, f.db.Where("username = ?", "stranger").First(&newcomer).Error)

	member, err := f.team.AddTeamMember(f.owner, project.ID, AddTeamMemberInput{
		UserID:   newcomer.ID,
		RoleID:   f.roleID[models.RoleKeyDesigner],
		Capacity: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, member.Capacity)
	assert.Equal(t, models.RoleKeyDesigner, member.Role.Key)
	assert.Equal(t, models.ActivityTeamAdded, f.lastActivity(t, project.ID).ActivityType)

	// The newcomer can now see the project.
	_, err = f.projects.Get(f.admin, project.ID)
	require.NoError(t, err)

	leadRole := f.roleID[models.RoleKeyLead]
	updated, err := f.team.UpdateTeamMember(f.owner, project.ID, newcomer.ID, UpdateTeamMemberInput{
		RoleID:   &leadRole,
		Capacity: intPtr(90),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleKeyLead, updated.Role.Key)
	assert.Equal(t, 90, updated.Capacity)
	assert.Equal(t, models.ActivityTeamUpdated, f.lastActivity(t, project.ID).ActivityType)

	require.NoError(t, f.team.RemoveTeamMember(f.owner, project.ID, newcomer.ID))
	assert.Equal(t, models.ActivityTeamRemoved, f.lastActivity(t, project.ID).ActivityType)

	members, err := f.team.ListTeam(f.owner, project.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestTeamManagementIsOwnerExclusive(t *testing.T) {
	f := newServiceFixture(t)
	project := f.makeProject(t, "Apollo")

	var newcomer models.User
	require.NoError(t, f.db.Where("username = ?", "stranger").First(&newcomer).Error)

	// Even a lead cannot manage the roster.
	_, err := f.team.AddTeamMember(f.lead, project.ID, AddTeamMemberInput{
		UserID: newcomer.ID,
		RoleID: f.roleID[models.RoleKeyViewer],
	})
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.team.RemoveTeamMember(f.developer, project.ID, f.lead.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTeamDuplicateMemberRejected(t *testing.T) {
	f := newServiceFixture(t)
	project := f.makeProject(t, "Apollo")

	_, err := f.team.AddTeamMember(f.owner, project.ID, AddTeamMemberInput{
		UserID:   f.lead.ID,
		RoleID:   f.roleID[models.RoleKeyViewer],
		Capacity: 50,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTeamBroadcasts(t *testing.T) {
	f := newServiceFixture(t)
	project := f.makeProject(t, "Apollo")
	sess := f.subscribe(f.developer, project.ID)

	var newcomer models.User
	require.NoError(t, f.db.Where("username = ?", "stranger").First(&newcomer).Error)

	_, err := f.team.AddTeamMember(f.owner, project.ID, AddTeamMemberInput{
		UserID: newcomer.ID,
		RoleID: f.roleID[models.RoleKeyViewer],
	})
	require.NoError(t, err)

	data, ok := <-sess.Outbound()
	require.True(t, ok)
	assert.Contains(t, string(data), `"team_member_changed"`)
	assert.Contains(t, string(data), `"added"`)
}

func TestListRolesSeeded(t *testing.T) {
	f := newServiceFixture(t)

	roles, err := f.team.ListRoles()
	require.NoError(t, err)
	require.Len(t, roles, 5)
	assert.Equal(t, models.RoleKeyLead, roles[0].Key)
	assert.True(t, roles[0].CanEdit())
	assert.False(t, roles[4].CanEdit())
}
