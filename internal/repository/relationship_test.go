package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"huddle/internal/models"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRelationshipExpr_HighestRankFirst(t *testing.T) {
	spec := RelationshipSpec{
		Target: "things.id",
		Sources: []RelationshipSource{
			{Table: "a", TargetCol: "thing_id", UserCol: "user_id", Rank: 1},
			{Table: "b", TargetCol: "thing_id", UserCol: "user_id", Where: "rel.kind = ?", Args: []interface{}{"x"}, Rank: 4},
			{Table: "c", TargetCol: "thing_id", UserCol: "user_id", Rank: 2},
		},
	}

	expr := RelationshipExpr(spec, 7)
	assert.True(t, strings.HasPrefix(expr.SQL, "CASE WHEN EXISTS (SELECT 1 FROM b rel WHERE rel.thing_id = things.id AND rel.user_id = ? AND rel.kind = ?) THEN 4"))
	assert.Less(t, strings.Index(expr.SQL, "THEN 4"), strings.Index(expr.SQL, "THEN 2"))
	assert.Less(t, strings.Index(expr.SQL, "THEN 2"), strings.Index(expr.SQL, "THEN 1"))
	assert.True(t, strings.HasSuffix(expr.SQL, "ELSE 0 END"))
	assert.Equal(t, []interface{}{uint(7), "x", uint(7), uint(7)}, expr.Vars)

	// The input order is left alone.
	assert.Equal(t, 1, spec.Sources[0].Rank)
}

func createGroup(t *testing.T, db *gorm.DB, owner *models.User, private bool) *models.Group {
	t.Helper()
	g := &models.Group{Name: "group of " + owner.Username, OwnerID: owner.ID, IsPrivate: private}
	require.NoError(t, db.Create(g).Error)
	require.NoError(t, db.Create(&models.GroupMember{GroupID: g.ID, UserID: owner.ID, Status: models.GroupMemberJoined, Role: models.GroupRoleOwner}).Error)
	return g
}

func TestGroupRepository_Relationship(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	viewer := testutil.CreateUser(t, db, "viewer")

	joined := createGroup(t, db, owner, false)
	invited := createGroup(t, db, owner, false)
	inviteOnly := createGroup(t, db, owner, true)
	requested := createGroup(t, db, owner, false)
	unrelated := createGroup(t, db, owner, false)
	hidden := createGroup(t, db, owner, true)

	require.NoError(t, db.Create(&models.GroupMember{GroupID: joined.ID, UserID: viewer.ID, Status: models.GroupMemberJoined, Role: models.GroupRoleMember}).Error)
	// A stale pending invite must not outrank the membership.
	require.NoError(t, db.Create(&models.Invite{InviteFromID: owner.ID, InviteToID: viewer.ID, InstanceType: models.InstanceTypeGroup, InstanceID: joined.ID, Status: models.InviteStatusPending}).Error)
	require.NoError(t, db.Create(&models.GroupMember{GroupID: invited.ID, UserID: viewer.ID, Status: models.GroupMemberInvited, Role: models.GroupRoleMember}).Error)
	require.NoError(t, db.Create(&models.Invite{InviteFromID: owner.ID, InviteToID: viewer.ID, InstanceType: models.InstanceTypeGroup, InstanceID: inviteOnly.ID, Status: models.InviteStatusPending}).Error)
	require.NoError(t, db.Create(&models.GroupMember{GroupID: requested.ID, UserID: viewer.ID, Status: models.GroupMemberRequested, Role: models.GroupRoleMember}).Error)
	// An event invite with the same instance id must not leak into groups.
	require.NoError(t, db.Create(&models.Invite{InviteFromID: owner.ID, InviteToID: viewer.ID, InstanceType: models.InstanceTypeEvent, InstanceID: unrelated.ID, Status: models.InviteStatusPending}).Error)

	groups, err := repo.List(ctx, viewer.ID, GroupFilter{}, 50, 0)
	require.NoError(t, err)

	got := map[uint]models.Group{}
	for _, g := range groups {
		got[g.ID] = g
	}
	assert.NotContains(t, got, hidden.ID, "private groups without a link stay hidden")
	assert.Equal(t, models.RelationshipJoined, got[joined.ID].Relationship)
	assert.Equal(t, models.RankMember, got[joined.ID].RelationshipRank)
	assert.Equal(t, models.RelationshipInvited, got[invited.ID].Relationship)
	assert.Equal(t, models.RelationshipInvited, got[inviteOnly.ID].Relationship)
	assert.Equal(t, models.RelationshipRequested, got[requested.ID].Relationship)
	assert.Equal(t, models.RelationshipNone, got[unrelated.ID].Relationship)
	assert.Equal(t, 0, got[unrelated.ID].RelationshipRank)

	// Newest first.
	assert.Equal(t, unrelated.ID, groups[0].ID)

	filtered, err := repo.List(ctx, viewer.ID, GroupFilter{Relationship: models.RelationshipInvited}, 50, 0)
	require.NoError(t, err)
	ids := []uint{}
	for _, g := range filtered {
		ids = append(ids, g.ID)
	}
	assert.ElementsMatch(t, []uint{invited.ID, inviteOnly.ID}, ids)

	one, err := repo.GetForViewer(ctx, joined.ID, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipJoined, one.Relationship)

	owned, err := repo.GetForViewer(ctx, hidden.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipJoined, owned.Relationship)

	_, err = repo.GetForViewer(ctx, 9999, viewer.ID)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestGroupRepository_MembersAndCounts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	admin := testutil.CreateUser(t, db, "admin")
	member := testutil.CreateUser(t, db, "member")
	pending := testutil.CreateUser(t, db, "pending")
	g := createGroup(t, db, owner, false)

	require.NoError(t, repo.CreateMember(ctx, &models.GroupMember{GroupID: g.ID, UserID: admin.ID, Status: models.GroupMemberJoined, Role: models.GroupRoleAdmin}))
	require.NoError(t, repo.CreateMember(ctx, &models.GroupMember{GroupID: g.ID, UserID: member.ID, Status: models.GroupMemberJoined, Role: models.GroupRoleMember}))
	require.NoError(t, repo.CreateMember(ctx, &models.GroupMember{GroupID: g.ID, UserID: pending.ID, Status: models.GroupMemberRequested, Role: models.GroupRoleMember}))

	err := repo.CreateMember(ctx, &models.GroupMember{GroupID: g.ID, UserID: member.ID, Status: models.GroupMemberRequested, Role: models.GroupRoleMember})
	assert.ErrorIs(t, err, ErrDuplicate)

	count, err := repo.RecountMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	managers, err := repo.ListManagerIDs(ctx, g.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{owner.ID, admin.ID}, managers)

	requests, err := repo.ListMembers(ctx, g.ID, models.GroupMemberRequested, 10, 0)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, pending.ID, requests[0].UserID)
	require.NotNil(t, requests[0].User)

	n, err := repo.DeleteMember(ctx, g.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err = repo.RecountMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.MemberCount)

	missing, err := repo.GetMember(ctx, g.ID, member.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGroupRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	guest := testutil.CreateUser(t, db, "guest")
	g := createGroup(t, db, owner, false)
	require.NoError(t, db.Create(&models.Invite{InviteFromID: owner.ID, InviteToID: guest.ID, InstanceType: models.InstanceTypeGroup, InstanceID: g.ID}).Error)

	require.NoError(t, repo.Delete(ctx, g.ID))

	var members, invites int64
	require.NoError(t, db.Model(&models.GroupMember{}).Where("group_id = ?", g.ID).Count(&members).Error)
	require.NoError(t, db.Model(&models.Invite{}).Where("instance_id = ?", g.ID).Count(&invites).Error)
	assert.Zero(t, members)
	assert.Zero(t, invites)

	_, err := repo.GetByID(ctx, g.ID)
	assert.Error(t, err)
}

func TestGroupRepository_MutualGroups(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")
	both := createGroup(t, db, a, false)
	onlyA := createGroup(t, db, a, false)
	requestedByB := createGroup(t, db, a, false)

	require.NoError(t, db.Create(&models.GroupMember{GroupID: both.ID, UserID: b.ID, Status: models.GroupMemberJoined, Role: models.GroupRoleMember}).Error)
	require.NoError(t, db.Create(&models.GroupMember{GroupID: requestedByB.ID, UserID: b.ID, Status: models.GroupMemberRequested, Role: models.GroupRoleMember}).Error)

	groups, err := repo.MutualGroups(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, both.ID, groups[0].ID)
	assert.NotEqual(t, onlyA.ID, groups[0].ID)
}

func TestEventRepository_Relationship(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	host := testutil.CreateUser(t, db, "host")
	viewer := testutil.CreateUser(t, db, "viewer")
	start := time.Now().Add(24 * time.Hour)

	mk := func(title string, offset time.Duration) *models.Event {
		e := &models.Event{Title: title, HostID: host.ID, StartsAt: start.Add(offset)}
		require.NoError(t, repo.Create(ctx, e))
		require.NoError(t, repo.CreateParticipant(ctx, &models.EventParticipant{EventID: e.ID, UserID: host.ID, Status: models.EventParticipantGoing}))
		return e
	}
	going := mk("going", 0)
	interested := mk("interested", time.Hour)
	invited := mk("invited", 2*time.Hour)
	past := &models.Event{Title: "past", HostID: host.ID, StartsAt: time.Now().Add(-24 * time.Hour)}
	require.NoError(t, repo.Create(ctx, past))

	require.NoError(t, repo.CreateParticipant(ctx, &models.EventParticipant{EventID: going.ID, UserID: viewer.ID, Status: models.EventParticipantGoing}))
	require.NoError(t, db.Create(&models.Invite{InviteFromID: host.ID, InviteToID: viewer.ID, InstanceType: models.InstanceTypeEvent, InstanceID: going.ID}).Error)
	require.NoError(t, repo.CreateParticipant(ctx, &models.EventParticipant{EventID: interested.ID, UserID: viewer.ID, Status: models.EventParticipantInterested}))
	require.NoError(t, repo.CreateParticipant(ctx, &models.EventParticipant{EventID: invited.ID, UserID: viewer.ID, Status: models.EventParticipantInvited}))

	events, err := repo.List(ctx, viewer.ID, EventFilter{Upcoming: true}, 50, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, going.ID, events[0].ID, "soonest first")
	assert.Equal(t, models.RelationshipGoing, events[0].Relationship)
	assert.Equal(t, models.RelationshipInterested, events[1].Relationship)
	assert.Equal(t, models.RankInterested, events[1].RelationshipRank)
	assert.Equal(t, models.RelationshipInvited, events[2].Relationship)

	count, err := repo.RecountParticipants(ctx, going.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.RecountParticipants(ctx, invited.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "invited rows are not attending")

	mutual, err := repo.MutualEvents(ctx, host.ID, viewer.ID)
	require.NoError(t, err)
	ids := []uint{}
	for _, e := range mutual {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []uint{going.ID, interested.ID}, ids)
}
