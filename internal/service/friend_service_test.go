package service

import (
	"context"
	"errors"
	"testing"

	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// friendRepoStub overrides single methods of a FriendRepository.
type friendRepoStub struct {
	repository.FriendRepository
	getByIDFn          func(context.Context, uint) (*models.Friendship, error)
	transitionStatusFn func(context.Context, uint, models.FriendshipStatus, models.FriendshipStatus) (bool, error)
}

func (s *friendRepoStub) GetByID(ctx context.Context, id uint) (*models.Friendship, error) {
	return s.getByIDFn(ctx, id)
}

func (s *friendRepoStub) TransitionStatus(ctx context.Context, id uint, from, to models.FriendshipStatus) (bool, error) {
	return s.transitionStatusFn(ctx, id, from, to)
}

func TestFriendService_SendToSelf(t *testing.T) {
	_, store := newTestStore(t)
	svc := NewFriendService(store, &recordingSender{})

	_, err := svc.SendFriendRequest(context.Background(), 3, 3, nil)
	requireAppCode(t, err, models.CodeValidation)
}

func TestFriendService_SendCreatesPendingAndNotifies(t *testing.T) {
	db, store := newTestStore(t)
	sender := &recordingSender{}
	svc := NewFriendService(store, sender)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	f, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusPending, f.Status)
	assert.Equal(t, alice.ID, f.RequesterID)
	assert.Equal(t, bob.ID, f.AddresseeID)
	require.NotNil(t, f.Requester)

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.NotificationFriendRequest, msgs[0].Type)
	assert.Equal(t, bob.ID, msgs[0].ReceiverID)
	require.NotNil(t, msgs[0].SenderID)
	assert.Equal(t, alice.ID, *msgs[0].SenderID)
	assert.Equal(t, alice.Username, msgs[0].Vars["sender"])
	require.NotNil(t, msgs[0].InstanceID)
	assert.Equal(t, f.ID, *msgs[0].InstanceID)
}

func TestFriendService_DuplicateRequestsEitherDirection(t *testing.T) {
	db, store := newTestStore(t)
	sender := &recordingSender{}
	svc := NewFriendService(store, sender)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	_, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	_, err = svc.SendFriendRequest(ctx, alice.ID, bob.ID, nil)
	appErr := requireAppCode(t, err, models.CodeValidation)
	assert.Equal(t, MsgRequestAlreadySent, appErr.Message)

	_, err = svc.SendFriendRequest(ctx, bob.ID, alice.ID, nil)
	appErr = requireAppCode(t, err, models.CodeValidation)
	assert.Equal(t, MsgRequestAlreadySent, appErr.Message)

	var count int64
	require.NoError(t, db.Model(&models.Friendship{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, sender.sent(), 1)
}

func TestFriendService_AlreadyFriends(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewFriendService(store, &recordingSender{})

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	testutil.Connect(t, db, alice, bob)

	_, err := svc.SendFriendRequest(context.Background(), bob.ID, alice.ID, nil)
	appErr := requireAppCode(t, err, models.CodeValidation)
	assert.Equal(t, MsgAlreadyFriends, appErr.Message)
}

func TestFriendService_BlockedPairCannotRequest(t *testing.T) {
	db, store := newTestStore(t)
	sender := &recordingSender{}
	svc := NewFriendService(store, sender)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	require.NoError(t, store.Blocks.Block(ctx, alice.ID, bob.ID))

	_, err := svc.SendFriendRequest(ctx, bob.ID, alice.ID, nil)
	requireAppCode(t, err, models.CodeForbidden)
	assert.Empty(t, sender.sent())
}

func TestFriendService_MissingTarget(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewFriendService(store, &recordingSender{})
	alice := testutil.CreateUser(t, db, "alice")

	_, err := svc.SendFriendRequest(context.Background(), alice.ID, 9999, nil)
	requireAppCode(t, err, models.CodeNotFound)
}

func TestFriendService_AcceptNotifiesRequesterOnce(t *testing.T) {
	db, store := newTestStore(t)
	sender := &recordingSender{}
	svc := NewFriendService(store, sender)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	f, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, bob.ID, f.ID, models.FriendshipStatusConnected)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusConnected, updated.Status)

	_, err = svc.UpdateStatus(ctx, bob.ID, f.ID, models.FriendshipStatusConnected)
	appErr := requireAppCode(t, err, models.CodeValidation)
	assert.Equal(t, MsgInvalidTransition, appErr.Message)

	accepted := sender.ofType(models.NotificationFriendRequestAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, alice.ID, accepted[0].ReceiverID)
	assert.Equal(t, bob.Username, accepted[0].Vars["sender"])
}

func TestFriendService_RejectSendsNothing(t *testing.T) {
	db, store := newTestStore(t)
	sender := &recordingSender{}
	svc := NewFriendService(store, sender)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	f, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, bob.ID, f.ID, models.FriendshipStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusRejected, updated.Status)
	assert.Len(t, sender.sent(), 1)
}

func TestFriendService_RejectedPairCanReopenInEitherDirection(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewFriendService(store, &recordingSender{})
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	f, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, bob.ID, f.ID, models.FriendshipStatusRejected)
	require.NoError(t, err)

	reopened, err := svc.SendFriendRequest(ctx, bob.ID, alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, f.ID, reopened.ID)
	assert.Equal(t, models.FriendshipStatusPending, reopened.Status)
	assert.Equal(t, bob.ID, reopened.RequesterID)
	assert.Equal(t, alice.ID, reopened.AddresseeID)

	status, err := svc.GetFriendshipStatus(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusPendingReceived, status.Status)
	assert.Equal(t, f.ID, status.RequestID)
}

func TestFriendService_UpdateStatusRules(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewFriendService(store, &recordingSender{})
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	f, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	t.Run("requester cannot answer", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, alice.ID, f.ID, models.FriendshipStatusConnected)
		requireAppCode(t, err, models.CodeForbidden)
	})
	t.Run("stranger cannot answer", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, carol.ID, f.ID, models.FriendshipStatusConnected)
		requireAppCode(t, err, models.CodeForbidden)
	})
	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, bob.ID, f.ID, models.FriendshipStatus("blocked"))
		requireAppCode(t, err, models.CodeValidation)
	})
	t.Run("pending to pending", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, bob.ID, f.ID, models.FriendshipStatusPending)
		requireAppCode(t, err, models.CodeValidation)
	})
	t.Run("connected back to pending", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, bob.ID, f.ID, models.FriendshipStatusConnected)
		require.NoError(t, err)
		_, err = svc.UpdateStatus(ctx, bob.ID, f.ID, models.FriendshipStatusPending)
		appErr := requireAppCode(t, err, models.CodeValidation)
		assert.Equal(t, MsgInvalidTransition, appErr.Message)
	})
	t.Run("missing request", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, bob.ID, 4242, models.FriendshipStatusConnected)
		requireAppCode(t, err, models.CodeNotFound)
	})
}

func TestFriendService_LostRaceDoesNotNotify(t *testing.T) {
	sender := &recordingSender{}
	store := &repository.Store{
		Friends: &friendRepoStub{
			getByIDFn: func(context.Context, uint) (*models.Friendship, error) {
				return &models.Friendship{ID: 5, RequesterID: 10, AddresseeID: 11, Status: models.FriendshipStatusPending}, nil
			},
			transitionStatusFn: func(context.Context, uint, models.FriendshipStatus, models.FriendshipStatus) (bool, error) {
				return false, nil
			},
		},
	}
	svc := NewFriendService(store, sender)

	_, err := svc.UpdateStatus(context.Background(), 11, 5, models.FriendshipStatusConnected)
	appErr := requireAppCode(t, err, models.CodeValidation)
	assert.Equal(t, MsgInvalidTransition, appErr.Message)
	assert.Empty(t, sender.sent())
}

func TestFriendService_NotificationFailureDoesNotFailRequest(t *testing.T) {
	db, store := newTestStore(t)
	sender := &recordingSender{err: errors.New("push backend down")}
	svc := NewFriendService(store, sender)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	f, err := svc.SendFriendRequest(context.Background(), alice.ID, bob.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusPending, f.Status)
	assert.Len(t, sender.sent(), 1)
}

func TestFriendService_Attachment(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewFriendService(store, &recordingSender{})
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	owned := &models.Attachment{OwnerID: alice.ID, ContentType: "image/png", Size: 10, Hash: "a", Path: "a.png"}
	foreign := &models.Attachment{OwnerID: carol.ID, ContentType: "image/png", Size: 10, Hash: "b", Path: "b.png"}
	require.NoError(t, store.Attachments.Create(ctx, owned))
	require.NoError(t, store.Attachments.Create(ctx, foreign))

	_, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, &foreign.ID)
	requireAppCode(t, err, models.CodeForbidden)

	f, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, &owned.ID)
	require.NoError(t, err)
	require.NotNil(t, f.AttachmentID)
	assert.Equal(t, owned.ID, *f.AttachmentID)

	stored, err := store.Attachments.GetByID(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentOwnerFriendship, stored.OwnerType)

	_, err = svc.SendFriendRequest(ctx, alice.ID, carol.ID, &owned.ID)
	requireAppCode(t, err, models.CodeForbidden)
}

func TestFriendService_WithdrawAndRemove(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewFriendService(store, &recordingSender{})
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	f, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	requireAppCode(t, svc.WithdrawFriendRequest(ctx, bob.ID, f.ID), models.CodeForbidden)
	require.NoError(t, svc.WithdrawFriendRequest(ctx, alice.ID, f.ID))

	status, err := svc.GetFriendshipStatus(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusNone, status.Status)
	assert.Zero(t, status.RequestID)

	requireAppCode(t, svc.RemoveFriend(ctx, alice.ID, bob.ID), models.CodeNotFound)

	testutil.Connect(t, db, alice, carol)
	require.NoError(t, svc.RemoveFriend(ctx, carol.ID, alice.ID))
	friends, total, err := svc.GetMyFriends(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, friends)
	assert.Zero(t, total)
}

func TestFriendService_ListsAndStatus(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewFriendService(store, &recordingSender{})
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	testutil.Connect(t, db, alice, carol)

	_, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	sent, err := svc.GetSentRequests(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, bob.ID, sent[0].AddresseeID)

	incoming, err := svc.GetConnectionRequests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, alice.ID, incoming[0].RequesterID)

	friends, total, err := svc.GetMyFriends(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, carol.ID, friends[0].ID)
	assert.Equal(t, int64(1), total)

	for _, tc := range []struct {
		viewer, other uint
		want          models.FriendStatus
	}{
		{alice.ID, bob.ID, models.FriendStatusPendingSent},
		{bob.ID, alice.ID, models.FriendStatusPendingReceived},
		{alice.ID, carol.ID, models.FriendStatusConnected},
		{bob.ID, carol.ID, models.FriendStatusNone},
	} {
		status, err := svc.GetFriendshipStatus(ctx, tc.viewer, tc.other)
		require.NoError(t, err)
		assert.Equal(t, tc.want, status.Status, "viewer %d other %d", tc.viewer, tc.other)
	}
}

func TestFriendService_Mutuals(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewFriendService(store, &recordingSender{})
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	testutil.Connect(t, db, alice, carol)
	testutil.Connect(t, db, carol, bob)

	mutual, err := svc.GetMutualFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, mutual, 1)
	assert.Equal(t, carol.ID, mutual[0].ID)

	_, err = svc.GetMutualFriends(ctx, alice.ID, alice.ID)
	requireAppCode(t, err, models.CodeValidation)

	require.NoError(t, store.Blocks.Block(ctx, bob.ID, alice.ID))
	_, err = svc.GetMutualFriends(ctx, alice.ID, bob.ID)
	requireAppCode(t, err, models.CodeNotFound)
	_, err = svc.GetMutualGroups(ctx, alice.ID, bob.ID)
	requireAppCode(t, err, models.CodeNotFound)
	_, err = svc.GetMutualEvents(ctx, alice.ID, bob.ID)
	requireAppCode(t, err, models.CodeNotFound)
}
