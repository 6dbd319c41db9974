package service

import (
	"context"
	"strings"
	"testing"

	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// userRepoStub overrides single methods of a UserRepository.
type userRepoStub struct {
	repository.UserRepository
	getByIDFn func(context.Context, uint) (*models.User, error)
	updateFn  func(context.Context, *models.User) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}

func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, user)
}

func strPtr(s string) *string { return &s }

func TestUserService_UpdateProfile_Validation(t *testing.T) {
	t.Parallel()

	repo := &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: "original"}, nil
		},
	}
	svc := NewUserService(&repository.Store{Users: repo})

	tests := []struct {
		name string
		in   UpdateProfileInput
	}{
		{"username too long", UpdateProfileInput{Username: strPtr(strings.Repeat("x", 31))}},
		{"reserved username", UpdateProfileInput{Username: strPtr("admin")}},
		{"bio too long", UpdateProfileInput{Bio: strPtr(strings.Repeat("x", 501))}},
		{"first name too long", UpdateProfileInput{FirstName: strPtr(strings.Repeat("x", 61))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(context.Background(), 1, tt.in)
			requireAppCode(t, err, models.CodeValidation)
		})
	}
}

func TestUserService_UpdateProfile_PartialUpdate(t *testing.T) {
	t.Parallel()

	var saved *models.User
	repo := &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: "old", Bio: "my bio"}, nil
		},
		updateFn: func(_ context.Context, u *models.User) error {
			saved = u
			return nil
		},
	}
	svc := NewUserService(&repository.Store{Users: repo})

	user, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{Username: strPtr("newname")})
	require.NoError(t, err)
	assert.Equal(t, "newname", user.Username)
	assert.Equal(t, "my bio", user.Bio, "bio should be unchanged when not provided")
	require.NotNil(t, saved)
	assert.Equal(t, "newname", saved.Username)
}

func TestUserService_GetProfileFriendStatus(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewUserService(store)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	testutil.Connect(t, db, alice, bob)

	profile, err := svc.GetProfile(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusConnected, profile.FriendStatus)

	profile, err = svc.GetProfile(ctx, alice.ID, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusNone, profile.FriendStatus)

	require.NoError(t, store.Blocks.Block(ctx, carol.ID, alice.ID))
	_, err = svc.GetProfile(ctx, alice.ID, carol.ID)
	requireAppCode(t, err, models.CodeNotFound)
}

func TestUserService_BlockDropsFriendship(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewUserService(store)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	testutil.Connect(t, db, alice, bob)

	requireAppCode(t, svc.BlockUser(ctx, alice.ID, alice.ID), models.CodeValidation)
	requireAppCode(t, svc.BlockUser(ctx, alice.ID, 9999), models.CodeNotFound)

	require.NoError(t, svc.BlockUser(ctx, alice.ID, bob.ID))
	friendship, err := store.Friends.GetBetween(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, friendship)

	blocked, err := svc.ListBlocked(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, bob.ID, blocked[0].ID)

	require.NoError(t, svc.UnblockUser(ctx, alice.ID, bob.ID))
	blocked, err = svc.ListBlocked(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, blocked)
}

func TestUserService_ChangePassword(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewUserService(store)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("OldPassword12!"), bcrypt.MinCost)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "pw")
	require.NoError(t, store.Users.UpdatePassword(ctx, user.ID, string(hash)))

	requireAppCode(t, svc.ChangePassword(ctx, user.ID, "wrong", "NewPassword12!"), models.CodeUnauthorized)
	requireAppCode(t, svc.ChangePassword(ctx, user.ID, "OldPassword12!", "short"), models.CodeValidation)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "OldPassword12!", "NewPassword12!"))

	fresh, err := store.Users.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(fresh.Password), []byte("NewPassword12!")))
}

func TestUserService_Search(t *testing.T) {
	db, store := newTestStore(t)
	svc := NewUserService(store)
	ctx := context.Background()

	viewer := testutil.CreateUser(t, db, "viewer")
	friend := testutil.CreateUser(t, db, "zed")
	testutil.CreateUser(t, db, "zoe")
	testutil.Connect(t, db, viewer, friend)

	_, err := svc.Search(ctx, viewer.ID, "  ", 10, 0)
	requireAppCode(t, err, models.CodeValidation)

	users, err := svc.Search(ctx, viewer.ID, "z", 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, friend.ID, users[0].ID, "friends rank first")
	assert.Equal(t, models.FriendStatusConnected, users[0].FriendStatus)
}
