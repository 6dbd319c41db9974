package repository

import (
	"context"
	"regexp"
	"testing"

	"huddle/internal/models"
	"huddle/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := &models.Post{UserID: 3, Content: "Content"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, post)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Feed(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	me := testutil.CreateUser(t, db, "me")
	friend := testutil.CreateUser(t, db, "friend")
	stranger := testutil.CreateUser(t, db, "stranger")
	exFriend := testutil.CreateUser(t, db, "ex")
	testutil.Connect(t, db, me, friend)
	testutil.Connect(t, db, exFriend, me)
	require.NoError(t, db.Create(&models.UserBlock{BlockerID: me.ID, BlockedID: exFriend.ID}).Error)

	attachment := &models.Attachment{OwnerID: me.ID, OwnerType: models.AttachmentOwnerPost, ContentType: "image/png", Size: 1, Hash: "h", Path: "p"}
	require.NoError(t, db.Create(attachment).Error)

	mine := &models.Post{UserID: me.ID, Content: "mine", AttachmentID: &attachment.ID}
	theirs := &models.Post{UserID: friend.ID, Content: "friend"}
	for _, p := range []*models.Post{mine, theirs,
		{UserID: stranger.ID, Content: "stranger"},
		{UserID: exFriend.ID, Content: "blocked"},
	} {
		require.NoError(t, repo.Create(ctx, p))
	}

	feed, err := repo.Feed(ctx, me.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, theirs.ID, feed[0].ID)
	assert.Equal(t, mine.ID, feed[1].ID)
	require.NotNil(t, feed[1].Attachment)
	assert.Equal(t, "image/png", feed[1].Attachment.ContentType)
	require.NotNil(t, feed[0].User)
	assert.Equal(t, friend.Username, feed[0].User.Username)

	require.NoError(t, repo.Delete(ctx, theirs.ID))
	feed, err = repo.Feed(ctx, me.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, feed, 1)
}
