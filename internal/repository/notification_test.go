package repository

import (
	"context"
	"testing"
	"time"

	"huddle/internal/cache"
	"huddle/internal/models"
	"huddle/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository_ListAndRead(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	me := testutil.CreateUser(t, db, "me")
	other := testutil.CreateUser(t, db, "other")

	var mine []uint
	for i := 0; i < 3; i++ {
		n := &models.Notification{SenderID: &other.ID, ReceiverID: me.ID, Type: models.NotificationFriendRequest, Title: "t"}
		require.NoError(t, repo.Create(ctx, n))
		mine = append(mine, n.ID)
	}
	theirs := &models.Notification{ReceiverID: other.ID, Type: models.NotificationAnnouncement}
	require.NoError(t, repo.Create(ctx, theirs))

	list, err := repo.ListForUser(ctx, me.ID, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, mine[2], list[0].ID)
	require.NotNil(t, list[0].Sender)
	assert.Equal(t, other.Username, list[0].Sender.Username)

	require.NoError(t, repo.MarkRead(ctx, me.ID, mine[0]))

	err = repo.MarkRead(ctx, me.ID, theirs.ID)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)

	unread, err := repo.ListForUser(ctx, me.ID, true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	count, err := repo.CountUnread(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	n, err := repo.MarkAllRead(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err = repo.CountUnread(ctx, me.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.Error(t, repo.Delete(ctx, me.ID, theirs.ID))
	require.NoError(t, repo.Delete(ctx, me.ID, mine[1]))
	list, err = repo.ListForUser(ctx, me.ID, false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNotificationRepository_UnreadCountCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	me := testutil.CreateUser(t, db, "me")

	require.NoError(t, repo.Create(ctx, &models.Notification{ReceiverID: me.ID, Type: models.NotificationAnnouncement}))
	count, err := repo.CountUnread(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.True(t, mr.Exists(cache.UnreadCountKey(me.ID)))

	// Writes through the repository drop the cached count.
	require.NoError(t, repo.Create(ctx, &models.Notification{ReceiverID: me.ID, Type: models.NotificationAnnouncement}))
	assert.False(t, mr.Exists(cache.UnreadCountKey(me.ID)))

	count, err = repo.CountUnread(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestNotificationRepository_BatchAndDelivery(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	batch := []models.Notification{
		{ReceiverID: a.ID, Type: models.NotificationAnnouncement, DeliveryStatus: models.DeliveryPending},
		{ReceiverID: b.ID, Type: models.NotificationAnnouncement, DeliveryStatus: models.DeliveryNoDevice},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch))
	require.NotZero(t, batch[0].ID)
	require.NotZero(t, batch[1].ID)

	before := time.Now().Add(-time.Second)
	require.NoError(t, repo.RecordDelivery(ctx, batch[0].ID, models.DeliveryFailed, "timeout"))
	require.NoError(t, repo.RecordDelivery(ctx, batch[0].ID, models.DeliveryDelivered, ""))

	got, err := repo.GetByID(ctx, batch[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDelivered, got.DeliveryStatus)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.LastError)
	require.NotNil(t, got.DeliveredAt)
	assert.True(t, got.DeliveredAt.After(before))

	require.NoError(t, repo.SetDeliveryStatus(ctx, []uint{batch[1].ID}, models.DeliveryFailed, "queue full"))
	got, err = repo.GetByID(ctx, batch[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, got.DeliveryStatus)
	assert.Equal(t, "queue full", got.LastError)
	assert.Zero(t, got.Attempts)
}
