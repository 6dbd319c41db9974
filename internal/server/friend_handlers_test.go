package server

import (
	"fmt"
	"net/http"
	"testing"

	"huddle/internal/models"
	"huddle/internal/service"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRequestLifecycle(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")

	status, res := ts.call(t, alice, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d", bob.ID), nil)
	require.Equal(t, http.StatusCreated, status, res.Error)
	var request models.Friendship
	decodeData(t, res, &request)
	assert.Equal(t, models.FriendshipStatusPending, request.Status)
	assert.Equal(t, alice.ID, request.RequesterID)

	status, res = ts.call(t, alice, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d", bob.ID), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, service.MsgRequestAlreadySent, res.Error)

	status, res = ts.call(t, bob, http.MethodGet, "/api/friends/requests", nil)
	require.Equal(t, http.StatusOK, status)
	var pending []models.Friendship
	decodeData(t, res, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, request.ID, pending[0].ID)

	// Only the addressee may answer.
	statusPath := fmt.Sprintf("/api/friends/requests/%d/status", request.ID)
	status, _ = ts.call(t, alice, http.MethodPut, statusPath, map[string]string{"status": "connected"})
	assert.Equal(t, http.StatusForbidden, status)

	status, res = ts.call(t, bob, http.MethodPut, statusPath, map[string]string{"status": "connected"})
	require.Equal(t, http.StatusOK, status, res.Error)
	decodeData(t, res, &request)
	assert.Equal(t, models.FriendshipStatusConnected, request.Status)

	status, res = ts.call(t, alice, http.MethodGet, "/api/friends", nil)
	require.Equal(t, http.StatusOK, status)
	var friends struct {
		Items []models.User `json:"items"`
		Total int64         `json:"total"`
	}
	decodeData(t, res, &friends)
	require.Len(t, friends.Items, 1)
	assert.Equal(t, bob.ID, friends.Items[0].ID)
	assert.Equal(t, int64(1), friends.Total)

	status, res = ts.call(t, bob, http.MethodGet, fmt.Sprintf("/api/friends/status/%d", alice.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var rel service.FriendshipStatus
	decodeData(t, res, &rel)
	assert.Equal(t, models.FriendStatusConnected, rel.Status)

	status, _ = ts.call(t, bob, http.MethodDelete, fmt.Sprintf("/api/friends/%d", alice.ID), nil)
	require.Equal(t, http.StatusOK, status)

	status, res = ts.call(t, alice, http.MethodGet, fmt.Sprintf("/api/friends/status/%d", bob.ID), nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, res, &rel)
	assert.Equal(t, models.FriendStatusNone, rel.Status)
}

func TestFriendRequest_NotifiesAddressee(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")

	status, _ := ts.call(t, alice, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d", bob.ID), nil)
	require.Equal(t, http.StatusCreated, status)

	status, res := ts.call(t, bob, http.MethodGet, "/api/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, status)
	var count struct {
		Count int64 `json:"count"`
	}
	decodeData(t, res, &count)
	assert.Equal(t, int64(1), count.Count)

	status, res = ts.call(t, bob, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Items []models.Notification `json:"items"`
	}
	decodeData(t, res, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.NotificationFriendRequest, page.Items[0].Type)
}

func TestWithdrawFriendRequest(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")

	status, res := ts.call(t, alice, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d", bob.ID), nil)
	require.Equal(t, http.StatusCreated, status)
	var request models.Friendship
	decodeData(t, res, &request)

	path := fmt.Sprintf("/api/friends/requests/%d", request.ID)
	status, _ = ts.call(t, bob, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.call(t, alice, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, status)

	status, res = ts.call(t, alice, http.MethodGet, "/api/friends/requests/sent", nil)
	require.Equal(t, http.StatusOK, status)
	var sent []models.Friendship
	decodeData(t, res, &sent)
	assert.Empty(t, sent)
}

func TestFriendRequest_Validation(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")

	status, _ := ts.call(t, alice, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d", alice.ID), nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.call(t, alice, http.MethodPost, "/api/friends/requests/99999", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.call(t, alice, http.MethodPost, "/api/friends/requests/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFriendRequest_MultipartFileBecomesAttachment(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")
	carol := testutil.CreateUser(t, ts.db, "carol")

	status, res := postFile(t, ts, alice, fmt.Sprintf("/api/friends/requests/%d", bob.ID), "hi.png", testutil.PNG(t, 64, 64))
	require.Equal(t, http.StatusCreated, status, res.Error)
	var request models.Friendship
	decodeData(t, res, &request)
	require.NotNil(t, request.AttachmentID)

	var stored models.Attachment
	require.NoError(t, ts.db.First(&stored, *request.AttachmentID).Error)
	assert.Equal(t, alice.ID, stored.OwnerID)
	assert.Equal(t, models.AttachmentOwnerFriendship, stored.OwnerType)
	assert.Equal(t, "hi.png", stored.OriginalName)

	// A form without a file part opens a plain request.
	status, res = postFile(t, ts, alice, fmt.Sprintf("/api/friends/requests/%d", carol.ID), "", nil)
	require.Equal(t, http.StatusCreated, status, res.Error)
	var plain models.Friendship
	decodeData(t, res, &plain)
	assert.Nil(t, plain.AttachmentID)

	var count int64
	require.NoError(t, ts.db.Model(&models.Attachment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
