package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"huddle/internal/models"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreadCount(t *testing.T, ts *testServer, user *models.User) int64 {
	t.Helper()
	status, res := ts.call(t, user, http.MethodGet, "/api/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, status)
	var body struct {
		Count int64 `json:"count"`
	}
	decodeData(t, res, &body)
	return body.Count
}

func TestNotifications_ReadAndDelete(t *testing.T) {
	ts := newTestServer(t)
	bob := testutil.CreateUser(t, ts.db, "bob")
	for i := 0; i < 3; i++ {
		sender := testutil.CreateUser(t, ts.db, "sender")
		status, _ := ts.call(t, sender, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d", bob.ID), nil)
		require.Equal(t, http.StatusCreated, status)
	}
	assert.Equal(t, int64(3), unreadCount(t, ts, bob))

	status, res := ts.call(t, bob, http.MethodGet, "/api/notifications?limit=2", nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Items []models.Notification `json:"items"`
		Limit int                   `json:"limit"`
	}
	decodeData(t, res, &page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Limit)
	first := page.Items[0]

	// Someone else cannot touch bob's notifications.
	stranger := testutil.CreateUser(t, ts.db, "stranger")
	status, _ = ts.call(t, stranger, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", first.ID), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.call(t, bob, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", first.ID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), unreadCount(t, ts, bob))

	status, res = ts.call(t, bob, http.MethodGet, "/api/notifications?unread_only=true", nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, res, &page)
	assert.Len(t, page.Items, 2)

	status, _ = ts.call(t, bob, http.MethodDelete, fmt.Sprintf("/api/notifications/%d", first.ID), nil)
	require.Equal(t, http.StatusOK, status)

	status, res = ts.call(t, bob, http.MethodPost, "/api/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, status)
	var updated struct {
		Updated int64 `json:"updated"`
	}
	decodeData(t, res, &updated)
	assert.Equal(t, int64(2), updated.Updated)
	assert.Equal(t, int64(0), unreadCount(t, ts, bob))
}

func TestDevices_RegisterAndUnregister(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "phone")

	status, _ := ts.call(t, user, http.MethodPost, "/api/devices", map[string]string{"token": "tok-1", "platform": "blackberry"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.call(t, user, http.MethodPost, "/api/devices", map[string]string{"token": strings.Repeat("x", 600), "platform": "ios"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, res := ts.call(t, user, http.MethodPost, "/api/devices", map[string]string{"token": "tok-1", "platform": "ios"})
	require.Equal(t, http.StatusCreated, status, res.Error)
	var device models.DeviceToken
	decodeData(t, res, &device)
	assert.Equal(t, user.ID, device.UserID)
	assert.Equal(t, models.DevicePlatformIOS, device.Platform)

	status, _ = ts.call(t, user, http.MethodDelete, "/api/devices/tok-1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.call(t, user, http.MethodDelete, "/api/devices/tok-1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminAnnouncements(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "admin")
	require.NoError(t, ts.db.Model(admin).Update("is_admin", true).Error)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")

	status, _ := ts.call(t, admin, http.MethodPost, "/api/admin/notifications/broadcast", map[string]string{"title": "Empty"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.call(t, admin, http.MethodPost, "/api/admin/notifications/users", map[string]string{"body": "No recipients"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, res := ts.call(t, admin, http.MethodPost, "/api/admin/notifications/users", map[string]interface{}{
		"title":    "Heads up",
		"body":     "Maintenance tonight",
		"user_ids": []uint{alice.ID},
	})
	require.Equal(t, http.StatusAccepted, status, res.Error)
	var queued struct {
		Recipients int `json:"recipients"`
	}
	decodeData(t, res, &queued)
	assert.Equal(t, 1, queued.Recipients)
	assert.Equal(t, int64(1), unreadCount(t, ts, alice))
	assert.Equal(t, int64(0), unreadCount(t, ts, bob))

	status, res = ts.call(t, admin, http.MethodPost, "/api/admin/notifications/broadcast", map[string]string{"body": "Hello everyone"})
	require.Equal(t, http.StatusAccepted, status, res.Error)
	assert.Equal(t, int64(2), unreadCount(t, ts, alice))
	assert.Equal(t, int64(1), unreadCount(t, ts, bob))

	status, _ = ts.call(t, alice, http.MethodPost, "/api/admin/notifications/broadcast", map[string]string{"body": "Not allowed"})
	assert.Equal(t, http.StatusForbidden, status)
}
