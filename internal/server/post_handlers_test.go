package server

import (
	"fmt"
	"net/http"
	"testing"

	"huddle/internal/models"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author")

	tests := []struct {
		name           string
		body           map[string]interface{}
		expectedStatus int
	}{
		{"Success", map[string]interface{}{"content": "Hello world"}, http.StatusCreated},
		{"Missing Content", map[string]interface{}{"content": "   "}, http.StatusBadRequest},
		{"Unknown Attachment", map[string]interface{}{"content": "pic", "attachment_id": 9999}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := ts.call(t, author, http.MethodPost, "/api/posts", tt.body)
			assert.Equal(t, tt.expectedStatus, status)
		})
	}
}

func TestFeed_ShowsOwnAndFriendsPosts(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")
	bob := testutil.CreateUser(t, ts.db, "bob")
	carol := testutil.CreateUser(t, ts.db, "carol")
	testutil.Connect(t, ts.db, alice, bob)

	for _, u := range []*models.User{alice, bob, carol} {
		status, _ := ts.call(t, u, http.MethodPost, "/api/posts", map[string]string{"content": "post by " + u.Username})
		require.Equal(t, http.StatusCreated, status)
	}

	status, res := ts.call(t, alice, http.MethodGet, "/api/posts/feed", nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Items []models.Post `json:"items"`
	}
	decodeData(t, res, &page)
	require.Len(t, page.Items, 2)
	authors := []uint{page.Items[0].UserID, page.Items[1].UserID}
	assert.ElementsMatch(t, []uint{alice.ID, bob.ID}, authors)
}

func TestDeletePost(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author")
	other := testutil.CreateUser(t, ts.db, "other")
	admin := testutil.CreateUser(t, ts.db, "admin")
	require.NoError(t, ts.db.Model(admin).Update("is_admin", true).Error)

	create := func() uint {
		status, res := ts.call(t, author, http.MethodPost, "/api/posts", map[string]string{"content": "to delete"})
		require.Equal(t, http.StatusCreated, status)
		var post models.Post
		decodeData(t, res, &post)
		return post.ID
	}

	id := create()
	status, _ := ts.call(t, other, http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = ts.call(t, author, http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = ts.call(t, author, http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, status)

	id = create()
	status, _ = ts.call(t, admin, http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil)
	assert.Equal(t, http.StatusOK, status)
}
