package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"huddle/internal/models"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(t *testing.T, ts *testServer, user *models.User, filename string, content []byte) (int, apiResponse) {
	t.Helper()
	return postFile(t, ts, user, "/api/attachments", filename, content)
}

// postFile sends content as the multipart field "file". An empty filename sends
// a form with no file part.
func postFile(t *testing.T, ts *testServer, user *models.User, path, filename string, content []byte) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "hello"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.token(t, user))
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestAttachments_UploadServeAndClaim(t *testing.T) {
	ts := newTestServer(t)
	owner := testutil.CreateUser(t, ts.db, "owner")
	stranger := testutil.CreateUser(t, ts.db, "stranger")

	status, res := upload(t, ts, owner, "photo.png", testutil.PNG(t, 800, 400))
	require.Equal(t, http.StatusCreated, status, res.Error)
	var attachment models.Attachment
	decodeData(t, res, &attachment)
	assert.Equal(t, "image/png", attachment.ContentType)
	assert.NotEmpty(t, attachment.ThumbPath)
	assert.Equal(t, 800, attachment.Width)

	get := func(user *models.User, query string) *http.Response {
		req := authedRequest(http.MethodGet, fmt.Sprintf("/api/attachments/%d%s", attachment.ID, query), ts.token(t, user))
		resp, err := ts.app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := get(owner, "")
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, int(attachment.Size), len(body))

	resp = get(owner, "?thumb=true")
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))

	// Unattached uploads are private to their owner.
	resp = get(stranger, "")
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	status, _ = ts.call(t, stranger, http.MethodPost, "/api/posts", map[string]interface{}{"content": "stolen", "attachment_id": attachment.ID})
	assert.Equal(t, http.StatusForbidden, status)

	status, res = ts.call(t, owner, http.MethodPost, "/api/posts", map[string]interface{}{"attachment_id": attachment.ID})
	require.Equal(t, http.StatusCreated, status, res.Error)

	// Once attached to a post it is visible to others and cannot be reused.
	resp = get(stranger, "")
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, _ = ts.call(t, owner, http.MethodPost, "/api/posts", map[string]interface{}{"content": "again", "attachment_id": attachment.ID})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAttachments_RejectsMissingAndOversizedFiles(t *testing.T) {
	ts := newTestServer(t)
	owner := testutil.CreateUser(t, ts.db, "owner")

	req := authedRequest(http.MethodPost, "/api/attachments", ts.token(t, owner))
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, res := upload(t, ts, owner, "notes.txt", []byte("plain text notes"))
	require.Equal(t, http.StatusCreated, status, res.Error)
	var attachment models.Attachment
	decodeData(t, res, &attachment)
	assert.Empty(t, attachment.ThumbPath)

	// 2MB limit in the test config; the body limit allows one extra megabyte.
	status, _ = upload(t, ts, owner, "big.bin", bytes.Repeat([]byte{0x01}, 2*1024*1024+10))
	assert.Equal(t, http.StatusBadRequest, status)
}
