package notifications

import (
	"testing"

	"huddle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplates_CoverEveryType(t *testing.T) {
	tpl := DefaultTemplates()
	types := []models.NotificationType{
		models.NotificationFriendRequest,
		models.NotificationFriendRequestAccepted,
		models.NotificationGroupInvite,
		models.NotificationGroupJoinRequest,
		models.NotificationGroupJoinApproved,
		models.NotificationEventInvite,
		models.NotificationEventJoinRequest,
		models.NotificationEventJoinApproved,
		models.NotificationAnnouncement,
	}
	for _, typ := range types {
		msg := Message{Type: typ, Vars: map[string]string{"sender": "sam", "group": "Hikers", "event": "Picnic", "body": "hi"}}
		require.NoError(t, tpl.Render(&msg))
		assert.NotEmpty(t, msg.Title, typ)
		assert.NotEmpty(t, msg.Message, typ)
	}
}

func TestTemplates_Render(t *testing.T) {
	tpl := DefaultTemplates()

	t.Run("fills blanks from vars", func(t *testing.T) {
		msg := Message{Type: models.NotificationGroupInvite, Vars: map[string]string{"sender": "sam", "group": "Hikers"}}
		require.NoError(t, tpl.Render(&msg))
		assert.Equal(t, "Group invitation", msg.Title)
		assert.Equal(t, "sam invited you to join Hikers", msg.Message)
	})

	t.Run("keeps explicit text", func(t *testing.T) {
		msg := Message{Type: models.NotificationGroupInvite, Title: "Custom", Vars: map[string]string{"sender": "sam", "group": "Hikers"}}
		require.NoError(t, tpl.Render(&msg))
		assert.Equal(t, "Custom", msg.Title)
		assert.Equal(t, "sam invited you to join Hikers", msg.Message)
	})

	t.Run("missing vars render empty", func(t *testing.T) {
		msg := Message{Type: models.NotificationEventJoinApproved}
		require.NoError(t, tpl.Render(&msg))
		assert.Equal(t, "You can now attend", msg.Message)
	})

	t.Run("unknown type untouched", func(t *testing.T) {
		msg := Message{Type: "poke"}
		require.NoError(t, tpl.Render(&msg))
		assert.Empty(t, msg.Title)
	})
}

func TestParseTemplates_Errors(t *testing.T) {
	_, err := ParseTemplates([]byte("friend_request: [unclosed"))
	assert.Error(t, err)

	_, err = ParseTemplates([]byte("friend_request:\n  title: \"{{.sender\"\n"))
	assert.Error(t, err)
}
