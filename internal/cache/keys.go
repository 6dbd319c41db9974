package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix        = "user:%d"
	UnreadCountKeyPrefix = "notifications:unread:%d"
	GroupKeyPrefix       = "group:%d"
	EventKeyPrefix       = "event:%d"
)

const (
	UserTTL        = 5 * time.Minute
	UnreadCountTTL = time.Minute
	GroupTTL       = 10 * time.Minute
	EventTTL       = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func UnreadCountKey(userID uint) string {
	return fmt.Sprintf(UnreadCountKeyPrefix, userID)
}

func GroupKey(groupID uint) string {
	return fmt.Sprintf(GroupKeyPrefix, groupID)
}

func EventKey(eventID uint) string {
	return fmt.Sprintf(EventKeyPrefix, eventID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}
