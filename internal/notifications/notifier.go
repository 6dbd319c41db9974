// Package notifications stores notifications, fans them out to websocket clients
// and pushes them to registered devices.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"huddle/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	// BroadcastChannel carries events for every connected user.
	BroadcastChannel = "notifications:broadcast"
)

// Notifier relays realtime payloads through Redis pub/sub so every API
// instance can deliver them to the sockets it holds. Without Redis it is a
// no-op and events only reach sockets on the local hub.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether a Redis client is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

func (n *Notifier) publish(ctx context.Context, channel, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// PublishUser sends payload to every socket userID holds, on any instance.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	return n.publish(ctx, UserChannel(userID), payload)
}

// PublishBroadcast sends payload to every connected user.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	return n.publish(ctx, BroadcastChannel, payload)
}

// PublishEvent publishes the JSON envelope of event to userID.
func (n *Notifier) PublishEvent(ctx context.Context, userID uint, event Event) error {
	if !n.Enabled() {
		return nil
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return n.PublishUser(ctx, userID, string(raw))
}

// StartPatternSubscriber listens on every user channel and the broadcast
// channel, calling onMessage for each payload until ctx is cancelled. A panic
// in onMessage is logged and the loop keeps going.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", BroadcastChannel)
	go func() {
		defer func() { _ = sub.Close() }()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				deliverSafely(onMessage, msg.Channel, msg.Payload)
			}
		}
	}()
	return nil
}

func deliverSafely(onMessage func(channel, payload string), channel, payload string) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("Notification subscriber panicked",
				"channel", channel, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	onMessage(channel, payload)
}

// UserChannel is the Redis channel for one user's events.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

func parseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
