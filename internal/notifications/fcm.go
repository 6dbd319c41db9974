package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// FCMPusher sends pushes through the Firebase Cloud Messaging HTTP v1 API.
type FCMPusher struct {
	svc    *fcm.Service
	parent string
}

// NewFCMPusher builds a pusher for projectID. credentialsFile may be empty when
// application default credentials are available; extra options are passed through.
func NewFCMPusher(ctx context.Context, projectID, credentialsFile string, opts ...option.ClientOption) (*FCMPusher, error) {
	if projectID == "" {
		return nil, errors.New("fcm project id is required")
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create fcm service: %w", err)
	}
	return &FCMPusher{svc: svc, parent: "projects/" + projectID}, nil
}

func (p *FCMPusher) Name() string { return "fcm" }

func (p *FCMPusher) Push(ctx context.Context, token string, payload PushPayload) error {
	apns, err := apnsPayload(payload)
	if err != nil {
		return err
	}

	msg := &fcm.Message{
		Token: token,
		Notification: &fcm.Notification{
			Title: payload.Title,
			Body:  payload.Body,
			Image: payload.Image,
		},
		Data:    payload.Data,
		Android: &fcm.AndroidConfig{Priority: "HIGH"},
		Apns:    &fcm.ApnsConfig{Payload: apns},
	}

	_, err = p.svc.Projects.Messages.
		Send(p.parent, &fcm.SendMessageRequest{Message: msg}).
		Context(ctx).
		Do()
	if err != nil {
		if isUnregistered(err) {
			return fmt.Errorf("%w: %v", ErrTokenUnregistered, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func apnsPayload(payload PushPayload) (googleapi.RawMessage, error) {
	raw, err := json.Marshal(map[string]interface{}{
		"aps": map[string]interface{}{
			"badge":             payload.Badge,
			"content-available": 1,
			"sound":             "default",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal apns payload: %w", err)
	}
	return googleapi.RawMessage(raw), nil
}

// isUnregistered matches FCM's UNREGISTERED (404) and invalid token (400) answers.
func isUnregistered(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusNotFound {
		return true
	}
	if gerr.Code == http.StatusBadRequest {
		msg := strings.ToLower(gerr.Message)
		return strings.Contains(msg, "registration token") || strings.Contains(msg, "unregistered")
	}
	return false
}
