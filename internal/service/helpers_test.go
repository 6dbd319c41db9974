package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/repository"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingSender captures messages instead of storing and pushing them.
type recordingSender struct {
	mu   sync.Mutex
	msgs []notifications.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg notifications.Message) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Notification{ReceiverID: msg.ReceiverID, Type: msg.Type}, nil
}

func (s *recordingSender) sent() []notifications.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Message(nil), s.msgs...)
}

func (s *recordingSender) ofType(typ models.NotificationType) []notifications.Message {
	var out []notifications.Message
	for _, m := range s.sent() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func newTestStore(t *testing.T) (*gorm.DB, *repository.Store) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return db, repository.NewStore(db)
}

func requireAppCode(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}
