package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"huddle/internal/database"
	"huddle/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var userSeq atomic.Uint64

// NewSQLiteDB opens a private in-memory database with the full schema applied.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a new database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts an activated user with a unique username derived from prefix.
func CreateUser(t testing.TB, db *gorm.DB, prefix string) *models.User {
	t.Helper()
	n := userSeq.Add(1)
	user := &models.User{
		Username:    fmt.Sprintf("%s%d", prefix, n),
		Email:       fmt.Sprintf("%s%d@example.com", prefix, n),
		Password:    "x",
		IsActivated: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Connect stores a connected friendship between a and b.
func Connect(t testing.TB, db *gorm.DB, a, b *models.User) *models.Friendship {
	t.Helper()
	f := &models.Friendship{RequesterID: a.ID, AddresseeID: b.ID, Status: models.FriendshipStatusConnected}
	require.NoError(t, db.Create(f).Error)
	return f
}
