package database

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	ms := GetMigrations()
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "000001_init", ms[0].String())

	for i := 1; i < len(ms); i++ {
		assert.Less(t, ms[i-1].Version, ms[i].Version)
	}
	for _, m := range ms {
		assert.NotEmpty(t, strings.TrimSpace(m.UpScript), m.String())
		assert.NotEmpty(t, strings.TrimSpace(m.DownScript), m.String())
	}
	assert.Contains(t, ms[0].UpScript, "idx_friendships_pair")
}

func TestGetMigrationByVersion(t *testing.T) {
	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999999))
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}

	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7, 3}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000003, 000007")
}

func TestSplitMigrationName(t *testing.T) {
	version, name, ok := splitMigrationName("000004_event_invites")
	assert.True(t, ok)
	assert.Equal(t, 4, version)
	assert.Equal(t, "event_invites", name)

	for _, bad := range []string{"init", "000000_zero", "abc_init", "000003_"} {
		_, _, ok := splitMigrationName(bad)
		assert.False(t, ok, bad)
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_groups.up.sql":   {Data: []byte("CREATE TABLE groups (id INT);")},
		"m/000002_groups.down.sql": {Data: []byte("DROP TABLE groups;")},
		"m/000001_users.up.sql":    {Data: []byte("CREATE TABLE users (id INT);")},
		"m/000001_users.down.sql":  {Data: []byte("DROP TABLE users;")},
		"m/notes_only.up.sql":      {Data: []byte("SELECT 1;")},
	}

	ms, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "000001_users", ms[0].String())
	assert.Equal(t, "DROP TABLE groups;", ms[1].DownScript)
}

func TestLoadMigrations_Rejects(t *testing.T) {
	missingDown := fstest.MapFS{
		"m/000001_users.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := loadMigrations(missingDown, "m")
	assert.ErrorContains(t, err, "no down script")

	duplicate := fstest.MapFS{
		"m/000001_users.up.sql":   {Data: []byte("SELECT 1;")},
		"m/000001_users.down.sql": {Data: []byte("SELECT 1;")},
		"m/1_again.up.sql":        {Data: []byte("SELECT 1;")},
		"m/1_again.down.sql":      {Data: []byte("SELECT 1;")},
	}
	_, err = loadMigrations(duplicate, "m")
	assert.ErrorContains(t, err, "used by both")
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}

	assert.Len(t, pendingMigrations(registered, nil), 3)
	pending := pendingMigrations(registered, []int{1, 3})
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
	assert.Empty(t, pendingMigrations(registered, []int{3, 2, 1}))
}

func TestMigrationStore_GetAppliedMigrations(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewMigrationStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "version" FROM "migration_logs" ORDER BY version ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1).AddRow(2))

	versions, err := store.GetAppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationStore_GetAppliedMigrations_MissingTable(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewMigrationStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "version" FROM "migration_logs"`)).
		WillReturnError(errorString(`relation "migration_logs" does not exist`))

	versions, err := store.GetAppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestMigrationStore_RemoveMigration(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewMigrationStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "migration_logs" WHERE version = $1`)).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.RemoveMigration(context.Background(), 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type errorString string

func (e errorString) Error() string { return string(e) }
