// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package store

import (
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/pkg/errutil"
)

// mockMigrate implements migrateIface for testing.
type mockMigrate struct {
	upErr      error
	downErr    error
	stepsErr   error
	version    uint
	dirty      bool
	versionErr error
	forceErr   error
	forced     int
	srcErr     error
	dbErr      error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(int) error              { return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.version, m.dirty, m.versionErr }
func (m *mockMigrate) Force(v int) error            { m.forced = v; return m.forceErr }
func (m *mockMigrate) Close() (error, error)        { return m.srcErr, m.dbErr }

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@host/db", MigrateURL("postgres://u:p@host/db"))
	assert.Equal(t, "pgx5://u:p@host/db", MigrateURL("postgresql://u:p@host/db"))
	assert.Equal(t, "pgx5://u:p@host/db", MigrateURL("pgx5://u:p@host/db"))
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrator_UpDown(t *testing.T) {
	t.Run("no change is success", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange, stepsErr: migrate.ErrNoChange}}
		require.NoError(t, m.Up())
		require.NoError(t, m.Down())
		require.NoError(t, m.Steps(1))
	})

	t.Run("failures are coded", func(t *testing.T) {
		boom := errors.New("boom")
		m := &Migrator{m: &mockMigrate{upErr: boom, downErr: boom, stepsErr: boom}}
		errutil.AssertErrorCode(t, m.Up(), "MIGRATION_UP_FAILED")
		errutil.AssertErrorCode(t, m.Down(), "MIGRATION_DOWN_FAILED")
		errutil.AssertErrorCode(t, m.Steps(-1), "MIGRATION_STEPS_FAILED")
	})
}

func TestMigrator_Version(t *testing.T) {
	m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	m = &Migrator{m: &mockMigrate{versionErr: errors.New("boom")}}
	_, _, err = m.Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_Force(t *testing.T) {
	mm := &mockMigrate{}
	m := &Migrator{m: mm}

	errutil.AssertErrorCode(t, m.Force(-1), "INVALID_VERSION")
	require.NoError(t, m.Force(2))
	assert.Equal(t, 2, mm.forced)
}

func TestMigrator_Close(t *testing.T) {
	require.NoError(t, (&Migrator{m: &mockMigrate{}}).Close())

	err := (&Migrator{m: &mockMigrate{srcErr: errors.New("src"), dbErr: errors.New("db")}}).Close()
	errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
	assert.Contains(t, err.Error(), "src")
	assert.Contains(t, err.Error(), "db")
}

func TestMigrator_Status(t *testing.T) {
	m := &Migrator{m: &mockMigrate{version: 1}}
	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(1), st.Version)
	assert.Equal(t, []uint{1}, st.Applied)
	assert.Equal(t, []uint{2, 3}, st.Pending)
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups, downs := 0, 0
	for _, e := range entries {
		assert.True(t, pattern.MatchString(e.Name()), "unexpected migration file %s", e.Name())
		if regexp.MustCompile(`\.up\.sql$`).MatchString(e.Name()) {
			ups++
		} else {
			downs++
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down migration")

	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_users", name)

	name, err = MigrationName(999)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestScanVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_b.up.sql":   {},
		"migrations/000002_b.down.sql": {},
		"migrations/000001_a.up.sql":   {},
		"migrations/README":            {},
	}
	got, err := scanVersions(fsys)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, got)

	_, err = scanVersions(fstest.MapFS{"migrations/abc_x.up.sql": {}})
	errutil.AssertErrorCode(t, err, "MIGRATION_BAD_NAME")
}
