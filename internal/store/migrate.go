// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package store

import (
	"embed"
	"errors"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// migrateIface is the part of *migrate.Migrate the Migrator drives.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m migrateIface
}

// MigrateURL rewrites postgres:// and postgresql:// URLs to the pgx5://
// scheme golang-migrate registers for pgx/v5.
func MigrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// NewMigrator connects to databaseURL and prepares the embedded migrations.
func NewMigrator(databaseURL string) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, MigrateURL(databaseURL))
	if err != nil {
		_ = src.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	return &Migrator{m: m}, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	if err := ignoreNoChange(m.m.Up()); err != nil {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down reverts every migration. All data is dropped.
func (m *Migrator) Down() error {
	if err := ignoreNoChange(m.m.Down()); err != nil {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps migrates n steps; negative n migrates down.
func (m *Migrator) Steps(n int) error {
	if err := ignoreNoChange(m.m.Steps(n)); err != nil {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version reports the applied version; zero means no migration has run.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied without running anything. It is the
// recovery path for a dirty database after a manual fix.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// Status summarizes the schema state.
type Status struct {
	Version uint
	Dirty   bool
	Applied []uint
	Pending []uint
}

// Status splits the embedded migrations into applied and pending.
func (m *Migrator) Status() (Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return Status{}, err
	}
	all, err := embeddedVersions()
	if err != nil {
		return Status{}, err
	}

	st := Status{Version: version, Dirty: dirty}
	for _, v := range all {
		if v <= version {
			st.Applied = append(st.Applied, v)
		} else {
			st.Pending = append(st.Pending, v)
		}
	}
	return st, nil
}

var (
	versionsOnce sync.Once
	versions     []uint
	versionsErr  error
)

// embeddedVersions lists the versions of the embedded up migrations, ascending.
func embeddedVersions() ([]uint, error) {
	versionsOnce.Do(func() {
		versions, versionsErr = scanVersions(migrationsFS)
	})
	return slices.Clone(versions), versionsErr
}

func scanVersions(fsys fs.FS) ([]uint, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").Wrap(err)
	}

	var out []uint
	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			return nil, oops.Code("MIGRATION_BAD_NAME").With("file", e.Name()).Wrap(err)
		}
		out = append(out, uint(v))
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// MigrationName returns the NNNNNN_name stem of an embedded migration, or
// "" if no migration has that version.
func MigrationName(version uint) (string, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return "", oops.Code("MIGRATION_READ_FAILED").Wrap(err)
	}
	for _, e := range entries {
		stem, ok := strings.CutSuffix(e.Name(), ".up.sql")
		if !ok {
			continue
		}
		prefix, _, _ := strings.Cut(stem, "_")
		if v, err := strconv.ParseUint(prefix, 10, 32); err == nil && uint(v) == version {
			return stem, nil
		}
	}
	return "", nil
}
