// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package memory provides in-process repositories for development and tests.
//
// A single Store backs every repository so that deleting a user cascades to
// its tokens, tasks and avatar, as the Postgres schema does.
package memory

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/avatar"
	"github.com/taskforge/taskforge/internal/task"
)

// Store holds all in-memory state behind one lock.
type Store struct {
	mu      sync.RWMutex
	users   map[ulid.ULID]*auth.User
	emails  map[string]ulid.ULID
	tokens  map[ulid.ULID][]auth.TokenRecord
	tasks   map[ulid.ULID]*task.Task
	avatars map[ulid.ULID]*avatar.Avatar
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[ulid.ULID]*auth.User),
		emails:  make(map[string]ulid.ULID),
		tokens:  make(map[ulid.ULID][]auth.TokenRecord),
		tasks:   make(map[ulid.ULID]*task.Task),
		avatars: make(map[ulid.ULID]*avatar.Avatar),
	}
}

// Users returns the user repository view.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Tokens returns the token repository view.
func (s *Store) Tokens() *TokenRepository { return &TokenRepository{s: s} }

// Tasks returns the task repository view.
func (s *Store) Tasks() *TaskRepository { return &TaskRepository{s: s} }

// Avatars returns the avatar repository view.
func (s *Store) Avatars() *AvatarRepository { return &AvatarRepository{s: s} }

// Ping always succeeds.
func (s *Store) Ping() bool { return true }
