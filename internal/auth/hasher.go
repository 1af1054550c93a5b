// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2Params is the argon2id work factor.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// Validate rejects parameters argon2 cannot run with.
func (p Argon2Params) Validate() error {
	switch {
	case p.Time == 0:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("argon2 time must be at least 1")
	case p.Memory < 8*uint32(p.Threads) || p.Memory == 0:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("argon2 memory must be at least 8 KiB per thread")
	case p.Threads == 0:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("argon2 threads must be at least 1")
	case p.SaltLen < 8:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("argon2 salt must be at least 8 bytes")
	case p.KeyLen < 16:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("argon2 key must be at least 16 bytes")
	}
	return nil
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way digest of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches digest. A malformed digest or
	// empty input is a mismatch, never an error.
	Verify(password, digest string) bool

	// NeedsRehash reports whether digest was produced with other parameters.
	NeedsRehash(digest string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

var _ PasswordHasher = (*Argon2idHasher)(nil)

// NewArgon2idHasher creates a hasher with the given work factor.
func NewArgon2idHasher(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id hash of the password in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the digest.
func (h *Argon2idHasher) Verify(password, digest string) bool {
	if password == "" {
		return false
	}
	parsed, err := parseDigest(digest)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.params.Time, parsed.params.Memory, parsed.params.Threads, parsed.params.KeyLen)
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1
}

// NeedsRehash reports whether digest is not argon2id or uses different parameters.
func (h *Argon2idHasher) NeedsRehash(digest string) bool {
	parsed, err := parseDigest(digest)
	if err != nil {
		return true
	}
	p := parsed.params
	return p.Time != h.params.Time ||
		p.Memory != h.params.Memory ||
		p.Threads != h.params.Threads ||
		uint32(len(parsed.salt)) != h.params.SaltLen ||
		p.KeyLen != h.params.KeyLen
}

type parsedDigest struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func parseDigest(digest string) (parsedDigest, error) {
	var out parsedDigest

	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return out, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return out, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return out, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return out, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return out, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	// Guard against silent truncation to uint8.
	if threads == 0 || threads > 255 {
		return out, oops.Code("AUTH_INVALID_HASH").Errorf("invalid threads value %d", threads)
	}
	if iterations == 0 || memory == 0 {
		return out, oops.Code("AUTH_INVALID_HASH").Errorf("invalid cost parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return out, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return out, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return out, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	out.params = Argon2Params{
		Time:    iterations,
		Memory:  memory,
		Threads: uint8(threads),
		SaltLen: uint32(len(salt)),
		KeyLen:  uint32(len(key)),
	}
	out.salt = salt
	out.key = key
	return out, nil
}
