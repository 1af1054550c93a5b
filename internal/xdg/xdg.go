// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package xdg resolves XDG Base Directory paths for TaskForge.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "taskforge"

// DefaultConfigName is the file ConfigFile looks for when none is named.
const DefaultConfigName = "config.yaml"

// ConfigDir returns the XDG config directory for taskforge.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_NO_HOME").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// ConfigFile returns the path of name inside ConfigDir if it exists as a
// regular file. A missing file is not an error; found is false.
func ConfigFile(name string) (path string, found bool, err error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", false, err
	}
	path = filepath.Join(dir, name)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", false, nil
	case err != nil:
		return "", false, oops.Code("XDG_STAT_FAILED").With("path", path).Wrap(err)
	case info.IsDir():
		return "", false, nil
	}
	return path, true, nil
}
