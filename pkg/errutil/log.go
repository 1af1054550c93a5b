// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package errutil holds helpers for working with coded oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. Oops errors contribute their code and
// context attributes; plain errors are logged as-is.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, slog.LevelError, msg, err)
}

// LogErrorContext logs err at the given level, carrying ctx so the handler
// can attach trace identifiers.
func LogErrorContext(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error) {
	attrs := []any{"error", err.Error()}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := Code(err); code != "" {
			attrs = append(attrs, "code", code)
		}
		if fields := oopsErr.Context(); len(fields) > 0 {
			attrs = append(attrs, "context", fields)
		}
	}
	logger.Log(ctx, level, msg, attrs...)
}

// Code returns the oops code carried by err, or "" when err has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

// HasCode reports whether err carries the given oops code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// Value returns the context value stored under key on err.
func Value(err error, key string) (any, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil, false
	}
	v, ok := oopsErr.Context()[key]
	return v, ok
}
