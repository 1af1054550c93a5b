// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package notify delivers account notifications.
//
// LogNotifier and SMTPNotifier deliver synchronously. Dispatcher wraps either
// one so callers never wait on, or fail because of, a delivery.
package notify

import (
	"context"
	"log/slog"
	"strings"
)

// Notifier delivers one plain-text message.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// LogNotifier writes messages to a logger instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the message at info level.
func (n *LogNotifier) Notify(ctx context.Context, to, subject, body string) error {
	n.logger.InfoContext(ctx, "notification",
		"to", to,
		"subject", subject,
		"body", body)
	return nil
}

// headerSafe strips characters that would end a mail header line.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
