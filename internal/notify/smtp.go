// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// SMTPConfig configures an SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// MaxRetries bounds attempts after the first. Permanent (5xx) replies
	// are never retried.
	MaxRetries uint64
	// BaseDelay is the first backoff interval.
	BaseDelay time.Duration
}

// SMTPNotifier sends mail through an SMTP relay.
type SMTPNotifier struct {
	cfg    SMTPConfig
	addr   string
	auth   smtp.Auth
	logger *slog.Logger
	now    func() time.Time

	// deliver performs one attempt; replaced in tests.
	deliver func(ctx context.Context, to string, msg []byte) error
}

// NewSMTPNotifier validates cfg and creates an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, oops.Code("SMTP_CONFIG_INVALID").With("port", cfg.Port).Errorf("smtp port out of range")
	}
	if cfg.From == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("smtp from address is required")
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	n := &SMTPNotifier{
		cfg:    cfg,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		logger: logger,
		now:    time.Now,
	}
	if cfg.Username != "" {
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	n.deliver = n.send
	return n, nil
}

// Notify sends the message, retrying transient failures with exponential
// backoff until ctx ends.
func (n *SMTPNotifier) Notify(ctx context.Context, to, subject, body string) error {
	msg := n.compose(to, subject, body)

	backoff := retry.NewExponential(n.cfg.BaseDelay)
	backoff = retry.WithMaxRetries(n.cfg.MaxRetries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := n.deliver(ctx, to, msg)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return err
		}
		n.logger.WarnContext(ctx, "smtp delivery failed, retrying",
			"attempt", attempt,
			"addr", n.addr,
			"error", err.Error())
		return retry.RetryableError(err)
	})
	if err != nil {
		return oops.Code("SMTP_SEND_FAILED").
			With("attempts", attempt).
			With("addr", n.addr).
			Wrap(err)
	}
	return nil
}

func (n *SMTPNotifier) compose(to, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", headerSafe(n.cfg.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerSafe(to))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerSafe(subject)))
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.Bytes()
}

// send runs one SMTP transaction bounded by ctx.
func (n *SMTPNotifier) send(ctx context.Context, to string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return err //nolint:wrapcheck // wrapped by Notify
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err //nolint:wrapcheck // wrapped by Notify
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return err //nolint:wrapcheck // wrapped by Notify
		}
	}
	if n.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(n.auth); err != nil {
				return err //nolint:wrapcheck // wrapped by Notify
			}
		}
	}
	if err := c.Mail(n.cfg.From); err != nil {
		return err //nolint:wrapcheck // wrapped by Notify
	}
	if err := c.Rcpt(to); err != nil {
		return err //nolint:wrapcheck // wrapped by Notify
	}
	w, err := c.Data()
	if err != nil {
		return err //nolint:wrapcheck // wrapped by Notify
	}
	if _, err := w.Write(msg); err != nil {
		return err //nolint:wrapcheck // wrapped by Notify
	}
	if err := w.Close(); err != nil {
		return err //nolint:wrapcheck // wrapped by Notify
	}
	return c.Quit() //nolint:wrapcheck // wrapped by Notify
}

// isPermanent reports a 5xx SMTP reply.
func isPermanent(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}
