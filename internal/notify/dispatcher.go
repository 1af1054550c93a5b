// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/taskforge/taskforge/pkg/errutil"
)

// Dispatcher defaults.
const (
	DefaultSendTimeout = 30 * time.Second
	DefaultMaxInFlight = 16
)

// Dispatcher delivers notifications in the background.
//
// Notify returns immediately. Each delivery runs with its own timeout,
// detached from the caller's cancellation. Failures are logged.
type Dispatcher struct {
	next    Notifier
	timeout time.Duration
	logger  *slog.Logger
	sem     chan struct{}

	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendTimeout bounds a single delivery.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(x *Dispatcher) {
		if d > 0 {
			x.timeout = d
		}
	}
}

// WithMaxInFlight bounds concurrent deliveries. Extra sends queue.
func WithMaxInFlight(n int) DispatcherOption {
	return func(x *Dispatcher) {
		if n > 0 {
			x.sem = make(chan struct{}, n)
		}
	}
}

// WithDispatcherLogger sets the failure logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(x *Dispatcher) {
		if l != nil {
			x.logger = l
		}
	}
}

// NewDispatcher wraps next.
func NewDispatcher(next Notifier, opts ...DispatcherOption) (*Dispatcher, error) {
	if next == nil {
		return nil, oops.Errorf("notifier is required")
	}
	base, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		next:    next,
		timeout: DefaultSendTimeout,
		logger:  slog.Default(),
		sem:     make(chan struct{}, DefaultMaxInFlight),
		base:    base,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Notify schedules a delivery and returns nil. After Close it drops the
// message with a warning.
func (d *Dispatcher) Notify(ctx context.Context, to, subject, body string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.WarnContext(ctx, "notification dropped after shutdown", "subject", subject)
		return nil
	}

	// Keep trace values, lose the request's cancellation.
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(detached, to, subject, body)
	}()
	return nil
}

func (d *Dispatcher) deliver(detached context.Context, to, subject, body string) {
	ctx, cancel := context.WithTimeout(detached, d.timeout)
	defer cancel()
	stop := context.AfterFunc(d.base, cancel)
	defer stop()

	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-ctx.Done():
		errutil.LogErrorContext(detached, d.logger, slog.LevelWarn, "notification not sent",
			oops.Code("NOTIFY_QUEUE_TIMEOUT").With("subject", subject).Wrap(ctx.Err()))
		return
	}

	if err := d.next.Notify(ctx, to, subject, body); err != nil {
		errutil.LogErrorContext(detached, d.logger, slog.LevelWarn, "notification not sent",
			oops.Code("NOTIFY_FAILED").With("subject", subject).Wrap(err))
	}
}

// Close stops accepting messages and waits for in-flight deliveries.
// If ctx ends first, pending deliveries are cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return oops.Code("NOTIFY_SHUTDOWN_TIMEOUT").Wrap(ctx.Err())
	}
}
