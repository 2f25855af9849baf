// Package failover rotates gateway calls across a fixed host list.
package failover

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

const defaultBackoff = 500 * time.Millisecond

// Attempt performs one call against host.
type Attempt func(ctx context.Context, host string) error

// Option configures a Driver.
type Option func(*Driver)

// WithBackoff sets the wait between hosts.
func WithBackoff(d time.Duration) Option {
	return func(dr *Driver) {
		if d >= 0 {
			dr.backoff = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(dr *Driver) {
		if logger != nil {
			dr.logger = logger
		}
	}
}

// WithRetryHook is called with the failed and the next host before each retry.
func WithRetryHook(fn func(failed, next string, err error)) Option {
	return func(dr *Driver) {
		dr.onRetry = fn
	}
}

// WithRetryable replaces the predicate deciding which errors move on to the
// next host. It defaults to gateway timeouts.
func WithRetryable(fn func(error) bool) Option {
	return func(dr *Driver) {
		if fn != nil {
			dr.retryable = fn
		}
	}
}

// Driver tries hosts in order starting at a cursor.
type Driver struct {
	hosts     []string
	backoff   time.Duration
	logger    *logging.Logger
	onRetry   func(failed, next string, err error)
	retryable func(error) bool
}

// New creates a Driver over hosts.
func New(hosts []string, opts ...Option) (*Driver, error) {
	if len(hosts) == 0 {
		return nil, errors.New("failover: at least one host is required")
	}
	d := &Driver{
		hosts:     append([]string(nil), hosts...),
		backoff:   defaultBackoff,
		logger:    logging.Default(),
		retryable: gateway.IsTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Hosts returns a copy of the host list.
func (d *Driver) Hosts() []string {
	return append([]string(nil), d.hosts...)
}

// Normalize maps any cursor value into range.
func (d *Driver) Normalize(cursor int) int {
	n := len(d.hosts)
	cursor %= n
	if cursor < 0 {
		cursor += n
	}
	return cursor
}

// Run calls attempt on hosts[cursor], moving to the next host on retryable
// errors until every host was tried once. It returns the cursor to persist:
// the host that succeeded, or the host after the one the loop stopped on.
func (d *Driver) Run(ctx context.Context, cursor int, attempt Attempt) (int, error) {
	n := len(d.hosts)
	cur := d.Normalize(cursor)
	var lastErr error
	for tried := 0; tried < n; tried++ {
		host := d.hosts[cur]
		err := attempt(ctx, host)
		if err == nil {
			return cur, nil
		}
		next := (cur + 1) % n
		if !d.retryable(err) {
			return next, err
		}
		lastErr = err
		cur = next
		if tried == n-1 {
			break
		}
		if ctx.Err() != nil {
			return cur, lastErr
		}
		d.logger.Warn("gateway host timed out, trying next host",
			"host", host,
			"next_host", d.hosts[next],
			"attempt", tried+1,
			"error", err,
		)
		if d.onRetry != nil {
			d.onRetry(host, d.hosts[next], err)
		}
		if err := d.sleep(ctx); err != nil {
			return cur, lastErr
		}
	}
	d.logger.Error("all gateway hosts timed out", "hosts", n, "error", lastErr)
	return cur, lastErr
}

func (d *Driver) sleep(ctx context.Context) error {
	if d.backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
