// Package wait polls a device under test until it accepts commands or
// its container reports a finished boot.
package wait

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultInterval is the pause between two polls.
	DefaultInterval = 5 * time.Second

	// ConnectionTimeout bounds ForConnection.
	ConnectionTimeout = 60 * time.Second

	// BootTimeout bounds ForBoot.
	BootTimeout = 15 * time.Minute
)

// Option configures a wait.
type Option func(*poller)

// WithInterval sets the pause between two polls.
func WithInterval(d time.Duration) Option {
	return func(p *poller) {
		p.interval = d
	}
}

// WithTimeout sets the total polling window.
func WithTimeout(d time.Duration) Option {
	return func(p *poller) {
		p.timeout = d
	}
}

// WithLogger sets the logger that records each failed attempt.
func WithLogger(logger *zerolog.Logger) Option {
	return func(p *poller) {
		p.logger = logger
	}
}

type poller struct {
	interval time.Duration
	timeout  time.Duration
	logger   *zerolog.Logger
}

func newPoller(timeout time.Duration, opts []Option) *poller {
	logger := zerolog.Nop()
	p := &poller{
		interval: DefaultInterval,
		timeout:  timeout,
		logger:   &logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// errNotYet marks an attempt that should be retried.
var errNotYet = errors.New("not ready yet")

// backOff returns a constant-interval schedule that stops once the
// window has elapsed or ctx is done.
func (p *poller) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.interval
	b.MaxInterval = p.interval
	b.Multiplier = 1
	b.RandomizationFactor = 0
	b.MaxElapsedTime = p.timeout
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// retry calls op until it returns nil or an error other than errNotYet.
// It reports false without an error when the window closes first.
func (p *poller) retry(ctx context.Context, msg string, op func() error) (bool, error) {
	attempt := 0
	notify := func(err error, next time.Duration) {
		attempt++
		p.logger.Debug().Int("attempt", attempt).Dur("next", next).Err(err).Msg(msg)
	}

	err := backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !errors.Is(err, errNotYet) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), notify)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNotYet):
		return false, nil
	default:
		return false, err
	}
}

// sleep pauses for one interval or until ctx is done.
func (p *poller) sleep(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
