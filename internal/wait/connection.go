package wait

import (
	"context"
	"fmt"

	"github.com/eugenetaranov/dutexec/internal/connector"
)

// Runner is the part of a connector the readiness probe needs.
type Runner interface {
	Run(ctx context.Context, cmd string, opts ...connector.RunOption) (*connector.Result, error)
}

// ForConnection runs "true" on conn until it succeeds or the window
// (ConnectionTimeout by default) closes. Only connection failures are
// retried; any other error ends the probe and is returned.
func ForConnection(ctx context.Context, conn Runner, opts ...Option) (bool, error) {
	p := newPoller(ConnectionTimeout, opts)

	return p.retry(ctx, "target not reachable yet", func() error {
		result, err := conn.Run(ctx, "true")
		switch {
		case connector.IsUnreachable(err):
			return fmt.Errorf("%w: %w", errNotYet, err)
		case err != nil:
			return err
		case result.Failed():
			return errNotYet
		}
		return nil
	})
}
