// Package dut hands out ready-to-use connectors for the device under test.
package dut

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/dutexec/internal/config"
	"github.com/eugenetaranov/dutexec/internal/connector"
	"github.com/eugenetaranov/dutexec/internal/connector/local"
	"github.com/eugenetaranov/dutexec/internal/connector/ssh"
	"github.com/eugenetaranov/dutexec/internal/output"
	"github.com/eugenetaranov/dutexec/internal/wait"
)

// ErrNotReady is returned when the probe window closes without the
// target accepting a command.
var ErrNotReady = errors.New("SSH connection can not be established")

// Options configures Connect.
type Options struct {
	Logger *zerolog.Logger
	Output *output.Output

	// ProbeInterval and ProbeTimeout override the readiness probe window.
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// Option applies a configuration option to Connect.
type Option func(options *Options)

// WithLogger allows to use a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) {
		options.Logger = logger
	}
}

// WithOutput sets where echoed commands and shown streams are printed.
func WithOutput(out *output.Output) Option {
	return func(options *Options) {
		options.Output = out
	}
}

// WithProbe overrides the readiness probe interval and window.
func WithProbe(interval, timeout time.Duration) Option {
	return func(options *Options) {
		options.ProbeInterval = interval
		options.ProbeTimeout = timeout
	}
}

func defaultOptions() *Options {
	logger := zerolog.Nop()
	return &Options{
		Logger:        &logger,
		Output:        output.Stdout(),
		ProbeInterval: wait.DefaultInterval,
		ProbeTimeout:  wait.ConnectionTimeout,
	}
}

// Connect returns a connector for target. Local targets are returned
// as is; remote targets are probed until they accept commands, and
// ErrNotReady is returned if they never do.
func Connect(ctx context.Context, target *config.Target, opts ...Option) (connector.Connector, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if err := target.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}

	switch target.Mode {
	case config.ModeLocal:
		o.Logger.Debug().Msg("using local machine as device under test")
		return local.New(local.WithLogger(o.Logger), local.WithOutput(o.Output)), nil

	case config.ModeRemote:
		conn, err := ssh.New(target.Connector(), ssh.WithLogger(o.Logger), ssh.WithOutput(o.Output))
		if err != nil {
			return nil, err
		}

		o.Logger.Debug().Str("target", conn.String()).Msg("probing ssh connection")
		ready, err := wait.ForConnection(ctx, conn,
			wait.WithInterval(o.ProbeInterval),
			wait.WithTimeout(o.ProbeTimeout),
			wait.WithLogger(o.Logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", conn, err)
		}
		if !ready {
			return nil, fmt.Errorf("%w: %s", ErrNotReady, conn)
		}
		return conn, nil

	default:
		return nil, fmt.Errorf("unsupported mode: %s", target.Mode)
	}
}
