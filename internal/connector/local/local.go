// Package local provides a connector for executing commands on the local
// machine when it acts as its own device under test.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/dutexec/internal/connector"
	"github.com/eugenetaranov/dutexec/internal/output"
)

// Connector executes commands on the local machine.
type Connector struct {
	logger *zerolog.Logger
	out    *output.Output
}

// Option configures the local connector.
type Option func(*Connector)

// WithLogger sets the logger used for debug output of command lines.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithOutput sets where echoed commands and shown streams are printed.
func WithOutput(out *output.Output) Option {
	return func(c *Connector) {
		c.out = out
	}
}

// New creates a new local connector.
func New(opts ...Option) *Connector {
	logger := zerolog.Nop()
	c := &Connector{
		logger: &logger,
		out:    output.Stdout(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run executes a command locally. There is no transport, so exit status
// 255 is an ordinary command failure here.
func (c *Connector) Run(ctx context.Context, cmd string, opts ...connector.RunOption) (*connector.Result, error) {
	o := connector.ApplyRun(opts...)

	c.logger.Debug().Str("cmd", cmd).Msg("run")
	if o.Echo {
		c.out.Command(cmd)
	}

	result, err := connector.Shell(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if !o.Hide {
		c.out.Streams(result.Stdout, result.Stderr)
	}

	return connector.Check(cmd, result, o.Warn)
}

// Start launches a command locally without waiting for it.
func (c *Connector) Start(cmd string, opts ...connector.RunOption) (*exec.Cmd, error) {
	o := connector.ApplyRun(opts...)

	c.logger.Debug().Str("cmd", cmd).Msg("start")
	if o.Echo {
		c.out.Command(cmd)
	}

	return connector.StartShell(cmd)
}

// Sudo runs a command prefixed with sudo.
func (c *Connector) Sudo(ctx context.Context, cmd string, opts ...connector.RunOption) (*connector.Result, error) {
	return c.Run(ctx, "sudo "+cmd, opts...)
}

// Put copies LocalPath/file to RemotePath on the local filesystem. When
// RemotePath is a directory the file keeps its base name. The key
// override is ignored.
func (c *Connector) Put(ctx context.Context, file string, opts ...connector.PutOption) error {
	// Check for context cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	o := connector.ApplyPut(opts...)
	src := filepath.Join(o.LocalPath, file)
	dst := o.RemotePath
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(file))
	}

	c.logger.Debug().Str("src", src).Str("dst", dst).Msg("put")

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", src, err)
	}

	if existing, err := os.Stat(dst); err == nil && os.SameFile(info, existing) {
		return fmt.Errorf("%s and %s are the same file", src, dst)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dst, err)
	}
	defer out.Close()

	// OpenFile only applies the mode to new files.
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set mode of %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to write to %s: %w", dst, err)
	}

	return out.Close()
}

// Close is a no-op for local connections.
func (c *Connector) Close() error {
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	u, err := user.Current()
	if err != nil {
		return "local"
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return fmt.Sprintf("local://%s@%s", u.Username, hostname)
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
