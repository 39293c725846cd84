// Package ssh provides a connector that runs commands on a remote device
// under test through the ssh and scp command-line tools.
package ssh

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/dutexec/internal/connector"
	"github.com/eugenetaranov/dutexec/internal/keyfile"
	"github.com/eugenetaranov/dutexec/internal/output"
)

// insecureHostKeyArgs disable host key checking and known_hosts updates.
var insecureHostKeyArgs = []string{
	"-o", "StrictHostKeyChecking=no",
	"-o", "UserKnownHostsFile=/dev/null",
}

// defaultKeyTimeout is the connect timeout used by RunWithKey.
const defaultKeyTimeout = 60

// Connector executes commands on a remote host. It holds credentials
// only; every call spawns a fresh ssh or scp process.
type Connector struct {
	config connector.Config
	key    string

	logger *zerolog.Logger
	out    *output.Output
}

// Option configures the SSH connector.
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

// New creates a new SSH connector. The key file, if any, has its
// permissions fixed immediately.
func New(config connector.Config, opts ...Option) (*Connector, error) {
	key, err := keyfile.Arg(config.KeyFile)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	c := &Connector{
		config: config,
		key:    key,
		logger: &logger,
		out:    output.Stdout(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Command returns the ssh invocation prefix for this target, without
// the remote command.
func (c *Connector) Command() string {
	return c.command(c.key, c.config.Timeout)
}

func (c *Connector) command(key string, timeout int) string {
	parts := []string{"ssh"}
	if key != "" {
		parts = append(parts, key)
	}
	parts = append(parts, insecureHostKeyArgs...)
	parts = append(parts,
		"-o", "ConnectTimeout="+strconv.Itoa(timeout),
		"-p", strconv.Itoa(c.config.Port),
		c.config.Target(),
	)
	return strings.Join(parts, " ")
}

// wrap turns a remote command into a full ssh invocation. Commands that
// already invoke ssh or scp are passed through untouched.
func (c *Connector) wrap(cmd string) string {
	if isTransport(cmd) {
		return cmd
	}
	return c.Command() + " " + connector.ShellQuote(cmd)
}

func isTransport(cmd string) bool {
	return strings.HasPrefix(cmd, "ssh") || strings.HasPrefix(cmd, "scp")
}

// Run executes a command on the remote host.
//
// Exit status 255 means ssh itself could not connect; it is returned as
// a *connector.ConnectionError even when WithWarn is set.
func (c *Connector) Run(ctx context.Context, cmd string, opts ...connector.RunOption) (*connector.Result, error) {
	o := connector.ApplyRun(opts...)
	fullCmd := c.wrap(cmd)

	c.logger.Debug().Str("cmd", fullCmd).Msg("run")
	if o.Echo {
		c.out.Command(fullCmd)
	}

	result, err := connector.Shell(ctx, fullCmd)
	if err != nil {
		return nil, err
	}

	if result.ExitCode == connector.UnreachableExitCode {
		return nil, &connector.ConnectionError{Cmd: fullCmd}
	}

	if !o.Hide {
		c.out.Streams(result.Stdout, result.Stderr)
	}

	return connector.Check(fullCmd, result, o.Warn)
}

// Start launches a command on the remote host and returns without
// waiting, e.g. to trigger a reboot before the connection drops.
func (c *Connector) Start(cmd string, opts ...connector.RunOption) (*exec.Cmd, error) {
	o := connector.ApplyRun(opts...)
	fullCmd := c.wrap(cmd)

	c.logger.Debug().Str("cmd", fullCmd).Msg("start")
	if o.Echo {
		c.out.Command(fullCmd)
	}

	return connector.StartShell(fullCmd)
}

// Sudo runs a command prefixed with sudo.
func (c *Connector) Sudo(ctx context.Context, cmd string, opts ...connector.RunOption) (*connector.Result, error) {
	return c.Run(ctx, "sudo "+cmd, opts...)
}

// RunWithKey runs a command through a one-off ssh invocation that uses
// keyFile instead of the connector's key. The command is not quoted, so
// the remote shell sees it word by word.
func (c *Connector) RunWithKey(ctx context.Context, keyFile, cmd string, opts ...connector.RunOption) (*connector.Result, error) {
	key, err := keyfile.Arg(keyFile)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, c.command(key, defaultKeyTimeout)+" "+cmd, opts...)
}

// Put copies a local file to the remote host with scp.
func (c *Connector) Put(ctx context.Context, file string, opts ...connector.PutOption) error {
	o := connector.ApplyPut(opts...)
	if o.KeyFile == "" {
		o.KeyFile = c.config.KeyFile
	}

	key, err := keyfile.Arg(o.KeyFile)
	if err != nil {
		return err
	}

	parts := []string{"scp"}
	if key != "" {
		parts = append(parts, key)
	}
	parts = append(parts, "-C", "-O")
	parts = append(parts, insecureHostKeyArgs...)
	parts = append(parts,
		"-P", strconv.Itoa(c.config.Port),
		filepath.Join(o.LocalPath, file),
		fmt.Sprintf("%s:%s", c.config.Target(), o.RemotePath),
	)
	cmd := strings.Join(parts, " ")

	c.logger.Debug().Str("cmd", cmd).Msg("put")
	if _, err := c.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", file, c.config.Host, err)
	}
	return nil
}

// Close is a no-op for SSH connections.
func (c *Connector) Close() error {
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	return fmt.Sprintf("ssh://%s:%d", c.config.Target(), c.config.Port)
}

// Ensure Connector implements the connector.Connector interface.
var _ connector.Connector = (*Connector)(nil)
