// Package portforward maps a local TCP port to a port on a device under
// test through a backgrounded ssh tunnel.
package portforward

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eugenetaranov/dutexec/internal/connector"
	"github.com/eugenetaranov/dutexec/internal/keyfile"
)

// LaunchError reports that the tunnel could not be put in the background.
type LaunchError struct {
	Args     []string
	ExitCode int
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("port forward exited with code %d: %s", e.ExitCode, strings.Join(e.Args, " "))
}

// Forward is a single local-to-remote port mapping.
//
// ssh -f forks and its first process exits once the tunnel is up, so
// the tunnel's pid is never known here. Close therefore kills by exact
// command line: two forwards with identical credentials and ports cannot
// be told apart, and callers must keep port pairs unique per run.
type Forward struct {
	config     connector.Config
	keyFile    string
	localPort  int
	remotePort int

	args   []string
	cmd    *exec.Cmd
	logger *zerolog.Logger
}

// Option configures a Forward.
type Option func(*Forward)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zerolog.Logger) Option {
	return func(f *Forward) {
		f.logger = logger
	}
}

// New creates a forward from localPort to remotePort on the target
// described by config. keyFile may differ from config.KeyFile.
func New(config connector.Config, keyFile string, localPort, remotePort int, opts ...Option) *Forward {
	logger := zerolog.Nop()
	f := &Forward{
		config:     config,
		keyFile:    keyFile,
		localPort:  localPort,
		remotePort: remotePort,
		logger:     &logger,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Args returns the argument vector the tunnel is launched with. It is
// empty until Open has been called.
func (f *Forward) Args() []string {
	return f.args
}

// Pattern returns the pkill pattern that matches the running tunnel.
func (f *Forward) Pattern() string {
	return regexp.QuoteMeta(strings.Join(f.args, " "))
}

func (f *Forward) buildArgs() ([]string, error) {
	key, err := keyfile.Args(f.keyFile)
	if err != nil {
		return nil, err
	}

	args := []string{"ssh", "-4", "-N", "-f"}
	args = append(args, key...)
	args = append(args,
		"-L", fmt.Sprintf("%d:localhost:%d", f.localPort, f.remotePort),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-p", strconv.Itoa(f.config.Port),
		f.config.Target(),
	)
	return args, nil
}

// Open launches the tunnel and blocks until ssh has backgrounded itself.
// On failure nothing is left for Close to clean up.
func (f *Forward) Open(ctx context.Context) error {
	args, err := f.buildArgs()
	if err != nil {
		return err
	}
	f.args = args

	f.logger.Debug().Strs("args", args).Msg("opening port forward")

	// Not CommandContext: canceling ctx must not kill the tunnel child.
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start port forward: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &LaunchError{Args: args, ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("port forward failed: %w", err)
	}

	f.cmd = cmd
	return nil
}

// Close terminates the backgrounded tunnel. It does nothing if Open did
// not succeed, so it is safe to defer right after New.
func (f *Forward) Close() error {
	if f.cmd == nil {
		return nil
	}

	pattern := f.Pattern()
	f.logger.Debug().Str("pattern", pattern).Msg("closing port forward")

	if output, err := exec.Command("pkill", "-xf", pattern).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to terminate port forward: %s: %w", strings.TrimSpace(string(output)), err)
	}

	f.cmd = nil
	return nil
}

// String returns a description of the forward.
func (f *Forward) String() string {
	return fmt.Sprintf("localhost:%d -> %s:%d", f.localPort, f.config.Host, f.remotePort)
}
