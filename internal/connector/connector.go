// Package connector defines the interface for executing commands on a device under test.
package connector

import (
	"context"
	"os/exec"
)

// Result holds the output from command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Failed reports whether the command exited with a non-zero status.
func (r *Result) Failed() bool {
	return r.ExitCode != 0
}

// Connector is the interface for executing commands on a device under test.
// Callers hold only this type and never branch on the concrete transport.
type Connector interface {
	// Run executes a command on the target and waits for it to finish.
	Run(ctx context.Context, cmd string, opts ...RunOption) (*Result, error)

	// Start launches a command on the target without waiting for it.
	Start(cmd string, opts ...RunOption) (*exec.Cmd, error)

	// Sudo runs a command prefixed with sudo.
	Sudo(ctx context.Context, cmd string, opts ...RunOption) (*Result, error)

	// Put copies a local file to the target.
	Put(ctx context.Context, file string, opts ...PutOption) error

	// Close releases the connector. Neither transport holds a session,
	// so this never fails today.
	Close() error

	// String returns a human-readable description of the connection.
	String() string
}

// Config holds the credentials of a remote target.
type Config struct {
	// Host is the target hostname or IP address.
	Host string

	// User is the username for authentication.
	User string

	// Port is the SSH port of the target.
	Port int

	// Timeout is the connection timeout in seconds.
	Timeout int

	// KeyFile is an optional private key path.
	KeyFile string
}

// Target returns the user@host pair used by the transport tools.
func (c Config) Target() string {
	return c.User + "@" + c.Host
}
