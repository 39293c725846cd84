package connector

import (
	"errors"
	"fmt"
	"strings"
)

// UnreachableExitCode is the status ssh reserves for connection failures.
const UnreachableExitCode = 255

// ConnectionError reports that the transport could not reach the target.
// It is distinct from a CommandError: the remote command never ran.
type ConnectionError struct {
	Cmd string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect using command '%s'", e.Cmd)
}

// IsUnreachable reports whether err is, or wraps, a ConnectionError.
func IsUnreachable(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// CommandError represents a command execution failure.
type CommandError struct {
	Cmd      string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, e.Cmd)
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", strings.TrimSpace(e.Stderr))
	}
	return msg
}
