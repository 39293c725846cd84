package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// shell runs commands the same way on every connector.
var shell = []string{"/bin/sh", "-c"}

// Shell runs a command line through /bin/sh and captures its streams.
// A non-zero exit is reported in the Result, not as an error.
func Shell(ctx context.Context, cmd string) (*Result, error) {
	execCmd := exec.CommandContext(ctx, shell[0], shell[1], cmd)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
	}

	return result, nil
}

// StartShell launches a command line through /bin/sh without waiting.
func StartShell(cmd string) (*exec.Cmd, error) {
	execCmd := exec.Command(shell[0], shell[1], cmd)
	if err := execCmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}
	return execCmd, nil
}

// Check turns a non-zero result into a CommandError unless warn is set.
func Check(cmd string, result *Result, warn bool) (*Result, error) {
	if result.Failed() && !warn {
		return nil, &CommandError{
			Cmd:      cmd,
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
		}
	}
	return result, nil
}

// ShellQuote wraps s in single quotes so the shell passes it as one argument.
func ShellQuote(s string) string {
	// Use single quotes and escape any single quotes in the string
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}
