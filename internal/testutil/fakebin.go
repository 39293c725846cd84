// Package testutil installs fake command-line tools for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Bin is a directory of fake executables placed first on PATH.
type Bin struct {
	Dir string
	t   *testing.T
}

// Tool describes what a fake executable prints and how it exits.
type Tool struct {
	Stdout string
	Stderr string
	Exit   int

	// Script, when set, replaces the generated body after argument logging.
	Script string
}

// NewBin creates an empty fake bin directory and prepends it to PATH for
// the duration of the test.
func NewBin(t *testing.T) *Bin {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return &Bin{Dir: dir, t: t}
}

// Install writes an executable called name that records its arguments,
// one invocation per line, and then behaves as described by tool.
func (b *Bin) Install(name string, tool Tool) {
	b.t.Helper()

	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&sb, "printf '%%s\\n' \"$*\" >> %s\n", quote(b.logPath(name)))
	if tool.Script != "" {
		sb.WriteString(tool.Script)
		sb.WriteString("\n")
	} else {
		fmt.Fprintf(&sb, "printf '%%s' %s\n", quote(tool.Stdout))
		fmt.Fprintf(&sb, "printf '%%s' %s >&2\n", quote(tool.Stderr))
		fmt.Fprintf(&sb, "exit %d\n", tool.Exit)
	}

	if err := os.WriteFile(filepath.Join(b.Dir, name), []byte(sb.String()), 0o755); err != nil {
		b.t.Fatalf("failed to install fake %s: %v", name, err)
	}
}

// Calls returns the argument lines recorded for name.
func (b *Bin) Calls(name string) []string {
	b.t.Helper()

	data, err := os.ReadFile(b.logPath(name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		b.t.Fatalf("failed to read calls of %s: %v", name, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func (b *Bin) logPath(name string) string {
	return filepath.Join(b.Dir, name+".calls")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}
