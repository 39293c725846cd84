// Package output prints echoed commands and captured streams to the console.
package output

import (
	"fmt"
	"io"
	"os"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Output handles formatted output.
type Output struct {
	w        io.Writer
	useColor bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// Stdout returns an output handler writing plain text to os.Stdout.
func Stdout() *Output {
	o := New(os.Stdout)
	o.useColor = false
	return o
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.useColor = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// Command prints an assembled command line before it runs.
func (o *Output) Command(cmd string) {
	if o.useColor {
		o.printf("%s %s\n", o.color(colorCyan, "$"), cmd)
		return
	}
	o.printf("%s\n", cmd)
}

// Streams prints the captured stdout and stderr of a finished command.
func (o *Output) Streams(stdout, stderr string) {
	o.printf("%s\n", stdout)
	o.printf("%s\n", o.color(colorGray, stderr))
}

// Status prints a single line describing how a command ended.
func (o *Output) Status(name string, exitCode int) {
	if exitCode == 0 {
		o.printf("  %s %s\n", o.color(colorGreen, "✓"), name)
		return
	}
	o.printf("  %s %s %s\n", o.color(colorRed, "✗"), name,
		o.color(colorGray, fmt.Sprintf("(exit %d)", exitCode)))
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}
