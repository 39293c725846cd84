package wait

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/dutexec/internal/connector"
)

// scriptedRunner answers Run calls from a fixed list of errors; nil
// means success. The last entry repeats.
type scriptedRunner struct {
	errs  []error
	calls int
	cmds  []string
}

func (r *scriptedRunner) Run(ctx context.Context, cmd string, opts ...connector.RunOption) (*connector.Result, error) {
	r.cmds = append(r.cmds, cmd)
	i := r.calls
	if i >= len(r.errs) {
		i = len(r.errs) - 1
	}
	r.calls++
	if err := r.errs[i]; err != nil {
		return nil, err
	}
	return &connector.Result{}, nil
}

var unreachable = &connector.ConnectionError{Cmd: "ssh root@dut 'true'"}

func fast(timeout time.Duration) []Option {
	return []Option{WithInterval(time.Millisecond), WithTimeout(timeout)}
}

func TestForConnectionReadyImmediately(t *testing.T) {
	r := &scriptedRunner{errs: []error{nil}}

	ready, err := ForConnection(context.Background(), r, fast(time.Second)...)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, []string{"true"}, r.cmds)
}

func TestForConnectionRetriesUnreachable(t *testing.T) {
	r := &scriptedRunner{errs: []error{unreachable, unreachable, nil}}

	ready, err := ForConnection(context.Background(), r, fast(time.Second)...)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 3, r.calls)
}

func TestForConnectionTimesOut(t *testing.T) {
	r := &scriptedRunner{errs: []error{unreachable}}

	ready, err := ForConnection(context.Background(), r, fast(20*time.Millisecond)...)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Greater(t, r.calls, 1)
}

func TestForConnectionAbortsOnOtherErrors(t *testing.T) {
	cmdErr := &connector.CommandError{Cmd: "true", ExitCode: 1}
	r := &scriptedRunner{errs: []error{unreachable, cmdErr}}

	ready, err := ForConnection(context.Background(), r, fast(time.Second)...)
	assert.False(t, ready)
	assert.ErrorIs(t, err, cmdErr)
	assert.Equal(t, 2, r.calls)
}

func TestForConnectionCanceled(t *testing.T) {
	r := &scriptedRunner{errs: []error{unreachable}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ready, err := ForConnection(ctx, r, WithInterval(time.Hour))
	assert.False(t, ready)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForConnectionDefaults(t *testing.T) {
	p := newPoller(ConnectionTimeout, nil)
	assert.Equal(t, 5*time.Second, p.interval)
	assert.Equal(t, 60*time.Second, p.timeout)

	p = newPoller(BootTimeout, nil)
	assert.Equal(t, 15*time.Minute, p.timeout)
}

func TestBooted(t *testing.T) {
	padding := strings.Repeat("x", bootTail)

	tests := []struct {
		name string
		logs string
		want bool
	}{
		{"empty", "", false},
		{"yocto prompt", "Poky (Yocto Project Reference Distro) 4.0 qemux86-64 ttyS0\n", true},
		{"openssh started", "[  OK  ] Started OpenBSD Secure Shell server.\n", true},
		{"openssh starting", "Starting OpenBSD Secure Shell server...\n", false},
		{"marker on later line", "booting\nkernel\nPoky 4.0 tty1\n", true},
		{"marker buried by reboot", "Poky 4.0 tty1\n" + padding, false},
		{"marker inside tail", padding + "Poky 4.0 tty1\n", true},
		{"unrelated output", "login: ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Booted(tt.logs))
		})
	}
}

func TestBootedCountsCharacters(t *testing.T) {
	// Multi-byte runes must not shrink the inspected window.
	marker := "Poky 4.0 tty1"
	logs := marker + strings.Repeat("é", bootTail-len(marker))
	assert.True(t, Booted(logs))
}

// scriptedLogs returns successive log snapshots; the last one repeats.
type scriptedLogs struct {
	snapshots []string
	err       error
	ids       []string
}

func (s *scriptedLogs) Logs(ctx context.Context, containerID string) (string, error) {
	s.ids = append(s.ids, containerID)
	if s.err != nil {
		return "", s.err
	}
	i := len(s.ids) - 1
	if i >= len(s.snapshots) {
		i = len(s.snapshots) - 1
	}
	return s.snapshots[i], nil
}

func TestForBoot(t *testing.T) {
	logs := &scriptedLogs{snapshots: []string{
		"U-Boot\n",
		"U-Boot\nStarting kernel\n",
		"U-Boot\nStarting kernel\nStarted OpenBSD Secure Shell server.\n",
	}}

	booted, err := ForBoot(context.Background(), logs, "dut", fast(time.Second)...)
	require.NoError(t, err)
	assert.True(t, booted)
	assert.Equal(t, []string{"dut", "dut", "dut"}, logs.ids)
}

func TestForBootTimesOut(t *testing.T) {
	logs := &scriptedLogs{snapshots: []string{"still booting\n"}}

	booted, err := ForBoot(context.Background(), logs, "dut", fast(20*time.Millisecond)...)
	require.NoError(t, err)
	assert.False(t, booted)
	assert.NotEmpty(t, logs.ids)
}

func TestForBootWindowIncludesFirstSleep(t *testing.T) {
	logs := &scriptedLogs{snapshots: []string{"still booting\n"}}
	interval := 50 * time.Millisecond
	timeout := 120 * time.Millisecond

	start := time.Now()
	booted, err := ForBoot(context.Background(), logs, "dut",
		WithInterval(interval), WithTimeout(timeout))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, booted)
	assert.Less(t, elapsed, timeout+interval/2)
	assert.Len(t, logs.ids, 2)
}

func TestForBootWindowShorterThanInterval(t *testing.T) {
	logs := &scriptedLogs{snapshots: []string{"still booting\n"}}

	booted, err := ForBoot(context.Background(), logs, "dut",
		WithInterval(20*time.Millisecond), WithTimeout(5*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, booted)
	assert.Len(t, logs.ids, 1)
}

func TestForBootLogError(t *testing.T) {
	logs := &scriptedLogs{err: errors.New("no such container")}

	booted, err := ForBoot(context.Background(), logs, "dut", fast(time.Second)...)
	assert.False(t, booted)
	assert.EqualError(t, err, "no such container")
}

func TestForBootRequiresID(t *testing.T) {
	_, err := ForBoot(context.Background(), &scriptedLogs{}, "")
	require.Error(t, err)
}
