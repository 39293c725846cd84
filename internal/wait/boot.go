package wait

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// bootTail is how much of the log end is inspected, so that a reboot
// is only detected once the new boot prints its own marker.
const bootTail = 1000

// bootPattern matches a Yocto console prompt or the OpenSSH daemon
// start line. Raspberry Pi OS prints its tty prompt before sshd is up,
// so the daemon line is the later of the two there.
var bootPattern = regexp.MustCompile(`(?m)(Poky.* tty|Started.*OpenBSD Secure Shell server)`)

// LogSource returns the combined stdout and stderr of a container.
type LogSource interface {
	Logs(ctx context.Context, containerID string) (string, error)
}

// Booted reports whether the last characters of logs carry a boot marker.
func Booted(logs string) bool {
	runes := []rune(logs)
	if len(runes) > bootTail {
		logs = string(runes[len(runes)-bootTail:])
	}
	return bootPattern.MatchString(logs)
}

// ForBoot polls the logs of containerID until Booted is true or the
// window (BootTimeout by default) closes. Each poll is preceded by one
// interval of sleep, and the first sleep counts against the window.
// Errors from the log source end the wait.
func ForBoot(ctx context.Context, logs LogSource, containerID string, opts ...Option) (bool, error) {
	if containerID == "" {
		return false, errors.New("container id is required")
	}

	p := newPoller(BootTimeout, opts)
	start := time.Now()
	if err := p.sleep(ctx); err != nil {
		return false, err
	}
	// A zero MaxElapsedTime never stops, so keep at least one poll.
	p.timeout = max(p.timeout-time.Since(start), time.Nanosecond)

	return p.retry(ctx, "no boot marker yet", func() error {
		text, err := logs.Logs(ctx, containerID)
		if err != nil {
			return err
		}
		if !Booted(text) {
			return errNotYet
		}
		return nil
	})
}
