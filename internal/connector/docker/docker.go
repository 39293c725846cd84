// Package docker reads the log stream of the container hosting a device
// under test, either through the docker CLI or the Docker Engine API.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// CLI fetches container logs with `docker logs`.
type CLI struct {
	binary string
}

// NewCLI creates a CLI log source using the docker binary on PATH.
func NewCLI() *CLI {
	return &CLI{binary: "docker"}
}

// Logs returns the container's stdout and stderr as one text, the
// same as `docker logs <id> 2>&1`.
func (c *CLI) Logs(ctx context.Context, containerID string) (string, error) {
	if _, err := exec.LookPath(c.binary); err != nil {
		return "", fmt.Errorf("docker command not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.binary, "logs", containerID)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to read logs of container '%s': %s: %w", containerID, string(output), err)
	}

	return string(output), nil
}

// API fetches container logs from the Docker Engine API.
type API struct {
	client *client.Client
}

// NewAPI creates an API log source. Without options the client is
// configured from the DOCKER_* environment with version negotiation.
func NewAPI(opts ...client.Opt) (*API, error) {
	if len(opts) == 0 {
		opts = []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &API{client: cli}, nil
}

// Logs returns the container's stdout and stderr interleaved in the
// order the daemon recorded them.
func (a *API) Logs(ctx context.Context, containerID string) (string, error) {
	info, err := a.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("container '%s' not found or not accessible: %w", containerID, err)
	}

	rc, err := a.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read logs of container '%s': %w", containerID, err)
	}
	defer rc.Close()

	var buf bytes.Buffer

	// TTY containers stream raw text; others multiplex stdout/stderr
	if info.Config != nil && info.Config.Tty {
		_, err = io.Copy(&buf, rc)
	} else {
		_, err = stdcopy.StdCopy(&buf, &buf, rc)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read logs of container '%s': %w", containerID, err)
	}

	return buf.String(), nil
}

// Close releases the API client.
func (a *API) Close() error {
	return a.client.Close()
}

// String returns a description of the log source.
func (c *CLI) String() string {
	return "docker-cli"
}

// String returns a description of the log source.
func (a *API) String() string {
	return fmt.Sprintf("docker-api://%s", a.client.DaemonHost())
}
