// Package config loads the description of the device under test.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eugenetaranov/dutexec/internal/connector"
)

// LocalImage is the image name that means "no container: the local
// machine is the device under test". It is only consulted when loading;
// code downstream switches on Mode.
const LocalImage = "LOCAL"

// Defaults for remote targets.
const (
	DefaultHost           = "localhost"
	DefaultUser           = "root"
	DefaultPort           = 22
	DefaultConnectTimeout = 60
)

// Mode selects how commands reach the device under test.
type Mode int

const (
	// ModeUnset lets the image name decide.
	ModeUnset Mode = iota
	// ModeRemote runs commands over ssh.
	ModeRemote
	// ModeLocal runs commands on this machine.
	ModeLocal
)

// ParseMode converts "local" or "remote" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ModeUnset, nil
	case "remote", "ssh":
		return ModeRemote, nil
	case "local":
		return ModeLocal, nil
	default:
		return ModeUnset, fmt.Errorf("unknown mode %q (expected local or remote)", s)
	}
}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeRemote:
		return "remote"
	case ModeLocal:
		return "local"
	default:
		return "unset"
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	mode, err := ParseMode(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*m = mode
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (m Mode) MarshalYAML() (any, error) {
	if m == ModeUnset {
		return "", nil
	}
	return m.String(), nil
}

// Target describes the device under test.
type Target struct {
	// Image is the container image the device runs in, or LocalImage.
	Image string `yaml:"image,omitempty"`

	// Mode overrides the choice derived from Image.
	Mode Mode `yaml:"mode,omitempty"`

	// ContainerID identifies the container for boot detection.
	ContainerID string `yaml:"container_id,omitempty"`

	Host           string `yaml:"host,omitempty"`
	User           string `yaml:"user,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	KeyFile        string `yaml:"key_file,omitempty"`
	ConnectTimeout int    `yaml:"connect_timeout,omitempty"`
}

// Load reads a target from a YAML file.
func Load(path string) (*Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target config: %w", err)
	}

	target, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target config %s: %w", path, err)
	}

	return target, nil
}

// Parse reads a target from YAML data and fills in defaults.
func Parse(data []byte) (*Target, error) {
	var target Target
	if err := yaml.Unmarshal(data, &target); err != nil {
		return nil, err
	}

	if err := target.Normalize(); err != nil {
		return nil, err
	}

	return &target, nil
}

// Normalize resolves Mode and fills in the remote defaults. It is
// idempotent.
func (t *Target) Normalize() error {
	if t.Mode == ModeUnset {
		if t.Image == LocalImage {
			t.Mode = ModeLocal
		} else {
			t.Mode = ModeRemote
		}
	}

	if t.Mode == ModeLocal {
		return nil
	}

	if t.Host == "" {
		t.Host = DefaultHost
	}
	if t.User == "" {
		t.User = DefaultUser
	}
	if t.Port == 0 {
		t.Port = DefaultPort
	}
	if t.ConnectTimeout == 0 {
		t.ConnectTimeout = DefaultConnectTimeout
	}

	return t.Validate()
}

// Validate checks that the target can be connected to.
func (t *Target) Validate() error {
	if t.Mode == ModeLocal {
		return nil
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("port %d out of range", t.Port)
	}
	if t.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout must not be negative")
	}
	return nil
}

// Connector returns the credentials for the remote connector.
func (t *Target) Connector() connector.Config {
	return connector.Config{
		Host:    t.Host,
		User:    t.User,
		Port:    t.Port,
		Timeout: t.ConnectTimeout,
		KeyFile: t.KeyFile,
	}
}
