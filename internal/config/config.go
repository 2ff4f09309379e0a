package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/firefly-engineering/hutch/internal/system"
)

// Built-in defaults, the lowest precedence layer.
const (
	DefaultImage   = "docker.io/bitnami/git:latest"
	DefaultShell   = "sh"
	DefaultUser    = "hutch_user"
	DefaultUID     = "1000"
	RootUID        = "0"
	DefaultWorkDir = "/work"

	// DefaultContainer names the work container in enter --container.
	DefaultContainer = "work"

	// HelperImage runs clones and volume file operations.
	HelperImage = DefaultImage
)

// Spec document names looked up at the root of a repository.
var RepoDocumentNames = []string{".hutch.yaml", ".hutch.toml"}

// Paths holds the configured paths.
type Paths struct {
	ConfigDir      string
	HostConfigFile string
	StateDir       string
	RemoteSocket   string
}

// DefaultPaths returns the default path configuration.
func DefaultPaths() *Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		configDir = filepath.Join(home, ".config")
	}
	configDir = filepath.Join(configDir, "hutch")
	stateDir := filepath.Join(home, ".hutch")

	return &Paths{
		ConfigDir:      configDir,
		HostConfigFile: filepath.Join(configDir, "config.toml"),
		StateDir:       stateDir,
		RemoteSocket:   filepath.Join(stateDir, "remote.sock"),
	}
}

// HostConfig represents optional per-user settings from config.toml.
type HostConfig struct {
	// Remote is the default ssh:// endpoint for the remote command.
	Remote string `toml:"remote"`

	// Runtime selects "docker", "podman" or "auto".
	Runtime string `toml:"runtime"`

	// Caches are added to every workspace.
	Caches []string `toml:"caches"`

	// Image replaces the built-in default image.
	Image string `toml:"image"`

	// PollInterval is how often the remote tunnel looks for new ports,
	// in seconds.
	PollInterval int `toml:"poll_interval"`
}

// Validate checks that the HostConfig is valid.
func (c *HostConfig) Validate() error {
	switch c.Runtime {
	case "", "auto", "docker", "podman":
	default:
		return fmt.Errorf("invalid runtime %q: must be docker, podman or auto", c.Runtime)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval cannot be negative")
	}
	return nil
}

// LoadHostConfig loads the host configuration. A missing file yields an
// empty configuration.
func LoadHostConfig(fs system.FileSystem, path string) (*HostConfig, error) {
	if !fs.Exists(path) {
		return &HostConfig{}, nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read host config: %w", err)
	}

	var config HostConfig
	md, err := toml.Decode(string(data), &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse host config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown host config key %q", undecoded[0].String())
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid host config: %w", err)
	}

	return &config, nil
}
