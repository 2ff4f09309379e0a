package runtime

import (
	"fmt"
	"os/exec"

	"github.com/firefly-engineering/hutch/internal/logging"
)

// RuntimeType identifies which container engine CLI to use
type RuntimeType string

const (
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
	RuntimeAuto   RuntimeType = "auto"
)

// Config holds runtime configuration
type Config struct {
	// Type specifies which runtime to use (or "auto" for auto-detection)
	Type RuntimeType

	// Host is passed to the engine CLI as DOCKER_HOST when set
	Host string
}

// DefaultConfig returns the default runtime configuration
func DefaultConfig() *Config {
	return &Config{
		Type: RuntimeAuto,
	}
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Detect determines which container engine CLI is available.
// Docker is preferred since the remote tunnel forwards a Docker-compatible socket.
func Detect() (RuntimeType, error) {
	for _, rt := range []RuntimeType{RuntimeDocker, RuntimePodman} {
		if _, err := lookPath(string(rt)); err == nil {
			logging.Debug("detected container runtime", "runtime", rt)
			return rt, nil
		}
	}
	return "", fmt.Errorf("no supported container runtime found (tried: docker, podman)")
}

// New creates a new Runtime based on the configuration.
// If Type is RuntimeAuto, it auto-detects the runtime.
func New(cfg *Config) (Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	runtimeType := cfg.Type
	if runtimeType == "" || runtimeType == RuntimeAuto {
		detected, err := Detect()
		if err != nil {
			return nil, err
		}
		runtimeType = detected
	}

	logging.Debug("creating runtime", "type", runtimeType, "host", cfg.Host)

	switch runtimeType {
	case RuntimeDocker, RuntimePodman:
		if _, err := lookPath(string(runtimeType)); err != nil {
			return nil, fmt.Errorf("%s not found in PATH: %w", runtimeType, err)
		}
		return &DockerRuntime{Command: string(runtimeType), Host: cfg.Host}, nil
	default:
		return nil, fmt.Errorf("unknown runtime type: %s", runtimeType)
	}
}

// Available returns a list of available runtimes on this system
func Available() []RuntimeType {
	var available []RuntimeType
	for _, rt := range []RuntimeType{RuntimeDocker, RuntimePodman} {
		if _, err := lookPath(string(rt)); err == nil {
			available = append(available, rt)
		}
	}
	return available
}
