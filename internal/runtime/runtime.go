// Package runtime defines the container engine interface for hutch.
// The engine is driven through its CLI so that DOCKER_HOST, contexts and
// rootless setups behave exactly as they do for the user's own commands.
package runtime

import (
	"context"
	"io"
)

// ContainerStatus represents the state of a container
type ContainerStatus string

const (
	StatusRunning  ContainerStatus = "running"
	StatusStopped  ContainerStatus = "stopped"
	StatusCreated  ContainerStatus = "created"
	StatusNotFound ContainerStatus = "not-found"
	StatusUnknown  ContainerStatus = "unknown"
)

// Labels is a set of engine labels. When used as a filter every entry must match.
type Labels map[string]string

// PortBinding publishes a container port on the engine host.
type PortBinding struct {
	HostPort      int
	ContainerPort int
}

// MountType selects the kind of mount.
type MountType string

const (
	MountVolume MountType = "volume"
	MountBind   MountType = "bind"
)

// Mount attaches a volume or host path to a container.
type Mount struct {
	Type     MountType
	Source   string
	Target   string
	ReadOnly bool
}

// ContainerInfo holds information about a container
type ContainerInfo struct {
	Name      string
	Image     string
	Status    ContainerStatus
	StartedAt string
	IPAddress string
	Labels    Labels
	Ports     []PortBinding
}

// VolumeInfo describes a named volume.
type VolumeInfo struct {
	Name   string
	Labels Labels
}

// NetworkInfo describes a network.
type NetworkInfo struct {
	Name   string
	Labels Labels
}

// ExecResult holds the result of executing a command in a container
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CreateOptions holds options for creating a container
type CreateOptions struct {
	Name           string
	Image          string
	Entrypoint     []string
	Command        []string
	Env            []string // KEY=VALUE, in order
	Labels         Labels
	Mounts         []Mount
	Ports          []PortBinding
	WorkingDir     string
	User           string
	Network        string
	NetworkAliases []string
	TTY            bool
	Interactive    bool
	Start          bool // Start immediately after creation
}

// RunOptions describes a short-lived helper container that is removed on exit.
type RunOptions struct {
	CreateOptions
	Stdin io.Reader
}

// ExecOptions holds options for executing a command in a container
type ExecOptions struct {
	User        string    // User to run as
	WorkingDir  string    // Working directory
	Env         []string  // Environment variables
	Stdin       io.Reader // Standard input
	Interactive bool      // Allocate a TTY
}

// Runtime is the interface that container backends must implement.
// All methods should be safe for concurrent use.
type Runtime interface {
	// Name returns the runtime identifier (e.g., "docker", "podman")
	Name() string

	// Create creates a new container but does not start it unless opts.Start is set
	Create(ctx context.Context, opts CreateOptions) error

	// Start starts an existing container
	Start(ctx context.Context, name string) error

	// Stop stops a running container
	Stop(ctx context.Context, name string) error

	// Destroy stops and removes a container. Missing containers are not an error.
	Destroy(ctx context.Context, name string) error

	// IsRunning checks if a container is currently running
	IsRunning(ctx context.Context, name string) (bool, error)

	// Status returns detailed status of a container
	Status(ctx context.Context, name string) (*ContainerInfo, error)

	// Exec executes a command inside a container
	Exec(ctx context.Context, name string, command []string, opts ExecOptions) (*ExecResult, error)

	// ExecInteractive attaches the terminal to a command running in the container
	// and returns once it exits.
	ExecInteractive(ctx context.Context, name string, command []string, opts ExecOptions) error

	// Run executes a helper container to completion and removes it.
	Run(ctx context.Context, opts RunOptions) (*ExecResult, error)

	// List returns all containers carrying the given labels
	List(ctx context.Context, filter Labels) ([]*ContainerInfo, error)

	// CreateVolume creates a volume if it does not exist and reports whether it did.
	CreateVolume(ctx context.Context, name string, labels Labels) (bool, error)

	// RemoveVolume removes a volume. Missing volumes are not an error.
	RemoveVolume(ctx context.Context, name string, force bool) error

	// ListVolumes returns all volumes carrying the given labels
	ListVolumes(ctx context.Context, filter Labels) ([]*VolumeInfo, error)

	// CreateNetwork creates a network if it does not exist and reports whether it did.
	CreateNetwork(ctx context.Context, name string, labels Labels) (bool, error)

	// RemoveNetwork removes a network. Missing networks are not an error.
	RemoveNetwork(ctx context.Context, name string) error

	// ListNetworks returns all networks carrying the given labels
	ListNetworks(ctx context.Context, filter Labels) ([]*NetworkInfo, error)
}
