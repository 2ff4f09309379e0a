// Package runtime provides a unified interface for container engines.
//
// Supported engines:
//   - docker: Docker CLI, local or through DOCKER_HOST
//   - podman: Podman CLI with its Docker-compatible flags
//
// Engine selection is automatic unless configured. Use New to construct
// a runtime, or NewMockRuntime for tests.
//
// # Runtime Interface
//
// The Runtime interface defines the operations hutch needs:
//   - Create, Start, Stop, Destroy: Container lifecycle
//   - IsRunning, Status: Container state queries
//   - Exec, ExecInteractive: Command execution inside containers
//   - Run: Short-lived helper containers removed on exit
//   - List, ListVolumes, ListNetworks: Label-filtered discovery
//   - CreateVolume, CreateNetwork: Create-if-absent, reporting whether created
//   - RemoveVolume, RemoveNetwork: Removal tolerating missing resources
//
// # Mock Runtime
//
// For testing, use NewMockRuntime() to create a mock implementation that can
// be configured with expected responses and used to verify command execution.
package runtime
