// Package integration provides a test harness for integration tests
// that require a real container engine.
//
// Integration tests are skipped unless HUTCH_INTEGRATION_TESTS=1 is set
// and a docker or podman CLI can reach an engine.
package integration

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/firefly-engineering/hutch/internal/app"
	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/spec"
	"github.com/firefly-engineering/hutch/internal/system"
	"github.com/firefly-engineering/hutch/internal/vault"
	"github.com/firefly-engineering/hutch/internal/workspace"
)

// EnvEnable turns integration tests on.
const EnvEnable = "HUTCH_INTEGRATION_TESTS"

// TestImage is small and ships a POSIX shell.
const TestImage = "docker.io/library/alpine:3.20"

// TestHarness provides utilities for integration testing with real containers.
type TestHarness struct {
	t          *testing.T
	rt         runtime.Runtime
	app        *app.App
	workspaces []string
}

// Enabled reports whether integration tests were requested.
func Enabled() bool {
	return os.Getenv(EnvEnable) == "1"
}

// NewHarness creates a new test harness.
// It skips the test when integration tests are disabled or no engine
// answers.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if !Enabled() {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnvEnable)
	}

	rt, err := runtime.New(runtime.DefaultConfig())
	if err != nil {
		t.Skipf("no container runtime available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rt.List(ctx, naming.Managed()); err != nil {
		t.Skipf("container engine not responding: %v", err)
	}

	h := &TestHarness{
		t:  t,
		rt: rt,
		app: app.New(
			app.WithRuntime(rt),
			app.WithEnv(config.Env{}),
			app.WithHostConfig(&config.HostConfig{}),
			app.WithFileSystem(system.NewMockFS()),
			app.WithIdentityStore(vault.NewMemoryStore()),
		),
	}
	t.Cleanup(h.Cleanup)
	return h
}

// Runtime returns the container runtime.
func (h *TestHarness) Runtime() runtime.Runtime {
	return h.rt
}

// App returns the application wired to the real engine.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Orchestrator returns an orchestrator on the real engine.
func (h *TestHarness) Orchestrator() *workspace.Orchestrator {
	return h.app.Orchestrator()
}

// Name returns a unique workspace name and tracks it for cleanup.
func (h *TestHarness) Name(prefix string) string {
	name := prefix + "-" + strings.ToLower(uuid.NewString()[:8])
	h.workspaces = append(h.workspaces, name)
	return name
}

// Workspace returns a minimal resolved workspace on the test image.
func (h *TestHarness) Workspace(name string) *spec.Workspace {
	return &spec.Workspace{
		Name:      name,
		Image:     TestImage,
		Shell:     []string{"sh"},
		User:      config.DefaultUser,
		UID:       config.DefaultUID,
		WorkDir:   config.DefaultWorkDir,
		MountWork: true,
	}
}

// Exec runs a command in a container and fails the test on error.
func (h *TestHarness) Exec(container string, command ...string) string {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := h.rt.Exec(ctx, container, command, runtime.ExecOptions{})
	if err != nil {
		h.t.Fatalf("exec %v in %s: %v", command, container, err)
	}
	if res.ExitCode != 0 {
		h.t.Fatalf("exec %v in %s exited %d: %s", command, container, res.ExitCode, res.Stderr)
	}
	return strings.TrimSpace(res.Stdout)
}

// Cleanup removes every tracked workspace.
func (h *TestHarness) Cleanup() {
	ctx := context.Background()
	o := h.Orchestrator()
	for _, name := range h.workspaces {
		if err := o.Remove(ctx, name, true); err != nil {
			h.t.Logf("cleanup %s: %v", name, err)
		}
	}
}
