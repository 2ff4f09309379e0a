// Package testutil provides test utilities for command and integration tests
package testutil

import (
	"testing"

	"github.com/firefly-engineering/hutch/internal/app"
	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/system"
	"github.com/firefly-engineering/hutch/internal/vault"
)

// TestEnv holds the test environment
type TestEnv struct {
	T          *testing.T
	Paths      *config.Paths
	HostConfig *config.HostConfig
	Runtime    *runtime.MockRuntime
	FS         *system.MockFS
	Terminal   *system.MockTerminal
	Identities *vault.MemoryStore
	App        *app.App
}

// NewTestEnv creates a test environment backed by mocks and installs its
// app as the default until the test ends. opts are applied after the
// mocks, so they can replace any of them.
func NewTestEnv(t *testing.T, opts ...app.Option) *TestEnv {
	t.Helper()

	env := &TestEnv{
		T: t,
		Paths: &config.Paths{
			ConfigDir:      "/cfg",
			HostConfigFile: "/cfg/config.toml",
			StateDir:       "/state",
			RemoteSocket:   "/state/remote.sock",
		},
		HostConfig: &config.HostConfig{},
		Runtime:    runtime.NewMockRuntime(),
		FS:         system.NewMockFS(),
		Terminal:   system.NewMockTerminal(),
		Identities: vault.NewMemoryStore(),
	}

	base := []app.Option{
		app.WithPaths(env.Paths),
		app.WithEnv(config.Env{}),
		app.WithHostConfig(env.HostConfig),
		app.WithFileSystem(env.FS),
		app.WithTerminal(env.Terminal),
		app.WithRuntime(env.Runtime),
		app.WithIdentityStore(env.Identities),
	}
	env.App = app.New(append(base, opts...)...)

	originalDefault := app.Default
	app.SetDefault(env.App)
	t.Cleanup(func() { app.SetDefault(originalDefault) })

	return env
}

// AddSpec writes a spec document fixture into the mock filesystem at path.
func (e *TestEnv) AddSpec(path, fixture string) {
	e.T.Helper()

	data, err := LoadFixture(fixture)
	if err != nil {
		e.T.Fatalf("Failed to load fixture %s: %v", fixture, err)
	}
	e.FS.AddFile(path, data, 0o644)
}
