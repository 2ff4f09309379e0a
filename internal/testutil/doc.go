// Package testutil provides test fixtures and utilities.
//
// # Fixtures
//
// Fixtures are embedded using go:embed:
//
//	fixtures/workspace.yaml
//	fixtures/workspace.toml
//	fixtures/host_config.toml
//	fixtures/invalid_host_config.toml
//
// The two workspace documents describe the same workspace, one per format.
//
// # Test Environment
//
// NewTestEnv builds an app on a mock runtime, filesystem, terminal and
// identity store and makes it the default for the duration of a test:
//
//	env := testutil.NewTestEnv(t)
//	env.AddSpec("/src/api/.hutch.yaml", "workspace.yaml")
//	ws, err := env.App.Resolve(ctx, config.Request{Name: "api", Config: "/src/api/.hutch.yaml"})
package testutil
