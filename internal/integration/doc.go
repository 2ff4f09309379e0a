// Package integration exercises the orchestrator against a real engine.
//
// Tests require a docker or podman CLI that can reach an engine, plus
// network access to pull the test image. They are skipped unless
// HUTCH_INTEGRATION_TESTS=1 is set.
//
// # Test Harness
//
//	func TestMyIntegration(t *testing.T) {
//	    h := integration.NewHarness(t) // Skips if disabled
//
//	    name := h.Name("it")
//	    _, err := h.Orchestrator().Create(ctx, h.Workspace(name))
//	    out := h.Exec(name, "id", "-u")
//
//	    // Tracked workspaces are removed via t.Cleanup
//	}
//
// # Running Integration Tests
//
//	HUTCH_INTEGRATION_TESTS=1 go test -v ./internal/integration/...
package integration
