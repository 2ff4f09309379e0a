package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/spec"
	"github.com/firefly-engineering/hutch/internal/template"
)

func TestWorkflow_CreateStopEnterRemove(t *testing.T) {
	h := NewHarness(t)
	ctx := context.Background()
	o := h.Orchestrator()

	name := h.Name("it-flow")
	ws := h.Workspace(name)
	ws.Caches = []string{"~/.cache/hutch-it"}

	res, err := o.Create(ctx, ws)
	require.NoError(t, err)
	assert.False(t, res.Existing)

	assert.Equal(t, "1000", h.Exec(name, "id", "-u"))
	assert.Equal(t, ws.WorkDir, h.Exec(name, "pwd"))
	h.Exec(name, "touch", ws.WorkDir+"/marker")

	// A second Create only starts what is there.
	require.NoError(t, o.Stop(ctx, name))
	res, err = o.Create(ctx, ws)
	require.NoError(t, err)
	assert.True(t, res.Existing)
	h.Exec(name, "test", "-f", ws.WorkDir+"/marker")

	require.NoError(t, o.Remove(ctx, name, true))
	vols, err := h.Runtime().ListVolumes(ctx, naming.ForWorkspace(name))
	require.NoError(t, err)
	assert.Empty(t, vols)

	rs := naming.Resources(ws)
	shared, err := h.Runtime().ListVolumes(ctx, naming.ForRole("", naming.KindCache))
	require.NoError(t, err)
	var found bool
	for _, v := range shared {
		found = found || v.Name == rs.Caches[0].Volume
	}
	assert.True(t, found, "cache volume should survive removal")
	_ = h.Runtime().RemoveVolume(ctx, rs.Caches[0].Volume, true)
}

func TestWorkflow_SidecarAndSecrets(t *testing.T) {
	h := NewHarness(t)
	ctx := context.Background()

	v, err := h.App().Vault(ctx)
	require.NoError(t, err)
	ct, err := v.Encrypt("secret")
	require.NoError(t, err)

	name := h.Name("it-sidecar")
	ws := h.Workspace(name)
	ws.Secrets = spec.Map{{Key: "pw", Value: ct}}
	ws.Vars = spec.Map{{Key: "user", Value: "admin"}}
	ws.Env = spec.Map{{Key: "CONN", Value: "user={{ user }};pwd={{ pw }}"}}
	ws.Sidecars = []spec.Sidecar{{
		Name:    "side",
		Image:   TestImage,
		Command: []string{"sleep", "3600"},
		Mounts: []spec.SidecarMount{{
			Kind:  spec.MountFiles,
			Path:  "/etc/side",
			Files: spec.Map{{Key: "hello.txt", Value: "hi from {{ user }}"}},
		}},
	}}

	resolved, err := template.New(v).Resolve(ws)
	require.NoError(t, err)

	_, err = h.Orchestrator().Create(ctx, resolved)
	require.NoError(t, err)

	assert.Equal(t, "user=admin;pwd=secret", h.Exec(name, "sh", "-c", "echo $CONN"))
	assert.Equal(t, "hi from admin", h.Exec(name+"-side", "cat", "/etc/side/hello.txt"))

	info, err := h.Runtime().Status(ctx, name+"-side")
	require.NoError(t, err)
	assert.Equal(t, runtime.StatusRunning, info.Status)
}
