package workspace

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/spec"
)

func testWorkspace(name string) *spec.Workspace {
	return &spec.Workspace{
		Name:      name,
		Image:     "alpine:3",
		Shell:     []string{"bash"},
		User:      "dev",
		UID:       "1000",
		WorkDir:   "/work",
		MountWork: true,
		Env:       spec.Map{{Key: "EDITOR", Value: "vi"}},
		Caches:    []string{"~/.cache/go-build"},
		Ports:     []spec.Port{{Host: 8080, Container: 80}},
		Sidecars: []spec.Sidecar{{
			Name:  "db",
			Image: "postgres:16",
			Env:   spec.Map{{Key: "POSTGRES_PASSWORD", Value: "pw"}},
			Mounts: []spec.SidecarMount{
				{Kind: spec.MountVolume, Path: "/var/lib/postgresql/data"},
				{Kind: spec.MountFiles, Path: "/docker-entrypoint-initdb.d", Files: spec.Map{{Key: "init.sql", Value: "select 1;"}}},
			},
		}},
	}
}

func createCalls(rt *runtime.MockRuntime) []string {
	var names []string
	for _, c := range rt.GetCallsFor("Create") {
		names = append(names, c.Args[0].(runtime.CreateOptions).Name)
	}
	return names
}

func mountTargets(opts runtime.CreateOptions) map[string]runtime.Mount {
	m := make(map[string]runtime.Mount)
	for _, mt := range opts.Mounts {
		m[mt.Target] = mt
	}
	return m
}

func TestCreate_ProvisionsEverything(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	ws := testWorkspace("demo")

	res, err := o.Create(ctx, ws)
	require.NoError(t, err)
	assert.False(t, res.Existing)

	rs := naming.Resources(ws)
	assert.Contains(t, rt.Networks, "hutch_demo")
	for _, v := range []string{rs.Home, rs.Work, rs.SSHKey, rs.AgeKey, rs.Caches[0].Volume, rs.SidecarMounts[0].Volume, rs.SidecarMounts[1].Volume} {
		assert.Contains(t, rt.Volumes, v)
	}
	assert.Equal(t, "cache", rt.Volumes[rs.Caches[0].Volume].Labels[naming.LabelRole])
	assert.Empty(t, rt.Volumes[rs.Caches[0].Volume].Labels[naming.LabelWorkspace])
	assert.Equal(t, "demo", rt.Volumes[rs.Home].Labels[naming.LabelWorkspace])

	// Sidecars start before the work container.
	assert.Equal(t, []string{"demo-db", "demo"}, createCalls(rt))

	db := rt.Created["demo-db"]
	assert.Equal(t, "hutch_demo", db.Network)
	assert.Equal(t, []string{"db"}, db.NetworkAliases)
	assert.Equal(t, []string{"POSTGRES_PASSWORD=pw"}, db.Env)
	assert.Equal(t, "sidecar", db.Labels[naming.LabelRole])

	work := rt.Created["demo"]
	assert.Equal(t, []string{"cat"}, work.Entrypoint)
	assert.True(t, work.TTY)
	assert.True(t, work.Interactive)
	assert.Equal(t, "1000", work.User)
	assert.Equal(t, "/work", work.WorkingDir)
	assert.Equal(t, []runtime.PortBinding{{HostPort: 8080, ContainerPort: 80}}, work.Ports)
	assert.Contains(t, work.Env, "EDITOR=vi")
	assert.Contains(t, work.Env, "HOME=/home/dev")

	mounts := mountTargets(work)
	assert.Equal(t, rs.Home, mounts["/home/dev"].Source)
	assert.Equal(t, rs.Work, mounts["/work"].Source)
	assert.Equal(t, rs.Caches[0].Volume, mounts["/home/dev/.cache/go-build"].Source)
	assert.True(t, mounts["/home/dev/.ssh"].ReadOnly)
	assert.Equal(t, naming.SSHKeyVolume, mounts["/home/dev/.ssh"].Source)
	assert.True(t, mounts["/home/dev/.age"].ReadOnly)
	assert.Equal(t, naming.AgeKeyVolume, mounts["/home/dev/.age"].Source)

	execs := rt.GetCallsFor("Exec")
	require.Len(t, execs, 1)
	assert.Equal(t, "demo", execs[0].Args[0])
	assert.Equal(t, "0", execs[0].Args[2].(runtime.ExecOptions).User)
	script := execs[0].Args[1].([]string)[2]
	assert.Contains(t, script, "/etc/passwd")
	assert.Contains(t, script, "chown 1000:1000 /home/dev")
}

func TestCreate_MaterializesFileMounts(t *testing.T) {
	rt := runtime.NewMockRuntime()
	var writes []string
	rt.RunHandler = func(opts runtime.RunOptions) (*runtime.ExecResult, error) {
		if opts.Stdin != nil {
			writes = append(writes, opts.Mounts[0].Source+":"+opts.Entrypoint[2])
		}
		return &runtime.ExecResult{}, nil
	}

	ws := testWorkspace("demo")
	_, err := New(rt).Create(context.Background(), ws)
	require.NoError(t, err)

	require.Len(t, writes, 1)
	assert.True(t, strings.HasPrefix(writes[0], naming.Resources(ws).SidecarMounts[1].Volume+":"))
	assert.Contains(t, writes[0], "/hutch-vol/init.sql")
}

func TestCreate_Idempotent(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	ws := testWorkspace("demo")

	_, err := o.Create(ctx, ws)
	require.NoError(t, err)
	require.NoError(t, rt.Stop(ctx, "demo"))
	require.NoError(t, rt.Stop(ctx, "demo-db"))
	volumes := rt.VolumeNames()

	res, err := o.Create(ctx, ws)
	require.NoError(t, err)
	assert.True(t, res.Existing)
	assert.Len(t, rt.GetCallsFor("Create"), 2, "nothing is recreated")
	assert.Equal(t, volumes, rt.VolumeNames())
	assert.Equal(t, runtime.StatusRunning, rt.Containers["demo"].Status)
	assert.Equal(t, runtime.StatusRunning, rt.Containers["demo-db"].Status)
}

func TestCreate_ForeignContainer(t *testing.T) {
	rt := runtime.NewMockRuntime()
	rt.AddContainer("demo", runtime.StatusRunning, runtime.Labels{"app": "other"})

	_, err := New(rt).Create(context.Background(), testWorkspace("demo"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConflict))
	assert.Empty(t, rt.GetCallsFor("Create"))
}

func TestCreate_Clone(t *testing.T) {
	rt := runtime.NewMockRuntime()
	var scripts []runtime.RunOptions
	rt.RunHandler = func(opts runtime.RunOptions) (*runtime.ExecResult, error) {
		scripts = append(scripts, opts)
		if strings.HasPrefix(opts.Entrypoint[2], "test -e") {
			return &runtime.ExecResult{ExitCode: 1}, nil
		}
		return &runtime.ExecResult{}, nil
	}

	ws := testWorkspace("demo")
	ws.Sidecars = nil
	ws.Git = &spec.GitSource{URL: "git@github.com:acme/widgets.git"}

	res, err := New(rt).Create(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, "/work/widgets", res.WorkDir)
	assert.Equal(t, "/work/widgets", rt.Created["demo"].WorkingDir)

	require.Len(t, scripts, 2)
	clone := scripts[1]
	assert.Contains(t, clone.Entrypoint[2], "git clone --filter=blob:none git@github.com:acme/widgets.git /work/widgets")
	assert.Contains(t, clone.Env[0], "GIT_SSH_COMMAND=ssh -i /tmp/.ssh/id_ed25519")
	assert.Equal(t, "hutch_demo_work", clone.Mounts[0].Source)
	assert.Equal(t, "/work", clone.Mounts[0].Target)
}

func TestCreate_CloneSkippedWhenPresent(t *testing.T) {
	rt := runtime.NewMockRuntime()
	ws := testWorkspace("demo")
	ws.Sidecars = nil
	ws.Git = &spec.GitSource{URL: "https://example.com/acme/widgets.git"}

	_, err := New(rt).Create(context.Background(), ws)
	require.NoError(t, err)

	runs := rt.GetCallsFor("Run")
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Args[0].(runtime.RunOptions).Entrypoint[2], "widgets/.git")
}

func TestCreate_FailedStepAborts(t *testing.T) {
	rt := runtime.NewMockRuntime()
	rt.SetError("CreateVolume", fmt.Errorf("disk full"))

	_, err := New(rt).Create(context.Background(), testWorkspace("demo"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindEngine))
	assert.Empty(t, rt.GetCallsFor("Create"))
}

func TestCreate_RetryAfterFailedAccountStep(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	ws := testWorkspace("demo")

	rt.SetError("Exec", fmt.Errorf("boom"))
	_, err := o.Create(ctx, ws)
	require.Error(t, err)
	assert.Contains(t, rt.ContainerNames(), "demo", "work container was created before the failure")

	delete(rt.Errors, "Exec")
	before := len(rt.GetCallsFor("Exec"))
	res, err := o.Create(ctx, ws)
	require.NoError(t, err)
	assert.True(t, res.Existing)

	execs := rt.GetCallsFor("Exec")
	require.Len(t, execs, before+1, "the account step runs again on retry")
	retry := execs[len(execs)-1]
	assert.Equal(t, "demo", retry.Args[0])
	assert.Equal(t, "0", retry.Args[2].(runtime.ExecOptions).User)
	assert.Contains(t, retry.Args[1].([]string)[2], "chown 1000:1000 /home/dev")
	assert.Len(t, rt.GetCallsFor("Create"), 2, "nothing is recreated")
}

func TestCreate_DistinctSidecarMountVolumes(t *testing.T) {
	rt := runtime.NewMockRuntime()
	ws := testWorkspace("demo")
	ws.Sidecars[0].Mounts = []spec.SidecarMount{
		{Kind: spec.MountVolume, Path: "/data/x"},
		{Kind: spec.MountFiles, Path: "/data-x", Files: spec.Map{{Key: "seed.sql", Value: "select 1;"}}},
	}

	_, err := New(rt).Create(context.Background(), ws)
	require.NoError(t, err)

	db := rt.Created["demo-db"]
	require.Len(t, db.Mounts, 2)
	assert.NotEqual(t, db.Mounts[0].Source, db.Mounts[1].Source)
	for _, m := range db.Mounts {
		assert.Contains(t, rt.Volumes, m.Source)
	}
}

func TestCreate_SidecarNameClash(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	_, err := o.Create(ctx, testWorkspace("app"))
	require.NoError(t, err)

	// Sidecar db of app already owns the container name app-db.
	_, err = o.Create(ctx, testWorkspace("app-db"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConflict))
	assert.Equal(t, "app", rt.Containers["app-db"].Labels[naming.LabelWorkspace])
}

func TestEnsureUserScript(t *testing.T) {
	ws := testWorkspace("demo")
	script := ensureUserScript(ws)
	assert.Contains(t, script, "grep -q ^dev:x:1000: /etc/passwd")
	assert.Contains(t, script, "dev:x:1000:1000:dev:/home/dev:/bin/sh")
	assert.Contains(t, script, "mkdir -p /work")
	assert.Contains(t, script, "chown 1000:1000 /home/dev/.cache/go-build")

	ws.User = "root"
	ws.UID = "0"
	script = ensureUserScript(ws)
	assert.NotContains(t, script, "/etc/passwd")
	assert.Contains(t, script, "chown 0:0 /root")
}

func TestEnter(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	_, err := o.Create(ctx, testWorkspace("demo"))
	require.NoError(t, err)
	require.NoError(t, rt.Stop(ctx, "demo"))

	require.NoError(t, o.Enter(ctx, "demo", "", []string{"bash"}))
	assert.Equal(t, runtime.StatusRunning, rt.Containers["demo"].Status)

	require.NoError(t, o.Enter(ctx, "demo", "db", nil))
	calls := rt.GetCallsFor("ExecInteractive")
	require.Len(t, calls, 2)
	assert.Equal(t, "demo", calls[0].Args[0])
	assert.Equal(t, []string{"bash"}, calls[0].Args[1])
	assert.Equal(t, "demo-db", calls[1].Args[0])
	assert.Equal(t, []string{"sh"}, calls[1].Args[1])
}

func TestEnter_NotFound(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)

	err := o.Enter(ctx, "ghost", "", nil)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	_, err = o.Create(ctx, testWorkspace("demo"))
	require.NoError(t, err)
	err = o.Enter(ctx, "demo", "redis", nil)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	assert.Len(t, rt.GetCallsFor("Create"), 2)
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	_, err := o.Create(ctx, testWorkspace("demo"))
	require.NoError(t, err)

	require.NoError(t, o.Stop(ctx, "demo"))
	stops := rt.GetCallsFor("Stop")
	require.Len(t, stops, 2)
	assert.Equal(t, "demo", stops[0].Args[0], "work container stops first")

	s, err := o.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, StateStopped, s.State)

	assert.True(t, errors.IsKind(o.Stop(ctx, "ghost"), errors.KindNotFound))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)

	for _, name := range []string{"zeta", "alpha"} {
		ws := testWorkspace(name)
		ws.Origin = "/src/" + name + "/.hutch.yaml"
		_, err := o.Create(ctx, ws)
		require.NoError(t, err)
	}
	require.NoError(t, rt.Stop(ctx, "zeta-db"))

	list, err := o.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, StateRunning, list[0].State)
	assert.Equal(t, "alpine:3", list[0].Image)
	assert.Equal(t, 1, list[0].Sidecars)
	assert.Equal(t, "/src/alpha/.hutch.yaml", list[0].Origin)
	assert.Equal(t, StatePartial, list[1].State)

	_, err = o.Get(ctx, "ghost")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	ws := testWorkspace("demo")
	_, err := o.Create(ctx, ws)
	require.NoError(t, err)
	rs := naming.Resources(ws)

	err = o.Remove(ctx, "demo", false)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConflict))
	assert.Len(t, rt.ContainerNames(), 2)

	require.NoError(t, o.Remove(ctx, "demo", true))
	assert.Empty(t, rt.ContainerNames())
	assert.NotContains(t, rt.Networks, rs.Network)
	assert.ElementsMatch(t, []string{naming.SSHKeyVolume, naming.AgeKeyVolume, rs.Caches[0].Volume}, rt.VolumeNames())

	// Containers go before the network, the network before volumes.
	var order []string
	for _, c := range rt.GetCalls() {
		switch c.Method {
		case "Destroy", "RemoveNetwork", "RemoveVolume":
			if len(order) == 0 || order[len(order)-1] != c.Method {
				order = append(order, c.Method)
			}
		}
	}
	assert.Equal(t, []string{"Destroy", "RemoveNetwork", "RemoveVolume"}, order)

	assert.True(t, errors.IsKind(o.Remove(ctx, "demo", false), errors.KindNotFound))
}

func TestRemoveStopped(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	_, err := o.Create(ctx, testWorkspace("demo"))
	require.NoError(t, err)
	require.NoError(t, o.Stop(ctx, "demo"))

	require.NoError(t, o.Remove(ctx, "demo", false))
	assert.Empty(t, rt.ContainerNames())
}

func TestRemoveAll(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	for _, name := range []string{"a", "b"} {
		_, err := o.Create(ctx, testWorkspace(name))
		require.NoError(t, err)
	}

	require.NoError(t, o.RemoveAll(ctx, true))
	assert.Empty(t, rt.ContainerNames())
	assert.Len(t, rt.VolumeNames(), 3)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	for _, name := range []string{"live", "idle"} {
		_, err := o.Create(ctx, testWorkspace(name))
		require.NoError(t, err)
	}
	require.NoError(t, o.Stop(ctx, "idle"))
	rt.AddVolume("hutch_gone_home", naming.ForRole("gone", naming.KindHome))

	report, err := o.Prune(ctx, false, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"idle", "idle-db"}, report.Containers)
	assert.Equal(t, []string{"hutch_idle"}, report.Networks)
	assert.Equal(t, []string{"hutch_gone_home"}, report.Volumes)

	assert.ElementsMatch(t, []string{"live", "live-db"}, rt.ContainerNames())
	assert.Contains(t, rt.Volumes, "hutch_live_home")
	assert.Contains(t, rt.Volumes, naming.SSHKeyVolume)
}

func TestPrune_RunningNeedsForce(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	_, err := o.Create(ctx, testWorkspace("live"))
	require.NoError(t, err)
	volumes := rt.VolumeNames()

	_, err = o.Prune(ctx, true, false)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConflict))
	assert.ElementsMatch(t, []string{"live", "live-db"}, rt.ContainerNames())
	assert.Equal(t, volumes, rt.VolumeNames())
	assert.Empty(t, rt.GetCallsFor("Destroy"))

	require.NoError(t, o.Stop(ctx, "live"))
	report, err := o.Prune(ctx, true, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"live", "live-db"}, report.Containers)
	assert.Empty(t, rt.ContainerNames())
}

func TestPruneAll(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	_, err := o.Create(ctx, testWorkspace("live"))
	require.NoError(t, err)
	rt.AddVolume("unrelated", runtime.Labels{})

	_, err = o.Prune(ctx, true, true)
	require.NoError(t, err)
	assert.Empty(t, rt.ContainerNames())
	assert.Empty(t, rt.Networks)
	assert.Equal(t, []string{"unrelated"}, rt.VolumeNames())
}

func TestRestart(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	_, err := o.Create(ctx, testWorkspace("demo"))
	require.NoError(t, err)

	require.NoError(t, o.Restart(ctx, "demo", false))
	stops := rt.GetCallsFor("Stop")
	require.Len(t, stops, 1)
	assert.Equal(t, "demo", stops[0].Args[0])
	starts := rt.GetCallsFor("Start")
	require.Len(t, starts, 1)
	assert.Equal(t, "demo", starts[0].Args[0])

	require.NoError(t, o.Restart(ctx, "demo", true))
	starts = rt.GetCallsFor("Start")
	require.Len(t, starts, 3)
	assert.Equal(t, "demo-db", starts[1].Args[0], "sidecars start first")
	assert.Equal(t, "demo", starts[2].Args[0])
	assert.Equal(t, runtime.StatusRunning, rt.Containers["demo"].Status)
	assert.Equal(t, runtime.StatusRunning, rt.Containers["demo-db"].Status)

	assert.True(t, errors.IsKind(o.Restart(ctx, "ghost", false), errors.KindNotFound))
}

func TestSource(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	ws := testWorkspace("demo")
	ws.Sidecars = nil
	ws.Origin = "/src/demo/.hutch.yaml"
	ws.Git = &spec.GitSource{URL: "https://example.com/acme/demo.git"}
	_, err := o.Create(ctx, ws)
	require.NoError(t, err)

	src, err := o.Source(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "/src/demo/.hutch.yaml", src.Origin)
	assert.Equal(t, "https://example.com/acme/demo.git", src.Git)

	_, err = o.Source(ctx, "ghost")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	ws := testWorkspace("demo")
	_, err := o.Create(ctx, ws)
	require.NoError(t, err)
	rs := naming.Resources(ws)

	next := testWorkspace("demo")
	next.Image = "alpine:3.20"
	res, err := o.Update(ctx, next, false)
	require.NoError(t, err)
	assert.False(t, res.Existing)

	assert.Equal(t, "alpine:3.20", rt.Created["demo"].Image)
	assert.Len(t, rt.GetCallsFor("Destroy"), 2)
	assert.Empty(t, rt.GetCallsFor("RemoveVolume"), "volumes are kept")
	assert.Contains(t, rt.Volumes, rs.Home)
	assert.ElementsMatch(t, []string{"demo", "demo-db"}, rt.ContainerNames())

	_, err = o.Update(ctx, testWorkspace("ghost"), false)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestUpdate_Purge(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	ws := testWorkspace("demo")
	_, err := o.Create(ctx, ws)
	require.NoError(t, err)

	_, err = o.Update(ctx, testWorkspace("demo"), true)
	require.NoError(t, err)

	removed := make(map[string]bool)
	for _, c := range rt.GetCallsFor("RemoveVolume") {
		removed[c.Args[0].(string)] = true
	}
	rs := naming.Resources(ws)
	assert.True(t, removed[rs.Home])
	assert.False(t, removed[rs.Caches[0].Volume])
	assert.Contains(t, rt.Volumes, rs.Home, "recreated")
	assert.ElementsMatch(t, []string{"demo", "demo-db"}, rt.ContainerNames())
}

func TestTmp(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	o := New(rt)
	ws := &spec.Workspace{Image: "alpine:3", Shell: []string{"sh"}, User: "root", UID: "0", WorkDir: "/work"}

	require.NoError(t, o.Tmp(ctx, ws))
	assert.True(t, strings.HasPrefix(ws.Name, "tmp-"))
	assert.Len(t, ws.Name, len("tmp-")+8)

	assert.Empty(t, rt.Created, "container is removed on return")
	calls := rt.GetCallsFor("Create")
	require.Len(t, calls, 1)
	opts := calls[0].Args[0].(runtime.CreateOptions)
	assert.Equal(t, "true", opts.Labels[naming.LabelEphemeral])
	assert.Len(t, opts.Mounts, 2)
	assert.ElementsMatch(t, []string{naming.SSHKeyVolume, naming.AgeKeyVolume}, rt.VolumeNames())
}

func TestTmp_RemovesOnAttachFailure(t *testing.T) {
	rt := runtime.NewMockRuntime()
	rt.SetError("ExecInteractive", fmt.Errorf("tty lost"))
	ws := &spec.Workspace{Image: "alpine:3", Shell: []string{"sh"}, User: "dev", UID: "1000", WorkDir: "/work"}

	err := New(rt).Tmp(context.Background(), ws)
	require.Error(t, err)
	assert.Empty(t, rt.ContainerNames())
	assert.Len(t, rt.GetCallsFor("Destroy"), 1)
}

func TestCloneScript(t *testing.T) {
	script := cloneScript("git@host:a/b.git", "/work/b", "1000:1000")
	assert.Equal(t, strings.Join([]string{
		"set -e",
		"test -d /work/b/.git && exit 0",
		"mkdir -p /work",
		"git clone --filter=blob:none git@host:a/b.git /work/b",
		"chown -R 1000:1000 /work/b",
	}, "\n"), script)
}

func TestFetcher(t *testing.T) {
	ctx := context.Background()
	rt := runtime.NewMockRuntime()
	rt.RunHandler = func(opts runtime.RunOptions) (*runtime.ExecResult, error) {
		script := opts.Entrypoint[2]
		switch {
		case strings.Contains(script, "missing.yaml"):
			return &runtime.ExecResult{ExitCode: exitMissing}, nil
		case strings.Contains(script, "broken"):
			return &runtime.ExecResult{ExitCode: 2, Stderr: "repository not found"}, nil
		}
		return &runtime.ExecResult{Stdout: "image: alpine\n"}, nil
	}
	f := NewFetcher(rt, "helper:latest")

	data, ok, err := f.Fetch(ctx, "git@host:a/b.git", "hutch/dev.yaml")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "image: alpine\n", string(data))

	_, ok, err = f.Fetch(ctx, "git@host:a/b.git", "missing.yaml")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = f.Fetch(ctx, "git@host:a/broken.git", "x.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository not found")

	run := rt.GetCallsFor("Run")[0].Args[0].(runtime.RunOptions)
	assert.Equal(t, "helper:latest", run.Image)
	assert.Contains(t, run.Entrypoint[2], "/tmp/hutch-src/hutch/dev.yaml")
}
