package workspace

import (
	"context"

	"github.com/google/uuid"

	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/logging"
	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/spec"
)

// ContainerName maps a container selector to its engine name. An empty
// selector or "work" means the work container, anything else a sidecar.
func ContainerName(workspace, container string) string {
	if container == "" || container == config.DefaultContainer {
		return naming.Name(workspace, naming.KindContainer, "")
	}
	return naming.Name(workspace, naming.KindSidecar, container)
}

// start starts every stopped container of a workspace, sidecars before the
// work container.
func (o *Orchestrator) start(ctx context.Context, name string) error {
	cs, err := o.containers(ctx, name)
	if err != nil {
		return err
	}

	var work *runtime.ContainerInfo
	for _, c := range cs {
		if c.Labels[naming.LabelRole] == string(naming.KindContainer) {
			work = c
			continue
		}
		if err := o.startOne(ctx, c); err != nil {
			return err
		}
	}
	if work != nil {
		return o.startOne(ctx, work)
	}
	return nil
}

func (o *Orchestrator) startOne(ctx context.Context, c *runtime.ContainerInfo) error {
	if c.Status == runtime.StatusRunning {
		return nil
	}
	logStep("starting container", c.Labels[naming.LabelWorkspace], "container", c.Name)
	if err := o.rt.Start(ctx, c.Name); err != nil {
		return errors.EngineError("start", c.Name, err)
	}
	return nil
}

// Enter attaches the terminal to shell inside one container of a
// workspace. A stopped workspace is started first; nothing is recreated.
func (o *Orchestrator) Enter(ctx context.Context, name, container string, shell []string) error {
	cs, err := o.containers(ctx, name)
	if err != nil {
		return err
	}
	if len(cs) == 0 {
		return errors.NotFound("workspace", name)
	}

	target := ContainerName(name, container)
	found := false
	for _, c := range cs {
		if c.Name == target {
			found = true
			break
		}
	}
	if !found {
		return errors.NotFound("container", target)
	}

	if err := o.start(ctx, name); err != nil {
		return err
	}

	if len(shell) == 0 {
		shell = []string{config.DefaultShell}
	}
	logging.Debug("entering container", "workspace", name, "container", target, "shell", shell)
	if err := o.rt.ExecInteractive(ctx, target, shell, runtime.ExecOptions{Interactive: true}); err != nil {
		return errors.EngineError("exec", target, err)
	}
	return nil
}

// Stop stops every container of a workspace, the work container first.
func (o *Orchestrator) Stop(ctx context.Context, name string) error {
	cs, err := o.containers(ctx, name)
	if err != nil {
		return err
	}
	if len(cs) == 0 {
		return errors.NotFound("workspace", name)
	}
	return o.stopContainers(ctx, cs)
}

func (o *Orchestrator) stopContainers(ctx context.Context, cs []*runtime.ContainerInfo) error {
	ordered := workFirst(cs)
	for _, c := range ordered {
		if c.Status != runtime.StatusRunning {
			continue
		}
		logStep("stopping container", c.Labels[naming.LabelWorkspace], "container", c.Name)
		if err := o.rt.Stop(ctx, c.Name); err != nil {
			return errors.EngineError("stop", c.Name, err)
		}
	}
	return nil
}

// StopAll stops every managed workspace.
func (o *Orchestrator) StopAll(ctx context.Context) error {
	cs, err := o.containers(ctx, "")
	if err != nil {
		return err
	}
	return o.stopContainers(ctx, cs)
}

func workFirst(cs []*runtime.ContainerInfo) []*runtime.ContainerInfo {
	out := make([]*runtime.ContainerInfo, 0, len(cs))
	for _, c := range cs {
		if c.Labels[naming.LabelRole] == string(naming.KindContainer) {
			out = append(out, c)
		}
	}
	for _, c := range cs {
		if c.Labels[naming.LabelRole] != string(naming.KindContainer) {
			out = append(out, c)
		}
	}
	return out
}

// isShared reports whether a volume outlives individual workspaces.
func isShared(v *runtime.VolumeInfo) bool {
	switch naming.Kind(v.Labels[naming.LabelRole]) {
	case naming.KindCache, naming.KindSSHKey, naming.KindAgeKey:
		return true
	}
	return v.Labels[naming.LabelWorkspace] == ""
}

// Remove tears down a workspace: containers, then the network, then the
// volumes it owns. Shared cache and identity volumes are kept.
func (o *Orchestrator) Remove(ctx context.Context, name string, force bool) error {
	cs, err := o.containers(ctx, name)
	if err != nil {
		return err
	}
	vols, err := o.rt.ListVolumes(ctx, naming.ForWorkspace(name))
	if err != nil {
		return errors.EngineError("list volumes", name, err)
	}
	nets, err := o.rt.ListNetworks(ctx, naming.ForWorkspace(name))
	if err != nil {
		return errors.EngineError("list networks", name, err)
	}
	if len(cs) == 0 && len(vols) == 0 && len(nets) == 0 {
		return errors.NotFound("workspace", name)
	}

	if !force {
		for _, c := range cs {
			if c.Status == runtime.StatusRunning {
				return errors.Conflict("workspace", name, "is running, stop it first or use --force")
			}
		}
	}

	logging.ForWorkspace(name).Info("removing workspace")
	if err := o.destroy(ctx, cs); err != nil {
		return err
	}
	for _, n := range nets {
		if err := o.removeNetwork(ctx, n.Name); err != nil {
			return err
		}
	}
	for _, v := range vols {
		if isShared(v) {
			continue
		}
		if err := o.removeVolume(ctx, v.Name, force); err != nil {
			return err
		}
	}
	return nil
}

// RemoveAll removes every managed workspace.
func (o *Orchestrator) RemoveAll(ctx context.Context, force bool) error {
	summaries, err := o.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		if err := o.Remove(ctx, s.Name, force); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) destroy(ctx context.Context, cs []*runtime.ContainerInfo) error {
	for _, c := range workFirst(cs) {
		logStep("destroying container", c.Labels[naming.LabelWorkspace], "container", c.Name)
		if err := o.rt.Destroy(ctx, c.Name); err != nil {
			return errors.EngineError("remove", c.Name, err)
		}
	}
	return nil
}

func (o *Orchestrator) removeNetwork(ctx context.Context, name string) error {
	logging.Debug("removing network", "network", name)
	if err := o.rt.RemoveNetwork(ctx, name); err != nil {
		return errors.EngineError("remove network", name, err)
	}
	return nil
}

func (o *Orchestrator) removeVolume(ctx context.Context, name string, force bool) error {
	logging.Debug("removing volume", "volume", name)
	if err := o.rt.RemoveVolume(ctx, name, force); err != nil {
		return errors.EngineError("remove volume", name, err)
	}
	return nil
}

// PruneReport lists what Prune removed.
type PruneReport struct {
	Containers []string
	Networks   []string
	Volumes    []string
}

// Prune removes stopped workspaces and orphaned workspace volumes. With
// all set it removes every labeled resource, identity and caches included.
// Without force nothing is removed while a selected workspace still has a
// running container.
func (o *Orchestrator) Prune(ctx context.Context, all, force bool) (*PruneReport, error) {
	report := &PruneReport{}

	cs, err := o.containers(ctx, "")
	if err != nil {
		return nil, err
	}
	nets, err := o.rt.ListNetworks(ctx, naming.Managed())
	if err != nil {
		return nil, errors.EngineError("list networks", "", err)
	}
	vols, err := o.rt.ListVolumes(ctx, naming.Managed())
	if err != nil {
		return nil, errors.EngineError("list volumes", "", err)
	}

	groups := make(map[string][]*runtime.ContainerInfo)
	for _, c := range cs {
		ws := c.Labels[naming.LabelWorkspace]
		groups[ws] = append(groups[ws], c)
	}

	// A workspace is pruned when it is stopped, or always with all set.
	pruned := make(map[string]bool)
	for ws, group := range groups {
		if all || stateOf(group) == StateStopped {
			pruned[ws] = true
		}
	}
	if !force {
		for ws := range pruned {
			if stateOf(groups[ws]) != StateStopped {
				return report, errors.Conflict("workspace", ws, "is running, stop it first or use --force")
			}
		}
	}
	for ws, group := range groups {
		if !pruned[ws] {
			continue
		}
		if err := o.destroy(ctx, group); err != nil {
			return report, err
		}
		for _, c := range group {
			report.Containers = append(report.Containers, c.Name)
		}
	}

	for _, n := range nets {
		ws := n.Labels[naming.LabelWorkspace]
		if !all && !pruned[ws] && len(groups[ws]) > 0 {
			continue
		}
		if err := o.removeNetwork(ctx, n.Name); err != nil {
			return report, err
		}
		report.Networks = append(report.Networks, n.Name)
	}

	for _, v := range vols {
		if !all {
			// Orphaned means the owning workspace had no containers left.
			if isShared(v) || len(groups[v.Labels[naming.LabelWorkspace]]) > 0 {
				continue
			}
		}
		if err := o.removeVolume(ctx, v.Name, force); err != nil {
			return report, err
		}
		report.Volumes = append(report.Volumes, v.Name)
	}

	return report, nil
}

// Restart stops and starts the work container of a workspace, or every
// container of it when all is set. Sidecars start before the work container.
func (o *Orchestrator) Restart(ctx context.Context, name string, all bool) error {
	cs, err := o.containers(ctx, name)
	if err != nil {
		return err
	}
	if len(cs) == 0 {
		return errors.NotFound("workspace", name)
	}

	targets := cs
	if !all {
		targets = nil
		for _, c := range cs {
			if c.Labels[naming.LabelRole] == string(naming.KindContainer) {
				targets = append(targets, c)
			}
		}
		if len(targets) == 0 {
			return errors.NotFound("container", ContainerName(name, ""))
		}
	}

	if err := o.stopContainers(ctx, targets); err != nil {
		return err
	}
	ordered := workFirst(targets)
	for i := len(ordered) - 1; i >= 0; i-- {
		c := ordered[i]
		logStep("starting container", name, "container", c.Name)
		if err := o.rt.Start(ctx, c.Name); err != nil {
			return errors.EngineError("start", c.Name, err)
		}
	}
	return nil
}

// Source is what a workspace was created from, read back from the labels of
// its work container.
type Source struct {
	// Origin is the spec document path or URL//path, empty for defaults.
	Origin string
	// Git is the repository cloned into the work volume.
	Git string
}

// Source returns the recorded origin of a workspace.
func (o *Orchestrator) Source(ctx context.Context, name string) (*Source, error) {
	work := ContainerName(name, "")
	info, err := o.rt.Status(ctx, work)
	if err != nil {
		return nil, errors.EngineError("inspect", work, err)
	}
	if info.Status == runtime.StatusNotFound {
		return nil, errors.NotFound("workspace", name)
	}
	if err := ownedBy(info, name); err != nil {
		return nil, err
	}
	return &Source{
		Origin: info.Labels[naming.LabelConfigOrigin],
		Git:    info.Labels[naming.LabelGitURL],
	}, nil
}

// Update recreates the containers of an existing workspace from ws. The
// network and volumes are kept, so the checkout and home survive. With purge
// the workspace is removed entirely first, its own volumes included.
func (o *Orchestrator) Update(ctx context.Context, ws *spec.Workspace, purge bool) (*Result, error) {
	if _, err := o.Source(ctx, ws.Name); err != nil {
		return nil, err
	}

	if purge {
		logging.ForWorkspace(ws.Name).Info("purging workspace")
		if err := o.Remove(ctx, ws.Name, true); err != nil {
			return nil, err
		}
	} else {
		cs, err := o.containers(ctx, ws.Name)
		if err != nil {
			return nil, err
		}
		logging.ForWorkspace(ws.Name).Info("replacing containers", "count", len(cs))
		if err := o.destroy(ctx, cs); err != nil {
			return nil, err
		}
	}
	return o.Create(ctx, ws)
}

// TmpName returns a fresh name for an ephemeral workspace.
func TmpName() string {
	return "tmp-" + uuid.NewString()[:8]
}

// Tmp runs a throwaway work container with only the identity volumes
// attached, attaches to it and removes it on return.
func (o *Orchestrator) Tmp(ctx context.Context, ws *spec.Workspace) (err error) {
	if ws.Name == "" {
		ws.Name = TmpName()
	}
	rs := naming.Resources(ws)
	home := ws.HomeDir()

	for _, v := range []volumeSpec{
		{rs.SSHKey, naming.ForRole("", naming.KindSSHKey)},
		{rs.AgeKey, naming.ForRole("", naming.KindAgeKey)},
	} {
		if _, err := o.rt.CreateVolume(ctx, v.name, v.labels); err != nil {
			return errors.EngineError("create volume", v.name, err)
		}
	}

	labels := containerLabels(ws, naming.KindContainer, config.DefaultContainer)
	labels[naming.LabelEphemeral] = "true"
	opts := runtime.CreateOptions{
		Name:       rs.WorkContainer,
		Image:      ws.Image,
		Entrypoint: []string{"cat"},
		Env:        workEnv(ws),
		Labels:     labels,
		Mounts: []runtime.Mount{
			{Type: runtime.MountVolume, Source: rs.SSHKey, Target: home + "/.ssh", ReadOnly: true},
			{Type: runtime.MountVolume, Source: rs.AgeKey, Target: home + "/.age", ReadOnly: true},
		},
		WorkingDir:  home,
		User:        ws.UID,
		TTY:         true,
		Interactive: true,
		Start:       true,
	}

	logging.Info("starting temporary container", "name", ws.Name, "image", ws.Image)
	if err := o.rt.Create(ctx, opts); err != nil {
		return errors.EngineError("create", rs.WorkContainer, err)
	}
	defer func() {
		if derr := o.rt.Destroy(context.WithoutCancel(ctx), rs.WorkContainer); derr != nil {
			logging.Warn("failed to remove temporary container", "name", rs.WorkContainer, "error", derr)
			if err == nil {
				err = errors.EngineError("remove", rs.WorkContainer, derr)
			}
		}
	}()

	tmp := *ws
	tmp.MountWork = false
	tmp.Caches = nil
	if err := o.ensureUser(ctx, &tmp, rs); err != nil {
		return err
	}

	if err := o.rt.ExecInteractive(ctx, rs.WorkContainer, ws.Shell, runtime.ExecOptions{Interactive: true}); err != nil {
		return errors.EngineError("exec", rs.WorkContainer, err)
	}
	return nil
}
