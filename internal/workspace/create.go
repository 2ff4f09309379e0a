package workspace

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/errgroup"

	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/logging"
	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/spec"
)

// Result describes a created or restarted workspace.
type Result struct {
	Name      string
	Resources naming.ResourceSet
	WorkDir   string

	// Existing is set when the work container was already there and was
	// only started.
	Existing bool
}

// Create provisions ws, or starts it when it already exists.
func (o *Orchestrator) Create(ctx context.Context, ws *spec.Workspace) (*Result, error) {
	rs := naming.Resources(ws)
	result := &Result{Name: ws.Name, Resources: rs, WorkDir: ws.ContainerWorkDir()}
	logStep("creating workspace", ws.Name, "image", ws.Image, "sidecars", len(ws.Sidecars))

	info, err := o.rt.Status(ctx, rs.WorkContainer)
	if err != nil {
		return nil, errors.EngineError("inspect", rs.WorkContainer, err)
	}
	if info.Status != runtime.StatusNotFound {
		if err := ownedBy(info, ws.Name); err != nil {
			return nil, err
		}
		logging.ForWorkspace(ws.Name).Info("workspace exists, starting it")
		if err := o.start(ctx, ws.Name); err != nil {
			return nil, err
		}
		// A previous attempt may have failed after the work container was
		// created; the account script is idempotent.
		if err := o.ensureUser(ctx, ws, rs); err != nil {
			return nil, err
		}
		result.Existing = true
		return result, nil
	}

	steps := []struct {
		name string
		run  func(context.Context, *spec.Workspace, naming.ResourceSet) error
	}{
		{"ensure network", o.ensureNetwork},
		{"ensure volumes", o.ensureVolumes},
		{"clone", o.clone},
		{"start sidecars", o.startSidecars},
		{"start work container", o.startWorkContainer},
		{"ensure user", o.ensureUser},
	}
	for _, step := range steps {
		logStep(step.name, ws.Name)
		if err := step.run(ctx, ws, rs); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (o *Orchestrator) ensureNetwork(ctx context.Context, ws *spec.Workspace, rs naming.ResourceSet) error {
	created, err := o.rt.CreateNetwork(ctx, rs.Network, naming.ForRole(ws.Name, naming.KindNetwork))
	if err != nil {
		return errors.EngineError("create network", rs.Network, err)
	}
	logStep("network ready", ws.Name, "network", rs.Network, "created", created)
	return nil
}

type volumeSpec struct {
	name   string
	labels runtime.Labels
}

func volumesOf(ws *spec.Workspace, rs naming.ResourceSet) []volumeSpec {
	vols := []volumeSpec{
		{rs.Home, naming.ForRole(ws.Name, naming.KindHome)},
		{rs.Work, naming.ForRole(ws.Name, naming.KindWork)},
		{rs.SSHKey, naming.ForRole("", naming.KindSSHKey)},
		{rs.AgeKey, naming.ForRole("", naming.KindAgeKey)},
	}
	for _, c := range rs.Caches {
		vols = append(vols, volumeSpec{c.Volume, naming.ForRole("", naming.KindCache)})
	}
	for _, m := range rs.SidecarMounts {
		labels := naming.ForRole(ws.Name, naming.KindSidecarData)
		labels[naming.LabelContainer] = m.Sidecar
		vols = append(vols, volumeSpec{m.Volume, labels})
	}
	return vols
}

func (o *Orchestrator) ensureVolumes(ctx context.Context, ws *spec.Workspace, rs naming.ResourceSet) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, v := range volumesOf(ws, rs) {
		g.Go(func() error {
			created, err := o.rt.CreateVolume(ctx, v.name, v.labels)
			if err != nil {
				return errors.EngineError("create volume", v.name, err)
			}
			logStep("volume ready", ws.Name, "volume", v.name, "created", created)
			return nil
		})
	}
	return g.Wait()
}

// ensureContainer creates and starts a container, or starts the existing one.
func (o *Orchestrator) ensureContainer(ctx context.Context, workspace string, opts runtime.CreateOptions) error {
	info, err := o.rt.Status(ctx, opts.Name)
	if err != nil {
		return errors.EngineError("inspect", opts.Name, err)
	}

	switch info.Status {
	case runtime.StatusNotFound:
		opts.Start = true
		if err := o.rt.Create(ctx, opts); err != nil {
			return errors.EngineError("create", opts.Name, err)
		}
	case runtime.StatusRunning:
		if err := ownedBy(info, workspace); err != nil {
			return err
		}
	default:
		if err := ownedBy(info, workspace); err != nil {
			return err
		}
		if err := o.rt.Start(ctx, opts.Name); err != nil {
			return errors.EngineError("start", opts.Name, err)
		}
	}
	return nil
}

func portBindings(ports []spec.Port) []runtime.PortBinding {
	var out []runtime.PortBinding
	for _, p := range ports {
		out = append(out, runtime.PortBinding{HostPort: p.Host, ContainerPort: p.Container})
	}
	return out
}

func containerLabels(ws *spec.Workspace, role naming.Kind, container string) runtime.Labels {
	labels := naming.ForRole(ws.Name, role)
	labels[naming.LabelContainer] = container
	if ws.Origin != "" {
		labels[naming.LabelConfigOrigin] = ws.Origin
	}
	if ws.Git != nil {
		labels[naming.LabelGitURL] = ws.Git.URL
	}
	return labels
}

func (o *Orchestrator) startSidecars(ctx context.Context, ws *spec.Workspace, rs naming.ResourceSet) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, sc := range rs.Sidecars {
		s, _ := ws.Sidecar(sc.Sidecar)
		g.Go(func() error {
			return o.startSidecar(ctx, ws, rs, s, sc.Container)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) startSidecar(ctx context.Context, ws *spec.Workspace, rs naming.ResourceSet, s *spec.Sidecar, container string) error {
	var mounts []runtime.Mount
	for _, m := range rs.SidecarMounts {
		if m.Sidecar != s.Name {
			continue
		}
		if m.Mount.Kind == spec.MountFiles {
			if err := o.writeFiles(ctx, m.Volume, m.Mount.Files); err != nil {
				return err
			}
		}
		mounts = append(mounts, runtime.Mount{Type: runtime.MountVolume, Source: m.Volume, Target: m.Path})
	}
	if s.MountWork {
		mounts = append(mounts, runtime.Mount{Type: runtime.MountVolume, Source: rs.Work, Target: ws.WorkDir})
	}

	opts := runtime.CreateOptions{
		Name:           container,
		Image:          s.Image,
		Command:        s.Command,
		Env:            s.Env.Pairs(),
		Labels:         containerLabels(ws, naming.KindSidecar, s.Name),
		Mounts:         mounts,
		Ports:          portBindings(s.Ports),
		WorkingDir:     s.WorkDir,
		User:           s.User,
		Network:        rs.Network,
		NetworkAliases: []string{s.Name},
	}
	if err := o.ensureContainer(ctx, ws.Name, opts); err != nil {
		return err
	}
	logging.ForWorkspace(ws.Name).Info("sidecar started", "sidecar", s.Name)
	return nil
}

// writeFiles materializes literal file contents into a sidecar volume.
func (o *Orchestrator) writeFiles(ctx context.Context, volume string, files spec.Map) error {
	for _, f := range files {
		if err := o.helper.WriteFile(ctx, volume, f.Key, []byte(f.Value), 0o644, ""); err != nil {
			return errors.EngineError("write", volume+"/"+f.Key, err)
		}
	}
	return nil
}

func (o *Orchestrator) workMounts(ws *spec.Workspace, rs naming.ResourceSet) []runtime.Mount {
	home := ws.HomeDir()
	mounts := []runtime.Mount{
		{Type: runtime.MountVolume, Source: rs.Home, Target: home},
	}
	if ws.MountWork {
		mounts = append(mounts, runtime.Mount{Type: runtime.MountVolume, Source: rs.Work, Target: ws.WorkDir})
	}
	for _, c := range rs.Caches {
		mounts = append(mounts, runtime.Mount{Type: runtime.MountVolume, Source: c.Volume, Target: naming.ExpandHome(c.Path, home)})
	}
	return append(mounts,
		runtime.Mount{Type: runtime.MountVolume, Source: rs.SSHKey, Target: path.Join(home, ".ssh"), ReadOnly: true},
		runtime.Mount{Type: runtime.MountVolume, Source: rs.AgeKey, Target: path.Join(home, ".age"), ReadOnly: true},
	)
}

func workEnv(ws *spec.Workspace) []string {
	env := []string{"HOME=" + ws.HomeDir(), "USER=" + ws.User}
	return append(env, ws.Env.Pairs()...)
}

func (o *Orchestrator) startWorkContainer(ctx context.Context, ws *spec.Workspace, rs naming.ResourceSet) error {
	labels := containerLabels(ws, naming.KindContainer, config.DefaultContainer)
	opts := runtime.CreateOptions{
		Name:        rs.WorkContainer,
		Image:       ws.Image,
		Entrypoint:  []string{"cat"},
		Env:         workEnv(ws),
		Labels:      labels,
		Mounts:      o.workMounts(ws, rs),
		Ports:       portBindings(ws.Ports),
		WorkingDir:  ws.ContainerWorkDir(),
		User:        ws.UID,
		Network:     rs.Network,
		TTY:         true,
		Interactive: true,
	}
	if err := o.ensureContainer(ctx, ws.Name, opts); err != nil {
		return err
	}
	logging.ForWorkspace(ws.Name).Info("work container started", "container", rs.WorkContainer)
	return nil
}

// ensureUser makes sure the image has an account for the workspace UID
// and that it owns its home and work directories.
func (o *Orchestrator) ensureUser(ctx context.Context, ws *spec.Workspace, rs naming.ResourceSet) error {
	script := ensureUserScript(ws)
	res, err := o.rt.Exec(ctx, rs.WorkContainer, []string{"sh", "-c", script}, runtime.ExecOptions{User: "0"})
	if err != nil {
		return errors.EngineError("exec", rs.WorkContainer, err)
	}
	if res.ExitCode != 0 {
		return errors.EngineError("ensure user", rs.WorkContainer, fmt.Errorf("exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)))
	}
	return nil
}

func ensureUserScript(ws *spec.Workspace) string {
	home := ws.HomeDir()
	owner := ws.UID + ":" + ws.UID
	var lines []string
	if ws.UID != config.RootUID {
		entry := fmt.Sprintf("%s:x:%s:%s:%s:%s:/bin/sh", ws.User, ws.UID, ws.UID, ws.User, home)
		lines = append(lines,
			fmt.Sprintf("grep -q %s /etc/passwd || { sed -i %s /etc/passwd && echo %s >> /etc/passwd; }",
				shellquote.Join("^"+ws.User+":x:"+ws.UID+":"),
				shellquote.Join("/:x:"+ws.UID+":/d"),
				shellquote.Join(entry)),
		)
	}
	dirs := []string{home}
	if ws.MountWork {
		dirs = append(dirs, ws.WorkDir)
	}
	for _, c := range naming.Resources(ws).Caches {
		dirs = append(dirs, naming.ExpandHome(c.Path, home))
	}
	for _, d := range dirs {
		lines = append(lines,
			"mkdir -p "+shellquote.Join(d),
			"chown "+shellquote.Join(owner, d),
		)
	}
	return strings.Join(lines, "\n")
}
