package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/firefly-engineering/hutch/internal/logging"
)

// DockerRuntime implements the Runtime interface using Docker or Podman.
type DockerRuntime struct {
	// Command is the container command to use (docker or podman)
	Command string

	// Host overrides DOCKER_HOST for every invocation when set
	Host string
}

// Name returns the runtime identifier
func (r *DockerRuntime) Name() string {
	return r.Command
}

func (r *DockerRuntime) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.Command, args...)
	if r.Host != "" {
		cmd.Env = append(os.Environ(), "DOCKER_HOST="+r.Host)
	}
	return cmd
}

// runCmd executes a docker/podman command
func (r *DockerRuntime) runCmd(ctx context.Context, args ...string) (string, error) {
	cmd := r.command(ctx, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s failed: %s: %w", r.Command, args[0], strings.TrimSpace(stderr.String()), err)
	}

	return stdout.String(), nil
}

func isMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such") || strings.Contains(msg, "not found")
}

func isExisting(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// labelArgs renders labels in a stable order.
func labelArgs(flag string, labels Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		args = append(args, flag, k+"="+labels[k])
	}
	return args
}

func mountArg(m Mount) string {
	typ := m.Type
	if typ == "" {
		typ = MountVolume
	}
	s := fmt.Sprintf("type=%s,source=%s,target=%s", typ, m.Source, m.Target)
	if m.ReadOnly {
		s += ",readonly"
	}
	return s
}

// containerArgs builds the flags shared by create and run. The image and
// command are appended last.
func containerArgs(opts CreateOptions) []string {
	var args []string
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	args = append(args, labelArgs("--label", opts.Labels)...)
	for _, env := range opts.Env {
		args = append(args, "-e", env)
	}
	for _, m := range opts.Mounts {
		args = append(args, "--mount", mountArg(m))
	}
	for _, p := range opts.Ports {
		args = append(args, "-p", fmt.Sprintf("%d:%d", p.HostPort, p.ContainerPort))
	}
	if opts.WorkingDir != "" {
		args = append(args, "-w", opts.WorkingDir)
	}
	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}
	if opts.Network != "" {
		args = append(args, "--network", opts.Network)
		for _, alias := range opts.NetworkAliases {
			args = append(args, "--network-alias", alias)
		}
	}
	if opts.TTY {
		args = append(args, "-t")
	}
	if opts.Interactive {
		args = append(args, "-i")
	}

	command := opts.Command
	if len(opts.Entrypoint) > 0 {
		args = append(args, "--entrypoint", opts.Entrypoint[0])
		command = append(append([]string{}, opts.Entrypoint[1:]...), command...)
	}

	args = append(args, opts.Image)
	return append(args, command...)
}

// Create creates a new container
func (r *DockerRuntime) Create(ctx context.Context, opts CreateOptions) error {
	logging.Debug("creating container", "name", opts.Name, "image", opts.Image, "runtime", r.Command)

	args := append([]string{"create"}, containerArgs(opts)...)
	if _, err := r.runCmd(ctx, args...); err != nil {
		return err
	}

	if opts.Start {
		return r.Start(ctx, opts.Name)
	}
	return nil
}

// Start starts an existing container
func (r *DockerRuntime) Start(ctx context.Context, name string) error {
	logging.Debug("starting container", "container", name)

	_, err := r.runCmd(ctx, "start", name)
	return err
}

// Stop stops a running container
func (r *DockerRuntime) Stop(ctx context.Context, name string) error {
	logging.Debug("stopping container", "container", name)

	_, err := r.runCmd(ctx, "stop", name)
	return err
}

// Destroy stops and removes a container
func (r *DockerRuntime) Destroy(ctx context.Context, name string) error {
	logging.Debug("destroying container", "container", name)

	_, err := r.runCmd(ctx, "rm", "-f", name)
	if isMissing(err) {
		return nil
	}
	return err
}

// IsRunning checks if a container is currently running
func (r *DockerRuntime) IsRunning(ctx context.Context, name string) (bool, error) {
	output, err := r.runCmd(ctx, "inspect", "-f", "{{.State.Running}}", name)
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, err
	}

	return strings.TrimSpace(output) == "true", nil
}

// dockerInspect holds the relevant fields from docker inspect
type dockerInspect struct {
	Name   string `json:"Name"`
	Config struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
	State struct {
		Status    string `json:"Status"`
		Running   bool   `json:"Running"`
		StartedAt string `json:"StartedAt"`
	} `json:"State"`
	NetworkSettings struct {
		IPAddress string `json:"IPAddress"`
		Ports     map[string][]struct {
			HostIP   string `json:"HostIp"`
			HostPort string `json:"HostPort"`
		} `json:"Ports"`
	} `json:"NetworkSettings"`
}

func parseStatus(s string) ContainerStatus {
	switch s {
	case "running":
		return StatusRunning
	case "exited", "stopped", "paused", "dead":
		return StatusStopped
	case "created", "configured", "initialized":
		return StatusCreated
	default:
		return StatusUnknown
	}
}

// toInfo converts inspect output into a ContainerInfo.
func (d dockerInspect) toInfo() *ContainerInfo {
	info := &ContainerInfo{
		Name:      strings.TrimPrefix(d.Name, "/"),
		Image:     d.Config.Image,
		Status:    parseStatus(d.State.Status),
		StartedAt: d.State.StartedAt,
		IPAddress: d.NetworkSettings.IPAddress,
		Labels:    Labels(d.Config.Labels),
	}

	seen := make(map[PortBinding]bool)
	for port, bindings := range d.NetworkSettings.Ports {
		containerPort, err := strconv.Atoi(strings.SplitN(port, "/", 2)[0])
		if err != nil {
			continue
		}
		for _, b := range bindings {
			hostPort, err := strconv.Atoi(b.HostPort)
			if err != nil {
				continue
			}
			pb := PortBinding{HostPort: hostPort, ContainerPort: containerPort}
			if !seen[pb] {
				seen[pb] = true
				info.Ports = append(info.Ports, pb)
			}
		}
	}
	sort.Slice(info.Ports, func(i, j int) bool { return info.Ports[i].HostPort < info.Ports[j].HostPort })

	return info
}

func (r *DockerRuntime) inspect(ctx context.Context, names ...string) ([]dockerInspect, error) {
	output, err := r.runCmd(ctx, append([]string{"container", "inspect"}, names...)...)
	if err != nil {
		return nil, err
	}

	var inspects []dockerInspect
	if err := json.Unmarshal([]byte(output), &inspects); err != nil {
		return nil, fmt.Errorf("failed to parse inspect output: %w", err)
	}
	return inspects, nil
}

// Status returns detailed status of a container
func (r *DockerRuntime) Status(ctx context.Context, name string) (*ContainerInfo, error) {
	inspects, err := r.inspect(ctx, name)
	if err != nil {
		if isMissing(err) {
			return &ContainerInfo{Name: name, Status: StatusNotFound}, nil
		}
		return nil, err
	}
	if len(inspects) == 0 {
		return &ContainerInfo{Name: name, Status: StatusNotFound}, nil
	}

	info := inspects[0].toInfo()
	info.Name = name
	return info, nil
}

// Exec executes a command inside a container
func (r *DockerRuntime) Exec(ctx context.Context, name string, command []string, opts ExecOptions) (*ExecResult, error) {
	args := execArgs(name, command, opts, opts.Stdin != nil, false)

	cmd := r.command(ctx, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	return finish(cmd.Run(), &stdout, &stderr, "exec")
}

func execArgs(name string, command []string, opts ExecOptions, stdin, tty bool) []string {
	args := []string{"exec"}

	switch {
	case stdin && tty:
		args = append(args, "-it")
	case stdin:
		args = append(args, "-i")
	}

	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}

	if opts.WorkingDir != "" {
		args = append(args, "-w", opts.WorkingDir)
	}

	for _, env := range opts.Env {
		args = append(args, "-e", env)
	}

	args = append(args, name)
	return append(args, command...)
}

func finish(err error, stdout, stderr *bytes.Buffer, op string) (*ExecResult, error) {
	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return result, fmt.Errorf("%s failed: %w", op, err)
		}
	}

	return result, nil
}

// ExecInteractive executes a command attached to the current terminal
func (r *DockerRuntime) ExecInteractive(ctx context.Context, name string, command []string, opts ExecOptions) error {
	tty := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	args := execArgs(name, command, opts, true, tty)

	cmd := r.command(ctx, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		// A non-zero exit of the user's shell is not a failure of hutch.
		if _, ok := err.(*exec.ExitError); ok {
			logging.Debug("interactive session exited", "container", name, "error", err)
			return nil
		}
		return fmt.Errorf("%s exec failed: %w", r.Command, err)
	}
	return nil
}

// Run executes a helper container to completion
func (r *DockerRuntime) Run(ctx context.Context, opts RunOptions) (*ExecResult, error) {
	logging.Debug("running helper container", "image", opts.Image, "command", opts.Command)

	create := opts.CreateOptions
	create.Interactive = create.Interactive || opts.Stdin != nil
	args := append([]string{"run", "--rm"}, containerArgs(create)...)

	cmd := r.command(ctx, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	return finish(cmd.Run(), &stdout, &stderr, "run")
}

func filterArgs(filter Labels) []string {
	return labelArgs("--filter", prefixKeys(filter))
}

// prefixKeys turns {k: v} into {label: k=v} for the --filter flag.
func prefixKeys(filter Labels) Labels {
	out := make(Labels, len(filter))
	for k, v := range filter {
		out["label="+k] = v
	}
	return out
}

func splitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// List returns all containers carrying the given labels
func (r *DockerRuntime) List(ctx context.Context, filter Labels) ([]*ContainerInfo, error) {
	args := append([]string{"ps", "-a", "--format", "{{.Names}}"}, filterArgs(filter)...)
	output, err := r.runCmd(ctx, args...)
	if err != nil {
		return nil, err
	}

	names := splitLines(output)
	if len(names) == 0 {
		return nil, nil
	}

	inspects, err := r.inspect(ctx, names...)
	if err != nil {
		return nil, err
	}

	containers := make([]*ContainerInfo, 0, len(inspects))
	for _, i := range inspects {
		containers = append(containers, i.toInfo())
	}
	return containers, nil
}

// CreateVolume creates a volume if it does not exist
func (r *DockerRuntime) CreateVolume(ctx context.Context, name string, labels Labels) (bool, error) {
	if _, err := r.runCmd(ctx, "volume", "inspect", name); err == nil {
		return false, nil
	}

	logging.Debug("creating volume", "name", name)
	args := append([]string{"volume", "create"}, labelArgs("--label", labels)...)
	if _, err := r.runCmd(ctx, append(args, name)...); err != nil {
		if isExisting(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoveVolume removes a volume
func (r *DockerRuntime) RemoveVolume(ctx context.Context, name string, force bool) error {
	logging.Debug("removing volume", "name", name)
	args := []string{"volume", "rm"}
	if force {
		args = append(args, "-f")
	}
	_, err := r.runCmd(ctx, append(args, name)...)
	if isMissing(err) {
		return nil
	}
	return err
}

type namedResource struct {
	Name   string            `json:"Name"`
	Labels map[string]string `json:"Labels"`
}

func (r *DockerRuntime) listNamed(ctx context.Context, kind string, filter Labels) ([]namedResource, error) {
	args := append([]string{kind, "ls", "--format", "{{.Name}}"}, filterArgs(filter)...)
	output, err := r.runCmd(ctx, args...)
	if err != nil {
		return nil, err
	}

	names := splitLines(output)
	if len(names) == 0 {
		return nil, nil
	}

	output, err = r.runCmd(ctx, append([]string{kind, "inspect"}, names...)...)
	if err != nil {
		return nil, err
	}

	var resources []namedResource
	if err := json.Unmarshal([]byte(output), &resources); err != nil {
		return nil, fmt.Errorf("failed to parse %s inspect output: %w", kind, err)
	}
	return resources, nil
}

// ListVolumes returns all volumes carrying the given labels
func (r *DockerRuntime) ListVolumes(ctx context.Context, filter Labels) ([]*VolumeInfo, error) {
	resources, err := r.listNamed(ctx, "volume", filter)
	if err != nil {
		return nil, err
	}

	volumes := make([]*VolumeInfo, 0, len(resources))
	for _, res := range resources {
		volumes = append(volumes, &VolumeInfo{Name: res.Name, Labels: Labels(res.Labels)})
	}
	return volumes, nil
}

// CreateNetwork creates a network if it does not exist
func (r *DockerRuntime) CreateNetwork(ctx context.Context, name string, labels Labels) (bool, error) {
	if _, err := r.runCmd(ctx, "network", "inspect", name); err == nil {
		return false, nil
	}

	logging.Debug("creating network", "name", name)
	args := append([]string{"network", "create"}, labelArgs("--label", labels)...)
	if _, err := r.runCmd(ctx, append(args, name)...); err != nil {
		if isExisting(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoveNetwork removes a network
func (r *DockerRuntime) RemoveNetwork(ctx context.Context, name string) error {
	logging.Debug("removing network", "name", name)
	_, err := r.runCmd(ctx, "network", "rm", name)
	if isMissing(err) {
		return nil
	}
	return err
}

// ListNetworks returns all networks carrying the given labels
func (r *DockerRuntime) ListNetworks(ctx context.Context, filter Labels) ([]*NetworkInfo, error) {
	resources, err := r.listNamed(ctx, "network", filter)
	if err != nil {
		return nil, err
	}

	networks := make([]*NetworkInfo, 0, len(resources))
	for _, res := range resources {
		networks = append(networks, &NetworkInfo{Name: res.Name, Labels: Labels(res.Labels)})
	}
	return networks, nil
}

// Ensure DockerRuntime implements Runtime
var _ Runtime = (*DockerRuntime)(nil)
