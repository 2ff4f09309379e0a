package workspace

import (
	"context"
	"fmt"
	"sort"

	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/logging"
	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/runtime"
)

// DefaultConcurrency bounds parallel engine calls.
const DefaultConcurrency = 4

// State is the observed state of a workspace.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StatePartial State = "partial"
	StateAbsent  State = "absent"
)

// Orchestrator drives workspace lifecycles through a Runtime.
type Orchestrator struct {
	rt          runtime.Runtime
	helper      *runtime.Helper
	concurrency int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHelperImage sets the image of clone and file helper containers.
func WithHelperImage(image string) Option {
	return func(o *Orchestrator) { o.helper = runtime.NewHelper(o.rt, image) }
}

// WithConcurrency bounds parallel volume and sidecar operations.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// New creates an orchestrator.
func New(rt runtime.Runtime, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rt:          rt,
		helper:      runtime.NewHelper(rt, config.HelperImage),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Summary describes one workspace for listing.
type Summary struct {
	Name       string         `json:"name"`
	State      State          `json:"state"`
	Image      string         `json:"image"`
	Sidecars   int            `json:"sidecars"`
	Origin     string         `json:"origin,omitempty"`
	Ephemeral  bool           `json:"ephemeral,omitempty"`
	Containers []ContainerRef `json:"containers"`
}

// ContainerRef is one container of a workspace.
type ContainerRef struct {
	Name   string                  `json:"name"`
	Role   string                  `json:"role"`
	Status runtime.ContainerStatus `json:"status"`
	Ports  []runtime.PortBinding   `json:"ports,omitempty"`
}

// containers returns the labeled containers of one workspace, or of all
// workspaces when name is empty.
func (o *Orchestrator) containers(ctx context.Context, name string) ([]*runtime.ContainerInfo, error) {
	filter := naming.Managed()
	if name != "" {
		filter = naming.ForWorkspace(name)
	}
	list, err := o.rt.List(ctx, filter)
	if err != nil {
		return nil, errors.EngineError("list", name, err)
	}
	return list, nil
}

func stateOf(cs []*runtime.ContainerInfo) State {
	if len(cs) == 0 {
		return StateAbsent
	}
	running := 0
	for _, c := range cs {
		if c.Status == runtime.StatusRunning {
			running++
		}
	}
	switch running {
	case 0:
		return StateStopped
	case len(cs):
		return StateRunning
	default:
		return StatePartial
	}
}

// List summarizes every managed workspace, sorted by name.
func (o *Orchestrator) List(ctx context.Context) ([]Summary, error) {
	all, err := o.containers(ctx, "")
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*runtime.ContainerInfo)
	for _, c := range all {
		ws := c.Labels[naming.LabelWorkspace]
		if ws == "" {
			continue
		}
		groups[ws] = append(groups[ws], c)
	}

	summaries := make([]Summary, 0, len(groups))
	for name, cs := range groups {
		summaries = append(summaries, summarize(name, cs))
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// Get summarizes one workspace.
func (o *Orchestrator) Get(ctx context.Context, name string) (*Summary, error) {
	cs, err := o.containers(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, errors.NotFound("workspace", name)
	}
	s := summarize(name, cs)
	return &s, nil
}

func summarize(name string, cs []*runtime.ContainerInfo) Summary {
	s := Summary{Name: name, State: stateOf(cs)}
	for _, c := range cs {
		role := c.Labels[naming.LabelRole]
		switch role {
		case string(naming.KindContainer):
			s.Image = c.Image
			s.Origin = c.Labels[naming.LabelConfigOrigin]
			s.Ephemeral = c.Labels[naming.LabelEphemeral] == "true"
		case string(naming.KindSidecar):
			s.Sidecars++
		}
		s.Containers = append(s.Containers, ContainerRef{
			Name:   c.Name,
			Role:   role,
			Status: c.Status,
			Ports:  c.Ports,
		})
	}
	sort.Slice(s.Containers, func(i, j int) bool { return s.Containers[i].Name < s.Containers[j].Name })
	return s
}

// ownedBy checks that an existing container belongs to the workspace.
func ownedBy(info *runtime.ContainerInfo, workspace string) error {
	if info.Labels[naming.LabelManaged] != "true" || info.Labels[naming.LabelWorkspace] != workspace {
		return errors.Conflict("container", info.Name, fmt.Sprintf("exists but does not belong to workspace %s", workspace))
	}
	return nil
}

func logStep(step, workspace string, args ...any) {
	logging.ForWorkspace(workspace).Debug(step, args...)
}
