package spec

import (
	"fmt"
	"strconv"
	"strings"
)

// Entry is one key/value pair of an ordered map.
type Entry struct {
	Key   string
	Value string
}

// Map is an ordered string map. Declaration order is preserved, which the
// var resolver relies on.
type Map []Entry

// Get returns the value for key.
func (m Map) Get(key string) (string, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Set replaces the value for key in place, or appends a new entry.
func (m *Map) Set(key, value string) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, Entry{Key: key, Value: value})
}

// Keys returns keys in declaration order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// Pairs renders the map as KEY=VALUE strings in order.
func (m Map) Pairs() []string {
	pairs := make([]string, len(m))
	for i, e := range m {
		pairs[i] = e.Key + "=" + e.Value
	}
	return pairs
}

// Clone returns a copy of the map.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	return append(Map(nil), m...)
}

// MountKind tags a sidecar mount variant.
type MountKind int

const (
	// MountVolume is an auto-named volume mounted at Path.
	MountVolume MountKind = iota
	// MountFiles is a volume at Path populated with literal file contents.
	MountFiles
)

func (k MountKind) String() string {
	switch k {
	case MountVolume:
		return "volume"
	case MountFiles:
		return "files"
	default:
		return fmt.Sprintf("MountKind(%d)", int(k))
	}
}

// SidecarMount is either a bare volume path or a path with inline files.
type SidecarMount struct {
	Kind  MountKind
	Path  string `validate:"required"`
	Files Map
}

// Port publishes ContainerPort as HostPort on the engine host.
type Port struct {
	Host      int `validate:"min=1,max=65535"`
	Container int `validate:"min=1,max=65535"`
}

func (p Port) String() string {
	return fmt.Sprintf("%d:%d", p.Host, p.Container)
}

// ParsePort parses "host:container" or a single "port" used on both sides.
func ParsePort(s string) (Port, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 2 {
		return Port{}, fmt.Errorf("invalid port mapping %q: expected host:container", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return Port{}, fmt.Errorf("invalid port %q in mapping %q", p, s)
		}
		nums[i] = n
	}

	if len(nums) == 1 {
		return Port{Host: nums[0], Container: nums[0]}, nil
	}
	return Port{Host: nums[0], Container: nums[1]}, nil
}

// GitSource is the repository cloned into the work volume.
type GitSource struct {
	URL string `validate:"required"`
}

// RepoName returns the directory name a clone of the URL ends up in.
func (g GitSource) RepoName() string {
	u := strings.TrimRight(g.URL, "/")
	if i := strings.LastIndexAny(u, "/:"); i >= 0 {
		u = u[i+1:]
	}
	return strings.TrimSuffix(u, ".git")
}

// Sidecar is an auxiliary container on the workspace network.
type Sidecar struct {
	Name      string `validate:"required,hostname_rfc1123"`
	Image     string `validate:"required"`
	Command   []string
	Env       Map
	Mounts    []SidecarMount `validate:"dive"`
	Ports     []Port         `validate:"dive"`
	WorkDir   string
	MountWork bool
	User      string
}

// Workspace is the canonical, fully merged workspace specification.
type Workspace struct {
	Name      string   `validate:"required"`
	Image     string   `validate:"required"`
	Shell     []string `validate:"min=1"`
	User      string   `validate:"required"`
	UID       string   `validate:"required,numeric"`
	WorkDir   string   `validate:"required,startswith=/"`
	MountWork bool
	Env       Map
	Vars      Map
	Secrets   Map
	Caches    []string
	Ports     []Port    `validate:"dive"`
	Sidecars  []Sidecar `validate:"dive"`
	Git       *GitSource

	// Origin is where the spec document came from, empty for bare defaults.
	Origin string
}

// HomeDir returns the home directory of the runtime account.
func (w *Workspace) HomeDir() string {
	if w.User == "root" {
		return "/root"
	}
	return "/home/" + w.User
}

// ContainerWorkDir is the initial directory of the work container.
func (w *Workspace) ContainerWorkDir() string {
	if w.Git != nil {
		if name := w.Git.RepoName(); name != "" {
			return strings.TrimRight(w.WorkDir, "/") + "/" + name
		}
	}
	return w.WorkDir
}

// Sidecar returns the sidecar with the given name.
func (w *Workspace) Sidecar(name string) (*Sidecar, bool) {
	for i := range w.Sidecars {
		if w.Sidecars[i].Name == name {
			return &w.Sidecars[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy suitable for in-place template expansion.
func (w *Workspace) Clone() *Workspace {
	c := *w
	c.Shell = append([]string(nil), w.Shell...)
	c.Env = w.Env.Clone()
	c.Vars = w.Vars.Clone()
	c.Secrets = w.Secrets.Clone()
	c.Caches = append([]string(nil), w.Caches...)
	c.Ports = append([]Port(nil), w.Ports...)
	if w.Git != nil {
		g := *w.Git
		c.Git = &g
	}
	if w.Sidecars == nil {
		return &c
	}
	c.Sidecars = make([]Sidecar, len(w.Sidecars))
	for i, s := range w.Sidecars {
		s.Command = append([]string(nil), s.Command...)
		s.Env = s.Env.Clone()
		s.Ports = append([]Port(nil), s.Ports...)
		if s.Mounts != nil {
			mounts := make([]SidecarMount, len(s.Mounts))
			for j, m := range s.Mounts {
				m.Files = m.Files.Clone()
				mounts[j] = m
			}
			s.Mounts = mounts
		}
		c.Sidecars[i] = s
	}
	return &c
}
