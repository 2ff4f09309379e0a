package config

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/logging"
	"github.com/firefly-engineering/hutch/internal/naming"
	"github.com/firefly-engineering/hutch/internal/spec"
	"github.com/firefly-engineering/hutch/internal/system"
)

// Fetcher reads a file out of a git repository. The boolean is false when
// the repository has no such file.
type Fetcher interface {
	Fetch(ctx context.Context, url, path string) ([]byte, bool, error)
}

// Overrides are values given on the command line. Empty fields are unset.
type Overrides struct {
	Image  string
	Shell  string
	User   string
	Caches []string
}

// Request describes what to resolve.
type Request struct {
	Name string

	// Git is the repository cloned into the work volume.
	Git string

	// Config is a local path or a URL//path reference. When empty and Git
	// is set, the repository root is searched for a spec document.
	Config string

	Overrides Overrides
}

// Resolver merges CLI overrides, the spec document, the environment and
// built-in defaults into one workspace spec.
type Resolver struct {
	fs       system.FileSystem
	fetcher  Fetcher
	env      Env
	host     *HostConfig
	validate *validator.Validate
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFileSystem sets the filesystem local documents are read from.
func WithFileSystem(fs system.FileSystem) Option {
	return func(r *Resolver) { r.fs = fs }
}

// WithFetcher sets how documents are read from git references.
func WithFetcher(f Fetcher) Option {
	return func(r *Resolver) { r.fetcher = f }
}

// WithEnv sets the environment layer.
func WithEnv(env Env) Option {
	return func(r *Resolver) { r.env = env }
}

// WithHostConfig sets per-user settings.
func WithHostConfig(c *HostConfig) Option {
	return func(r *Resolver) { r.host = c }
}

// NewResolver creates a resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		fs:       system.DefaultFS(),
		host:     &HostConfig{},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// gitURL matches the start of a repository URL: scheme://, user@host: or
// host:path followed later by the // separator.
var gitURL = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9+.-]*://|[\w.-]+@[\w.-]+:|[\w.-]+:[^/].*//)`)

// IsGitRef reports whether a --config value names a file in a repository.
// Local paths may contain a colon; only URL-shaped values are references.
func IsGitRef(ref string) bool {
	return gitURL.MatchString(ref)
}

// ParseGitRef splits "URL//path/in/repo" on the last "//".
func ParseGitRef(ref string) (url, path string, err error) {
	i := strings.LastIndex(ref, "//")
	if i < 0 {
		return "", "", fmt.Errorf("invalid config reference %q: expected URL//path", ref)
	}
	url, path = ref[:i], strings.TrimLeft(ref[i+2:], "/")
	if url == "" || strings.HasSuffix(url, ":") || path == "" {
		return "", "", fmt.Errorf("invalid config reference %q: expected URL//path", ref)
	}
	return url, path, nil
}

// load returns the spec document, its origin and its format. A nil document
// means bare defaults.
func (r *Resolver) load(ctx context.Context, req Request) (*spec.Document, string, error) {
	switch {
	case req.Config != "" && IsGitRef(req.Config):
		url, path, err := ParseGitRef(req.Config)
		if err != nil {
			return nil, "", errors.ConfigError(err.Error(), nil)
		}
		data, ok, err := r.fetch(ctx, url, path)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "", errors.ConfigError(fmt.Sprintf("%s not found in %s", path, url), nil)
		}
		doc, err := decode(data, path)
		return doc, req.Config, err

	case req.Config != "":
		data, err := r.fs.ReadFile(req.Config)
		if err != nil {
			return nil, "", errors.ConfigError(fmt.Sprintf("failed to read %s", req.Config), err)
		}
		doc, err := decode(data, req.Config)
		return doc, req.Config, err

	case req.Git != "":
		for _, name := range RepoDocumentNames {
			data, ok, err := r.fetch(ctx, req.Git, name)
			if err != nil {
				return nil, "", err
			}
			if ok {
				logging.Debug("found spec document in repository", "url", req.Git, "path", name)
				doc, err := decode(data, name)
				return doc, req.Git + "//" + name, err
			}
		}
	}
	return nil, "", nil
}

func (r *Resolver) fetch(ctx context.Context, url, path string) ([]byte, bool, error) {
	if r.fetcher == nil {
		return nil, false, errors.ConfigError("git references are not supported here", nil)
	}
	data, ok, err := r.fetcher.Fetch(ctx, url, path)
	if err != nil {
		return nil, false, errors.ConfigError(fmt.Sprintf("failed to read %s from %s", path, url), err)
	}
	return data, ok, nil
}

func decode(data []byte, path string) (*spec.Document, error) {
	format, err := spec.FormatFromPath(path)
	if err != nil {
		return nil, errors.ConfigError(err.Error(), nil)
	}
	doc, err := spec.Decode(data, format)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to parse %s", path), err)
	}
	return doc, nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitShell(field, s string) ([]string, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s %q", field, s), err)
	}
	return words, nil
}

// Resolve builds the workspace spec for req.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*spec.Workspace, error) {
	if err := naming.ValidateWorkspaceName(req.Name); err != nil {
		return nil, errors.ValidationError(err.Error())
	}

	doc, origin, err := r.load(ctx, req)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &spec.Document{}
	}

	ws := &spec.Workspace{
		Name:    req.Name,
		Image:   first(req.Overrides.Image, doc.Image, r.env.Image, r.host.Image, DefaultImage),
		User:    first(req.Overrides.User, doc.User, r.env.User, DefaultUser),
		WorkDir: first(doc.WorkDir, DefaultWorkDir),
		Env:     doc.Env,
		Vars:    doc.Vars,
		Secrets: doc.Secrets,
		Origin:  origin,
	}

	ws.UID = DefaultUID
	if ws.User == "root" {
		ws.UID = RootUID
	}

	ws.MountWork = true
	if doc.MountWork != nil {
		ws.MountWork = *doc.MountWork
	}

	switch {
	case req.Overrides.Shell != "":
		ws.Shell, err = splitShell("--shell", req.Overrides.Shell)
	case len(doc.Shell) > 0:
		ws.Shell = doc.Shell
	case r.env.Shell != "":
		ws.Shell, err = splitShell(EnvShell, r.env.Shell)
	default:
		ws.Shell = []string{DefaultShell}
	}
	if err != nil {
		return nil, err
	}

	ws.Caches = unionCaches(doc.Caches, r.host.Caches, r.env.Caches, req.Overrides.Caches)

	if ws.Ports, err = parsePorts("ports", doc.Ports); err != nil {
		return nil, err
	}

	if url := first(req.Git, doc.GitSSHURL); url != "" {
		ws.Git = &spec.GitSource{URL: url}
	}

	for _, sd := range doc.Sidecars {
		s, err := sidecar(sd)
		if err != nil {
			return nil, err
		}
		ws.Sidecars = append(ws.Sidecars, s)
	}

	if err := r.check(ws); err != nil {
		return nil, err
	}

	logging.Debug("resolved workspace", "name", ws.Name, "image", ws.Image, "origin", ws.Origin)
	return ws, nil
}

func sidecar(sd spec.SidecarDocument) (spec.Sidecar, error) {
	ports, err := parsePorts("sidecars."+sd.Name+".ports", sd.Ports)
	if err != nil {
		return spec.Sidecar{}, err
	}
	return spec.Sidecar{
		Name:      sd.Name,
		Image:     sd.Image,
		Command:   sd.Command,
		Env:       sd.Env,
		Mounts:    sd.Mounts,
		Ports:     ports,
		WorkDir:   sd.WorkDir,
		MountWork: sd.MountWork,
		User:      sd.User,
	}, nil
}

func parsePorts(field string, values []string) ([]spec.Port, error) {
	var ports []spec.Port
	for _, v := range values {
		p, err := spec.ParsePort(v)
		if err != nil {
			return nil, errors.ConfigError(field, err)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// unionCaches merges cache lists, dropping duplicates by normalized path
// and keeping first-seen order.
func unionCaches(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, c := range list {
			p := naming.NormalizePath(c)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// check validates the merged spec.
func (r *Resolver) check(ws *spec.Workspace) error {
	if ws.Image == "" {
		return errors.ConfigError("no image could be resolved", nil)
	}

	if err := r.validate.Struct(ws); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.ConfigError(fmt.Sprintf("invalid %s: failed %q check", fieldPath(fe.Namespace()), fe.Tag()), nil)
		}
		return errors.ConfigError("invalid workspace", err)
	}

	if ws.Git != nil && !ws.MountWork {
		return errors.ConfigError(fmt.Sprintf("%s is cloned into the work volume, which mount_work: false leaves unmounted", ws.Git.URL), nil)
	}

	seen := make(map[string]bool)
	for _, s := range ws.Sidecars {
		if s.Name == DefaultContainer || seen[s.Name] {
			return errors.ConfigError(fmt.Sprintf("duplicate or reserved sidecar name %q", s.Name), nil)
		}
		seen[s.Name] = true
	}
	return nil
}

// fieldPath turns "Workspace.Sidecars[0].Image" into "sidecars[0].image".
func fieldPath(ns string) string {
	_, rest, found := strings.Cut(ns, ".")
	if !found {
		return strings.ToLower(ns)
	}
	return strings.ToLower(rest)
}
