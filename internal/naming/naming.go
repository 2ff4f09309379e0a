// Package naming derives every engine resource name from the workspace name
// and the resource's role. Nothing is stored: a later invocation finds the
// same resources by recomputing the same names.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/firefly-engineering/hutch/internal/spec"
)

// Kind is the role a resource plays in a workspace.
type Kind string

const (
	KindHome        Kind = "home"
	KindWork        Kind = "work"
	KindCache       Kind = "cache"
	KindSidecarData Kind = "data"
	KindSSHKey      Kind = "ssh-key"
	KindAgeKey      Kind = "age-key"
	KindNetwork     Kind = "network"
	KindContainer   Kind = "work-container"
	KindSidecar     Kind = "sidecar"
)

const (
	// Prefix starts every workspace-scoped volume and network name.
	Prefix = "hutch"

	// SSHKeyVolume holds the global SSH keypair.
	SSHKeyVolume = "hutch-ssh-key-vol"

	// AgeKeyVolume holds the global age identity.
	AgeKeyVolume = "hutch-age-key-vol"
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

	// workspaceNameRegex validates workspace names.
	// Names must start with a lowercase letter or digit, followed by lowercase
	// letters, digits, underscores, or hyphens, at most 63 characters.
	workspaceNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)
)

// ValidateWorkspaceName checks if a workspace name is valid.
func ValidateWorkspaceName(name string) error {
	if name == "" {
		return fmt.Errorf("workspace name cannot be empty")
	}

	if !workspaceNameRegex.MatchString(name) {
		return fmt.Errorf("invalid workspace name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, underscores, or hyphens, and be at most 63 characters", name)
	}

	return nil
}

// SafeID replaces characters not allowed in engine names with '-' and
// lowercases the result.
func SafeID(s string) string {
	return strings.ToLower(unsafeChars.ReplaceAllString(s, "-"))
}

// NormalizePath cleans a container path so that equivalent spellings of the
// same path map to one cache volume. A leading ~ is kept as is.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		rest := path.Clean("/" + strings.TrimPrefix(p, "~"))
		if rest == "/" {
			return "~"
		}
		return "~" + rest
	}
	return path.Clean(p)
}

// ExpandHome replaces a leading ~ with home.
func ExpandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return strings.TrimRight(home, "/") + p[1:]
	}
	return p
}

func pathID(p string) string {
	return strings.Trim(SafeID(p), "-")
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// Name returns the engine name of a resource. The discriminant is the cache
// path for KindCache, "<sidecar>:<path>" for KindSidecarData, the sidecar
// name for KindSidecar, and ignored otherwise.
//
// Sidecar containers share the namespace of work containers: sidecar db of
// workspace app and the work container of workspace app-db are both named
// app-db. Labels tell them apart, and creating the second one fails with a
// conflict instead of adopting the first.
func Name(workspace string, kind Kind, discriminant string) string {
	switch kind {
	case KindHome, KindWork:
		return fmt.Sprintf("%s_%s_%s", Prefix, workspace, kind)
	case KindCache:
		p := NormalizePath(discriminant)
		return fmt.Sprintf("%s_cache_%s_%s", Prefix, pathID(p), shortHash(p))
	case KindSidecarData:
		sidecar, p, _ := strings.Cut(discriminant, ":")
		p = NormalizePath(p)
		return fmt.Sprintf("%s_%s_%s_%s_%s_data", Prefix, workspace, SafeID(sidecar), pathID(p), shortHash(p))
	case KindSSHKey:
		return SSHKeyVolume
	case KindAgeKey:
		return AgeKeyVolume
	case KindNetwork:
		return fmt.Sprintf("%s_%s", Prefix, workspace)
	case KindContainer:
		return workspace
	case KindSidecar:
		return fmt.Sprintf("%s-%s", workspace, discriminant)
	default:
		return fmt.Sprintf("%s_%s_%s", Prefix, workspace, SafeID(string(kind)))
	}
}

// CacheVolume is a shared cache keyed by its normalized path.
type CacheVolume struct {
	Path   string
	Volume string
}

// SidecarVolume is a volume mounted into one sidecar.
type SidecarVolume struct {
	Sidecar string
	Path    string
	Volume  string
	Mount   spec.SidecarMount
}

// SidecarContainer pairs a sidecar with its container name.
type SidecarContainer struct {
	Sidecar   string
	Container string
}

// ResourceSet lists every engine resource a workspace uses.
type ResourceSet struct {
	Workspace     string
	Network       string
	Home          string
	Work          string
	SSHKey        string
	AgeKey        string
	Caches        []CacheVolume
	SidecarMounts []SidecarVolume
	WorkContainer string
	Sidecars      []SidecarContainer
}

// Resources computes the ResourceSet of a workspace.
func Resources(ws *spec.Workspace) ResourceSet {
	rs := ResourceSet{
		Workspace:     ws.Name,
		Network:       Name(ws.Name, KindNetwork, ""),
		Home:          Name(ws.Name, KindHome, ""),
		Work:          Name(ws.Name, KindWork, ""),
		SSHKey:        SSHKeyVolume,
		AgeKey:        AgeKeyVolume,
		WorkContainer: Name(ws.Name, KindContainer, ""),
	}

	seen := make(map[string]bool)
	for _, c := range ws.Caches {
		p := NormalizePath(c)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		rs.Caches = append(rs.Caches, CacheVolume{Path: p, Volume: Name(ws.Name, KindCache, p)})
	}

	for _, s := range ws.Sidecars {
		rs.Sidecars = append(rs.Sidecars, SidecarContainer{
			Sidecar:   s.Name,
			Container: Name(ws.Name, KindSidecar, s.Name),
		})
		for _, m := range s.Mounts {
			rs.SidecarMounts = append(rs.SidecarMounts, SidecarVolume{
				Sidecar: s.Name,
				Path:    m.Path,
				Volume:  Name(ws.Name, KindSidecarData, s.Name+":"+m.Path),
				Mount:   m,
			})
		}
	}

	return rs
}

// WorkspaceVolumes returns the volumes owned exclusively by the workspace.
func (rs ResourceSet) WorkspaceVolumes() []string {
	vols := []string{rs.Home, rs.Work}
	for _, m := range rs.SidecarMounts {
		vols = append(vols, m.Volume)
	}
	return vols
}

// Containers returns all container names, sidecars first.
func (rs ResourceSet) Containers() []string {
	names := make([]string, 0, len(rs.Sidecars)+1)
	for _, s := range rs.Sidecars {
		names = append(names, s.Container)
	}
	return append(names, rs.WorkContainer)
}
