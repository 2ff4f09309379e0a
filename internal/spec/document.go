package spec

import (
	"fmt"
	"path"
	"strings"
)

// Format is a supported spec document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(p string) (Format, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case "":
		return "", fmt.Errorf("cannot infer format of %q: only .yaml, .yml and .toml are supported", p)
	default:
		return "", fmt.Errorf("unsupported spec format %q: only .yaml, .yml and .toml are supported", path.Ext(p))
	}
}

// Document is the decoded, still-templated spec document. Both formats
// decode into this shape.
type Document struct {
	Image     string
	Shell     []string
	User      string
	WorkDir   string
	MountWork *bool
	Caches    []string
	Ports     []string
	Env       Map
	Vars      Map
	Secrets   Map
	GitSSHURL string
	Sidecars  []SidecarDocument
}

// SidecarDocument is a sidecar as written in a spec document.
type SidecarDocument struct {
	Name      string
	Image     string
	Command   []string
	Env       Map
	Mounts    []SidecarMount
	Ports     []string
	WorkDir   string
	MountWork bool
	User      string
}

// Decode parses a spec document in the given format.
func Decode(data []byte, format Format) (*Document, error) {
	switch format {
	case FormatYAML:
		return decodeYAML(data)
	case FormatTOML:
		return decodeTOML(data)
	default:
		return nil, fmt.Errorf("unsupported spec format %q", format)
	}
}

func checkDuplicateSidecars(sidecars []SidecarDocument) error {
	seen := make(map[string]bool, len(sidecars))
	for _, s := range sidecars {
		if seen[s.Name] {
			return fmt.Errorf("sidecar %q declared twice", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
