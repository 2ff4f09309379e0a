package spec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Image     string       `yaml:"image"`
	Shell     argv         `yaml:"shell"`
	User      string       `yaml:"user"`
	WorkDir   string       `yaml:"work_dir"`
	MountWork *bool        `yaml:"mount_work"`
	Caches    scalarList   `yaml:"caches"`
	Ports     scalarList   `yaml:"ports"`
	Env       Map          `yaml:"env"`
	Vars      Map          `yaml:"vars"`
	Secrets   Map          `yaml:"secrets"`
	GitSSHURL string       `yaml:"git_ssh_url"`
	Sidecars  yamlSidecars `yaml:"sidecars"`
}

type yamlSidecar struct {
	Image     string         `yaml:"image"`
	Command   argv           `yaml:"command"`
	Env       Map            `yaml:"env"`
	Mounts    []SidecarMount `yaml:"mounts"`
	Ports     scalarList     `yaml:"ports"`
	WorkDir   string         `yaml:"work_dir"`
	MountWork bool           `yaml:"mount_work"`
	User      string         `yaml:"user"`
}

var sidecarKeys = map[string]bool{
	"image": true, "command": true, "env": true, "mounts": true,
	"ports": true, "work_dir": true, "mount_work": true, "user": true,
}

func decodeYAML(data []byte) (*Document, error) {
	var raw yamlDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	doc := &Document{
		Image:     raw.Image,
		Shell:     raw.Shell,
		User:      raw.User,
		WorkDir:   raw.WorkDir,
		MountWork: raw.MountWork,
		Caches:    raw.Caches,
		Ports:     raw.Ports,
		Env:       raw.Env,
		Vars:      raw.Vars,
		Secrets:   raw.Secrets,
		GitSSHURL: raw.GitSSHURL,
		Sidecars:  raw.Sidecars,
	}
	if err := checkDuplicateSidecars(doc.Sidecars); err != nil {
		return nil, err
	}
	return doc, nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// UnmarshalYAML decodes a mapping of scalars, keeping document order.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if isNull(node) {
		*m = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}

	out := make(Map, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], resolveAlias(node.Content[i+1])
		if key.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
		}
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: value of %q must be a scalar", value.Line, key.Value)
		}
		if seen[key.Value] {
			return fmt.Errorf("line %d: key %q declared twice", key.Line, key.Value)
		}
		seen[key.Value] = true

		v := value.Value
		if isNull(value) {
			v = ""
		}
		out = append(out, Entry{Key: key.Value, Value: v})
	}
	*m = out
	return nil
}

// scalarList is a sequence of scalars read as their literal text, so that
// "8080" and 8080 both decode.
type scalarList []string

func (l *scalarList) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if isNull(node) {
		*l = nil
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a sequence", node.Line)
	}

	out := make(scalarList, 0, len(node.Content))
	for _, item := range node.Content {
		item = resolveAlias(item)
		if item.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: expected a scalar", item.Line)
		}
		out = append(out, item.Value)
	}
	*l = out
	return nil
}

// argv is a command line given either as a shell string or as a sequence.
type argv []string

func (a *argv) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	switch {
	case isNull(node):
		*a = nil
		return nil
	case node.Kind == yaml.ScalarNode:
		words, err := shellquote.Split(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*a = words
		return nil
	default:
		var l scalarList
		if err := l.UnmarshalYAML(node); err != nil {
			return err
		}
		*a = argv(l)
		return nil
	}
}

// UnmarshalYAML accepts a bare path or {mount: PATH, files: {NAME: CONTENT}}.
func (m *SidecarMount) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" || isNull(node) {
			return fmt.Errorf("line %d: mount path cannot be empty", node.Line)
		}
		*m = SidecarMount{Kind: MountVolume, Path: node.Value}
		return nil

	case yaml.MappingNode:
		var path string
		var files Map
		var hasFiles bool
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			switch key.Value {
			case "mount":
				if err := value.Decode(&path); err != nil {
					return err
				}
			case "files":
				if err := files.UnmarshalYAML(value); err != nil {
					return err
				}
				hasFiles = true
			default:
				return fmt.Errorf("line %d: unknown mount field %q", key.Line, key.Value)
			}
		}
		if path == "" {
			return fmt.Errorf("line %d: mount requires a 'mount' path", node.Line)
		}
		if !hasFiles {
			return fmt.Errorf("line %d: mount %q has no 'files'; use a bare path for a plain volume", node.Line, path)
		}
		*m = SidecarMount{Kind: MountFiles, Path: path, Files: files}
		return nil

	default:
		return fmt.Errorf("line %d: mount must be a path or a {mount, files} mapping", node.Line)
	}
}

type yamlSidecars []SidecarDocument

func (s *yamlSidecars) UnmarshalYAML(node *yaml.Node) error {
	node = resolveAlias(node)
	if isNull(node) {
		*s = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: sidecars must be a mapping of name to sidecar", node.Line)
	}

	out := make(yamlSidecars, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, body := node.Content[i], resolveAlias(node.Content[i+1])
		if body.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: sidecar %q must be a mapping", body.Line, name.Value)
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			if k := body.Content[j]; !sidecarKeys[k.Value] {
				return fmt.Errorf("line %d: unknown field %q in sidecar %q", k.Line, k.Value, name.Value)
			}
		}

		var raw yamlSidecar
		if err := body.Decode(&raw); err != nil {
			return fmt.Errorf("sidecar %q: %w", name.Value, err)
		}
		out = append(out, SidecarDocument{
			Name:      name.Value,
			Image:     raw.Image,
			Command:   raw.Command,
			Env:       raw.Env,
			Mounts:    raw.Mounts,
			Ports:     raw.Ports,
			WorkDir:   raw.WorkDir,
			MountWork: raw.MountWork,
			User:      raw.User,
		})
	}
	*s = out
	return nil
}
