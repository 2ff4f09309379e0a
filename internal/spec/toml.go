package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kballard/go-shellquote"
)

type tomlDocument struct {
	Image     string                 `toml:"image"`
	Shell     argv                   `toml:"shell"`
	User      string                 `toml:"user"`
	WorkDir   string                 `toml:"work_dir"`
	MountWork *bool                  `toml:"mount_work"`
	Caches    scalarList             `toml:"caches"`
	Ports     scalarList             `toml:"ports"`
	Env       map[string]string      `toml:"env"`
	Vars      map[string]string      `toml:"vars"`
	Secrets   map[string]string      `toml:"secrets"`
	GitSSHURL string                 `toml:"git_ssh_url"`
	Sidecars  map[string]tomlSidecar `toml:"sidecars"`
}

type tomlSidecar struct {
	Image     string            `toml:"image"`
	Command   argv              `toml:"command"`
	Env       map[string]string `toml:"env"`
	Mounts    []SidecarMount    `toml:"mounts"`
	Ports     scalarList        `toml:"ports"`
	WorkDir   string            `toml:"work_dir"`
	MountWork bool              `toml:"mount_work"`
	User      string            `toml:"user"`
}

func decodeTOML(data []byte) (*Document, error) {
	var raw tomlDocument
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}

	if err := checkUndecoded(md); err != nil {
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
		Env:       ordered(md, raw.Env, "env"),
		Vars:      ordered(md, raw.Vars, "vars"),
		Secrets:   ordered(md, raw.Secrets, "secrets"),
		GitSSHURL: raw.GitSSHURL,
	}

	for _, name := range orderedKeys(md, keysOf(raw.Sidecars), "sidecars") {
		s := raw.Sidecars[name]
		doc.Sidecars = append(doc.Sidecars, SidecarDocument{
			Name:      name,
			Image:     s.Image,
			Command:   s.Command,
			Env:       ordered(md, s.Env, "sidecars", name, "env"),
			Mounts:    s.Mounts,
			Ports:     s.Ports,
			WorkDir:   s.WorkDir,
			MountWork: s.MountWork,
			User:      s.User,
		})
	}

	return doc, nil
}

// customFields are decoded by an Unmarshaler, so their children are never
// reported as decoded by the toml package.
func customField(k toml.Key) bool {
	switch {
	case len(k) >= 1 && (k[0] == "shell" || k[0] == "caches" || k[0] == "ports"):
		return true
	case len(k) >= 3 && k[0] == "sidecars" && (k[2] == "command" || k[2] == "mounts" || k[2] == "ports"):
		return true
	}
	return false
}

func checkUndecoded(md toml.MetaData) error {
	var unknown []string
	for _, k := range md.Undecoded() {
		if !customField(k) {
			unknown = append(unknown, k.String())
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown fields: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// orderedKeys returns the direct children of prefix in document order.
// Keys the metadata does not list are appended sorted.
func orderedKeys(md toml.MetaData, keys []string, prefix ...string) []string {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	out := make([]string, 0, len(keys))
	for _, k := range md.Keys() {
		if len(k) != len(prefix)+1 || !hasPrefix(k, prefix) {
			continue
		}
		name := k[len(prefix)]
		if want[name] {
			out = append(out, name)
			delete(want, name)
		}
	}

	rest := keysOf(want)
	sort.Strings(rest)
	return append(out, rest...)
}

func hasPrefix(k toml.Key, prefix []string) bool {
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

func ordered(md toml.MetaData, m map[string]string, prefix ...string) Map {
	if len(m) == 0 {
		return nil
	}
	out := make(Map, 0, len(m))
	for _, k := range orderedKeys(md, keysOf(m), prefix...) {
		out = append(out, Entry{Key: k, Value: m[k]})
	}
	return out
}

func (l *scalarList) UnmarshalTOML(v interface{}) error {
	items, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("expected an array, got %T", v)
	}
	out := make(scalarList, 0, len(items))
	for _, item := range items {
		switch x := item.(type) {
		case string:
			out = append(out, x)
		case int64:
			out = append(out, fmt.Sprint(x))
		default:
			return fmt.Errorf("expected a string or integer, got %T", item)
		}
	}
	*l = out
	return nil
}

func (a *argv) UnmarshalTOML(v interface{}) error {
	switch x := v.(type) {
	case string:
		words, err := shellquote.Split(x)
		if err != nil {
			return err
		}
		*a = words
		return nil
	case []interface{}:
		out := make(argv, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("command arguments must be strings, got %T", item)
			}
			out = append(out, s)
		}
		*a = out
		return nil
	default:
		return fmt.Errorf("expected a string or an array of strings, got %T", v)
	}
}

// UnmarshalTOML accepts a bare path or {mount = PATH, files = {NAME = CONTENT}}.
func (m *SidecarMount) UnmarshalTOML(v interface{}) error {
	switch x := v.(type) {
	case string:
		if x == "" {
			return fmt.Errorf("mount path cannot be empty")
		}
		*m = SidecarMount{Kind: MountVolume, Path: x}
		return nil

	case map[string]interface{}:
		path, _ := x["mount"].(string)
		if path == "" {
			return fmt.Errorf("mount requires a 'mount' path")
		}
		for k := range x {
			if k != "mount" && k != "files" {
				return fmt.Errorf("unknown mount field %q", k)
			}
		}
		rawFiles, ok := x["files"].(map[string]interface{})
		if !ok {
			return fmt.Errorf("mount %q has no 'files' table; use a bare path for a plain volume", path)
		}

		names := keysOf(rawFiles)
		sort.Strings(names)
		files := make(Map, 0, len(names))
		for _, name := range names {
			content, ok := rawFiles[name].(string)
			if !ok {
				return fmt.Errorf("file %q in mount %q must be a string", name, path)
			}
			files = append(files, Entry{Key: name, Value: content})
		}
		*m = SidecarMount{Kind: MountFiles, Path: path, Files: files}
		return nil

	default:
		return fmt.Errorf("mount must be a path or a {mount, files} table, got %T", v)
	}
}
