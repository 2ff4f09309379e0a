// Package template expands {{ name }} placeholders in a workspace spec.
//
// Resolution runs in three phases. Secrets are decrypted first. Vars are
// then expanded in declaration order, each one seeing the secrets and the
// vars declared before it. Finally every remaining string field of the work
// container and the sidecars is expanded against the full table. A
// reference that cannot be resolved is always an error; nothing is left as
// literal text.
package template

import (
	"fmt"
	"regexp"

	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/logging"
	"github.com/firefly-engineering/hutch/internal/spec"
)

var (
	// placeholder matches anything between double braces so that malformed
	// names are reported instead of passed through.
	placeholder = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

	nameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)
)

// Decrypter turns a secret ciphertext into plaintext.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Engine resolves placeholders.
type Engine struct {
	decrypter Decrypter
}

// New creates an engine. The decrypter may be nil when the spec carries no
// secrets.
func New(d Decrypter) *Engine {
	return &Engine{decrypter: d}
}

// table is the growing set of resolved names. declared holds every var so a
// forward reference can be told apart from an unknown one.
type table struct {
	values   map[string]string
	declared map[string]bool
}

func (t *table) expand(field, s string) (string, error) {
	var firstErr error
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		if firstErr != nil {
			return m
		}
		name := placeholder.FindStringSubmatch(m)[1]
		if !nameRegex.MatchString(name) {
			firstErr = errors.TemplateError(field, fmt.Sprintf("invalid placeholder %q", m), nil)
			return m
		}
		if v, ok := t.values[name]; ok {
			return v
		}
		if t.declared[name] {
			firstErr = errors.TemplateError(field, fmt.Sprintf("reference to var %q, which is declared after it", name), nil)
		} else {
			firstErr = errors.TemplateError(field, fmt.Sprintf("unresolved reference %q", name), nil)
		}
		return m
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (t *table) expandAll(field string, values []string) error {
	for i, v := range values {
		out, err := t.expand(fmt.Sprintf("%s[%d]", field, i), v)
		if err != nil {
			return err
		}
		values[i] = out
	}
	return nil
}

func (t *table) expandMap(field string, m spec.Map) error {
	for i := range m {
		out, err := t.expand(field+"."+m[i].Key, m[i].Value)
		if err != nil {
			return err
		}
		m[i].Value = out
	}
	return nil
}

// Resolve returns a copy of ws with every placeholder expanded. The input is
// not modified. Secrets stay encrypted in the result; only their plaintext
// values flow into the fields that reference them.
func (e *Engine) Resolve(ws *spec.Workspace) (*spec.Workspace, error) {
	for _, k := range ws.Vars.Keys() {
		if _, ok := ws.Secrets.Get(k); ok {
			return nil, errors.ConfigError(fmt.Sprintf("%q is declared in both vars and secrets", k), nil)
		}
	}

	t := &table{
		values:   make(map[string]string, len(ws.Secrets)+len(ws.Vars)),
		declared: make(map[string]bool, len(ws.Vars)),
	}

	// Phase 1: secrets.
	for _, s := range ws.Secrets {
		if e.decrypter == nil {
			return nil, errors.TemplateError("secrets."+s.Key, "no identity available to decrypt secrets", nil)
		}
		plain, err := e.decrypter.Decrypt(s.Value)
		if err != nil {
			return nil, errors.TemplateError("secrets."+s.Key, "failed to decrypt", err)
		}
		t.values[s.Key] = plain
	}
	if len(ws.Secrets) > 0 {
		logging.Debug("decrypted secrets", "count", len(ws.Secrets))
	}

	out := ws.Clone()

	// Phase 2: vars, in declaration order.
	for _, v := range ws.Vars {
		t.declared[v.Key] = true
	}
	for i, v := range out.Vars {
		resolved, err := t.expand("vars."+v.Key, v.Value)
		if err != nil {
			return nil, err
		}
		out.Vars[i].Value = resolved
		t.values[v.Key] = resolved
	}

	// Phase 3: everything else.
	if err := t.resolveWorkspace(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *table) resolveWorkspace(ws *spec.Workspace) error {
	var err error
	if ws.Image, err = t.expand("image", ws.Image); err != nil {
		return err
	}
	if ws.User, err = t.expand("user", ws.User); err != nil {
		return err
	}
	if ws.WorkDir, err = t.expand("work_dir", ws.WorkDir); err != nil {
		return err
	}
	if err := t.expandAll("shell", ws.Shell); err != nil {
		return err
	}
	if err := t.expandAll("caches", ws.Caches); err != nil {
		return err
	}
	if err := t.expandMap("env", ws.Env); err != nil {
		return err
	}
	if ws.Git != nil {
		if ws.Git.URL, err = t.expand("git_ssh_url", ws.Git.URL); err != nil {
			return err
		}
	}

	for i := range ws.Sidecars {
		if err := t.resolveSidecar(&ws.Sidecars[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) resolveSidecar(s *spec.Sidecar) error {
	prefix := "sidecars." + s.Name
	var err error
	if s.Image, err = t.expand(prefix+".image", s.Image); err != nil {
		return err
	}
	if s.WorkDir, err = t.expand(prefix+".work_dir", s.WorkDir); err != nil {
		return err
	}
	if s.User, err = t.expand(prefix+".user", s.User); err != nil {
		return err
	}
	if err := t.expandAll(prefix+".command", s.Command); err != nil {
		return err
	}
	if err := t.expandMap(prefix+".env", s.Env); err != nil {
		return err
	}
	for i := range s.Mounts {
		m := &s.Mounts[i]
		field := fmt.Sprintf("%s.mounts[%d]", prefix, i)
		if m.Path, err = t.expand(field+".mount", m.Path); err != nil {
			return err
		}
		if err := t.expandMap(field+".files", m.Files); err != nil {
			return err
		}
	}
	return nil
}
