package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/hutch/internal/app"
	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/spec"
	"github.com/firefly-engineering/hutch/internal/template"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Edit and inspect spec documents",
}

var configEditCmd = &cobra.Command{
	Use:   "edit <path>",
	Short: "Edit a spec document with its secrets decrypted",
	Long: `Open $EDITOR on a copy of a spec document whose secrets are decrypted,
then encrypt every secret again and write the document back.

With --encrypt-only, no editor is started: plaintext values under
secrets are encrypted in place. Values that are already encrypted and
everything outside the secrets block are left byte for byte.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigEdit,
}

var configShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show where a workspace's configuration came from",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigShow,
}

var configTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print a starter spec document",
	Args:  cobra.NoArgs,
	RunE:  runConfigTemplate,
}

var (
	editEncryptOnly bool
	templateFormat  string
)

func init() {
	configEditCmd.Flags().BoolVar(&editEncryptOnly, "encrypt-only", false, "Encrypt plaintext secrets in place without opening an editor")
	configTemplateCmd.Flags().StringVar(&templateFormat, "format", string(spec.FormatYAML), "Document format (yaml or toml)")

	configCmd.AddCommand(configEditCmd, configShowCmd, configTemplateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := spec.FormatFromPath(path)
	if err != nil {
		return errors.ConfigError(err.Error(), nil)
	}

	a := app.Default
	data, err := a.FS.ReadFile(path)
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to read %s", path), err)
	}
	perm := fs.FileMode(0o644)
	if info, err := a.FS.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	ctx := cmd.Context()
	v, err := a.Vault(ctx)
	if err != nil {
		return err
	}

	if !editEncryptOnly {
		plain, _, err := template.DecryptDocument(data, format, v)
		if err != nil {
			return err
		}
		if data, err = editCopy(cmd, a, path, plain); err != nil {
			return err
		}
	}

	out, n, err := template.EncryptDocument(data, format, v)
	if err != nil {
		return err
	}
	if err := a.FS.WriteFile(path, out, perm); err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to write %s", path), err)
	}

	logSuccess("Wrote %s (%d secrets encrypted)", path, n)
	return nil
}

// editCopy writes plain to a private temporary file, runs the editor on it
// and returns the edited bytes. The copy is always removed.
func editCopy(cmd *cobra.Command, a *app.App, path string, plain []byte) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), "hutch-"+uuid.NewString()[:8]+"-"+filepath.Base(path))
	if err := a.FS.WriteFile(tmp, plain, 0o600); err != nil {
		return nil, errors.ConfigError("failed to write temporary copy", err)
	}
	defer func() { _ = a.FS.Remove(tmp) }()

	argv, err := shellquote.Split(a.Editor())
	if err != nil || len(argv) == 0 {
		return nil, errors.ConfigError(fmt.Sprintf("invalid editor command %q", a.Editor()), err)
	}
	if err := a.Terminal.Attach(cmd.Context(), append(argv, tmp)); err != nil {
		return nil, fmt.Errorf("editor failed: %w", err)
	}

	edited, err := a.FS.ReadFile(tmp)
	if err != nil {
		return nil, errors.ConfigError("failed to read edited copy", err)
	}
	return edited, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	o, err := orchestrator()
	if err != nil {
		return err
	}

	s, err := o.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	origin := s.Origin
	if origin == "" {
		origin = "(defaults)"
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Workspace: %s\n", s.Name)
	fmt.Fprintf(w, "Config:    %s\n", origin)
	fmt.Fprintf(w, "State:     %s\n", s.State)
	fmt.Fprintf(w, "Image:     %s\n", s.Image)
	for _, c := range s.Containers {
		fmt.Fprintf(w, "  %-24s %-10s %s\n", c.Name, c.Role, c.Status)
	}
	return nil
}

func runConfigTemplate(cmd *cobra.Command, args []string) error {
	var doc string
	switch spec.Format(templateFormat) {
	case spec.FormatYAML:
		doc = yamlStarter
	case spec.FormatTOML:
		doc = tomlStarter
	default:
		return errors.ConfigError(fmt.Sprintf("unknown format %q: must be yaml or toml", templateFormat), nil)
	}
	fmt.Fprint(cmd.OutOrStdout(), doc)
	return nil
}

const yamlStarter = `# hutch workspace spec
image: docker.io/library/golang:1.24
shell: [bash, -l]
user: dev
work_dir: /work
mount_work: true

caches:
  - ~/go/pkg/mod
  - ~/.cache/go-build

ports:
  - "8080:8080"

# Encrypted with: hutch config edit <this file>
secrets:
  db_password: change-me

# Resolved in order; a var may use secrets and earlier vars.
vars:
  db_user: app
  db_url: "postgres://{{ db_user }}:{{ db_password }}@db:5432/app"

env:
  DATABASE_URL: "{{ db_url }}"

sidecars:
  db:
    image: docker.io/library/postgres:16
    env:
      POSTGRES_USER: "{{ db_user }}"
      POSTGRES_PASSWORD: "{{ db_password }}"
    mounts:
      - /var/lib/postgresql/data
      - mount: /docker-entrypoint-initdb.d
        files:
          init.sql: |
            CREATE EXTENSION IF NOT EXISTS pgcrypto;
`

const tomlStarter = `# hutch workspace spec
image = "docker.io/library/golang:1.24"
shell = ["bash", "-l"]
user = "dev"
work_dir = "/work"
mount_work = true
caches = ["~/go/pkg/mod", "~/.cache/go-build"]
ports = ["8080:8080"]

# Encrypted with: hutch config edit <this file>
[secrets]
db_password = "change-me"

# Resolved in order; a var may use secrets and earlier vars.
[vars]
db_user = "app"
db_url = "postgres://{{ db_user }}:{{ db_password }}@db:5432/app"

[env]
DATABASE_URL = "{{ db_url }}"

[sidecars.db]
image = "docker.io/library/postgres:16"
mounts = [
  "/var/lib/postgresql/data",
  { mount = "/docker-entrypoint-initdb.d", files = { "init.sql" = "CREATE EXTENSION IF NOT EXISTS pgcrypto;\n" } },
]

[sidecars.db.env]
POSTGRES_USER = "{{ db_user }}"
POSTGRES_PASSWORD = "{{ db_password }}"
`
