package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/naming"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a workspace",
	Long: `Create a workspace from a spec document and command-line overrides.

Values are merged in this order, highest first:
  command-line flags, the spec document, HUTCH_* environment variables,
  the host config file, built-in defaults.

With --git and no --config, the repository root is searched for
.hutch.yaml or .hutch.toml.`,
	Example: `  hutch new api --git git@github.com:acme/api.git
  hutch new api --config ./hutch.yaml --enter
  hutch new scratch --image golang:1.24 --cache ~/go/pkg/mod`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

var (
	newGit    string
	newConfig string
	newImage  string
	newShell  string
	newUser   string
	newCaches []string
	newEnter  bool
)

func init() {
	newCmd.Flags().StringVar(&newGit, "git", "", "Repository cloned into the work volume")
	newCmd.Flags().StringVarP(&newConfig, "config", "c", "", "Spec document path, or URL//path inside a repository")
	newCmd.Flags().StringVar(&newImage, "image", "", "Work container image")
	newCmd.Flags().StringVar(&newShell, "shell", "", "Login shell command")
	newCmd.Flags().StringVar(&newUser, "user", "", "User name inside the container (root runs as uid 0)")
	newCmd.Flags().StringArrayVar(&newCaches, "cache", nil, "Cache path shared across workspaces (repeatable)")
	newCmd.Flags().BoolVarP(&newEnter, "enter", "e", false, "Enter the workspace once created")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := naming.ValidateWorkspaceName(name); err != nil {
		return errors.ConfigError("invalid workspace name", err)
	}

	a, err := getApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ws, err := a.Resolve(ctx, config.Request{
		Name:   name,
		Git:    newGit,
		Config: newConfig,
		Overrides: config.Overrides{
			Image:  newImage,
			Shell:  newShell,
			User:   newUser,
			Caches: newCaches,
		},
	})
	if err != nil {
		return err
	}

	logInfo("Creating workspace %s (image %s)...", name, ws.Image)
	o := a.Orchestrator()
	result, err := o.Create(ctx, ws)
	if err != nil {
		return err
	}

	if result.Existing {
		logInfo("Workspace %s already exists, started it", name)
	} else {
		logSuccess("Created workspace %s", name)
	}

	if !newEnter {
		logInfo("Enter it with: hutch enter %s", name)
		return nil
	}
	if !interactive() {
		logWarning("Not attached to a terminal, the shell may not behave interactively")
	}
	return o.Enter(ctx, name, config.DefaultContainer, ws.Shell)
}
