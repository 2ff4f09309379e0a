package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/hutch/internal/config"
)

var updateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Recreate a workspace from its spec document",
	Long: `Re-read the spec document a workspace was created from and recreate
its containers. The network and volumes are kept, so the checkout and
home directory survive.

With --purge the workspace's own volumes are removed as well. Shared
caches are never touched.`,
	Example: `  hutch update api
  hutch update api --image golang:1.24
  hutch update api --purge`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var (
	updatePurge  bool
	updateImage  string
	updateShell  string
	updateUser   string
	updateCaches []string
)

func init() {
	updateCmd.Flags().BoolVar(&updatePurge, "purge", false, "Also remove the workspace volumes")
	updateCmd.Flags().StringVar(&updateImage, "image", "", "Work container image")
	updateCmd.Flags().StringVar(&updateShell, "shell", "", "Login shell command")
	updateCmd.Flags().StringVar(&updateUser, "user", "", "User name inside the container (root runs as uid 0)")
	updateCmd.Flags().StringArrayVar(&updateCaches, "cache", nil, "Cache path shared across workspaces (repeatable)")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	name := args[0]
	a, err := getApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	o := a.Orchestrator()
	src, err := o.Source(ctx, name)
	if err != nil {
		return err
	}

	// Resolve before anything is torn down so an unreadable origin leaves
	// the workspace as it was.
	ws, err := a.Resolve(ctx, config.Request{
		Name:   name,
		Git:    src.Git,
		Config: src.Origin,
		Overrides: config.Overrides{
			Image:  updateImage,
			Shell:  updateShell,
			User:   updateUser,
			Caches: updateCaches,
		},
	})
	if err != nil {
		return err
	}

	if src.Origin != "" {
		logInfo("Updating workspace %s from %s...", name, src.Origin)
	} else {
		logInfo("Updating workspace %s...", name)
	}
	if _, err := o.Update(ctx, ws, updatePurge); err != nil {
		return err
	}
	logSuccess("Updated workspace %s", name)
	return nil
}
