package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/tui"
	"github.com/firefly-engineering/hutch/internal/workspace"
)

var enterCmd = &cobra.Command{
	Use:   "enter [name]",
	Short: "Open a shell in a workspace",
	Long: `Open an interactive shell in a workspace container, starting the
workspace first when it is stopped.

Without a name, an interactive picker lists every workspace.`,
	Example: `  hutch enter api
  hutch enter api --container db --shell "psql -U postgres"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnter,
}

var (
	enterContainer string
	enterShell     string
)

// Seams for tests.
var (
	runPicker   = tui.RunPicker
	interactive = isInteractive
)

func init() {
	enterCmd.Flags().StringVar(&enterContainer, "container", config.DefaultContainer, "Container to enter (work or a sidecar name)")
	enterCmd.Flags().StringVar(&enterShell, "shell", "", "Shell command (default $HUTCH_SHELL or sh)")
	rootCmd.AddCommand(enterCmd)
}

func runEnter(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	o := a.Orchestrator()
	ctx := cmd.Context()

	shell, err := shellFor(enterShell, a.Env)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return o.Enter(ctx, args[0], enterContainer, shell)
	}

	summaries, err := o.List(ctx)
	if err != nil {
		return err
	}

	if !interactive() {
		fmt.Fprint(cmd.OutOrStdout(), tui.SimplePicker(summaries))
		return nil
	}

	result, err := runPicker(summaries)
	if err != nil {
		return fmt.Errorf("picker failed: %w", err)
	}
	return handlePick(cmd, o, result, shell)
}

func handlePick(cmd *cobra.Command, o *workspace.Orchestrator, result tui.PickerResult, shell []string) error {
	ctx := cmd.Context()
	switch result.Action {
	case tui.ActionEnter:
		return o.Enter(ctx, result.Workspace, enterContainer, shell)
	case tui.ActionStop:
		if err := o.Stop(ctx, result.Workspace); err != nil {
			return err
		}
		logSuccess("Stopped workspace %s", result.Workspace)
	case tui.ActionRemove:
		if err := o.Remove(ctx, result.Workspace, true); err != nil {
			return err
		}
		logSuccess("Removed workspace %s", result.Workspace)
	}
	return nil
}
