package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/workspace"
)

var tmpCmd = &cobra.Command{
	Use:   "tmp",
	Short: "Run a throwaway workspace",
	Long: `Start an ephemeral work container with a random name and attach to it.

Only the SSH and age identity volumes are mounted. The container is
removed when the shell exits, even if attaching fails.`,
	Args: cobra.NoArgs,
	RunE: runTmp,
}

var (
	tmpImage string
	tmpShell string
)

func init() {
	tmpCmd.Flags().StringVar(&tmpImage, "image", "", "Container image")
	tmpCmd.Flags().StringVar(&tmpShell, "shell", "", "Shell command")
	rootCmd.AddCommand(tmpCmd)
}

func runTmp(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ws, err := a.Resolve(ctx, config.Request{
		Name: workspace.TmpName(),
		Overrides: config.Overrides{
			Image: tmpImage,
			Shell: tmpShell,
		},
	})
	if err != nil {
		return err
	}

	logInfo("Starting temporary workspace %s (image %s)...", ws.Name, ws.Image)
	return a.Orchestrator().Tmp(ctx, ws)
}
