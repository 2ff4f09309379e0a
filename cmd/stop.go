package cmd

import (
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop <name>|--all",
	Short: "Stop a workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStop,
}

var stopAll bool

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "Stop every workspace")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	if err := requireNameOrAll(cmd, args, stopAll); err != nil {
		return err
	}

	o, err := orchestrator()
	if err != nil {
		return err
	}

	if stopAll {
		if err := o.StopAll(cmd.Context()); err != nil {
			return err
		}
		logSuccess("Stopped all workspaces")
		return nil
	}

	name := args[0]
	logInfo("Stopping workspace %s...", name)
	if err := o.Stop(cmd.Context(), name); err != nil {
		return err
	}
	logSuccess("Stopped workspace %s", name)
	return nil
}
