package cmd

import (
	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "Restart the work container of a workspace",
	Long: `Stop and start the work container of a workspace. With --all the
sidecars are restarted too, before the work container comes back up.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestart,
}

var restartAll bool

func init() {
	restartCmd.Flags().BoolVar(&restartAll, "all", false, "Restart the sidecars as well")
	rootCmd.AddCommand(restartCmd)
}

func runRestart(cmd *cobra.Command, args []string) error {
	o, err := orchestrator()
	if err != nil {
		return err
	}

	name := args[0]
	logInfo("Restarting workspace %s...", name)
	if err := o.Restart(cmd.Context(), name, restartAll); err != nil {
		return err
	}
	logSuccess("Restarted workspace %s", name)
	return nil
}
