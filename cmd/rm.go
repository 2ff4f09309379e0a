package cmd

import (
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:     "rm <name>|--all",
	Aliases: []string{"remove"},
	Short:   "Remove a workspace",
	Long: `Remove a workspace's containers, network and volumes.

Cache and identity volumes are shared and always kept. A running
workspace is only removed with --force.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRm,
}

var (
	rmAll   bool
	rmForce bool
)

func init() {
	rmCmd.Flags().BoolVar(&rmAll, "all", false, "Remove every workspace")
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Remove running workspaces")
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	if err := requireNameOrAll(cmd, args, rmAll); err != nil {
		return err
	}

	o, err := orchestrator()
	if err != nil {
		return err
	}

	if rmAll {
		if err := o.RemoveAll(cmd.Context(), rmForce); err != nil {
			return err
		}
		logSuccess("Removed all workspaces")
		return nil
	}

	name := args[0]
	logInfo("Removing workspace %s...", name)
	if err := o.Remove(cmd.Context(), name, rmForce); err != nil {
		return err
	}
	logSuccess("Removed workspace %s", name)
	return nil
}
