package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Manage identities and engine resources",
}

var systemInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the age identity and SSH keypair",
	Long: `Generate the age identity used for secrets and the SSH keypair mounted
into every workspace. Both are stored in shared engine volumes.

Regenerating with --force makes every existing secret undecryptable.`,
	Args: cobra.NoArgs,
	RunE: runSystemInit,
}

var systemPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stopped workspaces and orphaned volumes",
	Long: `Remove the containers and networks of stopped workspaces, plus volumes
whose workspace no longer has any container.

With --all, every labeled container, network and volume is removed,
including the cache and identity volumes.`,
	Args: cobra.NoArgs,
	RunE: runSystemPrune,
}

var (
	initForce    bool
	initIdentity string
	pruneAll     bool
	pruneForce   bool
)

func init() {
	systemInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Regenerate existing identities")
	systemInitCmd.Flags().StringVar(&initIdentity, "identity", "", "Import an existing age identity file")
	systemPruneCmd.Flags().BoolVar(&pruneAll, "all", false, "Remove every labeled resource, including caches and identities")
	systemPruneCmd.Flags().BoolVarP(&pruneForce, "force", "f", false, "Remove running containers too")

	systemCmd.AddCommand(systemInitCmd, systemPruneCmd)
	rootCmd.AddCommand(systemCmd)
}

func runSystemInit(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}

	m, err := a.Identity().Init(cmd.Context(), initForce, initIdentity)
	if err != nil {
		return err
	}

	logSuccess("Identities initialized")
	fmt.Fprintf(cmd.OutOrStdout(), "ssh public key: %s", m.SSHPublicKey)
	return nil
}

func runSystemPrune(cmd *cobra.Command, args []string) error {
	o, err := orchestrator()
	if err != nil {
		return err
	}

	report, err := o.Prune(cmd.Context(), pruneAll, pruneForce)
	if err != nil {
		return err
	}

	if len(report.Containers)+len(report.Networks)+len(report.Volumes) == 0 {
		logInfo("Nothing to prune")
		return nil
	}
	logSuccess("Removed %d containers, %d networks, %d volumes",
		len(report.Containers), len(report.Networks), len(report.Volumes))
	return nil
}
