package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/hutch/internal/app"
	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "hutch",
	Short: "Containerized development workspaces",
	Long: `hutch provisions development workspaces on a Docker-compatible engine.

Each workspace is a long-lived container with:
  - Persistent home and work volumes
  - Shared cache volumes keyed by path
  - Sidecar containers on a private network
  - age-encrypted secrets resolved from a YAML or TOML spec`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose || config.OSEnv().Debug, jsonOutput, os.Stderr)
		if app.Default == nil {
			app.SetDefault(app.New())
		}
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs and listings in JSON format")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
)
