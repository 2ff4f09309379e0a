package cmd

import (
	"os"

	"github.com/kballard/go-shellquote"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/hutch/internal/app"
	"github.com/firefly-engineering/hutch/internal/config"
	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/workspace"
)

// getApp returns the application context, failing when no container
// engine could be found.
func getApp() (*app.App, error) {
	a := app.Default
	if a == nil {
		a = app.New()
		app.SetDefault(a)
	}
	if a.Runtime == nil {
		return nil, errors.New(errors.ExitEngineError, "no docker or podman CLI found in PATH")
	}
	return a, nil
}

// orchestrator returns the workspace orchestrator of the default app.
func orchestrator() (*workspace.Orchestrator, error) {
	a, err := getApp()
	if err != nil {
		return nil, err
	}
	return a.Orchestrator(), nil
}

// parseShell splits a --shell value. Empty means unset.
func parseShell(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	argv, err := shellquote.Split(s)
	if err != nil {
		return nil, errors.ConfigError("invalid --shell value", err)
	}
	return argv, nil
}

// shellFor picks the shell to enter a workspace with: the flag, then
// HUTCH_SHELL, then the default.
func shellFor(flag string, env config.Env) ([]string, error) {
	for _, s := range []string{flag, env.Shell} {
		argv, err := parseShell(s)
		if err != nil || len(argv) > 0 {
			return argv, err
		}
	}
	return []string{config.DefaultShell}, nil
}

// isInteractive reports whether stdin and stdout are terminals.
func isInteractive() bool {
	tty := func(f *os.File) bool {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return tty(os.Stdin) && tty(os.Stdout)
}

// requireNameOrAll validates the NAME|--all argument form.
func requireNameOrAll(cmd *cobra.Command, args []string, all bool) error {
	switch {
	case all && len(args) > 0:
		return errors.ConfigError("give either a workspace name or --all, not both", nil)
	case !all && len(args) != 1:
		return errors.ConfigError(cmd.CommandPath()+" needs a workspace name or --all", nil)
	}
	return nil
}
