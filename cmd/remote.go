package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/hutch/internal/app"
	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/runtime"
	"github.com/firefly-engineering/hutch/internal/tunnel"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Forward a remote engine over SSH",
	Long: `Connect to a remote host over SSH and expose its container engine on a
local unix socket. Ports published by workspaces on the remote host are
forwarded to 127.0.0.1 as they appear.

The command runs until interrupted or until the SSH session drops. There
is no automatic reconnect.`,
	Example: `  hutch remote --ssh ssh://dev@build-box
  hutch remote --ssh dev@build-box:2222 --local-socket /tmp/build-box.sock`,
	Args: cobra.NoArgs,
	RunE: runRemote,
}

var (
	remoteSSH    string
	remoteSocket string
)

func init() {
	remoteCmd.Flags().StringVar(&remoteSSH, "ssh", "", "Remote endpoint, [ssh://][user@]host[:port] (default $HUTCH_REMOTE)")
	remoteCmd.Flags().StringVar(&remoteSocket, "local-socket", "", "Local unix socket (default ~/.hutch/remote.sock)")
	rootCmd.AddCommand(remoteCmd)
}

// remoteConfig builds the tunnel configuration from flags, the
// environment and the host config.
func remoteConfig(a *app.App) (*tunnel.Config, error) {
	target := remoteSSH
	for _, fallback := range []string{a.Env.Remote, a.HostConfig.Remote} {
		if target == "" {
			target = fallback
		}
	}
	if target == "" {
		return nil, errors.ConfigError("no remote endpoint: pass --ssh or set HUTCH_REMOTE", nil)
	}

	socket := remoteSocket
	if socket == "" {
		socket = a.Paths.RemoteSocket
	}

	cfg, err := tunnel.DefaultConfig(target, socket)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid remote endpoint %q", target), err)
	}
	if a.HostConfig.PollInterval > 0 {
		cfg.PollInterval = time.Duration(a.HostConfig.PollInterval) * time.Second
	}
	return cfg, nil
}

func runRemote(cmd *cobra.Command, args []string) error {
	a := app.Default
	cfg, err := remoteConfig(a)
	if err != nil {
		return err
	}

	rtCfg := runtime.DefaultConfig()
	if a.HostConfig.Runtime != "" {
		rtCfg.Type = runtime.RuntimeType(a.HostConfig.Runtime)
	}
	rtCfg.Host = "unix://" + cfg.LocalSocket
	lister, err := runtime.New(rtCfg)
	if err != nil {
		return errors.EngineError("detect", "runtime", err)
	}

	t, err := tunnel.Open(cmd.Context(), cfg, lister)
	if err != nil {
		return err
	}
	defer t.Close()

	logSuccess("Forwarding %s to %s", t.DockerHost(), t.RemoteSocket())
	fmt.Fprintf(cmd.OutOrStdout(), "export DOCKER_HOST=%s\n", t.DockerHost())
	return t.Wait()
}
