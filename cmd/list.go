package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/hutch/internal/workspace"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List workspaces",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	o, err := orchestrator()
	if err != nil {
		return err
	}

	summaries, err := o.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if summaries == nil {
			summaries = []workspace.Summary{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		logInfo("No workspaces found. Create one with: hutch new <name>")
		return nil
	}
	return writeTable(out, summaries)
}

func writeTable(w io.Writer, summaries []workspace.Summary) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Name", "State", "Image", "Sidecars", "Ports", "Config"})
	for _, s := range summaries {
		origin := s.Origin
		if s.Ephemeral {
			origin = "(tmp)"
		}
		t.AppendRow(table.Row{s.Name, s.State, s.Image, s.Sidecars, formatPorts(s), origin})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
	return nil
}

func formatPorts(s workspace.Summary) string {
	var ports []string
	for _, c := range s.Containers {
		for _, p := range c.Ports {
			ports = append(ports, fmt.Sprintf("%d->%d", p.HostPort, p.ContainerPort))
		}
	}
	return strings.Join(ports, ",")
}
