package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/cli/health"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/timeutil"
	"github.com/spf13/cobra"
)

const statusTimeout = 5 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the status of the connected fileserv server.

This command queries the liveness and readiness endpoints and shows the
uptime and the health of each dependency.

Examples:
  # Check status of connected server
  fsctl status

  # Output as JSON
  fsctl status -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// ServerStatus represents the server status for display.
type ServerStatus struct {
	Server     string             `json:"server"`
	Status     string             `json:"status"`
	Healthy    bool               `json:"healthy"`
	Ready      bool               `json:"ready"`
	Service    string             `json:"service,omitempty"`
	StartedAt  string             `json:"started_at,omitempty"`
	Uptime     string             `json:"uptime,omitempty"`
	Components []health.Component `json:"components,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetServerClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	status := ServerStatus{Server: client.BaseURL(), Status: "unreachable"}

	live, err := client.Health(ctx)
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Status = live.Status
		status.Healthy = live.Healthy()
		if l, err := live.Liveness(); err == nil {
			status.Service = l.Service
			status.StartedAt = l.StartedAt
			status.Uptime = timeutil.FormatUptime(l.Uptime)
		}

		if ready, err := client.Ready(ctx); err != nil {
			status.Error = err.Error()
		} else {
			status.Ready = ready.Healthy()
			status.Components, _ = ready.Components()
			if ready.Error != "" {
				status.Error = ready.Error
			}
		}
	}

	p, err := cmdutil.GetPrinter(os.Stdout)
	if err != nil {
		return err
	}
	if p.Structured() {
		return p.Print(status, nil)
	}

	details := output.NewDetails().
		Add("Server", status.Server).
		Add("Status", status.Status).
		Add("Ready", cmdutil.BoolToYesNo(status.Ready)).
		Add("Service", status.Service).
		Add("Started", status.StartedAt).
		Add("Uptime", status.Uptime).
		Add("Error", status.Error)
	if err := output.PrintTable(os.Stdout, details); err != nil {
		return err
	}

	if len(status.Components) > 0 {
		fmt.Println()
		table := output.NewTable("COMPONENT", "STATUS", "LATENCY", "ERROR")
		for _, c := range status.Components {
			table.AddRow(c.Name, c.Status, cmdutil.EmptyOr(c.Latency, "-"), cmdutil.EmptyOr(c.Error, "-"))
		}
		if err := output.PrintTable(os.Stdout, table); err != nil {
			return err
		}
	}

	if !status.Healthy || !status.Ready {
		return fmt.Errorf("server %s is not ready", status.Server)
	}
	return nil
}
