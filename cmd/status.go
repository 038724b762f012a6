package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/responses-go/internal/process"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay server status",
	Long:  `Display the status of the relay and the configured endpoint.`,
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) {
	procMgr := process.NewManager(baseDir)
	cfg := cfgMgr.Get()
	out := cmd.OutOrStdout()

	running := procMgr.IsRunning()
	pid := procMgr.ReadPID()

	color.Blue("Status for %s:", AppName)
	fmt.Fprintf(out, "  %-15s: %v\n", "Running", running)
	fmt.Fprintf(out, "  %-15s: %d\n", "PID", pid)

	if cfg != nil {
		endpoint := "http://" + net.JoinHostPort(cfg.Relay.Host, strconv.Itoa(cfg.Relay.Port))

		fmt.Fprintf(out, "  %-15s: %s\n", "Endpoint", endpoint+"/v1/responses")
		fmt.Fprintf(out, "  %-15s: %s\n", "Default Model", orUnset(cfg.DefaultModel))
		fmt.Fprintf(out, "  %-15s: %d\n", "Providers", len(cfg.Providers))
	}

	fmt.Fprintf(out, "  %-15s: %s\n", "Config Path", cfgMgr.GetPath())
	fmt.Fprintf(out, "  %-15s: %s\n", "PID File", procMgr.PIDFile())
	fmt.Fprintf(out, "  %-15s: v%s\n", "Version", Version)
}
