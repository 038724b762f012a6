package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/responses-go/internal/process"
	"github.com/Davincible/responses-go/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long: `Start the local relay. It accepts POST /v1/responses with the same options as
'resp ask' (including a "schema" entry), routes the request to OpenAI or xAI
and replies with the extracted response, or relays the event stream when
"stream" is true.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolP("detach", "d", false, "run the relay in the background")
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Ensure configuration exists
	if err := ensureConfigExists(); err != nil {
		return err
	}

	// Load configuration
	cfg, err := cfgMgr.Load()
	if err != nil {
		return err
	}

	procMgr := process.NewManager(baseDir)

	if detach, _ := cmd.Flags().GetBool("detach"); detach {
		started, err := procMgr.StartDetached("serve")
		if err != nil {
			return err
		}
		if !started {
			color.Yellow("Relay is already running (PID %d)", procMgr.ReadPID())
			return nil
		}

		color.Green("Relay started in the background (PID %d)", procMgr.ReadPID())
		return nil
	}

	if procMgr.IsRunning() {
		return fmt.Errorf("relay is already running (PID %d)", procMgr.ReadPID())
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	color.Green("Starting %s v%s relay on http://%s:%d", AppName, Version, cfg.Relay.Host, cfg.Relay.Port)
	logger.Info("Starting server",
		"host", cfg.Relay.Host,
		"port", cfg.Relay.Port,
		"providers", c.Registry().List(),
	)

	// Setup process management
	if err := procMgr.WritePID(); err != nil {
		return err
	}
	defer procMgr.CleanupPID()

	// Create and start server
	srv := server.New(cfgMgr, c, logger)
	return srv.Start()
}
