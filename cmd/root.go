package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/responses-go/internal/client"
	"github.com/Davincible/responses-go/internal/config"
	"github.com/Davincible/responses-go/internal/providers"
)

const (
	AppName = "responses-go"
	Version = "0.3.0"

	// LogFilename is written in the base directory with --log-file.
	LogFilename = "responses-go.log"

	retryBackoff = 500 * time.Millisecond
)

var (
	logger  *slog.Logger
	homeDir string
	baseDir string
	cfgMgr  *config.Manager
)

func init() {
	// Initialize logger
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	logger = slog.New(handler)

	// Setup directories
	var err error
	homeDir, err = os.UserHomeDir()
	if err != nil {
		logger.Error("Failed to get home directory", "error", err)
		os.Exit(1)
	}

	baseDir = filepath.Join(homeDir, "."+AppName)
	if dir := os.Getenv("RESPONSES_GO_HOME"); dir != "" {
		baseDir = dir
	}

	cfgMgr = config.NewManager(baseDir)
}

var rootCmd = &cobra.Command{
	Use:   "resp",
	Short: "Responses API client for OpenAI and xAI",
	Long: `A client for the OpenAI and xAI Responses APIs with structured output schemas,
streaming, cost accounting and a local relay server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logFile, _ := cmd.Flags().GetBool("log-file")
		return setupLogging(verbose, logFile)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolP("log-file", "l", false, "also write logs to "+LogFilename+" in the config directory")

	// Add subcommands
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}

func setupLogging(verbose, logFile bool) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stderr
	if logFile {
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}

		f, err := os.OpenFile(filepath.Join(baseDir, LogFilename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}

	handler := slog.NewTextHandler(out, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)

	return nil
}

// newClient builds a client from the config file, the environment and the
// built-in provider defaults.
func newClient() (*client.Client, error) {
	cfg := cfgMgr.Get()

	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}

	table, err := cfg.PricingTable()
	if err != nil {
		return nil, err
	}

	registry := providers.NewRegistry(cfg, logger)
	registry.Initialize()

	if err := cfg.Validate(registry.List()); err != nil {
		return nil, err
	}

	return client.New(registry, logger,
		client.WithDefaultModel(cfg.DefaultModel),
		client.WithRetries(cfg.Retries(), retryBackoff),
		client.WithTimeout(timeout),
		client.WithPricing(table),
		client.WithPreservedPaths(cfg.PreservedPaths()),
		client.WithTokenCounter(countTokens),
	), nil
}

func countTokens(text string) int {
	n, err := client.EstimateTokens(text, client.DefaultEncoding)
	if err != nil {
		logger.Debug("Token estimate unavailable", "error", err)
		return 0
	}

	return n
}

func ensureConfigExists() error {
	if !cfgMgr.Exists() {
		color.Yellow("Configuration not found at %s", cfgMgr.GetPath())
		fmt.Println("Please run 'resp config init' to set up your configuration")
		return fmt.Errorf("configuration required")
	}
	return nil
}
