package cmd

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/responses-go/internal/config"
	"github.com/Davincible/responses-go/internal/providers"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage provider keys, the default model, pricing overrides and relay settings.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for provider API keys and the default model.`,
	RunE:  runConfigInit,
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Write an example config.yaml",
	Long:  `Write a starter config.yaml with placeholder keys.`,
	RunE:  runConfigExample,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration with secrets masked.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration and check that every provider has a key.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configExampleCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("%s Configuration Setup", AppName)
	color.Yellow("Follow the prompts to configure your providers. Leave a key empty to use the environment.")

	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{},
		Relay: config.RelayConfig{
			Host: config.DefaultHost,
			Port: config.DefaultPort,
		},
	}

	for _, d := range []providers.Descriptor{providers.OpenAI(), providers.XAI()} {
		apiKey := prompt(reader, out, fmt.Sprintf("\n%s API Key: ", d.DisplayName))
		baseURL := prompt(reader, out, fmt.Sprintf("%s Base URL (default %s): ", d.DisplayName, d.DefaultBaseURL))

		if apiKey != "" || baseURL != "" {
			cfg.Providers[d.ID] = config.ProviderConfig{APIKey: apiKey, BaseURL: baseURL}
		}
	}

	cfg.DefaultModel = prompt(reader, out, "\nDefault Model (e.g., gpt-4.1-mini, grok-4): ")

	// Optional relay API key
	cfg.Relay.APIKey = prompt(reader, out, "Relay API Key (optional, for authentication): ")

	// Save configuration
	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now run: resp ask \"Hello\"")

	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func runConfigExample(cmd *cobra.Command, _ []string) error {
	if cfgMgr.HasYAML() {
		return fmt.Errorf("%s already exists", cfgMgr.GetPath())
	}

	if err := cfgMgr.CreateExampleYAML(); err != nil {
		return fmt.Errorf("failed to write example configuration: %w", err)
	}

	color.Green("Example configuration written to: %s", cfgMgr.GetPath())
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'resp config init' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()

	color.Blue("Current Configuration:")
	fmt.Fprintf(out, "  %-15s: %s\n", "Default Model", orUnset(cfg.DefaultModel))
	fmt.Fprintf(out, "  %-15s: %d\n", "Max Retries", cfg.Retries())
	if d, err := cfg.RequestTimeout(); err == nil {
		fmt.Fprintf(out, "  %-15s: %s\n", "Timeout", d)
	}
	fmt.Fprintf(out, "  %-15s: %s\n", "Config Path", cfgMgr.GetPath())

	fmt.Fprintln(out, "\nProviders:")
	ids := make([]string, 0, len(cfg.Providers))
	for id := range cfg.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := cfg.Providers[id]
		fmt.Fprintf(out, "  - Name: %s\n", id)
		fmt.Fprintf(out, "    Base URL: %s\n", orUnset(p.BaseURL))
		fmt.Fprintf(out, "    API Key: %s\n", maskString(p.APIKey))
		fmt.Fprintln(out)
	}

	if cfg.OpenAIAPIKey != "" || cfg.XAIAPIKey != "" {
		color.Yellow("Deprecated top-level keys are set; move them under providers:")
		fmt.Fprintf(out, "  %-15s: %s\n", "openai_api_key", maskString(cfg.OpenAIAPIKey))
		fmt.Fprintf(out, "  %-15s: %s\n", "xai_api_key", maskString(cfg.XAIAPIKey))
	}

	fmt.Fprintln(out, "Relay Configuration:")
	fmt.Fprintf(out, "  %-15s: %s\n", "Host", cfg.Relay.Host)
	fmt.Fprintf(out, "  %-15s: %d\n", "Port", cfg.Relay.Port)
	fmt.Fprintf(out, "  %-15s: %s\n", "API Key", maskString(cfg.Relay.APIKey))

	if len(cfg.Preserve) > 0 {
		fmt.Fprintf(out, "\n  %-15s: %s\n", "Preserve", strings.Join(cfg.Preserve, ", "))
	}

	if len(cfg.Pricing) > 0 {
		fmt.Fprintln(out, "\nPricing Overrides:")
		models := make([]string, 0, len(cfg.Pricing))
		for m := range cfg.Pricing {
			models = append(models, m)
		}
		sort.Strings(models)

		for _, m := range models {
			p := cfg.Pricing[m]
			fmt.Fprintf(out, "  %-24s in %s / out %s\n", m, p.Input, p.Output)
		}
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	registry := providers.NewRegistry(cfg, logger)
	registry.Initialize()

	if err := cfg.Validate(registry.List()); err != nil {
		color.Red("Configuration validation failed:")
		fmt.Fprintln(cmd.OutOrStdout(), err)
		return fmt.Errorf("configuration validation failed")
	}

	if cfg.DefaultModel != "" {
		if _, _, err := registry.Resolve(cfg.DefaultModel); err != nil {
			color.Red("Default model: %v", err)
			return fmt.Errorf("configuration validation failed")
		}
	}

	for _, id := range registry.List() {
		p, _ := registry.Lookup(id)
		if _, err := registry.FetchCredential(p); err != nil {
			color.Yellow("  %s: %v", id, err)
		} else {
			color.Green("  %s: key found", id)
		}
	}

	for _, d := range registry.Diagnostics() {
		color.Yellow("  %s", d)
	}

	color.Green("Configuration is valid!")
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
