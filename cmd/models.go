package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/responses-go/internal/providers"
)

var modelsCmd = &cobra.Command{
	Use:   "models [model...]",
	Short: "List providers and priced models, or resolve model names",
	Long: `Without arguments, list the registered providers with their routing prefixes
and the models with known prices. With arguments, show which provider each
model name resolves to.`,
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg := cfgMgr.Get()
	out := cmd.OutOrStdout()

	registry := providers.NewRegistry(cfg, logger)
	registry.Initialize()

	if len(args) > 0 {
		for _, model := range args {
			p, canonical, err := registry.Resolve(model)
			if err != nil {
				color.Red("  %-24s: %v", model, err)
				continue
			}
			fmt.Fprintf(out, "  %-24s: %s (%s) -> %s\n", model, p.ID, p.Endpoint(), canonical)
		}
		return nil
	}

	color.Blue("Providers:")
	for _, id := range registry.List() {
		p, err := registry.Lookup(id)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "  - %s (%s)\n", p.DisplayName, p.ID)
		fmt.Fprintf(out, "    Base URL: %s\n", p.BaseURL)
		fmt.Fprintf(out, "    Prefixes: %s\n", strings.Join(p.ModelPrefixes, ", "))
		fmt.Fprintf(out, "    Keys:     %s\n", strings.Join(p.EnvVars, ", "))
	}

	table, err := cfg.PricingTable()
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	color.Blue("Prices (USD per million tokens):")
	fmt.Fprintf(out, "  %-24s %10s %10s %10s\n", "MODEL", "INPUT", "CACHED", "OUTPUT")
	for _, model := range table.Models() {
		price, _ := table.Lookup(model)

		cached := "-"
		if price.CachedInput != nil {
			cached = price.CachedInput.String()
		}

		fmt.Fprintf(out, "  %-24s %10s %10s %10s\n", model, price.Input.String(), cached, price.Output.String())
	}

	return nil
}
