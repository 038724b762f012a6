package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Davincible/responses-go/internal/client"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens [text...]",
	Short: "Estimate the token count of a prompt",
	Long: `Estimate how many tokens a prompt uses with the tiktoken encoding of the
given model. The text is read from stdin when no arguments are given.`,
	RunE: runTokens,
}

func init() {
	tokensCmd.Flags().StringP("model", "m", "", "model whose encoding to use (default: the configured default model)")
}

func runTokens(cmd *cobra.Command, args []string) error {
	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = cfgMgr.Get().DefaultModel
	}

	text, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	encoding := client.EncodingForModel(model)

	n, err := client.EstimateTokens(text, encoding)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d tokens (%s)\n", n, encoding)
	return nil
}
