package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/Davincible/responses-go/internal/client"
	"github.com/Davincible/responses-go/internal/options"
	"github.com/Davincible/responses-go/internal/response"
	"github.com/Davincible/responses-go/internal/stream"
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt...]",
	Short: "Send a prompt to a Responses API model",
	Long: `Send a prompt to OpenAI or xAI and print the reply. The prompt is read from
stdin when no arguments are given.

Schemas and option values may be inline JSON/YAML or @path to a file:

  resp ask -m grok-4 --schema '{"city": "string", "population": "integer"}' "Largest city in France?"
  resp ask --set reasoning.effort=high --save turn1.yaml "Plan a trip"
  resp ask --previous turn1.yaml "Make it shorter"`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	f := askCmd.Flags()
	f.StringP("model", "m", "", "model name, optionally prefixed with a provider (xai:grok-4)")
	f.StringP("instructions", "i", "", "system instructions")
	f.StringP("schema", "s", "", "structured output schema (inline or @file)")
	f.StringArray("set", nil, "set an option as path=value; value is parsed as JSON when valid")
	f.Bool("stream", false, "stream text deltas as they arrive")
	f.Bool("json-events", false, "stream the structured output as JSON tokens")
	f.String("previous", "", "continue from a response saved with --save")
	f.String("save", "", "save the response to a .json or .yaml file")
	f.Bool("json", false, "print the full response as JSON")
	f.Bool("cost", false, "print token cost to stderr")
	f.Bool("quiet", false, "suppress provider warnings")
}

type askFlags struct {
	model        string
	instructions string
	schema       string
	sets         []string
	quiet        bool
}

func runAsk(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()

	var af askFlags
	af.model, _ = f.GetString("model")
	af.instructions, _ = f.GetString("instructions")
	af.schema, _ = f.GetString("schema")
	af.sets, _ = f.GetStringArray("set")
	af.quiet, _ = f.GetBool("quiet")

	streaming, _ := f.GetBool("stream")
	jsonEvents, _ := f.GetBool("json-events")
	previousPath, _ := f.GetString("previous")
	savePath, _ := f.GetString("save")
	asJSON, _ := f.GetBool("json")
	showCost, _ := f.GetBool("cost")

	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	opts, err := buildOptions(prompt, af)
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	var previous *response.Response
	if previousPath != "" {
		if previous, err = loadResponse(previousPath); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()

	if jsonEvents {
		return printJSONEvents(ctx, c, previous, opts, out)
	}

	var resp *response.Response

	switch {
	case streaming:
		req, err := prepare(c, previous, opts, true)
		if err != nil {
			return err
		}
		printWarnings(req.Warnings)

		resp, err = c.SendStream(ctx, req, stream.Delta(func(text string) {
			fmt.Fprint(out, text)
		}))
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
	default:
		req, err := prepare(c, previous, opts, false)
		if err != nil {
			return err
		}
		printWarnings(req.Warnings)

		if resp, err = c.Send(ctx, req); err != nil {
			return err
		}

		if err := printResponse(out, resp, asJSON); err != nil {
			return err
		}
	}

	for kind, messages := range resp.ParseErrors {
		color.Yellow("Could not parse %s: %s", kind, strings.Join(messages, "; "))
	}

	if showCost && resp.Cost != nil {
		color.New(color.FgCyan).Fprintf(os.Stderr, "cost: $%s (input $%s, output $%s)\n",
			resp.Cost.Total.String(), resp.Cost.Input.String(), resp.Cost.Output.String())
	}

	if savePath != "" {
		return saveResponse(savePath, resp)
	}

	return nil
}

func prepare(c *client.Client, previous *response.Response, opts options.Options, streaming bool) (*client.Request, error) {
	if previous != nil {
		return c.PrepareContinue(previous, opts, streaming)
	}

	return c.BuildRequest(opts, streaming)
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		color.Yellow("Warning: %s", w)
	}
}

func printResponse(out io.Writer, resp *response.Response, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.ToMap())
	}

	if resp.HasParsed {
		data, err := json.MarshalIndent(resp.Parsed, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, resp.Output())

	for _, call := range resp.FunctionCalls {
		args, _ := json.Marshal(call.Arguments)
		color.New(color.FgMagenta).Fprintf(out, "call %s(%s) [%s]\n", call.Name, args, call.CallID)
	}

	return nil
}

func printJSONEvents(ctx context.Context, c *client.Client, previous *response.Response, opts options.Options, out io.Writer) error {
	events := c.Events(ctx, opts)
	if previous != nil {
		events = c.ContinueEvents(ctx, previous, opts)
	}

	for tok, err := range stream.JSONEvents(events) {
		if err != nil {
			return err
		}

		if tok.Value == nil {
			fmt.Fprintln(out, tok.Kind)
			continue
		}

		value, _ := json.Marshal(tok.Value)
		fmt.Fprintf(out, "%s %s\n", tok.Kind, value)
	}

	return nil
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("empty prompt")
	}

	return prompt, nil
}

// buildOptions assembles the request options. --set paths are applied last
// and win over the dedicated flags.
func buildOptions(prompt string, af askFlags) (options.Options, error) {
	doc := `{}`
	var err error

	if doc, err = sjson.Set(doc, "input", prompt); err != nil {
		return nil, err
	}
	if af.model != "" {
		if doc, err = sjson.Set(doc, "model", af.model); err != nil {
			return nil, err
		}
	}
	if af.instructions != "" {
		if doc, err = sjson.Set(doc, "instructions", af.instructions); err != nil {
			return nil, err
		}
	}
	if af.quiet {
		if doc, err = sjson.Set(doc, client.SuppressWarningsOption, true); err != nil {
			return nil, err
		}
	}

	for _, set := range af.sets {
		path, value, ok := strings.Cut(set, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --set %q: expected path=value", set)
		}

		if gjson.Valid(value) {
			doc, err = sjson.SetRaw(doc, path, value)
		} else {
			doc, err = sjson.Set(doc, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", set, err)
		}
	}

	var raw any
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, err
	}

	opts, err := options.Normalize(raw)
	if err != nil {
		return nil, err
	}

	if af.schema != "" {
		spec, err := loadDocument(af.schema)
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		opts[client.SchemaOption] = spec
	}

	return opts, nil
}

// loadDocument parses inline JSON or YAML, or the file named by "@path".
func loadDocument(src string) (any, error) {
	data := []byte(src)

	if path, ok := strings.CutPrefix(src, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	if doc == nil {
		return nil, errors.New("empty document")
	}

	return doc, nil
}

func loadResponse(path string) (*response.Response, error) {
	doc, err := loadDocument("@" + path)
	if err != nil {
		return nil, err
	}

	return response.FromMap(doc)
}

func saveResponse(path string, resp *response.Response) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(resp.ToMap(), "", "  ")
	default:
		data, err = yaml.Marshal(resp.ToMap())
	}
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	color.Green("Saved response to %s", path)
	return nil
}
