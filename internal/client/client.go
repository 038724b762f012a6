// Package client sends requests to Responses API providers and turns the
// replies into response.Response values.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"github.com/Davincible/responses-go/internal/options"
	"github.com/Davincible/responses-go/internal/pricing"
	"github.com/Davincible/responses-go/internal/providers"
	"github.com/Davincible/responses-go/internal/response"
	"github.com/Davincible/responses-go/internal/schema"
)

const (
	userAgent = "responses-go"

	// DefaultEventTimeout ends a lazy event stream that has been silent for
	// this long.
	DefaultEventTimeout = 30 * time.Second

	// SchemaOption is compiled into text.format and never sent as is.
	SchemaOption = "schema"
	// SuppressWarningsOption silences unsupported-option warnings for one
	// request and is never sent.
	SuppressWarningsOption = "suppress_warnings"
)

// Client is safe for concurrent use.
type Client struct {
	registry *providers.Registry
	http     *http.Client
	logger   *slog.Logger

	pricing      pricing.Table
	preserve     [][]string
	defaultModel string
	maxRetries   int
	backoff      time.Duration
	timeout      time.Duration
	eventTimeout time.Duration
	countTokens  func(string) int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the tuned default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPricing replaces the built-in price table.
func WithPricing(table pricing.Table) Option {
	return func(c *Client) { c.pricing = table }
}

// WithPreservedPaths sets the fields carried from a response into its
// follow-up request by Continue.
func WithPreservedPaths(paths [][]string) Option {
	return func(c *Client) { c.preserve = paths }
}

// WithDefaultModel is used when a request names no model.
func WithDefaultModel(model string) Option {
	return func(c *Client) { c.defaultModel = model }
}

// WithRetries sets how often a failed non-streaming request is retried and
// the initial backoff, which doubles per attempt.
func WithRetries(max int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.backoff = backoff
	}
}

// WithTimeout bounds each non-streaming attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithEventTimeout changes how long Events waits for the next event.
func WithEventTimeout(d time.Duration) Option {
	return func(c *Client) { c.eventTimeout = d }
}

// WithTokenCounter logs an input token estimate for each request.
func WithTokenCounter(count func(string) int) Option {
	return func(c *Client) { c.countTokens = count }
}

func New(registry *providers.Registry, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		registry:     registry,
		http:         newHTTPClient(),
		logger:       logger,
		pricing:      pricing.Default,
		preserve:     options.DefaultPreservedPaths,
		backoff:      500 * time.Millisecond,
		eventTimeout: DefaultEventTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Registry returns the provider registry the client routes with.
func (c *Client) Registry() *providers.Registry {
	return c.registry
}

// Request is a fully prepared upstream call.
type Request struct {
	Provider *providers.Provider
	Model    string
	APIKey   string
	Body     []byte
	Warnings []string
}

// BuildRequest turns normalized options into an upstream request: the
// schema option is compiled into text.format, the model is resolved to a
// provider and rewritten to its canonical name, and stream is set or
// removed.
func (c *Client) BuildRequest(opts options.Options, streaming bool) (*Request, error) {
	opts = opts.Clone()

	model, _ := opts["model"].(string)
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return nil, ErrNoModel
	}

	provider, canonical, err := c.registry.Resolve(model)
	if err != nil {
		return nil, err
	}

	if spec, ok := opts[SchemaOption]; ok {
		delete(opts, SchemaOption)

		format, err := schema.Compile(spec)
		if err != nil {
			return nil, err
		}

		text, ok := opts["text"].(options.Options)
		if !ok {
			text = options.Options{}
		}
		text["format"] = format
		opts["text"] = text
	}

	quiet, _ := opts[SuppressWarningsOption].(bool)
	delete(opts, SuppressWarningsOption)

	var warnings []string
	if !quiet {
		warnings = c.registry.WarnUnsupported(provider, opts)
	}

	apiKey, err := c.registry.FetchCredential(provider)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	if body, err = sjson.SetBytes(body, "model", canonical); err != nil {
		return nil, fmt.Errorf("failed to set model: %w", err)
	}

	if streaming {
		body, err = sjson.SetBytes(body, "stream", true)
	} else {
		body, err = sjson.DeleteBytes(body, "stream")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set stream flag: %w", err)
	}

	return &Request{
		Provider: provider,
		Model:    canonical,
		APIKey:   apiKey,
		Body:     body,
		Warnings: warnings,
	}, nil
}

func (c *Client) prepare(input any, streaming bool) (*Request, error) {
	opts, err := options.Normalize(input)
	if err != nil {
		return nil, err
	}

	return c.BuildRequest(opts, streaming)
}

func (c *Client) logRequest(req *Request, streaming bool) {
	fields := []any{
		"provider", req.Provider.ID,
		"model", req.Model,
		"url", req.Provider.Endpoint(),
		"stream", streaming,
	}
	if c.countTokens != nil {
		fields = append(fields, "input_tokens", c.countTokens(string(req.Body)))
	}

	c.logger.Info("Sending request", fields...)
}

// Create sends a non-streaming request.
func (c *Client) Create(ctx context.Context, input any) (*response.Response, error) {
	req, err := c.prepare(input, false)
	if err != nil {
		return nil, err
	}

	return c.Send(ctx, req)
}

// Send performs a prepared non-streaming request.
func (c *Client) Send(ctx context.Context, req *Request) (*response.Response, error) {
	c.logRequest(req, false)

	body, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := response.New(body, c.pricing)
	c.logResponse(req, resp)

	return resp, nil
}

func (c *Client) logResponse(req *Request, resp *response.Response) {
	c.logger.Info("Successful response",
		"provider", req.Provider.ID,
		"id", resp.ID(),
		"status", resp.Status(),
		"cost", resp.Cost.Total.String(),
	)

	for kind, messages := range resp.ParseErrors {
		c.logger.Warn("Response parse error", "kind", kind, "errors", strings.Join(messages, "; "))
	}
}

// Continue sends a follow-up to previous. The preserved fields of the
// previous body (model, reasoning effort and verbosity by default) are
// carried over unless input sets them, and carried fields the target
// provider does not support are dropped again.
func (c *Client) Continue(ctx context.Context, previous *response.Response, input any) (*response.Response, error) {
	req, err := c.PrepareContinue(previous, input, false)
	if err != nil {
		return nil, err
	}

	return c.Send(ctx, req)
}

// PrepareContinue builds the follow-up request used by Continue.
func (c *Client) PrepareContinue(previous *response.Response, input any, streaming bool) (*Request, error) {
	user, err := options.Normalize(input)
	if err != nil {
		return nil, err
	}

	opts := options.PreservePaths(user, previous.Body, c.preserve)

	if id := previous.ID(); id != "" {
		opts["previous_response_id"] = id
	}

	model, _ := opts["model"].(string)
	if model == "" {
		model = c.defaultModel
	}

	if model != "" {
		provider, _, err := c.registry.Resolve(model)
		if err != nil {
			return nil, err
		}

		unsupported := make([][]string, 0, len(provider.Unsupported))
		for _, u := range provider.Unsupported {
			unsupported = append(unsupported, u.Path)
		}

		opts = options.DropPreservedPaths(opts, previous.Body, user, unsupported)
	}

	return c.BuildRequest(opts, streaming)
}
