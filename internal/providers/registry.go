package providers

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Davincible/responses-go/internal/options"
)

// Settings exposes configuration values by dotted key, for example
// "providers.openai.api_key".
type Settings interface {
	Lookup(key string) string
}

// UnsupportedOption is a request field a provider ignores or rejects.
type UnsupportedOption struct {
	Path    []string
	Message string
}

// CredentialSource is a configuration key that may hold an API key.
type CredentialSource struct {
	Key        string
	Deprecated bool
}

// Descriptor describes one upstream Responses API implementation.
type Descriptor struct {
	ID             string
	DisplayName    string
	DefaultBaseURL string
	BaseURLEnv     string
	ConfigSources  []CredentialSource
	EnvVars        []string
	ModelPrefixes  []string
	Unsupported    []UnsupportedOption
}

// Provider is a descriptor with its base URL resolved.
type Provider struct {
	*Descriptor
	BaseURL string
}

// Endpoint returns the URL of the responses collection.
func (p *Provider) Endpoint() string {
	return strings.TrimRight(p.BaseURL, "/") + "/responses"
}

// Registry holds the known providers in registration order.
type Registry struct {
	order     []string
	providers map[string]*Descriptor
	settings  Settings
	logger    *slog.Logger

	mu          sync.Mutex
	warned      map[string]bool
	diagnostics []string
}

func NewRegistry(settings Settings, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		providers: make(map[string]*Descriptor),
		settings:  settings,
		logger:    logger,
		warned:    make(map[string]bool),
	}
}

// Register adds a provider. Registration order breaks ties between
// overlapping model prefixes: the first registered provider wins.
func (r *Registry) Register(d Descriptor) {
	id := strings.ToLower(d.ID)
	if _, exists := r.providers[id]; !exists {
		r.order = append(r.order, id)
	}

	d.ID = id
	r.providers[id] = &d
}

// Get retrieves a provider descriptor by id
func (r *Registry) Get(id string) (*Descriptor, bool) {
	d, exists := r.providers[strings.ToLower(id)]
	return d, exists
}

// List returns the registered provider ids in registration order
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// Initialize registers all built-in providers
func (r *Registry) Initialize() {
	r.Register(OpenAI())
	r.Register(XAI())
}

// Lookup returns the provider with the given id, its base URL resolved from
// configuration, then the environment, then the built-in default.
func (r *Registry) Lookup(id string) (*Provider, error) {
	d, ok := r.Get(id)
	if !ok {
		return nil, &UnknownProviderError{Provider: id, Known: r.List()}
	}

	return &Provider{Descriptor: d, BaseURL: r.baseURL(d)}, nil
}

func (r *Registry) baseURL(d *Descriptor) string {
	values := []string{r.setting("providers." + d.ID + ".base_url")}
	if d.BaseURLEnv != "" {
		values = append(values, os.Getenv(d.BaseURLEnv))
	}

	values = append(values, d.DefaultBaseURL)

	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// Resolve maps a model string to a provider and the model name sent
// upstream. "xai:grok-4" routes explicitly; a bare name is matched against
// each provider's model prefixes in registration order.
func (r *Registry) Resolve(model string) (*Provider, string, error) {
	if i := strings.Index(model, ":"); i > 0 {
		prefix := model[:i]
		if d, ok := r.Get(prefix); ok {
			return &Provider{Descriptor: d, BaseURL: r.baseURL(d)}, model[i+1:], nil
		}

		// fine-tuned ids such as "ft:gpt-4.1:org::id" carry a colon too
		if d := r.match(model); d != nil {
			return &Provider{Descriptor: d, BaseURL: r.baseURL(d)}, model, nil
		}

		return nil, "", &UnknownProviderError{Provider: prefix, Known: r.List()}
	}

	if d := r.match(model); d != nil {
		return &Provider{Descriptor: d, BaseURL: r.baseURL(d)}, model, nil
	}

	return nil, "", &UnknownModelError{Model: model, Prefixes: r.prefixes()}
}

func (r *Registry) match(model string) *Descriptor {
	lower := strings.ToLower(model)
	if lower == "" {
		return nil
	}

	for _, id := range r.order {
		d := r.providers[id]
		for _, prefix := range d.ModelPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return d
			}
		}
	}

	return nil
}

func (r *Registry) prefixes() []string {
	var out []string

	for _, id := range r.order {
		for _, prefix := range r.providers[id].ModelPrefixes {
			out = append(out, fmt.Sprintf("%s (%s)", prefix, id))
		}
	}

	return out
}

// FetchCredential returns the API key for p. Configuration sources are tried
// first, in order, then environment variables. A deprecated configuration
// source still works but is reported once per registry.
func (r *Registry) FetchCredential(p *Provider) (string, error) {
	for _, src := range p.ConfigSources {
		v := r.setting(src.Key)
		if v == "" {
			continue
		}

		if src.Deprecated {
			r.warnOnce(p.ID+"|"+src.Key, fmt.Sprintf(
				"config key %q is deprecated, use %q instead", src.Key, "providers."+p.ID+".api_key"))
		}

		return v, nil
	}

	for _, name := range p.EnvVars {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}

	return "", &MissingCredentialError{Provider: p.ID, EnvVars: append([]string(nil), p.EnvVars...)}
}

// WarnUnsupported logs every unsupported option present in opts and returns
// the messages. It never blocks a request.
func (r *Registry) WarnUnsupported(p *Provider, opts options.Options) []string {
	var warnings []string

	for _, u := range p.Unsupported {
		if !options.Has(opts, u.Path) {
			continue
		}

		r.logger.Warn("Unsupported option",
			"provider", p.ID,
			"option", strings.Join(u.Path, "."),
			"message", u.Message,
		)

		warnings = append(warnings, u.Message)
	}

	return warnings
}

// Diagnostics returns the deprecation notices collected so far.
func (r *Registry) Diagnostics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.diagnostics...)
}

func (r *Registry) warnOnce(key, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.warned[key] {
		return
	}

	r.warned[key] = true
	r.diagnostics = append(r.diagnostics, message)
	r.logger.Warn("Deprecated configuration", "message", message)
}

func (r *Registry) setting(key string) string {
	if r.settings == nil {
		return ""
	}

	return r.settings.Lookup(key)
}
