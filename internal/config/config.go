package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/Davincible/responses-go/internal/options"
	"github.com/Davincible/responses-go/internal/pricing"
)

const (
	DefaultPort           = 6971
	DefaultHost           = "127.0.0.1"
	DefaultConfigFilename = "config.json"
	DefaultYAMLFilename   = "config.yaml"
	DefaultMaxRetries     = 2
	DefaultTimeout        = 10 * time.Minute
)

// ProviderConfig overrides the built-in settings of one provider.
type ProviderConfig struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// RelayConfig configures the local HTTP relay.
type RelayConfig struct {
	Host   string `json:"host,omitempty" yaml:"host,omitempty"`
	Port   int    `json:"port,omitempty" yaml:"port,omitempty"`
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// PriceConfig is a price override in USD per million tokens, as decimal
// strings.
type PriceConfig struct {
	Input       string `json:"input" yaml:"input"`
	CachedInput string `json:"cached_input,omitempty" yaml:"cached_input,omitempty"`
	Output      string `json:"output" yaml:"output"`
}

type Config struct {
	DefaultModel string                    `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	Providers    map[string]ProviderConfig `json:"providers,omitempty" yaml:"providers,omitempty"`

	// Deprecated: use providers.openai.api_key.
	OpenAIAPIKey string `json:"openai_api_key,omitempty" yaml:"openai_api_key,omitempty"`
	// Deprecated: use providers.xai.api_key.
	XAIAPIKey string `json:"xai_api_key,omitempty" yaml:"xai_api_key,omitempty"`

	// MaxRetries of 0 means DefaultMaxRetries; a negative value disables
	// retries.
	MaxRetries int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Timeout    string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Relay    RelayConfig            `json:"relay" yaml:"relay"`
	Preserve []string               `json:"preserve,omitempty" yaml:"preserve,omitempty"`
	Pricing  map[string]PriceConfig `json:"pricing,omitempty" yaml:"pricing,omitempty"`
}

// Lookup returns the string value at a dotted key such as
// "providers.openai.api_key", or "" if it is unset.
func (c *Config) Lookup(key string) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}

	r := gjson.GetBytes(data, key)
	if r.Type != gjson.String {
		return ""
	}

	return r.String()
}

// Retries returns the effective retry count.
func (c *Config) Retries() int {
	switch {
	case c.MaxRetries < 0:
		return 0
	case c.MaxRetries == 0:
		return DefaultMaxRetries
	}

	return c.MaxRetries
}

// RequestTimeout returns the parsed timeout, or DefaultTimeout if unset.
func (c *Config) RequestTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return DefaultTimeout, nil
	}

	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}

	return d, nil
}

// PreservedPaths returns the default preserved paths followed by the
// configured ones.
func (c *Config) PreservedPaths() [][]string {
	paths := append([][]string(nil), options.DefaultPreservedPaths...)

	for _, dotted := range c.Preserve {
		if path := options.ParsePath(dotted); len(path) > 0 {
			paths = append(paths, path)
		}
	}

	return paths
}

// PricingTable returns the built-in prices with configured overrides.
func (c *Config) PricingTable() (pricing.Table, error) {
	overrides := make(pricing.Table, len(c.Pricing))

	for model, pc := range c.Pricing {
		p, err := pricing.Parse(pc.Input, pc.CachedInput, pc.Output)
		if err != nil {
			return nil, fmt.Errorf("pricing for %s: %w", model, err)
		}
		overrides[model] = p
	}

	return pricing.Default.Merge(overrides), nil
}

// Validate checks the configuration. known lists the registered provider
// ids.
func (c *Config) Validate(known []string) error {
	var problems []string

	for id := range c.Providers {
		found := false
		for _, k := range known {
			if strings.EqualFold(id, k) {
				found = true
				break
			}
		}
		if !found {
			problems = append(problems, fmt.Sprintf("unknown provider %q (known providers: %s)", id, strings.Join(known, ", ")))
		}
	}

	if c.Relay.Port < 0 || c.Relay.Port > 65535 {
		problems = append(problems, fmt.Sprintf("relay port %d out of range", c.Relay.Port))
	}

	if _, err := c.RequestTimeout(); err != nil {
		problems = append(problems, err.Error())
	}

	if _, err := c.PricingTable(); err != nil {
		problems = append(problems, err.Error())
	}

	for _, dotted := range c.Preserve {
		for _, seg := range options.ParsePath(dotted) {
			if seg == "" {
				problems = append(problems, fmt.Sprintf("invalid preserved path %q", dotted))
				break
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}

	sort.Strings(problems)
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
}

func (c *Config) applyDefaults() {
	if c.Relay.Port == 0 {
		c.Relay.Port = DefaultPort
	}
	if c.Relay.Host == "" {
		c.Relay.Host = DefaultHost
	}
}

type Manager struct {
	baseDir     string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

func (m *Manager) yamlPath() string { return filepath.Join(m.baseDir, DefaultYAMLFilename) }
func (m *Manager) jsonPath() string { return filepath.Join(m.baseDir, DefaultConfigFilename) }

// HasYAML reports whether a YAML config file exists.
func (m *Manager) HasYAML() bool { return fileExists(m.yamlPath()) }

// HasJSON reports whether a JSON config file exists.
func (m *Manager) HasJSON() bool { return fileExists(m.jsonPath()) }

// Load reads config.yaml, or config.json when there is no YAML file.
func (m *Manager) Load() (*Config, error) {
	var cfg Config

	switch {
	case m.HasYAML():
		data, err := os.ReadFile(m.yamlPath())
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml config: %w", err)
		}
	default:
		data, err := os.ReadFile(m.jsonPath())
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.applyDefaults()

	m.configValue.Store(&cfg)
	return &cfg, nil
}

// Get returns the cached config, loading it on first use. A missing or
// broken file yields the defaults.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		// Return a config with defaults if loading fails
		cfg = &Config{}
		cfg.applyDefaults()
	}
	return cfg
}

// Save writes cfg in the format of the existing file, YAML by default.
func (m *Manager) Save(cfg *Config) error {
	if m.HasJSON() && !m.HasYAML() {
		return m.save(cfg, m.jsonPath(), func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") })
	}

	return m.SaveAsYAML(cfg)
}

// SaveAsYAML writes cfg to config.yaml.
func (m *Manager) SaveAsYAML(cfg *Config) error {
	return m.save(cfg, m.yamlPath(), yaml.Marshal)
}

func (m *Manager) save(cfg *Config, path string, marshal func(any) ([]byte, error)) error {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// the file holds API keys
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.configValue.Store(cfg)
	return nil
}

// CreateExampleYAML writes a starter config.yaml.
func (m *Manager) CreateExampleYAML() error {
	cfg := &Config{
		DefaultModel: "gpt-4.1-mini",
		Providers: map[string]ProviderConfig{
			"openai": {APIKey: "your-openai-api-key-here"},
			"xai":    {APIKey: "your-xai-api-key-here"},
		},
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTimeout.String(),
		Relay: RelayConfig{
			Host:   DefaultHost,
			Port:   DefaultPort,
			APIKey: "your-relay-api-key-here",
		},
	}

	return m.SaveAsYAML(cfg)
}

// GetPath returns the config file in use, or the YAML path if none exists.
func (m *Manager) GetPath() string {
	if !m.HasYAML() && m.HasJSON() {
		return m.jsonPath()
	}
	return m.yamlPath()
}

func (m *Manager) Exists() bool {
	return m.HasYAML() || m.HasJSON()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
