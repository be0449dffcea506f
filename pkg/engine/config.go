package engine

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/germanamz/postcraft/pkg/visuals"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// DefaultConfigYAML returns the embedded default configuration as written to
// disk by "postcraft init".
func DefaultConfigYAML() []byte {
	out := make([]byte, len(defaultConfig))
	copy(out, defaultConfig)
	return out
}

// Team modes.
const (
	ModeSequence   = "sequence"
	ModeCoordinate = "coordinate"
)

// Config is the top-level engine configuration.
type Config struct {
	Providers  []ProviderConfig `yaml:"providers"`
	Agents     []AgentConfig    `yaml:"agents"`
	Team       TeamConfig       `yaml:"team"`
	Research   ResearchConfig   `yaml:"research"`
	Visuals    VisualsConfig    `yaml:"visuals"`
	Networking NetworkingConfig `yaml:"networking"`
	History    HistoryConfig    `yaml:"history"`
}

// RateLimitConfig controls per-provider throttling and 429 retries.
type RateLimitConfig struct {
	RPM        int    `yaml:"rpm"`         // Requests per minute (0 = no limit).
	MaxRetries int    `yaml:"max_retries"` // Max retries on 429 (default 3).
	BaseDelay  string `yaml:"base_delay"`  // Initial backoff delay as a duration string (e.g. "1s", "500ms").
}

func (r RateLimitConfig) enabled() bool {
	return r.RPM > 0 || r.MaxRetries > 0 || r.BaseDelay != ""
}

// ProviderConfig describes an LLM provider instance.
type ProviderConfig struct {
	Name      string          `yaml:"name"`
	Kind      string          `yaml:"kind"`
	BaseURL   string          `yaml:"base_url"`
	APIKey    string          `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	Model     string          `yaml:"model"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AgentConfig describes one team member.
type AgentConfig struct {
	Name          string   `yaml:"name"`
	Role          string   `yaml:"role"`
	Description   string   `yaml:"description"`
	Instructions  []string `yaml:"instructions"`
	Provider      string   `yaml:"provider"`
	Toolboxes     []string `yaml:"toolboxes"`
	AddDatetime   bool     `yaml:"add_datetime"`
	MaxIterations int      `yaml:"max_iterations"`
	Timeout       string   `yaml:"timeout"`
}

// TeamConfig describes how the agents work together.
type TeamConfig struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Instructions    []string `yaml:"instructions"`
	SuccessCriteria string   `yaml:"success_criteria"`
	Mode            string   `yaml:"mode"`
	Members         []string `yaml:"members"` // Defaults to every agent in order.
	Provider        string   `yaml:"provider"`
	Synthesize      bool     `yaml:"synthesize"`
	Markdown        bool     `yaml:"markdown"`
	AddDatetime     bool     `yaml:"add_datetime"`
	MaxRounds       int      `yaml:"max_rounds"`
}

// ResearchConfig configures the web_search tool.
type ResearchConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	MaxResults int    `yaml:"max_results"`
	CacheTTL   string `yaml:"cache_ttl"`
	RedisURL   string `yaml:"redis_url"`
}

// VisualsConfig configures the generate_image tool.
type VisualsConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Provider  string   `yaml:"provider"` // A gemini provider; image generation is Gemini only.
	Model     string   `yaml:"model"`
	OutputDir string   `yaml:"output_dir"`
	Formats   []string `yaml:"formats"`
}

// NetworkingConfig configures the networking tools.
type NetworkingConfig struct {
	FetchProfiles bool   `yaml:"fetch_profiles"`
	Renderer      string `yaml:"renderer"` // "http" (default) or "chrome".
	MaxHashtags   int    `yaml:"max_hashtags"`
}

// Profile page renderers.
const (
	RendererHTTP   = "http"
	RendererChrome = "chrome"
)

// HistoryConfig configures run persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so API keys can live in the environment (or a .env file)
// rather than in the config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig expands environment variables in data and parses it.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the embedded configuration: one Gemini provider keyed
// by GOOGLE_API_KEY and the three-member networking content team.
func DefaultConfig() (Config, error) {
	return ParseConfig(defaultConfig)
}

// memberNames returns the team members, defaulting to every agent in order.
func (c Config) memberNames() []string {
	if len(c.Team.Members) > 0 {
		return c.Team.Members
	}

	names := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		names[i] = a.Name
	}
	return names
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("engine: config: at least one provider is required")
	}

	providers := make(map[string]ProviderConfig, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("engine: config: provider name is required")
		}
		if p.Kind == "" {
			return fmt.Errorf("engine: config: provider %q: kind is required", p.Name)
		}
		if _, dup := providers[p.Name]; dup {
			return fmt.Errorf("engine: config: duplicate provider name %q", p.Name)
		}
		if err := checkDuration(p.RateLimit.BaseDelay); err != nil {
			return fmt.Errorf("engine: config: provider %q: base_delay: %w", p.Name, err)
		}
		providers[p.Name] = p
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("engine: config: at least one agent is required")
	}

	agentNames := make(map[string]struct{}, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("engine: config: agent name is required")
		}
		if _, dup := agentNames[a.Name]; dup {
			return fmt.Errorf("engine: config: duplicate agent name %q", a.Name)
		}
		agentNames[a.Name] = struct{}{}

		if _, ok := providers[a.Provider]; a.Provider != "" && !ok {
			return fmt.Errorf("engine: config: agent %q: unknown provider %q", a.Name, a.Provider)
		}

		for _, tb := range a.Toolboxes {
			if _, ok := builtinToolboxNames[tb]; !ok {
				return fmt.Errorf("engine: config: agent %q: unknown toolbox %q", a.Name, tb)
			}
		}

		if err := checkDuration(a.Timeout); err != nil {
			return fmt.Errorf("engine: config: agent %q: timeout: %w", a.Name, err)
		}
	}

	switch c.Team.Mode {
	case "", ModeSequence, ModeCoordinate:
	default:
		return fmt.Errorf("engine: config: team: unknown mode %q", c.Team.Mode)
	}

	if _, ok := providers[c.Team.Provider]; c.Team.Provider != "" && !ok {
		return fmt.Errorf("engine: config: team: unknown provider %q", c.Team.Provider)
	}

	for _, m := range c.memberNames() {
		if _, ok := agentNames[m]; !ok {
			return fmt.Errorf("engine: config: team: member %q not found in agents", m)
		}
	}

	switch c.Networking.Renderer {
	case "", RendererHTTP, RendererChrome:
	default:
		return fmt.Errorf("engine: config: networking: unknown renderer %q", c.Networking.Renderer)
	}

	if err := checkDuration(c.Research.CacheTTL); err != nil {
		return fmt.Errorf("engine: config: research: cache_ttl: %w", err)
	}

	if c.Visuals.Enabled {
		name := c.Visuals.Provider
		if name == "" {
			name = c.Providers[0].Name
		}
		if _, ok := providers[name]; !ok {
			return fmt.Errorf("engine: config: visuals: unknown provider %q", name)
		}
		for _, f := range c.Visuals.Formats {
			if _, ok := visuals.Formats[f]; !ok {
				return fmt.Errorf("engine: config: visuals: %w: %q", visuals.ErrUnknownFormat, f)
			}
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("engine: config: history: path is required when enabled")
	}

	return nil
}

// MissingKeys returns the names of providers without an API key.
func (c Config) MissingKeys() []string {
	var names []string
	for _, p := range c.Providers {
		if p.APIKey == "" {
			names = append(names, p.Name)
		}
	}
	return names
}

func checkDuration(s string) error {
	if s == "" {
		return nil
	}
	_, err := time.ParseDuration(s)
	return err
}
