package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/germanamz/postcraft/pkg/modeladapter"
	"github.com/germanamz/postcraft/pkg/providers/gemini"
	"github.com/germanamz/postcraft/pkg/providers/openai"
)

// ProviderFactory creates a Completer from a ProviderConfig.
type ProviderFactory func(cfg ProviderConfig) (modeladapter.Completer, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories["gemini"] = newGemini
		factories["openai"] = newOpenAI
	})
}

// RegisterProvider registers a custom provider factory under the given kind.
// It can be called before New to extend the engine with additional providers.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given kind.
func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newGemini(cfg ProviderConfig) (modeladapter.Completer, error) {
	return newGeminiAdapter(cfg, cfg.Model), nil
}

func newGeminiAdapter(cfg ProviderConfig, model string) *gemini.Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = gemini.DefaultBaseURL
	}
	if model == "" {
		model = "gemini-2.0-flash-exp"
	}

	return gemini.New(baseURL, cfg.APIKey, model)
}

func newOpenAI(cfg ProviderConfig) (modeladapter.Completer, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openai.DefaultBaseURL
	}

	return openai.New(baseURL, cfg.APIKey, cfg.Model), nil
}

// buildCompleter creates a Completer from a ProviderConfig using the registered
// factory for its Kind. If rate limiting is configured, the completer is wrapped
// with a RetryCompleter.
func buildCompleter(cfg ProviderConfig) (modeladapter.Completer, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider kind %q", cfg.Kind)
	}

	c, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	rl := cfg.RateLimit
	if rl.enabled() {
		var baseDelay time.Duration
		if rl.BaseDelay != "" {
			var parseErr error
			baseDelay, parseErr = time.ParseDuration(rl.BaseDelay)
			if parseErr != nil {
				return nil, fmt.Errorf("engine: provider %q: invalid base_delay %q: %w", cfg.Name, rl.BaseDelay, parseErr)
			}
		}

		c = modeladapter.NewRetryCompleter(c, modeladapter.RetryOpts{
			RPM:        rl.RPM,
			MaxRetries: rl.MaxRetries,
			BaseDelay:  baseDelay,
		})
	}

	return c, nil
}
