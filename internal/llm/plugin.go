package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/akgaur12/converse/internal/llm/anthropic"
	"github.com/akgaur12/converse/internal/llm/ollama"
	"github.com/akgaur12/converse/internal/llm/openai"
	pkgllm "github.com/akgaur12/converse/pkg/llm"
	"github.com/akgaur12/converse/pkg/plugin"
	"github.com/akgaur12/converse/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ roles.LLMProvider    = (*Module)(nil)
)

// ModuleConfig holds the LLM module configuration with per-provider sub-configs.
// Groq and vLLM reuse the OpenAI-compatible wire client with different defaults.
type ModuleConfig struct {
	Provider  string           `mapstructure:"provider"` // "ollama" (default), "vllm", "openai", "groq", "anthropic"
	Ollama    ollama.Config    `mapstructure:"ollama"`
	OpenAI    openai.Config    `mapstructure:"openai"`
	Groq      openai.Config    `mapstructure:"groq"`
	VLLM      openai.Config    `mapstructure:"vllm"`
	Anthropic anthropic.Config `mapstructure:"anthropic"`
}

// Module implements the LLM plugin, wrapping a configurable provider.
type Module struct {
	logger *zap.Logger

	// mu guards provider and cfg, which can be swapped at runtime via
	// PUT /config while chat requests are in flight.
	mu       sync.RWMutex
	provider pkgllm.Provider
	cfg      ModuleConfig
}

// snapshot returns a consistent view of the current config and provider.
func (m *Module) snapshot() (ModuleConfig, pkgllm.Provider) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, m.provider
}

// New creates a new LLM plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "llm",
		Version:     "0.2.0",
		Description: "LLM provider integration (Ollama, vLLM, OpenAI, Groq, Anthropic)",
		Roles:       []string{roles.RoleLLM},
		Required:    false,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = ModuleConfig{
		Provider:  "ollama",
		Ollama:    ollama.DefaultConfig(),
		OpenAI:    openai.DefaultConfig(),
		Groq:      openai.GroqConfig(),
		VLLM:      openai.VLLMConfig(),
		Anthropic: anthropic.DefaultConfig(),
	}

	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal llm config: %w", err)
		}
	}

	provider, err := newProvider(m.cfg, m.logger)
	if err != nil {
		return fmt.Errorf("create %s provider: %w", m.cfg.Provider, err)
	}
	m.provider = provider

	m.logger.Info("llm plugin initialized",
		zap.String("provider", m.cfg.Provider),
	)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	cfg, provider := m.snapshot()

	hr, ok := provider.(pkgllm.HealthReporter)
	if !ok {
		return nil
	}

	if err := hr.Heartbeat(ctx); err != nil {
		m.logger.Warn("llm provider not reachable; features will be unavailable until it comes online",
			zap.String("provider", cfg.Provider),
			zap.Error(err),
		)
		return nil
	}

	models, err := hr.ListModels(ctx)
	if err != nil {
		m.logger.Warn("failed to list models",
			zap.String("provider", cfg.Provider),
			zap.Error(err),
		)
		return nil
	}

	m.logger.Info("llm provider connected",
		zap.String("provider", cfg.Provider),
		zap.Strings("models", models),
	)
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("llm plugin stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	_, provider := m.snapshot()
	hr, ok := provider.(pkgllm.HealthReporter)
	if !ok {
		return plugin.HealthStatus{Status: "healthy", Message: "no health reporter"}
	}

	if err := hr.Heartbeat(ctx); err != nil {
		return plugin.HealthStatus{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	}
	return plugin.HealthStatus{Status: "healthy"}
}

// Provider implements roles.LLMProvider.
func (m *Module) Provider() pkgllm.Provider {
	_, provider := m.snapshot()
	return provider
}

// ActiveModel implements roles.LLMProvider.
func (m *Module) ActiveModel() (string, string) {
	cfg, _ := m.snapshot()
	return cfg.Provider, currentModel(cfg)
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/config", Handler: m.handleGetConfig},
		{Method: "PUT", Path: "/config", Handler: m.handlePutConfig},
		{Method: "POST", Path: "/test", Handler: m.handleTestConnection},
	}
}

// newProvider creates a provider based on the config.
func newProvider(cfg ModuleConfig, logger *zap.Logger) (pkgllm.Provider, error) {
	switch cfg.Provider {
	case "ollama", "":
		return ollama.New(cfg.Ollama, logger)

	case "vllm":
		return openai.New(cfg.VLLM, logger)

	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai: api_key is required")
		}
		return openai.New(cfg.OpenAI, logger)

	case "groq":
		if cfg.Groq.APIKey == "" {
			return nil, fmt.Errorf("groq: api_key is required")
		}
		return openai.New(cfg.Groq, logger)

	case "anthropic":
		return anthropic.New(cfg.Anthropic, logger)

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
