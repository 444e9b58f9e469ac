package llm

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/akgaur12/converse/pkg/llm"
	"go.uber.org/zap"
)

// handleGetConfig returns the current LLM provider configuration.
//
//	@Summary		Get LLM config
//	@Description	Returns the current LLM provider configuration. API keys are never returned.
//	@Tags			llm
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} LLMConfigResponse
//	@Router			/llm/config [get]
func (m *Module) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, _ := m.snapshot()

	resp := LLMConfigResponse{
		Provider: cfg.Provider,
	}

	switch cfg.Provider {
	case "ollama":
		resp.Model = cfg.Ollama.Model
		resp.URL = cfg.Ollama.URL
	case "vllm":
		resp.Model = cfg.VLLM.Model
		resp.URL = cfg.VLLM.BaseURL
		resp.KeySet = cfg.VLLM.APIKey != ""
	case "openai":
		resp.Model = cfg.OpenAI.Model
		resp.URL = cfg.OpenAI.BaseURL
		resp.KeySet = cfg.OpenAI.APIKey != ""
	case "groq":
		resp.Model = cfg.Groq.Model
		resp.URL = cfg.Groq.BaseURL
		resp.KeySet = cfg.Groq.APIKey != ""
	case "anthropic":
		resp.Model = cfg.Anthropic.Model
		resp.KeySet = cfg.Anthropic.APIKey != ""
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePutConfig updates the LLM provider configuration.
//
//	@Summary		Update LLM config
//	@Description	Update the LLM provider and model configuration.
//	@Tags			llm
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request body LLMConfigRequest true "LLM config"
//	@Success		200 {object} LLMConfigResponse
//	@Failure		400 {object} map[string]any
//	@Failure		500 {object} map[string]any
//	@Router			/llm/config [put]
func (m *Module) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req LLMConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch req.Provider {
	case "ollama", "vllm", "openai", "groq", "anthropic":
	default:
		writeError(w, http.StatusBadRequest, "provider must be ollama, vllm, openai, groq, or anthropic")
		return
	}

	// Mutate a copy so in-flight requests keep a consistent config until
	// the new provider is ready to swap in.
	cfg, _ := m.snapshot()

	switch req.Provider {
	case "ollama":
		if req.URL != "" {
			cfg.Ollama.URL = req.URL
		}
		if req.Model != "" {
			cfg.Ollama.Model = req.Model
		}
	case "vllm":
		if req.URL != "" {
			cfg.VLLM.BaseURL = req.URL
		}
		if req.Model != "" {
			cfg.VLLM.Model = req.Model
		}
		if req.APIKey != "" {
			cfg.VLLM.APIKey = req.APIKey
		}
	case "openai":
		if req.URL != "" {
			cfg.OpenAI.BaseURL = req.URL
		}
		if req.Model != "" {
			cfg.OpenAI.Model = req.Model
		}
		if req.APIKey != "" {
			cfg.OpenAI.APIKey = req.APIKey
		}
	case "groq":
		if req.URL != "" {
			cfg.Groq.BaseURL = req.URL
		}
		if req.Model != "" {
			cfg.Groq.Model = req.Model
		}
		if req.APIKey != "" {
			cfg.Groq.APIKey = req.APIKey
		}
	case "anthropic":
		if req.Model != "" {
			cfg.Anthropic.Model = req.Model
		}
		if req.APIKey != "" {
			cfg.Anthropic.APIKey = req.APIKey
		}
	}
	cfg.Provider = req.Provider

	provider, err := newProvider(cfg, m.logger)
	if err != nil {
		m.logger.Error("failed to create provider", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create provider: "+err.Error())
		return
	}

	m.mu.Lock()
	m.cfg = cfg
	m.provider = provider
	m.mu.Unlock()

	m.logger.Info("llm provider updated",
		zap.String("provider", req.Provider),
	)

	m.handleGetConfig(w, r)
}

// handleTestConnection tests the current LLM provider connection.
//
//	@Summary		Test LLM connection
//	@Description	Tests connectivity to the configured LLM provider.
//	@Tags			llm
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} LLMTestResponse
//	@Failure		500 {object} LLMTestResponse
//	@Router			/llm/test [post]
func (m *Module) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	cfg, provider := m.snapshot()

	if provider == nil {
		writeJSON(w, http.StatusOK, LLMTestResponse{
			Success: false,
			Message: "no provider configured",
		})
		return
	}

	hr, ok := provider.(llm.HealthReporter)
	if !ok {
		writeJSON(w, http.StatusOK, LLMTestResponse{
			Success: false,
			Message: "provider does not support health checks",
		})
		return
	}

	if err := hr.Heartbeat(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, LLMTestResponse{
			Success: false,
			Message: "connection failed: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, LLMTestResponse{
		Success: true,
		Message: "connected",
		Model:   currentModel(cfg),
	})
}

func currentModel(cfg ModuleConfig) string {
	switch cfg.Provider {
	case "ollama":
		return cfg.Ollama.Model
	case "vllm":
		return cfg.VLLM.Model
	case "openai":
		return cfg.OpenAI.Model
	case "groq":
		return cfg.Groq.Model
	case "anthropic":
		return cfg.Anthropic.Model
	default:
		return ""
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://converse.dev/problems/" + strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "-"),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
