package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/akgaur12/converse/pkg/plugin"
	"github.com/akgaur12/converse/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ roles.SearchProvider = (*Module)(nil)
)

// Module implements the websearch plugin.
type Module struct {
	logger *zap.Logger
	client *Client
	cfg    Config
}

// New creates a new websearch plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "websearch",
		Version:     "0.1.0",
		Description: "Web search via DuckDuckGo",
		Roles:       []string{roles.RoleSearch},
		Required:    false,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.cfg = DefaultConfig()

	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal websearch config: %w", err)
		}
	}

	m.client = NewClient(m.cfg, m.logger)

	m.logger.Info("websearch plugin initialized",
		zap.String("region", m.cfg.Region),
		zap.Int("max_results", m.cfg.MaxResults),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.MaxResults < 1 || m.cfg.MaxResults > 25 {
		return fmt.Errorf("max_results must be between 1 and 25, got %d", m.cfg.MaxResults)
	}
	if m.cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", m.cfg.Timeout)
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("websearch plugin stopped")
	return nil
}

// Searcher implements roles.SearchProvider.
func (m *Module) Searcher() roles.Searcher {
	return m.client
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/search", Handler: m.handleSearch},
	}
}

// handleSearch runs an ad-hoc web search.
//
//	@Summary		Web search
//	@Description	Runs a DuckDuckGo search and returns the top results.
//	@Tags			websearch
//	@Produce		json
//	@Security		BearerAuth
//	@Param			q query string true "Search query"
//	@Success		200 {array} roles.SearchResult
//	@Failure		400 {object} map[string]any
//	@Failure		502 {object} map[string]any
//	@Router			/websearch/search [get]
func (m *Module) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	results, err := m.client.Search(r.Context(), query)
	if err != nil {
		m.logger.Warn("web search failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusBadGateway, "search failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
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
