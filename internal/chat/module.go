// Package chat implements the conversation plugin: durable multi-turn
// chat history and the query execution endpoints that route each user
// query through the response pipeline.
package chat

import (
	"context"
	"fmt"
	"slices"

	"github.com/akgaur12/converse/internal/chat/pipeline"
	"github.com/akgaur12/converse/pkg/plugin"
	"github.com/akgaur12/converse/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
	_ plugin.Validator    = (*Module)(nil)
)

// ChatConfig holds the chat module configuration.
type ChatConfig struct {
	Services      []string `mapstructure:"services"`       // allowed service values for execute_user_query
	HistoryLimit  int      `mapstructure:"history_limit"`  // turns of context loaded per query
	AssistantName string   `mapstructure:"assistant_name"` // identity used by the self route
	TitleMaxLen   int      `mapstructure:"title_max_len"`
}

// DefaultConfig returns the chat module defaults.
func DefaultConfig() ChatConfig {
	return ChatConfig{
		Services:      []string{"chat", "web_search"},
		HistoryLimit:  5,
		AssistantName: "Converse",
		TitleMaxLen:   60,
	}
}

// Module implements the chat plugin.
type Module struct {
	logger  *zap.Logger
	cfg     ChatConfig
	store   *ChatStore
	bus     plugin.EventBus
	plugins plugin.PluginResolver
}

// New creates a new chat plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "chat",
		Version:      "0.1.0",
		Description:  "Multi-turn conversations with routed query execution",
		Dependencies: []string{"llm"},
		Roles:        nil,
		Required:     false,
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.plugins = deps.Plugins

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal chat config: %w", err)
		}
	}

	if deps.Store == nil {
		return fmt.Errorf("chat: store is required")
	}
	if err := deps.Store.Migrate(ctx, "chat", migrations()); err != nil {
		return err
	}
	m.store = NewChatStore(deps.Store)

	m.logger.Info("chat module initialized",
		zap.Strings("services", m.cfg.Services),
		zap.Int("history_limit", m.cfg.HistoryLimit),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if len(m.cfg.Services) == 0 {
		return fmt.Errorf("services allow-list must not be empty")
	}
	for _, svc := range m.cfg.Services {
		if svc != pipeline.RouteChat && svc != pipeline.RouteWebSearch {
			return fmt.Errorf("unknown service %q in allow-list", svc)
		}
	}
	if m.cfg.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative, got %d", m.cfg.HistoryLimit)
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("chat module stopped")
	return nil
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/execute_user_query", Handler: m.handleExecuteQuery},
		{Method: "POST", Path: "/execute_user_query/stream", Handler: m.handleExecuteQueryStream},
		{Method: "POST", Path: "/conversations", Handler: m.handleCreateConversation},
		{Method: "GET", Path: "/conversations", Handler: m.handleListConversations},
		{Method: "GET", Path: "/conversations/{id}", Handler: m.handleGetConversation},
		{Method: "PUT", Path: "/conversations/{id}", Handler: m.handleRenameConversation},
		{Method: "DELETE", Path: "/conversations/{id}", Handler: m.handleDeleteConversation},
		{Method: "PUT", Path: "/conversations/{id}/rename", Handler: m.handleRenameConversation},
	}
}

// serviceAllowed reports whether the allow-list admits the service.
// An empty service defaults to chat.
func (m *Module) serviceAllowed(service string) bool {
	if service == "" {
		return true
	}
	return slices.Contains(m.cfg.Services, service)
}

// newPipeline builds a pipeline against the currently registered llm and
// search plugins. Resolved per request so provider reconfiguration via
// PUT /llm/config takes effect immediately.
func (m *Module) newPipeline() (*pipeline.Pipeline, error) {
	llmPlugins := m.plugins.ResolveByRole(roles.RoleLLM)
	if len(llmPlugins) == 0 {
		return nil, fmt.Errorf("no llm plugin registered")
	}
	lp, ok := llmPlugins[0].(roles.LLMProvider)
	if !ok {
		return nil, fmt.Errorf("llm plugin does not implement roles.LLMProvider")
	}
	providerName, model := lp.ActiveModel()

	var searcher roles.Searcher
	for _, p := range m.plugins.ResolveByRole(roles.RoleSearch) {
		if sp, ok := p.(roles.SearchProvider); ok {
			searcher = sp.Searcher()
			break
		}
	}

	return pipeline.New(pipeline.Config{
		Provider:      lp.Provider(),
		Searcher:      searcher,
		AssistantName: m.cfg.AssistantName,
		ProviderName:  providerName,
		Model:         model,
		Logger:        m.logger.Named("pipeline"),
	})
}
