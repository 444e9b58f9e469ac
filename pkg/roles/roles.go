// Package roles defines typed contracts for plugin roles.
// Plugins that fill a role (declared via PluginInfo.Roles) should implement
// the corresponding interface so callers can use type-safe access via
// PluginResolver.ResolveByRole followed by a type assertion.
package roles

import (
	"context"

	"github.com/akgaur12/converse/pkg/llm"
)

// Role name constants match the strings used in PluginInfo.Roles.
const (
	RoleLLM    = "llm"
	RoleSearch = "search"
)

// LLMProvider is implemented by plugins that provide LLM capabilities.
// Resolve via PluginResolver.ResolveByRole(RoleLLM) then type-assert.
type LLMProvider interface {
	// Provider returns the underlying LLM provider interface.
	Provider() llm.Provider
	// ActiveModel reports the configured provider and model names.
	ActiveModel() (provider, model string)
}

// SearchProvider is implemented by plugins that provide external text search.
// Resolve via PluginResolver.ResolveByRole(RoleSearch) then type-assert.
type SearchProvider interface {
	// Searcher returns the underlying search interface.
	Searcher() Searcher
}

// Searcher performs an external text search for a query.
type Searcher interface {
	// Search returns up to the provider's configured number of results.
	Search(ctx context.Context, query string) ([]SearchResult, error)
}
