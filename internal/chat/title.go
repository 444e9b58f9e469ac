package chat

import (
	"context"
	"strings"

	"github.com/akgaur12/converse/pkg/llm"
)

const titlePrompt = "Generate a 3-5 word title for a conversation that starts with the following message. Reply with the title only, no quotes, no punctuation at the end:\n\n"

// generateTitle asks the model for a short conversation title. Any
// failure falls back to a prefix of the query, so conversation creation
// never fails on title generation.
func generateTitle(ctx context.Context, provider llm.Provider, query string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 60
	}

	title := ""
	if provider != nil {
		resp, err := provider.Generate(ctx, titlePrompt+query, llm.WithMaxTokens(32))
		if err == nil {
			title = cleanTitle(resp.Content)
		}
	}

	if title == "" {
		title = strings.TrimSpace(truncate(query, 50))
	}
	if title == "" {
		title = "New Chat"
	}
	return truncate(title, maxLen)
}

// cleanTitle strips wrapping quotes and whitespace from a model reply.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	// Models love to quote their own titles.
	for _, q := range []string{`"`, "'", "“", "‘"} {
		closing := map[string]string{`"`: `"`, "'": "'", "“": "”", "‘": "’"}[q]
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, closing) && len(s) > len(q)+len(closing) {
			s = s[len(q) : len(s)-len(closing)]
		}
	}
	// Keep the first line of multi-line replies.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
