// Package websearch provides web search results via DuckDuckGo for
// augmenting LLM answers with fresh information.
package websearch

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/akgaur12/converse/pkg/roles"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://html.duckduckgo.com"

// maxLinkLen guards against tracking-bloated result URLs that are
// useless to show a user.
const maxLinkLen = 200

var (
	resultAnchorRe  = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	resultSnippetRe = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	htmlTagRe       = regexp.MustCompile(`<[^>]+>`)
)

// Config holds the web search configuration.
type Config struct {
	Enabled    bool          `mapstructure:"enabled"`
	Region     string        `mapstructure:"region"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns sensible defaults for DuckDuckGo search.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Region:     "in-en",
		MaxResults: 5,
		Timeout:    10 * time.Second,
	}
}

// Client queries the DuckDuckGo HTML endpoint, which needs no API key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cfg        Config
	logger     *zap.Logger
}

// NewClient creates a DuckDuckGo search client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    defaultBaseURL,
		cfg:        cfg,
		logger:     logger,
	}
}

// Search runs a web search and returns up to MaxResults results.
// Unusable entries (spam domains, oversized links) are dropped.
func (c *Client) Search(ctx context.Context, query string) ([]roles.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	if c.cfg.Region != "" {
		params.Set("kl", c.cfg.Region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/html/?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Converse/0.1 (+https://github.com/akgaur12/converse)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read duckduckgo response: %w", err)
	}

	results := parseResults(string(body), c.cfg.MaxResults)
	if len(results) == 0 {
		return nil, fmt.Errorf("duckduckgo returned no results for %q", query)
	}

	c.logger.Debug("web search completed",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// parseResults extracts title/snippet/link triples from the DuckDuckGo
// HTML results page.
func parseResults(page string, limit int) []roles.SearchResult {
	anchors := resultAnchorRe.FindAllStringSubmatch(page, -1)
	snippets := resultSnippetRe.FindAllStringSubmatch(page, -1)

	var results []roles.SearchResult
	for i, a := range anchors {
		if len(results) >= limit {
			break
		}

		link := resolveLink(a[1])
		if !usableLink(link) {
			continue
		}

		title := cleanText(a[2])
		if title == "" {
			continue
		}

		var body string
		if i < len(snippets) {
			body = cleanText(snippets[i][1])
		}

		results = append(results, roles.SearchResult{
			Title: title,
			Body:  body,
			Link:  link,
		})
	}
	return results
}

// resolveLink unwraps DuckDuckGo's redirect URLs (//duckduckgo.com/l/?uddg=...)
// to the destination they point at.
func resolveLink(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

// usableLink filters out results not worth surfacing to the user.
func usableLink(link string) bool {
	if link == "" || len(link) > maxLinkLen {
		return false
	}
	// Baidu Zhidao results are pay-walled scrapes that never answer the query.
	if strings.Contains(strings.ToLower(link), "zhidao") {
		return false
	}
	return true
}

func cleanText(s string) string {
	s = htmlTagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
