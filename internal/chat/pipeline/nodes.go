package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akgaur12/converse/pkg/llm"
	"github.com/akgaur12/converse/pkg/roles"
	"go.uber.org/zap"
)

// maxLinkLen drops result URLs too bloated to show a user.
const maxLinkLen = 200

// chatNode answers from conversation history alone.
func (p *Pipeline) chatNode(stream func(ctx context.Context, chunk []byte) error) Node {
	return func(ctx context.Context, st State) (State, error) {
		opts := []llm.CallOption{}
		if stream != nil {
			opts = append(opts, llm.WithStreamFunc(stream))
		}

		start := time.Now()
		resp, err := p.cfg.Provider.Chat(ctx, st.Messages, opts...)
		if err != nil {
			return st, err
		}

		st.Response = resp.Content
		st.Reasoning = resp.Reasoning
		st.InputTokens = resp.Usage.PromptTokens
		st.OutputTokens = resp.Usage.CompletionTokens
		st.ResponseTime = time.Since(start).Seconds()
		return st, nil
	}
}

// webSearchNode grounds the answer in fresh search results. When search
// fails or no provider with search is wired, it degrades to a plain
// provider call with no links section; provider errors from that
// fallback still propagate.
func (p *Pipeline) webSearchNode(stream func(ctx context.Context, chunk []byte) error) Node {
	return func(ctx context.Context, st State) (State, error) {
		if p.cfg.Searcher == nil {
			return p.chatNode(stream)(ctx, st)
		}

		results, err := p.cfg.Searcher.Search(ctx, st.UserInput)
		if err != nil {
			p.cfg.Logger.Warn("web search failed, answering without augmentation",
				zap.String("query", st.UserInput),
				zap.Error(err),
			)
			return p.chatNode(stream)(ctx, st)
		}

		results = filterResults(results)
		prompt := buildGroundingPrompt(st.UserInput, results)

		opts := []llm.CallOption{}
		if stream != nil {
			opts = append(opts, llm.WithStreamFunc(stream))
		}

		start := time.Now()
		resp, err := p.cfg.Provider.Generate(ctx, prompt, opts...)
		if err != nil {
			return st, err
		}

		links := make([]string, 0, len(results))
		for _, r := range results {
			links = append(links, r.Link)
		}

		st.Response = appendRelatedLinks(resp.Content, links)
		st.Reasoning = resp.Reasoning
		st.InputTokens = resp.Usage.PromptTokens
		st.OutputTokens = resp.Usage.CompletionTokens
		st.ResponseTime = time.Since(start).Seconds()
		st.Links = links
		return st, nil
	}
}

// selfNode answers identity questions without a model call.
func (p *Pipeline) selfNode(_ context.Context, st State) (State, error) {
	start := time.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "I am %s, a conversational AI assistant.", p.cfg.AssistantName)
	if p.cfg.Model != "" {
		fmt.Fprintf(&b, " I am currently running on the %s model", p.cfg.Model)
		if p.cfg.ProviderName != "" {
			fmt.Fprintf(&b, " via %s", p.cfg.ProviderName)
		}
		b.WriteString(".")
	}
	b.WriteString(" I can hold multi-turn conversations, remember context within a chat, and search the web for current information when a question calls for it.")

	st.Response = b.String()
	st.InputTokens = 0
	st.OutputTokens = 0
	st.ResponseTime = time.Since(start).Seconds()
	return st, nil
}

// filterResults drops results whose links are blocklisted or oversized.
func filterResults(results []roles.SearchResult) []roles.SearchResult {
	kept := results[:0]
	for _, r := range results {
		if r.Link == "" || len(r.Link) > maxLinkLen {
			continue
		}
		if strings.Contains(strings.ToLower(r.Link), "zhidao") {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// buildGroundingPrompt embeds search snippets ahead of the question.
func buildGroundingPrompt(question string, results []roles.SearchResult) string {
	var b strings.Builder
	b.WriteString("Use the following web search results to answer the question. ")
	b.WriteString("If the results do not contain the answer, say what you know and note the uncertainty.\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, r.Title, r.Body)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// appendRelatedLinks adds a markdown links section when any links survived
// filtering.
func appendRelatedLinks(content string, links []string) string {
	if len(links) == 0 {
		return content
	}
	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\n\n**Related Links:**\n")
	for _, l := range links {
		fmt.Fprintf(&b, "- %s\n", l)
	}
	return strings.TrimRight(b.String(), "\n")
}
