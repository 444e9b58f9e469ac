// Package pipeline orchestrates query execution for the chat plugin:
// route selection followed by one of the chat, web_search, or self
// nodes. Nodes take a state snapshot and return a merged copy, so a
// failed node never leaves partial mutations behind.
package pipeline

import (
	"context"
	"fmt"

	"github.com/akgaur12/converse/pkg/llm"
	"github.com/akgaur12/converse/pkg/roles"
	"go.uber.org/zap"
)

// State carries a query through the pipeline. Nodes treat it as
// immutable input and return an updated copy.
type State struct {
	Service      string        // requested service; holds the selected route after Select
	UserInput    string
	Messages     []llm.Message // conversation history, newest last
	Response     string
	Reasoning    string
	InputTokens  int
	OutputTokens int
	ResponseTime float64 // seconds
	Links        []string
}

// Node is a single pipeline step.
type Node func(ctx context.Context, st State) (State, error)

// Config holds the pipeline's collaborators and identity settings.
type Config struct {
	Provider      llm.Provider
	Searcher      roles.Searcher // nil disables the web_search route
	AssistantName string
	ProviderName  string
	Model         string
	Logger        *zap.Logger
}

// Pipeline routes queries to response strategies.
type Pipeline struct {
	cfg Config
}

// New creates a pipeline. Provider must be non-nil.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("pipeline: provider is required")
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "Converse"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run executes the pipeline in blocking mode.
func (p *Pipeline) Run(ctx context.Context, st State) (State, error) {
	return p.run(ctx, st, nil)
}

// RunStream executes the pipeline, forwarding response fragments to emit
// in order as the provider produces them. If the final response extends
// past what was streamed (a trailing links section, or a route that does
// not stream), the remaining suffix is emitted as one last fragment.
// A non-nil error from emit aborts generation.
func (p *Pipeline) RunStream(ctx context.Context, st State, emit func(fragment string) error) (State, error) {
	var streamed int
	counted := func(_ context.Context, chunk []byte) error {
		streamed += len(chunk)
		return emit(string(chunk))
	}

	out, err := p.run(ctx, st, counted)
	if err != nil {
		return out, err
	}

	if streamed < len(out.Response) {
		if err := emit(out.Response[streamed:]); err != nil {
			return out, err
		}
	}
	return out, nil
}

// run selects a route and executes its node. stream is nil in blocking mode.
func (p *Pipeline) run(ctx context.Context, st State, stream func(ctx context.Context, chunk []byte) error) (State, error) {
	st.Service = Select(st.Service, st.UserInput)

	var node Node
	switch st.Service {
	case RouteWebSearch:
		node = p.webSearchNode(stream)
	case RouteSelf:
		node = p.selfNode
	default:
		node = p.chatNode(stream)
	}

	out, err := node(ctx, st)
	if err != nil {
		return st, err
	}

	p.cfg.Logger.Debug("pipeline completed",
		zap.String("route", out.Service),
		zap.Int("input_tokens", out.InputTokens),
		zap.Int("output_tokens", out.OutputTokens),
		zap.Float64("response_time", out.ResponseTime),
	)
	return out, nil
}
