package llmtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/akgaur12/converse/pkg/llm"
)

// Fake is a scriptable in-memory llm.Provider for tests. It replies with
// Reply (default "ok"), records every call, and honors WithStreamFunc by
// emitting the reply in word-sized chunks.
type Fake struct {
	mu sync.Mutex

	// Reply is the content returned by Generate and Chat.
	Reply string
	// Err, if set, is returned by every call.
	Err error
	// Usage is attached to every response.
	Usage llm.Usage
	// ChunkDelay, if set, pauses before each streamed chunk to simulate
	// slow generation.
	ChunkDelay time.Duration

	// GenerateCalls records each prompt passed to Generate.
	GenerateCalls []string
	// ChatCalls records each message list passed to Chat.
	ChatCalls [][]llm.Message
}

var _ llm.Provider = (*Fake)(nil)

// NewFake returns a Fake that replies with the given content.
func NewFake(reply string) *Fake {
	return &Fake{Reply: reply}
}

func (f *Fake) Generate(ctx context.Context, prompt string, opts ...llm.CallOption) (*llm.Response, error) {
	f.mu.Lock()
	f.GenerateCalls = append(f.GenerateCalls, prompt)
	f.mu.Unlock()
	return f.respond(ctx, opts)
}

func (f *Fake) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	if len(messages) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "messages must not be empty", nil)
	}
	f.mu.Lock()
	f.ChatCalls = append(f.ChatCalls, messages)
	f.mu.Unlock()
	return f.respond(ctx, opts)
}

func (f *Fake) respond(ctx context.Context, opts []llm.CallOption) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	cfg := llm.ApplyOptions(opts...)
	reply := f.Reply
	if reply == "" {
		reply = "ok"
	}
	if cfg.StreamFunc != nil {
		for _, word := range strings.SplitAfter(reply, " ") {
			if f.ChunkDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(f.ChunkDelay):
				}
			}
			if err := cfg.StreamFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}
	model := cfg.Model
	if model == "" {
		model = "fake-model"
	}
	return &llm.Response{
		Content: reply,
		Model:   model,
		Usage:   f.Usage,
		Done:    true,
	}, nil
}
