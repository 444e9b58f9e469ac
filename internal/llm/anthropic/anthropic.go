package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/akgaur12/converse/pkg/llm"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.anthropic.com"

// Compile-time interface guards.
var (
	_ llm.Provider       = (*Provider)(nil)
	_ llm.HealthReporter = (*Provider)(nil)
)

// Provider implements llm.Provider for Anthropic using its Messages API.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	cfg        Config
	logger     *zap.Logger
}

// New creates an Anthropic provider.
func New(cfg Config, logger *zap.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}

	return &Provider{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Generate creates a completion from a single prompt.
func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.CallOption) (*llm.Response, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// Chat creates a completion from a conversation history. System messages are
// lifted into the top-level system field the Messages API expects.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	if len(messages) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "messages must not be empty", nil)
	}

	cfg := llm.ApplyOptions(opts...)

	model := cfg.Model
	if model == "" {
		model = p.cfg.Model
	}

	var system strings.Builder
	apiMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}
		apiMessages = append(apiMessages, chatMessage{Role: m.Role, Content: m.Content})
	}

	req := messagesRequest{
		Model:       model,
		Messages:    apiMessages,
		System:      system.String(),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stream:      cfg.StreamFunc != nil,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal messages request: %w", err)
	}

	respBody, err := p.doPost(ctx, "/v1/messages", body)
	if err != nil {
		return nil, mapError(err)
	}
	defer respBody.Close()

	if cfg.StreamFunc != nil {
		return p.readStream(ctx, respBody, model, cfg.StreamFunc)
	}

	raw, err := io.ReadAll(respBody)
	if err != nil {
		return nil, fmt.Errorf("read messages response: %w", err)
	}

	resp := llm.ParseRaw(llm.KindAnthropic, raw)
	if resp.Model == "" {
		resp.Model = model
	}
	return resp, nil
}

// readStream consumes an SSE event stream, forwarding text deltas to fn.
func (p *Provider) readStream(ctx context.Context, body io.Reader, model string, fn func(ctx context.Context, chunk []byte) error) (*llm.Response, error) {
	var (
		content   strings.Builder
		reasoning strings.Builder
		usage     llm.Usage
		done      = true
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "content_block_delta":
			switch ev.Delta.Type {
			case "text_delta":
				content.WriteString(ev.Delta.Text)
				if err := fn(ctx, []byte(ev.Delta.Text)); err != nil {
					return nil, err
				}
			case "thinking_delta":
				reasoning.WriteString(ev.Delta.Thinking)
			}
		case "message_start":
			if ev.Message != nil {
				usage.PromptTokens = ev.Message.Usage.InputTokens
				if ev.Message.Model != "" {
					model = ev.Message.Model
				}
			}
		case "message_delta":
			usage.CompletionTokens = ev.Usage.OutputTokens
			if ev.Delta.StopReason == "max_tokens" {
				done = false
			}
		case "error":
			return nil, mapError(&anthropicStatusError{
				StatusCode: http.StatusInternalServerError,
				Type:       ev.Error.Type,
				Message:    ev.Error.Message,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return &llm.Response{
		Content:   content.String(),
		Reasoning: reasoning.String(),
		Model:     model,
		Usage:     usage,
		Done:      done,
	}, nil
}

// Heartbeat checks whether the Anthropic API is reachable by listing models.
func (p *Provider) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return mapError(err)
	}
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return mapError(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mapError(&anthropicStatusError{StatusCode: resp.StatusCode, Message: "heartbeat failed"})
	}
	return nil
}

// ListModels returns the available Anthropic model IDs.
func (p *Provider) ListModels(_ context.Context) ([]string, error) {
	return []string{
		"claude-sonnet-4-5-20250929",
		"claude-haiku-4-5-20251001",
		"claude-opus-4-6",
	}, nil
}

// doPost sends an authenticated POST request and returns the response body.
func (p *Provider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseStatusError(resp)
	}

	return resp.Body, nil
}

// parseStatusError reads an error response body.
func parseStatusError(resp *http.Response) *anthropicStatusError {
	var errResp struct {
		Type  string `json:"type"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil || json.Unmarshal(data, &errResp) != nil {
		return &anthropicStatusError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	msg := errResp.Error.Message
	if msg == "" {
		msg = resp.Status
	}
	return &anthropicStatusError{
		StatusCode: resp.StatusCode,
		Type:       errResp.Error.Type,
		Message:    msg,
	}
}

// --- Anthropic Messages API types (internal) ---

type messagesRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		Thinking   string `json:"thinking"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Message *struct {
		Model string `json:"model"`
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
