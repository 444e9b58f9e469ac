package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akgaur12/converse/pkg/llm"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T, serverURL string, mutate ...func(*Config)) *Provider {
	t.Helper()
	cfg := Config{
		BaseURL: serverURL,
		Model:   "test-model",
		APIKey:  "test-key",
		Timeout: 10 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	p, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// mockBackend returns an httptest server speaking the chat completions API.
// The last received request body is stored in gotBody for assertions.
func mockBackend(t *testing.T, gotBody *chatRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if gotBody.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n")
			fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":7,\"completion_tokens\":2,\"total_tokens\":9}}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"model": %q,
			"choices": [{"message": {"role": "assistant", "content": "Hello world"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
		}`, gotBody.Model)
	})

	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": [{"id": "llama-3.3-70b-versatile"}, {"id": "gemma2-9b-it"}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for missing base URL")
	}
}

func TestChat_Success(t *testing.T) {
	var got chatRequest
	srv := mockBackend(t, &got)
	p := newTestProvider(t, srv.URL)

	resp, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "Be concise."},
		{Role: llm.RoleUser, Content: "Say hello"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello world")
	}
	if resp.Model != "test-model" {
		t.Errorf("Model = %q, want %q", resp.Model, "test-model")
	}
	if resp.Usage.PromptTokens != 7 || resp.Usage.CompletionTokens != 2 {
		t.Errorf("Usage = %+v, want 7/2", resp.Usage)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("request messages = %+v", got.Messages)
	}
	if got.Stream {
		t.Error("Stream = true, want false for blocking call")
	}
}

func TestChat_EmptyMessages(t *testing.T) {
	var got chatRequest
	srv := mockBackend(t, &got)
	p := newTestProvider(t, srv.URL)

	_, err := p.Chat(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestGenerate_WithModelOption(t *testing.T) {
	var got chatRequest
	srv := mockBackend(t, &got)
	p := newTestProvider(t, srv.URL)

	resp, err := p.Generate(context.Background(), "Hi", llm.WithModel("custom-model"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Model != "custom-model" {
		t.Errorf("request model = %q, want custom-model", got.Model)
	}
	if resp.Model != "custom-model" {
		t.Errorf("Model = %q, want custom-model", resp.Model)
	}
}

func TestChat_ReasoningEffortPassthrough(t *testing.T) {
	var got chatRequest
	srv := mockBackend(t, &got)
	p := newTestProvider(t, srv.URL, func(c *Config) { c.ReasoningEffort = "low" })

	if _, err := p.Generate(context.Background(), "Hi"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.ReasoningEffort != "low" {
		t.Errorf("reasoning_effort = %q, want low", got.ReasoningEffort)
	}
}

func TestChat_Streaming(t *testing.T) {
	var got chatRequest
	srv := mockBackend(t, &got)
	p := newTestProvider(t, srv.URL)

	var chunks []string
	resp, err := p.Generate(context.Background(), "Say hello",
		llm.WithStreamFunc(func(_ context.Context, chunk []byte) error {
			chunks = append(chunks, string(chunk))
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !got.Stream {
		t.Error("Stream = false, want true")
	}
	if got.StreamOptions == nil || !got.StreamOptions.IncludeUsage {
		t.Error("stream_options.include_usage not requested")
	}
	if want := []string{"Hello", " world"}; len(chunks) != 2 || chunks[0] != want[0] || chunks[1] != want[1] {
		t.Errorf("chunks = %v, want %v", chunks, want)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello world")
	}
	if resp.Usage.TotalTokens != 9 {
		t.Errorf("TotalTokens = %d, want 9 (from final usage chunk)", resp.Usage.TotalTokens)
	}
	if !resp.Done {
		t.Error("Done = false, want true")
	}
}

func TestChat_StreamCallbackError(t *testing.T) {
	var got chatRequest
	srv := mockBackend(t, &got)
	p := newTestProvider(t, srv.URL)

	wantErr := fmt.Errorf("client went away")
	_, err := p.Generate(context.Background(), "Say hello",
		llm.WithStreamFunc(func(context.Context, []byte) error { return wantErr }),
	)
	if err == nil || !strings.Contains(err.Error(), "client went away") {
		t.Fatalf("error = %v, want callback error", err)
	}
}

func TestChat_SendsBearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	t.Cleanup(srv.Close)

	p := newTestProvider(t, srv.URL)
	if _, err := p.Generate(context.Background(), "Hi"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
}

func TestChat_NoAuthHeaderWithoutKey(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	t.Cleanup(srv.Close)

	// vLLM-style local server without authentication.
	p := newTestProvider(t, srv.URL, func(c *Config) { c.APIKey = "" })
	if _, err := p.Generate(context.Background(), "Hi"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if sawAuth {
		t.Error("Authorization header sent despite empty API key")
	}
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "401 maps to authentication error",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`,
			check:  llm.IsAuthenticationError,
		},
		{
			name:   "429 maps to rate limit error",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached","type":"tokens"}}`,
			check:  llm.IsRateLimitError,
		},
		{
			name:   "404 model maps to model not found",
			status: http.StatusNotFound,
			body:   `{"error":{"message":"The model 'nope' does not exist","type":"invalid_request_error"}}`,
			check:  llm.IsModelNotFoundError,
		},
		{
			name:   "500 maps to server error",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"upstream exploded","type":"server_error"}}`,
			check:  llm.IsServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			p := newTestProvider(t, srv.URL)
			_, err := p.Generate(context.Background(), "Hi")
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("error %v did not match expected classification", err)
			}
		})
	}
}

func TestHeartbeat_Success(t *testing.T) {
	var got chatRequest
	srv := mockBackend(t, &got)
	p := newTestProvider(t, srv.URL)

	if err := p.Heartbeat(context.Background()); err != nil {
		t.Errorf("Heartbeat() error = %v", err)
	}
}

func TestHeartbeat_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p := newTestProvider(t, srv.URL)
	if err := p.Heartbeat(context.Background()); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestListModels_Success(t *testing.T) {
	var got chatRequest
	srv := mockBackend(t, &got)
	p := newTestProvider(t, srv.URL)

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 || models[0] != "llama-3.3-70b-versatile" {
		t.Errorf("models = %v", models)
	}
}
