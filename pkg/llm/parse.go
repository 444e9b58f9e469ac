package llm

import (
	"encoding/json"
	"strings"
)

// Kind identifies a provider wire format for ParseRaw dispatch.
type Kind string

// Known provider kinds. OpenAI-compatible backends (vLLM, Groq) share
// KindOpenAI; KindFlat covers backends that return content as a top-level
// attribute.
const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindOllama    Kind = "ollama"
	KindFlat      Kind = "flat"
)

// ParseRaw normalizes a provider's raw reply body into a Response.
// It is total: malformed or unknown-shaped input degrades to a best-effort
// generic extraction rather than failing, and absent usage counters default
// to zero. An empty Content is valid output.
func ParseRaw(kind Kind, raw []byte) *Response {
	switch kind {
	case KindOpenAI:
		if r, ok := parseOpenAI(raw); ok {
			return r
		}
	case KindAnthropic:
		if r, ok := parseAnthropic(raw); ok {
			return r
		}
	case KindOllama:
		if r, ok := parseOllama(raw); ok {
			return r
		}
	case KindFlat:
		if r, ok := parseFlat(raw); ok {
			return r
		}
	}
	return parseGeneric(raw)
}

func parseOpenAI(raw []byte) (*Response, bool) {
	var body struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content          string `json:"content"`
				ReasoningContent string `json:"reasoning_content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Choices) == 0 {
		return nil, false
	}
	choice := body.Choices[0]
	total := body.Usage.TotalTokens
	if total == 0 {
		total = body.Usage.PromptTokens + body.Usage.CompletionTokens
	}
	return &Response{
		Content:   choice.Message.Content,
		Reasoning: choice.Message.ReasoningContent,
		Model:     body.Model,
		Usage: Usage{
			PromptTokens:     body.Usage.PromptTokens,
			CompletionTokens: body.Usage.CompletionTokens,
			TotalTokens:      total,
		},
		Done: choice.FinishReason != "length",
	}, true
}

func parseAnthropic(raw []byte) (*Response, bool) {
	var body struct {
		Model   string `json:"model"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			Thinking string `json:"thinking"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Content == nil {
		return nil, false
	}
	var content, reasoning strings.Builder
	for _, block := range body.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "thinking":
			reasoning.WriteString(block.Thinking)
		}
	}
	return &Response{
		Content:   content.String(),
		Reasoning: reasoning.String(),
		Model:     body.Model,
		Usage: Usage{
			PromptTokens:     body.Usage.InputTokens,
			CompletionTokens: body.Usage.OutputTokens,
			TotalTokens:      body.Usage.InputTokens + body.Usage.OutputTokens,
		},
		Done: body.StopReason != "max_tokens",
	}, true
}

func parseOllama(raw []byte) (*Response, bool) {
	var body struct {
		Model   string `json:"model"`
		Message struct {
			Content  string `json:"content"`
			Thinking string `json:"thinking"`
		} `json:"message"`
		Response        string `json:"response"` // /api/generate shape
		Done            bool   `json:"done"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false
	}
	content := body.Message.Content
	if content == "" {
		content = body.Response
	}
	if content == "" && body.Model == "" {
		return nil, false
	}
	return &Response{
		Content:   content,
		Reasoning: body.Message.Thinking,
		Model:     body.Model,
		Usage: Usage{
			PromptTokens:     body.PromptEvalCount,
			CompletionTokens: body.EvalCount,
			TotalTokens:      body.PromptEvalCount + body.EvalCount,
		},
		Done: body.Done,
	}, true
}

func parseFlat(raw []byte) (*Response, bool) {
	var body struct {
		Model            string `json:"model"`
		Content          string `json:"content"`
		ReasoningContent string `json:"reasoning_content"`
		Usage            struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false
	}
	if body.Content == "" && body.Model == "" {
		return nil, false
	}
	return &Response{
		Content:   body.Content,
		Reasoning: body.ReasoningContent,
		Model:     body.Model,
		Usage: Usage{
			PromptTokens:     body.Usage.InputTokens,
			CompletionTokens: body.Usage.OutputTokens,
			TotalTokens:      body.Usage.InputTokens + body.Usage.OutputTokens,
		},
		Done: true,
	}, true
}

// parseGeneric is the last-resort extraction: a top-level content string
// if one exists, otherwise the whole reply coerced to a string.
func parseGeneric(raw []byte) *Response {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		if content, ok := body["content"].(string); ok {
			return &Response{Content: content, Done: true}
		}
	}
	return &Response{Content: string(raw), Done: true}
}
