package openai

import "time"

// Config holds the configuration for OpenAI and OpenAI-compatible backends
// (Groq, vLLM). BaseURL selects the backend; APIKey may be empty for
// local servers that do not authenticate.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`

	// ReasoningEffort is passed through to backends that accept it
	// (Groq reasoning models). Empty means omit.
	ReasoningEffort string `mapstructure:"reasoning_effort"`
}

// DefaultConfig returns sensible defaults for OpenAI.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.openai.com",
		Model:   "gpt-4o-mini",
		Timeout: 2 * time.Minute,
	}
}

// GroqConfig returns defaults for Groq's OpenAI-compatible API.
func GroqConfig() Config {
	return Config{
		BaseURL: "https://api.groq.com/openai",
		Model:   "llama-3.3-70b-versatile",
		Timeout: 2 * time.Minute,
	}
}

// VLLMConfig returns defaults for a local vLLM server.
func VLLMConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Model:   "meta-llama/Llama-3.2-3B-Instruct",
		Timeout: 5 * time.Minute,
	}
}
