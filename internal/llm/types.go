package llm

// LLMConfigResponse is the response for GET /llm/config.
// API keys are never echoed back; KeySet reports whether one is configured.
type LLMConfigResponse struct {
	Provider string `json:"provider"` // "ollama", "vllm", "openai", "groq", "anthropic"
	Model    string `json:"model"`
	URL      string `json:"url,omitempty"` // ollama, vllm, openai, groq
	KeySet   bool   `json:"key_set"`
}

// LLMConfigRequest is the request body for PUT /llm/config.
type LLMConfigRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	URL      string `json:"url,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// LLMTestResponse is the response for POST /llm/test.
type LLMTestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}
