package anthropic

import "time"

// Config holds the Anthropic provider configuration.
type Config struct {
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns sensible defaults for Anthropic.
func DefaultConfig() Config {
	return Config{
		Model:   "claude-sonnet-4-5-20250929",
		Timeout: 2 * time.Minute,
	}
}
