package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/converse.db")

	// Plugin defaults
	v.SetDefault("plugins.llm.provider", "ollama")
	v.SetDefault("plugins.llm.ollama.url", "http://localhost:11434")
	v.SetDefault("plugins.llm.ollama.model", "llama3.2")
	v.SetDefault("plugins.llm.ollama.timeout", "5m")
	v.SetDefault("plugins.websearch.enabled", true)
	v.SetDefault("plugins.websearch.region", "in-en")
	v.SetDefault("plugins.websearch.max_results", 5)
	v.SetDefault("plugins.websearch.timeout", "10s")
	v.SetDefault("plugins.chat.enabled", true)
	v.SetDefault("plugins.chat.services", []string{"chat", "web_search"})
	v.SetDefault("plugins.chat.history_limit", 5)
	v.SetDefault("plugins.chat.assistant_name", "Converse")
	v.SetDefault("plugins.chat.title_max_len", 60)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("converse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/converse")
	}

	// Environment variable support: CONVERSE_SERVER_PORT=9090
	v.SetEnvPrefix("CONVERSE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
