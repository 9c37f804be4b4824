package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL     string
	WSURL      string
	UserID     string
	Token      string
	CookieName string
	CacheDB    string

	AssistantURL    string
	AssistantModel  string
	AssistantAPIKey string
	SystemPrompt    string

	HTTPTimeout time.Duration
	LogLevel    string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	cfg := &Config{
		APIURL:          getEnv("CHATTY_API_URL", "http://localhost:5001/api"),
		WSURL:           getEnv("CHATTY_WS_URL", "ws://localhost:5001/ws"),
		UserID:          os.Getenv("CHATTY_USER_ID"),
		Token:           os.Getenv("CHATTY_TOKEN"),
		CookieName:      getEnv("CHATTY_COOKIE", "jwt"),
		CacheDB:         getEnv("CHATTY_CACHE_DB", "chatty.db"),
		AssistantURL:    getEnv("ASSISTANT_URL", "https://openrouter.ai/api/v1/chat/completions"),
		AssistantModel:  getEnv("ASSISTANT_MODEL", "featherless/qwerky-72b:free"),
		AssistantAPIKey: os.Getenv("ASSISTANT_API_KEY"),
		SystemPrompt:    os.Getenv("ASSISTANT_SYSTEM_PROMPT"),
		HTTPTimeout:     timeout,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("CHATTY_USER_ID is required")
	}

	if c.Token == "" {
		return fmt.Errorf("CHATTY_TOKEN is required")
	}

	if c.APIURL == "" || c.WSURL == "" {
		return fmt.Errorf("CHATTY_API_URL and CHATTY_WS_URL must not be empty")
	}

	if c.AssistantModel == "" {
		return fmt.Errorf("ASSISTANT_MODEL must not be empty")
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP_TIMEOUT must not be negative")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
