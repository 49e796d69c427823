package openai

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the openai-compatible provider settings.
type Config struct {
	// APIKey authenticates against the completions endpoint. Required.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier sent with every request.
	Model string `yaml:"model"`

	// BaseURL is the API root, without the /chat/completions suffix.
	BaseURL string `yaml:"base_url"`

	// MaxTokens caps the completion length. Zero omits the field.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature and TopP are passed through when non-zero.
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`

	// Timeout bounds non-streaming requests, e.g. "60s".
	Timeout string `yaml:"timeout"`
}

func defaultConfig() Config {
	return Config{
		Model:       "qwen-plus",
		BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
		MaxTokens:   8000,
		Temperature: 1,
		Timeout:     "60s",
	}
}

func (c Config) validate() error {
	if c.APIKey == "" {
		return errors.New("api_key is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %g", c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be in [0, 1], got %g", c.TopP)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
