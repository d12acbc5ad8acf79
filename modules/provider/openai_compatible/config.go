package openaicompat

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// preset carries the endpoint defaults for a known hosted API.
type preset struct {
	baseURL   string
	apiKeyEnv string
	model     string
}

var presets = map[string]preset{
	"openrouter": {
		baseURL:   "https://openrouter.ai/api/v1",
		apiKeyEnv: "OPENROUTER_API_KEY",
		model:     "openai/gpt-3.5-turbo",
	},
	"openai": {
		baseURL:   "https://api.openai.com/v1",
		apiKeyEnv: "OPENAI_API_KEY",
		model:     "gpt-3.5-turbo",
	},
}

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// Preset fills base_url, api_key_env and model for a known API
	// ("openrouter" or "openai"). Explicit fields win.
	Preset string `yaml:"preset"`

	BaseURL     string            `yaml:"base_url"`
	APIKey      string            `yaml:"api_key"`
	APIKeyEnv   string            `yaml:"api_key_env"`
	Model       string            `yaml:"model"`
	MaxTokens   int               `yaml:"max_tokens"`
	Temperature *float64          `yaml:"temperature"`
	TopP        *float64          `yaml:"top_p"`
	Headers     map[string]string `yaml:"headers"`

	// Timeout bounds one completion call end to end.
	Timeout time.Duration `yaml:"timeout"`
}

// defaults sets default values for unset fields.
func (c *Config) defaults() {
	if p, ok := presets[c.Preset]; ok {
		if c.BaseURL == "" {
			c.BaseURL = p.baseURL
		}
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = p.apiKeyEnv
		}
		if c.Model == "" {
			c.Model = p.model
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 300
	}
	if c.Temperature == nil {
		c.Temperature = ptr(0.7)
	}
	if c.TopP == nil {
		c.TopP = ptr(1.0)
	}
	if c.BaseURL != "" {
		c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	}
}

// validate returns an error if required fields are missing.
func (c *Config) validate() error {
	if c.Preset != "" {
		if _, ok := presets[c.Preset]; !ok {
			return fmt.Errorf("provider.openai_compatible: unknown preset %q", c.Preset)
		}
	}
	if c.BaseURL == "" {
		return errMissingField("base_url")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.openai_compatible: base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.openai_compatible: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.APIKey == "" {
		if c.APIKeyEnv != "" {
			return fmt.Errorf("provider.openai_compatible: environment variable %s is empty", c.APIKeyEnv)
		}
		return fmt.Errorf("provider.openai_compatible: one of api_key or api_key_env is required")
	}
	if c.Model == "" {
		return errMissingField("model")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider.openai_compatible: max_tokens must not be negative")
	}
	if *c.Temperature < 0 || *c.Temperature > 2 {
		return fmt.Errorf("provider.openai_compatible: temperature must be between 0 and 2")
	}
	if *c.TopP <= 0 || *c.TopP > 1 {
		return fmt.Errorf("provider.openai_compatible: top_p must be in (0, 1]")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("provider.openai_compatible: timeout must not be negative")
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
