package gateway

import (
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/security"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind    string        `yaml:"bind"`
	Auth    AuthConfig    `yaml:"auth"`
	Webhook WebhookConfig `yaml:"webhook"`

	// AuthRateLimit bounds admin auth attempts per client address.
	AuthRateLimit security.RateLimitConfig `yaml:"auth_rate_limit"`

	// WriteTimeout must exceed the fulfillment provider timeout, or replies
	// to slow completions are cut off.
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:5000"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 45 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.AuthRateLimit.MessagesPerMin == 0 {
		c.AuthRateLimit.MessagesPerMin = 30
	}
	if c.Webhook.Secret != "" && c.Webhook.Header == "" {
		c.Webhook.Header = "X-Webhook-Secret"
	}
}

// AuthConfig configures authentication for admin endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// WebhookConfig protects the fulfillment route with a shared secret sent
// by Dialogflow as a custom header.
type WebhookConfig struct {
	Header string `yaml:"header"`
	Secret string `yaml:"secret"`
}
