package fulfillment

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/security"
)

// Config holds the fulfillment.dialogflow module settings.
type Config struct {
	// Path is the route the gateway mounts the webhook on.
	Path string `yaml:"path"`

	// DefaultUserID is used when the request carries no user id.
	DefaultUserID string `yaml:"default_user_id"`

	// MaxInputChars silently truncates longer utterances (in runes).
	MaxInputChars int `yaml:"max_input_chars"`

	// MaxBodyBytes caps the request body size.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// MaxTurns bounds each in-memory history. Ignored when a persistent
	// store module provides the conversation store.
	MaxTurns int `yaml:"max_turns"`

	// MaxUsers caps in-memory users, evicting the least recently active.
	// Zero means unlimited.
	MaxUsers int `yaml:"max_users"`

	// IdleTTL is how long a conversation survives without new messages.
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// CleanupSchedule is the cron expression for idle eviction.
	CleanupSchedule string `yaml:"cleanup_schedule"`

	// ProviderTimeout bounds the completion call.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	// Knowledge is the base system prompt. KnowledgeFile, when set, is read
	// instead.
	Knowledge     string `yaml:"knowledge"`
	KnowledgeFile string `yaml:"knowledge_file"`

	// Intents maps intent display names to instructions placed before the
	// base prompt.
	Intents map[string]string `yaml:"intents"`

	Followups FollowupConfig           `yaml:"followups"`
	RateLimit security.RateLimitConfig `yaml:"rate_limit"`
	Replies   Replies                  `yaml:"replies"`
}

// FollowupConfig lists the scripted follow-up rules.
type FollowupConfig struct {
	Contexts []ContextRule `yaml:"contexts"`
	Events   []EventRule   `yaml:"events"`
}

// ContextRule sets an output context, and optionally appends a scripted
// question, after a generated reply for Intent.
type ContextRule struct {
	Intent   string `yaml:"intent"`
	Context  string `yaml:"context"`
	Lifespan int    `yaml:"lifespan"`
	Question string `yaml:"question"`
}

// EventRule triggers Event when the request carries an active context
// named Context.
type EventRule struct {
	Context      string `yaml:"context"`
	Event        string `yaml:"event"`
	LanguageCode string `yaml:"language_code"`
}

func (c *Config) defaults() {
	if c.Path == "" {
		c.Path = "/webhook"
	}
	if c.DefaultUserID == "" {
		c.DefaultUserID = "anonymous"
	}
	if c.MaxInputChars == 0 {
		c.MaxInputChars = 500
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 64 << 10
	}
	if c.MaxTurns == 0 {
		c.MaxTurns = conversation.DefaultMaxTurns
	}
	if c.IdleTTL == 0 {
		c.IdleTTL = 24 * time.Hour
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = "*/5 * * * *"
	}
	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = 30 * time.Second
	}
	for i := range c.Followups.Contexts {
		if c.Followups.Contexts[i].Lifespan == 0 {
			c.Followups.Contexts[i].Lifespan = 1
		}
	}
	c.Replies = c.Replies.withDefaults()
}

// loadKnowledge resolves the base prompt from KnowledgeFile if set.
func (c *Config) loadKnowledge() error {
	if c.KnowledgeFile == "" {
		return nil
	}
	raw, err := os.ReadFile(c.KnowledgeFile)
	if err != nil {
		return fmt.Errorf("fulfillment: reading knowledge_file: %w", err)
	}
	c.Knowledge = string(raw)
	return nil
}

func (c *Config) validate() error {
	var errs []error
	if !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, fmt.Errorf("fulfillment: path %q must start with /", c.Path))
	}
	if strings.TrimSpace(c.Knowledge) == "" {
		errs = append(errs, errors.New("fulfillment: knowledge or knowledge_file is required"))
	}
	if c.MaxInputChars < 0 {
		errs = append(errs, errors.New("fulfillment: max_input_chars must not be negative"))
	}
	if c.MaxTurns < 0 {
		errs = append(errs, errors.New("fulfillment: max_turns must not be negative"))
	}
	if c.MaxUsers < 0 {
		errs = append(errs, errors.New("fulfillment: max_users must not be negative"))
	}
	if c.IdleTTL < 0 {
		errs = append(errs, errors.New("fulfillment: idle_ttl must not be negative"))
	}
	if c.ProviderTimeout < 0 {
		errs = append(errs, errors.New("fulfillment: provider_timeout must not be negative"))
	}
	if c.RateLimit.MessagesPerMin < 0 {
		errs = append(errs, errors.New("fulfillment: rate_limit.messages_per_min must not be negative"))
	}
	if strings.Count(c.Replies.StatusCode, "%d") != 1 {
		errs = append(errs, errors.New("fulfillment: replies.status_code must contain exactly one %d"))
	}
	for i, r := range c.Followups.Contexts {
		if r.Intent == "" || r.Context == "" {
			errs = append(errs, fmt.Errorf("fulfillment: followups.contexts[%d]: intent and context are required", i))
		}
		if r.Lifespan < 0 {
			errs = append(errs, fmt.Errorf("fulfillment: followups.contexts[%d]: lifespan must not be negative", i))
		}
	}
	for i, r := range c.Followups.Events {
		if r.Context == "" || r.Event == "" {
			errs = append(errs, fmt.Errorf("fulfillment: followups.events[%d]: context and event are required", i))
		}
	}
	return errors.Join(errs...)
}
