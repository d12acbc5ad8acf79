// Package openaicompat provides an OpenAI-compatible LLM provider module.
// It works with any API that implements the OpenAI chat completions interface
// (OpenRouter, OpenAI, Groq, vLLM, LiteLLM, etc.) via a configurable base_url.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/core"
	"github.com/danielfernandez00/mi-webhook/internal/provider"
	"github.com/danielfernandez00/mi-webhook/internal/security"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// ServiceName is the service key under which the provider registers itself.
const ServiceName = "provider.default"

const tracerName = "github.com/danielfernandez00/mi-webhook/modules/provider/openai_compatible"

func init() {
	core.RegisterModule(&Provider{})
}

// Provider is an OpenAI-compatible LLM provider.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai_compatible",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger
	p.tracer = otel.Tracer(tracerName)

	if p.config.APIKey == "" && p.config.APIKeyEnv != "" {
		p.config.APIKey = os.Getenv(p.config.APIKeyEnv)
	}
	if redactor, ok := core.LookupService[*security.Redactor](ctx, security.RedactorService); ok {
		redactor.AddLiteral(p.config.APIKey)
	}

	p.client = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: p.config.Timeout,
		},
	}

	ctx.RegisterService(ServiceName, p)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// Complete implements provider.Provider. It makes exactly one attempt,
// bounded by the configured timeout.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (resp provider.CompletionResponse, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "chat.completions",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", p.config.Model),
			attribute.Int("llm.messages", len(req.Messages)),
		),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if code := provider.StatusCode(err); code != 0 {
				span.SetAttributes(attribute.Int("http.status_code", code))
			}
		} else {
			span.SetAttributes(
				attribute.Int("llm.tokens.prompt", resp.Usage.PromptTokens),
				attribute.Int("llm.tokens.completion", resp.Usage.CompletionTokens),
			)
		}
		span.End()
		p.logger.Debug("completion finished",
			"model", p.config.Model,
			"duration", time.Since(start),
			"error", err,
		)
	}()

	httpResp, err := p.doRequest(ctx, buildRequest(p.config, req))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer httpResp.Body.Close() //nolint:errcheck // best-effort close

	if httpResp.StatusCode != http.StatusOK {
		return provider.CompletionResponse{}, handleErrorResponse(httpResp)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&oaiResp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return provider.CompletionResponse{}, fmt.Errorf("%w: reading response: %w", provider.ErrProviderDown, ctxErr)
		}
		return provider.CompletionResponse{}, fmt.Errorf("%w: decode response: %w", provider.ErrMalformedResponse, err)
	}

	return parseResponse(oaiResp)
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// errMissingField returns a validation error for a missing required field.
func errMissingField(field string) error {
	return fmt.Errorf("provider.openai_compatible: %s is required", field)
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
	_ provider.Provider = (*Provider)(nil)
)
