package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/danielfernandez00/mi-webhook/internal/provider"
)

// openAI wire types for JSON serialization.

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Usage   oaiUsage    `json:"usage"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// buildRequest converts a provider.CompletionRequest into an oaiRequest.
// Zero-valued request parameters fall back to the configured ones.
func buildRequest(cfg Config, req provider.CompletionRequest) oaiRequest {
	messages := make([]oaiMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = oaiMessage{Role: string(m.Role), Content: m.Content}
	}

	oai := oaiRequest{
		Model:       cfg.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if oai.MaxTokens == 0 {
		oai.MaxTokens = cfg.MaxTokens
	}
	if oai.Temperature == nil {
		oai.Temperature = cfg.Temperature
	}
	if oai.TopP == nil {
		oai.TopP = cfg.TopP
	}
	return oai
}

// parseResponse converts an oaiResponse into a provider.CompletionResponse.
// A response without choices or with blank content is malformed.
func parseResponse(resp oaiResponse) (provider.CompletionResponse, error) {
	if len(resp.Choices) == 0 {
		return provider.CompletionResponse{}, fmt.Errorf("%w: no choices", provider.ErrMalformedResponse)
	}

	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return provider.CompletionResponse{}, fmt.Errorf("%w: empty message content", provider.ErrMalformedResponse)
	}

	return provider.CompletionResponse{
		Content:      content,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage: provider.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// mapFinishReason converts an OpenAI finish_reason string to a provider.FinishReason.
func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "stop":
		return provider.FinishReasonStop
	case "length":
		return provider.FinishReasonLength
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReason(reason)
	}
}

// doRequest executes an HTTP POST to the chat completions endpoint.
// Transport failures, including the call deadline expiring, wrap
// provider.ErrProviderDown.
func (p *Provider) doRequest(ctx context.Context, body oaiRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.config.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", provider.ErrProviderDown, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}

	return resp, nil
}

// maxErrorBodySize caps how much of an error response body is read to prevent memory spikes.
const maxErrorBodySize = 4096

// handleErrorResponse turns a non-200 response into a *provider.StatusError.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &provider.StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
