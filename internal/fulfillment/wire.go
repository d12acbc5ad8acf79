package fulfillment

import (
	"strconv"
	"strings"
)

// WebhookRequest is the subset of a Dialogflow ES fulfillment request the
// webhook reads.
type WebhookRequest struct {
	ResponseID                  string          `json:"responseId"`
	Session                     string          `json:"session"`
	QueryResult                 QueryResult     `json:"queryResult"`
	OriginalDetectIntentRequest OriginalRequest `json:"originalDetectIntentRequest"`
}

// QueryResult carries the matched intent and the user's utterance.
type QueryResult struct {
	QueryText      string    `json:"queryText"`
	LanguageCode   string    `json:"languageCode"`
	Intent         Intent    `json:"intent"`
	OutputContexts []Context `json:"outputContexts"`
}

// Intent identifies the matched intent.
type Intent struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// Context is a Dialogflow output context.
type Context struct {
	Name          string         `json:"name"`
	LifespanCount int            `json:"lifespanCount,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// OriginalRequest is the integration-specific envelope around the query.
type OriginalRequest struct {
	Source  string  `json:"source"`
	Payload Payload `json:"payload"`
}

// Payload holds integration fields. userId may arrive as a string or a number.
type Payload struct {
	UserID any `json:"userId"`
}

// userID renders the payload user id as a string, or "" when absent or of
// an unsupported type.
func (p Payload) userID() string {
	switch v := p.UserID.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// WebhookResponse is the fulfillment reply.
type WebhookResponse struct {
	FulfillmentText    string      `json:"fulfillmentText"`
	OutputContexts     []Context   `json:"outputContexts,omitempty"`
	FollowupEventInput *EventInput `json:"followupEventInput,omitempty"`
}

// EventInput triggers a follow-up intent by event name.
type EventInput struct {
	Name         string         `json:"name"`
	LanguageCode string         `json:"languageCode,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}
