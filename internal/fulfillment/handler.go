package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/prompt"
	"github.com/danielfernandez00/mi-webhook/internal/provider"
	"github.com/danielfernandez00/mi-webhook/internal/security"
	"github.com/google/uuid"
)

var (
	errEmptyBody  = errors.New("fulfillment: empty request body")
	errEmptyInput = errors.New("fulfillment: empty queryText")
)

// Input is a normalized webhook request.
type Input struct {
	UserID         string
	Text           string
	Intent         string
	Session        string
	LanguageCode   string
	ActiveContexts []string
	Truncated      bool
}

// settings is the reloadable part of the handler.
type settings struct {
	cfg       Config
	assembler *prompt.Assembler
}

// Deps are the collaborators a Handler needs.
type Deps struct {
	Store    conversation.Store
	Provider provider.Provider
	Recorder Recorder
	Logger   *slog.Logger
}

// Handler serves the fulfillment webhook.
type Handler struct {
	settings atomic.Pointer[settings]
	store    conversation.Store
	lanes    *conversation.LaneLock
	limiter  *security.RateLimiter
	provider provider.Provider
	metrics  Recorder
	logger   *slog.Logger
}

// NewHandler validates cfg and builds a Handler. cfg must already have
// defaults applied and knowledge loaded.
func NewHandler(cfg Config, deps Deps) (*Handler, error) {
	if deps.Store == nil {
		return nil, errors.New("fulfillment: conversation store is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("fulfillment: provider is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	h := &Handler{
		store:    deps.Store,
		lanes:    conversation.NewLaneLock(),
		limiter:  security.NewRateLimiter(cfg.RateLimit),
		provider: deps.Provider,
		metrics:  deps.Recorder,
		logger:   deps.Logger,
	}
	h.settings.Store(h.buildSettings(cfg))
	return h, nil
}

func (h *Handler) buildSettings(cfg Config) *settings {
	intents := prompt.NewIntentTable(cfg.Intents)
	return &settings{
		cfg:       cfg,
		assembler: prompt.NewAssembler(cfg.Knowledge, intents, h.store),
	}
}

// update swaps in a new configuration. Store, lanes and limiter are kept.
func (h *Handler) update(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	h.settings.Store(h.buildSettings(cfg))
	return nil
}

// Path returns the route the webhook is served on.
func (h *Handler) Path() string { return h.settings.Load().cfg.Path }

// Lanes returns the per-user lock, for cleanup.
func (h *Handler) Lanes() *conversation.LaneLock { return h.lanes }

// Limiter returns the per-user rate limiter, for cleanup.
func (h *Handler) Limiter() *security.RateLimiter { return h.limiter }

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Load()
	logger := h.logger.With("request_id", uuid.NewString())

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("fulfillment: panic while handling request",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.metrics.ObserveRequest(string(OutcomeInternal))
			writeResponse(w, logger, http.StatusOK, WebhookResponse{FulfillmentText: s.cfg.Replies.Internal})
		}
	}()

	req, err := decodeRequest(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		text := s.cfg.Replies.InvalidRequest
		if errors.Is(err, errEmptyBody) {
			text = s.cfg.Replies.EmptyInput
		}
		logger.Warn("fulfillment: rejected request", "error", err)
		h.metrics.ObserveRequest(string(OutcomeValidation))
		writeResponse(w, logger, http.StatusBadRequest, WebhookResponse{FulfillmentText: text})
		return
	}

	in, err := normalize(req, s.cfg)
	if err != nil {
		logger.Warn("fulfillment: rejected request", "error", err)
		h.metrics.ObserveRequest(string(OutcomeValidation))
		writeResponse(w, logger, http.StatusBadRequest, WebhookResponse{FulfillmentText: s.cfg.Replies.EmptyInput})
		return
	}

	logger = logger.With("user_id", in.UserID, "intent", in.Intent)
	if in.Truncated {
		logger.Debug("fulfillment: utterance truncated", "max_chars", s.cfg.MaxInputChars)
	}

	if err := h.limiter.Allow(in.UserID); err != nil {
		text, outcome := s.cfg.Replies.describe(err)
		logger.Warn("fulfillment: user rate limited")
		h.metrics.ObserveRequest(string(outcome))
		writeResponse(w, logger, http.StatusOK, WebhookResponse{FulfillmentText: text})
		return
	}

	resp, outcome := h.fulfill(r.Context(), s, in, logger)
	h.metrics.ObserveRequest(string(outcome))
	writeResponse(w, logger, http.StatusOK, resp)
}

// fulfill runs one conversation step for in while holding the user's lane:
// store the utterance, assemble the prompt, call the provider, and store
// the reply. Failures become reply texts; nothing is returned as an error.
func (h *Handler) fulfill(ctx context.Context, s *settings, in Input, logger *slog.Logger) (WebhookResponse, Outcome) {
	fail := func(stage string, err error) (WebhookResponse, Outcome) {
		text, outcome := s.cfg.Replies.describe(err)
		level := slog.LevelWarn
		if outcome == OutcomeInternal {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "fulfillment: request failed",
			"stage", stage,
			"outcome", string(outcome),
			"error", err,
		)
		return WebhookResponse{FulfillmentText: text}, outcome
	}

	if err := h.lanes.Acquire(ctx, in.UserID); err != nil {
		return fail("lane", fmt.Errorf("waiting for user lane: %w", err))
	}
	defer h.lanes.Release(in.UserID)

	if err := h.store.Append(in.UserID, conversation.UserTurn(in.Text)); err != nil {
		return fail("store_user_turn", fmt.Errorf("appending user turn: %w", err))
	}

	msgs, err := s.assembler.Assemble(in.Intent, in.UserID)
	if err != nil {
		return fail("assemble", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	completion, err := h.provider.Complete(callCtx, provider.CompletionRequest{Messages: msgs})
	h.metrics.ObserveProvider(time.Since(start), completion.Usage, err)
	if err != nil {
		return fail("provider", err)
	}

	reply := completion.Content
	resp := WebhookResponse{FulfillmentText: reply}
	if fired := applyFollowups(s.cfg.Followups, in, reply, &resp); fired != "" {
		logger.Debug("fulfillment: follow-up applied", "rule", fired)
	}

	// The stored assistant turn is exactly what the user was shown.
	if err := h.store.Append(in.UserID, conversation.AssistantTurn(resp.FulfillmentText)); err != nil {
		logger.Error("fulfillment: storing assistant turn failed", "error", err)
	}

	logger.Info("fulfillment: replied",
		"duration", time.Since(start),
		"tokens", completion.Usage.TotalTokens,
	)
	return resp, OutcomeOK
}

func decodeRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (WebhookRequest, error) {
	var req WebhookRequest
	if r.Body == nil {
		return req, errEmptyBody
	}
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, errEmptyBody
		}
		return req, fmt.Errorf("fulfillment: decoding request: %w", err)
	}
	return req, nil
}

// normalize extracts and cleans the fields the handler uses.
func normalize(req WebhookRequest, cfg Config) (Input, error) {
	text := strings.TrimSpace(req.QueryResult.QueryText)
	if text == "" {
		return Input{}, errEmptyInput
	}

	in := Input{
		UserID:       req.OriginalDetectIntentRequest.Payload.userID(),
		Intent:       strings.TrimSpace(req.QueryResult.Intent.DisplayName),
		Session:      req.Session,
		LanguageCode: req.QueryResult.LanguageCode,
	}
	if in.UserID == "" {
		in.UserID = cfg.DefaultUserID
	}
	if cfg.MaxInputChars > 0 && utf8.RuneCountInString(text) > cfg.MaxInputChars {
		text = string([]rune(text)[:cfg.MaxInputChars])
		in.Truncated = true
	}
	in.Text = text

	for _, c := range req.QueryResult.OutputContexts {
		if c.Name != "" {
			in.ActiveContexts = append(in.ActiveContexts, c.Name)
		}
	}
	return in, nil
}

func writeResponse(w http.ResponseWriter, logger *slog.Logger, status int, resp WebhookResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("fulfillment: writing response failed", "error", err)
	}
}
