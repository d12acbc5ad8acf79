package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielfernandez00/mi-webhook/internal/provider"
	"github.com/danielfernandez00/mi-webhook/internal/security"
)

// Outcome labels a finished request for metrics and logs.
type Outcome string

// Outcome values.
const (
	OutcomeOK                  Outcome = "ok"
	OutcomeValidation          Outcome = "validation"
	OutcomeRateLimited         Outcome = "rate_limited"
	OutcomeTransport           Outcome = "transport"
	OutcomeUnauthorized        Outcome = "unauthorized"
	OutcomeForbidden           Outcome = "forbidden"
	OutcomeProviderRateLimited Outcome = "provider_rate_limited"
	OutcomeBadRequest          Outcome = "bad_request"
	OutcomeStatus              Outcome = "status"
	OutcomeMalformed           Outcome = "malformed"
	OutcomeInternal            Outcome = "internal"
)

// Replies holds every user-facing text the webhook can send instead of a
// generated answer. Empty fields fall back to the Spanish defaults.
type Replies struct {
	EmptyInput     string `yaml:"empty_input"`
	InvalidRequest string `yaml:"invalid_request"`
	TooManyLocal   string `yaml:"too_many_local"`
	Unavailable    string `yaml:"unavailable"`
	Unauthorized   string `yaml:"unauthorized"`
	Forbidden      string `yaml:"forbidden"`
	RateLimited    string `yaml:"rate_limited"`
	BadRequest     string `yaml:"bad_request"`
	// StatusCode is a format string receiving the numeric status code.
	StatusCode string `yaml:"status_code"`
	Malformed  string `yaml:"malformed"`
	Internal   string `yaml:"internal"`
}

var defaultReplies = Replies{
	EmptyInput:     "No recibí ningún mensaje. ¿Puedes escribir tu pregunta?",
	InvalidRequest: "La solicitud no tiene un formato válido.",
	TooManyLocal:   "Estás enviando mensajes muy rápido. Espera un momento y vuelve a intentarlo.",
	Unavailable:    "El servicio no está disponible en este momento. Inténtalo de nuevo más tarde.",
	Unauthorized:   "No se pudo autenticar con el proveedor de IA. Revisa la clave de API.",
	Forbidden:      "El proveedor de IA denegó el acceso al modelo configurado.",
	RateLimited:    "Hay demasiadas solicitudes en este momento. Espera un momento y vuelve a intentarlo.",
	BadRequest:     "El proveedor de IA rechazó la solicitud.",
	StatusCode:     "El proveedor de IA devolvió el código %d.",
	Malformed:      "La respuesta del proveedor de IA no tiene la estructura esperada.",
	Internal:       "Ocurrió un error interno. Inténtalo de nuevo más tarde.",
}

// withDefaults fills empty fields from defaultReplies.
func (r Replies) withDefaults() Replies {
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&r.EmptyInput, defaultReplies.EmptyInput)
	fill(&r.InvalidRequest, defaultReplies.InvalidRequest)
	fill(&r.TooManyLocal, defaultReplies.TooManyLocal)
	fill(&r.Unavailable, defaultReplies.Unavailable)
	fill(&r.Unauthorized, defaultReplies.Unauthorized)
	fill(&r.Forbidden, defaultReplies.Forbidden)
	fill(&r.RateLimited, defaultReplies.RateLimited)
	fill(&r.BadRequest, defaultReplies.BadRequest)
	fill(&r.StatusCode, defaultReplies.StatusCode)
	fill(&r.Malformed, defaultReplies.Malformed)
	fill(&r.Internal, defaultReplies.Internal)
	return r
}

// describe maps a failure to the reply text and outcome label. Order
// matters: a status error also unwraps to its category sentinel.
func (r Replies) describe(err error) (string, Outcome) {
	switch {
	case errors.Is(err, security.ErrRateLimited):
		return r.TooManyLocal, OutcomeRateLimited
	case errors.Is(err, provider.ErrProviderDown),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return r.Unavailable, OutcomeTransport
	case errors.Is(err, provider.ErrUnauthorized):
		return r.Unauthorized, OutcomeUnauthorized
	case errors.Is(err, provider.ErrForbidden):
		return r.Forbidden, OutcomeForbidden
	case errors.Is(err, provider.ErrRateLimit):
		return r.RateLimited, OutcomeProviderRateLimited
	case errors.Is(err, provider.ErrBadRequest):
		return r.BadRequest, OutcomeBadRequest
	case errors.Is(err, provider.ErrUnexpectedStatus):
		return fmt.Sprintf(r.StatusCode, provider.StatusCode(err)), OutcomeStatus
	case errors.Is(err, provider.ErrMalformedResponse):
		return r.Malformed, OutcomeMalformed
	default:
		return r.Internal, OutcomeInternal
	}
}
