package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/Nanlep/Fiscana-sub000/internal/observability"
	"github.com/Nanlep/Fiscana-sub000/internal/platform/httpx"
	"github.com/Nanlep/Fiscana-sub000/internal/shared"
)

const maxBodyBytes = 1 << 20

// Handler exposes the funding webhook endpoint.
type Handler struct {
	logger    *slog.Logger
	processor *Processor
	metrics   *observability.Metrics
}

// NewHandler constructs the handler. metrics may be nil in tests.
func NewHandler(logger *slog.Logger, processor *Processor, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, processor: processor, metrics: metrics}
}

// MountRoutes attaches the webhook route with its own rate limit so a
// misbehaving provider cannot starve the API surface.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(120, time.Minute))
		r.Post("/webhooks/funding", h.Receive)
	})
}

// Receive handles one delivery. The response contract distinguishes forgery
// from garbage: a bad signature gets 401 so the sender stops retrying a
// forged request, while a verified but malformed payload gets 200 with a
// logged warning because retrying it can never succeed.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.count(string(OutcomeRejected))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unable to read request body")
		return
	}

	signature := r.Header.Get("hook-signature")
	if signature == "" {
		signature = r.Header.Get("shared-key")
	}

	result, err := h.processor.Process(r.Context(), body, signature)
	h.count(string(result.Outcome))

	switch {
	case err == nil && result.Outcome == OutcomeMalformed:
		h.logger.Warn("funding webhook malformed",
			slog.String("merchant_ref", result.MerchantRef),
			slog.String("detail", result.Detail),
		)
		httpx.JSON(w, http.StatusOK, map[string]any{"success": false, "outcome": result.Outcome, "detail": result.Detail})
	case err == nil:
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "outcome": result.Outcome, "merchant_ref": result.MerchantRef})
	case errors.Is(err, shared.ErrInvalidSignature):
		h.logger.Warn("funding webhook signature rejected", slog.String("remote", r.RemoteAddr))
		httpx.RespondError(w, err)
	default:
		// storage failure or timeout; 5xx asks the provider to redeliver,
		// which the idempotency key makes safe
		h.logger.Error("funding webhook apply failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "funding event could not be applied")
	}
}

func (h *Handler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(outcome).Inc()
	}
}
