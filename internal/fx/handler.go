package fx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/platform/httpx"
)

// Handler exposes the exchange rate endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches the fx routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/fx/rate", h.Show)
	r.Put("/fx/rate", h.Update)
}

type updateRateRequest struct {
	Rate    string `json:"rate"`
	ActorID int64  `json:"actor_id"`
}

// Show returns the current exchange rate.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.Current(r.Context())
	if err != nil {
		h.logger.Error("fx rate read", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"base_currency": BaseCurrency,
		"rate":          rate.String(),
	})
}

// Update sets the current exchange rate.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "rate must be a decimal string")
		return
	}
	if err := h.service.SetRate(r.Context(), rate, req.ActorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rate": rate.String()})
}
