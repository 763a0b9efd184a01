package budget

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/ledger"
	"github.com/Nanlep/Fiscana-sub000/internal/platform/httpx"
)

// Handler exposes budget endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes attaches budget routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/budgets", h.List)
	r.Post("/budgets", h.Create)
	r.Delete("/budgets/{id}", h.Delete)
	r.Get("/budgets/variance", h.Variance)
}

type createBudgetRequest struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	Category string `json:"category" validate:"required"`
	Limit    string `json:"limit" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
	Scope    string `json:"scope" validate:"required,oneof=BUSINESS PERSONAL"`
}

// Create registers a monthly budget.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	limit, err := decimal.NewFromString(req.Limit)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a decimal string")
		return
	}

	b, err := h.service.Create(r.Context(), Budget{
		UserID:   req.UserID,
		Category: req.Category,
		Limit:    limit,
		Currency: req.Currency,
		Scope:    ledger.Classification(req.Scope),
		Period:   PeriodMonthly,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": b})
}

// List returns a user's budgets.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id required")
		return
	}
	budgets, err := h.service.List(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": budgets})
}

// Delete removes a budget.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Variance returns the current-month report for every budget.
func (h *Handler) Variance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id required")
		return
	}
	month := time.Now()
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := time.Parse("2006-01", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
			return
		}
		month = parsed
	}

	reports, err := h.service.Variances(r.Context(), userID, month)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": reports})
}
