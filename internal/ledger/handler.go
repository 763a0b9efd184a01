package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/platform/httpx"
)

// Handler exposes ledger entry endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger/entries", h.List)
	r.Post("/ledger/entries", h.Create)
	r.Get("/ledger/entries/{id}", h.Show)
	r.Post("/ledger/entries/{id}/void", h.Void)
	r.Get("/ledger/summary", h.Summary)
	r.Get("/ledger/statement", h.Statement)
}

type createEntryRequest struct {
	UserID         int64    `json:"user_id" validate:"required,gt=0"`
	Date           string   `json:"date"`
	Description    string   `json:"description" validate:"required"`
	Amount         string   `json:"amount" validate:"required"`
	GrossAmount    *string  `json:"gross_amount,omitempty"`
	Currency       string   `json:"currency" validate:"required,len=3"`
	Kind           string   `json:"kind" validate:"required,oneof=INCOME EXPENSE"`
	Classification string   `json:"classification" validate:"required,oneof=BUSINESS PERSONAL"`
	Category       string   `json:"category" validate:"required"`
	TaxTag         string   `json:"tax_tag"`
	Tags           []string `json:"tags"`
	ReceiptRef     *string  `json:"receipt_ref,omitempty"`
}

// Create appends a manual entry.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
		return
	}
	var gross *decimal.Decimal
	if req.GrossAmount != nil {
		g, err := decimal.NewFromString(*req.GrossAmount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "gross_amount must be a decimal string")
			return
		}
		gross = &g
	}
	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	entry, err := h.service.Create(r.Context(), Entry{
		UserID:         req.UserID,
		Date:           date,
		Description:    req.Description,
		Amount:         amount,
		GrossAmount:    gross,
		Currency:       req.Currency,
		Kind:           Kind(req.Kind),
		Classification: Classification(req.Classification),
		Category:       req.Category,
		TaxTag:         req.TaxTag,
		Tags:           req.Tags,
		ReceiptRef:     req.ReceiptRef,
		CreatedBy:      req.UserID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": entry})
}

// Show returns one entry.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": entry})
}

// List returns entries for a user with optional filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id required")
		return
	}
	f := Filter{UserID: userID, Limit: 100}
	if v := r.URL.Query().Get("kind"); v != "" {
		k := Kind(v)
		f.Kind = &k
	}
	if v := r.URL.Query().Get("classification"); v != "" {
		c := Classification(v)
		f.Classification = &c
	}
	if v := r.URL.Query().Get("category"); v != "" {
		f.Category = &v
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			f.From = &parsed
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			f.To = &parsed
		}
	}

	entries, err := h.service.List(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": entries})
}

// Void marks an entry VOID.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err := h.service.Void(r.Context(), id, actorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Summary returns the normalized month summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, month, ok := h.monthQuery(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summarize(r.Context(), userID, month)
	if err != nil {
		h.logger.Error("ledger summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": summary})
}

// Statement returns the formatted monthly statement.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	userID, month, ok := h.monthQuery(w, r)
	if !ok {
		return
	}
	stmt, err := h.service.Statement(r.Context(), userID, month)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": stmt})
}

func (h *Handler) monthQuery(w http.ResponseWriter, r *http.Request) (int64, time.Time, bool) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id required")
		return 0, time.Time{}, false
	}
	month := time.Now()
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := time.Parse("2006-01", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
			return 0, time.Time{}, false
		}
		month = parsed
	}
	return userID, month, true
}
