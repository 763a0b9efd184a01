package wallet

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/platform/httpx"
)

// Handler exposes wallet endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches wallet routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/wallets", h.List)
	r.Post("/wallets/withdraw", h.Withdraw)
}

// List returns all balances for a user.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id required")
		return
	}
	balances, err := h.service.Balances(r.Context(), userID)
	if err != nil {
		h.logger.Error("list balances", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if balances == nil {
		balances = []Balance{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": balances})
}

type withdrawRequest struct {
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"required,len=3"`
	Amount        string `json:"amount" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	BankCode      string `json:"bank_code" validate:"required"`
	Narration     string `json:"narration"`
}

// Withdraw debits the wallet after a confirmed payout initiation.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
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

	result, err := h.service.Withdraw(r.Context(), WithdrawInput{
		UserID:        req.UserID,
		Currency:      req.Currency,
		Amount:        amount,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		Narration:     req.Narration,
	})
	if err != nil {
		h.logger.Warn("withdraw", slog.Int64("user_id", req.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": result})
}
