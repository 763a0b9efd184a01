package networth

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/platform/httpx"
)

// Handler exposes net-worth endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// MountRoutes attaches net-worth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/networth", h.Summary)
	r.Get("/networth/items", h.List)
	r.Post("/networth/items", h.Create)
	r.Delete("/networth/items/{id}", h.Delete)
}

type createItemRequest struct {
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	Kind     string `json:"kind" validate:"required,oneof=ASSET LIABILITY"`
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
	Value    string `json:"value" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

// Create stores a balance-sheet item.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "value must be a decimal string")
		return
	}

	item, err := h.service.Add(r.Context(), Item{
		UserID:   req.UserID,
		Kind:     ItemKind(req.Kind),
		Name:     req.Name,
		Category: req.Category,
		Value:    value,
		Currency: req.Currency,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": item})
}

// List returns a user's items.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDQuery(w, r)
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

// Delete removes an item.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	if err := h.service.Remove(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Summary returns the normalized position.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDQuery(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summarize(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": summary})
}

func userIDQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id required")
		return 0, false
	}
	return userID, true
}
