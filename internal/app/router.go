package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Nanlep/Fiscana-sub000/internal/budget"
	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/invoices"
	"github.com/Nanlep/Fiscana-sub000/internal/ledger"
	"github.com/Nanlep/Fiscana-sub000/internal/networth"
	"github.com/Nanlep/Fiscana-sub000/internal/observability"
	"github.com/Nanlep/Fiscana-sub000/internal/wallet"
	"github.com/Nanlep/Fiscana-sub000/internal/webhook"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	FXHandler       *fx.Handler
	LedgerHandler   *ledger.Handler
	InvoiceHandler  *invoices.Handler
	WalletHandler   *wallet.Handler
	WebhookHandler  *webhook.Handler
	BudgetHandler   *budget.Handler
	NetWorthHandler *networth.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Fiscana defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.FXHandler != nil {
			params.FXHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.InvoiceHandler != nil {
			params.InvoiceHandler.MountRoutes(r)
		}
		if params.WalletHandler != nil {
			params.WalletHandler.MountRoutes(r)
		}
		if params.BudgetHandler != nil {
			params.BudgetHandler.MountRoutes(r)
		}
		if params.NetWorthHandler != nil {
			params.NetWorthHandler.MountRoutes(r)
		}
	})

	// provider deliveries bypass the versioned API prefix
	if params.WebhookHandler != nil {
		params.WebhookHandler.MountRoutes(r)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
