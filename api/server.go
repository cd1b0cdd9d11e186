/*
server.go - HTTP router configuration and middleware setup

PURPOSE:
  Configures the chi router with middleware and route definitions.
  Serves the API under /api and a built web frontend, if present, from
  ./web/dist.

ROUTER:
  Uses go-chi/chi for routing: lightweight and stdlib-compatible.

MIDDLEWARE STACK:
  1. Logger:    Request logging (method, path, duration)
  2. Recoverer: Panic recovery (returns 500)
  3. RequestID: Unique ID per request (X-Request-Id header)
  4. CORS:      Origins from configuration
  5. Authenticate (under /api): verified JWT subject -> user id
  6. BindShop (shop routes): user id -> shop bound in the context

ROUTE GROUPS:
  /health           Liveness, unauthenticated
  /api/auth/*       Session management (no shop needed)
  /api/admin/*      Super-admin side-channel (no shop needed)
  /api/products/*   Catalog and stock
  /api/sales/*      Invoices
  /api/purchases/*  Goods receipts
  /api/accounts/*   Money accounts and postings
  /api/postings/*   Posting deletion
  /api/reports/*    Derived figures
  /api/cash-closings End of day till counts
  /api/audit/*      Balance audit
  /api/dev/*        Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authentication and tenant binding
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/auth/signout", h.SignOut)
		r.Post("/admin/shops", h.AdminShops)

		r.Group(func(r chi.Router) {
			r.Use(h.BindShop)

			// Product routes
			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Post("/", h.CreateProduct)
				r.Get("/low-stock", h.LowStock)
				r.Post("/{id}/adjust", h.AdjustStock)
			})

			// Sale routes
			r.Route("/sales", func(r chi.Router) {
				r.Get("/", h.ListSales)
				r.Post("/", h.CreateSale)
				r.Get("/{id}", h.GetSale)
				r.Delete("/{id}", h.DiscardSale)
			})

			// Purchase routes
			r.Route("/purchases", func(r chi.Router) {
				r.Get("/", h.ListPurchases)
				r.Post("/", h.ReceivePurchase)
			})

			// Account routes
			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", h.ListAccounts)
				r.Post("/", h.OpenAccount)
				r.Get("/{id}/postings", h.ListPostings)
				r.Post("/{id}/postings", h.CreatePosting)
			})
			r.Delete("/postings/{id}", h.DeletePosting)

			// Report routes
			r.Route("/reports", func(r chi.Router) {
				r.Get("/summary", h.Summary)
				r.Get("/customer-dues", h.CustomerDues)
				r.Get("/supplier-totals", h.SupplierTotals)
				r.Get("/system-cash", h.SystemCash)
				r.Get("/renewals", h.Renewals)
			})

			r.Route("/cash-closings", func(r chi.Router) {
				r.Get("/", h.ListCashClosings)
				r.Post("/", h.CloseCash)
			})

			r.Get("/audit/balances", h.AuditBalances)

			// Scenario routes
			r.Route("/dev", func(r chi.Router) {
				r.Get("/scenarios", h.ListScenarios)
				r.Post("/seed", h.LoadScenario)
			})
		})
	})

	// Serve static files (web app). Try ./web/dist, then next to the executable.
	staticDir := "./web/dist"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}
	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			if _, err := os.Stat(filepath.Join(staticDir, r.URL.Path)); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	}

	return r
}
