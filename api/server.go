/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP behind the reverse proxy
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the portal frontend
  5. requestLogger: Structured request logging via applog

ROUTE GROUPS:
  /api/payments/*   Installment postings
  /api/expenses/*   Outgoing cash records
  /api/units/*      Unit registry and per-unit views
  /api/dashboard/*  Headline numbers
  /api/reports/*    Aggregated reports
  /api/audit        Audit trail queries
  /healthz          Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/installment-ledger/applog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log *applog.Logger, allowedOrigins []string) *chi.Mux {
	if log == nil {
		log = applog.Default()
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Id"},
		AllowCredentials: true,
	}))
	r.Use(requestLogger(log.WithComponent("http")))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.CreatePayment)
			r.Get("/check", h.CheckDuplicate)
			r.Delete("/{id}", h.DeletePayment)
		})

		// Expense routes
		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.ListExpenses)
			r.Post("/", h.CreateExpense)
			r.Delete("/{id}", h.DeleteExpense)
		})

		// Unit routes
		r.Route("/units", func(r chi.Router) {
			r.Get("/", h.ListUnits)
			r.Post("/", h.CreateUnit)
			r.Get("/{id}", h.GetUnit)
			r.Put("/{id}", h.UpdateUnit)
			r.Delete("/{id}", h.DeleteUnit)
			r.Get("/{id}/payments", h.GetUnitPayments)
			r.Get("/{id}/status", h.GetUnitStatus)
		})

		// Dashboard routes
		r.Get("/dashboard/stats", h.GetStats)

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/aging", h.GetAging)
			r.Get("/trend", h.GetTrend)
			r.Get("/balance", h.GetBalance)
			r.Get("/due-soon", h.GetDueSoon)
			r.Get("/matrix", h.GetMatrix)
		})

		// Audit routes
		r.Get("/audit", h.QueryAudit)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(log *applog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
