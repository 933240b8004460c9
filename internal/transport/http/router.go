// Package httptransport assembles the HTTP surface: global middleware, the
// public routes, and the token-guarded routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "crowngate/internal/audit/handler"
	identityhandler "crowngate/internal/identity/handler"
	kingdomhandler "crowngate/internal/kingdom/handler"
	screeninghandler "crowngate/internal/screening/handler"
	"crowngate/pkg/platform/httputil"
	authmw "crowngate/pkg/platform/middleware/auth"
	"crowngate/pkg/platform/middleware/metadata"
	"crowngate/pkg/platform/middleware/recovery"
	request "crowngate/pkg/platform/middleware/request"
	"crowngate/pkg/platform/middleware/requesttime"
)

// Config carries everything the router needs. Health is optional; when nil
// the health endpoint only reports that the process is up.
type Config struct {
	Logger      *slog.Logger
	Identity    *identityhandler.Handler
	Kingdom     *kingdomhandler.Handler
	Screening   *screeninghandler.Handler
	Audit       *audithandler.Handler
	Validator   authmw.JWTValidator
	Revocations authmw.TokenRevocationChecker
	Health      func(ctx context.Context) error
}

// New builds the router. Middleware order matters: recovery wraps
// everything, the request ID is assigned before anything logs, and client
// metadata is captured before handlers run so the audit trail sees it.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(recovery.Middleware(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", handleHealth(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	// Public surface: registration, login, browsing kingdoms.
	r.Group(func(r chi.Router) {
		cfg.Identity.RegisterPublic(r)
		cfg.Kingdom.RegisterPublic(r)
	})

	// Everything else requires a valid, unrevoked token.
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.Validator, cfg.Revocations, cfg.Logger))
		cfg.Identity.RegisterProtected(r)
		cfg.Kingdom.RegisterProtected(r)
		cfg.Screening.RegisterProtected(r)
		cfg.Audit.Register(r)
	})

	return r
}

func handleHealth(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
