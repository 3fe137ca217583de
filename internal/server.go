package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tradeease/workflowgate/internal/alert"
	"github.com/tradeease/workflowgate/internal/audit"
	"github.com/tradeease/workflowgate/internal/config"
	"github.com/tradeease/workflowgate/internal/gateway"
	"github.com/tradeease/workflowgate/internal/workflowdef"
	"github.com/tradeease/workflowgate/pkg/cerr"
	"github.com/tradeease/workflowgate/pkg/clog"
)

// Server is the HTTP transport in front of the gateway. It establishes the
// caller's identity (API key), decodes OperationRequests, invokes the gateway
// and only then touches the workflow repository. Failures raised after the
// gateway allowed a run (ownership, persistence) are audited here, so every
// refused request leaves exactly one failure record.
type Server struct {
	server    *http.Server
	env       *config.Env
	gateway   *gateway.Gateway
	repo      workflowdef.Repository
	alertRepo alert.Repository
	vapid     *config.VAPIDEnv
	audit     *audit.Logger
}

func NewServer(
	env *config.Env,
	gw *gateway.Gateway,
	repo workflowdef.Repository,
	alertRepo alert.Repository,
	vapid *config.VAPIDEnv,
	auditLogger *audit.Logger,
) *Server {
	return &Server{
		env:       env,
		gateway:   gw,
		repo:      repo,
		alertRepo: alertRepo,
		vapid:     vapid,
		audit:     auditLogger,
	}
}

// Handler builds the full HTTP handler: API routes, health endpoint, CORS,
// h2c and the API-key check.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewErrorEnvelopeMiddleware(),
		)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.KindValidation, "not found", nil)
		})

		r.Post("/workflows", s.handleCreate)
		r.Post("/workflows/get", s.handleGet)
		r.Post("/workflows/list", s.handleList)
		r.Post("/workflows/update", s.handleUpdate)
		r.Post("/workflows/delete", s.handleDelete)
		r.Post("/workflows/search", s.handleSearch)
		r.Post("/workflows/batch", s.handleBatch)

		r.Get("/users/{id}/metrics", s.handleUserMetrics)

		r.Get("/alerts/vapid-public-key", s.handleVAPIDPublicKey)
		r.Post("/alerts/subscriptions", s.handleCreateSubscription)
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.apiKeyMiddleware(mux)), &http2.Server{})
}

// ListenAndServe starts the HTTP server. The provided context is used as the
// base context for all incoming requests, so cancelling it (shutdown signal)
// also cancels in-flight request contexts.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip API key check for the liveness endpoint.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.Header.Get("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
