package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/fileserv/internal/controlplane/api/auth"
	"github.com/marmos91/fileserv/internal/controlplane/api/handlers"
	apiMiddleware "github.com/marmos91/fileserv/internal/controlplane/api/middleware"
	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/pkg/access/pipeline"
	"github.com/marmos91/fileserv/pkg/access/quota"
	"github.com/marmos91/fileserv/pkg/access/sharelink"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/identity"
	"github.com/marmos91/fileserv/pkg/registry"
)

// requestTimeout bounds every /api/v1 request.
const requestTimeout = 30 * time.Second

// Deps are the services the API is built on.
type Deps struct {
	Store    store.Store
	Registry *registry.Registry
	Tracker  *quota.Tracker
	Links    *sharelink.Manager
	Pipeline *pipeline.Pipeline

	// Passwords verifies login credentials. Defaults to the store.
	Passwords identity.Provider

	// Checks are probed by /health/ready. Defaults to the store.
	Checks map[string]handlers.HealthChecker
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - POST /api/v1/auth/login - User authentication
//   - POST /api/v1/auth/refresh - Token refresh
//   - GET /api/v1/auth/me - Current identity
//   - /api/v1/pools/* - Storage pool management (admin only)
//   - /api/v1/zones/* - Share zone and permission management (admin only)
//   - GET /api/v1/zones/mine - Zones visible to the caller
//   - POST /api/v1/access/check - Dry-run of the operation pipeline
//   - GET /api/v1/quota/me - Caller's usage
//   - GET /api/v1/quota/over - Accounts over quota (admin only)
//   - /api/v1/links/* - Share link issuance and management
//   - /s/{token} - Anonymous share link access
func NewRouter(deps Deps, jwtService *auth.JWTService) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	checks := deps.Checks
	if checks == nil && deps.Store != nil {
		checks = map[string]handlers.HealthChecker{"store": deps.Store}
	}
	healthHandler := handlers.NewHealthHandler(checks)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	passwords := deps.Passwords
	if passwords == nil {
		passwords = identity.NewStoreProvider(deps.Store)
	}
	authHandler := handlers.NewAuthHandler(passwords, deps.Store, jwtService)
	poolHandler := handlers.NewPoolHandler(deps.Registry)
	zoneHandler := handlers.NewZoneHandler(deps.Registry)
	permHandler := handlers.NewPermissionHandler(deps.Registry)
	accessHandler := handlers.NewAccessHandler(deps.Pipeline, deps.Tracker)
	linkHandler := handlers.NewLinkHandler(deps.Links)
	publicLinkHandler := handlers.NewPublicLinkHandler(deps.Links, deps.Pipeline)

	// Public share link routes. Downloads stream, so no request timeout.
	r.Route("/s/{token}", func(r chi.Router) {
		r.Get("/", publicLinkHandler.View)
		r.With(middleware.Timeout(requestTimeout)).Post("/verify", publicLinkHandler.Verify)
		r.Post("/download", publicLinkHandler.Download)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.BearerAuth(jwtService))
				r.Get("/me", authHandler.Me)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.BearerAuth(jwtService))

			r.Post("/access/check", accessHandler.Check)
			r.Get("/quota/me", accessHandler.MyQuota)
			r.With(apiMiddleware.RequireAdmin()).Get("/quota/over", accessHandler.OverQuota)

			// Link issuance - ownership is enforced by the link manager
			r.Route("/links", func(r chi.Router) {
				r.Get("/", linkHandler.List)
				r.Post("/", linkHandler.Create)
				r.Get("/{id}", linkHandler.Get)
				r.Post("/{id}/disable", linkHandler.Disable)
				r.Delete("/{id}", linkHandler.Delete)
			})

			// Storage pools (admin only)
			r.Route("/pools", func(r chi.Router) {
				r.Use(apiMiddleware.RequireAdmin())

				r.Get("/", poolHandler.List)
				r.Post("/", poolHandler.Create)
				r.Get("/{id}", poolHandler.Get)
				r.Put("/{id}", poolHandler.Update)
				r.Delete("/{id}", poolHandler.Delete)
				r.Post("/{id}/enable", poolHandler.Enable)
				r.Post("/{id}/disable", poolHandler.Disable)
			})

			r.Route("/zones", func(r chi.Router) {
				// Self-service listing
				r.Get("/mine", zoneHandler.Mine)

				// Admin-only operations
				r.Group(func(r chi.Router) {
					r.Use(apiMiddleware.RequireAdmin())

					r.Get("/", zoneHandler.List)
					r.Post("/", zoneHandler.Create)
					r.Get("/{id}", zoneHandler.Get)
					r.Put("/{id}", zoneHandler.Update)
					r.Delete("/{id}", zoneHandler.Delete)

					// Zone permissions
					r.Get("/{id}/permissions", permHandler.List)
					r.Post("/{id}/permissions", permHandler.Grant)
					r.Delete("/{id}/permissions/{permID}", permHandler.Revoke)
				})
			})
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// redactPath hides share link tokens from logs.
func redactPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "/s/"); ok {
		if _, tail, found := strings.Cut(rest, "/"); found {
			return "/s/<token>/" + tail
		}
		return "/s/<token>"
	}
	return path
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It attaches a LogContext to the request so handler logs carry the request
// id and client IP, and logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		clientIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			clientIP = host
		}
		lc := logger.NewLogContext(requestID, clientIP)
		ctx := logger.WithContext(r.Context(), lc)
		path := redactPath(r.URL.Path)

		logger.DebugCtx(ctx, "API request started",
			logger.KeyMethod, r.Method,
			logger.KeyPath, path,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logArgs := []any{
			logger.KeyMethod, r.Method,
			logger.KeyPath, path,
			logger.KeyStatus, ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			logger.KeyDurationMs, lc.DurationMs(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs in k8s
		if isHealthPath(r.URL.Path) {
			logger.DebugCtx(ctx, "API request completed", logArgs...)
		} else {
			logger.InfoCtx(ctx, "API request completed", logArgs...)
		}
	})
}
