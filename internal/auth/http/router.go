package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/vellum/internal/auth/service"
	"github.com/aussiebroadwan/vellum/internal/auth/store"
	"github.com/aussiebroadwan/vellum/pkg/httpx"
	"github.com/aussiebroadwan/vellum/pkg/slogx"

	_ "github.com/aussiebroadwan/vellum/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store   store.Store
	origins []string
	limiter *httpx.RateLimiter

	SessionService *service.SessionService

	// KeysLoaded feeds the readiness probe. Optional.
	KeysLoaded func() bool
}

func NewRouter(
	buildVersion string,
	st store.Store,
	origins []string,
	limiter *httpx.RateLimiter,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		origins:      origins,
		limiter:      limiter,
		logger:       logger,
	}

	// Logging runs first so a recovered panic is still logged with its status.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
	r.Mux.Handle("/", NotFoundHandler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Vellum Session API
//	@version		0.1.0
//	@description	Google Sign-In backed sessions. Access and refresh tokens travel as HttpOnly cookies.
//	@description
//	@description	State-changing requests need an allow-listed Origin header and are rate limited per client and path.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/vellum
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// registerSession mounts the session API under /api/. Every request there
// passes the origin check and then the rate limiter before routing, so a
// wrong method or unknown path under /api/ is checked as well.
func (r *Router) registerSession() {
	h := &SessionHandler{Sessions: r.SessionService}
	api := http.NewServeMux()

	api.HandleFunc("POST /api/session", h.HandleLogin)
	api.HandleFunc("DELETE /api/session", h.HandleLogout)
	api.Handle("/api/session", MethodNotAllowedHandler())

	api.HandleFunc("POST /api/session/refresh", h.HandleRefresh)
	api.Handle("/api/session/refresh", MethodNotAllowedHandler())

	api.Handle("GET /api/me",
		httpx.Chain(MeHandler(),
			httpx.RequireUser(r.SessionService.Access, AccessCookieName),
		),
	)
	api.Handle("/api/me", MethodNotAllowedHandler())

	api.Handle("/", NotFoundHandler())

	r.Mux.Handle("/api/",
		httpx.Chain(api,
			httpx.OriginMiddleware(r.origins),
			httpx.RateLimitByIPAndPath(r.limiter),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("/health", HealthHandler())
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.KeysLoaded))
}
