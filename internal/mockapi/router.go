package mockapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/jwtx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/slogx"
)

// BasePath prefixes every API route.
const BasePath = "/api/v1"

// Limits configures the rate limiters. Zero values use the httpx defaults.
type Limits struct {
	Auth httpx.RateLimitConfig
	API  httpx.RateLimitConfig
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       Limits

	Service *Service
	Hub     *Hub
	Catalog *Catalog
}

func NewRouter(svc *Service, verifier jwtx.Verifier, catalog *Catalog, limits Limits, buildVersion string, logger *slog.Logger) *Router {
	if limits.Auth.RequestsPerWindow == 0 {
		limits.Auth = httpx.AuthLimit
	}
	if limits.API.RequestsPerWindow == 0 {
		limits.API = httpx.APILimit
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
		Service:      svc,
		Hub:          NewHub(verifier, svc, logger),
		Catalog:      catalog,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.RateLimitBySession(r.limits.API),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerRBAC()
	r.registerCatalog()
	r.registerRealtime()
	r.registerSystem()
}

// ServeHTTP applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) handle(pattern string, h http.Handler, mws ...httpx.Middleware) {
	method, path, _ := strings.Cut(pattern, " ")
	r.Mux.Handle(method+" "+BasePath+path, httpx.Chain(h, mws...))
}

// authed verifies the bearer token and that its session is still open.
func (r *Router) authed() []httpx.Middleware {
	return []httpx.Middleware{
		httpx.BearerAuth(r.verifier),
		requireSession(r.Service),
	}
}

func requireSession(svc *Service) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			c, ok := httpx.ClaimsFromContext(req.Context())
			if !ok || !svc.SessionActive(c.SID) {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				httpx.WriteDetail(w, http.StatusUnauthorized, "Session expired or revoked")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Service: r.Service, Hub: r.Hub}
	strict := httpx.RateLimitBySession(r.limits.Auth)

	r.handle("GET /auth/providers", http.HandlerFunc(h.HandleProviders))

	// Login, callback and refresh share the stricter auth budget.
	r.handle("POST /auth/login", http.HandlerFunc(h.HandleLogin), strict)
	r.handle("POST /auth/callback", http.HandlerFunc(h.HandleCallback), strict)
	r.handle("POST /auth/refresh", http.HandlerFunc(h.HandleRefresh), strict)

	r.handle("GET /auth/me", http.HandlerFunc(h.HandleMe), r.authed()...)
	r.handle("POST /auth/logout", http.HandlerFunc(h.HandleLogout), r.authed()...)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{Service: r.Service, Hub: r.Hub}

	r.handle("GET /auth/sessions", http.HandlerFunc(h.HandleList), r.authed()...)
	r.handle("DELETE /auth/sessions", http.HandlerFunc(h.HandleRevokeOthers), r.authed()...)
	r.handle("DELETE /auth/sessions/{id}", http.HandlerFunc(h.HandleRevoke), r.authed()...)
}

func (r *Router) registerRBAC() {
	r.handle("POST /rbac/check", &CheckHandler{Service: r.Service}, r.authed()...)
}

func (r *Router) registerCatalog() {
	c := r.Catalog

	r.handle("GET /tenants", http.HandlerFunc(c.HandleTenants), r.authed()...)
	r.handle("GET /tenants/{tenant}/namespaces", http.HandlerFunc(c.HandleNamespaces), r.authed()...)
	r.handle("GET /tenants/{tenant}/namespaces/{namespace}/topics", http.HandlerFunc(c.HandleTopics), r.authed()...)
	r.handle("GET /brokers", http.HandlerFunc(c.HandleBrokers), r.authed()...)
}

func (r *Router) registerRealtime() {
	r.handle("GET /ws", r.Hub)

	// Event injection for development; global admins only.
	mws := append(r.authed(), httpx.RequireGlobalAdmin())
	r.handle("POST /dev/events", &EventsHandler{Hub: r.Hub, Catalog: r.Catalog}, mws...)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion, r.Hub))
}
