package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/maritimeconnect/mir/pkg/httputil"
	"github.com/maritimeconnect/mir/pkg/observability"
)

// Server wires the registry services into an HTTP handler
type Server struct {
	router *mux.Router
}

// Dependencies are the services the API serves
type Dependencies struct {
	Orgs     OrgService
	Entities EntityService
	Certs    CertificateService
	Verifier TokenVerifier
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

// NewServer builds the routing tree. Everything under /api requires a
// bearer token except the organization application endpoint.
func NewServer(deps Dependencies) *Server {
	router := mux.NewRouter()

	base := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.LoggingMiddleware(deps.Logger),
	)
	if deps.Metrics != nil {
		base = httputil.Chain(base, observability.HTTPMetricsMiddleware(deps.Metrics))
	}
	router.Use(base)

	orgHandlers := NewOrgHandlers(deps.Orgs, deps.Certs)
	entityHandlers := NewEntityHandlers(deps.Orgs, deps.Entities, deps.Certs)

	open := router.PathPrefix("/api").Subrouter()
	orgHandlers.RegisterOpenRoutes(open)

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(AuthMiddleware(deps.Verifier, deps.Logger))
	orgHandlers.RegisterRoutes(authed)
	entityHandlers.RegisterRoutes(authed)

	return &Server{router: router}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}
