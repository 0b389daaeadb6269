package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/keyhavenhq/accountd/internal/account/obs"
	"github.com/keyhavenhq/accountd/internal/account/service"
	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/pkg/httpx"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
	"github.com/keyhavenhq/accountd/pkg/slogx"
)

// Router holds shared dependencies for the HTTP surface: the single JSON-RPC
// endpoint, the confirmation link, key discovery and the system endpoints.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	metrics      *obs.Metrics

	Registration *service.RegistrationService
	Session      *service.SessionService
	Accounts     *service.AccountService
	Authorizer   *service.Authorizer
}

func NewRouter(
	keys *jwtx.KeySet,
	buildVersion string,
	st store.Store,
	metrics *obs.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		metrics:      metrics,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	if metrics != nil {
		r.middlewares = append(r.middlewares, metrics.Instrument)
	}
	return r
}

func (r *Router) ApplyRoutes() {
	rpc := &RPCHandler{
		Registration: r.Registration,
		Session:      r.Session,
		Accounts:     r.Accounts,
		Authorizer:   r.Authorizer,
		Keys:         r.keys,
		Metrics:      r.metrics,
	}

	// The whole method table rides on one endpoint; login brute force is
	// the risk worth the strictest bucket, but method-level limits need
	// the body parsed, so the endpoint takes the moderate bucket.
	r.Mux.Handle("POST /rpc",
		httpx.Chain(rpc,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /confirm/register",
		httpx.Chain(ConfirmHandler(r.Registration),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}

// ServeHTTP applies the global middleware chain around the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
