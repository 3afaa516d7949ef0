package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"orcamento/internal/adapters"
	"orcamento/internal/budget"
	"orcamento/internal/core"
	"orcamento/internal/log"
	"orcamento/internal/metrics"
	"orcamento/internal/middleware/ratelimit"
	"orcamento/internal/middleware/security"
	"orcamento/internal/middleware/trace"
	"orcamento/internal/ports"
	"orcamento/internal/services"
)

// BudgetAPI is the service surface the handlers drive.
type BudgetAPI interface {
	Summary(ctx context.Context, req budget.Request) (core.MonthlyBudgetSummary, error)
	ListTargets(ctx context.Context, owner string, p core.Period) ([]core.CategoryTarget, error)
	SetCategoryTarget(ctx context.Context, in services.TargetInput) (core.CategoryTarget, error)
	SetBudgetGroup(ctx context.Context, owner string, categoryID int64, g core.BudgetGroup) (core.GroupAssignment, error)
	SetPlannedIncome(ctx context.Context, owner string, p core.Period, amount core.Money) (core.PlannedIncome, error)
}

type Options struct {
	Addr    string
	Service BudgetAPI
	// Checks are pinged by /readyz, keyed by the name reported in the body.
	Checks             map[string]ports.Pinger
	Metrics            *metrics.Metrics
	Logger             *log.Logger
	RateLimitPerMinute int
	Now                func() time.Time
}

type Server struct {
	http.Server
	service      BudgetAPI
	checks       map[string]ports.Pinger
	metrics      *metrics.Metrics
	logger       *log.Logger
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		service:  opts.Service,
		checks:   opts.Checks,
		metrics:  opts.Metrics,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: security.NewDetector(),
		started:  now(),
		now:      now,
	}

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	tracer := trace.NewMiddleware(s.logger,
		trace.WithClientIP(s.detector.ExtractClientIP),
		trace.WithRoute(func(r *http.Request) string {
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				return rctx.RoutePattern()
			}
			return ""
		}),
		trace.WithObserver(s.metrics),
	)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	sentryMW := sentryhttp.New(sentryhttp.Options{Repanic: true})

	r := chi.NewRouter()
	r.Use(tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(sentryMW.Handle)
	r.Use(headers.Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/monthly-budget", func(r chi.Router) {
		r.Use(requireOwner)
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "too many requests", "").Write(w)
		}))

		r.Get("/summary", s.handleSummary)
		r.Get("/category", s.handleListTargets)
		r.Post("/category", s.handleSetTarget)
		r.Put("/category/{id}/budget-group", s.handleSetBudgetGroup)
		r.Put("/income", s.handleSetIncome)
	})
	return r
}

type ownerKey struct{}

// requireOwner rejects requests without an owner scope.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(adapters.OwnerHeader)
		if err := core.ValidateOwner(owner); err != nil {
			UnauthorizedError("missing or invalid " + adapters.OwnerHeader + " header").Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, owner)
		ctx = log.Enrich(ctx, log.FieldOwnerID, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// Shutdown gracefully shuts down the server and stops the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
