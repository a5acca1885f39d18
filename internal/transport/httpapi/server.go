package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"orthotracker/internal/usecase/tracker"
)

const (
	DefaultRateLimit      = 20
	DefaultRateBurst      = 40
	DefaultRequestTimeout = 30 * time.Second

	maxBodyBytes = 16 << 20
)

// RequestObserver records one finished request.
type RequestObserver interface {
	ObserveHTTP(route string, method string, status string, seconds float64)
}

type Options struct {
	// RateLimit is requests per second across all clients. Zero uses the default.
	RateLimit      float64
	RateBurst      int
	RequestTimeout time.Duration
	// Metrics serves GET /metrics when set.
	Metrics  http.Handler
	Observer RequestObserver
}

type Server struct {
	svc     *tracker.Service
	opts    Options
	limiter *rate.Limiter
}

func NewServer(svc *tracker.Service, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = DefaultRateBurst
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Server{
		svc:     svc,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(s.observe)

	// Probes and scrapes stay outside the limiter.
	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/dashboard", s.handleDashboard)

			r.Route("/procedures", func(r chi.Router) {
				r.Get("/", s.handleListProcedures)
				r.Post("/", s.handleLogProcedure)
				r.Get("/export.csv", s.handleExportProcedures)
				r.Get("/{id}", s.handleGetProcedure)
			})

			r.Get("/hospitals", s.handleListHospitals)
			r.Get("/surgeons", s.handleListSurgeons)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(tracker.RoleAdmin))

				r.Post("/hospitals", s.handleAddHospital)
				r.Post("/surgeons", s.handleAddSurgeon)

				r.Route("/rules", func(r chi.Router) {
					r.Get("/", s.handleListRules)
					r.Post("/", s.handleCreateRule)
					r.Post("/preview", s.handlePreviewCommission)
					r.Post("/{id}/activate", s.handleSetRuleActive(true))
					r.Post("/{id}/deactivate", s.handleSetRuleActive(false))
				})

				r.Post("/commissions/recompute", s.handleRecompute)
				r.Get("/users", s.handleListUsers)
				r.Get("/audit", s.handleListAudit)
			})
		})
	})

	return r
}

// NewHTTPServer wraps the router in a server with conservative timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       40 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
