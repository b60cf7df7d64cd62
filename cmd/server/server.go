package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/sui-wrapped/internal/circuitbreaker"
	"github.com/yourorg/sui-wrapped/internal/classify"
	"github.com/yourorg/sui-wrapped/internal/config"
	"github.com/yourorg/sui-wrapped/internal/model"
)

const version = "1.0.0"

// Generator produces reports for the API.
type Generator interface {
	Generate(ctx context.Context, address string, year int) (model.WrappedAggregate, error)
	GenerateRange(ctx context.Context, address string, start, end time.Time) (model.WrappedAggregate, error)
}

type breakerStatus interface {
	BreakerState() circuitbreaker.State
}

type exporterStatus interface {
	Status() map[string]interface{}
}

// Server is the HTTP boundary in front of the pipeline.
type Server struct {
	cfg       config.Config
	generator Generator
	limiter   *rate.Limiter
	gatherer  prometheus.Gatherer
	metrics   *serverMetrics
	breaker   breakerStatus
	exporter  exporterStatus
	registry  *classify.Registry
	started   time.Time
	server    *http.Server
}

type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func registerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wrapped_http_requests_total",
				Help: "Total number of API requests by status code",
			},
			[]string{"code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wrapped_http_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code"},
		),
	}
	reg.MustRegister(m.requestCounter, m.requestDuration)
	return m
}

// NewServer creates a Server; reg receives the HTTP metrics and backs /metrics.
func NewServer(cfg config.Config, generator Generator, reg *prometheus.Registry) *Server {
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		cfg:       cfg,
		generator: generator,
		limiter:   rate.NewLimiter(limit, burst),
		gatherer:  reg,
		metrics:   registerMetrics(reg),
		started:   time.Now(),
	}
}

// WithBreaker exposes the ledger breaker state on /status.
func (s *Server) WithBreaker(b breakerStatus) *Server {
	s.breaker = b
	return s
}

// WithExporter exposes exporter counters on /status.
func (s *Server) WithExporter(e exporterStatus) *Server {
	s.exporter = e
	return s
}

// WithRegistry exposes the loaded registry version on /status.
func (s *Server) WithRegistry(r *classify.Registry) *Server {
	s.registry = r
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/wrapped/{address}", s.handleWrapped)
	})
	return r
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	logrus.Info("Server stopped")
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.errorResponse(w, time.Now(), model.NewError(model.CodeRateLimited, nil, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleWrapped serves GET /api/wrapped/{address}?year=YYYY or ?start=...&end=...
func (s *Server) handleWrapped(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	address := chi.URLParam(r, "address")
	query := r.URL.Query()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	var (
		agg model.WrappedAggregate
		err error
	)
	if query.Get("start") != "" || query.Get("end") != "" {
		from, to, perr := parseRange(query.Get("start"), query.Get("end"))
		if perr != nil {
			s.errorResponse(w, start, perr)
			return
		}
		agg, err = s.generator.GenerateRange(ctx, address, from, to)
	} else {
		year := s.cfg.ReportYear
		if raw := query.Get("year"); raw != "" {
			parsed, perr := strconv.Atoi(raw)
			if perr != nil {
				s.errorResponse(w, start, model.NewError(model.CodeInvalidWindow, perr, "invalid year %q", raw))
				return
			}
			year = parsed
		}
		agg, err = s.generator.Generate(ctx, address, year)
	}
	if err != nil {
		s.errorResponse(w, start, err)
		return
	}

	w.Header().Set("Cache-Control", cacheControl)
	s.observe(http.StatusOK, start)
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: wrappedPayload{
			WrappedAggregate: agg,
			PersonaCopy:      model.PersonaCopies[agg.Persona],
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"status":  "operational",
		"uptime":  time.Since(s.started).String(),
		"version": version,
		"configuration": map[string]interface{}{
			"report_year":   s.cfg.ReportYear,
			"cache_backend": s.cfg.CacheBackend,
			"cache_ttl":     s.cfg.CacheTTL.String(),
			"tx_page_size":  s.cfg.TxPageSize,
			"fetch_budget":  s.cfg.TxFetchBudget.String(),
		},
	}
	if s.breaker != nil {
		status["circuit_state"] = s.breaker.BreakerState().String()
	}
	if s.registry != nil {
		status["registry"] = map[string]int{
			"version":   s.registry.Version,
			"protocols": s.registry.Len(),
		}
	}
	if s.exporter != nil {
		status["export"] = s.exporter.Status()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) errorResponse(w http.ResponseWriter, start time.Time, err error) {
	code := model.CodeOf(err)
	status := statusFor(code)
	message := messageFor(err)

	entry := logrus.WithField("code", code)
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.Debug(message)
	}

	s.observe(status, start)
	writeJSON(w, status, envelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: message},
	})
}

func (s *Server) observe(status int, start time.Time) {
	code := strconv.Itoa(status)
	s.metrics.requestCounter.WithLabelValues(code).Inc()
	s.metrics.requestDuration.WithLabelValues(code).Observe(time.Since(start).Seconds())
}
