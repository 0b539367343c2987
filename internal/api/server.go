// Package api serves the HTTP interface: contract and obligation queries,
// exposure and risk reports, uploads, metrics and the websocket feed.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/ingestion"
	"swap-risk-lab/internal/observability"
	"swap-risk-lab/internal/orchestrator"
	"swap-risk-lab/internal/reporting"
	"swap-risk-lab/internal/storage"
)

// maxUploadBytes caps POST /api/ingest bodies.
const maxUploadBytes = 32 << 20

// Options configures a Server.
type Options struct {
	Store      storage.Store
	History    storage.RiskHistoryStore
	Aggregator *exposure.Aggregator
	Reports    *reporting.Generator
	Pipeline   *ingestion.Pipeline
	Feed       http.Handler // nil disables /ws
	Publisher  ingestion.Publisher

	Backend     string
	CORSOrigins []string // nil allows every origin
	Now         func() time.Time
	Logger      *zap.Logger
}

// Server holds the API state.
type Server struct {
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	startedAt  time.Time
	lastIngest time.Time
	lastSweep  time.Time
	sweeps     int
	uploads    int
	lastErrors []string
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{opts: opts, logger: opts.Logger, now: opts.Now, startedAt: opts.Now()}
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.Handler())
	r.Get("/status", s.handleStatus)
	if s.opts.Feed != nil {
		r.Handle("/ws", s.opts.Feed)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", s.listContracts)
			r.Get("/{contractID}", s.getContract)
			r.Delete("/{contractID}", s.deleteContract)
			r.Get("/{contractID}/obligations", s.contractObligations)
			r.Get("/{contractID}/explain", s.explainContract)
		})
		r.Get("/exposure/{kind}/{name}", s.getExposure)
		r.Get("/risk/history/{kind}/{name}", s.riskHistory)
		r.Get("/risk/{kind}/{name}", s.getRisk)
		r.Get("/obligations/view", s.obligationsView)
		r.Get("/obligations/due", s.obligationsDue)
		r.Post("/ingest", s.ingest)
	})

	return r
}

// RecordSweep updates the status with a finished sweep.
func (s *Server) RecordSweep(summary *orchestrator.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSweep = summary.FinishedAt
	s.sweeps++
	s.lastErrors = summary.Errors
}

// instrument records request metrics under the matched route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RecordHTTPRequest(route, r.Method, status, time.Since(start))
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string    `json:"status"`
	Backend     string    `json:"backend"`
	Uptime      string    `json:"uptime"`
	StartedAt   time.Time `json:"started_at"`
	Contracts   int       `json:"contracts"`
	LastIngest  time.Time `json:"last_ingest,omitempty"`
	LastSweep   time.Time `json:"last_sweep,omitempty"`
	Sweeps      int       `json:"sweeps"`
	Uploads     int       `json:"uploads"`
	SweepErrors []string  `json:"sweep_errors,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	contracts, err := s.opts.Store.ListContracts(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.mu.Lock()
	resp := StatusResponse{
		Status:      "running",
		Backend:     s.opts.Backend,
		Uptime:      s.now().Sub(s.startedAt).Round(time.Second).String(),
		StartedAt:   s.startedAt,
		Contracts:   len(contracts),
		LastIngest:  s.lastIngest,
		LastSweep:   s.lastSweep,
		Sweeps:      s.sweeps,
		Uploads:     s.uploads,
		SweepErrors: s.lastErrors,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}
