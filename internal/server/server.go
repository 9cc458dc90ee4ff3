package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ringvault/ringvault/internal/cache"
	"github.com/ringvault/ringvault/internal/ingest"
	"github.com/ringvault/ringvault/internal/metrics"
	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/query"
	"github.com/ringvault/ringvault/internal/storage"
)

// Version is reported by the index and health endpoints.
const Version = "1.0.0"

// Options carries the deployment settings handlers need.
type Options struct {
	Production bool
	Origins    []string
	DataFile   string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	ingest  ingest.Ingester
	query   *query.Service
	logs    *storage.IngestLogs
	cache   cache.Cache
	metrics metrics.Recorder
	mcp     http.Handler
	opts    Options
	log     zerolog.Logger
	router  chi.Router
}

// New creates a new Server with all routes configured. Cache and metrics
// default to no-ops; the setters rebuild the router and must be called
// before serving.
func New(ingester ingest.Ingester, q *query.Service, logs *storage.IngestLogs, opts Options, log zerolog.Logger) *Server {
	s := &Server{
		ingest:  ingester,
		query:   q,
		logs:    logs,
		cache:   cache.New(false, 0, 0),
		metrics: metrics.New(false),
		opts:    opts,
		log:     log.With().Str("component", "http").Logger(),
	}
	s.build()
	return s
}

// SetCache installs the query response cache.
func (s *Server) SetCache(c cache.Cache) {
	s.cache = c
	s.build()
}

// SetMetrics installs the metrics recorder and exposes it at /metrics.
func (s *Server) SetMetrics(m metrics.Recorder) {
	s.metrics = m
	s.build()
}

// SetMCP mounts an MCP handler at /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.mcp = h
	s.build()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) build() {
	s.router = chi.NewRouter()
	s.routes()
}

func (s *Server) routes() {
	s.router.Use(chimw.RequestID)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(Recover(s.opts.Production, s.log))
	s.router.Use(Metrics(s.metrics))
	s.router.Use(CORS(s.opts.Origins))

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	s.router.Get("/", s.handleIndex)
	s.router.Get("/api/health", s.handleHealth)

	s.router.Post("/api/qring/upload", s.handleUpload)
	s.router.Get("/api/ingest-logs", s.handleIngestLogs)

	// Dashboard queries (cached; cleared after every ingest)
	s.router.Group(func(r chi.Router) {
		r.Use(Cache(s.cache, s.metrics))

		r.Get("/api/heartrate", s.handleHeartRate)
		r.Get("/api/hrv", s.handleSeries(models.KindHRV))
		r.Get("/api/stress", s.handleSeries(models.KindStress))
		r.Get("/api/blood-oxygen", s.handleSeries(models.KindBloodOxygen))
		r.Get("/api/temperature", s.handleSeries(models.KindTemperature))
		r.Get("/api/exercise", s.handleSeries(models.KindExercise))
		r.Get("/api/sport-plus", s.handleSeries(models.KindSportPlus))
		r.Get("/api/sedentary", s.handleSeries(models.KindSedentary))
		r.Get("/api/blood-pressure", s.handleSeries(models.KindBloodPressure))
		r.Get("/api/sleep", s.handleDays(models.KindSleep))
		r.Get("/api/daily-activity", s.handleDays(models.KindActivity))
		r.Get("/api/daily-readiness", s.handleReadiness)
		r.Get("/api/manual-measurements", s.handleManualMeasurements)
		r.Get("/api/user-info", s.handleProfile(models.KindUserInfo))
		r.Get("/api/target-info", s.handleProfile(models.KindTargetInfo))
		r.Get("/api/stats", s.handleStats)
	})

	if s.metrics.Enabled() {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp)
	}
}
