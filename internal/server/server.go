package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/directory"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
	"github.com/parlamentwatch/member-ingestion-service/internal/storage"
)

// Ingestor runs one complete ingestion
type Ingestor interface {
	Run(ctx context.Context) (*models.RunResult, error)
}

// Server handles HTTP requests
type Server struct {
	config    config.ServerConfig
	storage   storage.Storage
	ingestor  Ingestor
	directory *directory.Directory
	logger    *logrus.Logger
	handler   http.Handler
	server    *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, store storage.Storage, ingestor Ingestor, logger *logrus.Logger) (*Server, error) {
	s := &Server{
		config:    cfg,
		storage:   store,
		ingestor:  ingestor,
		directory: directory.New(store),
		logger:    logger,
	}

	rate, err := limiter.NewRateFromFormatted(cfg.IngestRate)
	if err != nil {
		return nil, fmt.Errorf("invalid ingest rate %q: %w", cfg.IngestRate, err)
	}
	ingestLimit := stdlib.NewMiddleware(
		limiter.New(memory.NewStore(), rate),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, ingestFailure{Error: "ingestion rate limit exceeded"})
		}),
	)

	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.Handle("/ingest", ingestLimit.Handler(http.HandlerFunc(s.handleIngest))).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}", s.handleSession).Methods(http.MethodGet)
	router.HandleFunc("/members", s.handleMembers).Methods(http.MethodGet)
	router.HandleFunc("/members/export.csv", s.handleExport).Methods(http.MethodGet)
	router.HandleFunc("/members/{id}", s.handleMemberByID).Methods(http.MethodGet)
	router.HandleFunc("/parties", s.handleParties).Methods(http.MethodGet)
	router.HandleFunc("/states", s.handleStates).Methods(http.MethodGet)
	router.HandleFunc("/districts", s.handleDistricts).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	router.Handle(cfg.MetricsPath, promhttp.Handler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus reports the latest import session
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latest, err := s.storage.LatestSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve status: %v", err))
		return
	}
	if latest == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "never_run"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.storage.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve session: %v", err))
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
