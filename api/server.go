// Package api - Thin, deterministic API layer
// The API is ONLY responsible for: input ingestion, engine orchestration, output serialization.
// The API NEVER performs planning logic.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cu-planner/core/engine"
	"cu-planner/core/output"
	"cu-planner/internal/errors"
	"cu-planner/internal/logging"
)

// DefaultMaxBodyBytes bounds request bodies when ServerConfig leaves it unset
const DefaultMaxBodyBytes = 8 << 20

// ServerConfig configures the API server
type ServerConfig struct {
	// Version is reported by /health and /version
	Version string

	// MaxBodyBytes bounds request bodies
	MaxBodyBytes int64

	// Gatherer backs /metrics; nil leaves /metrics unregistered
	Gatherer prometheus.Gatherer
}

// Server is the API server
type Server struct {
	engine     *engine.Engine
	formatters output.FormatterRegistry
	mux        *http.ServeMux
	config     ServerConfig
	logger     *zap.Logger
}

// NewServer creates a new API server
func NewServer(eng *engine.Engine, config ServerConfig) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		engine:     eng,
		formatters: output.NewDefaultRegistry(),
		mux:        http.NewServeMux(),
		config:     config,
		logger:     logging.Named("api"),
	}

	s.registerRoutes()
	return s
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("POST /plan", s.handlePlan)
	s.mux.HandleFunc("POST /sweep", s.handleSweep)
	s.mux.HandleFunc("POST /log-delta", s.handleLogDelta)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Supporting endpoints
	s.mux.HandleFunc("GET /scenarios", s.handleListScenarios)
	s.mux.HandleFunc("GET /scenarios/{name}", s.handleGetScenario)
	s.mux.HandleFunc("GET /version", s.handleVersion)
	if s.config.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}
}

// handlePlan handles POST /plan
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !s.decode(w, r, &req) {
		return
	}

	// Execute engine (NO PLANNING LOGIC HERE)
	report, err := s.engine.Plan(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeReport(w, r, report)
}

// handleSweep handles POST /sweep
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if !s.decode(w, r, &req) {
		return
	}

	report, err := s.engine.Sweep(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeReport(w, r, report)
}

// handleLogDelta handles POST /log-delta
func (s *Server) handleLogDelta(w http.ResponseWriter, r *http.Request) {
	var req LogDeltaRequest
	if !s.decode(w, r, &req) {
		return
	}

	report, err := s.engine.AnalyzeLog(r.Context(), req.Source, strings.NewReader(req.Log))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeReport(w, r, report)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":  "healthy",
		"version": s.config.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// handleVersion handles GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"version":     s.config.Version,
		"engine":      "cu-planner",
		"api_version": "v1",
	}, http.StatusOK)
}

// handleListScenarios handles GET /scenarios
func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	sources := s.engine.Scenarios().GetAll()
	list := ScenarioList{Scenarios: make([]ScenarioInfo, 0, len(sources)), Count: len(sources)}
	for _, src := range sources {
		list.Scenarios = append(list.Scenarios, ScenarioInfo{Name: src.Name(), Description: src.Description()})
	}
	s.writeJSON(w, list, http.StatusOK)
}

// handleGetScenario handles GET /scenarios/{name}
func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.engine.Scenarios().Load(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, sc, http.StatusOK)
}

// decode reads a JSON body into v, writing the error response itself on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, "INVALID_JSON", err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeReport renders report in the format named by the format query parameter, JSON by default
func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, report output.Report) {
	format := output.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		parsed, err := output.ParseFormat(q)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		format = parsed
	}

	formatter, ok := s.formatters.GetFormatter(format)
	if !ok {
		s.writeError(w, string(errors.TypeNotFound), "no formatter for "+string(format), http.StatusNotFound)
		return
	}

	switch format {
	case output.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	case output.FormatCLI:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	if err := formatter.Render(w, report); err != nil {
		s.logger.Error("rendering response", zap.String("kind", report.Kind()), zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("writing response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code, message string, status int) {
	s.writeJSON(w, ErrorBody{Error: ErrorDetail{Code: code, Message: message}}, status)
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeError(w, string(errors.TypeOf(err)), err.Error(), status)
}

// StatusFor maps an engine error to an HTTP status
func StatusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	switch errors.TypeOf(err) {
	case errors.TypeInvalidConfiguration, errors.TypeInput, errors.TypeParsing:
		return http.StatusBadRequest
	case errors.TypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	s.logger.Info("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)))
}

// ListenConfig configures the listening HTTP server
type ListenConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for at most ShutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, cfg ListenConfig) error {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
