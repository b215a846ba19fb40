// Package server exposes byte analysis over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/grokify/bytelens/pkg/analysis"
	"github.com/grokify/bytelens/pkg/backend"
	"github.com/grokify/bytelens/pkg/observability"
	"github.com/grokify/bytelens/pkg/scan"
	"github.com/grokify/mogo/log/slogutil"
)

// Limits for list and range queries.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
	MaxInspectBytes  = 64 * 1024
)

// Config holds API server configuration.
type Config struct {
	Host            string
	Port            int
	MaxUploadSize   int64
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	DumpWidth       int
	Version         string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            8080,
		MaxUploadSize:   32 * 1024 * 1024,
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		DumpWidth:       analysis.DefaultDumpWidth,
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RecordsResponse is the response body of GET /api/records.
type RecordsResponse struct {
	Records []*backend.RecordSummary `json:"records"`
	Total   int64                    `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

// InfoResponse is the response body of GET /api/info.
type InfoResponse struct {
	Version    string   `json:"version,omitempty"`
	Storage    bool     `json:"storage"`
	Queryable  bool     `json:"queryable"`
	Signatures []string `json:"signatures"`
}

// Server serves the analysis API.
type Server struct {
	config  *Config
	store   backend.RecordStore
	querier backend.RecordQuerier
	metrics *observability.Metrics
	health  *observability.HealthChecker
	logger  *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	running    bool
}

// New creates a server. A nil config uses DefaultConfig.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultConfig().MaxUploadSize
	}
	return &Server{
		config: cfg,
		logger: slogutil.Null(),
	}
}

// SetStore sets where analyzed uploads are persisted. Listing endpoints are
// enabled when the store also supports queries.
func (s *Server) SetStore(store backend.RecordStore) {
	s.store = store
	if q, ok := backend.Querier(store); ok {
		s.querier = q
	} else {
		s.querier = nil
	}
}

// SetMetrics enables request and analysis metrics.
func (s *Server) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// SetHealthChecker serves /healthz and /readyz from h.
func (s *Server) SetHealthChecker(h *observability.HealthChecker) {
	s.health = h
}

// SetLogger sets the request logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slogutil.Null()
	}
	s.logger = logger
}

// Handler returns the API handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/inspect", s.handleInspect)
	mux.HandleFunc("POST /api/dump", s.handleDump)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("GET /api/records/stats", s.handleRecordStats)
	mux.HandleFunc("GET /api/records/{id}", s.handleRecordDetail)

	if s.health != nil {
		mux.Handle("GET /healthz", s.health.LivenessHandler())
		mux.Handle("GET /readyz", s.health.ReadinessHandler())
	}

	var h http.Handler = mux
	if s.metrics != nil {
		h = s.metrics.MetricsMiddleware(h)
	}
	return s.logRequests(h)
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := s.httpServer
	s.mu.Unlock()

	if s.health != nil {
		s.health.SetReady(true)
	}
	s.logger.Info("api server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.stopped()
		return err
	case <-ctx.Done():
	}

	if s.health != nil {
		s.health.SetReady(false)
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.stopped()
	if err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

func (s *Server) stopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	data, ok := s.readBody(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload"
	}

	rec := scan.NewRecord(name, data, int64(len(data)))
	if s.metrics != nil {
		s.metrics.RecordAnalysis(r.Context(), rec, observability.SourceAPI)
	}

	if s.store != nil {
		if err := s.store.Store(r.Context(), rec); err != nil {
			s.logger.Error("failed to store record", "name", name, "error", err)
			writeError(w, "failed to store record", http.StatusInternalServerError)
			return
		}
	}

	_ = json.NewEncoder(w).Encode(rec)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	offset, length, ok := parseRange(w, r)
	if !ok {
		return
	}
	if length < 0 || length > MaxInspectBytes {
		length = MaxInspectBytes
	}

	data, ok := s.readBody(w, r)
	if !ok {
		return
	}

	_ = json.NewEncoder(w).Encode(analysis.InspectRange(data, offset, length))
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	offset, length, ok := parseRange(w, r)
	if !ok {
		return
	}

	width := s.config.DumpWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 64 {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, "invalid width", http.StatusBadRequest)
			return
		}
		width = n
	}

	data, ok := s.readBody(w, r)
	if !ok {
		return
	}

	start, end := analysis.ClampRange(len(data), offset, length)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rows := analysis.Dump(data[start:end], int64(start), width)
	if err := analysis.WriteDump(w, rows, width); err != nil {
		s.logger.Debug("failed to write dump", "error", err)
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	sigs := analysis.Signatures()
	names := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		names = append(names, sig.FormatName)
	}

	_ = json.NewEncoder(w).Encode(InfoResponse{
		Version:    s.config.Version,
		Storage:    s.store != nil,
		Queryable:  s.querier != nil,
		Signatures: names,
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.querier == nil {
		writeError(w, "record storage not available", http.StatusServiceUnavailable)
		return
	}

	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	records, err := s.querier.Query(r.Context(), filter)
	if err != nil {
		s.logger.Error("record query failed", "error", err)
		writeError(w, "query failed", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*backend.RecordSummary{}
	}

	countFilter := *filter
	countFilter.Limit = 0
	countFilter.Offset = 0
	total, err := s.querier.Count(r.Context(), &countFilter)
	if err != nil {
		s.logger.Error("record count failed", "error", err)
		writeError(w, "count failed", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(RecordsResponse{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

func (s *Server) handleRecordStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.querier == nil {
		writeError(w, "record storage not available", http.StatusServiceUnavailable)
		return
	}

	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	filter.Limit = 0
	filter.Offset = 0

	stats, err := s.querier.Stats(r.Context(), filter)
	if err != nil {
		s.logger.Error("record stats failed", "error", err)
		writeError(w, "stats failed", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleRecordDetail(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.querier == nil {
		writeError(w, "record storage not available", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	rec, err := s.querier.GetByID(r.Context(), id)
	if errors.Is(err, backend.ErrNotFound) {
		writeError(w, "record not found", http.StatusNotFound)
		return
	} else if err != nil {
		s.logger.Error("record lookup failed", "id", id, "error", err)
		writeError(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(rec)
}

// readBody reads the request body bounded by MaxUploadSize, writing an
// error response when it cannot.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)
	data, err := io.ReadAll(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "upload too large", http.StatusRequestEntityTooLarge)
		} else {
			writeError(w, "failed to read body", http.StatusBadRequest)
		}
		return nil, false
	}
	return data, true
}

// parseRange reads the offset and length query parameters. A missing
// length is -1, meaning to the end of the buffer.
func parseRange(w http.ResponseWriter, r *http.Request) (int64, int, bool) {
	q := r.URL.Query()

	var offset int64
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 0, 64)
		if err != nil || n < 0 {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, "invalid offset", http.StatusBadRequest)
			return 0, 0, false
		}
		offset = n
	}

	length := -1
	if v := q.Get("length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, "invalid length", http.StatusBadRequest)
			return 0, 0, false
		}
		length = n
	}

	return offset, length, true
}

func parseFilter(w http.ResponseWriter, r *http.Request) (*backend.RecordFilter, bool) {
	q := r.URL.Query()

	filter := &backend.RecordFilter{
		Limit: DefaultListLimit,
		Desc:  true,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxListLimit {
			writeError(w, "invalid limit", http.StatusBadRequest)
			return nil, false
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "invalid offset", http.StatusBadRequest)
			return nil, false
		}
		filter.Offset = n
	}
	if v := q.Get("order"); v == "asc" {
		filter.Desc = false
	}
	if v := q.Get("hidden"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, "invalid hidden", http.StatusBadRequest)
			return nil, false
		}
		filter.HiddenOnly = b
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, "invalid since", http.StatusBadRequest)
			return nil, false
		}
		filter.StartTime = t
	}

	filter.Formats = q["format"]
	filter.Encodings = q["encoding"]
	filter.NamePattern = q.Get("name")

	return filter, true
}

func writeError(w http.ResponseWriter, msg string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
