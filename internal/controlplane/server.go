package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vhq-lag/vhq/internal/models"
	"github.com/vhq-lag/vhq/internal/store"
)

// Version is reported by /health. Overridden at build time.
var Version = "dev"

// maxBodyBytes bounds invoke request bodies.
const maxBodyBytes = 1 << 20

// defaultPDRLimit is how many audit records /audit/pdr returns by default.
const defaultPDRLimit = 50

// WorkerStats reports scheduler state for /workers.
type WorkerStats interface {
	GetStats() map[string]interface{}
}

// Server provides the HTTP API of the host daemon.
type Server struct {
	service   *Service
	store     *store.Store
	metrics   *Metrics
	scheduler WorkerStats
	addr      string
	server    *http.Server
}

// NewServer creates a new HTTP server. A nil metrics disables /metrics.
func NewServer(service *Service, st *store.Store, metrics *Metrics, addr string) *Server {
	return &Server{
		service: service,
		store:   st,
		metrics: metrics,
		addr:    addr,
	}
}

// SetScheduler enables the /workers endpoint.
func (s *Server) SetScheduler(sch WorkerStats) {
	s.scheduler = sch
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Command bus
	mux.HandleFunc("/invoke/", s.handleInvoke)

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Audit
	mux.HandleFunc("/audit/pdr", s.handlePDR)

	// Scheduler
	mux.HandleFunc("/workers", s.handleWorkers)

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting vhq daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = fmt.Sprintf("error: %v", err)
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// handlePDR handles GET /audit/pdr?limit=N.
func (s *Server) handlePDR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultPDRLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}

	entries, err := s.service.RecentDecisions(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.PDREntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.scheduler == nil {
		http.Error(w, "scheduler not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.GetStats())
}

// handleInvoke handles POST /invoke/{command}.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	command := strings.Trim(strings.TrimPrefix(r.URL.Path, "/invoke/"), "/")
	start := time.Now()
	code := s.invoke(w, r, command)
	if s.metrics != nil {
		s.metrics.observeInvoke(command, code, time.Since(start))
	}
}

// invoke serves one command and returns the status code written.
func (s *Server) invoke(w http.ResponseWriter, r *http.Request, command string) int {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return http.StatusMethodNotAllowed
	}
	if command == "" {
		return writeError(w, fmt.Errorf("%w: empty command", ErrUnknownCommand))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return writeError(w, fmt.Errorf("%w: read body: %v", ErrBadRequest, err))
	}
	var args invokeArgs
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			return writeError(w, fmt.Errorf("%w: invalid json", ErrBadRequest))
		}
	}

	result, err := s.service.Invoke(r.Context(), command, args)
	if err != nil {
		code := writeError(w, err)
		if code >= http.StatusInternalServerError {
			log.Printf("invoke %s: %v", command, err)
		}
		return code
	}
	writeJSON(w, http.StatusOK, result)
	return http.StatusOK
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) int {
	code := statusFor(err)
	writeJSON(w, code, errorResponse{Error: err.Error()})
	return code
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
