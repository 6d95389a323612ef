package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"capflow/internal/capture"
	"capflow/internal/config"
	"capflow/internal/correlate"
	"capflow/internal/logging"
)

// Server accepts transactions captured by an external proxy and feeds them,
// one at a time, into a single correlation engine.
type Server struct {
	bind     string
	token    string
	maxBody  int64
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	engine   *correlate.Engine
	recorder *capture.JSONLWriter
	received int
	started  time.Time

	listener net.Listener
	server   *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRecorder tees every accepted transaction to w as JSON Lines so the
// session can be replayed later.
func WithRecorder(w io.Writer) Option {
	return func(s *Server) {
		if w != nil {
			s.recorder = capture.NewJSONLWriter(w)
		}
	}
}

// New builds a server around engine using the ingest section of cfg.
func New(cfg *config.Config, engine *correlate.Engine, opts ...Option) (*Server, error) {
	if cfg == nil || engine == nil {
		return nil, errors.New("ingest server requires config and engine")
	}
	s := &Server{
		bind:     strings.TrimSpace(cfg.Ingest.Bind),
		token:    cfg.Ingest.Token,
		maxBody:  cfg.Ingest.MaxBodyBytes,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		engine:   engine,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "ingest")

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP routes served by the ingest API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/transactions", s.requireToken(s.handleTransactions))
	mux.HandleFunc("/v1/sessions", s.requireToken(s.handleSessions))
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

// Run acquires the single-instance lock, serves until ctx is cancelled, and
// shuts the listener down gracefully. In-flight requests finish before Run
// returns, so the engine can be finalized afterwards.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another capflow ingest server holds %s", s.lockPath)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release ingest lock", logging.Error(err))
		}
	}()

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("ingest listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(listener)
	}()
	s.logger.Info("ingest server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("lock", s.lockPath),
	)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ingest serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ingest shutdown: %w", err)
	}
	s.logger.Info("ingest server stopped", logging.Int("transactions", s.Received()))
	return nil
}

// Addr returns the bound listener address once Run is serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Received reports how many transactions were accepted.
func (s *Server) Received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Finalize finalizes the engine under the server lock.
func (s *Server) Finalize() correlate.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Finalize()
}

type ingestResponse struct {
	Completed []int64 `json:"completed"`
}

type sessionsResponse struct {
	InProgress []correlate.SessionSummary `json:"in_progress"`
	Completed  []correlate.SessionSummary `json:"completed"`
}

type healthResponse struct {
	Status       string `json:"status"`
	Transactions int    `json:"transactions"`
	InProgress   int    `json:"in_progress"`
	Completed    int    `json:"completed"`
	Uptime       string `json:"uptime"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	var rec capture.Record
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid transaction record: "+err.Error())
		return
	}
	tx, err := rec.Transaction()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	completed, ok := s.ingest(tx)
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "engine finalized")
		return
	}

	resp := ingestResponse{Completed: make([]int64, 0, len(completed))}
	for _, session := range completed {
		resp.Completed = append(resp.Completed, int64(session.ID))
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

// ingest records and correlates tx under the server lock. It reports false
// once the engine has been finalized.
func (s *Server) ingest(tx capture.Transaction) ([]*correlate.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.Finalized() {
		return nil, false
	}
	if s.recorder != nil {
		if err := s.recorder.Write(tx); err != nil {
			logging.WarnWithImpact(s.logger, "failed to record transaction", "recorder write failed",
				logging.String(logging.FieldURL, tx.URL),
				logging.Error(err),
				logging.String(logging.FieldImpact, "recorded capture will be missing this transaction"),
			)
		}
	}
	completed := s.engine.Ingest(tx)
	s.received++
	return completed, true
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	resp := sessionsResponse{
		InProgress: correlate.Summaries(s.engine.InProgress()),
		Completed:  correlate.Summaries(s.engine.Completed()),
	}
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	stats := s.engine.Stats()
	resp := healthResponse{
		Status:       "ok",
		Transactions: s.received,
		InProgress:   len(s.engine.InProgress()),
		Completed:    stats.SessionsCompleted,
		Uptime:       time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.engine.Finalized() {
		resp.Status = "finalized"
	}
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
