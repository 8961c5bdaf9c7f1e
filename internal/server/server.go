package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"bkdict/internal/bktree"
	"bkdict/internal/models"
	"bkdict/internal/storage"
)

// Server answers fuzzy lookups against one archived tree over HTTP
type Server struct {
	storage          *storage.Storage
	port             int
	idleTimeout      time.Duration
	defaultThreshold int
	logger           *slog.Logger
	httpServer       *http.Server

	// bktree.Tree is not safe for concurrent use; every access goes
	// through treeMu.
	treeMu sync.Mutex
	tree   *bktree.Tree[string]
	info   *models.ArchiveInfo

	// Idle timeout management
	mu           sync.Mutex
	lastActivity time.Time
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithPort sets the port to listen on
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithIdleTimeout shuts the server down after d without requests (0 disables)
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.idleTimeout = d
	}
}

// WithDefaultThreshold sets the threshold used when a search omits one
func WithDefaultThreshold(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.defaultThreshold = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New loads the archive at dbPath and prepares a server for it
func New(ctx context.Context, dbPath string, opts ...Option) (*Server, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("archive not found: %w", err)
	}

	store, err := storage.NewStorage(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		storage:          store,
		port:             8080,
		defaultThreshold: 2,
		logger:           slog.Default(),
		lastActivity:     time.Now(),
		shutdownChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	tree, err := store.LoadTree(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	info, err := store.Info(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}

	s.tree = tree
	s.info = info
	s.logger.Info("archive loaded", "path", dbPath, "metric", info.Metric, "nodes", info.NodeCount)

	return s, nil
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/info", s.handleInfo)
	return mux
}

// Start serves until SIGINT, SIGTERM or the idle timeout
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.idleTimeout > 0 {
		go s.idleTimeoutChecker()
	}

	go s.handleShutdownSignals()

	s.logger.Info("listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	s.stop()
	return err
}

// Close releases the archive. Start does this itself on shutdown.
func (s *Server) Close() error {
	s.stop()
	return s.storage.Close()
}

func (s *Server) stop() {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
}

func (s *Server) handleShutdownSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		s.logger.Info("shutting down")
	case <-s.shutdownChan:
		s.logger.Info("idle timeout reached, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("shutdown", "err", err)
	}
	s.storage.Close()
}

func (s *Server) idleTimeoutChecker() {
	ticker := time.NewTicker(min(10*time.Second, s.idleTimeout))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.idleFor() >= s.idleTimeout {
				s.stop()
				return
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *Server) recordActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Server) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// search runs one query under the tree lock
func (s *Server) search(query string, threshold int) []models.Match {
	s.treeMu.Lock()
	hits := s.tree.Search(query, threshold)
	s.treeMu.Unlock()

	matches := make([]models.Match, len(hits))
	for i, h := range hits {
		matches[i] = models.Match{Value: h.Value, Distance: h.Distance}
	}
	return matches
}

// API Handlers

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.recordActivity()

	params := r.URL.Query()
	if !params.Has("q") {
		http.Error(w, "q required", http.StatusBadRequest)
		return
	}
	query := params.Get("q")

	threshold := s.defaultThreshold
	if raw := params.Get("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid threshold %q", raw), http.StatusBadRequest)
			return
		}
		threshold = n
	}

	start := time.Now()
	result := models.SearchResult{
		Query:     query,
		Threshold: threshold,
		Matches:   s.search(query, threshold),
	}
	s.logger.Debug("search", "q", query, "threshold", threshold, "matches", len(result.Matches), "took", time.Since(start))

	writeJSON(w, result)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.recordActivity()
	writeJSON(w, s.info)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
