package status

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"marketscraper/config"
	"marketscraper/internal/metrics"
	"marketscraper/internal/scheduler"
	"marketscraper/logger"
)

const defaultPort = "8089"

// TaskLister reports the state of scheduled collection tasks.
type TaskLister interface {
	Status() []scheduler.TaskStatus
}

// LatestReader serves the latest document of a collection.
type LatestReader interface {
	ReadLatest(collection string) (json.RawMessage, error)
}

// Server is a read-only HTTP view of the scraper: task states, the latest
// sentiment snapshot, and recent metrics and warnings.
type Server struct {
	cfg                 config.StatusConfig
	log                 *logger.Log
	tasks               TaskLister
	latest              LatestReader
	sentimentCollection string
	startedAt           time.Time

	events       *metricHistory
	subscription metrics.SubscriptionID
	logs         *logHistory
	httpServer   *http.Server
}

// NewServer returns nil when the status server is disabled.
func NewServer(cfg config.StatusConfig, log *logger.Log, tasks TaskLister, latest LatestReader, sentimentCollection string) *Server {
	if !cfg.Enabled {
		return nil
	}
	cfg.Address = normalizeAddress(cfg.Address)

	history := newMetricHistory(cfg.History)
	logs := newLogHistory(cfg.History)
	log.AddHook(logs)

	return &Server{
		cfg:                 cfg,
		log:                 log,
		tasks:               tasks,
		latest:              latest,
		sentimentCollection: sentimentCollection,
		startedAt:           time.Now().UTC(),
		events:              history,
		subscription:        metrics.Subscribe(history.handle),
		logs:                logs,
	}
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.WithComponent("status").WithFields(logger.Fields{"address": s.cfg.Address}).Info("status server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	metrics.Unsubscribe(s.subscription)
	if s.logs != nil {
		s.logs.close()
	}
}

// Address reports the address the server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/tasks", s.handleTasks)
	r.Get("/sentiment/latest", s.handleLatestSentiment)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/logs", s.handleLogs)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := []scheduler.TaskStatus{}
	if s.tasks != nil {
		tasks = append(tasks, s.tasks.Status()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleLatestSentiment(w http.ResponseWriter, _ *http.Request) {
	if s.latest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no sentiment snapshot"})
		return
	}
	doc, err := s.latest.ReadLatest(s.sentimentCollection)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no sentiment snapshot"})
		return
	case err != nil:
		s.log.WithComponent("status").WithError(err).Warn("failed to read latest sentiment")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read failed"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": s.events.snapshot()})
}

func (s *Server) handleLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"logs": s.logs.snapshot()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:" + defaultPort
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = defaultPort
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, defaultPort)
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, defaultPort)
	}

	return addr
}
