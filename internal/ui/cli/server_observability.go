package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fortrandep/internal/core/app"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the /health payload.
type Status struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Files     int       `json:"files"`
	Failures  int       `json:"failures"`
	Problems  int       `json:"problems"`
}

type ObservabilityServer struct {
	addr   string
	server *http.Server

	mu   sync.RWMutex
	last Status
}

func NewObservabilityServer(addr string) *ObservabilityServer {
	return &ObservabilityServer{
		addr: addr,
		last: Status{Status: "starting", Timestamp: time.Now().UTC()},
	}
}

// Record stores the outcome of the latest run for /health.
func (s *ObservabilityServer) Record(res *app.Result) {
	st := Status{
		Status:    "up",
		Timestamp: time.Now().UTC(),
		RunID:     res.RunID,
		Failures:  len(res.Failures),
		Problems:  len(res.Diagnostics),
	}
	if res.Project != nil {
		st.Files = len(res.Project.Files())
	}
	if !res.Success() {
		st.Status = "degraded"
	}
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
}

func (s *ObservabilityServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		status := s.last
		s.mu.RUnlock()
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

func (s *ObservabilityServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("observability server starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
		}
	}()
	return nil
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
