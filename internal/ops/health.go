// Package ops provides the simulator's liveness/readiness/metrics HTTP
// surface — ambient operational plumbing, not the out-of-scope dashboard
// (spec.md §1 excludes the browser dashboard, not basic health reporting).
// Grounded on the teacher's producer/health.go.
package ops

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus mirrors the teacher's liveness payload shape.
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Tick      int64     `json:"tick"`
}

// ReadinessStatus mirrors the teacher's readiness payload shape.
type ReadinessStatus struct {
	Ready        bool      `json:"ready"`
	Service      string    `json:"service"`
	Timestamp    time.Time `json:"timestamp"`
	FabricReady  bool      `json:"fabric_ready"`
	ConfigLoaded bool      `json:"config_loaded"`
}

// Server exposes /health, /ready and /metrics for a running simulation.
type Server struct {
	startTime    time.Time
	currentTick  int64
	fabricReady  int32
	configLoaded int32
	mux          *http.ServeMux
}

// NewServer constructs an ops server. Call MarkConfigLoaded/MarkFabricReady
// as the simulator reaches those states, and SetTick each time the scheduler
// advances, then call ListenAndServe (typically in its own goroutine).
func NewServer() *Server {
	s := &Server{startTime: time.Now(), mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

func (s *Server) MarkConfigLoaded() { atomic.StoreInt32(&s.configLoaded, 1) }
func (s *Server) MarkFabricReady(ready bool) {
	if ready {
		atomic.StoreInt32(&s.fabricReady, 1)
	} else {
		atomic.StoreInt32(&s.fabricReady, 0)
	}
}
func (s *Server) SetTick(tick int) { atomic.StoreInt64(&s.currentTick, int64(tick)) }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Service:   "interbank-ccp-simulator",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).String(),
		Tick:      atomic.LoadInt64(&s.currentTick),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	fabricReady := atomic.LoadInt32(&s.fabricReady) == 1
	configReady := atomic.LoadInt32(&s.configLoaded) == 1
	ready := fabricReady && configReady

	status := ReadinessStatus{
		Ready:        ready,
		Service:      "interbank-ccp-simulator",
		Timestamp:    time.Now(),
		FabricReady:  fabricReady,
		ConfigLoaded: configReady,
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// ListenAndServe starts the HTTP server; intended to run in its own
// goroutine from cmd/simulator, exactly as the teacher's
// startHealthServer does.
func (s *Server) ListenAndServe(addr string) {
	log.Printf("[ops] health/ready/metrics server starting on %s", addr)
	if err := http.ListenAndServe(addr, s.mux); err != nil {
		log.Printf("[ops] server error: %v", err)
	}
}
