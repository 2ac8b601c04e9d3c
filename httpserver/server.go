package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/phajek/drainkit/workerpool"
)

// ErrNotListening indicates Serve was called before Listen.
var ErrNotListening = errors.New("server is not listening")

// JobSubmitter is the slice of the worker pool the server needs.
// *workerpool.Pool satisfies it.
type JobSubmitter interface {
	Submit(name string, fn workerpool.JobFunc) (string, error)
	Stats() workerpool.Stats
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. ":8080". Use ":0" for an
	// ephemeral port.
	Addr string

	// ThrottleRPS caps accepted requests per second. Zero disables
	// throttling.
	ThrottleRPS int

	// ThrottleBurst is the token-bucket burst size. Defaults to
	// ThrottleRPS when zero.
	ThrottleBurst int

	// Logger receives request and lifecycle logs. A nil logger disables
	// logging.
	Logger *zap.Logger
}

// Server wraps http.Server with an owned listener so acceptance can be
// paused independently of in-flight request handling. It implements the
// shutdown.Listener capability.
type Server struct {
	config  Config
	logger  *zap.Logger
	pool    JobSubmitter
	srv     *http.Server
	limiter *rate.Limiter

	mu sync.Mutex
	ln net.Listener

	pauseOnce    sync.Once
	shuttingDown atomic.Bool
	inFlight     atomic.Int64
}

// New creates a Server submitting work to the given pool.
func New(config Config, pool JobSubmitter) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		logger: logger,
		pool:   pool,
	}

	if config.ThrottleRPS > 0 {
		burst := config.ThrottleBurst
		if burst <= 0 {
			burst = config.ThrottleRPS
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.ThrottleRPS), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)

	s.srv = &http.Server{
		Handler:           s.trackInFlight(s.throttle(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Listen binds the listener without serving yet.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Serve accepts connections until the listener is paused or closed.
// Returns nil on orderly pause.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Addr returns the bound address, or empty before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Pause implements shutdown.Listener: it closes the listener so no new
// connection is accepted, flips readiness to 503 for probes arriving on
// established connections, and returns without waiting for in-flight
// requests. Safe to call more than once.
func (s *Server) Pause() {
	s.pauseOnce.Do(func() {
		s.shuttingDown.Store(true)

		s.mu.Lock()
		ln := s.ln
		s.mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}

		s.logger.Info("listener paused: refusing new connections",
			zap.Int64("in_flight", s.inFlight.Load()))
	})
}

// InFlight returns the number of requests currently being handled.
func (s *Server) InFlight() int64 {
	return s.inFlight.Load()
}

// trackInFlight counts requests currently inside the handler chain.
func (s *Server) trackInFlight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.inFlight.Add(1)
		defer s.inFlight.Add(-1)
		next.ServeHTTP(w, r)
	})
}

// throttle rejects requests beyond the configured token-bucket rate.
func (s *Server) throttle(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.logger.Debug("request throttled",
				zap.String("path", r.URL.Path),
				zap.Int("rate", s.config.ThrottleRPS))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type submitRequest struct {
	Name       string `json:"name"`
	DurationMS int    `json:"duration_ms"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

// handleSubmitJob queues simulated work on the pool. Once the pool is
// draining, clients get 503 so the orchestrator retries elsewhere.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = "job"
	}

	work := time.Duration(req.DurationMS) * time.Millisecond
	id, err := s.pool.Submit(req.Name, func(ctx context.Context) error {
		select {
		case <-time.After(work):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	switch {
	case errors.Is(err, workerpool.ErrPoolStopped):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	case errors.Is(err, workerpool.ErrQueueFull):
		http.Error(w, "queue full", http.StatusTooManyRequests)
		return
	case err != nil:
		http.Error(w, "submit failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(submitResponse{JobID: id})
}

type statsResponse struct {
	InFlight int64            `json:"in_flight"`
	Pool     workerpool.Stats `json:"pool"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsResponse{
		InFlight: s.inFlight.Load(),
		Pool:     s.pool.Stats(),
	})
}

// handleLiveness always answers 200: a draining process is still alive.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadiness answers 503 once shutdown has begun so probes arriving
// over established connections take this instance out of rotation.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Handler exposes the full middleware chain (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
