package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phajek/drainkit/shutdown"
	"github.com/phajek/drainkit/workerpool"
)

// TestServerImplementsListenerCapability pins the server to the
// coordinator's listener contract.
func TestServerImplementsListenerCapability(t *testing.T) {
	var _ shutdown.Listener = (*Server)(nil)
}

func newTestPool(t *testing.T) *workerpool.Pool {
	t.Helper()
	pool := workerpool.New(workerpool.Config{Workers: 2, QueueDepth: 8})
	pool.Start()
	return pool
}

// TestPauseStopsNewConnections verifies phase 1 semantics over a real
// listener: before Pause requests succeed, after Pause new connections
// are refused at the network layer.
func TestPauseStopsNewConnections(t *testing.T) {
	pool := newTestPool(t)
	srv := New(Config{Addr: "127.0.0.1:0"}, pool)

	if err := srv.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve()
	}()

	client := &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
		Timeout:   2 * time.Second,
	}

	resp, err := client.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("request before pause failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 before pause, got %d", resp.StatusCode)
	}

	addr := srv.Addr()
	srv.Pause()

	if _, err := client.Get("http://" + addr + "/healthz"); err == nil {
		t.Fatal("expected new connection to be refused after pause")
	}

	select {
	case err := <-serveDone:
		if err != nil {
			t.Fatalf("expected Serve to return nil after pause, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after pause")
	}
}

// TestPauseIsIdempotent verifies repeat pauses are safe.
func TestPauseIsIdempotent(t *testing.T) {
	pool := newTestPool(t)
	srv := New(Config{Addr: "127.0.0.1:0"}, pool)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	srv.Pause()
	srv.Pause()
}

// TestServeWithoutListen verifies the explicit error path.
func TestServeWithoutListen(t *testing.T) {
	srv := New(Config{}, newTestPool(t))
	if err := srv.Serve(); err != ErrNotListening {
		t.Fatalf("expected ErrNotListening, got %v", err)
	}
}

// TestReadinessFlipsOnPause verifies probes over established connections
// see 503 the moment shutdown begins.
func TestReadinessFlipsOnPause(t *testing.T) {
	srv := New(Config{}, newTestPool(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before pause, got %d", rec.Code)
	}

	srv.Pause()

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after pause, got %d", rec.Code)
	}

	// Liveness stays green: a draining process is still alive.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected liveness 200 during drain, got %d", rec.Code)
	}
}

// TestSubmitJobEndpoint verifies the accept path and the draining path.
func TestSubmitJobEndpoint(t *testing.T) {
	pool := newTestPool(t)
	srv := New(Config{}, pool)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"name":"resize","duration_ms":1}`)
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/jobs", body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected a job ID in the response")
	}

	pool.RequestGracefulStop()

	rec = httptest.NewRecorder()
	body = strings.NewReader(`{"name":"late"}`)
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/jobs", body))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while draining, got %d", rec.Code)
	}
}

// fakeSubmitter scripts pool errors without racing real workers.
type fakeSubmitter struct {
	err error
}

func (f *fakeSubmitter) Submit(name string, fn workerpool.JobFunc) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "id", nil
}

func (f *fakeSubmitter) Stats() workerpool.Stats {
	return workerpool.Stats{}
}

// TestSubmitJobBackpressure verifies a full queue maps to 429.
func TestSubmitJobBackpressure(t *testing.T) {
	srv := New(Config{}, &fakeSubmitter{err: workerpool.ErrQueueFull})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/jobs", strings.NewReader(`{}`)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on full queue, got %d", rec.Code)
	}
}

// TestSubmitJobBadBody verifies malformed JSON maps to 400.
func TestSubmitJobBadBody(t *testing.T) {
	srv := New(Config{}, newTestPool(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/jobs", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// TestThrottleRejectsBurstOverflow verifies the token bucket caps intake.
func TestThrottleRejectsBurstOverflow(t *testing.T) {
	srv := New(Config{ThrottleRPS: 1, ThrottleBurst: 1}, newTestPool(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec.Code)
	}
}

// TestInFlightTracking verifies the gauge follows request lifetimes.
func TestInFlightTracking(t *testing.T) {
	srv := New(Config{}, newTestPool(t))

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := srv.trackInFlight(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		blocking.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	}()

	<-entered
	if got := srv.InFlight(); got != 1 {
		t.Fatalf("expected 1 in-flight request, got %d", got)
	}

	close(release)
	<-done
	if got := srv.InFlight(); got != 0 {
		t.Fatalf("expected 0 in-flight requests after completion, got %d", got)
	}
}

// TestStatsEndpoint verifies the counters surface as JSON.
func TestStatsEndpoint(t *testing.T) {
	srv := New(Config{}, newTestPool(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid stats body: %v", err)
	}
}
