package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestHandler(t *testing.T) {
	body := scrape(t, NewRegistry())
	for _, want := range []string{"go_goroutines", "process_", "browserbox_http_requests_in_flight"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestObserveRequest(t *testing.T) {
	r := NewRegistry()
	r.ObserveRequest(http.MethodPost, "/openapi/browserbox/v1/dotask", 429, 3*time.Millisecond)
	r.ObserveRequest(http.MethodPost, "/openapi/browserbox/v1/dotask", 429, 5*time.Millisecond)

	body := scrape(t, r)
	if !strings.Contains(body, `browserbox_http_requests_total{code="429",method="POST",route="/openapi/browserbox/v1/dotask"} 2`) {
		t.Error("request counter not exported")
	}
	if !strings.Contains(body, `browserbox_http_request_duration_seconds_count{method="POST",route="/openapi/browserbox/v1/dotask"} 2`) {
		t.Error("duration histogram not exported")
	}
}

func TestRegisterer(t *testing.T) {
	r := NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: Namespace, Name: "test_total", Help: "t"})
	if err := r.Registerer().Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	c.Add(4)
	if !strings.Contains(scrape(t, r), "browserbox_test_total 4") {
		t.Error("component collector not exported")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RequestsInFlight.Inc()
			r.ObserveRequest(http.MethodGet, "/health", 200, time.Millisecond)
			r.RequestsInFlight.Dec()
		}()
	}
	wg.Wait()

	body := scrape(t, r)
	if !strings.Contains(body, `browserbox_http_requests_total{code="200",method="GET",route="/health"} 50`) {
		t.Error("requests_total != 50")
	}
	if !strings.Contains(body, "browserbox_http_requests_in_flight 0") {
		t.Error("requests_in_flight != 0")
	}
}
