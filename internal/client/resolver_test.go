package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// roundTripFunc transporte falso para no tocar la red
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func stubResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(`{"status":"ok"}`)),
		Header:     make(http.Header),
	}
}

// healthTransport responde 200 solo para las bases sanas y cuenta los sondeos
type healthTransport struct {
	healthy map[string]bool
	hits    atomic.Int32
	gate    chan struct{}
}

func (h *healthTransport) client() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		h.hits.Add(1)
		if h.gate != nil {
			<-h.gate
		}
		base := strings.TrimSuffix(r.URL.String(), "/health")
		if h.healthy[base] {
			return stubResponse(http.StatusOK), nil
		}
		return nil, errors.New("connection refused")
	})}
}

func TestBuildCandidates_OrderAndDedup(t *testing.T) {
	got := buildCandidates(ResolverOptions{
		Override:  " http://override/api/asistencia/ ",
		EnvValue:  "http://override/api/asistencia",
		Origin:    "https://campo.example.com/",
		Fallbacks: []string{"", "http://localhost:3000/api/asistencia", "http://backup/api/asistencia"},
	})

	want := []string{
		"http://override/api/asistencia",
		"https://campo.example.com/api/asistencia",
		"http://localhost:3000/api/asistencia",
		"http://127.0.0.1:3000/api/asistencia",
		"http://backup/api/asistencia",
	}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidates[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolver_FirstHealthyIsMemoized(t *testing.T) {
	tr := &healthTransport{healthy: map[string]bool{"http://env/api/asistencia": true}}
	r := NewResolver(ResolverOptions{
		Override: "http://dead/api/asistencia",
		EnvValue: "http://env/api/asistencia",
	}, tr.client(), zap.NewNop())

	ctx := context.Background()
	base, err := r.ResolveBaseURL(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base != "http://env/api/asistencia" {
		t.Errorf("base = %q, want env candidate", base)
	}
	if tr.hits.Load() != 2 {
		t.Errorf("health checks = %d, want 2", tr.hits.Load())
	}

	for i := 0; i < 3; i++ {
		again, _ := r.ResolveBaseURL(ctx)
		if again != base {
			t.Errorf("memoized base changed: %q", again)
		}
	}
	if tr.hits.Load() != 2 {
		t.Errorf("health checks after memoization = %d, want 2", tr.hits.Load())
	}
}

func TestResolver_ConcurrentCallersShareOneDiscovery(t *testing.T) {
	tr := &healthTransport{
		healthy: map[string]bool{"http://ok/api/asistencia": true},
		gate:    make(chan struct{}),
	}
	r := NewResolver(ResolverOptions{Override: "http://ok/api/asistencia"}, tr.client(), zap.NewNop())

	const callers = 10
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.ResolveBaseURL(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(tr.gate)
	wg.Wait()

	if tr.hits.Load() != 1 {
		t.Errorf("health requests = %d, want 1", tr.hits.Load())
	}
	for i, got := range results {
		if got != "http://ok/api/asistencia" {
			t.Errorf("caller %d got %q", i, got)
		}
	}
}

func TestResolver_AllUnhealthyFallsBackWithoutMemoizing(t *testing.T) {
	tr := &healthTransport{healthy: map[string]bool{}}
	r := NewResolver(ResolverOptions{Override: "http://first/api/asistencia"}, tr.client(), zap.NewNop())
	n := int32(len(r.Candidates()))

	base, err := r.ResolveBaseURL(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base != "http://first/api/asistencia" {
		t.Errorf("base = %q, want first candidate", base)
	}
	if tr.hits.Load() != n {
		t.Errorf("health checks = %d, want %d", tr.hits.Load(), n)
	}

	// sin memorizar: la siguiente llamada vuelve a sondear
	_, _ = r.ResolveBaseURL(context.Background())
	if tr.hits.Load() != 2*n {
		t.Errorf("health checks after second call = %d, want %d", tr.hits.Load(), 2*n)
	}
}

func TestResolver_Non2xxIsUnhealthy(t *testing.T) {
	var hits atomic.Int32
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		hits.Add(1)
		if strings.HasPrefix(r.URL.String(), "http://maint") {
			return stubResponse(http.StatusServiceUnavailable), nil
		}
		return stubResponse(http.StatusOK), nil
	})}
	r := NewResolver(ResolverOptions{
		Override: "http://maint/api/asistencia",
		EnvValue: "http://live/api/asistencia",
	}, hc, zap.NewNop())

	base, _ := r.ResolveBaseURL(context.Background())
	if base != "http://live/api/asistencia" {
		t.Errorf("base = %q, want live candidate", base)
	}
}

func TestResolver_Rediscover(t *testing.T) {
	tr := &healthTransport{healthy: map[string]bool{"http://a/api/asistencia": true}}
	r := NewResolver(ResolverOptions{
		Override: "http://a/api/asistencia",
		EnvValue: "http://b/api/asistencia",
	}, tr.client(), zap.NewNop())

	if base, _ := r.ResolveBaseURL(context.Background()); base != "http://a/api/asistencia" {
		t.Fatalf("base = %q", base)
	}

	tr.healthy = map[string]bool{"http://b/api/asistencia": true}
	base, err := r.Rediscover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base != "http://b/api/asistencia" {
		t.Errorf("base after rediscover = %q, want b", base)
	}
}

func TestResolver_CallerContextCancelled(t *testing.T) {
	tr := &healthTransport{
		healthy: map[string]bool{"http://slow/api/asistencia": true},
		gate:    make(chan struct{}),
	}
	defer close(tr.gate)
	r := NewResolver(ResolverOptions{Override: "http://slow/api/asistencia"}, tr.client(), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.ResolveBaseURL(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}
