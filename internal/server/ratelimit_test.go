package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler answers 200 for any request; the middleware under test decides
// whether it is reached.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func limitedRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func Test_RateLimit_AllowsWithinBurst(t *testing.T) {
	t.Parallel()
	rl, stop := newIPRateLimiter(100, 5, slog.Default())
	t.Cleanup(stop)
	h := rl.limit(okHandler)

	for i := 0; i < 5; i++ {
		if w := limitedRequest(h, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: want 200, got %d", i+1, w.Code)
		}
	}
}

func Test_RateLimit_RejectsBeyondBurst(t *testing.T) {
	t.Parallel()
	// Near-zero refill rate: only the burst tokens are available.
	rl, stop := newIPRateLimiter(0.001, 2, slog.Default())
	t.Cleanup(stop)
	h := rl.limit(okHandler)

	limitedRequest(h, "10.0.0.2:1234")
	limitedRequest(h, "10.0.0.2:1234")

	w := limitedRequest(h, "10.0.0.2:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request past burst: want 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 must carry a Retry-After header")
	}
}

func Test_RateLimit_BucketsArePerIP(t *testing.T) {
	t.Parallel()
	rl, stop := newIPRateLimiter(0.001, 1, slog.Default())
	t.Cleanup(stop)
	h := rl.limit(okHandler)

	if w := limitedRequest(h, "10.0.0.3:1111"); w.Code != http.StatusOK {
		t.Fatalf("first IP: want 200, got %d", w.Code)
	}
	if w := limitedRequest(h, "10.0.0.3:1111"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first IP exhausted: want 429, got %d", w.Code)
	}
	// A different client keeps its own untouched bucket.
	if w := limitedRequest(h, "10.0.0.4:2222"); w.Code != http.StatusOK {
		t.Errorf("second IP: want 200, got %d", w.Code)
	}
}

func Test_RemoteIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr string
		want string
	}{
		{"192.168.1.9:54321", "192.168.1.9"},
		{"[::1]:8080", "::1"},
		{"bare-host", "bare-host"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.addr
		if got := remoteIP(req); got != tt.want {
			t.Errorf("remoteIP(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
