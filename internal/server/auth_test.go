package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_RequireAPIKey_EmptyKeyDisablesAuth(t *testing.T) {
	t.Parallel()
	h := requireAPIKey("", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("empty key must pass requests through, got %d", w.Code)
	}
}

func Test_RequireAPIKey_MissingHeaderIs401(t *testing.T) {
	t.Parallel()
	h := requireAPIKey("secret", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 must carry a WWW-Authenticate challenge")
	}
}

func Test_RequireAPIKey_WrongTokenIs401(t *testing.T) {
	t.Parallel()
	h := requireAPIKey("secret", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	req.Header.Set("Authorization", "Bearer not-the-secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("want 401 for wrong token, got %d", w.Code)
	}
}

func Test_RequireAPIKey_CorrectTokenPasses(t *testing.T) {
	t.Parallel()
	h := requireAPIKey("secret", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("want 200 for correct token, got %d", w.Code)
	}
}

func Test_RequireAPIKey_NonBearerSchemeIs401(t *testing.T) {
	t.Parallel()
	h := requireAPIKey("secret", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	req.Header.Set("Authorization", "Basic c2VjcmV0")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("want 401 for non-Bearer scheme, got %d", w.Code)
	}
}

func Test_ExtractBearer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{"absent", "", "", false},
		{"well formed", "Bearer abc123", "abc123", true},
		{"scheme is case-insensitive", "bearer abc123", "abc123", true},
		{"token only", "abc123", "", false},
		{"empty token", "Bearer ", "", false},
		{"wrong scheme", "Basic abc123", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			token, ok := extractBearer(tt.header)
			if ok != tt.ok || token != tt.token {
				t.Errorf("extractBearer(%q) = (%q, %v), want (%q, %v)",
					tt.header, token, ok, tt.token, tt.ok)
			}
		})
	}
}
