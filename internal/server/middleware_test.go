package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ringvault/ringvault/internal/cache"
	"github.com/ringvault/ringvault/internal/metrics"
)

// TestRequestLogging verifies that the logging middleware calls the next handler and records status.
func TestRequestLogging(t *testing.T) {
	handler := RequestLogging(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

func TestClientSource(t *testing.T) {
	tests := []struct {
		remote string
		ua     string
		want   string
	}{
		{"127.0.0.1:5000", "curl/8", SourceLocal},
		{"[::1]:5000", "curl/8", SourceLocal},
		{"203.0.113.9:5000", "Qring/2.1 (iPhone; iOS 17.5)", SourceMobile},
		{"192.168.1.20:5000", "okhttp", SourceMobile},
		{"10.0.0.4:5000", "", SourceMobile},
		{"203.0.113.9:5000", "Mozilla/5.0 (Macintosh)", SourceRemote},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		req.Header.Set("User-Agent", tt.ua)
		if got := ClientSource(req); got != tt.want {
			t.Errorf("ClientSource(%s, %q) = %q, want %q", tt.remote, tt.ua, got, tt.want)
		}
	}
}

// TestCORSHeaders verifies that CORS headers are set on responses.
func TestCORSHeaders(t *testing.T) {
	handler := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q, want *", got)
	}
}

// TestCORSOriginList verifies only listed origins are echoed back.
func TestCORSOriginList(t *testing.T) {
	handler := CORS([]string{"https://dash.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("CORS origin = %q, want the listed origin", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("CORS origin = %q, want none", got)
	}
}

// TestCORSPreflight verifies that OPTIONS requests get 204 with CORS headers.
func TestCORSPreflight(t *testing.T) {
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

// TestRecover verifies a panic becomes a 500 whose detail depends on the
// environment.
func TestRecover(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	})

	for _, production := range []bool{false, true} {
		rec := httptest.NewRecorder()
		Recover(production, zerolog.Nop())(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("production=%v: status = %d, want 500", production, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if production {
			if body["error"] != "Internal server error" || body["type"] != "" {
				t.Errorf("production body = %v", body)
			}
			continue
		}
		if body["error"] != "boom" || body["type"] != "*errors.errorString" {
			t.Errorf("development body = %v", body)
		}
	}
}

// TestCacheSkipsBodyRenderedBeforeClear verifies a response computed while
// an upload cleared the cache is served but not stored.
func TestCacheSkipsBodyRenderedBeforeClear(t *testing.T) {
	c := cache.New(true, 1, time.Minute)
	calls := 0
	handler := Cache(c, metrics.New(false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			c.Clear()
		}
		w.Write([]byte(`{"n":1}`))
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
		if rec.Body.String() != `{"n":1}` {
			t.Errorf("body = %q", rec.Body.String())
		}
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2 (first body must not be cached)", calls)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Header().Get("X-Cache") != "HIT" || calls != 2 {
		t.Errorf("third request: X-Cache = %q, calls = %d", rec.Header().Get("X-Cache"), calls)
	}
}
