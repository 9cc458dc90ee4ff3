package server

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ringvault/ringvault/internal/cache"
	"github.com/ringvault/ringvault/internal/metrics"
)

// Client sources reported in request logs.
const (
	SourceLocal  = "local"
	SourceMobile = "mobile"
	SourceRemote = "remote"
)

// RequestLogging returns middleware that logs each request.
func RequestLogging(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info().
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Str("source", ClientSource(r)).
				Str("client_ip", clientIP(r)).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// ClientSource classifies the caller: loopback is local; the phone app is
// recognized by its User-Agent or a private LAN address.
func ClientSource(r *http.Request) string {
	ip := clientIP(r)
	if ip == "127.0.0.1" || ip == "::1" {
		return SourceLocal
	}
	ua := r.UserAgent()
	if strings.Contains(ua, "iOS") || strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") ||
		strings.HasPrefix(ip, "10.") || strings.HasPrefix(ip, "192.168.") {
		return SourceMobile
	}
	return SourceRemote
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CORS returns middleware allowing the given origins. A "*" entry (or an
// empty list) allows any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); origin != "" && slices.Contains(origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Mcp-Session-Id")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recover turns a handler panic into a JSON 500. Outside production the
// body carries the panic value and its type.
func Recover(production bool, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("handler panic")

				if production {
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
					return
				}
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": fmt.Sprint(rec),
					"type":  fmt.Sprintf("%T", rec),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics records request count and latency per route pattern.
func Metrics(m metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			endpoint := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					endpoint = p
				}
			}
			m.IncRequestsTotal(endpoint, sw.status)
			m.ObserveRequestDuration(endpoint, time.Since(start))
		})
	}
}

// Cache serves repeated GETs from c, keyed by the full request URI. Only
// 200 responses are stored.
func Cache(c cache.Cache, m metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			key := r.URL.RequestURI()
			if body, ok := c.Get(key); ok {
				m.IncCacheHits()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				w.Write(body)
				return
			}
			m.IncCacheMisses()

			// An upload clearing the cache mid-request bumps the generation,
			// and the body rendered from older data is not stored.
			gen := c.Generation()
			bw := &bufferWriter{statusWriter: statusWriter{ResponseWriter: w, status: http.StatusOK}}
			next.ServeHTTP(bw, r)
			if bw.status == http.StatusOK {
				c.Set(key, bw.buf.Bytes(), gen)
			}
		})
	}
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so streamed MCP responses are
// not held back.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// bufferWriter keeps a copy of everything written.
type bufferWriter struct {
	statusWriter
	buf bytes.Buffer
}

func (w *bufferWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}
