package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/metrics"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// withCORS lets the storefront call the API from another origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withSiteHeaders sets security headers on storefront pages.
func withSiteHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// withMetrics records request count and latency per route, plus an EMF
// line when running in Lambda. Routes are labelled by their mux pattern to
// keep label cardinality low.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		elapsed := time.Since(start)
		endpoint := routeLabel(r)
		metrics.ObserveHTTP(r.Method, endpoint, strconv.Itoa(sr.statusCode), elapsed)
		metrics.EmitRequest(endpoint, r.Method, sr.statusCode, elapsed)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.statusCode).
			Dur("duration", elapsed).
			Msg("Request handled")
	})
}

// routeLabel returns the matched mux pattern without its method, or a
// normalized path for unmatched requests.
func routeLabel(r *http.Request) string {
	if p := r.Pattern; p != "" {
		if i := strings.IndexByte(p, ' '); i >= 0 {
			p = p[i+1:]
		}
		return p
	}
	return normalizeEndpoint(r.URL.Path)
}

// normalizeEndpoint collapses ID-like path segments:
// /api/products/3f2a9c1e-... -> /api/products/*
func normalizeEndpoint(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = "*"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// looksLikeID returns true if a path segment looks like a random ID (hex,
// UUID, phone number).
func looksLikeID(s string) bool {
	if len(s) < 8 {
		return false
	}
	idChars := 0
	for _, c := range s {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || c == '-' || c == '+' {
			idChars++
		}
	}
	return float64(idChars)/float64(len(s)) > 0.8
}
