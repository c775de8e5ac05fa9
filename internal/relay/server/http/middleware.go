package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/solar-synergy/dockrelay/internal/pkg/metrics"
)

const (
	allowOrigin  = "*"
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type, Authorization, X-Request-ID"
	cacheControl = "no-store, no-cache, must-revalidate, proxy-revalidate, max-age=0"
)

// withRelayHeaders sets the CORS and no-cache headers on every response,
// including errors and unmatched routes. Browsers call cross-origin and the
// controller must never see a cached token.
func withRelayHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Cache-Control", cacheControl)
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

// preflight answers every OPTIONS request.
func preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// instrument records latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
