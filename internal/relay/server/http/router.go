package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solar-synergy/dockrelay/internal/pkg/auth"
	"github.com/solar-synergy/dockrelay/internal/pkg/metrics"
)

// RouterConfig wires the relay routes.
type RouterConfig struct {
	// Path of the command resource, e.g. /api/status.
	Path         string
	MaxBodyBytes int64

	// Auth guards command writes. Nil leaves them open.
	Auth *auth.Authenticator

	// Websocket serves /ws. Nil disables the route.
	Websocket http.Handler
}

type route struct {
	path    string
	method  string
	handler http.Handler
}

// NewRouter returns the relay's HTTP handler.
func NewRouter(cfg RouterConfig, svc Service) http.Handler {
	h := &handler{svc: svc, auth: cfg.Auth, maxBodyBytes: cfg.MaxBodyBytes}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = 1 << 10
	}

	r := mux.NewRouter()
	r.Use(instrument)

	routes := []route{
		{cfg.Path, http.MethodPost, http.HandlerFunc(h.postCommand)},
		{cfg.Path, http.MethodGet, http.HandlerFunc(h.getCommand)},
		{cfg.Path + "/docks", http.MethodGet, http.HandlerFunc(h.listDocks)},
		{cfg.Path + "/docks/{dockId}", http.MethodGet, http.HandlerFunc(h.getDock)},
		{cfg.Path + "/docks/{dockId}/ack", http.MethodPost, http.HandlerFunc(h.postAck)},
		// The relay's default dock, for clients that do not name one.
		{cfg.Path + "/dock", http.MethodGet, http.HandlerFunc(h.getDock)},
		{cfg.Path + "/dock/ack", http.MethodPost, http.HandlerFunc(h.postAck)},
		{"/healthz", http.MethodGet, http.HandlerFunc(h.healthz)},
		{"/readyz", http.MethodGet, http.HandlerFunc(h.readyz)},
		{"/metrics", http.MethodGet, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})},
	}
	if cfg.Websocket != nil {
		routes = append(routes, route{"/ws", http.MethodGet, cfg.Websocket})
	}

	// Preflight is answered only on known paths so unknown paths stay 404.
	preflighted := make(map[string]bool)
	for _, rt := range routes {
		if !preflighted[rt.path] {
			r.HandleFunc(rt.path, preflight).Methods(http.MethodOptions)
			preflighted[rt.path] = true
		}
		r.Handle(rt.path, rt.handler).Methods(rt.method)
	}

	return withRelayHeaders(r)
}
