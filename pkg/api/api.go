// Package api exposes the log browser's HTTP surface: listing and pruning
// retained records, bulk import/export, and live policy settings.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"msgvault/pkg/dispatch"
	"msgvault/pkg/ingest"
	"msgvault/pkg/logger"
	"msgvault/pkg/policy"
	"msgvault/pkg/store"
)

// Server bundles the collaborators the handlers need.
type Server struct {
	st   *store.Store
	pipe *ingest.Pipeline
	pol  *policy.Policy
	atts ingest.AttachmentCache
	bus  *dispatch.Bus
	// guildOf resolves a channel to its server for server-scoped queries.
	guildOf func(channelID string) string
}

// New builds the API server. guildOf may be nil when no channel metadata
// source is available; server-scoped queries then match direct guild ids only.
func New(st *store.Store, pipe *ingest.Pipeline, pol *policy.Policy, atts ingest.AttachmentCache, bus *dispatch.Bus, guildOf func(channelID string) string) *Server {
	return &Server{st: st, pipe: pipe, pol: pol, atts: atts, bus: bus, guildOf: guildOf}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.LogRequest(req)
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/events/{type}", s.publishEvent).Methods(http.MethodPost)
	v1.HandleFunc("/reconcile", s.reconcileLoad).Methods(http.MethodPost)
	v1.HandleFunc("/logs", s.listLogs).Methods(http.MethodGet)
	v1.HandleFunc("/logs", s.clearLogs).Methods(http.MethodDelete)
	v1.HandleFunc("/logs/export", s.exportLogs).Methods(http.MethodGet)
	v1.HandleFunc("/logs/import", s.importLogs).Methods(http.MethodPost)
	v1.HandleFunc("/logs/{id}", s.getLog).Methods(http.MethodGet)
	v1.HandleFunc("/logs/{id}", s.deleteLog).Methods(http.MethodDelete)
	v1.HandleFunc("/settings", s.getSettings).Methods(http.MethodGet)
	v1.HandleFunc("/settings", s.putSettings).Methods(http.MethodPut)
	return r
}
