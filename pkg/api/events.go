package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"msgvault/pkg/dispatch"
	"msgvault/pkg/models"
)

var eventTypes = map[string]dispatch.EventType{
	"create":      dispatch.MessageCreate,
	"update":      dispatch.MessageUpdate,
	"delete":      dispatch.MessageDelete,
	"delete-bulk": dispatch.MessageDeleteBulk,
}

// publishEvent serves POST /v1/events/{type}: the host client forwards a
// lifecycle event payload and gets 202 back immediately. Ingestion is
// fire-and-forget; a full queue answers 429 and the event is dropped.
func (s *Server) publishEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	t, ok := eventTypes[mux.Vars(r)["type"]]
	if !ok {
		http.Error(w, `{"error":"unknown event type"}`, http.StatusBadRequest)
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil || len(payload) == 0 {
		http.Error(w, `{"error":"missing payload"}`, http.StatusBadRequest)
		return
	}
	if !json.Valid(payload) {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if err := s.bus.PublishRaw(t, payload); err != nil {
		if errors.Is(err, dispatch.ErrQueueFull) {
			http.Error(w, `{"error":"queue full"}`, http.StatusTooManyRequests)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}

// reconcileLoad serves POST /v1/reconcile: a freshly fetched page goes in,
// the page with retained deletions spliced back comes out. This one runs
// synchronously because the host needs the merged result to render.
func (s *Server) reconcileLoad(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var pl models.LoadPayload
	if err := json.NewDecoder(r.Body).Decode(&pl); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if pl.ChannelID == "" {
		http.Error(w, `{"error":"channel_id required"}`, http.StatusBadRequest)
		return
	}
	merged := s.pipe.HandleLoad(&pl)
	_ = json.NewEncoder(w).Encode(struct {
		ChannelID string            `json:"channel_id"`
		Messages  []*models.Message `json:"messages"`
	}{ChannelID: pl.ChannelID, Messages: merged})
}
