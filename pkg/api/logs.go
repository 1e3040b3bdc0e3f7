package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"msgvault/pkg/logger"
	"msgvault/pkg/models"
	"msgvault/pkg/query"
	"msgvault/pkg/store"
)

// listLogs serves GET /v1/logs. Query params:
//   - tab: deleted | edited | ghost-pinged (default: all)
//   - q: search input, optionally `field:value` prefixed
//   - limit: max records returned after filtering
//   - sort: newest (default) | oldest
func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var recs []*models.Record
	var err error
	switch tab := r.URL.Query().Get("tab"); tab {
	case "", "all":
		recs, err = s.st.SortedByTimestamp(true, 0)
	case "deleted":
		recs, err = s.st.AllByStatus(models.StatusDeleted)
	case "edited":
		recs, err = s.st.AllByStatus(models.StatusEdited)
	case "ghost-pinged":
		var deleted []*models.Record
		deleted, err = s.st.AllByStatus(models.StatusDeleted)
		for _, rec := range deleted {
			if rec.Message != nil && rec.Message.GhostPinged {
				recs = append(recs, rec)
			}
		}
	default:
		http.Error(w, `{"error":"unknown tab"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	q := query.Parse(r.URL.Query().Get("q"))
	recs = q.Filter(recs, s.guildOf)
	query.Sort(recs, r.URL.Query().Get("sort") != "oldest")
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(recs) {
			recs = recs[:lim]
		}
	}

	logger.Info("logs_list", "count", len(recs))
	_ = json.NewEncoder(w).Encode(struct {
		Records []*models.Record `json:"records"`
	}{Records: recs})
}

func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	rec, err := s.st.Get(id)
	if err != nil {
		if store.IsNotFound(err) {
			http.Error(w, `{"error":"record not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rec)
}

func (s *Server) deleteLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	if rec, err := s.st.Get(id); err == nil && s.atts != nil && rec.Message != nil {
		s.atts.Delete(rec.Message)
	}
	if err := s.st.Delete(id); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	logger.Info("log_deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.st.Clear(); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	logger.Info("logs_cleared")
	w.WriteHeader(http.StatusNoContent)
}

// exportLogs dumps every retained record, oldest first, as one JSON document
// suitable for importLogs.
func (s *Server) exportLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	recs, err := s.st.SortedByTimestamp(false, 0)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="msgvault-export.json"`)
	_ = json.NewEncoder(w).Encode(struct {
		Records []*models.Record `json:"records"`
	}{Records: recs})
}

// importLogs merges an exported document into the store. Records without an
// id or with an invalid status are skipped, not fatal; the response reports
// both counts.
func (s *Server) importLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var doc struct {
		Records []*models.Record `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	imported, skipped := 0, 0
	for _, rec := range doc.Records {
		if rec == nil || rec.MessageID == "" || !rec.Status.Valid() || rec.Message == nil {
			skipped++
			continue
		}
		if rec.ChannelID == "" {
			rec.ChannelID = rec.Message.ChannelID
		}
		if err := s.st.Put(rec); err != nil {
			logger.Warn("log_import_record_failed", "id", rec.MessageID, "error", err)
			skipped++
			continue
		}
		imported++
	}
	logger.Info("logs_imported", "imported", imported, "skipped", skipped)
	_ = json.NewEncoder(w).Encode(struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}{Imported: imported, Skipped: skipped})
}
