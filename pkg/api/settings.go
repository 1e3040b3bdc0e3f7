package api

import (
	"encoding/json"
	"net/http"

	"msgvault/pkg/config"
	"msgvault/pkg/logger"
	"msgvault/pkg/store"
)

// Settings is the wire form of the retention policy knobs. A PUT takes
// effect immediately and survives restarts via the store.
type Settings struct {
	WhitelistedIDs   string `json:"whitelisted_ids"`
	BlacklistedIDs   string `json:"blacklisted_ids"`
	IgnoreBots       bool   `json:"ignore_bots"`
	IgnoreSelf       bool   `json:"ignore_self"`
	CacheFromServers bool   `json:"cache_from_servers"`
	MessageLimit     int    `json:"message_limit"`
}

func settingsFromPolicy(cfg config.PolicyConfig) Settings {
	return Settings{
		WhitelistedIDs:   cfg.WhitelistedIDs,
		BlacklistedIDs:   cfg.BlacklistedIDs,
		IgnoreBots:       cfg.IgnoreBots,
		IgnoreSelf:       cfg.IgnoreSelf,
		CacheFromServers: cfg.CacheFromServers,
		MessageLimit:     cfg.MessageLimit,
	}
}

func (s Settings) policyConfig() config.PolicyConfig {
	return config.PolicyConfig{
		WhitelistedIDs:   s.WhitelistedIDs,
		BlacklistedIDs:   s.BlacklistedIDs,
		IgnoreBots:       s.IgnoreBots,
		IgnoreSelf:       s.IgnoreSelf,
		CacheFromServers: s.CacheFromServers,
		MessageLimit:     s.MessageLimit,
	}
}

// SeedSettings loads persisted settings into the running policy, falling
// back to (and persisting) the file config on first run.
func SeedSettings(st *store.Store, fromFile config.PolicyConfig) (config.PolicyConfig, error) {
	var saved Settings
	err := st.LoadSettings(&saved)
	if err == nil {
		return saved.policyConfig(), nil
	}
	if !store.IsNotFound(err) {
		return fromFile, err
	}
	if err := st.SaveSettings(settingsFromPolicy(fromFile)); err != nil {
		return fromFile, err
	}
	return fromFile, nil
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var saved Settings
	if err := s.st.LoadSettings(&saved); err != nil {
		if !store.IsNotFound(err) {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
	}
	_ = json.NewEncoder(w).Encode(saved)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if in.MessageLimit < 0 {
		http.Error(w, `{"error":"message_limit must be >= 0"}`, http.StatusBadRequest)
		return
	}
	if err := s.st.SaveSettings(in); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	s.pol.Update(in.policyConfig())
	if s.pipe != nil {
		s.pipe.SetMessageLimit(in.MessageLimit)
	}
	logger.Info("settings_updated", "message_limit", in.MessageLimit)
	_ = json.NewEncoder(w).Encode(in)
}
