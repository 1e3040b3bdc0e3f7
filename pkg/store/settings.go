package store

import (
	"encoding/json"

	"github.com/cockroachdb/pebble"
)

const policySettingsKey = "settings:policy"

// SaveSettings persists an opaque settings blob (the policy knobs edited at
// runtime through the API).
func (s *Store) SaveSettings(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return storageErr("settings_put", err)
	}
	if err := s.db.Set([]byte(policySettingsKey), data, pebble.Sync); err != nil {
		return storageErr("settings_put", err)
	}
	return nil
}

// LoadSettings unmarshals the persisted settings blob into out. Returns
// ErrNotFound when none was ever saved.
func (s *Store) LoadSettings(out any) error {
	v, err := s.get([]byte(policySettingsKey))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v, out); err != nil {
		return storageErr("settings_get", err)
	}
	return nil
}
