package store

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"msgvault/pkg/models"
)

const attachmentPrefix = "attachment:"

// AttachmentMeta records where a cached attachment blob lives on disk and
// which message it belonged to.
type AttachmentMeta struct {
	models.Attachment
	MessageID string `json:"message_id"`
	Path      string `json:"path"`
}

func attachmentKey(id string) []byte { return []byte(attachmentPrefix + id) }

// SaveAttachmentMeta upserts cached-attachment metadata keyed by id.
func (s *Store) SaveAttachmentMeta(meta *AttachmentMeta) error {
	if meta == nil || meta.ID == "" {
		return storageErr("attachment_put", fmt.Errorf("attachment missing id"))
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return storageErr("attachment_put", err)
	}
	if err := s.db.Set(attachmentKey(meta.ID), data, pebble.Sync); err != nil {
		return storageErr("attachment_put", err)
	}
	return nil
}

// GetAttachmentMeta returns metadata for a cached attachment, or ErrNotFound.
func (s *Store) GetAttachmentMeta(id string) (*AttachmentMeta, error) {
	v, err := s.get(attachmentKey(id))
	if err != nil {
		return nil, err
	}
	var meta AttachmentMeta
	if err := json.Unmarshal(v, &meta); err != nil {
		return nil, storageErr("attachment_get", fmt.Errorf("corrupt attachment meta %s: %w", id, err))
	}
	return &meta, nil
}

// DeleteAttachmentMeta removes cached-attachment metadata. Absent ids are a
// no-op.
func (s *Store) DeleteAttachmentMeta(id string) error {
	if err := s.db.Delete(attachmentKey(id), pebble.Sync); err != nil {
		return storageErr("attachment_delete", err)
	}
	return nil
}
