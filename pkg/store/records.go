package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"msgvault/pkg/logger"
	"msgvault/pkg/models"
	"msgvault/pkg/snowflake"
)

const (
	recPrefix     = "msg:"
	channelPrefix = "idx:channel:"
	statusPrefix  = "idx:status:"
	tsPrefix      = "idx:ts:"
)

func recKey(id string) []byte { return []byte(recPrefix + id) }

func channelKey(channelID, id string) []byte {
	return []byte(channelPrefix + channelID + ":" + id)
}

func statusKey(status models.Status, id string) []byte {
	return []byte(statusPrefix + string(status) + ":" + id)
}

func tsKey(ms int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", tsPrefix, ms, id))
}

// recordMillis derives the timestamp-index position for a record. Snowflake
// ids encode the creation instant; non-numeric ids sort first so they are
// evicted before anything with a real timestamp.
func recordMillis(rec *models.Record) int64 {
	ms, err := snowflake.Millis(rec.MessageID)
	if err != nil {
		return 0
	}
	return ms
}

// Put upserts a record by message id, maintaining all secondary index
// entries in the same batch. Idempotent under identical content.
func (s *Store) Put(rec *models.Record) error {
	if rec == nil || rec.MessageID == "" {
		return storageErr("put", fmt.Errorf("record missing message id"))
	}
	if !rec.Status.Valid() {
		return storageErr("put", fmt.Errorf("invalid status %q", rec.Status))
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return storageErr("put", fmt.Errorf("marshal record: %w", err))
	}

	b := s.db.NewBatch()
	defer b.Close()

	// drop index entries of a previous version when they would change
	if old, err := s.Get(rec.MessageID); err == nil {
		if old.ChannelID != rec.ChannelID {
			_ = b.Delete(channelKey(old.ChannelID, old.MessageID), nil)
		}
		if old.Status != rec.Status {
			_ = b.Delete(statusKey(old.Status, old.MessageID), nil)
		}
	} else if !isNotFound(err) {
		return err
	}

	_ = b.Set(recKey(rec.MessageID), data, nil)
	_ = b.Set(channelKey(rec.ChannelID, rec.MessageID), []byte(rec.Status), nil)
	_ = b.Set(statusKey(rec.Status, rec.MessageID), nil, nil)
	_ = b.Set(tsKey(recordMillis(rec), rec.MessageID), nil, nil)

	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("record_put_failed", "id", rec.MessageID, "error", err)
		return storageErr("put", err)
	}
	logger.Debug("record_saved", "id", rec.MessageID, "channel", rec.ChannelID, "status", string(rec.Status))
	return nil
}

// Get returns the record stored for id, or ErrNotFound.
func (s *Store) Get(id string) (*models.Record, error) {
	v, err := s.get(recKey(id))
	if err != nil {
		return nil, err
	}
	var rec models.Record
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, storageErr("get", fmt.Errorf("corrupt record %s: %w", id, err))
	}
	return &rec, nil
}

// Has reports whether a record exists for id.
func (s *Store) Has(id string) (bool, error) {
	_, err := s.get(recKey(id))
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Delete removes the record and all its index entries in one batch.
// Deleting an absent id is a no-op.
func (s *Store) Delete(id string) error {
	rec, err := s.Get(id)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Delete(recKey(id), nil)
	_ = b.Delete(channelKey(rec.ChannelID, id), nil)
	_ = b.Delete(statusKey(rec.Status, id), nil)
	_ = b.Delete(tsKey(recordMillis(rec), id), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("record_delete_failed", "id", id, "error", err)
		return storageErr("delete", err)
	}
	logger.Debug("record_deleted", "id", id)
	return nil
}

// DeleteMany removes each id in turn. Per-record removal is atomic; the
// set as a whole is not a single transaction.
func (s *Store) DeleteMany(ids []string) error {
	for _, id := range ids {
		if err := s.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

// Clear empties the store, indexes and attachment metadata included.
func (s *Store) Clear() error {
	if err := s.db.DeleteRange([]byte(recPrefix), keyUpperBound([]byte(recPrefix)), pebble.Sync); err != nil {
		return storageErr("clear", err)
	}
	if err := s.db.DeleteRange([]byte("idx:"), keyUpperBound([]byte("idx:")), pebble.Sync); err != nil {
		return storageErr("clear", err)
	}
	if err := s.db.DeleteRange([]byte(attachmentPrefix), keyUpperBound([]byte(attachmentPrefix)), pebble.Sync); err != nil {
		return storageErr("clear", err)
	}
	logger.Info("record_store_cleared")
	return nil
}

// Count returns the number of retained records.
func (s *Store) Count() (int, error) {
	iter, err := s.prefixIter([]byte(recPrefix))
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

// AllByChannel returns all records retained for a channel, unordered.
func (s *Store) AllByChannel(channelID string) ([]*models.Record, error) {
	ids, err := s.scanIDs([]byte(channelPrefix + channelID + ":"))
	if err != nil {
		return nil, err
	}
	return s.fetchAll(ids)
}

// AllByStatus returns all records with the given status, unordered.
func (s *Store) AllByStatus(status models.Status) ([]*models.Record, error) {
	ids, err := s.scanIDs([]byte(statusPrefix + string(status) + ":"))
	if err != nil {
		return nil, err
	}
	return s.fetchAll(ids)
}

// ChannelIDs returns the channel's retained message ids split per status.
// The sets are rebuilt from the channel index on every call, never
// hand-maintained.
func (s *Store) ChannelIDs(channelID string) (deleted, edited []string, err error) {
	prefix := []byte(channelPrefix + channelID + ":")
	iter, err := s.prefixIter(prefix)
	if err != nil {
		return nil, nil, err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		id := string(iter.Key()[len(prefix):])
		switch models.Status(iter.Value()) {
		case models.StatusDeleted:
			deleted = append(deleted, id)
		case models.StatusEdited:
			edited = append(edited, id)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, nil, storageErr("channel_ids", err)
	}
	return deleted, edited, nil
}

// SortedByTimestamp returns records ordered by the id-encoded instant.
// limit <= 0 means no limit; statuses, when given, filter the result.
func (s *Store) SortedByTimestamp(newestFirst bool, limit int, statuses ...models.Status) ([]*models.Record, error) {
	iter, err := s.prefixIter([]byte(tsPrefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	wanted := func(st models.Status) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, w := range statuses {
			if w == st {
				return true
			}
		}
		return false
	}

	var out []*models.Record
	advance := func() bool {
		if newestFirst {
			return iter.Prev()
		}
		return iter.Next()
	}
	var ok bool
	if newestFirst {
		ok = iter.Last()
	} else {
		ok = iter.First()
	}
	for ; ok && iter.Valid(); ok = advance() {
		id := idFromTsKey(iter.Key())
		if id == "" {
			continue
		}
		rec, err := s.Get(id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if !wanted(rec.Status) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, storageErr("sorted_by_timestamp", err)
	}
	return out, nil
}

// OldestID returns the id of the record with the globally smallest derived
// timestamp, or "" when the store is empty.
func (s *Store) OldestID() (string, error) {
	iter, err := s.prefixIter([]byte(tsPrefix))
	if err != nil {
		return "", err
	}
	defer iter.Close()
	if !iter.First() {
		if err := iter.Error(); err != nil {
			return "", storageErr("oldest", err)
		}
		return "", nil
	}
	return idFromTsKey(iter.Key()), nil
}

func (s *Store) fetchAll(ids []string) ([]*models.Record, error) {
	out := make([]*models.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(id)
		if err != nil {
			if isNotFound(err) {
				// index entry outlived its record; skip rather than fail the scan
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) scanIDs(prefix []byte) ([]string, error) {
	iter, err := s.prefixIter(prefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, string(iter.Key()[len(prefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, storageErr("scan", err)
	}
	return out, nil
}

func (s *Store) prefixIter(prefix []byte) (*pebble.Iterator, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, storageErr("iter", err)
	}
	return iter, nil
}

// idFromTsKey strips the "idx:ts:<padded>:" prefix, leaving the message id.
func idFromTsKey(key []byte) string {
	rest := key[len(tsPrefix):]
	i := bytes.IndexByte(rest, ':')
	if i < 0 {
		return ""
	}
	return string(rest[i+1:])
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return IsNotFound(err)
}
