package store

import (
	"strconv"
	"testing"

	"msgvault/pkg/logger"
	"msgvault/pkg/models"
)

func init() { logger.Init() }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func id(offset int64) string {
	return strconv.FormatInt(offset*4194304, 10)
}

func rec(msgID, channelID string, status models.Status) *models.Record {
	return &models.Record{
		MessageID: msgID,
		ChannelID: channelID,
		Status:    status,
		Message: &models.Message{
			ID:        msgID,
			ChannelID: channelID,
			Content:   "content of " + msgID,
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	r := rec(id(10), "chan1", models.StatusDeleted)
	if err := s.Put(r); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(id(10))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageID != r.MessageID || got.Status != r.Status || got.Message.Content != r.Message.Content {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("404"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	ok, err := s.Has("404")
	if err != nil || ok {
		t.Fatalf("Has on missing id: %v %v", ok, err)
	}
}

func TestPutRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put(&models.Record{Status: models.StatusDeleted}); err == nil {
		t.Fatalf("expected error for missing id")
	}
	if err := s.Put(&models.Record{MessageID: "1", Status: "BOGUS"}); err == nil {
		t.Fatalf("expected error for invalid status")
	}
}

func TestPutIsIdempotentAndUpdatesIndexes(t *testing.T) {
	s := openTestStore(t)
	r := rec(id(10), "chan1", models.StatusEdited)
	if err := s.Put(r); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(r); err != nil {
		t.Fatalf("repeat put: %v", err)
	}
	if n, _ := s.Count(); n != 1 {
		t.Fatalf("idempotent put must keep one record, got %d", n)
	}

	// status transition EDITED -> DELETED must move the status index entry
	r.Status = models.StatusDeleted
	if err := s.Put(r); err != nil {
		t.Fatalf("status update: %v", err)
	}
	edited, err := s.AllByStatus(models.StatusEdited)
	if err != nil {
		t.Fatalf("all by status: %v", err)
	}
	if len(edited) != 0 {
		t.Fatalf("stale EDITED index entry after transition")
	}
	deleted, err := s.AllByStatus(models.StatusDeleted)
	if err != nil || len(deleted) != 1 {
		t.Fatalf("expected one DELETED record, got %d (%v)", len(deleted), err)
	}
}

func TestDeleteRemovesAllIndexEntries(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put(rec(id(10), "chan1", models.StatusDeleted)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(id(10)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(id(10)); !IsNotFound(err) {
		t.Fatalf("record still present after delete")
	}
	byChan, err := s.AllByChannel("chan1")
	if err != nil || len(byChan) != 0 {
		t.Fatalf("stale channel index after delete")
	}
	if oldest, _ := s.OldestID(); oldest != "" {
		t.Fatalf("stale timestamp index after delete: %q", oldest)
	}
	// deleting an absent id is a no-op
	if err := s.Delete("404"); err != nil {
		t.Fatalf("delete of missing id must not error: %v", err)
	}
}

func TestChannelIDsSplitsByStatus(t *testing.T) {
	s := openTestStore(t)
	_ = s.Put(rec(id(10), "chan1", models.StatusDeleted))
	_ = s.Put(rec(id(20), "chan1", models.StatusEdited))
	_ = s.Put(rec(id(30), "chan2", models.StatusDeleted))
	deleted, edited, err := s.ChannelIDs("chan1")
	if err != nil {
		t.Fatalf("channel ids: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != id(10) {
		t.Fatalf("unexpected deleted set: %v", deleted)
	}
	if len(edited) != 1 || edited[0] != id(20) {
		t.Fatalf("unexpected edited set: %v", edited)
	}
}

func TestSortedByTimestamp(t *testing.T) {
	s := openTestStore(t)
	for _, off := range []int64{20, 10, 30} {
		if err := s.Put(rec(id(off), "chan1", models.StatusDeleted)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	oldestFirst, err := s.SortedByTimestamp(false, 0)
	if err != nil {
		t.Fatalf("sorted: %v", err)
	}
	if len(oldestFirst) != 3 || oldestFirst[0].MessageID != id(10) || oldestFirst[2].MessageID != id(30) {
		t.Fatalf("oldest-first order wrong")
	}
	newestFirst, err := s.SortedByTimestamp(true, 2)
	if err != nil {
		t.Fatalf("sorted: %v", err)
	}
	if len(newestFirst) != 2 || newestFirst[0].MessageID != id(30) || newestFirst[1].MessageID != id(20) {
		t.Fatalf("newest-first limited order wrong")
	}
}

func TestOldestID(t *testing.T) {
	s := openTestStore(t)
	if oldest, err := s.OldestID(); err != nil || oldest != "" {
		t.Fatalf("empty store: expected no oldest id, got %q (%v)", oldest, err)
	}
	_ = s.Put(rec(id(20), "chan1", models.StatusDeleted))
	_ = s.Put(rec(id(10), "chan1", models.StatusDeleted))
	oldest, err := s.OldestID()
	if err != nil || oldest != id(10) {
		t.Fatalf("expected %s, got %q (%v)", id(10), oldest, err)
	}
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	_ = s.Put(rec(id(10), "chan1", models.StatusDeleted))
	_ = s.SaveAttachmentMeta(&AttachmentMeta{
		Attachment: models.Attachment{ID: "att1"},
		MessageID:  id(10),
	})
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := s.Count(); n != 0 {
		t.Fatalf("records survived clear")
	}
	if _, err := s.GetAttachmentMeta("att1"); !IsNotFound(err) {
		t.Fatalf("attachment meta survived clear")
	}
}

func TestAttachmentMetaRoundTrip(t *testing.T) {
	s := openTestStore(t)
	meta := &AttachmentMeta{
		Attachment: models.Attachment{ID: "att1", Filename: "cat.png"},
		MessageID:  id(10),
		Path:       "/tmp/att1.png",
	}
	if err := s.SaveAttachmentMeta(meta); err != nil {
		t.Fatalf("save meta: %v", err)
	}
	got, err := s.GetAttachmentMeta("att1")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if got.Filename != "cat.png" || got.Path != meta.Path || got.MessageID != meta.MessageID {
		t.Fatalf("meta mismatch: %+v", got)
	}
	if err := s.DeleteAttachmentMeta("att1"); err != nil {
		t.Fatalf("delete meta: %v", err)
	}
	if _, err := s.GetAttachmentMeta("att1"); !IsNotFound(err) {
		t.Fatalf("meta still present after delete")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	type knobs struct {
		IgnoreBots   bool `json:"ignore_bots"`
		MessageLimit int  `json:"message_limit"`
	}
	var out knobs
	if err := s.LoadSettings(&out); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}
	if err := s.SaveSettings(knobs{IgnoreBots: true, MessageLimit: 50}); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if err := s.LoadSettings(&out); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if !out.IgnoreBots || out.MessageLimit != 50 {
		t.Fatalf("settings mismatch: %+v", out)
	}
}
