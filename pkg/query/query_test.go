package query

import (
	"strconv"
	"testing"

	"msgvault/pkg/models"
)

func id(offset int64) string {
	return strconv.FormatInt(offset*4194304, 10)
}

func rec(msgID, channelID, guildID, authorID, content string) *models.Record {
	return &models.Record{
		MessageID: msgID,
		ChannelID: channelID,
		Status:    models.StatusDeleted,
		Message: &models.Message{
			ID:        msgID,
			ChannelID: channelID,
			GuildID:   guildID,
			Author:    models.User{ID: authorID},
			Content:   content,
		},
	}
}

func TestParseStructured(t *testing.T) {
	q := Parse("channel:123 hello world")
	if !q.Structured || q.Field != FieldChannel || q.Value != "123" {
		t.Fatalf("unexpected parse: %+v", q)
	}
	if q.Text != "hello world" {
		t.Fatalf("unexpected free text: %q", q.Text)
	}
}

func TestParseFallsBackToFreeText(t *testing.T) {
	for _, raw := range []string{"hello world", "unknown:123", "channel:", ":value", "channel"} {
		q := Parse(raw)
		if q.Structured {
			t.Fatalf("input %q must parse as free text", raw)
		}
	}
	if q := Parse("  "); q.Structured || q.Text != "" {
		t.Fatalf("blank input must parse empty: %+v", q)
	}
}

func TestMatchesStructuredFields(t *testing.T) {
	r := rec(id(10), "chan1", "guild1", "user1", "hello there")
	cases := []struct {
		raw  string
		want bool
	}{
		{"channel:chan1", true},
		{"channel:other", false},
		{"user:user1", true},
		{"user:other", false},
		{"server:guild1", true},
		{"message:" + id(10), true},
		{"channel:chan1 hello", true},
		{"channel:chan1 absent", false},
	}
	for _, c := range cases {
		if got := Parse(c.raw).Matches(r, nil); got != c.want {
			t.Fatalf("query %q: expected %v, got %v", c.raw, c.want, got)
		}
	}
}

func TestMatchesServerViaChannelLookup(t *testing.T) {
	r := rec(id(10), "chan1", "", "user1", "x")
	guildOf := func(channelID string) string {
		if channelID == "chan1" {
			return "guild9"
		}
		return ""
	}
	if !Parse("server:guild9").Matches(r, guildOf) {
		t.Fatalf("server must resolve transitively through the channel")
	}
	if Parse("server:guild9").Matches(r, nil) {
		t.Fatalf("no resolver and no direct guild id: no match")
	}
}

func TestFreeTextSearchesEditHistory(t *testing.T) {
	r := rec(id(10), "chan1", "", "user1", "current text")
	r.Message.EditHistory = []models.EditEntry{{Content: "Original Draft"}}
	if !Parse("draft").Matches(r, nil) {
		t.Fatalf("free text must match edit history case-insensitively")
	}
	if Parse("missing").Matches(r, nil) {
		t.Fatalf("unrelated text must not match")
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	recs := []*models.Record{
		rec(id(30), "a", "", "u", "keep"),
		rec(id(20), "b", "", "u", "drop"),
		rec(id(10), "c", "", "u", "keep"),
	}
	out := Parse("keep").Filter(recs, nil)
	if len(out) != 2 || out[0].MessageID != id(30) || out[1].MessageID != id(10) {
		t.Fatalf("unexpected filter result: %d", len(out))
	}
}

func TestSort(t *testing.T) {
	recs := []*models.Record{
		rec(id(10), "a", "", "u", ""),
		rec(id(30), "a", "", "u", ""),
		rec(id(20), "a", "", "u", ""),
	}
	Sort(recs, true)
	if recs[0].MessageID != id(30) || recs[2].MessageID != id(10) {
		t.Fatalf("newest-first sort wrong")
	}
	Sort(recs, false)
	if recs[0].MessageID != id(10) || recs[2].MessageID != id(30) {
		t.Fatalf("oldest-first sort wrong")
	}
}
