// Package query parses the log-browser search input and filters stored
// records for display.
package query

import (
	"sort"
	"strings"

	"msgvault/pkg/models"
	"msgvault/pkg/snowflake"
)

// Field is the structured predicate dimension of a query.
type Field string

const (
	FieldServer  Field = "server"
	FieldChannel Field = "channel"
	FieldUser    Field = "user"
	FieldMessage Field = "message"
)

func validField(f Field) bool {
	switch f {
	case FieldServer, FieldChannel, FieldUser, FieldMessage:
		return true
	}
	return false
}

// Query is the parsed form of a raw search input: an optional exact
// `field:value` predicate plus a free-text remainder. Both are conjunctive.
type Query struct {
	Structured bool
	Field      Field
	Value      string
	Text       string
}

// Parse splits raw on the first whitespace and checks the first token for a
// `field:value` shape. An invalid shape or unknown field turns the whole
// input into free text.
func Parse(raw string) Query {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Query{}
	}
	first, rest, _ := strings.Cut(trimmed, " ")
	field, value, found := strings.Cut(first, ":")
	if !found || field == "" || value == "" || !validField(Field(field)) {
		return Query{Text: trimmed}
	}
	return Query{
		Structured: true,
		Field:      Field(field),
		Value:      value,
		Text:       strings.TrimSpace(rest),
	}
}

// Matches reports whether rec satisfies the query. The structured predicate
// compares ids exactly; server is resolved transitively through the channel
// when the record lacks a direct guild id. The free text matches when
// contained case-insensitively in the content or any edit-history entry.
func (q Query) Matches(rec *models.Record, guildOf func(channelID string) string) bool {
	if rec == nil || rec.Message == nil {
		return false
	}
	m := rec.Message
	if q.Structured {
		var got string
		switch q.Field {
		case FieldChannel:
			got = m.ChannelID
		case FieldMessage:
			got = m.ID
		case FieldUser:
			got = m.Author.ID
		case FieldServer:
			got = m.GuildID
			if got == "" && guildOf != nil {
				got = guildOf(m.ChannelID)
			}
		}
		if got != q.Value {
			return false
		}
	}
	if q.Text == "" {
		return true
	}
	needle := strings.ToLower(q.Text)
	if strings.Contains(strings.ToLower(m.Content), needle) {
		return true
	}
	for _, e := range m.EditHistory {
		if strings.Contains(strings.ToLower(e.Content), needle) {
			return true
		}
	}
	return false
}

// Filter returns the records matching the query, preserving input order.
func (q Query) Filter(recs []*models.Record, guildOf func(channelID string) string) []*models.Record {
	out := make([]*models.Record, 0, len(recs))
	for _, rec := range recs {
		if q.Matches(rec, guildOf) {
			out = append(out, rec)
		}
	}
	return out
}

// Sort orders records by their id-derived instant, newest first by default.
func Sort(recs []*models.Record, newestFirst bool) {
	sort.SliceStable(recs, func(i, j int) bool {
		c := snowflake.Compare(recs[i].MessageID, recs[j].MessageID)
		if newestFirst {
			return c > 0
		}
		return c < 0
	})
}
