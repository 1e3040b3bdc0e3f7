package models

import "encoding/json"

// MessageFlagEphemeral is the protocol flag bit marking a message only the
// recipient can see. Ephemeral messages are never retained.
const MessageFlagEphemeral = 1 << 6

// User is the trimmed identity snapshot kept alongside retained messages.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
	PublicFlags   uint64 `json:"public_flags,omitempty"`
}

// Attachment describes a file attached to a retained message. Blob bytes are
// cached separately, keyed by the attachment id.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename,omitempty"`
	URL         string `json:"url,omitempty"`
	ProxyURL    string `json:"proxy_url,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// EditEntry is one prior revision of a message, oldest first.
type EditEntry struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Message is a retained snapshot of a chat message. IDs are snowflake
// strings whose numeric value encodes the creation instant.
type Message struct {
	ID              string            `json:"id"`
	ChannelID       string            `json:"channel_id"`
	GuildID         string            `json:"guild_id,omitempty"`
	Author          User              `json:"author"`
	Content         string            `json:"content"`
	Timestamp       string            `json:"timestamp,omitempty"`
	EditedTimestamp string            `json:"edited_timestamp,omitempty"`
	Flags           uint64            `json:"flags,omitempty"`
	Mentions        []User            `json:"mentions,omitempty"`
	MentionEveryone bool              `json:"mention_everyone,omitempty"`
	Attachments     []Attachment      `json:"attachments,omitempty"`
	Embeds          []json.RawMessage `json:"embeds,omitempty"`

	Deleted     bool        `json:"deleted,omitempty"`
	GhostPinged bool        `json:"ghost_pinged,omitempty"`
	EditHistory []EditEntry `json:"edit_history,omitempty"`
	// OurCache marks snapshots that came from this client's own send cache
	// rather than the authoritative live store.
	OurCache bool `json:"our_cache,omitempty"`
}

// Ephemeral reports whether the ephemeral protocol flag is set.
func (m *Message) Ephemeral() bool {
	return m.Flags&MessageFlagEphemeral != 0
}

// MentionsUser reports whether the message pings the given user, either
// directly or via @everyone.
func (m *Message) MentionsUser(userID string) bool {
	if m.MentionEveryone {
		return true
	}
	for _, u := range m.Mentions {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the message so cached snapshots cannot be
// mutated through shared slices.
func (m *Message) Clone() *Message {
	out := *m
	if m.Mentions != nil {
		out.Mentions = append([]User(nil), m.Mentions...)
	}
	if m.Attachments != nil {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Embeds != nil {
		out.Embeds = make([]json.RawMessage, len(m.Embeds))
		for i, e := range m.Embeds {
			out.Embeds[i] = append(json.RawMessage(nil), e...)
		}
	}
	if m.EditHistory != nil {
		out.EditHistory = append([]EditEntry(nil), m.EditHistory...)
	}
	return &out
}
