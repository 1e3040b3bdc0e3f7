package models

// Event payloads delivered by the host dispatch bus. Field shapes follow the
// host's wire payloads, not the retained snapshot.

// CreatePayload carries a freshly sent message.
type CreatePayload struct {
	GuildID   string   `json:"guild_id,omitempty"`
	ChannelID string   `json:"channel_id"`
	Message   *Message `json:"message"`
}

// UpdatePayload carries an edited message. The host dispatches updates for
// embed population too, so Message.Content may be unchanged or empty.
type UpdatePayload struct {
	GuildID string   `json:"guild_id,omitempty"`
	Message *Message `json:"message"`
}

// DeletePayload announces a single message deletion. Retracted marks a
// synthetic re-dispatch already processed by the pipeline; handlers must
// drop it to avoid double ingestion.
type DeletePayload struct {
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id"`
	ID        string `json:"id"`
	Retracted bool   `json:"retracted,omitempty"`
}

// DeleteBulkPayload announces a bulk deletion in one channel.
type DeleteBulkPayload struct {
	GuildID   string   `json:"guild_id,omitempty"`
	ChannelID string   `json:"channel_id"`
	IDs       []string `json:"ids"`
}

// LoadPayload carries a freshly fetched page of live messages for a channel,
// newest first. The boundary flags describe which edge of the channel's
// history the fetch reached.
type LoadPayload struct {
	ChannelID     string     `json:"channel_id"`
	Messages      []*Message `json:"messages"`
	IsBefore      bool       `json:"is_before"`
	IsAfter       bool       `json:"is_after"`
	HasMoreBefore bool       `json:"has_more_before"`
	HasMoreAfter  bool       `json:"has_more_after"`
}

// ReachedStart reports whether the page includes the channel's newest
// message (no further data toward the present).
func (p *LoadPayload) ReachedStart() bool {
	return !p.HasMoreAfter && !p.IsBefore
}

// ReachedEnd reports whether the page includes the channel's oldest message.
func (p *LoadPayload) ReachedEnd() bool {
	return !p.HasMoreBefore && !p.IsAfter
}
