package models

// Status classifies why a message was retained. A message that was edited
// and later deleted is stored as Deleted with its edit history intact.
type Status string

const (
	StatusDeleted Status = "DELETED"
	StatusEdited  Status = "EDITED"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusDeleted || s == StatusEdited
}

// Record is one row of the record store: a retained message plus the keys
// the secondary indexes are built from.
type Record struct {
	MessageID string   `json:"message_id"`
	ChannelID string   `json:"channel_id"`
	Status    Status   `json:"status"`
	Message   *Message `json:"message"`
}
