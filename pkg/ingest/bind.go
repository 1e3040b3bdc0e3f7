package ingest

import (
	"encoding/json"
	"errors"

	"msgvault/pkg/dispatch"
	"msgvault/pkg/logger"
	"msgvault/pkg/models"
	"msgvault/pkg/reconcile"
)

// reconcilePage splices the channel's retained deleted ids into the page.
// Unorderable ids skip the merge entirely; a partially merged page would be
// worse than an unmodified one.
func (p *Pipeline) reconcilePage(pl *models.LoadPayload, deleted []string) ([]*models.Message, error) {
	lookup := func(id string) *models.Message {
		rec, err := p.st.Get(id)
		if err != nil || rec.Message == nil {
			return nil
		}
		return rec.Message
	}
	merged, err := reconcile.ReAddDeleted(pl.Messages, deleted, pl.ReachedStart(), pl.ReachedEnd(), lookup)
	if err != nil {
		if errors.Is(err, reconcile.ErrUnorderable) {
			logger.Warn("reconcile_skipped", "channel", pl.ChannelID, "error", err)
			return pl.Messages, nil
		}
		return nil, err
	}
	return merged, nil
}

// Bind subscribes the pipeline's handlers to the host event bus. Payloads
// that fail to decode are logged and dropped; they never propagate.
func (p *Pipeline) Bind(bus *dispatch.Bus) {
	bus.Subscribe(dispatch.MessageCreate, func(payload []byte) {
		var pl models.CreatePayload
		if err := json.Unmarshal(payload, &pl); err != nil {
			logger.Warn("create_payload_invalid", "error", err)
			return
		}
		p.HandleCreate(&pl)
	})
	bus.Subscribe(dispatch.MessageUpdate, func(payload []byte) {
		var pl models.UpdatePayload
		if err := json.Unmarshal(payload, &pl); err != nil {
			logger.Warn("update_payload_invalid", "error", err)
			return
		}
		p.HandleUpdate(&pl)
	})
	bus.Subscribe(dispatch.MessageDelete, func(payload []byte) {
		var pl models.DeletePayload
		if err := json.Unmarshal(payload, &pl); err != nil {
			logger.Warn("delete_payload_invalid", "error", err)
			return
		}
		p.HandleDelete(&pl)
	})
	bus.Subscribe(dispatch.MessageDeleteBulk, func(payload []byte) {
		var pl models.DeleteBulkPayload
		if err := json.Unmarshal(payload, &pl); err != nil {
			logger.Warn("delete_bulk_payload_invalid", "error", err)
			return
		}
		p.HandleDeleteBulk(&pl)
	})
	bus.Subscribe(dispatch.MessagesLoaded, func(payload []byte) {
		var pl models.LoadPayload
		if err := json.Unmarshal(payload, &pl); err != nil {
			logger.Warn("load_payload_invalid", "error", err)
			return
		}
		p.HandleLoad(&pl)
	})
}
