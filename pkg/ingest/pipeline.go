// Package ingest wires the message-lifecycle event handlers: classify each
// create/update/delete event under the retention policy, recover content
// from the send cache when the live store has already dropped it, persist
// retained records, and enforce the configured record limit.
package ingest

import (
	"fmt"
	"sync"
	"time"

	"msgvault/pkg/cache"
	"msgvault/pkg/dispatch"
	"msgvault/pkg/logger"
	"msgvault/pkg/models"
	"msgvault/pkg/policy"
	"msgvault/pkg/store"
)

// MessageSource is the host's live message store. It returns the
// authoritative message object while the host still has it; the returned
// pointer is the host's own object and may be mutated to clear tracking.
type MessageSource interface {
	GetMessage(channelID, id string) *models.Message
}

// UserSource is the host's identity store.
type UserSource interface {
	GetUser(id string) (*models.User, bool)
}

// AttachmentCache is the blob-cache collaborator, called as an opaque side
// effect keyed by attachment id.
type AttachmentCache interface {
	Cache(msg *models.Message)
	Delete(msg *models.Message)
	Enabled() bool
}

// Publisher re-emits synthetic events onto the host bus.
type Publisher interface {
	Publish(t dispatch.EventType, v any) error
}

// Pipeline owns the send cache and is the record store's single writer. All
// dependencies are injected so handlers can be exercised in isolation.
type Pipeline struct {
	st       *store.Store
	sent     *cache.Cache
	pol      *policy.Policy
	msgs     MessageSource
	users    UserSource
	channels policy.ChannelSource
	ident    policy.Identity
	atts     AttachmentCache
	bus      Publisher

	// messageLimit caps total retained records; 0 = unlimited.
	messageLimit int

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Options carries the pipeline's injected collaborators and tunables.
type Options struct {
	Store        *store.Store
	SendCache    *cache.Cache
	Policy       *policy.Policy
	Messages     MessageSource
	Users        UserSource
	Channels     policy.ChannelSource
	Identity     policy.Identity
	Attachments  AttachmentCache
	Bus          Publisher
	MessageLimit int
}

// New builds a pipeline from its collaborators.
func New(opts Options) *Pipeline {
	return &Pipeline{
		st:           opts.Store,
		sent:         opts.SendCache,
		pol:          opts.Policy,
		msgs:         opts.Messages,
		users:        opts.Users,
		channels:     opts.Channels,
		ident:        opts.Identity,
		atts:         opts.Attachments,
		bus:          opts.Bus,
		messageLimit: opts.MessageLimit,
		inflight:     make(map[string]struct{}),
	}
}

// SetMessageLimit replaces the retained-record cap at runtime.
func (p *Pipeline) SetMessageLimit(n int) {
	p.mu.Lock()
	p.messageLimit = n
	p.mu.Unlock()
}

func (p *Pipeline) limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messageLimit
}

// liveMessage consults the host's live store when one is wired in.
func (p *Pipeline) liveMessage(channelID, id string) *models.Message {
	if p.msgs == nil {
		return nil
	}
	return p.msgs.GetMessage(channelID, id)
}

// guard catches anything a handler throws so a failure here can never break
// the host's dispatch path.
func (p *Pipeline) guard(handler string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			handlerErrors.WithLabelValues(handler).Inc()
			logger.Error("handler_panic", "handler", handler, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		handlerErrors.WithLabelValues(handler).Inc()
		logger.Error("handler_failed", "handler", handler, "error", err)
	}
}

// ghostPinged reports whether msg is a retracted ping aimed at the current
// user: already flagged, or deleted while mentioning them.
func (p *Pipeline) ghostPinged(msg *models.Message) bool {
	if msg == nil {
		return false
	}
	if msg.GhostPinged {
		return true
	}
	if !msg.Deleted || p.ident == nil {
		return false
	}
	return msg.MentionsUser(p.ident.CurrentUserID())
}

func (p *Pipeline) policyEvent(msg *models.Message, guildID string, fromCache bool) policy.Event {
	if guildID == "" {
		guildID = msg.GuildID
	}
	return policy.Event{
		ChannelID:    msg.ChannelID,
		GuildID:      guildID,
		AuthorID:     msg.Author.ID,
		Bot:          msg.Author.Bot,
		Flags:        msg.Flags,
		GhostPinged:  p.ghostPinged(msg),
		IsCachedByUs: fromCache,
	}
}

// HandleCreate caches a sanitized snapshot of a freshly sent message so its
// content survives the host's short-lived store. Retention is not decided
// here; caching has its own server-origin gate to keep the cache small.
func (p *Pipeline) HandleCreate(pl *models.CreatePayload) {
	p.guard("create", func() error {
		if pl == nil || pl.Message == nil || pl.Message.ID == "" {
			return nil
		}
		msg := pl.Message
		if !p.pol.ShouldCache(pl.GuildID, msg.ChannelID, msg.Author.ID) {
			return nil
		}
		snap := msg.Clone()
		snap.OurCache = true
		snap.EditHistory = nil
		if pl.GuildID != "" && snap.GuildID == "" {
			snap.GuildID = pl.GuildID
		}
		p.sent.Set(cache.Key(snap.ChannelID, snap.ID), snap)
		return nil
	})
}

// HandleDelete persists a deleted message when the policy retains it.
// Duplicate dispatches for an id still being processed collapse into a
// no-op; ignored deletions are re-dispatched with the Retracted marker so
// downstream consumers do not render a phantom message.
func (p *Pipeline) HandleDelete(pl *models.DeletePayload) {
	p.guard("delete", func() error {
		if pl == nil || pl.ID == "" || pl.Retracted {
			return nil
		}
		p.mu.Lock()
		if _, busy := p.inflight[pl.ID]; busy {
			p.mu.Unlock()
			return nil
		}
		p.inflight[pl.ID] = struct{}{}
		p.mu.Unlock()
		defer func() {
			p.mu.Lock()
			delete(p.inflight, pl.ID)
			p.mu.Unlock()
		}()

		fromCache := false
		msg := p.liveMessage(pl.ChannelID, pl.ID)
		if msg == nil {
			cached := p.sent.Get(cache.Key(pl.ChannelID, pl.ID))
			if cached == nil {
				return nil // nothing left to save
			}
			msg = cached.Clone()
			fromCache = true
		} else {
			msg = msg.Clone()
			fromCache = msg.OurCache
		}
		msg.Deleted = true
		msg.GhostPinged = p.ghostPinged(msg)

		if p.pol.ShouldIgnore(p.policyEvent(msg, pl.GuildID, fromCache)) {
			ignoredTotal.Inc()
			if p.bus != nil {
				_ = p.bus.Publish(dispatch.MessageDelete, &models.DeletePayload{
					ChannelID: pl.ChannelID,
					ID:        pl.ID,
					Retracted: true,
				})
			}
			return nil
		}

		if p.atts != nil && p.atts.Enabled() {
			p.atts.Cache(msg)
		}
		return p.persist(msg, models.StatusDeleted)
	})
}

// HandleDeleteBulk fans a bulk deletion out to per-id handling,
// sequentially, so each id keeps single-delete semantics and a channel's
// deletions apply in a stable order.
func (p *Pipeline) HandleDeleteBulk(pl *models.DeleteBulkPayload) {
	if pl == nil {
		return
	}
	for _, id := range pl.IDs {
		p.HandleDelete(&models.DeletePayload{
			GuildID:   pl.GuildID,
			ChannelID: pl.ChannelID,
			ID:        id,
		})
	}
}

// HandleUpdate persists an edited message's accumulated history. When the
// live store no longer has the message, an edit is inferred by diffing the
// send-cache snapshot against the incoming content. That diff is a
// heuristic: embed population also redispatches updates, so content is only
// trusted when non-empty and actually changed.
func (p *Pipeline) HandleUpdate(pl *models.UpdatePayload) {
	p.guard("update", func() error {
		if pl == nil || pl.Message == nil || pl.Message.ID == "" {
			return nil
		}
		incoming := pl.Message
		key := cache.Key(incoming.ChannelID, incoming.ID)
		cached := p.sent.Get(key)
		fromCache := cached != nil && cached.OurCache

		if p.pol.ShouldIgnore(p.policyEvent(incoming, pl.GuildID, fromCache)) {
			ignoredTotal.Inc()
			// stop tracking future edits of an ignored message
			if live := p.liveMessage(incoming.ChannelID, incoming.ID); live != nil {
				live.EditHistory = nil
			}
			return nil
		}

		msg := p.liveMessage(incoming.ChannelID, incoming.ID)
		if msg == nil {
			if cached != nil && incoming.Content != "" && cached.Content != incoming.Content {
				next := cached.Clone()
				next.EditHistory = append(next.EditHistory, models.EditEntry{
					Content:   cached.Content,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
				next.Content = incoming.Content
				p.sent.Set(key, next)
				msg = next
			}
		} else {
			msg = msg.Clone()
		}

		if msg == nil || msg.ChannelID == "" || len(msg.EditHistory) == 0 {
			return nil
		}
		return p.persist(msg, models.StatusEdited)
	})
}

// persist writes the record, then enforces the record limit before
// returning so the cap is visible to any immediately-following read.
func (p *Pipeline) persist(msg *models.Message, status models.Status) error {
	rec := &models.Record{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		Status:    status,
		Message:   msg,
	}
	if err := p.st.Put(rec); err != nil {
		return err
	}
	persistedTotal.WithLabelValues(string(status)).Inc()
	logger.Info("message_retained", "id", msg.ID, "channel", msg.ChannelID, "status", string(status), "ghost_pinged", msg.GhostPinged)
	return p.enforceLimit(msg.ID)
}

// enforceLimit deletes the globally oldest retained records until the
// configured cap holds again. The record just inserted is never evicted,
// even when it is itself the oldest.
func (p *Pipeline) enforceLimit(justInserted string) error {
	limit := p.limit()
	if limit <= 0 {
		return nil
	}
	count, err := p.st.Count()
	if err != nil {
		return err
	}
	for count > limit {
		oldest, err := p.st.SortedByTimestamp(false, 2)
		if err != nil {
			return err
		}
		var victim *models.Record
		for _, rec := range oldest {
			if rec.MessageID != justInserted {
				victim = rec
				break
			}
		}
		if victim == nil {
			return nil
		}
		if p.atts != nil && victim.Message != nil {
			p.atts.Delete(victim.Message)
		}
		if err := p.st.Delete(victim.MessageID); err != nil {
			return err
		}
		evictedTotal.Inc()
		logger.Debug("record_evicted", "id", victim.MessageID)
		count--
	}
	return nil
}

// HandleLoad reconciles a freshly loaded page: splice retained deletions
// back in chronological position, then overlay stored edit history and
// refreshed identity data. Returns the merged page; on reconciliation
// failure the live batch is returned unmodified.
func (p *Pipeline) HandleLoad(pl *models.LoadPayload) []*models.Message {
	if pl == nil {
		return nil
	}
	out := pl.Messages
	p.guard("load", func() error {
		deleted, edited, err := p.st.ChannelIDs(pl.ChannelID)
		if err != nil {
			return err
		}

		// overlay persisted edit history onto live messages
		for _, m := range pl.Messages {
			rec, err := p.st.Get(m.ID)
			if err != nil || rec.Message == nil {
				continue
			}
			if len(rec.Message.EditHistory) != 0 {
				m.EditHistory = rec.Message.EditHistory
			}
		}

		p.refreshIdentities(pl, append(append([]string(nil), deleted...), edited...))

		merged, err := p.reconcilePage(pl, deleted)
		if err != nil {
			return err
		}
		if len(merged) > len(pl.Messages) {
			reconciledTotal.Add(float64(len(merged) - len(pl.Messages)))
		}
		out = merged
		return nil
	})
	return out
}

// refreshIdentities re-resolves author and mention users of retained
// records for ids not present in the fetched page, preferring the host's
// user store and falling back to authors seen in the page itself.
func (p *Pipeline) refreshIdentities(pl *models.LoadPayload, ids []string) {
	fetch := func(id string) *models.User {
		if p.users != nil {
			if u, ok := p.users.GetUser(id); ok {
				return u
			}
		}
		for _, m := range pl.Messages {
			if m.Author.ID == id {
				u := m.Author
				return &u
			}
		}
		return nil
	}
	for _, id := range ids {
		rec, err := p.st.Get(id)
		if err != nil || rec.Message == nil {
			continue
		}
		changed := false
		for i, mu := range rec.Message.Mentions {
			if u := fetch(mu.ID); u != nil && *u != mu {
				rec.Message.Mentions[i] = *u
				changed = true
			}
		}
		if u := fetch(rec.Message.Author.ID); u != nil && *u != rec.Message.Author {
			rec.Message.Author = *u
			changed = true
		}
		if changed {
			if err := p.st.Put(rec); err != nil {
				logger.Warn("identity_refresh_save_failed", "id", id, "error", err)
			}
		}
	}
}
