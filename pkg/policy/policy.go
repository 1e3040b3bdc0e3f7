// Package policy decides whether an observed message event is retained.
// Allow-lists are a hard override so explicitly tracked entities are never
// lost even inside muted or deny-listed servers, and ghost pings bypass all
// filters since their entire value is surfacing hidden mentions.
package policy

import (
	"strings"
	"sync"

	"msgvault/pkg/config"
	"msgvault/pkg/logger"
	"msgvault/pkg/models"
)

// ChannelSource resolves channel metadata from the host client.
type ChannelSource interface {
	GetChannel(id string) (guildID string, ok bool)
}

// Identity exposes the current user's id from the host client.
type Identity interface {
	CurrentUserID() string
}

// Event carries the fields the policy evaluates. It is a snapshot, so
// evaluation is pure: identical input always yields identical output.
type Event struct {
	ChannelID string
	GuildID   string
	AuthorID  string
	Bot       bool
	Flags     uint64
	// GhostPinged marks a mention retracted before the mentionee saw it.
	GhostPinged bool
	// IsCachedByUs marks events resolved from this client's own send cache.
	IsCachedByUs bool
}

type compiled struct {
	allow            map[string]struct{}
	deny             map[string]struct{}
	ignoreBots       bool
	ignoreSelf       bool
	cacheFromServers bool
}

// Policy evaluates retention decisions against a settings snapshot that may
// be swapped at runtime.
type Policy struct {
	mu       sync.RWMutex
	c        compiled
	channels ChannelSource
	identity Identity
}

// New builds a policy from the configured settings.
func New(cfg config.PolicyConfig, channels ChannelSource, identity Identity) *Policy {
	p := &Policy{channels: channels, identity: identity}
	p.Update(cfg)
	return p
}

// Update replaces the active settings snapshot. Malformed list entries are
// skipped with a loud log: the policy fails open (retain) rather than
// silently losing messages users expect to be tracked.
func (p *Policy) Update(cfg config.PolicyConfig) {
	c := compiled{
		allow:            parseIDList(cfg.WhitelistedIDs, "whitelisted_ids"),
		deny:             parseIDList(cfg.BlacklistedIDs, "blacklisted_ids"),
		ignoreBots:       cfg.IgnoreBots,
		ignoreSelf:       cfg.IgnoreSelf,
		cacheFromServers: cfg.CacheFromServers,
	}
	p.mu.Lock()
	p.c = c
	p.mu.Unlock()
}

func parseIDList(raw, name string) map[string]struct{} {
	out := map[string]struct{}{}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	for _, tok := range strings.Split(raw, ",") {
		id := strings.TrimSpace(tok)
		if id == "" {
			continue
		}
		if strings.ContainsAny(id, " \t") {
			logger.Error("policy_list_entry_malformed", "list", name, "entry", tok)
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

// ShouldCache reports whether a freshly sent message should enter the send
// cache. Server-origin messages are skipped when cache_from_servers is off,
// unless the guild, channel, or author is allow-listed; direct messages are
// always cached. This gate keeps the bounded cache from churning on busy
// servers and is independent of the retention decision.
func (p *Policy) ShouldCache(guildID, channelID, authorID string) bool {
	p.mu.RLock()
	c := p.c
	p.mu.RUnlock()
	if c.cacheFromServers || guildID == "" {
		return true
	}
	for _, id := range []string{guildID, channelID, authorID} {
		if id == "" {
			continue
		}
		if _, ok := c.allow[id]; ok {
			return true
		}
	}
	return false
}

// ShouldIgnore reports whether the event must NOT be retained. First match
// wins, in this order: ghost ping, allow-list, self-cached server message,
// ephemeral flag, bot filter, self filter, deny-list.
func (p *Policy) ShouldIgnore(ev Event) bool {
	p.mu.RLock()
	c := p.c
	p.mu.RUnlock()

	guildID := ev.GuildID
	if guildID == "" && ev.ChannelID != "" && p.channels != nil {
		if g, ok := p.channels.GetChannel(ev.ChannelID); ok {
			guildID = g
		}
	}

	has := func(set map[string]struct{}, id string) bool {
		if id == "" {
			return false
		}
		_, ok := set[id]
		return ok
	}
	allowListed := has(c.allow, ev.AuthorID) || has(c.allow, ev.ChannelID) || has(c.allow, guildID)

	if ev.GhostPinged {
		return false
	}
	if allowListed {
		return false
	}
	if ev.IsCachedByUs && !c.cacheFromServers && guildID != "" {
		return true
	}
	if ev.Flags&models.MessageFlagEphemeral != 0 {
		return true
	}
	if ev.Bot && c.ignoreBots {
		return true
	}
	if c.ignoreSelf && p.identity != nil && ev.AuthorID != "" && ev.AuthorID == p.identity.CurrentUserID() {
		return true
	}
	if has(c.deny, ev.AuthorID) || has(c.deny, ev.ChannelID) || has(c.deny, guildID) {
		// an allow-listed author or channel overrides a deny on the other
		// dimension, checked above
		return true
	}
	return false
}
