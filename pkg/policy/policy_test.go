package policy

import (
	"testing"

	"msgvault/pkg/config"
	"msgvault/pkg/logger"
	"msgvault/pkg/models"
)

func init() { logger.Init() }

type fakeChannels map[string]string

func (f fakeChannels) GetChannel(id string) (string, bool) {
	g, ok := f[id]
	return g, ok
}

type fakeIdentity string

func (f fakeIdentity) CurrentUserID() string { return string(f) }

func newPolicy(cfg config.PolicyConfig) *Policy {
	return New(cfg, fakeChannels{"chan1": "guild1"}, fakeIdentity("self"))
}

func TestGhostPingOverridesEverything(t *testing.T) {
	p := newPolicy(config.PolicyConfig{
		BlacklistedIDs: "author1",
		IgnoreBots:     true,
		IgnoreSelf:     true,
	})
	ev := Event{
		ChannelID:   "chan1",
		AuthorID:    "author1",
		Bot:         true,
		GhostPinged: true,
		Flags:       models.MessageFlagEphemeral,
	}
	if p.ShouldIgnore(ev) {
		t.Fatalf("ghost ping must always be retained")
	}
}

func TestAllowListOverridesDeny(t *testing.T) {
	// channel allow-listed, author deny-listed: allow wins
	p := newPolicy(config.PolicyConfig{
		WhitelistedIDs: "chan1",
		BlacklistedIDs: "author1",
	})
	if p.ShouldIgnore(Event{ChannelID: "chan1", AuthorID: "author1"}) {
		t.Fatalf("allow-listed channel must override deny-listed author")
	}
}

func TestAllowListOverridesBotFilter(t *testing.T) {
	p := newPolicy(config.PolicyConfig{WhitelistedIDs: "bot1", IgnoreBots: true})
	if p.ShouldIgnore(Event{AuthorID: "bot1", Bot: true}) {
		t.Fatalf("allow-listed bot must be retained")
	}
}

func TestEphemeralIgnored(t *testing.T) {
	p := newPolicy(config.PolicyConfig{})
	if !p.ShouldIgnore(Event{AuthorID: "a", Flags: models.MessageFlagEphemeral}) {
		t.Fatalf("ephemeral messages must be ignored")
	}
}

func TestBotFilter(t *testing.T) {
	p := newPolicy(config.PolicyConfig{IgnoreBots: true})
	if !p.ShouldIgnore(Event{AuthorID: "bot1", Bot: true}) {
		t.Fatalf("bot message must be ignored when ignore_bots set")
	}
	if p.ShouldIgnore(Event{AuthorID: "human"}) {
		t.Fatalf("human message must be retained")
	}
}

func TestSelfFilter(t *testing.T) {
	p := newPolicy(config.PolicyConfig{IgnoreSelf: true})
	if !p.ShouldIgnore(Event{AuthorID: "self"}) {
		t.Fatalf("own message must be ignored when ignore_self set")
	}
	if p.ShouldIgnore(Event{AuthorID: "other"}) {
		t.Fatalf("other user's message must be retained")
	}
}

func TestDenyListByGuildResolvedThroughChannel(t *testing.T) {
	p := newPolicy(config.PolicyConfig{BlacklistedIDs: "guild1"})
	// event carries no guild id; channel metadata resolves it
	if !p.ShouldIgnore(Event{ChannelID: "chan1", AuthorID: "a"}) {
		t.Fatalf("deny-listed guild must be ignored via channel resolution")
	}
	if p.ShouldIgnore(Event{ChannelID: "otherchan", AuthorID: "a"}) {
		t.Fatalf("unrelated channel must be retained")
	}
}

func TestSelfCachedServerMessageIgnored(t *testing.T) {
	p := newPolicy(config.PolicyConfig{CacheFromServers: false})
	ev := Event{ChannelID: "chan1", GuildID: "guild1", AuthorID: "a", IsCachedByUs: true}
	if !p.ShouldIgnore(ev) {
		t.Fatalf("self-cached server message must be ignored when cache_from_servers off")
	}
	// direct messages have no guild: retained
	ev = Event{ChannelID: "dm", AuthorID: "a", IsCachedByUs: true}
	if p.ShouldIgnore(ev) {
		t.Fatalf("self-cached DM must be retained")
	}
}

func TestMalformedListEntriesFailOpen(t *testing.T) {
	p := newPolicy(config.PolicyConfig{BlacklistedIDs: "bad entry with spaces,author2"})
	// the malformed token is skipped; the event it would have matched is kept
	if p.ShouldIgnore(Event{AuthorID: "bad entry with spaces"}) {
		t.Fatalf("malformed deny entry must be dropped, failing open")
	}
	// well-formed entries in the same list still apply
	if !p.ShouldIgnore(Event{AuthorID: "author2"}) {
		t.Fatalf("well-formed deny entry must still apply")
	}
}

func TestDecisionIdempotent(t *testing.T) {
	p := newPolicy(config.PolicyConfig{IgnoreBots: true, BlacklistedIDs: "x"})
	ev := Event{ChannelID: "chan1", AuthorID: "bot", Bot: true}
	first := p.ShouldIgnore(ev)
	for i := 0; i < 10; i++ {
		if p.ShouldIgnore(ev) != first {
			t.Fatalf("identical event must always yield the same decision")
		}
	}
}

func TestShouldCache(t *testing.T) {
	p := newPolicy(config.PolicyConfig{CacheFromServers: false, WhitelistedIDs: "guild2"})
	if !p.ShouldCache("", "dmchan", "a") {
		t.Fatalf("DMs always cached")
	}
	if p.ShouldCache("guild1", "chan1", "a") {
		t.Fatalf("server message not cached when cache_from_servers off")
	}
	if !p.ShouldCache("guild2", "chanX", "a") {
		t.Fatalf("allow-listed guild must be cached")
	}
	p.Update(config.PolicyConfig{CacheFromServers: true})
	if !p.ShouldCache("guild1", "chan1", "a") {
		t.Fatalf("cache_from_servers on: everything cached")
	}
}

func TestUpdateSwapsSettings(t *testing.T) {
	p := newPolicy(config.PolicyConfig{})
	ev := Event{AuthorID: "bot", Bot: true}
	if p.ShouldIgnore(ev) {
		t.Fatalf("bots retained before update")
	}
	p.Update(config.PolicyConfig{IgnoreBots: true})
	if !p.ShouldIgnore(ev) {
		t.Fatalf("bots ignored after update")
	}
}
