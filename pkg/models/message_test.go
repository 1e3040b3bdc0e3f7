package models

import "testing"

func TestMentionsUser(t *testing.T) {
	m := &Message{Mentions: []User{{ID: "a"}, {ID: "b"}}}
	if !m.MentionsUser("b") {
		t.Fatalf("direct mention not detected")
	}
	if m.MentionsUser("c") {
		t.Fatalf("false positive mention")
	}
	m = &Message{MentionEveryone: true}
	if !m.MentionsUser("anyone") {
		t.Fatalf("@everyone must count as a mention")
	}
}

func TestEphemeral(t *testing.T) {
	if (&Message{}).Ephemeral() {
		t.Fatalf("flagless message must not be ephemeral")
	}
	if !(&Message{Flags: MessageFlagEphemeral}).Ephemeral() {
		t.Fatalf("ephemeral flag not detected")
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := &Message{
		ID:          "1",
		Mentions:    []User{{ID: "a"}},
		EditHistory: []EditEntry{{Content: "old"}},
	}
	c := m.Clone()
	c.Mentions[0].ID = "changed"
	c.EditHistory[0].Content = "changed"
	if m.Mentions[0].ID != "a" || m.EditHistory[0].Content != "old" {
		t.Fatalf("clone shares slices with the original")
	}
}

func TestLoadPayloadBoundaries(t *testing.T) {
	p := &LoadPayload{}
	if !p.ReachedStart() || !p.ReachedEnd() {
		t.Fatalf("a full-channel fetch reaches both boundaries")
	}
	p = &LoadPayload{HasMoreAfter: true, HasMoreBefore: true}
	if p.ReachedStart() || p.ReachedEnd() {
		t.Fatalf("a middle page reaches neither boundary")
	}
	p = &LoadPayload{IsBefore: true}
	if p.ReachedStart() {
		t.Fatalf("a backwards fetch never includes the newest message")
	}
	if !(&LoadPayload{IsAfter: true}).ReachedStart() {
		// forward fetch with no more data after it reaches the start
		t.Fatalf("forward fetch with exhausted history must reach the start")
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusDeleted.Valid() || !StatusEdited.Valid() {
		t.Fatalf("known statuses must validate")
	}
	if Status("BOGUS").Valid() {
		t.Fatalf("unknown status must not validate")
	}
}
