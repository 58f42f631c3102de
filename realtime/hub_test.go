package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"dispatch/gate"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(log.New(io.Discard, "", 0))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newAgentClient(id string, userID uint, teamID string) *Client {
	return &Client{
		id:   id,
		send: make(chan []byte, sendBuffer),
		groups: []GroupKey{
			TeamGroup(teamID),
		},
		identity: &gate.Identity{
			Kind:     gate.ActorAgent,
			UserID:   userID,
			UserName: "Agent",
			TeamID:   teamID,
		},
	}
}

func newVisitorClient(id, sessionID, teamID string) *Client {
	return &Client{
		id:   id,
		send: make(chan []byte, sendBuffer),
		groups: []GroupKey{
			VisitorGroup(sessionID),
		},
		identity: &gate.Identity{
			Kind:      gate.ActorVisitor,
			SessionID: sessionID,
			TeamID:    teamID,
		},
	}
}

func recvEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed while waiting for event")
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Envelope{}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected event: %s", payload)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubMembersOnRegister(t *testing.T) {
	hub := newTestHub(t)

	agent := newAgentClient("c1", 1, "team1")
	hub.register <- agent

	env := recvEnvelope(t, agent)
	if env.Event != EventMembers {
		t.Fatalf("event = %q, want %q", env.Event, EventMembers)
	}
}

func TestHubSecondTabNoMembersChurn(t *testing.T) {
	hub := newTestHub(t)

	first := newAgentClient("c1", 1, "team1")
	second := newAgentClient("c2", 1, "team1")
	hub.register <- first
	recvEnvelope(t, first)

	hub.register <- second
	expectNoEvent(t, second)

	// Closing one of two tabs keeps the agent online, so no update
	hub.unregister <- second
	expectNoEvent(t, first)

	hub.unregister <- first
	// The hub loop processes the unregister asynchronously; wait for it.
	deadline := time.Now().Add(time.Second)
	for hub.Presence().IsOnline("team1", 1) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if hub.Presence().IsOnline("team1", 1) {
		t.Error("agent should be offline after all tabs close")
	}
}

func TestHubBroadcastScoping(t *testing.T) {
	hub := newTestHub(t)

	agent := newAgentClient("c1", 1, "team1")
	otherAgent := newAgentClient("c2", 2, "team2")
	visitor := newVisitorClient("c3", "sess1", "team1")
	hub.register <- agent
	hub.register <- otherAgent
	recvEnvelope(t, agent)      // members
	recvEnvelope(t, otherAgent) // members
	hub.register <- visitor

	hub.BroadcastTeam("team1", "new_message", map[string]string{"id": "m1"})

	env := recvEnvelope(t, agent)
	if env.Event != "new_message" {
		t.Fatalf("event = %q, want new_message", env.Event)
	}
	expectNoEvent(t, otherAgent)
	expectNoEvent(t, visitor)

	hub.BroadcastVisitor("sess1", "session_update", map[string]string{"id": "sess1"})
	env = recvEnvelope(t, visitor)
	if env.Event != "session_update" {
		t.Fatalf("event = %q, want session_update", env.Event)
	}
	expectNoEvent(t, agent)
}

func TestHubDisconnectVisitor(t *testing.T) {
	hub := newTestHub(t)

	agent := newAgentClient("c1", 1, "team1")
	visitor := newVisitorClient("c2", "sess1", "team1")
	hub.register <- agent
	recvEnvelope(t, agent)
	hub.register <- visitor

	hub.DisconnectVisitor("sess1")

	select {
	case _, ok := <-visitor.send:
		if ok {
			t.Fatal("expected send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("visitor was not disconnected")
	}

	// The agent connection is untouched
	hub.BroadcastTeam("team1", "ping", nil)
	if env := recvEnvelope(t, agent); env.Event != "ping" {
		t.Fatalf("event = %q, want ping", env.Event)
	}
}

func TestHubVisitorGroupsDoNotCollideWithTeams(t *testing.T) {
	hub := newTestHub(t)

	// Same underlying ID in both spaces
	agent := newAgentClient("c1", 1, "shared")
	visitor := newVisitorClient("c2", "shared", "team1")
	hub.register <- agent
	recvEnvelope(t, agent)
	hub.register <- visitor

	hub.BroadcastVisitor("shared", "session_update", nil)
	recvEnvelope(t, visitor)
	expectNoEvent(t, agent)
}
