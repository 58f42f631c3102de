package realtime

import (
	"context"
	"log"

	"dispatch/utils"
)

type outbound struct {
	group   GroupKey
	payload []byte
}

// Hub routes events to groups of websocket connections. All membership
// state is owned by the single Run goroutine; everything else talks to
// it through channels, so no handler ever takes a lock on the group
// table.
type Hub struct {
	Logger   *log.Logger
	presence *Presence

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	disconnect chan GroupKey

	groups map[GroupKey]map[*Client]struct{}
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		Logger:     logger,
		presence:   NewPresence(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
		disconnect: make(chan GroupKey),
		groups:     make(map[GroupKey]map[*Client]struct{}),
	}
}

// Presence exposes the online registry for REST handlers. Reads are
// safe concurrently with the hub loop.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Run consumes hub commands until the context is cancelled. Must be
// started exactly once.
func (h *Hub) Run(ctx context.Context) {
	h.Logger.Println("Hub started")
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case out := <-h.broadcast:
			h.deliver(out.group, out.payload)
		case group := <-h.disconnect:
			h.closeGroup(group)
		case <-ctx.Done():
			h.Logger.Println("Hub shutting down")
			for _, clients := range h.groups {
				for client := range clients {
					h.removeClient(client)
				}
			}
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	for _, group := range client.groups {
		clients, ok := h.groups[group]
		if !ok {
			clients = make(map[*Client]struct{})
			h.groups[group] = clients
		}
		clients[client] = struct{}{}
	}

	if client.identity.IsAgent() {
		changed := h.presence.Register(client.identity.TeamID, client.identity.UserID, client.id)
		if changed {
			h.broadcastMembers(client.identity.TeamID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	if client.gone {
		return
	}
	client.gone = true

	for _, group := range client.groups {
		clients, ok := h.groups[group]
		if !ok {
			continue
		}
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.groups, group)
		}
	}
	close(client.send)

	if client.identity.IsAgent() {
		changed := h.presence.Unregister(client.identity.TeamID, client.identity.UserID, client.id)
		if changed {
			h.broadcastMembers(client.identity.TeamID)
		}
	}
}

// deliver fans a payload out to a group. Sends never block the hub
// loop: a client whose buffer is full misses the event and is expected
// to resynchronize over REST.
func (h *Hub) deliver(group GroupKey, payload []byte) {
	for client := range h.groups[group] {
		select {
		case client.send <- payload:
		default:
			h.Logger.Printf("dropping event for slow connection %s", client.id)
		}
	}
}

func (h *Hub) closeGroup(group GroupKey) {
	for client := range h.groups[group] {
		h.removeClient(client)
	}
}

func (h *Hub) broadcastMembers(teamID string) {
	payload, err := Envelope{Event: EventMembers, Data: h.presence.Online(teamID)}.encode()
	if err != nil {
		utils.LogError("members_encode", err, map[string]interface{}{"team_id": teamID})
		return
	}
	h.deliver(TeamGroup(teamID), payload)
}

// BroadcastTeam sends an event to all agents of a team. Safe from any
// goroutine; delivery is fire-and-forget.
func (h *Hub) BroadcastTeam(teamID, event string, data interface{}) {
	h.emit(TeamGroup(teamID), event, data)
}

// BroadcastVisitor sends an event to all tabs of a visitor session.
func (h *Hub) BroadcastVisitor(sessionID, event string, data interface{}) {
	h.emit(VisitorGroup(sessionID), event, data)
}

// DisconnectVisitor force-closes every connection of a visitor session.
func (h *Hub) DisconnectVisitor(sessionID string) {
	h.disconnect <- VisitorGroup(sessionID)
}

func (h *Hub) emit(group GroupKey, event string, data interface{}) {
	payload, err := Envelope{Event: event, Data: data}.encode()
	if err != nil {
		utils.LogError("event_encode", err, map[string]interface{}{
			"event": event,
			"group": group.ID,
		})
		return
	}
	h.broadcast <- outbound{group: group, payload: payload}
}
