package realtime

import (
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"dispatch/gate"
	"dispatch/store"
	"dispatch/utils"
)

// sendBuffer bounds how many undelivered events a connection can queue
// before the hub starts dropping for it.
const sendBuffer = 64

// Client is one websocket connection after a successful handshake.
// The gone flag is owned by the hub goroutine.
type Client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	groups   []GroupKey
	identity *gate.Identity
	gone     bool
}

// handshake is the first frame a client must send. Agents authenticate
// with a bearer token against a team; visitors with their session
// id/token pair.
type handshake struct {
	Type   string `json:"type"`
	Token  string `json:"token"`
	TeamID string `json:"teamId"`
	ID     string `json:"id"`
}

type readAck struct {
	ID string `json:"id"`
}

// Handler returns the websocket connection handler. Identity is
// resolved once, on the handshake; it is never re-checked for the
// lifetime of the connection.
func Handler(db *gorm.DB, st *store.Store, hub *Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}

		var hs handshake
		if err := json.Unmarshal(raw, &hs); err != nil {
			rejectConn(conn, "malformed handshake")
			return
		}

		var identity *gate.Identity
		var groups []GroupKey

		switch hs.Type {
		case gate.ActorAgent:
			identity, err = gate.ResolveAgent(db, hs.Token, hs.TeamID)
			if err != nil {
				rejectConn(conn, "authentication failed")
				return
			}
			groups = []GroupKey{TeamGroup(identity.TeamID)}
		case gate.ActorVisitor:
			identity, err = gate.ResolveVisitor(db, hs.ID, hs.Token)
			if err != nil {
				rejectConn(conn, "session not found")
				return
			}
			groups = []GroupKey{VisitorGroup(identity.SessionID)}
		default:
			rejectConn(conn, "unknown actor type")
			return
		}

		client := &Client{
			id:       uuid.NewString(),
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
			groups:   groups,
			identity: identity,
		}

		hub.register <- client
		go client.writePump()
		client.readPump(st, hub)
	}
}

func rejectConn(conn *websocket.Conn, reason string) {
	if payload, err := (Envelope{Event: EventError, Data: reason}).encode(); err == nil {
		conn.WriteMessage(websocket.TextMessage, payload)
	}
	conn.Close()
}

// writePump drains the send channel onto the wire. It is the only
// goroutine that writes to the connection.
func (c *Client) writePump() {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

// readPump consumes client events until the connection drops, then
// unregisters.
func (c *Client) readPump(st *store.Store, hub *Hub) {
	defer func() {
		hub.unregister <- c
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Event {
		case store.EventMessagesRead:
			var ack readAck
			if len(msg.Data) > 0 {
				if err := json.Unmarshal(msg.Data, &ack); err != nil {
					continue
				}
			}
			// Visitors may only acknowledge their own session.
			sessionID := ack.ID
			if !c.identity.IsAgent() {
				sessionID = c.identity.SessionID
			}
			if err := st.AcknowledgeRead(c.identity, sessionID); err != nil {
				utils.LogError("read_ack", err, map[string]interface{}{
					"session_id": sessionID,
					"actor":      c.identity.Kind,
				})
			}
		}
	}
}
