package realtime

import "encoding/json"

// GroupKind selects the addressing space of a GroupKey.
type GroupKind uint8

const (
	// GroupTeam fans out to every agent connection for a team.
	GroupTeam GroupKind = iota
	// GroupVisitor fans out to every tab of one visitor session.
	GroupVisitor
)

// GroupKey addresses one broadcast group. Keys of different kinds never
// collide even when the underlying IDs happen to match.
type GroupKey struct {
	Kind GroupKind
	ID   string
}

// TeamGroup returns the group key for a team's agents.
func TeamGroup(teamID string) GroupKey {
	return GroupKey{Kind: GroupTeam, ID: teamID}
}

// VisitorGroup returns the group key for a visitor session.
func VisitorGroup(sessionID string) GroupKey {
	return GroupKey{Kind: GroupVisitor, ID: sessionID}
}

// Events originated by the realtime layer itself. Session lifecycle
// events are named by the store, which owns that protocol.
const (
	EventMembers = "members"
	EventError   = "error"
)

// Envelope is the wire frame for every server-to-client event.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

func (e Envelope) encode() ([]byte, error) {
	return json.Marshal(e)
}

// inbound is the wire frame for client-to-server events after the
// handshake.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
