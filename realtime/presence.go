package realtime

import "sync"

// Presence tracks which agents currently hold at least one live
// connection per team. Writes happen only on the hub goroutine; the
// read lock exists for REST handlers querying online flags.
type Presence struct {
	mu    sync.RWMutex
	teams map[string]map[uint]map[string]struct{} // teamID -> userID -> connIDs
}

func NewPresence() *Presence {
	return &Presence{
		teams: make(map[string]map[uint]map[string]struct{}),
	}
}

// Register records a connection. It returns true when the agent had no
// prior connections for the team, that is when the online set changed.
func (p *Presence) Register(teamID string, userID uint, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	agents, ok := p.teams[teamID]
	if !ok {
		agents = make(map[uint]map[string]struct{})
		p.teams[teamID] = agents
	}

	conns, ok := agents[userID]
	if !ok {
		conns = make(map[string]struct{})
		agents[userID] = conns
	}

	wasOffline := len(conns) == 0
	conns[connID] = struct{}{}
	return wasOffline
}

// Unregister removes a connection. It returns true when this was the
// agent's last connection for the team. Empty maps are pruned so the
// registry shrinks back after disconnects.
func (p *Presence) Unregister(teamID string, userID uint, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	agents, ok := p.teams[teamID]
	if !ok {
		return false
	}
	conns, ok := agents[userID]
	if !ok {
		return false
	}

	delete(conns, connID)
	if len(conns) > 0 {
		return false
	}

	delete(agents, userID)
	if len(agents) == 0 {
		delete(p.teams, teamID)
	}
	return true
}

// Online returns the IDs of agents with at least one live connection
// for the team.
func (p *Presence) Online(teamID string) []uint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	agents := p.teams[teamID]
	ids := make([]uint, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	return ids
}

// IsOnline reports whether the agent has a live connection for the team.
func (p *Presence) IsOnline(teamID string, userID uint) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns, ok := p.teams[teamID][userID]
	return ok && len(conns) > 0
}
