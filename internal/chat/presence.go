package chat

import "sync"

// PresenceEntry pairs a live connection with its authenticated username.
// The JSON shape matches the online_users_update payload.
type PresenceEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Presence tracks who is online, keyed by connection id. The same
// username may appear under several connections; entries are never
// deduplicated by name.
type Presence struct {
	mu      sync.RWMutex
	entries []PresenceEntry
}

func NewPresence() *Presence {
	return &Presence{}
}

// Bind records connID as username. Rebinding an already-bound connection
// overwrites its entry in place.
func (p *Presence) Bind(connID, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.entries {
		if p.entries[i].ID == connID {
			p.entries[i].Name = username
			return
		}
	}
	p.entries = append(p.entries, PresenceEntry{ID: connID, Name: username})
}

// Unbind removes the entry for connID and reports whether one existed.
// Unbinding an unknown connection is a no-op.
func (p *Presence) Unbind(connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.entries {
		if p.entries[i].ID == connID {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns every bound entry exactly once, in bind order.
func (p *Presence) Snapshot() []PresenceEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PresenceEntry, len(p.entries))
	copy(out, p.entries)
	return out
}
