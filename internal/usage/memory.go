package usage

import (
	"context"
	"sync"
)

// Memory is an in-process Ledger. It is the default when no Redis URL is
// configured and is lost on exit.
type Memory struct {
	mu    sync.Mutex
	users map[string]*Totals
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]*Totals)}
}

// Record adds e to its user's totals.
func (m *Memory) Record(_ context.Context, e Event) error {
	id := userKey(e.UserID)
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.users[id]
	if !ok {
		t = &Totals{UserID: id, ByProvider: make(map[string]TokenCounts)}
		m.users[id] = t
	}
	t.All.Add(e)
	pc := t.ByProvider[e.Provider]
	pc.Add(e)
	t.ByProvider[e.Provider] = pc
	return nil
}

// Totals returns a copy of the user's totals.
func (m *Memory) Totals(_ context.Context, userID string) (Totals, error) {
	id := userKey(userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.users[id]
	if !ok {
		return Totals{UserID: id, ByProvider: map[string]TokenCounts{}}, nil
	}
	out := Totals{UserID: id, All: t.All, ByProvider: make(map[string]TokenCounts, len(t.ByProvider))}
	for k, v := range t.ByProvider {
		out.ByProvider[k] = v
	}
	return out, nil
}
