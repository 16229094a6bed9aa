package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"swapit/internal/domain"
)

// MemoryStore keeps encoded records in process. Records are stored as JSON
// so callers never share memory with the store, as with a remote backend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	players  map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		players:  make(map[string]map[string][]byte),
	}
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*domain.GameSession, error) {
	m.mu.RLock()
	raw, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var s domain.GameSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MemoryStore) PutSession(ctx context.Context, s *domain.GameSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.ID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	delete(m.players, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListSessions(ctx context.Context) ([]*domain.GameSession, error) {
	m.mu.RLock()
	raws := make([][]byte, 0, len(m.sessions))
	for _, raw := range m.sessions {
		raws = append(raws, raw)
	}
	m.mu.RUnlock()

	out := make([]*domain.GameSession, 0, len(raws))
	for _, raw := range raws {
		var s domain.GameSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetMember(ctx context.Context, sessionID, playerID string) (*domain.PlayerRoundState, error) {
	m.mu.RLock()
	raw, ok := m.players[sessionID][playerID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var st domain.PlayerRoundState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *MemoryStore) PutMember(ctx context.Context, sessionID string, st *domain.PlayerRoundState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.players[sessionID] == nil {
		m.players[sessionID] = make(map[string][]byte)
	}
	m.players[sessionID][st.PlayerID] = raw
	return nil
}

func (m *MemoryStore) DeleteMember(ctx context.Context, sessionID, playerID string) error {
	m.mu.Lock()
	delete(m.players[sessionID], playerID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListMembers(ctx context.Context, sessionID string) ([]domain.PlayerRoundState, error) {
	m.mu.RLock()
	raws := make([][]byte, 0, len(m.players[sessionID]))
	for _, raw := range m.players[sessionID] {
		raws = append(raws, raw)
	}
	m.mu.RUnlock()

	out := make([]domain.PlayerRoundState, 0, len(raws))
	for _, raw := range raws {
		var st domain.PlayerRoundState
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
