// Package store holds the session store contract and its adapters.
//
// A session is persisted as one record for the session itself plus one
// independently addressable record per player. Writes to the session record
// are whole-record overwrites (last write wins); nothing spans records
// atomically.
package store

import (
	"context"
	"errors"

	"swapit/internal/domain"
)

var ErrNotFound = errors.New("record not found")

type SessionStore interface {
	GetSession(ctx context.Context, id string) (*domain.GameSession, error)
	PutSession(ctx context.Context, s *domain.GameSession) error
	// DeleteSession removes the session and every player record under it.
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]*domain.GameSession, error)

	GetMember(ctx context.Context, sessionID, playerID string) (*domain.PlayerRoundState, error)
	PutMember(ctx context.Context, sessionID string, st *domain.PlayerRoundState) error
	DeleteMember(ctx context.Context, sessionID, playerID string) error
	ListMembers(ctx context.Context, sessionID string) ([]domain.PlayerRoundState, error)

	Ping(ctx context.Context) error
}
