package domain

import (
	"sort"
	"time"
)

// Phase - стадия сессии
type Phase string

const (
	PhaseCreated Phase = "CREATED"
	PhaseLive    Phase = "LIVE"
	PhaseOver    Phase = "OVER"
)

// Role - роль участника
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// EndReason explains how a session reached OVER.
type EndReason string

const (
	EndCompleted   EndReason = "completed"
	EndHostLeft    EndReason = "host_left"
	EndPlayersLeft EndReason = "players_left"
)

// Location is optional, client supplied and display-only.
type Location struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

type Member struct {
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	Location    *Location `json:"location,omitempty"`
	Departed    bool      `json:"departed,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// GameSession is the session record. It never holds per-player round state;
// that lives in one PlayerRoundState record per player.
type GameSession struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phase Phase  `json:"phase"`

	Options                 Options `json:"options"`
	EffectivePlacementCount int     `json:"effective_placement_count"`

	GoalOrder    Order          `json:"goal_order,omitempty"`
	InitialOrder Order          `json:"initial_order,omitempty"`
	Tiles        map[int]string `json:"tiles,omitempty"`

	Members   []Member  `json:"members"`
	HostID    string    `json:"host_id"`
	EndReason EndReason `json:"end_reason,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Member returns the roster entry for playerID.
func (s *GameSession) Member(playerID string) (Member, bool) {
	for _, m := range s.Members {
		if m.PlayerID == playerID {
			return m, true
		}
	}
	return Member{}, false
}

// ActiveMembers returns members that have not departed.
func (s *GameSession) ActiveMembers() []Member {
	out := make([]Member, 0, len(s.Members))
	for _, m := range s.Members {
		if !m.Departed {
			out = append(out, m)
		}
	}
	return out
}

// RemoveMember drops playerID from the roster and reports whether it was present.
func (s *GameSession) RemoveMember(playerID string) bool {
	for i, m := range s.Members {
		if m.PlayerID == playerID {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return true
		}
	}
	return false
}

// MarkDeparted flags playerID as departed while keeping it on the roster.
func (s *GameSession) MarkDeparted(playerID string) {
	for i := range s.Members {
		if s.Members[i].PlayerID == playerID {
			s.Members[i].Departed = true
			return
		}
	}
}

// RosterStates drops records of players no longer on the roster. A move
// that raced its player's leave can write such a record back.
func (s *GameSession) RosterStates(states []PlayerRoundState) []PlayerRoundState {
	out := make([]PlayerRoundState, 0, len(states))
	for _, st := range states {
		if _, ok := s.Member(st.PlayerID); ok {
			out = append(out, st)
		}
	}
	return out
}

// PlayerRoundState is stored per (session, player) so that concurrent
// finishers never write the same record.
type PlayerRoundState struct {
	PlayerID           string `json:"player_id"`
	CurrentOrder       Order  `json:"current_order"`
	MoveCount          int    `json:"move_count"`
	PositionsCorrect   int    `json:"positions_correct"`
	CorrectnessHistory []int  `json:"correctness_history"`
	Finished           bool   `json:"finished"`

	// FinishRank is a provisional hint only.
	FinishRank    *int   `json:"finish_rank,omitempty"`
	FinishedAt    *int64 `json:"finished_at,omitempty"` // unix ms
	LastRequestID string `json:"last_request_id,omitempty"`
}

// Placement is a normalized leaderboard entry.
type Placement struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name,omitempty"`
	Rank        int    `json:"rank"`
	FinishedAt  int64  `json:"finished_at"`
	MoveCount   int    `json:"move_count"`
}

// Finishers returns finished states ordered by finish time, ties broken by
// player id.
func Finishers(states []PlayerRoundState) []PlayerRoundState {
	out := make([]PlayerRoundState, 0, len(states))
	for _, st := range states {
		if st.Finished && st.FinishedAt != nil {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := *out[i].FinishedAt, *out[j].FinishedAt
		if a != b {
			return a < b
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

// Leaderboard assigns contiguous ranks 1..k to the first limit finishers
// on the roster of s. Stored FinishRank values are ignored. limit <= 0 means
// no cap.
func Leaderboard(s *GameSession, states []PlayerRoundState, limit int) []Placement {
	if s != nil {
		states = s.RosterStates(states)
	}
	fin := Finishers(states)
	if limit > 0 && len(fin) > limit {
		fin = fin[:limit]
	}
	out := make([]Placement, 0, len(fin))
	for i, st := range fin {
		p := Placement{
			PlayerID:   st.PlayerID,
			Rank:       i + 1,
			FinishedAt: *st.FinishedAt,
			MoveCount:  st.MoveCount,
		}
		if s != nil {
			if m, ok := s.Member(st.PlayerID); ok {
				p.DisplayName = m.DisplayName
			}
		}
		out = append(out, p)
	}
	return out
}
