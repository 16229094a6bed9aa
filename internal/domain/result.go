package domain

import "time"

// ResultStatus - итог игрока в завершённой сессии
type ResultStatus string

const (
	ResultFinished  ResultStatus = "finished"
	ResultDNF       ResultStatus = "dnf" // did not finish
	ResultAbandoned ResultStatus = "abandoned"
)

// GameResult - архивная запись одного игрока
type GameResult struct {
	ID          int64                  `db:"id" json:"id"`
	GameID      string                 `db:"game_id" json:"game_id"`
	GameName    string                 `db:"game_name" json:"game_name"`
	PlayerID    string                 `db:"player_id" json:"player_id"`
	DisplayName string                 `db:"display_name" json:"display_name"`
	Status      ResultStatus           `db:"status" json:"status"`
	Placement   *int                   `db:"placement" json:"placement,omitempty"`
	MoveCount   int                    `db:"move_count" json:"move_count"`
	TileCount   int                    `db:"tile_count" json:"tile_count"`
	EndReason   EndReason              `db:"end_reason" json:"end_reason"`
	Details     map[string]interface{} `db:"details" json:"details,omitempty"`
	EndedAt     time.Time              `db:"ended_at" json:"ended_at"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
}

// BuildResults turns a finalized session into one archive row per player.
// Finishers outside the leaderboard and everyone else are recorded as dnf;
// in a host-abandoned session unfinished players are abandoned instead.
func BuildResults(s *GameSession, states []PlayerRoundState, board []Placement) []*GameResult {
	ranks := make(map[string]int, len(board))
	for _, p := range board {
		ranks[p.PlayerID] = p.Rank
	}

	ended := time.Now().UTC()
	if s.EndedAt != nil {
		ended = *s.EndedAt
	}

	out := make([]*GameResult, 0, len(states))
	for _, st := range states {
		r := &GameResult{
			GameID:    s.ID,
			GameName:  s.Name,
			PlayerID:  st.PlayerID,
			MoveCount: st.MoveCount,
			TileCount: s.Options.TileCount,
			EndReason: s.EndReason,
			EndedAt:   ended,
			Details: map[string]interface{}{
				"positions_correct": st.PositionsCorrect,
			},
		}
		if m, ok := s.Member(st.PlayerID); ok {
			r.DisplayName = m.DisplayName
		}
		if rank, ok := ranks[st.PlayerID]; ok {
			rank := rank
			r.Status = ResultFinished
			r.Placement = &rank
		} else if s.EndReason == EndHostLeft {
			r.Status = ResultAbandoned
		} else {
			r.Status = ResultDNF
		}
		out = append(out, r)
	}
	return out
}
