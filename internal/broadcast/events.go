package broadcast

import (
	"errors"

	"swapit/internal/domain"
)

type Kind string

const (
	KindPlayerJoined   Kind = "PLAYER_JOINED"
	KindPlayerLeft     Kind = "PLAYER_LEFT"
	KindGameStarted    Kind = "GAME_STARTED"
	KindProgressUpdate Kind = "PROGRESS_UPDATE"
	KindPlayerFinished Kind = "PLAYER_FINISHED"
	KindGameOver       Kind = "GAME_OVER"
	KindGameCanceled   Kind = "GAME_CANCELED"
	KindHostLeft       Kind = "HOST_LEFT"
	KindLobbyUpdated   Kind = "LOBBY_UPDATED"
)

// Event is a closed set: only the types in this file implement it.
type Event interface {
	Kind() Kind
	validate() error
}

type PlayerJoined struct {
	Player      domain.Member `json:"player"`
	MemberCount int           `json:"member_count"`
}

type PlayerLeft struct {
	PlayerID       string `json:"player_id"`
	MemberCount    int    `json:"member_count"`
	PlacementCount int    `json:"placement_count,omitempty"`
}

// GameStarted never carries the goal order.
type GameStarted struct {
	Tiles          map[int]string `json:"tiles"`
	InitialOrder   domain.Order   `json:"initial_order"`
	PlacementCount int            `json:"placement_count"`
	StartedAt      int64          `json:"started_at"`
}

type ProgressUpdate struct {
	PlayerID         string `json:"player_id"`
	MoveCount        int    `json:"move_count"`
	PositionsCorrect int    `json:"positions_correct"`
}

// PlayerFinished carries a provisional placement.
type PlayerFinished struct {
	PlayerID   string `json:"player_id"`
	Placement  int    `json:"placement"`
	FinishedAt int64  `json:"finished_at"`
	MoveCount  int    `json:"move_count"`
}

type GameOver struct {
	Placements   []domain.Placement `json:"placements"`
	GoalOrder    domain.Order       `json:"goal_order"`
	Reason       domain.EndReason   `json:"reason"`
	NonFinishers []string           `json:"non_finishers"`
}

type GameCanceled struct {
	Reason string `json:"reason"`
}

type HostLeft struct {
	HostID string `json:"host_id"`
}

type LobbyUpdated struct {
	GameID      string       `json:"game_id"`
	Name        string       `json:"name,omitempty"`
	Phase       domain.Phase `json:"phase,omitempty"`
	MemberCount int          `json:"member_count"`
	MaxPlayers  int          `json:"max_players,omitempty"`
	Removed     bool         `json:"removed,omitempty"`
}

func (PlayerJoined) Kind() Kind   { return KindPlayerJoined }
func (PlayerLeft) Kind() Kind     { return KindPlayerLeft }
func (GameStarted) Kind() Kind    { return KindGameStarted }
func (ProgressUpdate) Kind() Kind { return KindProgressUpdate }
func (PlayerFinished) Kind() Kind { return KindPlayerFinished }
func (GameOver) Kind() Kind       { return KindGameOver }
func (GameCanceled) Kind() Kind   { return KindGameCanceled }
func (HostLeft) Kind() Kind       { return KindHostLeft }
func (LobbyUpdated) Kind() Kind   { return KindLobbyUpdated }

var errMissingPlayer = errors.New("player_id required")

func (e PlayerJoined) validate() error {
	if e.Player.PlayerID == "" {
		return errMissingPlayer
	}
	return nil
}

func (e PlayerLeft) validate() error {
	if e.PlayerID == "" {
		return errMissingPlayer
	}
	return nil
}

func (e GameStarted) validate() error {
	if len(e.InitialOrder) == 0 || len(e.Tiles) != len(e.InitialOrder) {
		return errors.New("tiles and initial_order required")
	}
	return nil
}

func (e ProgressUpdate) validate() error {
	if e.PlayerID == "" {
		return errMissingPlayer
	}
	return nil
}

func (e PlayerFinished) validate() error {
	if e.PlayerID == "" {
		return errMissingPlayer
	}
	if e.Placement < 1 {
		return errors.New("placement must be positive")
	}
	return nil
}

func (e GameOver) validate() error {
	if e.Reason == "" {
		return errors.New("reason required")
	}
	for i, p := range e.Placements {
		if p.Rank != i+1 {
			return errors.New("placements must be ranked 1..k")
		}
	}
	return nil
}

func (e GameCanceled) validate() error { return nil }

func (e HostLeft) validate() error {
	if e.HostID == "" {
		return errors.New("host_id required")
	}
	return nil
}

func (e LobbyUpdated) validate() error {
	if e.GameID == "" {
		return errors.New("game_id required")
	}
	return nil
}
