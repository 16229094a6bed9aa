package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"swapit/internal/broadcast"
	"swapit/internal/domain"
	"swapit/internal/game"
	"swapit/internal/logger"
	"swapit/internal/store"

	"github.com/google/uuid"
)

const (
	maxPlayerIDLen    = 64
	maxDisplayNameLen = 32
	maxGameNameLen    = 48
)

// Archiver stores final results of finished sessions.
type Archiver interface {
	SaveResults(ctx context.Context, results []*domain.GameResult) error
}

// SessionConfig holds collaborators and knobs for SessionService.
type SessionConfig struct {
	Defaults domain.Options
	Archive  Archiver // optional
	AdminKey string

	// Test hooks
	Clock func() time.Time
	Rand  *rand.Rand
	NewID func() string
}

// SessionService drives a session through CREATED → LIVE → OVER. It keeps
// no per-session state in memory; every operation reads and writes the store.
type SessionService struct {
	store    store.SessionStore
	gateway  broadcast.Gateway
	archive  Archiver
	shuffler *game.Shuffler
	defaults domain.Options
	adminKey string
	now      func() time.Time
	newID    func() string
}

func NewSessionService(st store.SessionStore, gw broadcast.Gateway, cfg SessionConfig) *SessionService {
	defaults := cfg.Defaults
	if defaults == (domain.Options{}) {
		defaults = domain.Options{
			TileCount:      domain.DefaultTileCount,
			EmojiTheme:     domain.DefaultEmojiTheme,
			MaxPlayers:     domain.DefaultMaxPlayers,
			PlacementCount: domain.DefaultPlacementCount,
		}
	}
	s := &SessionService{
		store:    st,
		gateway:  gw,
		archive:  cfg.Archive,
		shuffler: game.NewShuffler(cfg.Rand),
		defaults: defaults,
		adminKey: cfg.AdminKey,
		now:      cfg.Clock,
		newID:    cfg.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// CreateRequest - параметры новой игры
type CreateRequest struct {
	PlayerID    string           `json:"player_id"`
	DisplayName string           `json:"display_name"`
	Name        string           `json:"name"`
	Location    *domain.Location `json:"location,omitempty"`
	domain.Options
}

// JoinRequest - вход игрока в лобби
type JoinRequest struct {
	PlayerID    string           `json:"player_id"`
	DisplayName string           `json:"display_name"`
	Location    *domain.Location `json:"location,omitempty"`
}

// PlayerProgress is the public view of a PlayerRoundState.
type PlayerProgress struct {
	PlayerID         string `json:"player_id"`
	MoveCount        int    `json:"move_count"`
	PositionsCorrect int    `json:"positions_correct"`
	Finished         bool   `json:"finished"`
	FinishedAt       *int64 `json:"finished_at,omitempty"`
}

// GameView is what clients may see of a session. The goal order is only
// present once the session is OVER.
type GameView struct {
	ID                      string             `json:"id"`
	Name                    string             `json:"name"`
	Phase                   domain.Phase       `json:"phase"`
	Options                 domain.Options     `json:"options"`
	EffectivePlacementCount int                `json:"effective_placement_count"`
	Tiles                   map[int]string     `json:"tiles"`
	InitialOrder            domain.Order       `json:"initial_order,omitempty"`
	GoalOrder               domain.Order       `json:"goal_order,omitempty"`
	Members                 []domain.Member    `json:"members"`
	HostID                  string             `json:"host_id"`
	EndReason               domain.EndReason   `json:"end_reason,omitempty"`
	Players                 []PlayerProgress   `json:"players,omitempty"`
	Placements              []domain.Placement `json:"placements"`
	NonFinishers            []string           `json:"non_finishers,omitempty"`
	CreatedAt               time.Time          `json:"created_at"`
	StartedAt               *time.Time         `json:"started_at,omitempty"`
	EndedAt                 *time.Time         `json:"ended_at,omitempty"`
}

// LobbyEntry is one row of list_games.
type LobbyEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HostName    string    `json:"host_name"`
	MemberCount int       `json:"member_count"`
	MaxPlayers  int       `json:"max_players"`
	TileCount   int       `json:"tile_count"`
	EmojiTheme  string    `json:"emoji_theme"`
	CreatedAt   time.Time `json:"created_at"`
}

func cleanPlayer(playerID, displayName string) (string, string, error) {
	playerID = strings.TrimSpace(playerID)
	displayName = strings.TrimSpace(displayName)
	if playerID == "" || len(playerID) > maxPlayerIDLen {
		return "", "", domain.Validation("player_id is required (max 64 chars)")
	}
	if displayName == "" {
		displayName = playerID
	}
	if len([]rune(displayName)) > maxDisplayNameLen {
		return "", "", domain.Validation("display_name too long (max 32 chars)")
	}
	return playerID, displayName, nil
}

func cleanGameName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) > maxGameNameLen {
		return "", domain.Validation("name too long (max 48 chars)")
	}
	return name, nil
}

// load reads a session, mapping store failures onto the error taxonomy.
func (s *SessionService) load(ctx context.Context, id string) (*domain.GameSession, error) {
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, domain.StoreError("read session", err)
	}
	return sess, nil
}

func (s *SessionService) save(ctx context.Context, sess *domain.GameSession) error {
	if err := s.store.PutSession(ctx, sess); err != nil {
		return domain.StoreError("write session", err)
	}
	return nil
}

// publish is fire-and-forget: failures are logged, never returned.
func (s *SessionService) publish(ctx context.Context, topic string, ev broadcast.Event) {
	if s.gateway == nil {
		return
	}
	if err := s.gateway.Publish(ctx, topic, ev); err != nil {
		logger.Warn("broadcast failed", "topic", topic, "event", ev.Kind(), "error", err)
	}
}

func (s *SessionService) publishLobby(ctx context.Context, sess *domain.GameSession, removed bool) {
	ev := broadcast.LobbyUpdated{GameID: sess.ID, Removed: removed}
	if !removed {
		ev.Name = sess.Name
		ev.Phase = sess.Phase
		ev.MemberCount = len(sess.ActiveMembers())
		ev.MaxPlayers = sess.Options.MaxPlayers
	}
	s.publish(ctx, broadcast.LobbyTopic, ev)
}

// CreateGame creates a session with the caller as host. Option defaults are
// resolved here and stored as concrete values.
func (s *SessionService) CreateGame(ctx context.Context, req CreateRequest) (*domain.GameSession, error) {
	playerID, displayName, err := cleanPlayer(req.PlayerID, req.DisplayName)
	if err != nil {
		return nil, err
	}
	name, err := cleanGameName(req.Name)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = displayName + "'s game"
	}

	opts, err := req.Options.Resolve(s.defaults)
	if err != nil {
		return nil, err
	}
	tiles, err := game.Tiles(opts.EmojiTheme, opts.TileCount)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &domain.GameSession{
		ID:                      s.newID(),
		Name:                    name,
		Phase:                   domain.PhaseCreated,
		Options:                 opts,
		EffectivePlacementCount: opts.PlacementCount,
		Tiles:                   tiles,
		Members: []domain.Member{{
			PlayerID:    playerID,
			DisplayName: displayName,
			Role:        domain.RoleHost,
			Location:    req.Location,
			JoinedAt:    now,
		}},
		HostID:    playerID,
		CreatedAt: now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	GamesCreated.Inc()
	logger.ForGame(ctx, sess.ID).Info("game created", "host", playerID, "tiles", opts.TileCount, "max_players", opts.MaxPlayers)
	s.publishLobby(ctx, sess, false)
	return sess, nil
}

// StartGame moves a CREATED session to LIVE. Only the host may start it.
func (s *SessionService) StartGame(ctx context.Context, gameID, playerID string) (*domain.GameSession, error) {
	sess, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if playerID == "" || playerID != sess.HostID {
		return nil, domain.ErrNotHost
	}
	switch sess.Phase {
	case domain.PhaseLive:
		return nil, domain.ErrAlreadyStarted
	case domain.PhaseOver:
		return nil, domain.ErrGameOver
	}

	n := sess.Options.TileCount
	goal := s.shuffler.Goal(n)
	initial := s.shuffler.Initial(goal)

	// Player records first: a move can only be accepted once the session
	// record says LIVE, and by then every record exists.
	for _, m := range sess.Members {
		st := &domain.PlayerRoundState{
			PlayerID:           m.PlayerID,
			CurrentOrder:       initial.Clone(),
			CorrectnessHistory: []int{},
		}
		if err := s.store.PutMember(ctx, sess.ID, st); err != nil {
			return nil, domain.StoreError("write player state", err)
		}
	}

	startedAt := s.now().UTC()
	sess.Phase = domain.PhaseLive
	sess.GoalOrder = goal
	sess.InitialOrder = initial
	sess.StartedAt = &startedAt
	sess.EffectivePlacementCount = min(sess.Options.PlacementCount, len(sess.Members))
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	GamesStarted.Inc()
	logger.ForGame(ctx, sess.ID).Info("game started", "players", len(sess.Members), "placements", sess.EffectivePlacementCount)

	s.publish(ctx, broadcast.GameTopic(sess.ID), broadcast.GameStarted{
		Tiles:          sess.Tiles,
		InitialOrder:   initial,
		PlacementCount: sess.EffectivePlacementCount,
		StartedAt:      startedAt.UnixMilli(),
	})
	s.publishLobby(ctx, sess, false)
	return sess, nil
}

// GetGame returns the client view. Placements are recomputed from the
// player records on every call.
func (s *SessionService) GetGame(ctx context.Context, gameID string) (*GameView, error) {
	sess, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}

	view := NewGameView(sess)
	if sess.Phase == domain.PhaseCreated {
		return view, nil
	}

	states, err := s.store.ListMembers(ctx, sess.ID)
	if err != nil {
		return nil, domain.StoreError("read player states", err)
	}
	states = sess.RosterStates(states)
	for _, st := range states {
		view.Players = append(view.Players, PlayerProgress{
			PlayerID:         st.PlayerID,
			MoveCount:        st.MoveCount,
			PositionsCorrect: st.PositionsCorrect,
			Finished:         st.Finished,
			FinishedAt:       st.FinishedAt,
		})
	}

	view.Placements = standings(sess, states)
	if sess.Phase == domain.PhaseOver {
		view.NonFinishers = nonFinishers(sess, view.Placements)
	}
	return view, nil
}

// NewGameView builds the view of sess without per-player progress.
func NewGameView(sess *domain.GameSession) *GameView {
	view := &GameView{
		ID:                      sess.ID,
		Name:                    sess.Name,
		Phase:                   sess.Phase,
		Options:                 sess.Options,
		EffectivePlacementCount: sess.EffectivePlacementCount,
		Tiles:                   sess.Tiles,
		Members:                 sess.Members,
		HostID:                  sess.HostID,
		EndReason:               sess.EndReason,
		Placements:              []domain.Placement{},
		CreatedAt:               sess.CreatedAt,
		StartedAt:               sess.StartedAt,
		EndedAt:                 sess.EndedAt,
	}
	if sess.Phase != domain.PhaseCreated {
		view.InitialOrder = sess.InitialOrder
	}
	if sess.Phase == domain.PhaseOver {
		view.GoalOrder = sess.GoalOrder
	}
	return view
}

// ListGames returns the joinable (CREATED) sessions.
func (s *SessionService) ListGames(ctx context.Context) ([]LobbyEntry, error) {
	all, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, domain.StoreError("list sessions", err)
	}
	out := make([]LobbyEntry, 0, len(all))
	for _, sess := range all {
		if sess.Phase != domain.PhaseCreated {
			continue
		}
		entry := LobbyEntry{
			ID:          sess.ID,
			Name:        sess.Name,
			MemberCount: len(sess.Members),
			MaxPlayers:  sess.Options.MaxPlayers,
			TileCount:   sess.Options.TileCount,
			EmojiTheme:  sess.Options.EmojiTheme,
			CreatedAt:   sess.CreatedAt,
		}
		if host, ok := sess.Member(sess.HostID); ok {
			entry.HostName = host.DisplayName
		}
		out = append(out, entry)
	}
	return out, nil
}

// UpdateName renames a CREATED session. Host only.
func (s *SessionService) UpdateName(ctx context.Context, gameID, playerID, name string) (*domain.GameSession, error) {
	name, err := cleanGameName(name)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, domain.Validation("name is required")
	}

	sess, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if playerID == "" || playerID != sess.HostID {
		return nil, domain.ErrNotHost
	}
	if sess.Phase != domain.PhaseCreated {
		return nil, domain.ErrAlreadyStarted
	}

	sess.Name = name
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	s.publishLobby(ctx, sess, false)
	return sess, nil
}

// ClearGames deletes every session. When an admin key is configured the
// caller must present it.
func (s *SessionService) ClearGames(ctx context.Context, adminKey string) (int, error) {
	if s.adminKey != "" && subtle.ConstantTimeCompare([]byte(adminKey), []byte(s.adminKey)) != 1 {
		return 0, domain.ErrNotAdmin
	}
	all, err := s.store.ListSessions(ctx)
	if err != nil {
		return 0, domain.StoreError("list sessions", err)
	}
	cleared := 0
	for _, sess := range all {
		if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
			return cleared, domain.StoreError("delete session", err)
		}
		cleared++
		if sess.Phase != domain.PhaseOver {
			s.publish(ctx, broadcast.GameTopic(sess.ID), broadcast.GameCanceled{Reason: "cleared"})
		}
		s.publishLobby(ctx, sess, true)
	}
	logger.Info("games cleared", "count", cleared)
	return cleared, nil
}
