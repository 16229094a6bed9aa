package service

import (
	"context"
	"errors"

	"swapit/internal/broadcast"
	"swapit/internal/domain"
	"swapit/internal/logger"
	"swapit/internal/store"
)

// LeaveOutcome says what a leave did to the session.
type LeaveOutcome string

const (
	LeaveRemoved  LeaveOutcome = "left"
	LeaveDeleted  LeaveOutcome = "deleted"  // last member of a CREATED session
	LeaveCanceled LeaveOutcome = "canceled" // host left a CREATED session
	LeaveEnded    LeaveOutcome = "ended"    // the leave finalized a LIVE session
	LeaveNoop     LeaveOutcome = "noop"     // session already OVER or player already gone
)

// JoinGame adds a player to a CREATED session. Joining twice is a no-op.
func (s *SessionService) JoinGame(ctx context.Context, gameID string, req JoinRequest) (*domain.GameSession, error) {
	playerID, displayName, err := cleanPlayer(req.PlayerID, req.DisplayName)
	if err != nil {
		return nil, err
	}

	sess, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if sess.Phase != domain.PhaseCreated {
		return nil, domain.ErrNotJoinable
	}
	if _, ok := sess.Member(playerID); ok {
		return sess, nil
	}
	if len(sess.Members) >= sess.Options.MaxPlayers {
		return nil, domain.ErrGameFull
	}

	m := domain.Member{
		PlayerID:    playerID,
		DisplayName: displayName,
		Role:        domain.RolePlayer,
		Location:    req.Location,
		JoinedAt:    s.now().UTC(),
	}
	if len(sess.Members) == 0 {
		m.Role = domain.RoleHost
		sess.HostID = playerID
	}
	sess.Members = append(sess.Members, m)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	logger.ForGame(ctx, sess.ID).Info("player joined", "player", playerID, "members", len(sess.Members))
	s.publish(ctx, broadcast.GameTopic(sess.ID), broadcast.PlayerJoined{Player: m, MemberCount: len(sess.Members)})
	s.publishLobby(ctx, sess, false)
	return sess, nil
}

// LeaveGame removes a player. What happens to the session depends on the
// phase and on whether the leaver is the host.
func (s *SessionService) LeaveGame(ctx context.Context, gameID, playerID string) (LeaveOutcome, error) {
	sess, err := s.load(ctx, gameID)
	if err != nil {
		return "", err
	}
	member, ok := sess.Member(playerID)
	if !ok {
		return "", domain.ErrPlayerNotFound
	}
	if member.Departed {
		return LeaveNoop, nil
	}

	switch sess.Phase {
	case domain.PhaseCreated:
		return s.leaveLobby(ctx, sess, member)
	case domain.PhaseLive:
		if member.Role == domain.RoleHost {
			return s.hostAbandon(ctx, sess, member)
		}
		return s.leaveLive(ctx, sess, member)
	default:
		return LeaveNoop, nil
	}
}

func (s *SessionService) leaveLobby(ctx context.Context, sess *domain.GameSession, member domain.Member) (LeaveOutcome, error) {
	log := logger.ForGame(ctx, sess.ID)
	topic := broadcast.GameTopic(sess.ID)

	if len(sess.Members) == 1 {
		if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
			return "", domain.StoreError("delete session", err)
		}
		GamesEnded.WithLabelValues("empty").Inc()
		log.Info("last player left, game deleted", "player", member.PlayerID)
		s.publishLobby(ctx, sess, true)
		return LeaveDeleted, nil
	}

	if member.Role == domain.RoleHost {
		if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
			return "", domain.StoreError("delete session", err)
		}
		GamesEnded.WithLabelValues("canceled").Inc()
		log.Info("host left lobby, game canceled", "host", member.PlayerID, "members", len(sess.Members))
		s.publish(ctx, topic, broadcast.HostLeft{HostID: member.PlayerID})
		s.publish(ctx, topic, broadcast.GameCanceled{Reason: string(domain.EndHostLeft)})
		s.publishLobby(ctx, sess, true)
		return LeaveCanceled, nil
	}

	sess.RemoveMember(member.PlayerID)
	if err := s.save(ctx, sess); err != nil {
		return "", err
	}
	log.Info("player left lobby", "player", member.PlayerID, "members", len(sess.Members))
	s.publish(ctx, topic, broadcast.PlayerLeft{PlayerID: member.PlayerID, MemberCount: len(sess.Members)})
	s.publishLobby(ctx, sess, false)
	return LeaveRemoved, nil
}

// hostAbandon ends a LIVE session for everyone. Players who already
// finished keep their placement; nobody else is ranked.
func (s *SessionService) hostAbandon(ctx context.Context, sess *domain.GameSession, host domain.Member) (LeaveOutcome, error) {
	sess.MarkDeparted(host.PlayerID)
	if err := s.finish(ctx, sess, domain.EndHostLeft); err != nil {
		return "", err
	}
	logger.ForGame(ctx, sess.ID).Info("host left live game", "host", host.PlayerID)
	s.publish(ctx, broadcast.GameTopic(sess.ID), broadcast.HostLeft{HostID: host.PlayerID})
	return LeaveEnded, nil
}

// leaveLive handles a non-host leaving during play. An unfinished player's
// record is dropped; a finisher's record and placement are kept. The
// effective placement count shrinks to what the remaining field can still
// fill, which may complete the session on the spot.
func (s *SessionService) leaveLive(ctx context.Context, sess *domain.GameSession, member domain.Member) (LeaveOutcome, error) {
	log := logger.ForGame(ctx, sess.ID)

	// a concurrent finalization wins; nothing below may run against an OVER
	// session
	if cur, err := s.store.GetSession(ctx, sess.ID); err == nil && cur.Phase != domain.PhaseLive {
		return LeaveNoop, nil
	}

	st, err := s.store.GetMember(ctx, sess.ID, member.PlayerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", domain.StoreError("read player state", err)
	}

	if st != nil && st.Finished {
		sess.MarkDeparted(member.PlayerID)
	} else {
		sess.RemoveMember(member.PlayerID)
		if err := s.store.DeleteMember(ctx, sess.ID, member.PlayerID); err != nil {
			return "", domain.StoreError("delete player state", err)
		}
	}

	states, err := s.store.ListMembers(ctx, sess.ID)
	if err != nil {
		return "", domain.StoreError("read player states", err)
	}
	finished := len(domain.Finishers(sess.RosterStates(states)))
	unfinished := 0
	for _, m := range sess.ActiveMembers() {
		if !isFinished(states, m.PlayerID) {
			unfinished++
		}
	}
	sess.EffectivePlacementCount = min(sess.Options.PlacementCount, unfinished+finished)

	if err := s.save(ctx, sess); err != nil {
		return "", err
	}

	log.Info("player left live game", "player", member.PlayerID, "finished", finished, "unfinished", unfinished, "placements", sess.EffectivePlacementCount)
	s.publish(ctx, broadcast.GameTopic(sess.ID), broadcast.PlayerLeft{
		PlayerID:       member.PlayerID,
		MemberCount:    len(sess.ActiveMembers()),
		PlacementCount: sess.EffectivePlacementCount,
	})

	if finished >= sess.EffectivePlacementCount {
		if err := s.finish(ctx, sess, domain.EndPlayersLeft); err != nil {
			return "", err
		}
		return LeaveEnded, nil
	}
	return LeaveRemoved, nil
}

func isFinished(states []domain.PlayerRoundState, playerID string) bool {
	for _, st := range states {
		if st.PlayerID == playerID {
			return st.Finished
		}
	}
	return false
}
