package service

import (
	"context"
	"slices"
	"time"

	"swapit/internal/broadcast"
	"swapit/internal/domain"
	"swapit/internal/logger"
)

// standings ranks finishers by finish time. Stored ranks are never used.
// Once a session is OVER only finishes at or before EndedAt count, and the
// board is capped at the effective placement count.
func standings(sess *domain.GameSession, states []domain.PlayerRoundState) []domain.Placement {
	if sess.Phase != domain.PhaseOver {
		return domain.Leaderboard(sess, states, 0)
	}
	eligible := states
	if sess.EndedAt != nil {
		cutoff := sess.EndedAt.UnixMilli()
		eligible = make([]domain.PlayerRoundState, 0, len(states))
		for _, st := range states {
			if st.FinishedAt != nil && *st.FinishedAt > cutoff {
				continue
			}
			eligible = append(eligible, st)
		}
	}
	return domain.Leaderboard(sess, eligible, sess.EffectivePlacementCount)
}

// nonFinishers lists roster members without a placement, in roster order.
func nonFinishers(sess *domain.GameSession, board []domain.Placement) []string {
	ranked := make(map[string]bool, len(board))
	for _, p := range board {
		ranked[p.PlayerID] = true
	}
	out := []string{}
	for _, m := range sess.Members {
		if !ranked[m.PlayerID] {
			out = append(out, m.PlayerID)
		}
	}
	return out
}

// allocate runs after st (already marked finished) has been written to the
// player's own record. It re-reads every player record; the finisher set it
// sees is only a signal. If enough players have finished the session is
// finalized, otherwise the player gets a provisional placement.
func (s *SessionService) allocate(ctx context.Context, sess *domain.GameSession, st *domain.PlayerRoundState) {
	log := logger.ForGame(ctx, sess.ID)

	states, err := s.store.ListMembers(ctx, sess.ID)
	if err != nil {
		// the finish is durable; a resubmitted move re-runs this readback
		log.Warn("finisher readback failed", "player", st.PlayerID, "error", err)
		return
	}

	// effective count and roster may have changed since the move started
	fresh, err := s.store.GetSession(ctx, sess.ID)
	if err != nil {
		log.Warn("session readback failed", "player", st.PlayerID, "error", err)
		return
	}
	if fresh.Phase != domain.PhaseLive {
		return
	}
	if _, ok := fresh.Member(st.PlayerID); !ok {
		// left while this move was in flight; the record it wrote back is stale
		log.Info("finish from departed player ignored", "player", st.PlayerID)
		if err := s.store.DeleteMember(ctx, sess.ID, st.PlayerID); err != nil {
			log.Warn("stale player state delete failed", "player", st.PlayerID, "error", err)
		}
		return
	}
	finishers := domain.Finishers(fresh.RosterStates(states))

	if len(finishers) >= fresh.EffectivePlacementCount {
		// errors are logged inside; a later finisher or resubmission retries
		_ = s.finish(ctx, fresh, domain.EndCompleted)
		return
	}

	rank := len(finishers)
	for i, f := range finishers {
		if f.PlayerID == st.PlayerID {
			rank = i + 1
			break
		}
	}
	st.FinishRank = &rank
	if err := s.store.PutMember(ctx, sess.ID, st); err != nil {
		log.Warn("provisional rank write failed", "player", st.PlayerID, "error", err)
	}

	log.Info("player finished", "player", st.PlayerID, "provisional_rank", rank, "finishers", len(finishers), "needed", fresh.EffectivePlacementCount)
	s.publish(ctx, broadcast.GameTopic(sess.ID), broadcast.PlayerFinished{
		PlayerID:   st.PlayerID,
		Placement:  rank,
		FinishedAt: *st.FinishedAt,
		MoveCount:  st.MoveCount,
	})
}

// finish writes the OVER record for sess and announces the leaderboard.
// The caller has checked sess is not already OVER. The record is derived
// from a fresh read of the player records, so two racing finalizers write
// the same thing: for a completed session EndedAt is the finish time of the
// last ranked player rather than the local clock.
func (s *SessionService) finish(ctx context.Context, sess *domain.GameSession, reason domain.EndReason) error {
	log := logger.ForGame(ctx, sess.ID)

	states, err := s.store.ListMembers(ctx, sess.ID)
	if err != nil {
		log.Warn("finalize readback failed", "reason", reason, "error", err)
		return domain.StoreError("read player states", err)
	}

	var endedAt time.Time
	board := domain.Leaderboard(sess, states, sess.EffectivePlacementCount)
	if reason == domain.EndCompleted && len(board) > 0 {
		endedAt = time.UnixMilli(board[len(board)-1].FinishedAt).UTC()
	} else {
		endedAt = s.now().UTC()
		// finishes stamped after this instant do not count
		board = slices.DeleteFunc(board, func(p domain.Placement) bool {
			return p.FinishedAt > endedAt.UnixMilli()
		})
	}

	prev := *sess
	sess.Phase = domain.PhaseOver
	sess.EndReason = reason
	sess.EndedAt = &endedAt
	if err := s.store.PutSession(ctx, sess); err != nil {
		*sess = prev
		log.Error("finalize write failed", "reason", reason, "error", err)
		return domain.StoreError("write session", err)
	}

	Finalizations.Inc()
	GamesEnded.WithLabelValues(string(reason)).Inc()

	nf := nonFinishers(sess, board)
	log.Info("game over", "reason", reason, "placements", len(board), "non_finishers", len(nf))

	s.publish(ctx, broadcast.GameTopic(sess.ID), broadcast.GameOver{
		Placements:   board,
		GoalOrder:    sess.GoalOrder,
		Reason:       reason,
		NonFinishers: nf,
	})
	s.publishLobby(ctx, sess, false)

	if s.archive != nil {
		results := domain.BuildResults(sess, sess.RosterStates(states), board)
		if err := s.archive.SaveResults(ctx, results); err != nil {
			log.Warn("archiving results failed", "error", err)
		}
	}
	return nil
}
