package service

import (
	"context"

	"swapit/internal/broadcast"
	"swapit/internal/domain"
	"swapit/internal/game"
	"swapit/internal/logger"
)

// MoveRequest is one submitted board. RequestID lets a client resend the
// same move after a lost acknowledgement without it being counted twice.
type MoveRequest struct {
	GameID    string       `json:"game_id"`
	PlayerID  string       `json:"player_id"`
	RequestID string       `json:"request_id"`
	Order     domain.Order `json:"order"`
}

// MoveAck acknowledges an accepted move.
type MoveAck struct {
	RequestID        string `json:"request_id,omitempty"`
	MoveCount        int    `json:"move_count"`
	PositionsCorrect int    `json:"positions_correct"`
	Finished         bool   `json:"finished"`
}

func ackFor(requestID string, st *domain.PlayerRoundState) *MoveAck {
	return &MoveAck{
		RequestID:        requestID,
		MoveCount:        st.MoveCount,
		PositionsCorrect: st.PositionsCorrect,
		Finished:         st.Finished,
	}
}

// SubmitMove applies a move. It never returns an error: stale, malformed or
// unlucky moves are dropped and reported as ok == false, and the client is
// expected to resubmit. Only the submitting player's record is written.
func (s *SessionService) SubmitMove(ctx context.Context, req MoveRequest) (*MoveAck, bool) {
	log := logger.ForGame(ctx, req.GameID).With("player", req.PlayerID)

	sess, err := s.store.GetSession(ctx, req.GameID)
	if err != nil {
		Moves.WithLabelValues("store_error").Inc()
		log.Debug("move dropped: session unavailable", "error", err)
		return nil, false
	}
	if sess.Phase != domain.PhaseLive {
		Moves.WithLabelValues("wrong_phase").Inc()
		return nil, false
	}
	member, ok := sess.Member(req.PlayerID)
	if !ok || member.Departed {
		Moves.WithLabelValues("not_member").Inc()
		return nil, false
	}
	if !game.Validate(req.Order, sess.Options.TileCount) {
		Moves.WithLabelValues("invalid").Inc()
		log.Debug("move dropped: invalid permutation", "order", req.Order)
		return nil, false
	}

	st, err := s.store.GetMember(ctx, sess.ID, req.PlayerID)
	if err != nil {
		Moves.WithLabelValues("store_error").Inc()
		log.Debug("move dropped: player state unavailable", "error", err)
		return nil, false
	}

	if req.RequestID != "" && st.LastRequestID == req.RequestID {
		Moves.WithLabelValues("duplicate").Inc()
		if st.Finished {
			s.allocate(ctx, sess, st)
		}
		return ackFor(req.RequestID, st), true
	}
	if st.Finished {
		// a resubmission from a finisher re-runs the readback in case the
		// first one failed
		Moves.WithLabelValues("already_finished").Inc()
		s.allocate(ctx, sess, st)
		return ackFor(req.RequestID, st), true
	}

	score := game.Score(req.Order, sess.GoalOrder)
	st.CurrentOrder = req.Order.Clone()
	st.MoveCount++
	st.PositionsCorrect = score
	st.CorrectnessHistory = append(st.CorrectnessHistory, score)
	st.LastRequestID = req.RequestID
	if score == sess.Options.TileCount {
		at := s.now().UnixMilli()
		st.Finished = true
		st.FinishedAt = &at
	}

	if err := s.store.PutMember(ctx, sess.ID, st); err != nil {
		Moves.WithLabelValues("store_error").Inc()
		log.Warn("move dropped: player state write failed", "error", err)
		return nil, false
	}

	if st.Finished {
		Moves.WithLabelValues("finished").Inc()
	} else {
		Moves.WithLabelValues("accepted").Inc()
	}

	s.publish(ctx, broadcast.GameTopic(sess.ID), broadcast.ProgressUpdate{
		PlayerID:         st.PlayerID,
		MoveCount:        st.MoveCount,
		PositionsCorrect: st.PositionsCorrect,
	})

	if st.Finished {
		s.allocate(ctx, sess, st)
	}
	return ackFor(req.RequestID, st), true
}
