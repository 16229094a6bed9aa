package client

import (
	"context"
	"errors"

	"swapit/internal/domain"
	"swapit/internal/service"
)

// Mover submits one full order and returns its ack. *Conn satisfies it.
type Mover interface {
	Move(ctx context.Context, order domain.Order) (*service.MoveAck, error)
}

var ErrStuck = errors.New("client: no swap improves the order")

// Solve plays from start until the server reports the goal reached, using
// only the positions_correct feedback: it tries single swaps of the best
// order so far and keeps any that scores higher. Some swap always gains at
// least one position while the order is unsolved, so the search ends.
func Solve(ctx context.Context, m Mover, start domain.Order) (*service.MoveAck, error) {
	best := start.Clone()
	ack, err := m.Move(ctx, best)
	if err != nil {
		return nil, err
	}

	for !ack.Finished {
		improved := false
	scan:
		for i := 0; i < len(best); i++ {
			for j := i + 1; j < len(best); j++ {
				cand := best.Clone()
				cand[i], cand[j] = cand[j], cand[i]

				next, err := m.Move(ctx, cand)
				if err != nil {
					return ack, err
				}
				if next.Finished || next.PositionsCorrect > ack.PositionsCorrect {
					best, ack, improved = cand, next, true
					break scan
				}
				// keep the latest counters, the score of best is unchanged
				ack.MoveCount = next.MoveCount
			}
		}
		if !improved {
			return ack, ErrStuck
		}
	}
	return ack, nil
}
