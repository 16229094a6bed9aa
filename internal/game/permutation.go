package game

import (
	"math/rand/v2"

	"swapit/internal/domain"
)

// maxDerangementAttempts bounds resampling before the deterministic fallback.
const maxDerangementAttempts = 100

// Validate reports whether order is a permutation of 0..tileCount-1.
func Validate(order domain.Order, tileCount int) bool {
	if tileCount <= 0 || len(order) != tileCount {
		return false
	}
	seen := make([]bool, tileCount)
	for _, v := range order {
		if v < 0 || v >= tileCount || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// Score counts the positions where order matches goal.
func Score(order, goal domain.Order) int {
	n := min(len(order), len(goal))
	correct := 0
	for p := 0; p < n; p++ {
		if order[p] == goal[p] {
			correct++
		}
	}
	return correct
}

// Shuffler produces random permutations. A nil rng uses the global source.
type Shuffler struct {
	rng *rand.Rand
}

func NewShuffler(rng *rand.Rand) *Shuffler {
	return &Shuffler{rng: rng}
}

func (s *Shuffler) perm(n int) []int {
	if s == nil || s.rng == nil {
		return rand.Perm(n)
	}
	return s.rng.Perm(n)
}

// Goal returns a random permutation of 0..n-1.
func (s *Shuffler) Goal(n int) domain.Order {
	return domain.Order(s.perm(n))
}

// Initial returns an order with no position matching goal. It resamples a
// bounded number of times, then falls back to PairSwap.
func (s *Shuffler) Initial(goal domain.Order) domain.Order {
	n := len(goal)
	if n < 2 {
		return goal.Clone()
	}
	for i := 0; i < maxDerangementAttempts; i++ {
		idx := s.perm(n)
		cand := make(domain.Order, n)
		for p, j := range idx {
			cand[p] = goal[j]
		}
		if Score(cand, goal) == 0 {
			return cand
		}
	}
	return PairSwap(goal)
}

// PairSwap swaps positions (0,1), (2,3), ... of goal. For odd lengths the
// last tile is swapped with its neighbour as well, closing a 3-cycle, so no
// tile stays in place.
func PairSwap(goal domain.Order) domain.Order {
	out := goal.Clone()
	n := len(out)
	for i := 0; i+1 < n; i += 2 {
		out[i], out[i+1] = out[i+1], out[i]
	}
	if n%2 == 1 && n >= 3 {
		out[n-1], out[n-2] = out[n-2], out[n-1]
	}
	return out
}
