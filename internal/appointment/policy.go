package appointment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hackgods/campus-clinic-scheduling/internal/directory"
)

const (
	PolicyLeastLoaded = "least-loaded"
	PolicyRoundRobin  = "round-robin"
	PolicyRandom      = "random"
)

// Selector picks one nurse out of the free candidates for a slot.
// candidates is never empty.
type Selector interface {
	Pick(ctx context.Context, slot Slot, candidates []directory.Nurse) (directory.Nurse, error)
}

// LoadCounter reports how many live bookings each nurse has on a date.
type LoadCounter interface {
	CountBookingsByNurse(ctx context.Context, date string) (map[uuid.UUID]int, error)
}

func NewSelector(policy string, loads LoadCounter) (Selector, error) {
	switch policy {
	case PolicyLeastLoaded, "":
		return &LeastLoadedSelector{loads: loads}, nil
	case PolicyRoundRobin:
		return &RoundRobinSelector{}, nil
	case PolicyRandom:
		return NewRandomSelector(rand.Uint64()), nil
	default:
		return nil, fmt.Errorf("unknown assignment policy %q", policy)
	}
}

func sortedByID(nurses []directory.Nurse) []directory.Nurse {
	out := make([]directory.Nurse, len(nurses))
	copy(out, nurses)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// LeastLoadedSelector picks the nurse with the fewest bookings that day.
// Ties go to the lowest nurse id.
type LeastLoadedSelector struct {
	loads LoadCounter
}

func (s *LeastLoadedSelector) Pick(ctx context.Context, slot Slot, candidates []directory.Nurse) (directory.Nurse, error) {
	counts, err := s.loads.CountBookingsByNurse(ctx, slot.Date)
	if err != nil {
		return directory.Nurse{}, fmt.Errorf("count bookings: %w", err)
	}

	ordered := sortedByID(candidates)
	best := ordered[0]
	for _, n := range ordered[1:] {
		if counts[n.ID] < counts[best.ID] {
			best = n
		}
	}
	return best, nil
}

// RoundRobinSelector rotates through candidates ordered by nurse id.
type RoundRobinSelector struct {
	next atomic.Uint64
}

func (s *RoundRobinSelector) Pick(_ context.Context, _ Slot, candidates []directory.Nurse) (directory.Nurse, error) {
	ordered := sortedByID(candidates)
	i := s.next.Add(1) - 1
	return ordered[i%uint64(len(ordered))], nil
}

// RandomSelector picks uniformly among candidates.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSelector(seed uint64) *RandomSelector {
	return &RandomSelector{rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (s *RandomSelector) Pick(_ context.Context, _ Slot, candidates []directory.Nurse) (directory.Nurse, error) {
	s.mu.Lock()
	i := s.rng.IntN(len(candidates))
	s.mu.Unlock()
	return candidates[i], nil
}
