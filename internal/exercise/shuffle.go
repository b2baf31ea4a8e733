package exercise

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/tuimul/internal/model"
)

// Shuffler produces randomized exercise orderings.
type Shuffler struct {
	rnd *rand.Rand
}

// NewShuffler returns a Shuffler seeded with the current time.
func NewShuffler() *Shuffler {
	return &Shuffler{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// newShufflerWithSource is used by tests that need a fixed seed.
func newShufflerWithSource(src rand.Source) *Shuffler {
	return &Shuffler{rnd: rand.New(src)}
}

// Shuffle returns a Fisher-Yates permutation of in. The input is not
// mutated, and every call draws an independent permutation.
func (s *Shuffler) Shuffle(in []model.Exercise) []model.Exercise {
	out := make([]model.Exercise, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
