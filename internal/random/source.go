// Package random provides the injectable randomness used by the game engine.
// Production code seeds from crypto/rand; tests supply fixed seeds or scripted
// sequences so every draw is reproducible.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Source yields uniform integers in [0, n). n must be > 0.
type Source interface {
	IntN(n int) int
}

// Rand is a goroutine-safe PCG-backed Source.
type Rand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Rand seeded deterministically from seed.
func New(seed uint64) *Rand {
	return &Rand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewSeeded returns a Rand seeded from crypto/rand.
func NewSeeded() (*Rand, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return New(seed), nil
}

// IntN implements Source.
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("random: read seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Sequence replays a fixed list of values, each reduced modulo n. When the
// list is exhausted it starts over. An empty Sequence always returns 0.
type Sequence struct {
	mu     sync.Mutex
	values []int
	pos    int
}

// NewSequence returns a Sequence over values.
func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

// IntN implements Source.
func (s *Sequence) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.pos%len(s.values)]
	s.pos++
	if v < 0 {
		v = -v
	}
	return v % n
}

// Shuffle permutes the first n indices in place via swap using a
// Fisher-Yates pass driven by src.
func Shuffle(src Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		swap(i, j)
	}
}
