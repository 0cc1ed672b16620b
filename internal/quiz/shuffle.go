// backend/internal/quiz/shuffle.go
package quiz

import (
	"math/rand/v2"
	"slices"
)

// lcg is the Numerical Recipes linear congruential generator. Every party
// member seeding it with the same value draws the same sequence.
type lcg struct {
	state uint32
}

func (g *lcg) next() uint32 {
	g.state = g.state*1664525 + 1013904223
	return g.state
}

// intn returns a value in [0, n).
func (g *lcg) intn(n int) int {
	return int(uint64(g.next()) * uint64(n) >> 32)
}

// shuffleCards returns a Fisher-Yates shuffled copy of cards. A nil seed
// uses the runtime's random source.
func shuffleCards(cards []Card, seed *uint32) []Card {
	out := slices.Clone(cards)
	intn := rand.IntN
	if seed != nil {
		g := &lcg{state: *seed}
		intn = g.intn
	}
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
