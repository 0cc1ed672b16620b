package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quizzems/internal/matcher"
)

func revealed(answer, userAnswer string) Card {
	return Card{Answers: []string{answer}, UserAnswer: userAnswer, Revealed: true, Scale: 1}
}

func TestComputeStats(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name  string
		cards []Card
		want  Stats
	}{
		{
			name:  "no cards",
			cards: nil,
			want:  Stats{},
		},
		{
			name: "nothing revealed",
			cards: []Card{
				{Answers: []string{"Paris"}, UserAnswer: "Paris", Scale: 1},
				{Answers: []string{"Rome"}, Scale: 1},
			},
			want: Stats{Total: 2},
		},
		{
			name: "three of four",
			cards: []Card{
				revealed("Paris", "paris"),
				revealed("Rome", "Rome"),
				revealed("Madrid", "madrid"),
				revealed("Tokyo", ""),
			},
			want: Stats{Total: 4, Answered: 4, Correct: 3, Percentage: 75, AreAnyRevealed: true, IsComplete: true},
		},
		{
			name: "explicit grade wins",
			cards: []Card{
				{Answers: []string{"Paris"}, UserAnswer: "Paris", Revealed: true, IsCorrect: &no, Scale: 1},
				{Answers: []string{"Rome"}, UserAnswer: "wrong", Revealed: true, IsCorrect: &yes, Scale: 1},
				{Answers: []string{"Oslo"}, Scale: 1},
			},
			want: Stats{Total: 3, Answered: 2, Correct: 1, Percentage: 33, AreAnyRevealed: true},
		},
		{
			name: "any accepted answer counts",
			cards: []Card{
				{Answers: []string{"red", "blue"}, UserAnswer: "Blue", Revealed: true, Scale: 1},
			},
			want: Stats{Total: 1, Answered: 1, Correct: 1, Percentage: 100, AreAnyRevealed: true, IsComplete: true},
		},
		{
			name: "scaled card can reset",
			cards: []Card{
				{Answers: []string{"a"}, Scale: 1.2},
			},
			want: Stats{Total: 1, CanReset: true},
		},
		{
			name: "two thirds rounds up",
			cards: []Card{
				revealed("one", "one"),
				revealed("two", "two"),
				revealed("three", "four"),
			},
			want: Stats{Total: 3, Answered: 3, Correct: 2, Percentage: 67, AreAnyRevealed: true, IsComplete: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStats(tt.cards, matcher.DefaultThreshold))
		})
	}
}

func TestComputeStatsThreshold(t *testing.T) {
	cards := []Card{revealed("Paris", "Pariss")}
	assert.Equal(t, 0, ComputeStats(cards, matcher.DefaultThreshold).Correct)
	assert.Equal(t, 1, ComputeStats(cards, matcher.FuzzyThreshold).Correct)
}

func TestStatsMemo(t *testing.T) {
	var m statsMemo
	cards := []Card{revealed("Paris", "Paris")}

	first := m.get(cards, 1)
	fp := m.fingerprint
	assert.Equal(t, 1, first.Correct)

	assert.Equal(t, first, m.get(cards, 1))
	assert.Equal(t, fp, m.fingerprint)

	cards = []Card{revealed("Paris", "Rome")}
	assert.Equal(t, 0, m.get(cards, 1).Correct)
	assert.NotEqual(t, fp, m.fingerprint)
}

func TestShuffleCardsDeterministic(t *testing.T) {
	cards := make([]Card, 10)
	for i := range cards {
		cards[i] = Card{ID: string(rune('a' + i))}
	}
	seed := uint32(1234)

	a := shuffleCards(cards, &seed)
	b := shuffleCards(cards, &seed)
	assert.Equal(t, a, b)
	assert.ElementsMatch(t, cards, a)
	assert.Equal(t, "a", cards[0].ID, "input is left untouched")

	other := uint32(99)
	assert.NotEqual(t, cardIDs(a), cardIDs(shuffleCards(cards, &other)))
}

func TestLCGRange(t *testing.T) {
	g := &lcg{state: 0}
	assert.Equal(t, uint32(1013904223), g.next())
	for i := 0; i < 1000; i++ {
		v := g.intn(7)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 7)
	}
}
