// backend/internal/quiz/stats.go
package quiz

import (
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"quizzems/internal/matcher"
)

type Stats struct {
	Total          int  `json:"total"`
	Answered       int  `json:"answered"`
	Correct        int  `json:"correct"`
	Percentage     int  `json:"percentage"`
	AreAnyRevealed bool `json:"areAnyRevealed"`
	CanReset       bool `json:"canReset"`
	IsComplete     bool `json:"isComplete"`
}

// ComputeStats derives the aggregate numbers from the cards alone.
func ComputeStats(cards []Card, threshold float64) Stats {
	st := Stats{Total: len(cards)}
	for _, c := range cards {
		if c.Revealed {
			st.Answered++
			if isCorrect(c, threshold) {
				st.Correct++
			}
		}
		if c.Scale != 1 || c.Hidden {
			st.CanReset = true
		}
	}
	st.AreAnyRevealed = st.Answered > 0
	st.IsComplete = st.Total > 0 && st.Answered == st.Total
	if st.Total > 0 {
		st.Percentage = int(math.Round(100 * float64(st.Correct) / float64(st.Total)))
	}
	return st
}

// isCorrect prefers an explicit grade and falls back to matching the user's
// answer against any acceptable answer.
func isCorrect(c Card, threshold float64) bool {
	if c.IsCorrect != nil {
		return *c.IsCorrect
	}
	return grade(c, threshold)
}

func grade(c Card, threshold float64) bool {
	if strings.TrimSpace(c.UserAnswer) == "" {
		return false
	}
	for _, answer := range c.Answers {
		if matcher.IsCloseMatch(c.UserAnswer, answer, threshold) {
			return true
		}
	}
	return false
}

// statsMemo caches the last computed Stats keyed by a fingerprint of every
// card field that feeds into them.
type statsMemo struct {
	valid       bool
	fingerprint uint64
	stats       Stats
}

func (m *statsMemo) get(cards []Card, threshold float64) Stats {
	fp := fingerprint(cards, threshold)
	if m.valid && m.fingerprint == fp {
		return m.stats
	}
	m.stats = ComputeStats(cards, threshold)
	m.fingerprint = fp
	m.valid = true
	return m.stats
}

func fingerprint(cards []Card, threshold float64) uint64 {
	d := xxhash.New()
	d.WriteString(strconv.FormatFloat(threshold, 'g', -1, 64))
	for _, c := range cards {
		flags := []byte{0, 0, 0}
		if c.Revealed {
			flags[0] = 1
		}
		if c.Hidden {
			flags[1] = 1
		}
		if c.IsCorrect != nil {
			flags[2] = 1
			if *c.IsCorrect {
				flags[2] = 2
			}
		}
		d.Write(flags)
		d.WriteString(strconv.FormatFloat(c.Scale, 'g', -1, 64))
		d.WriteString("\x00")
		d.WriteString(c.UserAnswer)
		d.WriteString("\x00")
		for _, a := range c.Answers {
			d.WriteString(a)
			d.WriteString("\x01")
		}
	}
	return d.Sum64()
}
