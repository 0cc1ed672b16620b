// backend/internal/score/grade.go
package score

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

var gradeCutoffs = []struct {
	min   int
	grade string
}{
	{95, "A"},
	{90, "A-"},
	{85, "B+"},
	{80, "B"},
	{75, "B-"},
	{70, "C+"},
	{65, "C"},
	{60, "C-"},
	{55, "D+"},
	{50, "D"},
}

// LetterGrade converts a percentage to a letter grade. Only a perfect score
// earns an A+.
func LetterGrade(pct int) string {
	if pct > 99 {
		return "A+"
	}
	for _, c := range gradeCutoffs {
		if pct >= c.min {
			return c.grade
		}
	}
	return "F"
}

func ScoreMessage(pct int) string {
	grade := LetterGrade(pct)
	article := "a"
	if strings.HasPrefix(grade, "A") || strings.HasPrefix(grade, "F") {
		article = "an"
	}
	return fmt.Sprintf("You scored %d%%, that's %s %s", pct, article, grade)
}

var phrases = map[int][]string{
	100: {"Wow! Here's the keys to the website!", "Ring ring, MENSA is on the line!"},
	90:  {"Nice work! Can I cheat off you?", "Where did those last few points go?"},
	80:  {"B is for Badass!", "Almost genius, but you'll have to settle for “smart.”"},
	70:  {"Not bad, but I think you can do better!", "Impressive(to those that are easily impressed)"},
	60:  {"By most standards at least you didn't fail.", "You have approximate knowledge of some things."},
	50:  {"I bet you like half and half in your coffee.", "Which half of your brain did you use for this one?"},
	40:  {"Sometimes quizzes are like ice cream: the answers come in sprinkles.", "At least you tried!"},
	30:  {"If you squint, this ain't so bad!", "A third is a third is a third."},
	20:  {"I don't care that you're old, this will require a parent's signature.", "Mama let's research."},
	10:  {"We don't need no education!", "Consider cracking open Quizzems for Dummies."},
	0:   {"Go ahead give us nothing.", "I think you forgot how to type!"},
}

// Phrase picks a quip from the highest decile at or below pct. A nil rnd uses
// the global source.
func Phrase(pct int, rnd *rand.Rand) string {
	bucket := pct / 10 * 10
	if bucket > 100 {
		bucket = 100
	}
	if bucket < 0 {
		bucket = 0
	}
	options := phrases[bucket]
	if len(options) == 0 {
		return "Great job!"
	}
	if rnd == nil {
		return options[rand.IntN(len(options))]
	}
	return options[rnd.IntN(len(options))]
}
