// Package matcher decides whether a free-text answer is close enough to the
// canonical one to count as correct.
package matcher

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultThreshold only accepts answers that are identical once normalized.
	DefaultThreshold = 1.0
	// FuzzyThreshold tolerates roughly one typo in five characters.
	FuzzyThreshold = 0.8
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
	"and": {}, "or": {}, "but": {}, "nor": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "by": {}, "with": {}, "from": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {},
}

// IsCloseMatch reports whether candidate is at least threshold-similar to
// reference. A candidate shorter than the reference never matches.
func IsCloseMatch(candidate, reference string, threshold float64) bool {
	a := Normalize(candidate)
	b := Normalize(reference)
	if a == "" || b == "" {
		return false
	}

	ar, br := []rune(a), []rune(b)
	if len(ar) < len(br) {
		return false
	}

	maxLen := len(ar)
	if len(br) > maxLen {
		maxLen = len(br)
	}
	similarity := 1 - float64(distance(ar, br))/float64(maxLen)
	return similarity >= threshold
}

// Match coerces both sides to strings first. nil on either side never matches.
func Match(candidate, reference interface{}, threshold float64) bool {
	a, ok := coerce(candidate)
	if !ok {
		return false
	}
	b, ok := coerce(reference)
	if !ok {
		return false
	}
	return IsCloseMatch(a, b, threshold)
}

func coerce(v interface{}) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Normalize lowercases s, drops stopwords, punctuation and all whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = dropStopwords(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// dropStopwords removes stopwords that stand as whole words; "the" goes,
// "theory" stays.
func dropStopwords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !isWordRune(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isWordRune(runes[j]) {
			j++
		}
		word := string(runes[i:j])
		if _, stop := stopwords[word]; !stop {
			b.WriteString(word)
		}
		i = j
	}
	return b.String()
}

// Distance is the Levenshtein edit distance between a and b, counted in runes.
func Distance(a, b string) int {
	return distance([]rune(a), []rune(b))
}

func distance(ar, br []rune) int {
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := 0; j <= m; j++ {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}
