// Package match decides which recognized candidate text names the object
// the user asked for.
package match

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum similarity accepted as a match.
const DefaultThreshold = 0.75

// NoMatch is returned by Match when no candidate clears the threshold.
const NoMatch = -1

// Matcher fuzzy-matches recognized text against a query. It holds no state
// between calls.
type Matcher struct {
	// Threshold is the minimum similarity in (0,1]. Containment always
	// matches.
	Threshold float64
}

// New returns a Matcher with the given threshold; non-positive values use
// DefaultThreshold.
func New(threshold float64) Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Match returns the index of the first text, in the order given, that
// matches query, or NoMatch. Callers pass texts in descending detection
// confidence; match quality is never compared across candidates.
func (m Matcher) Match(texts []string, query string) int {
	q := normalize(query)
	if q == "" {
		return NoMatch
	}
	for i, text := range texts {
		if m.matches(normalize(text), q) {
			return i
		}
	}
	return NoMatch
}

func (m Matcher) matches(text, query string) bool {
	if text == "" {
		return false
	}
	if strings.Contains(text, query) {
		return true
	}
	return similarity(text, query) >= m.threshold()
}

func (m Matcher) threshold() float64 {
	if m.Threshold <= 0 {
		return DefaultThreshold
	}
	return m.Threshold
}

// similarity returns the best similarity in [0,1] between query and any
// run of words in text with the same word count as query. Both inputs
// must already be normalized.
func similarity(text, query string) float64 {
	if text == "" || query == "" {
		return 0
	}
	words := strings.Fields(text)
	n := len(strings.Fields(query))
	if n > len(words) {
		return ratio(text, query)
	}
	best := 0.0
	for i := 0; i+n <= len(words); i++ {
		if r := ratio(strings.Join(words[i:i+n], " "), query); r > best {
			best = r
		}
	}
	return best
}

func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
