// Package syllable estimates the number of syllables in English words using
// a deterministic cascade of suffix, prefix and vowel-run rules. Words the
// rules get wrong are carried in an override table consulted first.
package syllable

import (
	"strings"
)

// Overrides maps lower-cased words to a fixed syllable count.
type Overrides interface {
	Lookup(word string) (int, bool)
}

// Step records a single reduction of the remaining word.
type Step struct {
	Rule      string // name of the rule that fired
	Remaining string // word left after the rule
	Count     int    // running count after the rule
}

// Segmenter counts syllables. It holds no mutable state and is safe for
// concurrent use as long as the Overrides implementation is.
type Segmenter struct {
	overrides Overrides
}

// New returns a Segmenter backed by the given override table. A nil table
// disables overrides.
func New(o Overrides) *Segmenter {
	return &Segmenter{overrides: o}
}

// Count returns the syllable count of a single word. Callers are expected
// to strip punctuation first; unknown characters are consumed silently.
func (s *Segmenter) Count(word string) int {
	n, _ := s.run(word, false)
	return n
}

// CountWords sums Count over words.
func (s *Segmenter) CountWords(words []string) int {
	total := 0
	for _, w := range words {
		total += s.Count(w)
	}
	return total
}

// Trace returns the count of word along with every rule applied to reach it.
func (s *Segmenter) Trace(word string) (int, []Step) {
	return s.run(word, true)
}

func (s *Segmenter) run(word string, trace bool) (int, []Step) {
	lower := strings.ToLower(word)
	if s.overrides != nil {
		if n, ok := s.overrides.Lookup(lower); ok {
			if trace {
				return n, []Step{{Rule: "override", Count: n}}
			}
			return n, nil
		}
	}

	var steps []Step
	record := func(rule string, w []rune, count int) {
		if trace {
			steps = append(steps, Step{Rule: rule, Remaining: string(w), Count: count})
		}
	}

	w := []rune(lower)
	count := 0
	for len(w) > 0 {
		if count == 0 {
			if len(w) < 4 {
				count++
				record("short", nil, count)
				break
			}
			if containsRune(w, '\'') && !hasSuffix(w, "'s") {
				// Contraction: compensate once, keep the word as is.
				count--
				record("contraction", w, count)
				continue
			}
			if rule, ok := matchFirstPass(w); ok {
				w, count = rule.apply(w, count)
				record(rule.name, w, count)
				continue
			}
		}

		var (
			rule string
			done bool
		)
		w, count, rule, done = reduce(w, count)
		record(rule, w, count)
		if done {
			break
		}
	}

	if count < 0 {
		count = 0
	}
	return count, steps
}

func matchFirstPass(w []rune) (suffixRule, bool) {
	for _, r := range firstPass {
		if r.match(w) {
			return r, true
		}
	}
	return suffixRule{}, false
}

// reduce applies one step of the vowel/consonant reduction. done reports
// that the count is final.
func reduce(w []rune, count int) (rest []rune, n int, rule string, done bool) {
	if len(w) == 1 && w[0] == 'e' {
		return nil, count, "silent-e", true
	}
	for _, size := range []int{4, 3} {
		if p := head(w, size); singleSyllableGroups[string(p)] {
			return w[len(p):], count + 1, "single-group", false
		}
	}
	if p := head(w, 4); twoSyllablePrefixes[string(p)] {
		return w[len(p):], count + 2, "two-prefix", false
	}

	if !isVowel(w[0]) {
		return w[1:], count, "consonant", false
	}
	if len(w) >= 2 && disyllabicPairs[string(w[:2])] {
		return w[2:], count + 2, "disyllabic", false
	}
	i := 0
	for i < len(w) && isVowel(w[i]) {
		i++
	}
	if i == len(w) {
		return nil, count + 1, "final-vowels", true
	}
	return w[i+1:], count + 1, "vowel-run", false
}

func containsRune(w []rune, r rune) bool {
	for _, c := range w {
		if c == r {
			return true
		}
	}
	return false
}
