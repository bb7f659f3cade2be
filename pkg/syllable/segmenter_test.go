package syllable

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapOverrides map[string]int

func (m mapOverrides) Lookup(word string) (int, bool) {
	n, ok := m[word]
	return n, ok
}

func TestCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{"cat", 1},
		{"the", 1},
		{"a", 1},
		{"walked", 1},
		{"wanted", 2},
		{"happiness", 3},
		{"graciousness", 3},
		{"table", 2},
		{"whole", 1},
		{"horses", 2},
		{"heroes", 2},
		{"holes", 1},
		{"clothes", 1},
		{"nation", 2},
		{"forest", 2},
		{"stared", 1},
		{"starred", 1},
		{"added", 2},
		{"really", 2},
		{"semicolon", 4},
		{"homogenous", 4},
		{"quiet", 2},
		{"radio", 3},
		{"happy", 2},
		{"poem", 1},
		{"nation’s", 3},
		{"it's", 1},
		{"Happiness", 3},
		{"WANTED", 2},
	}

	s := New(nil)
	for _, tt := range tests {
		assert.Equal(t, tt.expected, s.Count(tt.input), tt.input)
	}
}

func TestCountUsesOverrides(t *testing.T) {
	table := mapOverrides{"poem": 2, "fire": 1, "wanted": 7}
	s := New(table)

	for word, n := range table {
		assert.Equal(t, n, s.Count(word), word)
	}
	assert.Equal(t, 2, s.Count("Poem"), "lookup is case-insensitive")
	assert.Equal(t, 1, s.Count("cat"), "misses fall through to the rules")
}

func TestShortWordsAreOneSyllable(t *testing.T) {
	s := New(nil)
	for _, w := range []string{"a", "be", "cat", "dog", "eye", "xyz", "zzz", "'s"} {
		assert.Equal(t, 1, s.Count(w), w)
	}
}

func TestContractionsNeverGoNegative(t *testing.T) {
	s := New(nil)
	for _, w := range []string{"'tis", "'twas", "b'cd", "o'clock", "a'a'a'a'", "''''"} {
		assert.GreaterOrEqual(t, s.Count(w), 0, w)
	}
	assert.Equal(t, 0, s.Count("'tis"))
	assert.Equal(t, 1, s.Count("o'clock"))
}

func TestCountIsDeterministic(t *testing.T) {
	s := New(mapOverrides{"poem": 2})
	for _, w := range []string{"happiness", "poem", "semicolon", "'twas"} {
		first := s.Count(w)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, s.Count(w), w)
		}
	}
}

func TestTraceTerminates(t *testing.T) {
	words := []string{
		"", "e", "cat", "walked", "wanted", "happiness", "loveliness",
		"graciousness", "'tis", "'twas", "o'clock", "a'a'a'a'", "rhythms",
		"strengths", "queueing", "aeiouy", "semihomo", "éd", "naméd",
		"nation’s", "12345", "!!!!", "bookkeeper", "beautiful",
	}
	s := New(nil)
	for _, w := range words {
		n, steps := s.Trace(w)
		assert.GreaterOrEqual(t, n, 0, w)
		assert.LessOrEqual(t, len(steps), len([]rune(w))+1, w)
		assert.Equal(t, s.Count(w), n, w)
	}
}

func TestLongConsonantRun(t *testing.T) {
	s := New(nil)
	w := strings.Repeat("b", 10000)
	n, steps := s.Trace(w)
	// Consonants are dropped one at a time until three remain, which
	// count as a short word.
	assert.Equal(t, 1, n)
	assert.Len(t, steps, 9998)
}

func TestTraceRecordsRules(t *testing.T) {
	s := New(nil)
	n, steps := s.Trace("wanted")
	require.Equal(t, 2, n)
	require.NotEmpty(t, steps)
	assert.Equal(t, "ed", steps[0].Rule)
	assert.Equal(t, "wan", steps[0].Remaining)
	assert.Equal(t, 1, steps[0].Count)

	s = New(mapOverrides{"wanted": 5})
	n, steps = s.Trace("wanted")
	assert.Equal(t, 5, n)
	require.Len(t, steps, 1)
	assert.Equal(t, "override", steps[0].Rule)
}

func TestCountWords(t *testing.T) {
	s := New(nil)
	assert.Equal(t, 0, s.CountWords(nil))
	assert.Equal(t, 6, s.CountWords([]string{"the", "cat", "wanted", "happy"}))
}
