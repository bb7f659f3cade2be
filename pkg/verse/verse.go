// Package verse turns raw text into scored lines by normalizing each line
// into words and folding a syllable.Segmenter over them.
package verse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/japaniel/syllabler/pkg/syllable"
	"golang.org/x/text/unicode/norm"
)

// Haiku is the 5-7-5 line pattern.
var Haiku = []int{5, 7, 5}

// Word is a normalized token with its syllable count.
type Word struct {
	Surface   string
	Syllables int
}

// Line is a line of text broken into words.
type Line struct {
	Text      string
	Words     []Word
	Syllables int
}

// Analyzer scores text with a Segmenter.
type Analyzer struct {
	seg *syllable.Segmenter
}

// NewAnalyzer creates an analyzer around seg.
func NewAnalyzer(seg *syllable.Segmenter) *Analyzer {
	return &Analyzer{seg: seg}
}

// AnalyzeLine normalizes a line and counts each of its words.
func (a *Analyzer) AnalyzeLine(text string) Line {
	line := Line{Text: text}
	for _, tok := range Normalize(text) {
		n := a.seg.Count(tok)
		line.Words = append(line.Words, Word{Surface: tok, Syllables: n})
		line.Syllables += n
	}
	return line
}

// AnalyzeDocument splits text into lines and analyzes each one. Lines without
// any words are dropped.
func (a *Analyzer) AnalyzeDocument(text string) []Line {
	var result []Line
	for _, raw := range SplitLines(text) {
		line := a.AnalyzeLine(raw)
		if len(line.Words) == 0 {
			continue
		}
		result = append(result, line)
	}
	return result
}

// SplitLines splits on any newline convention and trims surrounding space.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

var dashReplacer = strings.NewReplacer("-", " ", "–", " ", "—", " ")

// asciiPunct matches the printable ASCII punctuation characters.
const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Normalize prepares free text for counting: dashes become spaces, ASCII
// punctuation is removed and the result is split on whitespace. Typographic
// apostrophes are kept because some suffix rules depend on them.
func Normalize(text string) []string {
	text = norm.NFC.String(text)
	text = dashReplacer.Replace(text)
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(asciiPunct, r) {
			return -1
		}
		return r
	}, text)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Syllables returns the per-line syllable counts.
func Syllables(lines []Line) []int {
	out := make([]int, len(lines))
	for i, l := range lines {
		out[i] = l.Syllables
	}
	return out
}

// MatchForm reports whether lines follow pattern exactly, one count per line.
func MatchForm(lines []Line, pattern []int) bool {
	if len(lines) != len(pattern) {
		return false
	}
	for i, l := range lines {
		if l.Syllables != pattern[i] {
			return false
		}
	}
	return true
}

// FindForm returns the index of every run of consecutive lines that
// matches pattern.
func FindForm(lines []Line, pattern []int) []int {
	var starts []int
	for i := 0; i+len(pattern) <= len(lines); i++ {
		if MatchForm(lines[i:i+len(pattern)], pattern) {
			starts = append(starts, i)
		}
	}
	return starts
}

// ParseForm parses a comma separated syllable pattern such as "5,7,5".
func ParseForm(s string) ([]int, error) {
	var pattern []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid syllable count %q in form %q", part, s)
		}
		pattern = append(pattern, n)
	}
	if len(pattern) == 0 {
		return nil, fmt.Errorf("empty form %q", s)
	}
	return pattern, nil
}

var reBreak = regexp.MustCompile(`(?i)<br\s*/?>`)

// PreserveLineBreaks prefixes every <br> tag with a newline so that
// readability text extraction keeps verse line structure.
func PreserveLineBreaks(content []byte) []byte {
	return reBreak.ReplaceAll(content, []byte("\n<br>"))
}
