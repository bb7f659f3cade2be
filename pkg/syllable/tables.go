package syllable

// Character classes. Anything that is not a vowel is consumed by the
// consonant branch, including digits and punctuation.
var (
	vowels     = runeSet("aeiouy")
	consonants = runeSet("bcdfghjklmnpqrstvwxz")
)

// Suffix buckets for the first-pass cascade, keyed by length.
var (
	ignoredSuffixes2 = []string{"es"}
	oneSyllable2     = []string{"éd"}
	oneSyllable3     = []string{"ion", "ely", "ful", "ead"}
	twoSyllable3     = []string{"ier", "ial", "ium", "ism"}
	oneSyllable4     = []string{"less", "ious", "aire", "ions", "eace"}
	twoSyllable4     = []string{"able", "ally", "eace", "eful", "iful", "iums"}
	oneSyllable5     = []string{"reign", "esque", "neath"}
	twoSyllable5     = []string{"ion’s"}
	twoSyllable6     = []string{"liness"}
)

// Four-letter "-es" endings.
var (
	esIgnored4     = []string{"thes"}
	esOneSyllable4 = []string{"ines", "ates", "oves", "ides", "opes", "ones", "ties", "ches"}
)

// edOneSyllable3 are "-ed" endings that always add a syllable.
var edOneSyllable3 = []string{"eed", "ied"}

// disyllabicPairs are vowel digraphs counted as two syllables.
var disyllabicPairs = stringSet("ea", "ii", "io", "ua", "uo")

// Leading letter groups checked during the vowel/consonant reduction.
var (
	// singleSyllableGroups is probed with both a 4- and a 3-letter prefix.
	singleSyllableGroups = stringSet("ere", "lea", "ear", "qua", "qui", "ease", "hea", "rea")
	twoSyllablePrefixes  = stringSet("semi", "homo")
)

func runeSet(s string) map[rune]bool {
	m := make(map[rune]bool, len(s))
	for _, r := range s {
		m[r] = true
	}
	return m
}

func stringSet(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

func isVowel(r rune) bool     { return vowels[r] }
func isConsonant(r rune) bool { return consonants[r] }
