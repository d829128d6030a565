package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticsStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize prepares a name for comparison: lower case, diacritics
// stripped, whitespace collapsed. "Šimić  ANA" and "simic ana" normalize
// to the same string.
func Normalize(name string) string {
	lowered := strings.ToLower(name)
	stripped, _, err := transform.String(diacriticsStripper, lowered)
	if err != nil {
		stripped = lowered
	}
	return strings.Join(strings.Fields(stripped), " ")
}

// Similarity scores two names in [0,1], insensitive to token order:
// tokens of the shorter name are greedily aligned to their best-scoring
// counterparts, and tokens left without a partner count as zero. Inputs
// are normalized first.
func Similarity(a, b string) float64 {
	tokensA := strings.Fields(Normalize(a))
	tokensB := strings.Fields(Normalize(b))

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	if len(tokensA) > len(tokensB) {
		tokensA, tokensB = tokensB, tokensA
	}

	used := make([]bool, len(tokensB))
	total := 0.0
	for _, ta := range tokensA {
		best, bestIdx := 0.0, -1
		for i, tb := range tokensB {
			if used[i] {
				continue
			}
			if r := ratio(ta, tb); r > best {
				best, bestIdx = r, i
			}
		}
		if bestIdx >= 0 {
			used[bestIdx] = true
		}
		total += best
	}

	// Unaligned extra tokens of the longer name dilute the score
	return total / float64(len(tokensB))
}

// ratio is the normalized Levenshtein similarity of two tokens
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with a single-row DP table
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur := row[j]
			row[j] = min3(row[j]+1, row[j-1]+1, prev+cost)
			prev = cur
		}
	}

	return row[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
