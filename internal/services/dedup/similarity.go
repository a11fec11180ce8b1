package dedup

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

var digitRun = regexp.MustCompile(`\d+`)

// TitleSimilarity scores two normalized titles in [0, 1]. Word order is
// neutralized by token sorting before the JaroWinkler pass; raw-string
// JaroWinkler, normalized Levenshtein and bigram Jaccard cover genuinely
// re-worded copies.
//
// Titles that differ only in their numbers score zero. "Doses 12 patients"
// and "doses 20 patients" report different facts, not the same story.
func TitleSimilarity(a, b string) float32 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if differentNumbers(a, b) {
		return 0
	}

	sortedA := sortedTokens(a)
	sortedB := sortedTokens(b)
	if sortedA == sortedB {
		return 1
	}

	best, _ := edlib.StringsSimilarity(sortedA, sortedB, edlib.JaroWinkler)

	if raw, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler); err == nil && raw > best {
		best = raw
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if lev := 1 - float32(edlib.LevenshteinDistance(a, b))/float32(longest); lev > best {
		best = lev
	}
	if jaccard := edlib.JaccardSimilarity(a, b, 2); jaccard > best {
		best = jaccard
	}
	return best
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// differentNumbers reports whether the two titles carry numeric sequences
// that disagree. Runs before any fuzzy scoring.
func differentNumbers(a, b string) bool {
	numsA := digitRun.FindAllString(a, -1)
	numsB := digitRun.FindAllString(b, -1)
	if len(numsA) != len(numsB) {
		return true
	}
	for i := range numsA {
		if strings.TrimLeft(numsA[i], "0") != strings.TrimLeft(numsB[i], "0") {
			return true
		}
	}
	return false
}
