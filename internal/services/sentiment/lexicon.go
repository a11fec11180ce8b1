package sentiment

import (
	"math"
	"strings"

	"github.com/ternarybob/nuntius/internal/models"
)

// localConfidence is fixed for the lexicon scorer; it never sees context
// beyond single words.
const localConfidence = 0.5

// valences carries the financial word list. Values follow headline usage
// rather than general English: "offering" is dilution, not generosity.
var valences = map[string]float64{
	// positive
	"approval":      2.5,
	"approved":      2.5,
	"approves":      2.5,
	"clearance":     2.2,
	"breakthrough":  2.0,
	"beats":         2.0,
	"beat":          1.5,
	"exceeds":       2.0,
	"exceeded":      1.8,
	"surges":        2.0,
	"surge":         1.8,
	"soars":         2.5,
	"soar":          2.2,
	"rallies":       1.8,
	"record":        1.5,
	"wins":          2.0,
	"won":           1.8,
	"awarded":       1.8,
	"award":         1.5,
	"secures":       1.6,
	"partnership":   1.2,
	"collaboration": 1.2,
	"expansion":     1.2,
	"expands":       1.2,
	"upgraded":      1.8,
	"upgrade":       1.5,
	"bullish":       1.8,
	"positive":      1.2,
	"strong":        1.2,
	"milestone":     1.5,
	"successful":    1.8,
	"successfully":  1.6,
	"uplisting":     1.8,
	"uplist":        1.8,
	"profitable":    1.6,
	"profitability": 1.5,
	"accelerates":   1.2,
	"growth":        1.1,

	// negative
	"misses":        -2.0,
	"missed":        -1.8,
	"miss":          -1.5,
	"declines":      -1.5,
	"decline":       -1.3,
	"downgrade":     -1.8,
	"downgraded":    -2.0,
	"bearish":       -1.8,
	"plunges":       -2.2,
	"plunge":        -2.0,
	"sinks":         -1.8,
	"tumbles":       -1.8,
	"crashes":       -2.5,
	"lawsuit":       -1.8,
	"sued":          -1.8,
	"investigation": -1.8,
	"investigating": -1.6,
	"subpoena":      -2.0,
	"delisting":     -2.2,
	"delisted":      -2.4,
	"deficiency":    -1.8,
	"noncompliance": -1.8,
	"bankruptcy":    -3.0,
	"insolvency":    -2.6,
	"default":       -2.2,
	"dilution":      -1.8,
	"dilutive":      -1.8,
	"offering":      -1.2,
	"warrants":      -0.8,
	"warning":       -1.5,
	"halted":        -2.0,
	"halt":          -1.5,
	"recall":        -2.0,
	"recalls":       -2.0,
	"fraud":         -2.8,
	"layoffs":       -1.8,
	"resigns":       -1.2,
	"resignation":   -1.2,
	"terminated":    -1.8,
	"terminates":    -1.8,
	"failed":        -2.0,
	"fails":         -2.0,
	"failure":       -1.8,
	"rejected":      -2.2,
	"rejects":       -2.0,
	"suspended":     -1.8,
	"weak":          -1.2,
	"loss":          -1.2,
	"losses":        -1.3,
	"negative":      -1.2,
	"discontinued":  -1.8,
	"writedown":     -1.6,
	"impairment":    -1.6,
}

// negators flip the valence of the following few words.
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "without": true,
	"denies": true, "denied": true, "cannot": true,
}

// boosters scale the valence of the following word.
var boosters = map[string]float64{
	"significantly": 1.3,
	"substantially": 1.3,
	"sharply":       1.3,
	"materially":    1.25,
	"slightly":      0.7,
	"somewhat":      0.7,
	"modestly":      0.75,
}

// negationWindow is how many tokens a negator reaches forward.
const negationWindow = 3

// LexiconScore runs the local word-valence pass over the item text. It is
// the one source that is always available.
func LexiconScore(item *models.NewsItem) *models.SentimentSignal {
	text := strings.ToLower(item.Title + " " + item.Summary)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})

	var sum float64
	negateLeft := 0
	boost := 1.0
	for _, token := range tokens {
		if negators[token] {
			negateLeft = negationWindow
			boost = 1.0
			continue
		}
		if factor, ok := boosters[token]; ok {
			boost = factor
			continue
		}

		if valence, ok := valences[token]; ok {
			valence *= boost
			if negateLeft > 0 {
				valence = -valence
			}
			sum += valence
		}
		boost = 1.0
		if negateLeft > 0 {
			negateLeft--
		}
	}

	// VADER-style normalization keeps the score strictly inside (-1, 1)
	// while letting multiple strong words saturate it.
	score := sum / math.Sqrt(sum*sum+15)

	return &models.SentimentSignal{Score: score, Confidence: localConfidence}
}
