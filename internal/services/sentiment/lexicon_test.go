package sentiment

import (
	"testing"

	"github.com/ternarybob/nuntius/internal/models"
)

func TestLexiconPositiveHeadline(t *testing.T) {
	item := &models.NewsItem{
		Title:   "Acme Wins FDA Approval, Beats Expectations",
		Summary: "The successful trial hit a major milestone.",
	}

	signal := LexiconScore(item)

	if signal.Score <= 0.3 {
		t.Errorf("score = %.3f, expected clearly positive", signal.Score)
	}
	if signal.Confidence != localConfidence {
		t.Errorf("confidence = %v, lexicon confidence is fixed", signal.Confidence)
	}
}

func TestLexiconNegativeHeadline(t *testing.T) {
	item := &models.NewsItem{
		Title: "Acme Receives Delisting Warning After Failed Trial, Announces Dilutive Offering",
	}

	signal := LexiconScore(item)

	if signal.Score >= -0.3 {
		t.Errorf("score = %.3f, expected clearly negative", signal.Score)
	}
}

func TestLexiconNegationFlips(t *testing.T) {
	plain := LexiconScore(&models.NewsItem{Title: "Trial approved by regulators"})
	negated := LexiconScore(&models.NewsItem{Title: "Trial not approved by regulators"})

	if plain.Score <= 0 {
		t.Fatalf("plain score = %.3f, expected positive", plain.Score)
	}
	if negated.Score >= 0 {
		t.Errorf("negated score = %.3f, negation must flip the valence", negated.Score)
	}
}

func TestLexiconNeutralText(t *testing.T) {
	item := &models.NewsItem{
		Title: "Company Schedules Conference Call for Thursday",
	}

	signal := LexiconScore(item)

	if signal.Score != 0 {
		t.Errorf("score = %.3f, expected zero for neutral text", signal.Score)
	}
}

func TestLexiconBounds(t *testing.T) {
	item := &models.NewsItem{
		Title:   "Bankruptcy fraud delisting crashes plunges lawsuit investigation default",
		Summary: "failed failed failed rejected terminated halted recall losses",
	}

	signal := LexiconScore(item)

	if signal.Score < -1 || signal.Score > 1 {
		t.Errorf("score = %.3f, must stay within [-1, 1]", signal.Score)
	}
	if signal.Score > -0.9 {
		t.Errorf("score = %.3f, a pile-up this bad should saturate", signal.Score)
	}
}

func TestLexiconBoosterScales(t *testing.T) {
	plain := LexiconScore(&models.NewsItem{Title: "Strong revenue growth reported"})
	boosted := LexiconScore(&models.NewsItem{Title: "Significantly strong revenue growth reported"})

	if boosted.Score <= plain.Score {
		t.Errorf("boosted %.3f <= plain %.3f, booster words must amplify", boosted.Score, plain.Score)
	}
}
