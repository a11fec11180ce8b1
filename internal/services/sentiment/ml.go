package sentiment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

// mlRequest is the batch payload for a FinBERT-style scoring server.
type mlRequest struct {
	Texts []string `json:"texts"`
}

type mlResult struct {
	Label  string             `json:"label"`
	Scores map[string]float64 `json:"scores"`
}

type mlResponse struct {
	Results []mlResult `json:"results"`
}

// MLClient calls the optional batch sentiment endpoint. A nil client (no
// endpoint configured) simply contributes nothing to the blend.
type MLClient struct {
	rest      *resty.Client
	endpoint  string
	batchSize int
	logger    arbor.ILogger
}

// NewMLClient returns nil when no endpoint is configured.
func NewMLClient(cfg *common.Config, logger arbor.ILogger) *MLClient {
	if cfg.Sentiment.MLEndpoint == "" {
		return nil
	}
	batchSize := cfg.Sentiment.MLBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	timeout := time.Duration(cfg.Sentiment.SourceTimeoutS * float64(time.Second))

	return &MLClient{
		rest:      resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		endpoint:  cfg.Sentiment.MLEndpoint,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ScoreBatch scores the given texts, chunked to the configured batch
// size. The returned slice is index-aligned with the input; entries are
// nil where the server gave no usable answer.
func (c *MLClient) ScoreBatch(ctx context.Context, texts []string) []*models.SentimentSignal {
	out := make([]*models.SentimentSignal, len(texts))
	if c == nil || len(texts) == 0 {
		return out
	}

	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		results, err := c.score(ctx, texts[start:end])
		if err != nil {
			c.logger.Warn().Err(err).
				Int("batch", end-start).
				Msg("ML sentiment batch failed")
			continue
		}
		for i, result := range results {
			if start+i < len(out) {
				out[start+i] = result
			}
		}
	}
	return out
}

func (c *MLClient) score(ctx context.Context, texts []string) ([]*models.SentimentSignal, error) {
	var parsed mlResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(mlRequest{Texts: texts}).
		SetResult(&parsed).
		Post(c.endpoint)
	if err != nil {
		return nil, &common.TransientNetworkError{Op: "ml_sentiment", Err: err}
	}
	if resp.IsError() {
		return nil, &common.TransientNetworkError{Op: "ml_sentiment", StatusCode: resp.StatusCode()}
	}
	if len(parsed.Results) != len(texts) {
		return nil, &common.ParseError{
			Source: "ml_sentiment",
			Err:    fmt.Errorf("got %d results for %d texts", len(parsed.Results), len(texts)),
		}
	}

	signals := make([]*models.SentimentSignal, len(parsed.Results))
	for i, result := range parsed.Results {
		signals[i] = signalFromScores(result.Scores)
	}
	return signals, nil
}

// signalFromScores maps class probabilities onto a signed score with the
// softmax margin as confidence.
func signalFromScores(scores map[string]float64) *models.SentimentSignal {
	if len(scores) == 0 {
		return nil
	}

	probs := make([]float64, 0, len(scores))
	for _, p := range scores {
		probs = append(probs, p)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(probs)))

	margin := probs[0]
	if len(probs) > 1 {
		margin = probs[0] - probs[1]
	}
	if margin < 0 {
		margin = 0
	}
	if margin > 1 {
		margin = 1
	}

	score := scores["positive"] - scores["negative"]
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return &models.SentimentSignal{Score: score, Confidence: margin}
}
