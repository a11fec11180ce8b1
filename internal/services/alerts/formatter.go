// Package alerts renders scored items into webhook messages and delivers
// them. The formatter is deterministic: the same scored item and enrichment
// record always produce byte-identical payload content, so replays and
// retries are comparable. Delivery is serialized through one poster with
// bounded retry and rate-limit honor.
package alerts

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// Embed colors keyed off the sentiment aggregate.
const (
	colorBullish = 0x2ECC71
	colorBearish = 0xE74C3C
	colorNeutral = 0x95A5A6

	sentimentColorBand = 0.15
)

const (
	titleLimit       = 240
	descriptionLimit = 280
	contentLimit     = 180
	fieldValueLimit  = 1000
)

type Formatter struct {
	tradePlan bool
}

var _ interfaces.AlertFormatter = (*Formatter)(nil)

func NewFormatter(cfg common.AlertsConfig) *Formatter {
	return &Formatter{tradePlan: cfg.TradePlanEnabled}
}

// Format renders one ticker's catalyst into an Alert. Field order, keys and
// truncation are fixed; only data-driven values change between items.
func (f *Formatter) Format(scored *models.ScoredItem, enrichment *models.EnrichmentRecord) *models.Alert {
	item := scored.Item
	ticker := scored.PrimaryTicker

	embed := &models.Embed{
		Title: truncate(item.Title, titleLimit),
		URL:   item.CanonicalURL,
		Color: embedColor(scored.Sentiment),
	}

	if scored.Analysis != nil && scored.Analysis.Summary != "" {
		embed.Description = truncate(scored.Analysis.Summary, descriptionLimit)
	} else if item.Summary != "" {
		embed.Description = truncate(item.Summary, descriptionLimit)
	}

	embed.Fields = append(embed.Fields, &models.EmbedField{
		Name:   "Ticker",
		Value:  "$" + ticker,
		Inline: true,
	})
	if scored.TopCategory != "" {
		embed.Fields = append(embed.Fields, &models.EmbedField{
			Name:   "Catalyst",
			Value:  scored.TopCategory,
			Inline: true,
		})
	}
	embed.Fields = append(embed.Fields, &models.EmbedField{
		Name:   "Score",
		Value:  fmt.Sprintf("%.1f/10", scored.CatalystScore),
		Inline: true,
	})

	if price, ok := enrichment.Price(); ok {
		value := fmt.Sprintf("$%.2f", price)
		if enrichment.ChangePct != nil {
			value += fmt.Sprintf(" (%+.2f%%)", *enrichment.ChangePct)
		}
		embed.Fields = append(embed.Fields, &models.EmbedField{
			Name:   "Price",
			Value:  value,
			Inline: true,
		})
	}

	if score, ok := scored.Sentiment.AggregateScore(); ok {
		embed.Fields = append(embed.Fields, &models.EmbedField{
			Name:  "Sentiment",
			Value: sentimentGauge(score),
		})
	}

	if enrichment != nil && enrichment.RVOL != nil {
		embed.Fields = append(embed.Fields, &models.EmbedField{
			Name:   "RVOL",
			Value:  fmt.Sprintf("%.1fx", *enrichment.RVOL),
			Inline: true,
		})
	}
	if enrichment != nil && enrichment.FloatShares != nil {
		embed.Fields = append(embed.Fields, &models.EmbedField{
			Name:   "Float",
			Value:  formatShares(*enrichment.FloatShares),
			Inline: true,
		})
	}

	if strings.HasPrefix(item.Source, "sec_") {
		embed.Fields = append(embed.Fields, secFields(scored)...)
	}

	if f.tradePlan {
		embed.Fields = append(embed.Fields, &models.EmbedField{
			Name:  "Plan",
			Value: tradePlanHint(scored.CatalystScore, enrichment.RVOLOrNeutral()),
		})
	}

	embed.Footer = &models.EmbedFooter{Text: item.Source}
	if !item.PublishedAt.IsZero() {
		embed.Timestamp = item.PublishedAt.UTC().Format(time.RFC3339)
	}

	payload := &models.WebhookPayload{
		Content: contentLine(scored),
		Embeds:  []*models.Embed{embed},
	}
	if item.CanonicalURL != "" {
		payload.Components = []*models.Component{{
			Type: models.ComponentTypeActionRow,
			Components: []*models.Component{{
				Type:  models.ComponentTypeButton,
				Style: models.ButtonStyleLink,
				Label: "Source",
				URL:   item.CanonicalURL,
			}},
		}}
	}

	return &models.Alert{
		ID:             "alert_" + uuid.New().String(),
		Ticker:         ticker,
		Title:          item.Title,
		Link:           item.CanonicalURL,
		ContentText:    payload.Content,
		IdempotencyKey: item.Fingerprint(),
		Payload:        payload,
		CatalystScore:  scored.CatalystScore,
		Category:       scored.TopCategory,
		Source:         item.Source,
		PublishedAt:    item.PublishedAt,
		FormattedAt:    time.Now().UTC(),
	}
}

func contentLine(scored *models.ScoredItem) string {
	parts := []string{"$" + scored.PrimaryTicker, fmt.Sprintf("%.1f/10", scored.CatalystScore)}
	if scored.TopCategory != "" {
		parts = append(parts, scored.TopCategory)
	}
	return strings.Join(parts, " ") + " | " + truncate(scored.Item.Title, contentLimit)
}

// secFields renders the filing-specific block appended for sec_* sources.
func secFields(scored *models.ScoredItem) []*models.EmbedField {
	item := scored.Item
	var fields []*models.EmbedField

	filing := item.RawFields[models.RawKeyFormType].AsString()
	if codes := item.RawFields[models.RawKeyItemCodes].AsString(); codes != "" {
		filing += " · Items " + codes
	}
	if filing != "" {
		fields = append(fields, &models.EmbedField{Name: "Filing", Value: filing, Inline: true})
	}

	if scored.Analysis != nil {
		if scored.Analysis.Tier != "" {
			fields = append(fields, &models.EmbedField{
				Name:   "Priority",
				Value:  string(scored.Analysis.Tier),
				Inline: true,
			})
		}
		if len(scored.Analysis.Metrics) > 0 {
			fields = append(fields, &models.EmbedField{
				Name:  "Metrics",
				Value: truncate(renderMetrics(scored.Analysis.Metrics), fieldValueLimit),
			})
		}
	}
	return fields
}

// renderMetrics joins extracted metrics in key order so repeated renders of
// the same analysis are identical.
func renderMetrics(metrics map[string]string) string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+metrics[k])
	}
	return strings.Join(lines, "\n")
}

// sentimentGauge draws the aggregate as ten cells over [-1, 1] with the
// numeric value appended.
func sentimentGauge(score float64) string {
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	filled := int(math.Round((score + 1) / 2 * 10))
	return strings.Repeat("▰", filled) + strings.Repeat("▱", 10-filled) + fmt.Sprintf(" %+.2f", score)
}

func embedColor(sentiment *models.Sentiment) int {
	score, ok := sentiment.AggregateScore()
	switch {
	case ok && score >= sentimentColorBand:
		return colorBullish
	case ok && score <= -sentimentColorBand:
		return colorBearish
	default:
		return colorNeutral
	}
}

// tradePlanHint picks a fixed playbook line from the score and volume bands.
func tradePlanHint(score, rvol float64) string {
	switch {
	case score >= 7 && rvol >= 2:
		return "Momentum setup: wait for the opening range, enter over VWAP with volume, stop under the range low."
	case score >= 7:
		return "Strong catalyst, thin tape so far: stalk for a volume surge before entry."
	case rvol >= 2:
		return "Volume without a strong catalyst: scalp-only, tight stop."
	default:
		return "Watchlist: no edge until volume confirms."
	}
}

func formatShares(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.0fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
