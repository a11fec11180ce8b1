// Package feeds implements the configured news sources and the bounded
// concurrent fetch that feeds each pipeline cycle.
package feeds

import (
	"html"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const maxSummaryRunes = 2000

// CleanSummary strips markup from a feed summary and collapses it to plain
// text. Wire services ship summaries as HTML fragments; ticker extraction
// and keyword matching both want clean text.
func CleanSummary(raw string) string {
	if raw == "" {
		return ""
	}

	text := raw
	if strings.ContainsAny(raw, "<>") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
		if err == nil {
			text = doc.Text()
		}
	}

	text = html.UnescapeString(text)
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > maxSummaryRunes {
		text = string(runes[:maxSummaryRunes])
	}
	return text
}

var filingConverter = md.NewConverter("", true, nil)

// FilingToMarkdown converts an HTML filing body to markdown for LLM
// analysis, falling back to plain-text stripping when conversion fails.
func FilingToMarkdown(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	markdown, err := filingConverter.ConvertString(rawHTML)
	if err != nil {
		return CleanSummary(rawHTML)
	}
	return strings.TrimSpace(markdown)
}

// feedTimeFormats are tried in order for vendor timestamps that do not
// declare a layout.
var feedTimeFormats = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseFeedTime parses a wire timestamp into UTC. Returns the zero time
// when no known layout matches.
func ParseFeedTime(value, layout string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if layout != "" {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
		return time.Time{}
	}
	for _, format := range feedTimeFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
