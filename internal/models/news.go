package models

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// SourceType identifies the wire format of a feed source
type SourceType string

const (
	SourceTypeRSS        SourceType = "rss"
	SourceTypeVendorJSON SourceType = "vendor_json"
	SourceTypeSEC        SourceType = "sec"
)

// Raw field keys populated by fetchers. Consumers read these instead of
// re-parsing vendor payloads.
const (
	RawKeyAccession  = "accession_number"
	RawKeyFormType   = "form_type"
	RawKeyItemCodes  = "item_codes"
	RawKeyCIK        = "cik"
	RawKeyCompany    = "company_name"
	RawKeySentiment  = "vendor_sentiment"
	RawKeyAuthor     = "author"
	RawKeyCategories = "categories"
)

// NewsItem represents a normalized item from any feed source.
// Fetchers produce these; the pipeline treats them as immutable afterwards.
type NewsItem struct {
	// Identity
	Source     string     `json:"source"`              // configured source name, e.g. "prnewswire", "sec_8k"
	SourceType SourceType `json:"source_type"`         // rss, vendor_json, sec
	SourceID   string     `json:"source_id,omitempty"` // vendor item id, may be empty

	// Content
	Title        string `json:"title"`
	Summary      string `json:"summary"` // HTML-stripped plain text
	CanonicalURL string `json:"canonical_url"`

	// Attribution
	Tickers []string `json:"tickers,omitempty"` // vendor-provided symbols, in wire order

	// Vendor extras translated into typed values at parse time
	RawFields map[string]RawValue `json:"raw_fields,omitempty"`

	// Timestamps
	PublishedAt time.Time `json:"published_at"` // UTC
	FetchedAt   time.Time `json:"fetched_at"`
}

// Valid reports whether the item carries enough identity to be processed.
// At least one of SourceID or CanonicalURL must be present.
func (n *NewsItem) Valid() bool {
	return n.SourceID != "" || n.CanonicalURL != ""
}

// IsSEC reports whether the item came from an SEC filing source.
func (n *NewsItem) IsSEC() bool {
	return n.SourceType == SourceTypeSEC || strings.HasPrefix(n.Source, "sec_")
}

// Age returns how long ago the item was published.
func (n *NewsItem) Age(now time.Time) time.Duration {
	return now.Sub(n.PublishedAt)
}

// Accession returns the SEC accession number from raw fields, or "".
func (n *NewsItem) Accession() string {
	if v, ok := n.RawFields[RawKeyAccession]; ok {
		return v.AsString()
	}
	return ""
}

// VendorSentiment returns a vendor-supplied sentiment score when the feed
// carried one. The bool reports presence.
func (n *NewsItem) VendorSentiment() (float64, bool) {
	v, ok := n.RawFields[RawKeySentiment]
	if !ok || v.Kind != RawKindNumber {
		return 0, false
	}
	return v.Num, true
}

// Fingerprint computes the stable identity hash for the item. When the
// vendor supplies an id the hash covers (source, source_id); otherwise it
// covers the normalized title, the canonical URL minus its query, and the
// SEC accession number when present. Two deliveries of the same underlying
// event collide; distinct events practically never do.
func (n *NewsItem) Fingerprint() string {
	h := sha1.New()
	if n.SourceID != "" {
		h.Write([]byte(n.Source))
		h.Write([]byte{'|'})
		h.Write([]byte(n.SourceID))
	} else {
		h.Write([]byte(NormalizeTitle(n.Title)))
		h.Write([]byte{'|'})
		h.Write([]byte(stripQuery(n.CanonicalURL)))
		if acc := n.Accession(); acc != "" {
			h.Write([]byte{'|'})
			h.Write([]byte(normalizeAccession(acc)))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeTitle lowercases a headline and collapses runs of whitespace
// and punctuation so cosmetic differences between wires do not change the
// fingerprint.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '$' {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func stripQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// normalizeAccession collapses an SEC amendment accession onto its base
// filing so an 8-K/A replays against the original 8-K's fingerprint.
func normalizeAccession(acc string) string {
	acc = strings.TrimSpace(acc)
	acc = strings.TrimSuffix(acc, "/A")
	return strings.ReplaceAll(acc, "-", "")
}
