package feeds

import (
	"context"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

var (
	// "8-K - ACME CORP (0001234567) (Filer)"
	secTitlePattern = regexp.MustCompile(`^([A-Z0-9][A-Z0-9./-]*)\s+-\s+(.+?)\s+\((\d{10})\)`)
	// "accession-number=0001193125-25-123456"
	secAccessionPattern = regexp.MustCompile(`accession-number=([\d-]+)`)
	// "Item 1.01", "Item 5.02" in 8-K summaries
	secItemCodePattern = regexp.MustCompile(`Item\s+(\d+\.\d+)`)
)

// SECSource fetches an EDGAR Atom feed of current filings. Entries carry
// the accession number, form type and filer identity in raw fields; the
// resolver attributes tickers downstream.
type SECSource struct {
	name   string
	url    string
	weight int
	client *Client
	parser *gofeed.Parser
	logger arbor.ILogger
}

var _ interfaces.FeedSource = (*SECSource)(nil)

// NewSECSource builds a source from its config entry.
func NewSECSource(cfg common.FeedSourceConfig, client *Client, logger arbor.ILogger) *SECSource {
	return &SECSource{
		name:   cfg.Name,
		url:    cfg.URL,
		weight: cfg.Weight,
		client: client,
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

func (s *SECSource) Name() string { return s.name }

func (s *SECSource) Weight() int { return s.weight }

func (s *SECSource) Fetch(ctx context.Context) ([]*models.NewsItem, error) {
	body, notModified, err := s.client.Get(ctx, s.name, s.url)
	if err != nil {
		return nil, err
	}
	if notModified {
		return nil, nil
	}

	feed, err := s.parser.ParseString(string(body))
	if err != nil {
		return nil, &common.ParseError{Source: s.name, Err: err}
	}

	items := make([]*models.NewsItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := s.normalize(entry)
		if item == nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *SECSource) normalize(entry *gofeed.Item) *models.NewsItem {
	title := html.UnescapeString(strings.TrimSpace(entry.Title))
	if title == "" {
		return nil
	}

	accession := extractAccession(entry)
	item := &models.NewsItem{
		Source:       s.name,
		SourceType:   models.SourceTypeSEC,
		SourceID:     accession,
		Title:        title,
		Summary:      CleanSummary(entry.Description),
		CanonicalURL: common.CanonicalURL(entry.Link),
		PublishedAt:  entryTime(entry),
		FetchedAt:    time.Now().UTC(),
		RawFields:    make(map[string]models.RawValue, 4),
	}
	if !item.Valid() {
		return nil
	}

	if accession != "" {
		item.RawFields[models.RawKeyAccession] = models.RawString(accession)
	}
	if form, company, cik, ok := parseSECTitle(title); ok {
		item.RawFields[models.RawKeyFormType] = models.RawString(form)
		item.RawFields[models.RawKeyCompany] = models.RawString(company)
		item.RawFields[models.RawKeyCIK] = models.RawString(cik)
	} else if len(entry.Categories) > 0 {
		item.RawFields[models.RawKeyFormType] = models.RawString(entry.Categories[0])
	}
	if codes := secItemCodePattern.FindAllStringSubmatch(entry.Description, -1); len(codes) > 0 {
		joined := make([]string, 0, len(codes))
		for _, match := range codes {
			joined = append(joined, match[1])
		}
		item.RawFields[models.RawKeyItemCodes] = models.RawString(strings.Join(joined, ","))
	}
	return item
}

func extractAccession(entry *gofeed.Item) string {
	if match := secAccessionPattern.FindStringSubmatch(entry.GUID); len(match) == 2 {
		return match[1]
	}
	if match := secAccessionPattern.FindStringSubmatch(entry.Description); len(match) == 2 {
		return match[1]
	}
	return ""
}

func parseSECTitle(title string) (form, company, cik string, ok bool) {
	match := secTitlePattern.FindStringSubmatch(title)
	if len(match) != 4 {
		return "", "", "", false
	}
	return match[1], match[2], match[3], true
}
