package feeds

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// RSSSource fetches one RSS or Atom feed.
type RSSSource struct {
	name   string
	url    string
	weight int
	client *Client
	parser *gofeed.Parser
	logger arbor.ILogger
}

var _ interfaces.FeedSource = (*RSSSource)(nil)

// NewRSSSource builds a source from its config entry.
func NewRSSSource(cfg common.FeedSourceConfig, client *Client, logger arbor.ILogger) *RSSSource {
	return &RSSSource{
		name:   cfg.Name,
		url:    cfg.URL,
		weight: cfg.Weight,
		client: client,
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

func (s *RSSSource) Name() string { return s.name }

func (s *RSSSource) Weight() int { return s.weight }

// Fetch retrieves the feed and normalizes its entries. A 304 yields an
// empty slice with no error.
func (s *RSSSource) Fetch(ctx context.Context) ([]*models.NewsItem, error) {
	body, notModified, err := s.client.Get(ctx, s.name, s.url)
	if err != nil {
		return nil, err
	}
	if notModified {
		s.logger.Debug().Str("source", s.name).Msg("Feed not modified")
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

func (s *RSSSource) normalize(entry *gofeed.Item) *models.NewsItem {
	if entry.Title == "" {
		return nil
	}

	item := &models.NewsItem{
		Source:       s.name,
		SourceType:   models.SourceTypeRSS,
		SourceID:     strings.TrimSpace(entry.GUID),
		Title:        html.UnescapeString(strings.TrimSpace(entry.Title)),
		Summary:      CleanSummary(entry.Description),
		CanonicalURL: common.CanonicalURL(entry.Link),
		PublishedAt:  entryTime(entry),
		FetchedAt:    time.Now().UTC(),
	}
	if !item.Valid() {
		return nil
	}

	if len(entry.Categories) > 0 {
		item.RawFields = map[string]models.RawValue{
			models.RawKeyCategories: models.RawString(strings.Join(entry.Categories, ",")),
		}
	}
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		if item.RawFields == nil {
			item.RawFields = make(map[string]models.RawValue, 1)
		}
		item.RawFields[models.RawKeyAuthor] = models.RawString(entry.Authors[0].Name)
	}
	return item
}

func entryTime(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return time.Time{}
}
