package feeds

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// VendorJSONSource fetches a vendor JSON endpoint and maps its fields onto
// NewsItems using the configured path mapping. Adding a vendor is a config
// change, not a code change.
type VendorJSONSource struct {
	name    string
	url     string
	weight  int
	mapping common.VendorMapping
	client  *Client
	logger  arbor.ILogger
}

var _ interfaces.FeedSource = (*VendorJSONSource)(nil)

// NewVendorJSONSource builds a source from its config entry.
func NewVendorJSONSource(cfg common.FeedSourceConfig, client *Client, logger arbor.ILogger) *VendorJSONSource {
	return &VendorJSONSource{
		name:    cfg.Name,
		url:     cfg.URL,
		weight:  cfg.Weight,
		mapping: cfg.Mapping,
		client:  client,
		logger:  logger,
	}
}

func (s *VendorJSONSource) Name() string { return s.name }

func (s *VendorJSONSource) Weight() int { return s.weight }

// Fetch retrieves the endpoint and maps each element of the items array.
// Elements that fail to map are skipped individually.
func (s *VendorJSONSource) Fetch(ctx context.Context) ([]*models.NewsItem, error) {
	body, notModified, err := s.client.Get(ctx, s.name, s.url)
	if err != nil {
		return nil, err
	}
	if notModified {
		return nil, nil
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &common.ParseError{Source: s.name, Err: err}
	}

	elements := itemsArray(payload, s.mapping.ItemsKey)
	items := make([]*models.NewsItem, 0, len(elements))
	for _, element := range elements {
		obj, ok := element.(map[string]interface{})
		if !ok {
			continue
		}
		item := s.mapItem(obj)
		if item == nil {
			s.logger.Debug().Str("source", s.name).Msg("Vendor item missing mapped fields, skipped")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *VendorJSONSource) mapItem(obj map[string]interface{}) *models.NewsItem {
	title, _ := walkPath(obj, s.mapping.TitleKey).(string)
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	item := &models.NewsItem{
		Source:     s.name,
		SourceType: models.SourceTypeVendorJSON,
		Title:      title,
		FetchedAt:  time.Now().UTC(),
	}

	if id, ok := walkPath(obj, s.mapping.IDKey).(string); ok {
		item.SourceID = strings.TrimSpace(id)
	} else if num, ok := walkPath(obj, s.mapping.IDKey).(float64); ok {
		item.SourceID = models.RawNumber(num).AsString()
	}
	if link, ok := walkPath(obj, s.mapping.URLKey).(string); ok {
		item.CanonicalURL = common.CanonicalURL(link)
	}
	if !item.Valid() {
		return nil
	}

	if summary, ok := walkPath(obj, s.mapping.SummaryKey).(string); ok {
		item.Summary = CleanSummary(summary)
	}

	item.PublishedAt = s.mapTime(obj)
	item.Tickers = mapTickers(walkPath(obj, s.mapping.TickersKey))

	if s.mapping.SentimentKey != "" {
		if score, ok := walkPath(obj, s.mapping.SentimentKey).(float64); ok {
			item.RawFields = map[string]models.RawValue{
				models.RawKeySentiment: models.RawNumber(score),
			}
		}
	}
	return item
}

func (s *VendorJSONSource) mapTime(obj map[string]interface{}) time.Time {
	value := walkPath(obj, s.mapping.TimeKey)
	switch v := value.(type) {
	case string:
		return ParseFeedTime(v, s.mapping.TimeFormat)
	case float64:
		// Unix epoch, seconds or milliseconds.
		if v > 1e12 {
			return time.UnixMilli(int64(v)).UTC()
		}
		return time.Unix(int64(v), 0).UTC()
	}
	return time.Time{}
}

// walkPath resolves a dot-separated path into a decoded JSON value.
func walkPath(obj map[string]interface{}, path string) interface{} {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	var current interface{} = obj
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return current
}

// itemsArray selects the array of article objects. An empty key means the
// payload root is the array.
func itemsArray(payload interface{}, itemsKey string) []interface{} {
	if itemsKey == "" {
		arr, _ := payload.([]interface{})
		return arr
	}
	obj, ok := payload.(map[string]interface{})
	if !ok {
		return nil
	}
	arr, _ := walkPath(obj, itemsKey).([]interface{})
	return arr
}

func mapTickers(value interface{}) []string {
	switch v := value.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, t := range v {
			if sym, ok := t.(string); ok {
				sym = strings.ToUpper(strings.TrimSpace(sym))
				if sym != "" {
					out = append(out, sym)
				}
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			sym := strings.ToUpper(strings.TrimSpace(part))
			if sym != "" {
				out = append(out, sym)
			}
		}
		return out
	}
	return nil
}
