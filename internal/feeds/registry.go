package feeds

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
)

// BuildSources constructs a FeedSource per config entry. Unknown types are
// rejected at config validation, so this switch is total.
func BuildSources(cfg *common.Config, client *Client, logger arbor.ILogger) []interfaces.FeedSource {
	sources := make([]interfaces.FeedSource, 0, len(cfg.Feeds.Sources))
	for _, sourceCfg := range cfg.Feeds.Sources {
		switch sourceCfg.Type {
		case "rss":
			sources = append(sources, NewRSSSource(sourceCfg, client, logger))
		case "vendor_json":
			sources = append(sources, NewVendorJSONSource(sourceCfg, client, logger))
		case "sec":
			sources = append(sources, NewSECSource(sourceCfg, client, logger))
		default:
			logger.Warn().Str("source", sourceCfg.Name).Str("type", sourceCfg.Type).Msg("Unknown source type, skipped")
		}
	}
	return sources
}
