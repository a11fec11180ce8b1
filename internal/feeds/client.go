package feeds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// defaultUserAgent is sent when the config does not set one. SEC EDGAR
// rejects requests without a contact address in the agent string.
const defaultUserAgent = "nuntius/1.0 (news alert pipeline)"

// Client wraps the shared HTTP client with conditional-GET support. Each
// source's ETag and Last-Modified validators persist across restarts via
// the state store.
type Client struct {
	rest   *resty.Client
	state  interfaces.StateStore
	logger arbor.ILogger
}

// NewClient builds the shared feed HTTP client. Retries are left to the
// next cycle; a feed that failed once will be polled again seconds later.
func NewClient(cfg *common.Config, state interfaces.StateStore, logger arbor.ILogger) *Client {
	agent := cfg.Feeds.UserAgent
	if agent == "" {
		agent = defaultUserAgent
	}

	rest := resty.New().
		SetTimeout(cfg.Intake.FetchTimeout()).
		SetHeader("User-Agent", agent).
		SetHeader("Accept", "application/rss+xml, application/atom+xml, application/json, text/xml, */*")

	return &Client{
		rest:   rest,
		state:  state,
		logger: logger,
	}
}

// Get fetches a source URL with the stored validators. A 304 returns
// notModified=true with an empty body. Any response is recorded back into
// the feed state so the next cycle reuses the freshest validators.
func (c *Client) Get(ctx context.Context, source, url string) (body []byte, notModified bool, err error) {
	req := c.rest.R().SetContext(ctx)

	var prior *models.FeedState
	if c.state != nil {
		prior, _ = c.state.GetFeedState(source)
	}
	if prior != nil {
		if prior.ETag != "" {
			req.SetHeader("If-None-Match", prior.ETag)
		}
		if prior.LastModified != "" {
			req.SetHeader("If-Modified-Since", prior.LastModified)
		}
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, false, &common.TransientNetworkError{Op: "feed_get " + source, Err: err}
	}

	status := resp.StatusCode()
	c.saveState(source, resp, status)

	switch {
	case status == http.StatusNotModified:
		return nil, true, nil
	case status >= 200 && status < 300:
		return resp.Body(), false, nil
	case status == http.StatusTooManyRequests || status >= 500:
		return nil, false, &common.TransientNetworkError{Op: "feed_get " + source, StatusCode: status}
	default:
		return nil, false, &common.PermanentNetworkError{
			Op:         "feed_get " + source,
			StatusCode: status,
			Message:    fmt.Sprintf("feed returned %d", status),
		}
	}
}

func (c *Client) saveState(source string, resp *resty.Response, status int) {
	if c.state == nil {
		return
	}
	state := &models.FeedState{
		Source:      source,
		LastFetchAt: time.Now().UTC(),
		LastStatus:  status,
	}
	if etag := resp.Header().Get("ETag"); etag != "" {
		state.ETag = etag
	}
	if lm := resp.Header().Get("Last-Modified"); lm != "" {
		state.LastModified = lm
	}
	if status == http.StatusNotModified {
		// Keep the validators that produced the 304.
		if prior, _ := c.state.GetFeedState(source); prior != nil {
			state.ETag = prior.ETag
			state.LastModified = prior.LastModified
		}
	}
	if err := c.state.SaveFeedState(state); err != nil {
		c.logger.Warn().Err(err).Str("source", source).Msg("Failed to persist feed state")
	}
}
