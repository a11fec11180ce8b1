package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

func newTestPoster(t *testing.T, mutate func(*common.AlertsConfig), handler http.HandlerFunc) (*Poster, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := common.AlertsConfig{
		WebhookURL:     server.URL,
		PostTimeoutSec: 2,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewPoster(cfg, arbor.NewLogger()), server
}

func testAlert() *models.Alert {
	return &models.Alert{
		ID:             "alert_test",
		Ticker:         "ACME",
		Title:          "Acme Receives FDA Approval",
		Link:           "https://news.example.com/acme",
		IdempotencyKey: "fp1",
		Payload: &models.WebhookPayload{
			Content: "$ACME 8.2/10",
			Embeds:  []*models.Embed{{Title: "Acme Receives FDA Approval"}},
		},
	}
}

func TestPostSuccessReturnsMessageID(t *testing.T) {
	var gotWait atomic.Value
	poster, _ := newTestPoster(t, nil, func(w http.ResponseWriter, r *http.Request) {
		gotWait.Store(r.URL.Query().Get("wait"))

		var payload models.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1134217702"}`))
	})

	result := poster.Post(context.Background(), testAlert())

	require.True(t, result.OK)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "1134217702", result.MessageID)
	assert.Equal(t, 1, result.Attempts)
	assert.NoError(t, result.Err)
	assert.Equal(t, "true", gotWait.Load())
}

func TestPostRetriesAfter429(t *testing.T) {
	var hits atomic.Int32
	poster, _ := newTestPoster(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.05")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":"77"}`))
	})

	result := poster.Post(context.Background(), testAlert())

	require.True(t, result.OK)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "77", result.MessageID)
}

func TestPostDoesNotRetryPermanent4xx(t *testing.T) {
	var hits atomic.Int32
	poster, _ := newTestPoster(t, nil, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"message":"invalid payload"}`, http.StatusBadRequest)
	})

	result := poster.Post(context.Background(), testAlert())

	assert.False(t, result.OK)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, int32(1), hits.Load())

	var perm *common.PermanentNetworkError
	require.True(t, errors.As(result.Err, &perm))
	assert.Equal(t, http.StatusBadRequest, perm.StatusCode)
}

func TestPostExhaustsRetriesOn5xx(t *testing.T) {
	var hits atomic.Int32
	poster, _ := newTestPoster(t, nil, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	result := poster.Post(context.Background(), testAlert())

	assert.False(t, result.OK)
	assert.Equal(t, maxPostAttempts, result.Attempts)
	assert.Equal(t, int32(maxPostAttempts), hits.Load())

	var transient *common.TransientNetworkError
	require.True(t, errors.As(result.Err, &transient))
}

func TestPostHonorsResetAfterHeader(t *testing.T) {
	poster, _ := newTestPoster(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset-After", "0.2")
		w.Write([]byte(`{"id":"1"}`))
	})

	require.True(t, poster.Post(context.Background(), testAlert()).OK)

	start := time.Now()
	require.True(t, poster.Post(context.Background(), testAlert()).OK)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestPostPerKeyRateLimit(t *testing.T) {
	poster, _ := newTestPoster(t, func(cfg *common.AlertsConfig) {
		cfg.KeyRateLimit = 1
	}, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"1"}`))
	})

	first := poster.Post(context.Background(), testAlert())
	require.True(t, first.OK)

	// An identical alert inside the window is held back, not posted.
	second := poster.Post(context.Background(), testAlert())
	assert.False(t, second.OK)
	var rl *common.RateLimitError
	require.True(t, errors.As(second.Err, &rl))
	assert.Zero(t, second.Attempts)

	// A different headline is a different key.
	other := testAlert()
	other.Title = "Acme Prices Offering"
	assert.True(t, poster.Post(context.Background(), other).OK)
}

func TestPostAdminSharesPrimaryWebhook(t *testing.T) {
	var gotContent atomic.Value
	poster, _ := newTestPoster(t, nil, func(w http.ResponseWriter, r *http.Request) {
		var payload models.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotContent.Store(payload.Content)
		w.Write([]byte(`{"id":"9"}`))
	})

	err := poster.PostAdmin(context.Background(), "5 consecutive empty cycles")
	require.NoError(t, err)
	assert.Equal(t, "5 consecutive empty cycles", gotContent.Load())
}

func TestPostWithoutWebhookURL(t *testing.T) {
	poster := NewPoster(common.AlertsConfig{PostTimeoutSec: 1}, arbor.NewLogger())

	result := poster.Post(context.Background(), testAlert())
	assert.False(t, result.OK)
	assert.Error(t, result.Err)

	assert.Error(t, poster.PostAdmin(context.Background(), "notice"))
}

func TestPostCancelledContext(t *testing.T) {
	poster, _ := newTestPoster(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := poster.Post(ctx, testAlert())
	assert.False(t, result.OK)
}
