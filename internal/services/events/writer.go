// Package events appends pipeline events to a JSONL log. Outcome-tracking
// collaborators tail this file to join alerts with later price action, so
// records are flat and self-describing rather than mirrors of the webhook
// payload.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

const defaultEventPath = "./data/events.log"

type envelope struct {
	Type  string             `json:"type"` // alert | cycle
	At    time.Time          `json:"at"`
	Alert *alertRecord       `json:"alert,omitempty"`
	Cycle *models.CycleStats `json:"cycle,omitempty"`
}

// alertRecord flattens one delivery outcome to the fields the outcome
// tracker joins on.
type alertRecord struct {
	ID             string    `json:"id"`
	Ticker         string    `json:"ticker"`
	Title          string    `json:"title"`
	Link           string    `json:"link,omitempty"`
	Category       string    `json:"category,omitempty"`
	CatalystScore  float64   `json:"catalyst_score"`
	Source         string    `json:"source"`
	IdempotencyKey string    `json:"idempotency_key"`
	PublishedAt    time.Time `json:"published_at"`

	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
}

type Writer struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	logger arbor.ILogger
}

var _ interfaces.EventWriter = (*Writer)(nil)

func NewWriter(cfg common.EventsConfig, logger arbor.ILogger) (*Writer, error) {
	path := cfg.Path
	if path == "" {
		path = defaultEventPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create event log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	logger.Info().Str("path", path).Msg("Event log opened")
	return &Writer{
		file:   file,
		enc:    json.NewEncoder(file),
		logger: logger,
	}, nil
}

func (w *Writer) WriteAlert(alert *models.Alert, result *models.PostResult) error {
	record := &alertRecord{
		ID:             alert.ID,
		Ticker:         alert.Ticker,
		Title:          alert.Title,
		Link:           alert.Link,
		Category:       alert.Category,
		CatalystScore:  alert.CatalystScore,
		Source:         alert.Source,
		IdempotencyKey: alert.IdempotencyKey,
		PublishedAt:    alert.PublishedAt,
	}
	if result != nil {
		record.OK = result.OK
		record.StatusCode = result.StatusCode
		record.MessageID = result.MessageID
		record.Attempts = result.Attempts
		if result.Err != nil {
			record.Error = result.Err.Error()
		}
	}
	return w.append(&envelope{Type: "alert", At: time.Now().UTC(), Alert: record})
}

func (w *Writer) WriteCycle(stats *models.CycleStats) error {
	return w.append(&envelope{Type: "cycle", At: time.Now().UTC(), Cycle: stats})
}

func (w *Writer) append(e *envelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("event log closed")
	}
	if err := w.enc.Encode(e); err != nil {
		return &common.StoreError{Op: "event_append", Err: err}
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.enc = nil
	return err
}
