package models

import (
	"time"
)

// Alert is a fully rendered webhook message for one ticker's catalyst.
// IdempotencyKey equals the item fingerprint; the poster and seen-store
// use it to guarantee at-most-once delivery.
type Alert struct {
	ID             string `json:"id"` // alert_{uuid}
	Ticker         string `json:"ticker"`
	Title          string `json:"title"`
	Link           string `json:"link"`
	ContentText    string `json:"content_text"`
	IdempotencyKey string `json:"idempotency_key"`

	Payload *WebhookPayload `json:"payload"`

	CatalystScore float64   `json:"catalyst_score"`
	Category      string    `json:"category,omitempty"`
	Source        string    `json:"source"`
	PublishedAt   time.Time `json:"published_at"`
	FormattedAt   time.Time `json:"formatted_at"`
}

// WebhookPayload is the JSON body posted to the webhook, following the
// chat platform's documented schema.
type WebhookPayload struct {
	Content    string       `json:"content,omitempty"`
	Embeds     []*Embed     `json:"embeds,omitempty"`
	Components []*Component `json:"components,omitempty"`
	Username   string       `json:"username,omitempty"`
}

// Embed is a rich message block. Field order is deterministic so repeated
// renders of the same item are byte-identical.
type Embed struct {
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Color       int           `json:"color,omitempty"`
	Fields      []*EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter  `json:"footer,omitempty"`
	Timestamp   string        `json:"timestamp,omitempty"` // RFC 3339
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text,omitempty"`
}

// Component is an optional interactive element attached to the message.
type Component struct {
	Type       int          `json:"type"`
	Style      int          `json:"style,omitempty"`
	Label      string       `json:"label,omitempty"`
	URL        string       `json:"url,omitempty"`
	CustomID   string       `json:"custom_id,omitempty"`
	Components []*Component `json:"components,omitempty"`
}

// Component type and button style constants from the webhook schema.
const (
	ComponentTypeActionRow = 1
	ComponentTypeButton    = 2

	ButtonStyleLink = 5
)

// PostResult reports the outcome of one webhook delivery attempt chain.
type PostResult struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code"`
	MessageID  string `json:"message_id,omitempty"` // server-assigned, set on 2xx
	Attempts   int    `json:"attempts"`
	Err        error  `json:"-"`
}
