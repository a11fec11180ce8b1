package llm

import (
	"fmt"
	"strings"

	"github.com/ternarybob/nuntius/internal/models"
)

// maxBodyBytes bounds the filing text included per document so a batch
// prompt stays inside every model's context window.
const maxBodyBytes = 12_000

const systemInstruction = `You are a financial filings analyst for a small-cap catalyst desk.
For each SEC document, extract what a trader needs in seconds: what happened,
why it moves the stock, and any hard numbers (offering size, price per share,
deal value, dates). Judge sentiment from the shareholder's perspective, where
dilution and going-concern language are negative. Respond with YAML only,
following the output template exactly, one list entry per document.`

// buildPrompt renders one batch of filings into a single prompt. Documents
// are delimited and labeled by doc_id so the response can be joined back.
func buildPrompt(docs []*models.SECDoc) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Analyze the following %d SEC document(s).\n", len(docs)))
	for i, doc := range docs {
		sb.WriteString(fmt.Sprintf("\n--- DOCUMENT %d ---\n", i+1))
		sb.WriteString("doc_id: " + doc.DocID + "\n")
		sb.WriteString("form_type: " + doc.FormType + "\n")
		if len(doc.ItemCodes) > 0 {
			sb.WriteString("item_codes: " + strings.Join(doc.ItemCodes, ", ") + "\n")
		}
		if doc.Company != "" {
			sb.WriteString("company: " + doc.Company + "\n")
		}
		if doc.Ticker != "" {
			sb.WriteString("ticker: " + doc.Ticker + "\n")
		}
		sb.WriteString("body: |\n")
		sb.WriteString(indentBody(truncateBody(doc.Body)))
		sb.WriteString("\n")
	}

	sb.WriteString(`
---
OUTPUT TEMPLATE (YAML, repeat for each document):
- doc_id: "the doc_id given above"
  summary: "1-2 sentence plain-language summary of the material event"
  keywords:
    - "catalyst keyword"
  metrics:
    offering_size: "$X.XM"
    price_per_share: "$X.XX"
  sentiment: 0.0
`)
	return sb.String()
}

func truncateBody(body string) string {
	if len(body) <= maxBodyBytes {
		return body
	}
	return body[:maxBodyBytes]
}

func indentBody(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
