package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

const edgarAtom = `<?xml version="1.0" encoding="ISO-8859-1" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Latest Filings - Tue, 02 Jun 2025 13:35:00 EDT</title>
  <entry>
    <title>8-K - ACME CORP (0001234567) (Filer)</title>
    <link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/1234567/000119312525123456-index.htm"/>
    <summary type="html">&lt;b&gt;Filed:&lt;/b&gt; 2025-06-02 &lt;b&gt;AccNo:&lt;/b&gt; 0001193125-25-123456 Item 1.01 Item 9.01</summary>
    <updated>2025-06-02T13:30:00-04:00</updated>
    <category scheme="https://www.sec.gov/" label="form type" term="8-K"/>
    <id>urn:tag:sec.gov,2008:accession-number=0001193125-25-123456</id>
  </entry>
  <entry>
    <title>424B5 - Beta Pharma Inc. (0007654321) (Filer)</title>
    <link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/7654321/000076543225000042-index.htm"/>
    <summary type="html">&lt;b&gt;Filed:&lt;/b&gt; 2025-06-02 &lt;b&gt;AccNo:&lt;/b&gt; 0000765432-25-000042</summary>
    <updated>2025-06-02T12:05:00-04:00</updated>
    <category scheme="https://www.sec.gov/" label="form type" term="424B5"/>
    <id>urn:tag:sec.gov,2008:accession-number=0000765432-25-000042</id>
  </entry>
</feed>`

func TestSECSourceParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(edgarAtom))
	}))
	defer server.Close()

	sourceCfg := common.FeedSourceConfig{Name: "sec_8k", Type: "sec", URL: server.URL, Weight: 30}
	source := NewSECSource(sourceCfg, newTestClient(t, server.URL), arbor.NewLogger())

	items, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, expected 2", len(items))
	}

	eightK := items[0]
	if eightK.SourceID != "0001193125-25-123456" {
		t.Errorf("source_id = %q, expected the accession number", eightK.SourceID)
	}
	if got := eightK.Accession(); got != "0001193125-25-123456" {
		t.Errorf("accession raw field = %q", got)
	}
	if got := eightK.RawFields[models.RawKeyFormType].AsString(); got != "8-K" {
		t.Errorf("form type = %q", got)
	}
	if got := eightK.RawFields[models.RawKeyCompany].AsString(); got != "ACME CORP" {
		t.Errorf("company = %q", got)
	}
	if got := eightK.RawFields[models.RawKeyCIK].AsString(); got != "0001234567" {
		t.Errorf("cik = %q", got)
	}
	if got := eightK.RawFields[models.RawKeyItemCodes].AsString(); got != "1.01,9.01" {
		t.Errorf("item codes = %q", got)
	}
	if !eightK.IsSEC() {
		t.Error("item should report as SEC")
	}
	if eightK.PublishedAt.IsZero() {
		t.Error("published_at should parse from <updated>")
	}

	prospectus := items[1]
	if got := prospectus.RawFields[models.RawKeyFormType].AsString(); got != "424B5" {
		t.Errorf("form type = %q", got)
	}
	if got := prospectus.RawFields[models.RawKeyCompany].AsString(); got != "Beta Pharma Inc." {
		t.Errorf("company = %q", got)
	}
	if _, ok := prospectus.RawFields[models.RawKeyItemCodes]; ok {
		t.Error("424B5 summary has no item codes")
	}
}

func TestSECAmendmentSharesFingerprint(t *testing.T) {
	// An 8-K/A carries a different accession than its base filing, so the
	// two do not collide by source_id. The dedup layer handles the pairing
	// by title; here we only require both to parse cleanly.
	form, company, cik, ok := parseSECTitle("8-K/A - ACME CORP (0001234567) (Filer)")
	if !ok {
		t.Fatal("amendment title should parse")
	}
	if form != "8-K/A" || company != "ACME CORP" || cik != "0001234567" {
		t.Errorf("parsed = %q %q %q", form, company, cik)
	}
}
