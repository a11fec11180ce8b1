package resolver

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/ternarybob/nuntius/internal/common"
)

// cashtagPattern matches $XYZ style tags anywhere in the text.
var cashtagPattern = regexp.MustCompile(`\$([A-Z]{1,5}(?:[.\-][A-Z]{1,2})?)\b`)

// exchangePattern matches parenthesized exchange-qualified symbols such as
// "(NASDAQ: ACME)" or "(NYSE: BETA)".
var exchangePattern = regexp.MustCompile(`\(\s*([A-Za-z]{3,10})\s*[:.]\s*([A-Z]{1,5}(?:[.\-][A-Z]{1,2})?)\s*\)`)

// bareRunPattern matches standalone uppercase runs in the title. These are
// the weakest signal and only count when the universe can vouch for them.
var bareRunPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

// bareStopwords are uppercase tokens that look like symbols but almost
// never are when untagged.
var bareStopwords = map[string]bool{
	"CEO": true, "CFO": true, "COO": true, "CTO": true, "CMO": true,
	"FDA": true, "SEC": true, "IPO": true, "ETF": true, "USA": true,
	"EPS": true, "AI": true, "IT": true, "US": true, "UK": true,
	"EU": true, "NYSE": true, "OTC": true, "GAAP": true, "YOY": true,
	"LLC": true, "INC": true, "CORP": true, "PHASE": true, "NDA": true,
}

// extractCandidates pulls ticker candidates out of the title and summary
// in order of first appearance. Cashtags and exchange-qualified forms are
// strong signals read from the whole text; bare uppercase runs are read
// from the title only and gated by the stopword list plus the universe.
func (s *Service) extractCandidates(title, summary string) []string {
	text := title + " " + summary
	seen := make(map[string]bool)
	var out []string
	add := func(symbol string) {
		symbol = strings.ToUpper(symbol)
		if !seen[symbol] {
			seen[symbol] = true
			out = append(out, symbol)
		}
	}

	for _, match := range cashtagPattern.FindAllStringSubmatch(text, -1) {
		if s.strongCandidate(match[1]) {
			add(match[1])
		}
	}
	for _, match := range exchangePattern.FindAllStringSubmatch(text, -1) {
		if common.KnownExchanges[strings.ToUpper(match[1])] && s.strongCandidate(match[2]) {
			add(match[2])
		}
	}
	for _, symbol := range bareRunPattern.FindAllString(title, -1) {
		if bareStopwords[symbol] {
			continue
		}
		if s.bareCandidate(symbol) {
			add(symbol)
		}
	}
	return out
}

// strongCandidate applies the universe cross-check to a tagged symbol.
// Without a configured universe the tag alone is trusted.
func (s *Service) strongCandidate(symbol string) bool {
	if s.universe == nil {
		return true
	}
	return s.universe[symbol] || s.watch[symbol]
}

// bareCandidate requires positive membership; an untagged uppercase run
// with no universe to vouch for it stays out.
func (s *Service) bareCandidate(symbol string) bool {
	if s.watch[symbol] {
		return true
	}
	return s.universe != nil && s.universe[symbol]
}

// loadUniverse reads a newline-delimited symbol file. Blank lines and
// #-comments are skipped. Returns nil when no path is configured, which
// disables the cross-check.
func loadUniverse(path string) (map[string]bool, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	set := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToUpper(line)] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}
