// Package common provides shared utilities across the application.
package common

import (
	"regexp"
	"strings"
)

// Ticker represents a parsed exchange-qualified ticker.
// Format: EXCHANGE:CODE (e.g., "NASDAQ:ACME", "OTC:HYBT")
type Ticker struct {
	// Exchange is the exchange code (e.g., "NASDAQ", "NYSE", "OTC")
	Exchange string
	// Code is the stock/security code (e.g., "ACME", "AAPL")
	Code string
	// Raw is the original ticker string
	Raw string
}

// KnownExchanges lists the exchange prefixes accepted in feed text and
// configuration. AMEX appears in older press releases for NYSE American.
var KnownExchanges = map[string]bool{
	"NASDAQ": true,
	"NYSE":   true,
	"AMEX":   true,
	"OTC":    true,
	"OTCQB":  true,
	"OTCQX":  true,
	"PINK":   true,
	"CSE":    true,
	"TSXV":   true,
}

// otcExchanges are the venues treated as over-the-counter by the OTC gate.
var otcExchanges = map[string]bool{
	"OTC":   true,
	"OTCQB": true,
	"OTCQX": true,
	"PINK":  true,
}

// DefaultExchange is assumed for bare symbols without an exchange prefix.
var DefaultExchange = "NASDAQ"

// SetDefaultExchange sets the default exchange for parsing tickers.
// Called during app initialization from config.
func SetDefaultExchange(exchange string) {
	if exchange != "" {
		DefaultExchange = strings.ToUpper(exchange)
	}
}

// symbolPattern matches plain US equity symbols, optionally with a class
// suffix ("BRK.A") or a hyphenated series ("LGF-A").
var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}([.\-][A-Z]{1,2})?$`)

// cryptoPairPattern matches coin pairs that leak into equity feeds ("BTC-USD").
var cryptoPairPattern = regexp.MustCompile(`^[A-Z]{2,5}-(USD|USDT|BTC|ETH)$`)

// knownCoins are bare coin codes occasionally tagged as tickers by vendors.
var knownCoins = map[string]bool{
	"BTC": true, "ETH": true, "XRP": true, "DOGE": true, "SOL": true,
	"ADA": true, "LTC": true, "SHIB": true, "AVAX": true, "DOT": true,
}

// ParseTicker parses an exchange-qualified ticker string.
// Supports formats:
//   - "NASDAQ:ACME" -> Exchange="NASDAQ", Code="ACME"
//   - "NASDAQ.ACME" -> Exchange="NASDAQ", Code="ACME" (dot separator)
//   - "ACME"        -> Exchange=DefaultExchange, Code="ACME"
func ParseTicker(ticker string) Ticker {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Ticker{}
	}

	if idx := strings.Index(ticker, ":"); idx > 0 {
		exchange := strings.ToUpper(ticker[:idx])
		code := strings.ToUpper(ticker[idx+1:])
		return Ticker{
			Exchange: exchange,
			Code:     code,
			Raw:      ticker,
		}
	}

	// Dot separator only when the prefix is a known exchange, so class
	// shares like BRK.A keep their code intact.
	if idx := strings.Index(ticker, "."); idx > 0 {
		possibleExchange := strings.ToUpper(ticker[:idx])
		if KnownExchanges[possibleExchange] {
			code := strings.ToUpper(ticker[idx+1:])
			return Ticker{
				Exchange: possibleExchange,
				Code:     code,
				Raw:      ticker,
			}
		}
	}

	return Ticker{
		Exchange: DefaultExchange,
		Code:     strings.ToUpper(ticker),
		Raw:      ticker,
	}
}

// String returns the full exchange-qualified ticker string.
func (t Ticker) String() string {
	if t.Exchange == "" || t.Code == "" {
		return t.Code
	}
	return t.Exchange + ":" + t.Code
}

// Valid reports whether the code looks like a listable US symbol.
func (t Ticker) Valid() bool {
	return symbolPattern.MatchString(t.Code)
}

// IsOTC reports whether the ticker trades over the counter. Five-letter
// symbols ending in F (foreign ordinary) or Y (ADR) are treated as OTC when
// no exchange prefix says otherwise.
func (t Ticker) IsOTC() bool {
	if otcExchanges[t.Exchange] {
		return true
	}
	if len(t.Code) == 5 {
		last := t.Code[4]
		return last == 'F' || last == 'Y'
	}
	return false
}

// IsDerivative reports whether the symbol denotes a warrant, right, or unit
// rather than common shares. Follows the NASDAQ fifth-letter convention plus
// the explicit .WS/.WT/.RT/.U suffixes used by consolidated feeds.
func (t Ticker) IsDerivative() bool {
	code := t.Code
	if idx := strings.IndexAny(code, ".-"); idx > 0 {
		switch code[idx+1:] {
		case "WS", "WT", "W", "RT", "R", "U", "UN":
			return true
		}
		code = code[:idx]
	}
	if len(code) == 5 {
		switch code[4] {
		case 'W', 'R', 'U':
			return true
		}
	}
	return false
}

// IsCrypto reports whether the ticker is a cryptocurrency rather than an
// equity.
func (t Ticker) IsCrypto() bool {
	if t.Exchange == "CC" || t.Exchange == "CRYPTO" {
		return true
	}
	if cryptoPairPattern.MatchString(t.Code) {
		return true
	}
	return knownCoins[t.Code]
}

// ParseTickers parses a list of ticker strings, dropping empties.
func ParseTickers(tickers []string) []Ticker {
	result := make([]Ticker, 0, len(tickers))
	for _, t := range tickers {
		if parsed := ParseTicker(t); parsed.Code != "" {
			result = append(result, parsed)
		}
	}
	return result
}
