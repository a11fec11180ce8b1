package common

import (
	"testing"
)

func TestParseTicker(t *testing.T) {
	originalDefault := DefaultExchange
	DefaultExchange = "NASDAQ"
	defer func() { DefaultExchange = originalDefault }()

	tests := []struct {
		input        string
		wantExchange string
		wantCode     string
		wantString   string
	}{
		// Exchange-qualified format with colon separator
		{"NASDAQ:ACME", "NASDAQ", "ACME", "NASDAQ:ACME"},
		{"NYSE:F", "NYSE", "F", "NYSE:F"},
		{"OTC:HYBT", "OTC", "HYBT", "OTC:HYBT"},

		// Exchange-qualified format with dot separator (EXCHANGE.CODE)
		{"NASDAQ.ACME", "NASDAQ", "ACME", "NASDAQ:ACME"},
		{"NYSE.GE", "NYSE", "GE", "NYSE:GE"},

		// Class shares keep the dot when the prefix is not an exchange
		{"BRK.A", "NASDAQ", "BRK.A", "NASDAQ:BRK.A"},

		// Bare symbol defaults to NASDAQ
		{"ACME", "NASDAQ", "ACME", "NASDAQ:ACME"},

		// Case normalization
		{"nasdaq:acme", "NASDAQ", "ACME", "NASDAQ:ACME"},
		{"acme", "NASDAQ", "ACME", "NASDAQ:ACME"},

		// Whitespace handling
		{"  NASDAQ:ACME  ", "NASDAQ", "ACME", "NASDAQ:ACME"},

		// Empty input
		{"", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseTicker(tt.input)

			if result.Exchange != tt.wantExchange {
				t.Errorf("Exchange = %q, want %q", result.Exchange, tt.wantExchange)
			}
			if result.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", result.Code, tt.wantCode)
			}
			if result.String() != tt.wantString {
				t.Errorf("String() = %q, want %q", result.String(), tt.wantString)
			}
		})
	}
}

func TestTickerValid(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ACME", true},
		{"F", true},
		{"BRK.A", true},
		{"LGF-A", true},
		{"TOOLONG", false},
		{"ac me", false},
		{"123", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			tk := Ticker{Code: tt.code}
			if got := tk.Valid(); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestTickerIsDerivative(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"ACMEW", true},  // fifth-letter warrant
		{"ACMER", true},  // fifth-letter right
		{"ACMEU", true},  // fifth-letter unit
		{"ACME.WS", true},
		{"ACME-WT", true},
		{"ACME.U", true},
		{"ACME", false},
		{"GLW", false}, // three letters, W is part of the code
		{"SNOW", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tk := ParseTicker(tt.input)
			if got := tk.IsDerivative(); got != tt.want {
				t.Errorf("IsDerivative(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTickerIsOTC(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"OTC:HYBT", true},
		{"OTCQB:ABCD", true},
		{"PINK:XYZ", true},
		{"TCEHY", true}, // five letters ending in Y, ADR convention
		{"NSRGF", true}, // five letters ending in F, foreign ordinary
		{"NASDAQ:ACME", false},
		{"AAPL", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tk := ParseTicker(tt.input)
			if got := tk.IsOTC(); got != tt.want {
				t.Errorf("IsOTC(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTickerIsCrypto(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"BTC-USD", true},
		{"ETH-USDT", true},
		{"DOGE", true},
		{"CRYPTO:SOL", true},
		{"ACME", false},
		{"RIOT", false}, // crypto miner, still an equity
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tk := ParseTicker(tt.input)
			if got := tk.IsCrypto(); got != tt.want {
				t.Errorf("IsCrypto(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTickers(t *testing.T) {
	input := []string{"NASDAQ:ACME", "NYSE:F", "HYBT", "  ", ""}
	result := ParseTickers(input)

	if len(result) != 3 {
		t.Errorf("ParseTickers returned %d tickers, want 3", len(result))
	}
}
