package provider

import (
	"context"
	"strings"
)

// Kind selects an upstream quote API.
type Kind string

const (
	Yahoo        Kind = "yahoo"
	AlphaVantage Kind = "alphavantage"
	Marketstack  Kind = "marketstack"
	ExchangeRate Kind = "exchangerate"
)

// Kinds lists every supported provider.
var Kinds = []Kind{Yahoo, AlphaVantage, Marketstack, ExchangeRate}

// ParseKind validates a provider name, ignoring case and surrounding space.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Asset is the kind of quantity a request asks for.
type Asset string

const (
	Forex  Asset = "forex"
	Equity Asset = "equity"
)

// Request is one labelled quote request, already translated to a provider symbol.
// From and To are only set for forex requests.
type Request struct {
	Label  string
	Symbol string
	Asset  Asset
	From   string
	To     string
}

// Outcome is the value or failure a provider reports for one symbol.
type Outcome struct {
	Value float64
	Err   error
}

// Results is keyed by the identifier the provider returned, which may differ in
// case or punctuation from Request.Symbol.
type Results map[string]Outcome

// Provider fetches quotes for a batch of requests.
// A call-level failure (transport, shape, provider-reported) is returned as error;
// per-symbol failures are reported inside Results.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, reqs []Request) (Results, error)
}
