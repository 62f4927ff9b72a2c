// Package alphavantage reads forex rates (CURRENCY_EXCHANGE_RATE) and equity
// quotes (GLOBAL_QUOTE) from Alpha Vantage, one symbol per call.
package alphavantage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"quotelog/internal/extract"
	"quotelog/internal/httpx"
	"quotelog/internal/provider"
)

const (
	Name    = "alphavantage"
	BaseURL = "https://www.alphavantage.co"
	// MaxBatch is 1: every endpoint takes a single symbol.
	MaxBatch = 1
)

var (
	rateShape = extract.Shape{
		Path:   []string{"Realtime Currency Exchange Rate"},
		Fields: []string{"5. Exchange Rate", "8. Bid Price", "9. Ask Price"},
	}
	quoteShape = extract.Shape{
		Path:   []string{"Global Quote"},
		Fields: []string{"05. price", "08. previous close"},
	}
)

// reportKeys are top-level keys Alpha Vantage uses instead of data when it
// rejects a call. "Note" and "Information" carry rate-limit notices.
var reportKeys = []string{"Error Message", "Note", "Information"}

// Provider is an Alpha Vantage client.
type Provider struct {
	endpoint *httpx.Endpoint
}

// New creates an Alpha Vantage provider authenticated with key.
func New(key string, options ...httpx.Option) *Provider {
	opts := append([]httpx.Option{httpx.WithQuery("apikey", key)}, options...)
	return &Provider{endpoint: httpx.NewEndpoint(BaseURL, opts...)}
}

func (p *Provider) Name() string { return Name }

// Fetch calls Alpha Vantage once per request, in order. Any call-level failure
// stops the loop.
func (p *Provider) Fetch(ctx context.Context, reqs []provider.Request) (provider.Results, error) {
	out := make(provider.Results, len(reqs))
	for _, r := range reqs {
		var (
			key string
			o   provider.Outcome
			err error
		)
		switch r.Asset {
		case provider.Forex:
			key, o, err = p.rate(ctx, r)
		case provider.Equity:
			key, o, err = p.quote(ctx, r)
		default:
			err = provider.Invalid(r.Label, fmt.Sprintf("unknown asset %q", r.Asset))
		}
		if err != nil {
			return nil, err
		}
		out[key] = o
	}
	return out, nil
}

func (p *Provider) rate(ctx context.Context, r provider.Request) (string, provider.Outcome, error) {
	q := url.Values{
		"function":      {"CURRENCY_EXCHANGE_RATE"},
		"from_currency": {r.From},
		"to_currency":   {r.To},
	}
	obj, err := p.get(ctx, r.Symbol, q, rateShape.Path)
	if err != nil {
		return "", provider.Outcome{}, err
	}
	key := r.Symbol
	if from, to := extract.String(obj, "1. From_Currency Code"), extract.String(obj, "3. To_Currency Code"); from != "" && to != "" {
		key = from + to
	}
	v, err := extract.Value(obj, rateShape.Fields...)
	if err != nil {
		return key, provider.Outcome{Err: provider.Missing(Name, r.Symbol, err)}, nil
	}
	return key, provider.Outcome{Value: v}, nil
}

func (p *Provider) quote(ctx context.Context, r provider.Request) (string, provider.Outcome, error) {
	q := url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {r.Symbol},
	}
	obj, err := p.get(ctx, r.Symbol, q, quoteShape.Path)
	if err != nil {
		return "", provider.Outcome{}, err
	}
	key := r.Symbol
	if s := extract.String(obj, "01. symbol"); s != "" {
		key = s
	}
	v, err := extract.Value(obj, quoteShape.Fields...)
	if err != nil {
		return key, provider.Outcome{Err: provider.Missing(Name, r.Symbol, err)}, nil
	}
	return key, provider.Outcome{Value: v}, nil
}

// get performs the call, surfaces reported errors, and returns the data object.
func (p *Provider) get(ctx context.Context, symbol string, q url.Values, path []string) (map[string]any, error) {
	payload, err := p.endpoint.GetJSON(ctx, "/query", q)
	if err != nil {
		return nil, provider.FromHTTP(Name, symbol, err)
	}
	log.Debug().Str("provider", Name).Str("symbol", symbol).Interface("payload", payload).Msg("raw response")

	if root, ok := payload.(map[string]any); ok {
		for _, k := range reportKeys {
			if msg := extract.String(root, k); msg != "" {
				return nil, provider.Reported(Name, symbol, fmt.Sprintf("%s: %s", k, msg))
			}
		}
	}
	obj, err := extract.Object(payload, path...)
	if err != nil {
		return nil, provider.Shape(Name, symbol, err)
	}
	return obj, nil
}
