// Package yahoo reads quotes from Yahoo Finance's public v7 quote endpoint.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"quotelog/internal/extract"
	"quotelog/internal/httpx"
	"quotelog/internal/provider"
)

const (
	Name    = "yahoo"
	BaseURL = "https://query1.finance.yahoo.com"
	// MaxBatch is the most symbols sent in one quote call.
	MaxBatch = 50
)

// priceFields are tried in order; the first usable one wins.
var priceFields = []string{"regularMarketPrice", "postMarketPrice", "regularMarketPreviousClose", "bid", "ask"}

// Provider is a batch-capable Yahoo Finance quote client.
type Provider struct {
	endpoint *httpx.Endpoint
}

// New creates a Yahoo provider. No credential is needed.
func New(options ...httpx.Option) *Provider {
	return &Provider{endpoint: httpx.NewEndpoint(BaseURL, options...)}
}

func (p *Provider) Name() string { return Name }

// Fetch issues one quote call for all reqs. Forex symbols use the FROMTO=X form.
func (p *Provider) Fetch(ctx context.Context, reqs []provider.Request) (provider.Results, error) {
	symbols := make([]string, 0, len(reqs))
	for _, r := range reqs {
		symbols = append(symbols, r.Symbol)
	}
	joined := strings.Join(symbols, ",")

	payload, err := p.endpoint.GetJSON(ctx, "/v7/finance/quote", url.Values{"symbols": {joined}})
	if err != nil {
		return nil, provider.FromHTTP(Name, joined, err)
	}
	log.Debug().Str("provider", Name).Str("symbol", joined).Interface("payload", payload).Msg("raw response")

	// {"finance": {"error": {"code": "Unauthorized", "description": "..."}}}
	if fin, err := extract.Object(payload, "finance", "error"); err == nil {
		return nil, provider.Reported(Name, joined, describe(fin, "code", "description"))
	}

	// {"quoteResponse": {"result": [{"symbol": "AAPL", "regularMarketPrice": 150.2}], "error": null}}
	resp, err := extract.Object(payload, "quoteResponse")
	if err != nil {
		return nil, provider.Shape(Name, joined, err)
	}
	if e, ok := resp["error"]; ok && e != nil {
		if obj, isObj := e.(map[string]any); isObj {
			return nil, provider.Reported(Name, joined, describe(obj, "code", "description"))
		}
		return nil, provider.Reported(Name, joined, fmt.Sprint(e))
	}
	list, ok := resp["result"].([]any)
	if !ok {
		return nil, provider.Shape(Name, joined, fmt.Errorf("%w: quoteResponse.result is %T", extract.ErrShapeMismatch, resp["result"]))
	}

	out := make(provider.Results, len(list))
	for _, raw := range list {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, provider.Shape(Name, joined, fmt.Errorf("%w: result item is %T", extract.ErrShapeMismatch, raw))
		}
		sym := extract.String(item, "symbol")
		if sym == "" {
			log.Debug().Str("provider", Name).Msg("result item without symbol")
			continue
		}
		v, err := extract.Value(item, priceFields...)
		if err != nil {
			out[sym] = provider.Outcome{Err: provider.Missing(Name, sym, err)}
			continue
		}
		out[sym] = provider.Outcome{Value: v}
	}
	return out, nil
}

func describe(obj map[string]any, fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v, ok := obj[f]; ok && v != nil {
			parts = append(parts, fmt.Sprint(v))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprint(obj)
	}
	return strings.Join(parts, ": ")
}
