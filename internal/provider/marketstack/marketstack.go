// Package marketstack reads end-of-day quotes from the Marketstack API.
package marketstack

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
	Name    = "marketstack"
	BaseURL = "https://api.marketstack.com"
	// MaxBatch is the documented symbols-per-call ceiling.
	MaxBatch = 100
)

var priceFields = []string{"last", "close", "adj_close"}

// Provider is a Marketstack client. Forex pairs are requested as FROMTO.
type Provider struct {
	endpoint *httpx.Endpoint
}

// New creates a Marketstack provider authenticated with accessKey.
func New(accessKey string, options ...httpx.Option) *Provider {
	opts := append([]httpx.Option{httpx.WithQuery("access_key", accessKey)}, options...)
	return &Provider{endpoint: httpx.NewEndpoint(BaseURL, opts...)}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Fetch(ctx context.Context, reqs []provider.Request) (provider.Results, error) {
	symbols := make([]string, 0, len(reqs))
	for _, r := range reqs {
		symbols = append(symbols, r.Symbol)
	}
	joined := strings.Join(symbols, ",")

	payload, err := p.endpoint.GetJSON(ctx, "/v1/eod/latest", url.Values{"symbols": {joined}})
	if err != nil {
		return nil, provider.FromHTTP(Name, joined, err)
	}
	log.Debug().Str("provider", Name).Str("symbol", joined).Interface("payload", payload).Msg("raw response")

	// {"error": {"code": "usage_limit_reached", "message": "..."}}
	if e, err := extract.Object(payload, "error"); err == nil {
		return nil, provider.Reported(Name, joined, fmt.Sprintf("%s: %s", extract.String(e, "code"), extract.String(e, "message")))
	}

	root, err := extract.Object(payload)
	if err != nil {
		return nil, provider.Shape(Name, joined, err)
	}
	list, ok := root["data"].([]any)
	if !ok {
		return nil, provider.Shape(Name, joined, fmt.Errorf("%w: data is %T", extract.ErrShapeMismatch, root["data"]))
	}

	out := make(provider.Results, len(list))
	for _, raw := range list {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, provider.Shape(Name, joined, fmt.Errorf("%w: data item is %T", extract.ErrShapeMismatch, raw))
		}
		sym := extract.String(item, "symbol")
		if sym == "" {
			continue
		}
		if _, seen := out[sym]; seen {
			// eod/latest may list several dates; the first is the newest.
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
