// Package exchangerate reads currency conversion rates from an
// exchangerate.host-compatible /convert endpoint.
package exchangerate

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"quotelog/internal/extract"
	"quotelog/internal/httpx"
	"quotelog/internal/provider"
)

const (
	Name    = "exchangerate"
	BaseURL = "https://api.exchangerate.host"
	// MaxBatch is 1: /convert takes a single pair.
	MaxBatch = 1
)

var (
	infoShape   = extract.Shape{Path: []string{"info"}, Fields: []string{"rate", "quote"}}
	resultShape = extract.Shape{Fields: []string{"result"}}
)

// Provider is a forex-only client.
type Provider struct {
	endpoint *httpx.Endpoint
}

// New creates the provider. accessKey may be empty for keyless deployments.
func New(accessKey string, options ...httpx.Option) *Provider {
	opts := append([]httpx.Option{httpx.WithQuery("access_key", accessKey)}, options...)
	return &Provider{endpoint: httpx.NewEndpoint(BaseURL, opts...)}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Fetch(ctx context.Context, reqs []provider.Request) (provider.Results, error) {
	out := make(provider.Results, len(reqs))
	for _, r := range reqs {
		if r.Asset != provider.Forex {
			return nil, provider.Invalid(r.Label, "exchangerate serves currency pairs only")
		}
		key, o, err := p.convert(ctx, r)
		if err != nil {
			return nil, err
		}
		out[key] = o
	}
	return out, nil
}

func (p *Provider) convert(ctx context.Context, r provider.Request) (string, provider.Outcome, error) {
	q := url.Values{"from": {r.From}, "to": {r.To}, "amount": {"1"}}
	payload, err := p.endpoint.GetJSON(ctx, "/convert", q)
	if err != nil {
		return "", provider.Outcome{}, provider.FromHTTP(Name, r.Symbol, err)
	}
	log.Debug().Str("provider", Name).Str("symbol", r.Symbol).Interface("payload", payload).Msg("raw response")

	root, err := extract.Object(payload)
	if err != nil {
		return "", provider.Outcome{}, provider.Shape(Name, r.Symbol, err)
	}
	// {"success": false, "error": {"code": 101, "type": "missing_access_key", "info": "..."}}
	if ok, isBool := root["success"].(bool); isBool && !ok {
		msg := "success=false"
		if e, err := extract.Object(root, "error"); err == nil {
			msg = fmt.Sprintf("%v %s: %s", e["code"], extract.String(e, "type"), extract.String(e, "info"))
		}
		return "", provider.Outcome{}, provider.Reported(Name, r.Symbol, msg)
	}

	key := r.Symbol
	if query, err := extract.Object(root, "query"); err == nil {
		if from, to := extract.String(query, "from"), extract.String(query, "to"); from != "" && to != "" {
			key = from + to
		}
	}

	v, err := extract.Float(root, infoShape)
	if errors.Is(err, extract.ErrShapeMismatch) || errors.Is(err, extract.ErrFieldMissing) {
		v, err = extract.Float(root, resultShape)
	}
	if err != nil {
		return key, provider.Outcome{Err: provider.Missing(Name, r.Symbol, err)}, nil
	}
	return key, provider.Outcome{Value: v}, nil
}
