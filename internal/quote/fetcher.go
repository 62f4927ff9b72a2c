// Package quote drives a provider over a list of requests and maps its answers
// back onto the requested labels.
package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quotelog/internal/provider"
	"quotelog/internal/provider/ratelimit"
	"quotelog/internal/symbol"
)

// Result is the value or failure for one requested label.
type Result struct {
	Label string
	Value float64
	Err   error
}

// Fetcher issues sequential, policy-paced calls to one provider.
type Fetcher struct {
	provider provider.Provider
	policy   ratelimit.Policy
}

// NewFetcher creates a Fetcher for p paced by policy.
func NewFetcher(p provider.Provider, policy ratelimit.Policy) *Fetcher {
	return &Fetcher{provider: policy.Wrap(p), policy: policy}
}

// Name returns the underlying provider name.
func (f *Fetcher) Name() string { return f.provider.Name() }

// Fetch returns one Result per request, in request order. A call-level failure
// aborts the remaining batches and is returned as error. Symbols the provider
// could not price, or did not return, carry a MissingQuote error in their Result.
func (f *Fetcher) Fetch(ctx context.Context, reqs []provider.Request) ([]Result, error) {
	byLabel := make(map[string]provider.Outcome, len(reqs))
	for _, batch := range f.policy.Chunk(reqs) {
		res, err := f.provider.Fetch(ctx, batch)
		if err != nil {
			logFailure(f.provider.Name(), err)
			return nil, err
		}
		idx := symbol.NewIndex(batch)
		for key, o := range res {
			label, ok := idx.Label(key)
			if !ok {
				log.Debug().Str("provider", f.provider.Name()).Str("symbol", key).Msg("unmatched symbol in response")
				continue
			}
			byLabel[label] = o
		}
	}

	out := make([]Result, 0, len(reqs))
	for _, r := range reqs {
		o, ok := byLabel[r.Label]
		switch {
		case !ok:
			out = append(out, Result{Label: r.Label, Err: provider.Missing(f.provider.Name(), r.Symbol, errors.New("not in response"))})
		case o.Err != nil:
			out = append(out, Result{Label: r.Label, Err: o.Err})
		default:
			out = append(out, Result{Label: r.Label, Value: o.Value})
		}
	}
	return out, nil
}

// FirstError returns the first failed result's error, logging each failure.
func FirstError(results []Result) error {
	var first error
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		logFailure("", r.Err)
		if first == nil {
			first = fmt.Errorf("%s: %w", r.Label, r.Err)
		}
	}
	return first
}

func logFailure(name string, err error) {
	ev := log.Error().Err(err)
	var pe *provider.Error
	if errors.As(err, &pe) {
		ev = withContext(ev, pe)
	} else if name != "" {
		ev = ev.Str("provider", name)
	}
	ev.Msg("quote fetch failed")
}

func withContext(ev *zerolog.Event, pe *provider.Error) *zerolog.Event {
	ev = ev.Str("error_code", pe.Code.String())
	if pe.Provider != "" {
		ev = ev.Str("provider", pe.Provider)
	}
	if pe.Symbol != "" {
		ev = ev.Str("symbol", pe.Symbol)
	}
	if pe.Status != 0 {
		ev = ev.Int("status", pe.Status)
	}
	if pe.Body != "" {
		ev = ev.Str("body", pe.Body)
	}
	return ev
}
