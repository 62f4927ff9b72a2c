// Package app wires configuration, providers and sinks into a single run.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quotelog/internal/config"
	"quotelog/internal/csvsink"
	"quotelog/internal/history"
	"quotelog/internal/httpx"
	"quotelog/internal/provider"
	"quotelog/internal/provider/alphavantage"
	"quotelog/internal/provider/exchangerate"
	"quotelog/internal/provider/marketstack"
	"quotelog/internal/provider/ratelimit"
	"quotelog/internal/provider/yahoo"
	"quotelog/internal/quote"
	"quotelog/internal/row"
	"quotelog/internal/symbol"
)

// App performs runs against one validated configuration.
type App struct {
	cfg        config.Config
	httpClient httpx.HTTPClient
	now        func() time.Time
	newRunID   func() string
	fetchers   map[provider.Kind]*quote.Fetcher
}

// Option configures an App.
type Option func(*App)

// WithClock replaces time.Now for the row timestamp.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// WithHTTPClient replaces the HTTP client shared by all providers.
func WithHTTPClient(httpClient httpx.HTTPClient) Option {
	return func(a *App) {
		if httpClient != nil {
			a.httpClient = httpClient
		}
	}
}

// New validates cfg and returns an App.
func New(cfg config.Config, options ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		cfg:      cfg,
		now:      time.Now,
		newRunID: uuid.NewString,
		fetchers: map[provider.Kind]*quote.Fetcher{},
	}
	for _, option := range options {
		option(a)
	}
	if a.httpClient == nil {
		a.httpClient = httpx.New(cfg.RequestTimeout())
	}
	return a, nil
}

// Summary describes a completed run.
type Summary struct {
	RunID string
	// PreviousRunID is the last run found in history, empty without one.
	PreviousRunID string
	Labels        []string
	Row           row.Row
	Written       bool
}

// Run fetches every configured label and persists one row. Any failure aborts
// the run before the output file is touched.
func (a *App) Run(ctx context.Context) (Summary, error) {
	runID := a.newRunID()
	logger := log.With().Str("run_id", runID).Logger()

	forex, err := a.requests(a.cfg.Forex, provider.Forex)
	if err != nil {
		return Summary{}, err
	}
	equity, err := a.requests(a.cfg.Equity, provider.Equity)
	if err != nil {
		return Summary{}, err
	}
	if len(forex)+len(equity) == 0 {
		return Summary{}, errors.New("no currency pairs or tickers configured")
	}

	var (
		labels  []string
		results []quote.Result
		sources = map[string]string{}
	)
	for _, group := range []struct {
		input config.Input
		reqs  []provider.Request
	}{
		{a.cfg.Forex, forex},
		{a.cfg.Equity, equity},
	} {
		if len(group.reqs) == 0 {
			continue
		}
		f := a.fetcher(mustKind(group.input.Provider))
		logger.Info().Str("provider", f.Name()).Int("symbols", len(group.reqs)).Msg("fetching quotes")
		res, err := f.Fetch(ctx, group.reqs)
		if err != nil {
			return Summary{}, err
		}
		for _, r := range group.reqs {
			labels = append(labels, r.Label)
			sources[r.Label] = f.Name()
		}
		results = append(results, res...)
	}
	if err := quote.FirstError(results); err != nil {
		return Summary{}, err
	}

	observedAt := a.now()
	out, err := row.Build(observedAt, labels, results)
	if err != nil {
		return Summary{}, err
	}

	mode, _ := csvsink.ParseMode(a.cfg.Output.Mode)
	sink := csvsink.Sink{Path: a.cfg.Output.Path, Mode: mode}
	written, err := sink.Write(row.Header(labels), out)
	if err != nil {
		return Summary{}, fmt.Errorf("write %s: %w", sink.Path, err)
	}
	logger.Info().Str("path", sink.Path).Str("mode", string(mode)).Bool("written", written).Strs("row", out).Msg("run complete")

	prevID := a.record(ctx, history.Run{ID: runID, ObservedAt: observedAt, Observations: observations(results, sources)})

	return Summary{RunID: runID, PreviousRunID: prevID, Labels: labels, Row: out, Written: written}, nil
}

// requests loads and normalizes the labels for one asset class. Inline labels
// take precedence over the file.
func (a *App) requests(in config.Input, asset provider.Asset) ([]provider.Request, error) {
	var (
		labels []string
		err    error
	)
	if len(in.Labels) > 0 {
		labels, err = symbol.ReadLabels(strings.NewReader(strings.Join(in.Labels, "\n")), asset, in.SkipInvalid)
	} else {
		labels, err = symbol.LoadLabels(in.File, asset, in.SkipInvalid)
	}
	if err != nil {
		return nil, err
	}
	return symbol.NormalizeAll(labels, asset, mustKind(in.Provider))
}

// fetcher returns the Fetcher for kind, sharing it when forex and equities use
// the same provider so pacing spans both.
func (a *App) fetcher(kind provider.Kind) *quote.Fetcher {
	if f, ok := a.fetchers[kind]; ok {
		return f
	}
	settings := a.cfg.Providers.Get(kind)
	opts := []httpx.Option{
		httpx.WithHTTPClient(a.httpClient),
		httpx.WithBaseURL(settings.Endpoint),
	}

	var (
		p        provider.Provider
		maxBatch int
	)
	switch kind {
	case provider.Yahoo:
		p, maxBatch = yahoo.New(opts...), yahoo.MaxBatch
	case provider.AlphaVantage:
		p, maxBatch = alphavantage.New(settings.APIKey, opts...), alphavantage.MaxBatch
	case provider.Marketstack:
		p, maxBatch = marketstack.New(settings.APIKey, opts...), marketstack.MaxBatch
	case provider.ExchangeRate:
		p, maxBatch = exchangerate.New(settings.APIKey, opts...), exchangerate.MaxBatch
	}

	f := quote.NewFetcher(p, policy(settings, maxBatch))
	a.fetchers[kind] = f
	return f
}

func policy(s config.Provider, maxBatch int) ratelimit.Policy {
	size := s.MaxItemsPerRequest
	if size <= 0 || size > maxBatch {
		size = maxBatch
	}
	return ratelimit.Policy{
		MinInterval:       time.Duration(s.MinRequestIntervalSec) * time.Second,
		RequestsPerMinute: s.MaxRequestsPerMinute,
		Burst:             s.Burst,
		MaxBatch:          size,
	}
}

// record stores run and returns the id of the run recorded before it, if any.
// Moves against that run are logged.
func (a *App) record(ctx context.Context, run history.Run) string {
	if a.cfg.History.Path == "" {
		return ""
	}
	store, err := history.New(a.cfg.History.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", a.cfg.History.Path).Msg("history unavailable")
		return ""
	}
	defer store.Close()

	prev, err := store.Latest(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		log.Warn().Err(err).Msg("previous run unreadable")
	default:
		logMoves(prev, run)
	}

	if err := store.Record(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("history not recorded")
	}
	return prev.ID
}

func logMoves(prev, cur history.Run) {
	before := make(map[string]float64, len(prev.Observations))
	for _, o := range prev.Observations {
		before[o.Label] = o.Value
	}
	for _, o := range cur.Observations {
		if v, ok := before[o.Label]; ok && v != o.Value {
			log.Info().Str("label", o.Label).Float64("previous", v).Float64("current", o.Value).Str("since_run", prev.ID).Msg("quote moved")
		}
	}
}

func observations(results []quote.Result, sources map[string]string) []history.Observation {
	out := make([]history.Observation, 0, len(results))
	for _, r := range results {
		out = append(out, history.Observation{Label: r.Label, Provider: sources[r.Label], Value: r.Value})
	}
	return out
}

// mustKind parses a provider name already checked by config.Validate.
func mustKind(s string) provider.Kind {
	k, ok := provider.ParseKind(s)
	if !ok {
		panic(fmt.Sprintf("unvalidated provider %q", s))
	}
	return k
}
