package ratelimit

import (
	"context"
	"sync"
	"time"

	"quotelog/internal/provider"
)

// Policy is the pacing and batching applied to one provider.
// The zero Policy sends everything in one call with no delay.
type Policy struct {
	// MinInterval is the minimum gap between the end of one call and the start
	// of the next.
	MinInterval time.Duration
	// RequestsPerMinute, when positive, also caps the call rate with a token
	// budget holding at most Burst calls.
	RequestsPerMinute int
	Burst             int
	// MaxBatch is the most requests sent in one call; 0 means no limit.
	MaxBatch int
}

// Wrap returns p behind a Gate enforcing the policy, or p itself when the
// policy does not pace calls.
func (pol Policy) Wrap(p provider.Provider) provider.Provider {
	if pol.MinInterval <= 0 && pol.RequestsPerMinute <= 0 {
		return p
	}
	g := &Gate{P: p, interval: pol.MinInterval}
	if pol.RequestsPerMinute > 0 {
		burst := max(pol.Burst, 1)
		g.perCall = time.Minute / time.Duration(pol.RequestsPerMinute)
		g.capacity = float64(burst)
		g.tokens = float64(burst)
	}
	return g
}

// Chunk splits reqs into batches of at most MaxBatch, preserving order.
func (pol Policy) Chunk(reqs []provider.Request) [][]provider.Request {
	size := pol.MaxBatch
	if size <= 0 || len(reqs) <= size {
		if len(reqs) == 0 {
			return nil
		}
		return [][]provider.Request{reqs}
	}
	out := make([][]provider.Request, 0, (len(reqs)+size-1)/size)
	for i := 0; i < len(reqs); i += size {
		j := min(i+size, len(reqs))
		out = append(out, reqs[i:j])
	}
	return out
}

// Gate holds each call to P until both the minimum interval since the last
// call and the per-minute budget allow it.
type Gate struct {
	P provider.Provider

	interval time.Duration
	// perCall is the time one budget token takes to refill; zero disables the budget.
	perCall  time.Duration
	capacity float64

	mu       sync.Mutex
	tokens   float64
	refilled time.Time
	lastDone time.Time
}

func (g *Gate) Name() string { return g.P.Name() }

func (g *Gate) Fetch(ctx context.Context, reqs []provider.Request) (provider.Results, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	res, err := g.P.Fetch(ctx, reqs)
	g.mu.Lock()
	g.lastDone = time.Now()
	g.mu.Unlock()
	return res, err
}

// wait blocks until a call may start and takes one budget token for it.
func (g *Gate) wait(ctx context.Context) error {
	for {
		delay := g.reserve(time.Now())
		if delay <= 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve returns how long to wait at now, or takes a token and returns 0.
func (g *Gate) reserve(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	var delay time.Duration
	if g.interval > 0 && !g.lastDone.IsZero() {
		delay = g.lastDone.Add(g.interval).Sub(now)
	}
	if g.perCall > 0 {
		if !g.refilled.IsZero() {
			g.tokens += float64(now.Sub(g.refilled)) / float64(g.perCall)
			g.tokens = min(g.tokens, g.capacity)
		}
		g.refilled = now
		if g.tokens < 1 {
			delay = max(delay, time.Duration((1-g.tokens)*float64(g.perCall)))
		}
	}
	if delay > 0 {
		return max(delay, time.Millisecond)
	}
	if g.perCall > 0 {
		g.tokens--
	}
	return 0
}
