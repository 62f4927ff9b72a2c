// Package symbol translates user-facing labels into provider symbols and back.
package symbol

import (
	"fmt"
	"regexp"
	"strings"

	"quotelog/internal/provider"
)

var (
	pairPattern   = regexp.MustCompile(`^[a-z]{3}_[a-z]{3}$`)
	tickerPattern = regexp.MustCompile(`^[A-Z0-9.]+$`)
)

// ParsePair validates a currency pair token such as "usd_twd" and returns the
// normalized label with its upper-case currency codes.
func ParsePair(token string) (label, from, to string, err error) {
	label = strings.ToLower(strings.TrimSpace(token))
	if !pairPattern.MatchString(label) {
		return "", "", "", provider.Invalid(token, "currency pair must look like usd_twd")
	}
	up := strings.ToUpper(label)
	return label, up[:3], up[4:], nil
}

// NormalizeTicker upper-cases a ticker token and validates it.
func NormalizeTicker(token string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(token))
	if !tickerPattern.MatchString(t) {
		return "", provider.Invalid(token, "ticker must be letters, digits or '.'")
	}
	return t, nil
}

// Normalize builds the request for label as the given provider spells it.
func Normalize(label string, asset provider.Asset, kind provider.Kind) (provider.Request, error) {
	switch asset {
	case provider.Forex:
		l, from, to, err := ParsePair(label)
		if err != nil {
			return provider.Request{}, err
		}
		req := provider.Request{Label: l, Asset: asset, From: from, To: to, Symbol: from + to}
		if kind == provider.Yahoo {
			req.Symbol = from + to + "=X"
		}
		return req, nil
	case provider.Equity:
		t, err := NormalizeTicker(label)
		if err != nil {
			return provider.Request{}, err
		}
		req := provider.Request{Label: t, Asset: asset, Symbol: t}
		if kind == provider.Yahoo {
			// Yahoo spells class shares BRK-B.
			req.Symbol = strings.ReplaceAll(t, ".", "-")
		}
		return req, nil
	default:
		return provider.Request{}, fmt.Errorf("unknown asset %q", asset)
	}
}

// NormalizeAll normalizes labels in order.
func NormalizeAll(labels []string, asset provider.Asset, kind provider.Kind) ([]provider.Request, error) {
	out := make([]provider.Request, 0, len(labels))
	for _, l := range labels {
		req, err := Normalize(l, asset, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// Index maps provider-returned identifiers back to request labels.
type Index struct {
	byKey map[string]string
}

// NewIndex indexes reqs by symbol, and by the From+To pair for forex requests.
func NewIndex(reqs []provider.Request) *Index {
	idx := &Index{byKey: make(map[string]string, len(reqs)*2)}
	for _, r := range reqs {
		idx.add(r.Symbol, r.Label)
		if r.Asset == provider.Forex {
			idx.add(r.From+r.To, r.Label)
		}
	}
	return idx
}

func (idx *Index) add(key, label string) {
	k := canonical(key)
	if _, ok := idx.byKey[k]; !ok {
		idx.byKey[k] = label
	}
}

// Label resolves key with a loose case-insensitive match, trying '-' and '.'
// substitutions before giving up.
func (idx *Index) Label(key string) (string, bool) {
	k := canonical(key)
	for _, cand := range []string{
		k,
		strings.ReplaceAll(k, "-", "."),
		strings.ReplaceAll(k, ".", "-"),
	} {
		if l, ok := idx.byKey[cand]; ok {
			return l, true
		}
	}
	return "", false
}

func canonical(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
