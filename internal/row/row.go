// Package row formats one observation as CSV fields.
package row

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"quotelog/internal/quote"
)

// TimeLayout is ISO-8601 with milliseconds and a numeric offset.
const TimeLayout = "2006-01-02T15:04:05.000-07:00"

// Row is the timestamp field followed by one value per label.
type Row []string

// Header returns "datetime" followed by the lower-cased labels.
func Header(labels []string) []string {
	h := make([]string, 0, len(labels)+1)
	h = append(h, "datetime")
	for _, l := range labels {
		h = append(h, strings.ToLower(l))
	}
	return h
}

// Build assembles the row for ts in label order. Every label needs a
// successful result; a partial row is never returned.
func Build(ts time.Time, labels []string, results []quote.Result) (Row, error) {
	byLabel := make(map[string]quote.Result, len(results))
	for _, r := range results {
		byLabel[r.Label] = r
	}
	out := make(Row, 0, len(labels)+1)
	out = append(out, FormatTime(ts))
	for _, l := range labels {
		r, ok := byLabel[l]
		if !ok {
			return nil, fmt.Errorf("no result for %s", l)
		}
		if r.Err != nil {
			return nil, fmt.Errorf("%s: %w", l, r.Err)
		}
		out = append(out, FormatValue(r.Value))
	}
	return out, nil
}

// FormatTime renders ts with TimeLayout.
func FormatTime(ts time.Time) string { return ts.Format(TimeLayout) }

// FormatValue renders v with the shortest round-tripping precision, never in
// exponent form and always with a fractional part.
func FormatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !math.IsInf(v, 0) && !math.IsNaN(v) && !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
