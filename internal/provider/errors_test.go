package provider_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"quotelog/internal/httpx"
	"quotelog/internal/provider"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("run: %w", provider.Reported("alphavantage", "AAPL", "Thank you for using Alpha Vantage!"))
	require.ErrorIs(t, err, provider.ErrProviderReported)
	require.NotErrorIs(t, err, provider.ErrTransport)
	require.EqualError(t, errors.Unwrap(err), "provider reported from alphavantage for AAPL: Thank you for using Alpha Vantage!")
}

func TestFromHTTP(t *testing.T) {
	t.Parallel()

	statusErr := &httpx.StatusError{Method: http.MethodGet, URL: "https://example.test/q", StatusCode: http.StatusTooManyRequests, Body: "slow down"}

	tests := []struct {
		name   string
		err    error
		want   *provider.Error
		status int
	}{
		{name: "status", err: statusErr, want: provider.ErrTransport, status: http.StatusTooManyRequests},
		{name: "decode", err: fmt.Errorf("%w: <html>", httpx.ErrDecode), want: provider.ErrPayloadShape},
		{name: "network", err: errors.New("connection refused"), want: provider.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := provider.FromHTTP("yahoo", "AAPL", tt.err)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, tt.err)

			var pe *provider.Error
			require.ErrorAs(t, err, &pe)
			require.Equal(t, "yahoo", pe.Provider)
			require.Equal(t, "AAPL", pe.Symbol)
			require.Equal(t, tt.status, pe.Status)
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, ok := provider.ParseKind(" Marketstack ")
	require.True(t, ok)
	require.Equal(t, provider.Marketstack, k)

	_, ok = provider.ParseKind("bloomberg")
	require.False(t, ok)
}
