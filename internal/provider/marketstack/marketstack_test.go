package marketstack_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"quotelog/internal/extract"
	"quotelog/internal/httpx"
	"quotelog/internal/httpx/httpxmock"
	"quotelog/internal/provider"
	"quotelog/internal/provider/marketstack"
)

func jsonResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(body))
	return &http.Response{StatusCode: status, Body: io.NopCloser(buffer)}
}

var requests = []provider.Request{
	{Label: "AAPL", Symbol: "AAPL", Asset: provider.Equity},
	{Label: "MSFT", Symbol: "MSFT", Asset: provider.Equity},
	{Label: "BRK.B", Symbol: "BRK.B", Asset: provider.Equity},
}

func TestFetch(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := httpxmock.NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/v1/eod/latest", req.URL.Path)
			require.Equal(t, "test-key", req.URL.Query().Get("access_key"))
			require.Equal(t, "AAPL,MSFT,BRK.B", req.URL.Query().Get("symbols"))

			return jsonResponse(t, http.StatusOK, map[string]any{
				"pagination": map[string]any{"limit": 100, "count": 4},
				"data": []any{
					map[string]any{"symbol": "AAPL", "close": 150.2, "date": "2024-01-02T00:00:00+0000"},
					map[string]any{"symbol": "AAPL", "close": 149.0, "date": "2024-01-01T00:00:00+0000"},
					map[string]any{"symbol": "MSFT", "close": nil, "adj_close": 310.0},
					map[string]any{"symbol": "BRK.B", "close": nil},
				},
			}), nil
		}).
		Times(1)

	p := marketstack.New("test-key", httpx.WithHTTPClient(httpClient))
	require.Equal(t, marketstack.Name, p.Name())

	// Act
	res, err := p.Fetch(t.Context(), requests)
	require.NoError(t, err)

	// Assert: newest row wins, missing price is reported per symbol
	require.InEpsilon(t, 150.2, res["AAPL"].Value, 1e-9)
	require.InEpsilon(t, 310.0, res["MSFT"].Value, 1e-9)
	require.ErrorIs(t, res["BRK.B"].Err, provider.ErrMissingQuote)
	require.ErrorIs(t, res["BRK.B"].Err, extract.ErrFieldMissing)
}

func TestFetch_ReportedError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(t, http.StatusOK, map[string]any{
			"error": map[string]any{"code": "usage_limit_reached", "message": "Your monthly usage limit has been reached."},
		}), nil).
		Times(1)

	p := marketstack.New("test-key", httpx.WithHTTPClient(httpClient))
	res, err := p.Fetch(t.Context(), requests)
	require.ErrorIs(t, err, provider.ErrProviderReported)
	require.ErrorContains(t, err, "usage_limit_reached")
	require.Nil(t, res)
}

func TestFetch_UnauthorizedIsTransport(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(t, http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"code": "invalid_access_key"},
		}), nil).
		Times(1)

	p := marketstack.New("bad-key", httpx.WithHTTPClient(httpClient))
	_, err := p.Fetch(t.Context(), requests)
	require.ErrorIs(t, err, provider.ErrTransport)

	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, http.StatusUnauthorized, pe.Status)
	require.Contains(t, pe.Body, "invalid_access_key")
}

func TestFetch_MissingData(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(t, http.StatusOK, map[string]any{"pagination": map[string]any{}}), nil).
		Times(1)

	p := marketstack.New("test-key", httpx.WithHTTPClient(httpClient))
	_, err := p.Fetch(t.Context(), requests)
	require.ErrorIs(t, err, provider.ErrPayloadShape)
}
