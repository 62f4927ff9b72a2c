package httpx_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"quotelog/internal/httpx"
	"quotelog/internal/httpx/httpxmock"
)

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestGetJSON(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := httpxmock.NewMockHTTPClient(ctrl)

	// Assert: the endpoint query and headers are merged into the request
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.True(t, strings.HasPrefix(req.URL.String(), "http://localhost:8080/v1/quote?"))
			require.Equal(t, "secret", req.URL.Query().Get("apikey"))
			require.Equal(t, "AAPL", req.URL.Query().Get("symbol"))
			require.Equal(t, "bar", req.Header.Get("foo"))
			return response(http.StatusOK, `{"price": 150.25}`), nil
		}).
		Times(1)

	endpoint := httpx.NewEndpoint("https://example.invalid",
		httpx.WithHTTPClient(httpClient),
		httpx.WithBaseURL("http://localhost:8080/"),
		httpx.WithHeader(http.Header{"foo": []string{"bar"}}),
		httpx.WithQuery("apikey", "secret"),
	)

	// Act
	body, err := endpoint.GetJSON(t.Context(), "/v1/quote", url.Values{"symbol": {"AAPL"}})
	require.NoError(t, err)

	// Assert: numbers are preserved as json.Number
	m, ok := body.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "150.25", fmt.Sprint(m["price"]))
}

func TestGetJSON_ErrUnexpectedStatusCode(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(response(http.StatusTooManyRequests, "slow down"), nil).
		Times(1)

	endpoint := httpx.NewEndpoint("http://localhost", httpx.WithHTTPClient(httpClient), httpx.WithQuery("apikey", "secret"))
	body, err := endpoint.GetJSON(t.Context(), "/query", nil)
	require.Error(t, err)
	require.Nil(t, body)

	// Assert: status and body snippet are captured, credentials are not
	var se *httpx.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	require.Equal(t, "slow down", se.Body)
	require.NotContains(t, se.URL, "secret")
}

func TestGetJSON_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, fmt.Errorf("connection refused")).
		Times(1)

	endpoint := httpx.NewEndpoint("http://localhost", httpx.WithHTTPClient(httpClient))
	body, err := endpoint.GetJSON(t.Context(), "/query", nil)
	require.ErrorContains(t, err, "connection refused")
	require.Nil(t, body)
}

func TestGetJSON_ErrDecodingResponse(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(response(http.StatusOK, "invalid json"), nil).
		Times(1)

	endpoint := httpx.NewEndpoint("http://localhost", httpx.WithHTTPClient(httpClient))
	body, err := endpoint.GetJSON(t.Context(), "/query", nil)
	require.ErrorIs(t, err, httpx.ErrDecode)
	require.Nil(t, body)
}

func TestGetJSON_ErrCreatingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	endpoint := httpx.NewEndpoint(string([]rune{0x7f}), httpx.WithHTTPClient(httpClient))
	body, err := endpoint.GetJSON(t.Context(), "/query", nil)
	require.Error(t, err)
	require.Nil(t, body)
}
