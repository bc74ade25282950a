package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpClient "github.com/Alias1177/fxguard/internal/platform/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(ClientOptions{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		RequestTimeout: time.Second,
		RequestsPerSec: 100,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	})
}

func TestGetSeries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "EUR/USD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "15min", r.URL.Query().Get("interval"))
		assert.Equal(t, "3", r.URL.Query().Get("outputsize"))
		assert.Equal(t, "apikey test-key", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("apikey"))

		w.Write([]byte(`{
			"meta": {"symbol": "EUR/USD", "interval": "15min"},
			"values": [
				{"datetime": "2024-01-08 10:30:00", "open": "1.0950", "high": "1.0960", "low": "1.0940", "close": "1.0955"},
				{"datetime": "2024-01-08 10:15:00", "open": "1.0945", "high": "1.0952", "low": "1.0941", "close": "1.0950"},
				{"datetime": "2024-01-08 10:00:00", "open": "1.0940", "high": "1.0948", "low": "1.0935", "close": "1.0945"}
			],
			"status": "ok"
		}`))
	})

	candles, err := client.GetSeries(context.Background(), "EUR/USD", "15min", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, "2024-01-08 10:00:00", candles[0].Datetime)
	assert.Equal(t, "2024-01-08 10:30:00", candles[2].Datetime)
	assert.Equal(t, "1.0955", candles[2].Close)
	assert.Empty(t, candles[0].Volume)
}

func TestGetPriceAndQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price":
			w.Write([]byte(`{"price": "1.08500"}`))
		case "/quote":
			w.Write([]byte(`{"symbol": "EUR/USD", "open": "1.084", "high": "1.086", "low": "1.083", "close": "1.085", "volume": "0"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	price, err := client.GetPrice(context.Background(), "EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, "1.08500", price)

	quote, err := client.GetQuote(context.Background(), "EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, "EUR/USD", quote.Symbol)
	assert.Equal(t, "1.086", quote.High)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		status        int
		wantRateLimit bool
	}{
		{"credits exhausted", `{"code": 429, "message": "You have run out of API credits", "status": "error"}`, http.StatusOK, true},
		{"bad symbol", `{"code": 400, "message": "symbol not found", "status": "error"}`, http.StatusOK, false},
		{"http 429", ``, http.StatusTooManyRequests, true},
		{"empty values", `{"values": [], "status": "ok"}`, http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.GetSeries(context.Background(), "EUR/USD", "15min", 10)
			require.Error(t, err)
			assert.Equal(t, tt.wantRateLimit, errors.Is(err, httpClient.ErrRateLimited))
		})
	}
}

func TestErrorsDoNotCarryAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientOptions{
		APIKey:         "secret-key",
		BaseURL:        srv.URL,
		RequestTimeout: 50 * time.Millisecond,
		RequestsPerSec: 100,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	})

	_, err := client.GetPrice(context.Background(), "EUR/USD")
	require.Error(t, err)
	assert.ErrorIs(t, err, httpClient.ErrTimeout)
	assert.NotContains(t, err.Error(), "secret-key")
}
