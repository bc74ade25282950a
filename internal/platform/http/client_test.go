package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return NewClient(ClientOptions{
		ConnectTimeout: time.Second,
		Timeout:        100 * time.Millisecond,
		RequestsPerSec: 100,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	})
}

func TestDoRequest(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		wantErr      error
		wantStatus   int
		wantAttempts int32
	}{
		{"ok first try", []int{200}, nil, 0, 1},
		{"rate limited then ok", []int{429, 429, 200}, nil, 0, 3},
		{"server error then ok", []int{503, 200}, nil, 0, 2},
		{"not found is permanent", []int{404}, nil, 404, 1},
		{"rate limited exhausts attempts", []int{429, 429, 429, 429}, ErrRateLimited, 429, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.statuses[int(n)-1])
			}))
			defer srv.Close()

			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
			require.NoError(t, err)

			resp, err := testClient().DoRequest(context.Background(), req)
			assert.Equal(t, tt.wantAttempts, atomic.LoadInt32(&calls))

			if tt.wantStatus == 0 {
				require.NoError(t, err)
				resp.Body.Close()
				return
			}

			require.Error(t, err)
			var statusErr *HTTPStatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDoRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = testClient().DoRequest(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestDoRequestCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = testClient().DoRequest(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}
