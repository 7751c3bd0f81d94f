package resilience

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotisserie/eris"
)

func TestDoValSingleAttemptByDefault(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), DefaultRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("boom"), http.StatusBadGateway)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValRetriesTransient(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	calls := 0
	got, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(eris.New("boom"), http.StatusServiceUnavailable)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDoValStopsOnPermanentError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	calls := 0
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second}
	calls := 0
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("boom"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoWrapsDoVal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("plain")))
	assert.True(t, IsTransient(NewTransientError(eris.New("x"), 503)))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	assert.False(t, IsTransientHTTPStatus(404))
	assert.False(t, IsTransientHTTPStatus(200))
}
