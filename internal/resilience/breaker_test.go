package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotisserie/eris"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	failure := eris.New("boom")

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.Record(failure)
	}
	assert.Equal(t, BreakerClosed, b.State())

	require.NoError(t, b.Allow())
	b.Record(failure)
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	failure := eris.New("boom")

	b.Record(failure)
	b.Record(failure)
	b.Record(nil)
	assert.Zero(t, b.Failures())

	b.Record(failure)
	b.Record(failure)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.Record(eris.New("boom"))
	require.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, b.Allow())

	// Probe success closes the breaker.
	b.Record(nil)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.Record(eris.New("boom"))

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, b.Allow())
	b.Record(eris.New("still down"))

	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	b.Record(eris.New("boom"))
	require.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	b.Reset()
	assert.NoError(t, b.Allow())
	assert.Zero(t, b.Failures())
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
}
