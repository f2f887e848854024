package github

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func TestRateLimiter_UpdateFromResponse(t *testing.T) {
	r := NewRateLimiter(rate.Inf)
	reset := time.Now().Add(time.Hour).Truncate(time.Second)

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set(HeaderRateRemaining, "42")
	resp.Header.Set(HeaderRateLimit, "60")
	resp.Header.Set(HeaderRateReset, formatUnix(reset))
	r.UpdateFromResponse(resp)

	assert.Equal(t, 42, r.Remaining())
	assert.Equal(t, 60, r.Limit())
	assert.True(t, reset.Equal(r.ResetTime()))

	r.UpdateFromResponse(nil)
	assert.Equal(t, 42, r.Remaining())
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Run("plenty of quota", func(t *testing.T) {
		r := NewRateLimiter(rate.Inf)
		assert.NoError(t, r.Wait(context.Background()))
	})

	t.Run("anonymous quota uses a smaller buffer", func(t *testing.T) {
		r := NewRateLimiter(rate.Inf)
		r.limit, r.remaining = 60, 30
		r.resetTime = time.Now().Add(time.Hour)

		start := time.Now()
		require.NoError(t, r.Wait(context.Background()))
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("waits for reset when exhausted", func(t *testing.T) {
		r := NewRateLimiter(rate.Inf)
		r.remaining = 0
		r.resetTime = time.Now().Add(40 * time.Millisecond)

		start := time.Now()
		require.NoError(t, r.Wait(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("cancellation", func(t *testing.T) {
		r := NewRateLimiter(rate.Inf)
		r.remaining = 0
		r.resetTime = time.Now().Add(time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
	})
}
