package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Ratelimit-Max", "100")
	h.Set("X-Ratelimit-Remaining", "99")
	h.Set("X-Ratelimit-Interval-Milliseconds", "10000")
	h.Set("X-Ratelimit-Limit-Daily", "200000")
	h.Set("X-Ratelimit-Daily-Remaining", "199999")

	info := Parse(h)
	require.NotNil(t, info)
	assert.Equal(t, int64(100), info.BurstLimit)
	assert.Equal(t, int64(99), info.BurstRemaining)
	assert.Equal(t, 10*time.Second, info.BurstInterval)
	assert.Equal(t, int64(200000), info.DailyLimit)
	assert.Equal(t, int64(199999), info.DailyRemaining)
	assert.False(t, info.Low())
}

func TestParseNoHeaders(t *testing.T) {
	assert.Nil(t, Parse(http.Header{}))
}

func TestParseMalformedValues(t *testing.T) {
	h := http.Header{}
	h.Set("X-Ratelimit-Max", "not-a-number")
	h.Set("X-Ratelimit-Limit-Daily", "")
	assert.Nil(t, Parse(h))
}

func TestLowBurstWindow(t *testing.T) {
	info := &Info{BurstLimit: 100, BurstRemaining: 5}
	assert.True(t, info.Low())
}

func TestLowDailyWindow(t *testing.T) {
	info := &Info{DailyLimit: 200000, DailyRemaining: 10000}
	assert.True(t, info.Low())

	info.DailyRemaining = 150000
	assert.False(t, info.Low())
}
