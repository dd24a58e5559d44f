// Package ratelimit parses LeadConnector rate-limit response headers.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Info is the rate-limit state reported on a single API response.
// LeadConnector enforces a burst window plus a daily ceiling:
//
//	x-ratelimit-max: 100
//	x-ratelimit-remaining: 99
//	x-ratelimit-interval-milliseconds: 10000
//	x-ratelimit-limit-daily: 200000
//	x-ratelimit-daily-remaining: 199999
type Info struct {
	BurstLimit     int64
	BurstRemaining int64
	BurstInterval  time.Duration
	DailyLimit     int64
	DailyRemaining int64
}

// lowWaterFraction marks a window as running low below 10% remaining.
const lowWaterFraction = 10

// Parse extracts rate-limit state from response headers. It returns nil
// when the response carries no rate-limit headers at all.
func Parse(headers http.Header) *Info {
	info := &Info{
		BurstLimit:     parseIntHeader(headers, "X-Ratelimit-Max"),
		BurstRemaining: parseIntHeader(headers, "X-Ratelimit-Remaining"),
		DailyLimit:     parseIntHeader(headers, "X-Ratelimit-Limit-Daily"),
		DailyRemaining: parseIntHeader(headers, "X-Ratelimit-Daily-Remaining"),
	}
	if ms := parseIntHeader(headers, "X-Ratelimit-Interval-Milliseconds"); ms > 0 {
		info.BurstInterval = time.Duration(ms) * time.Millisecond
	}

	if info.BurstLimit <= 0 && info.DailyLimit <= 0 {
		return nil
	}
	return info
}

// Low reports whether either window is close to exhaustion.
func (i *Info) Low() bool {
	if i.BurstLimit > 0 && i.BurstRemaining*lowWaterFraction < i.BurstLimit {
		return true
	}
	if i.DailyLimit > 0 && i.DailyRemaining*lowWaterFraction < i.DailyLimit {
		return true
	}
	return false
}

func parseIntHeader(headers http.Header, key string) int64 {
	value := headers.Get(key)
	if value == "" {
		return 0
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
