package util

import "time"

// Timer measures elapsed wall time from a fixed start.
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer starting at current time.
func StartTimer() Timer {
	return Timer{start: time.Now()}
}

// Started returns the UTC start time.
func (t Timer) Started() time.Time {
	return t.start.UTC()
}

// Elapsed returns the duration since start.
func (t Timer) Elapsed() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	return time.Since(t.start)
}

// ElapsedMs returns the elapsed milliseconds since start.
func (t Timer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}

// Backoff returns base doubled per prior attempt, capped at limit. attempt is 1-based.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt <= 1 {
		return base
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if limit > 0 && delay >= limit {
			return limit
		}
	}
	return delay
}
