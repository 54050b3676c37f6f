package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerZeroValue(t *testing.T) {
	var timer Timer
	assert.Zero(t, timer.Elapsed())
	assert.Zero(t, timer.ElapsedMs())
}

func TestTimerElapsed(t *testing.T) {
	timer := StartTimer()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), 5*time.Millisecond)
	assert.Equal(t, time.UTC, timer.Started().Location())
}

func TestBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Backoff(100*time.Millisecond, time.Second, tc.attempt), "attempt %d", tc.attempt)
	}
}
