package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// NewRequestID creates a UUID4 request identifier
func NewRequestID() string {
	return uuid.NewString()
}

// StartTimer starts a monotonic timer
func StartTimer() time.Time {
	return time.Now()
}

// ElapsedMS returns whole milliseconds since start, with a floor of 1 so
// recorded stage timings are always positive
func ElapsedMS(start time.Time) int64 {
	elapsed := time.Since(start).Milliseconds()
	if elapsed < 1 {
		return 1
	}
	return elapsed
}
