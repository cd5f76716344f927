package ctrl

import "time"

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() time.Time
}

// A Clock supplies time to the scheduler and suspends the control goroutine
// between ticks.
type Clock interface {
	TimeTeller

	// Sleep blocks the calling goroutine for the given duration.
	Sleep(d time.Duration)
}

// WallClock is the Clock used outside of tests. It reads the monotonic system
// clock.
type WallClock struct{}

// CurrentTime returns the current system time.
func (WallClock) CurrentTime() time.Time {
	return time.Now()
}

// Sleep suspends the calling goroutine.
func (WallClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
