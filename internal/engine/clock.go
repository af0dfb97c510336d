package engine

import "time"

// Clock supplies wall-clock time for timestamps. Ordering never depends on
// it: steps are numbered and ledger attempts are counted.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
