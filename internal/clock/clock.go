package clock

import "time"

// Clock abstracts time so eligibility math and sweeps can be tested
// against a frozen instant.
type Clock interface {
	Now() time.Time
}

func New() Clock { return systemClock{} }
