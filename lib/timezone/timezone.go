package timezone

import "time"

// all provider timestamps come suffixed with "GMT", so the canonical
// clock for date comparisons is UTC regardless of where the process runs
var Location = time.UTC

func Now() time.Time {
	return time.Now().In(Location)
}
