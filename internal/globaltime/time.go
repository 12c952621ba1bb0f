// Package globaltime is the single source of wall-clock time for the
// pipeline, so batch stages and tests can agree on "now".
package globaltime

import (
	"sync/atomic"
	"time"
)

var frozen atomic.Pointer[time.Time]

// Now returns the current time, or the frozen instant when one is set.
func Now() time.Time {
	if t := frozen.Load(); t != nil {
		return *t
	}
	return time.Now()
}

// UTC is Now normalized to UTC.
func UTC() time.Time {
	return Now().UTC()
}

// Freeze pins Now to the given instant until Resume is called. Test-only.
func Freeze(t time.Time) {
	frozen.Store(&t)
}

// Resume restores the real clock after a Freeze.
func Resume() {
	frozen.Store(nil)
}
