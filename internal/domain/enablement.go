package domain

import (
	"fmt"
	"math"
	"time"
)

// Now is the clock used for enablement checks and event timestamps.
// Tests may replace it.
var Now = time.Now

// Enablement gates a user: the flag must be set and the current time must
// fall within [StartMillis, EndMillis].
type Enablement struct {
	Enabled     bool
	StartMillis int64
	EndMillis   int64
}

// NewEnablement validates start < end.
func NewEnablement(enabled bool, startMillis, endMillis int64) (Enablement, error) {
	if startMillis >= endMillis {
		return Enablement{}, ErrValidation("enablement start must be before end")
	}
	return Enablement{Enabled: enabled, StartMillis: startMillis, EndMillis: endMillis}, nil
}

// IndefiniteEnablement is enabled from now on, forever.
func IndefiniteEnablement() Enablement {
	return Enablement{Enabled: true, StartMillis: Now().UnixMilli(), EndMillis: math.MaxInt64}
}

// IsActiveAt reports whether the enablement is in effect at t.
func (e Enablement) IsActiveAt(t time.Time) bool {
	if !e.Enabled {
		return false
	}
	ms := t.UnixMilli()
	return ms >= e.StartMillis && ms <= e.EndMillis
}

// IsActive reports whether the enablement is in effect now.
func (e Enablement) IsActive() bool {
	return e.IsActiveAt(Now())
}

// IsTimeExpired reports whether now lies outside the enablement window,
// regardless of the flag.
func (e Enablement) IsTimeExpired() bool {
	ms := Now().UnixMilli()
	return ms < e.StartMillis || ms > e.EndMillis
}

func (e Enablement) String() string {
	return fmt.Sprintf("Enablement[enabled=%t, start=%d, end=%d]", e.Enabled, e.StartMillis, e.EndMillis)
}
