package types

import (
	"time"

	"cosmossdk.io/math"
)

// Quarantine holds a reported total value increase that is not yet trusted.
type Quarantine struct {
	PendingTotalValueIncrease math.Int  `json:"pending_total_value_increase"`
	StartTimestamp            time.Time `json:"start_timestamp"`
	EndTimestamp              time.Time `json:"end_timestamp"`
	IsActive                  bool      `json:"is_active"`
}

// Pending returns the quarantined amount, zero when inactive.
func (q Quarantine) Pending() math.Int {
	if !q.IsActive {
		return math.ZeroInt()
	}
	return zeroIfNil(q.PendingTotalValueIncrease)
}

// Expired reports whether the quarantine can be released at t.
func (q Quarantine) Expired(t time.Time) bool {
	return q.IsActive && !t.Before(q.EndTimestamp)
}
