// Package quarantine decides how much of a reported total value increase is
// trusted immediately and holds the rest back for a safety period.
//
// Every function here is pure: callers load the vault's quarantine, run a
// step and persist the returned state together with the vault record.
package quarantine

import (
	"time"

	"cosmossdk.io/math"

	"github.com/stvaults/vaulthub/types"
)

// Release reasons.
const (
	ReasonExplained  = "explained"
	ReasonExpired    = "expired"
	ReasonSuperseded = "superseded"
	ReasonWithdrawn  = "withdrawn"
)

// Input is what a report step needs to know about the vault.
type Input struct {
	// Reported is the oracle's total value for the vault at the report's
	// ref slot.
	Reported math.Int
	// Onchain is the value the ledger can already explain at that ref slot:
	// the previous trusted value plus net deposits made since.
	Onchain math.Int
	// Timestamp is the report timestamp. Expiry is measured against it.
	Timestamp time.Time
}

// Outcome is the result of one report step.
type Outcome struct {
	// Trusted is the total value the ledger adopts.
	Trusted    math.Int
	Quarantine types.Quarantine

	// Released is the quarantine that was cleared in this step, if any.
	Released      *types.Quarantine
	ReleaseReason string
	// Opened is set when a new quarantine started in this step.
	Opened bool
}

// MaxSaneValue is the largest total value trusted without quarantine.
func MaxSaneValue(onchain math.Int, maxRewardRatioBP uint32) math.Int {
	return onchain.MulRaw(int64(types.TotalBasisPoints + maxRewardRatioBP)).QuoRaw(types.TotalBasisPoints)
}

// Process runs one report through the quarantine.
//
// An increase within MaxSaneValue is trusted and clears any quarantine.
// A larger one opens a quarantine and only the explained value is trusted.
// Once a quarantine expires, a report within its pending amount (plus the
// regular reward allowance) releases it. A larger jump replaces it with a
// fresh quarantine: sequential quarantines never stack.
func Process(q types.Quarantine, params types.SanityParams, in Input) Outcome {
	maxSane := MaxSaneValue(in.Onchain, params.MaxRewardRatioBP)

	if in.Reported.LTE(maxSane) {
		out := Outcome{Trusted: in.Reported, Quarantine: cleared()}
		if q.IsActive {
			out.Released, out.ReleaseReason = &q, ReasonExplained
		}
		return out
	}

	if !q.IsActive {
		return Outcome{
			Trusted:    in.Onchain,
			Quarantine: open(params, in),
			Opened:     true,
		}
	}

	if !q.Expired(in.Timestamp) {
		return Outcome{Trusted: in.Onchain, Quarantine: q}
	}

	if in.Reported.LTE(maxSane.Add(q.Pending())) {
		return Outcome{
			Trusted:       in.Reported,
			Quarantine:    cleared(),
			Released:      &q,
			ReleaseReason: ReasonExpired,
		}
	}

	return Outcome{
		Trusted:       in.Onchain,
		Quarantine:    open(params, in),
		Released:      &q,
		ReleaseReason: ReasonSuperseded,
		Opened:        true,
	}
}

// Absorb applies a withdrawal of amount to the quarantine: the pending
// increase shrinks first, by at most its whole size. It returns the new state
// and how much was absorbed. A fully absorbed quarantine is cleared.
func Absorb(q types.Quarantine, amount math.Int) (types.Quarantine, math.Int) {
	pending := q.Pending()
	if pending.IsZero() || !amount.IsPositive() {
		return q, math.ZeroInt()
	}

	absorbed := math.MinInt(pending, amount)
	if absorbed.Equal(pending) {
		return cleared(), absorbed
	}
	q.PendingTotalValueIncrease = pending.Sub(absorbed)
	return q, absorbed
}

func open(params types.SanityParams, in Input) types.Quarantine {
	start := types.CanonicalTime(in.Timestamp)
	return types.Quarantine{
		PendingTotalValueIncrease: in.Reported.Sub(in.Onchain),
		StartTimestamp:            start,
		EndTimestamp:              start.Add(params.QuarantinePeriod),
		IsActive:                  true,
	}
}

func cleared() types.Quarantine {
	return types.Quarantine{PendingTotalValueIncrease: math.ZeroInt()}
}
