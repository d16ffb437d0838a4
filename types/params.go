package types

import (
	"fmt"
	"math/big"
	"time"

	"cosmossdk.io/math"
)

// TotalBasisPoints is 100% expressed in basis points.
const TotalBasisPoints = 10_000

var (
	// UnitOfAccount is one ether expressed in wei.
	UnitOfAccount = math.NewIntWithDecimal(1, 18)

	// MaxSaneTotalValue is the largest total value a vault leaf may carry
	// (2^96 - 1 wei).
	MaxSaneTotalValue = math.NewIntFromBigInt(
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1)))

	// UnboundedShares is the bad debt sentinel used in Obligations: no amount
	// of rebalancing can restore the vault.
	UnboundedShares = math.NewIntFromBigInt(
		new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))
)

// ConnectionParams are the governance-controlled risk and fee parameters of a
// connected vault.
type ConnectionParams struct {
	// ShareLimit caps liability shares that may be minted against the vault.
	ShareLimit math.Int `json:"share_limit"`
	// ReserveRatioBP is the share of total value that must stay unminted.
	ReserveRatioBP uint32 `json:"reserve_ratio_bp"`
	// ForcedRebalanceThresholdBP is the reserve ratio below which anyone may
	// force a rebalance.
	ForcedRebalanceThresholdBP uint32 `json:"forced_rebalance_threshold_bp"`
	InfraFeeBP                 uint32 `json:"infra_fee_bp"`
	LiquidityFeeBP             uint32 `json:"liquidity_fee_bp"`
	ReservationFeeBP           uint32 `json:"reservation_fee_bp"`
}

// ValidateBasic performs stateless validation of the parameters.
func (p ConnectionParams) ValidateBasic() error {
	if p.ShareLimit.IsNil() || p.ShareLimit.IsNegative() {
		return fmt.Errorf("%w: share limit must be non-negative", ErrInvalidConnectionParams)
	}
	if p.ReserveRatioBP == 0 || p.ReserveRatioBP >= TotalBasisPoints {
		return fmt.Errorf("%w: reserve ratio %d must be in (0, %d)",
			ErrInvalidConnectionParams, p.ReserveRatioBP, TotalBasisPoints)
	}
	if p.ForcedRebalanceThresholdBP == 0 || p.ForcedRebalanceThresholdBP > p.ReserveRatioBP {
		return fmt.Errorf("%w: forced rebalance threshold %d must be in (0, %d]",
			ErrInvalidConnectionParams, p.ForcedRebalanceThresholdBP, p.ReserveRatioBP)
	}
	for name, fee := range map[string]uint32{
		"infra":       p.InfraFeeBP,
		"liquidity":   p.LiquidityFeeBP,
		"reservation": p.ReservationFeeBP,
	} {
		if fee > TotalBasisPoints {
			return fmt.Errorf("%w: %s fee %d exceeds %d", ErrInvalidConnectionParams, name, fee, TotalBasisPoints)
		}
	}
	return nil
}

// CanonicalTime drops the monotonic reading and sub-second precision so that
// timestamps survive a round trip through the store unchanged.
func CanonicalTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Unix(t.Unix(), 0).UTC()
}

// zeroIfNil guards decoded or zero-valued structs against nil math.Int.
func zeroIfNil(i math.Int) math.Int {
	if i.IsNil() {
		return math.ZeroInt()
	}
	return i
}

// CeilDiv returns ceil(a / b) for non-negative a and positive b.
func CeilDiv(a, b math.Int) math.Int {
	q := a.Quo(b)
	if !q.Mul(b).Equal(a) {
		q = q.AddRaw(1)
	}
	return q
}

// MulBP returns value * bp / TotalBasisPoints, rounded down.
func MulBP(value math.Int, bp uint32) math.Int {
	return value.MulRaw(int64(bp)).QuoRaw(TotalBasisPoints)
}

// SanityParams bound what an oracle leaf may change in one report.
type SanityParams struct {
	QuarantinePeriod time.Duration `json:"quarantine_period"`
	// MaxRewardRatioBP is the largest total value increase, relative to the
	// value explained by deposits, that is trusted without quarantine.
	MaxRewardRatioBP uint32 `json:"max_reward_ratio_bp"`
	// MaxLidoFeeRatePerSecond caps how fast cumulative fees may grow.
	MaxLidoFeeRatePerSecond math.Int `json:"max_lido_fee_rate_per_second"`
}

// ValidateBasic performs stateless validation of the parameters.
func (p SanityParams) ValidateBasic() error {
	if p.QuarantinePeriod < 0 {
		return fmt.Errorf("%w: negative quarantine period", ErrInvalidSanityParams)
	}
	if p.MaxRewardRatioBP > TotalBasisPoints {
		return fmt.Errorf("%w: max reward ratio %d exceeds %d",
			ErrInvalidSanityParams, p.MaxRewardRatioBP, TotalBasisPoints)
	}
	if p.MaxLidoFeeRatePerSecond.IsNil() || p.MaxLidoFeeRatePerSecond.IsNegative() {
		return fmt.Errorf("%w: max lido fee rate must be non-negative", ErrInvalidSanityParams)
	}
	return nil
}
