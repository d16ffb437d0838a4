package types

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// VaultConnection is the governance-facing half of a connected vault.
type VaultConnection struct {
	ConnectionParams

	Owner        common.Address `json:"owner"`
	NodeOperator common.Address `json:"node_operator"`
	ConnectedAt  time.Time      `json:"connected_at"`

	// BeaconDepositsManuallyPaused records the owner's intent only. Whether
	// deposits are actually paused also depends on obligations.
	BeaconDepositsManuallyPaused bool `json:"beacon_deposits_manually_paused"`

	PendingDisconnect     bool      `json:"pending_disconnect"`
	DisconnectForced      bool      `json:"disconnect_forced"`
	DisconnectInitiatedAt time.Time `json:"disconnect_initiated_at"`
}

// Report is the last trusted oracle snapshot of a vault.
type Report struct {
	// TotalValue excludes any quarantined increase.
	TotalValue math.Int `json:"total_value"`
	// InOutDelta is the net deposit total the oracle saw at RefSlot.
	InOutDelta         math.Int  `json:"in_out_delta"`
	CumulativeLidoFees math.Int  `json:"cumulative_lido_fees"`
	LiabilityShares    math.Int  `json:"liability_shares"`
	MaxLiabilityShares math.Int  `json:"max_liability_shares"`
	SlashingReserve    math.Int  `json:"slashing_reserve"`
	Timestamp          time.Time `json:"timestamp"`
	RefSlot            uint64    `json:"ref_slot"`
}

// VaultRecord is the ledger half of a connected vault.
type VaultRecord struct {
	Report Report `json:"report"`

	// InOutDelta caches net deposits for the current and previous frame.
	InOutDelta RefSlotCache `json:"in_out_delta"`

	// LiabilityShares is the live number of shares minted against the vault.
	LiabilityShares math.Int `json:"liability_shares"`
	// MaxLiabilityShares is the high-water mark of LiabilityShares since the
	// last report. Locked value is derived from it.
	MaxLiabilityShares math.Int `json:"max_liability_shares"`

	CumulativeLidoFees math.Int `json:"cumulative_lido_fees"`
	SettledLidoFees    math.Int `json:"settled_lido_fees"`
	MinimalReserve     math.Int `json:"minimal_reserve"`
	RedemptionShares   math.Int `json:"redemption_shares"`
}

// NewVaultRecord returns the record of a freshly connected vault: its initial
// value is both the trusted report and the net deposit baseline.
func NewVaultRecord(initialValue, minimalReserve math.Int, now time.Time, refSlot uint64) VaultRecord {
	return VaultRecord{
		Report: Report{
			TotalValue:         initialValue,
			InOutDelta:         initialValue,
			CumulativeLidoFees: math.ZeroInt(),
			LiabilityShares:    math.ZeroInt(),
			MaxLiabilityShares: math.ZeroInt(),
			SlashingReserve:    math.ZeroInt(),
			Timestamp:          CanonicalTime(now),
			RefSlot:            refSlot,
		},
		InOutDelta:         NewRefSlotCache(initialValue, refSlot),
		LiabilityShares:    math.ZeroInt(),
		MaxLiabilityShares: math.ZeroInt(),
		CumulativeLidoFees: math.ZeroInt(),
		SettledLidoFees:    math.ZeroInt(),
		MinimalReserve:     minimalReserve,
		RedemptionShares:   math.ZeroInt(),
	}
}

// TotalValue is report.TotalValue + current net deposits - net deposits at
// the report. A negative result means the supplied data is inconsistent.
func (r VaultRecord) TotalValue() (math.Int, error) {
	tv := zeroIfNil(r.Report.TotalValue).
		Add(r.InOutDelta.Current()).
		Sub(zeroIfNil(r.Report.InOutDelta))
	if tv.IsNegative() {
		return math.Int{}, fmt.Errorf("%w: report %s, net deposits %s, at report %s",
			ErrTotalValueUnderflow, r.Report.TotalValue, r.InOutDelta.Current(), r.Report.InOutDelta)
	}
	return tv, nil
}

// FeesToSettle is cumulative minus settled protocol fees.
func (r VaultRecord) FeesToSettle() math.Int {
	return zeroIfNil(r.CumulativeLidoFees).Sub(zeroIfNil(r.SettledLidoFees))
}

// Vault is everything the ledger keeps about one vault. It is loaded, mutated
// and saved as one unit under the vault's lock.
type Vault struct {
	Address    common.Address  `json:"address"`
	Connection VaultConnection `json:"connection"`
	Record     VaultRecord     `json:"record"`
	Quarantine Quarantine      `json:"quarantine"`
}
