package types

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/stvaults/vaulthub/crypto/merkle"
)

// ReportData is the per-frame commitment published by the reporting
// authority.
type ReportData struct {
	Timestamp time.Time   `json:"timestamp"`
	RefSlot   uint64      `json:"ref_slot"`
	Root      common.Hash `json:"root"`
	// CID points at the full off-chain report the root was computed from.
	CID string `json:"cid"`
}

// IsZero reports whether no root was ever published.
func (d ReportData) IsZero() bool {
	return d.Root == (common.Hash{}) && d.Timestamp.IsZero()
}

// ValidateBasic performs stateless checks on published report data.
func (d ReportData) ValidateBasic() error {
	if d.Root == (common.Hash{}) {
		return fmt.Errorf("%w: empty root", ErrInvalidReportData)
	}
	if d.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidReportData)
	}
	return nil
}

var vaultLeafEncoding = merkle.MustLeafEncoding(
	"address", "uint256", "uint256", "uint256", "uint256", "uint256")

// VaultLeaf is one vault's entry in a frame's commitment.
type VaultLeaf struct {
	Vault              common.Address `json:"vault"`
	TotalValue         math.Int       `json:"total_value"`
	CumulativeLidoFees math.Int       `json:"cumulative_lido_fees"`
	LiabilityShares    math.Int       `json:"liability_shares"`
	MaxLiabilityShares math.Int       `json:"max_liability_shares"`
	SlashingReserve    math.Int       `json:"slashing_reserve"`
}

// ValidateBasic checks that every quantity is present and non-negative.
func (l VaultLeaf) ValidateBasic() error {
	for name, v := range map[string]math.Int{
		"total value":          l.TotalValue,
		"cumulative lido fees": l.CumulativeLidoFees,
		"liability shares":     l.LiabilityShares,
		"max liability shares": l.MaxLiabilityShares,
		"slashing reserve":     l.SlashingReserve,
	} {
		if v.IsNil() || v.IsNegative() {
			return fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidLeaf, name)
		}
	}
	return nil
}

// Hash returns the leaf hash committed to by the frame's root.
func (l VaultLeaf) Hash() (common.Hash, error) {
	if err := l.ValidateBasic(); err != nil {
		return common.Hash{}, err
	}
	return vaultLeafEncoding.Hash(
		l.Vault,
		l.TotalValue.BigInt(),
		l.CumulativeLidoFees.BigInt(),
		l.LiabilityShares.BigInt(),
		l.MaxLiabilityShares.BigInt(),
		l.SlashingReserve.BigInt(),
	)
}

// Obligations are what a vault owes before it may deposit, withdraw freely or
// leave.
type Obligations struct {
	FeesToSettle math.Int `json:"fees_to_settle"`
	// SharesToBurn is UnboundedShares when the vault is in bad debt.
	SharesToBurn math.Int `json:"shares_to_burn"`
}

// BadDebt reports whether SharesToBurn is the bad debt sentinel.
func (o Obligations) BadDebt() bool {
	return !o.SharesToBurn.IsNil() && o.SharesToBurn.Equal(UnboundedShares)
}
