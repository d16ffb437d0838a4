package hub

import (
	"context"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Consensus is the reporting frame collaborator.
type Consensus interface {
	// FrameReferenceSlot returns the reference slot of the current frame.
	FrameReferenceSlot() uint64
	// IsFrameFinal reports whether the frame ending at refSlot is final.
	IsFrameFinal(refSlot uint64) bool
}

// Token is the liquid staking token accounting.
type Token interface {
	// ShareRate returns total pooled value and total shares. Their ratio
	// converts between value and shares.
	ShareRate(ctx context.Context) (pooled, shares math.Int, err error)
	MintExternalShares(ctx context.Context, recipient common.Address, shares math.Int) error
	BurnExternalShares(ctx context.Context, from common.Address, shares math.Int) error
	// RebalanceExternalEtherToInternal moves value rebalanced out of a vault
	// into the pool, retiring the matching external shares.
	RebalanceExternalEtherToInternal(ctx context.Context, value math.Int) error
}

// StakingVaults is the validator lifecycle collaborator owning the vaults'
// balances and beacon chain deposits.
type StakingVaults interface {
	WithdrawalCredentials(ctx context.Context, vault common.Address) (common.Hash, error)
	BeaconChainDepositsPaused(ctx context.Context, vault common.Address) (bool, error)
	PauseBeaconChainDeposits(ctx context.Context, vault common.Address) error
	ResumeBeaconChainDeposits(ctx context.Context, vault common.Address) error
	// Withdraw moves amount out of vault to recipient.
	Withdraw(ctx context.Context, vault, recipient common.Address, amount math.Int) error
}

// WithdrawalCredentials returns the 0x02 credentials a connected vault must
// use: the type byte, eleven zero bytes, then the vault address.
func WithdrawalCredentials(vault common.Address) common.Hash {
	var wc common.Hash
	wc[0] = 0x02
	copy(wc[12:], vault.Bytes())
	return wc
}
