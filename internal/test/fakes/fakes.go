// Package fakes provides in-memory collaborators of the hub for tests.
package fakes

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	tmsync "github.com/stvaults/vaulthub/libs/sync"
)

// Consensus is a frame clock driven by hand.
type Consensus struct {
	mtx     tmsync.Mutex
	refSlot uint64
	final   map[uint64]bool
	// AllFinal makes every ref slot final.
	AllFinal bool
}

func NewConsensus(refSlot uint64) *Consensus {
	return &Consensus{refSlot: refSlot, final: make(map[uint64]bool), AllFinal: true}
}

func (c *Consensus) FrameReferenceSlot() uint64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.refSlot
}

func (c *Consensus) IsFrameFinal(refSlot uint64) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.AllFinal || c.final[refSlot]
}

// SetRefSlot moves the current frame.
func (c *Consensus) SetRefSlot(refSlot uint64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.refSlot = refSlot
}

// Finalize marks refSlot final.
func (c *Consensus) Finalize(refSlot uint64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.final[refSlot] = true
}

// Token is a share ledger with a fixed share rate.
type Token struct {
	mtx    tmsync.Mutex
	pooled math.Int
	shares math.Int

	Minted     map[common.Address]math.Int
	Burned     math.Int
	Rebalanced math.Int
	// RebalanceErr, when set, fails every rebalance.
	RebalanceErr error
}

// NewToken returns a token where one share is worth pooled/shares.
func NewToken(pooled, shares math.Int) *Token {
	return &Token{
		pooled:     pooled,
		shares:     shares,
		Minted:     make(map[common.Address]math.Int),
		Burned:     math.ZeroInt(),
		Rebalanced: math.ZeroInt(),
	}
}

func (t *Token) ShareRate(context.Context) (math.Int, math.Int, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.pooled, t.shares, nil
}

// SetShareRate changes the share rate.
func (t *Token) SetShareRate(pooled, shares math.Int) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.pooled, t.shares = pooled, shares
}

func (t *Token) MintExternalShares(_ context.Context, recipient common.Address, shares math.Int) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	prev, ok := t.Minted[recipient]
	if !ok {
		prev = math.ZeroInt()
	}
	t.Minted[recipient] = prev.Add(shares)
	return nil
}

func (t *Token) BurnExternalShares(_ context.Context, from common.Address, shares math.Int) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	held, ok := t.Minted[from]
	if !ok || held.LT(shares) {
		return fmt.Errorf("%s holds %v shares, burning %s", from, held, shares)
	}
	t.Minted[from] = held.Sub(shares)
	t.Burned = t.Burned.Add(shares)
	return nil
}

func (t *Token) RebalanceExternalEtherToInternal(_ context.Context, value math.Int) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.RebalanceErr != nil {
		return t.RebalanceErr
	}
	t.Rebalanced = t.Rebalanced.Add(value)
	return nil
}

// Transfer is one value movement out of a vault.
type Transfer struct {
	Vault     common.Address
	Recipient common.Address
	Amount    math.Int
}

// StakingVaults tracks withdrawal credentials, deposit pauses and
// withdrawals of vaults.
type StakingVaults struct {
	mtx         tmsync.Mutex
	credentials map[common.Address]common.Hash
	paused      map[common.Address]bool

	Transfers   []Transfer
	PauseCalls  int
	ResumeCalls int
	// WithdrawErr, when set, fails every withdrawal.
	WithdrawErr error
	// PausedErr, when set, fails every read of a pause flag.
	PausedErr error
	// ResumeErr, when set, fails every resume.
	ResumeErr error
}

func NewStakingVaults() *StakingVaults {
	return &StakingVaults{
		credentials: make(map[common.Address]common.Hash),
		paused:      make(map[common.Address]bool),
	}
}

// SetCredentials overrides the withdrawal credentials reported for vault.
// By default every vault reports 0x02 credentials pointing at itself.
func (s *StakingVaults) SetCredentials(vault common.Address, wc common.Hash) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.credentials[vault] = wc
}

func (s *StakingVaults) WithdrawalCredentials(_ context.Context, vault common.Address) (common.Hash, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if wc, ok := s.credentials[vault]; ok {
		return wc, nil
	}
	var wc common.Hash
	wc[0] = 0x02
	copy(wc[12:], vault.Bytes())
	return wc, nil
}

func (s *StakingVaults) BeaconChainDepositsPaused(_ context.Context, vault common.Address) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.PausedErr != nil {
		return false, s.PausedErr
	}
	return s.paused[vault], nil
}

func (s *StakingVaults) PauseBeaconChainDeposits(_ context.Context, vault common.Address) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.paused[vault] {
		return fmt.Errorf("deposits of %s already paused", vault)
	}
	s.paused[vault] = true
	s.PauseCalls++
	return nil
}

func (s *StakingVaults) ResumeBeaconChainDeposits(_ context.Context, vault common.Address) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.ResumeErr != nil {
		return s.ResumeErr
	}
	if !s.paused[vault] {
		return fmt.Errorf("deposits of %s not paused", vault)
	}
	s.paused[vault] = false
	s.ResumeCalls++
	return nil
}

func (s *StakingVaults) Withdraw(_ context.Context, vault, recipient common.Address, amount math.Int) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.WithdrawErr != nil {
		return s.WithdrawErr
	}
	s.Transfers = append(s.Transfers, Transfer{Vault: vault, Recipient: recipient, Amount: amount})
	return nil
}

// Paused reports the deposit pause flag of vault.
func (s *StakingVaults) Paused(vault common.Address) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.paused[vault]
}

// TransferredTo sums every amount sent to recipient.
func (s *StakingVaults) TransferredTo(recipient common.Address) math.Int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	total := math.ZeroInt()
	for _, tr := range s.Transfers {
		if tr.Recipient == recipient {
			total = total.Add(tr.Amount)
		}
	}
	return total
}
