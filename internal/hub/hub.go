// Package hub is the vault ledger. It derives total value, locked value and
// obligations from a vault's record, and gates every owner, permissionless
// and governance operation on them.
//
// Each operation is one atomic transaction against a single vault: the vault
// is loaded under its lock, checked and mutated, then calls to collaborators
// run and the vault is saved as a unit. Its events fire only after the save,
// once the lock is released. Distinct vaults never contend.
package hub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"cosmossdk.io/math"
	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"

	"github.com/stvaults/vaulthub/internal/auth"
	"github.com/stvaults/vaulthub/internal/store"
	"github.com/stvaults/vaulthub/libs/events"
	"github.com/stvaults/vaulthub/libs/log"
	"github.com/stvaults/vaulthub/types"
)

// Config holds the hub parameters.
type Config struct {
	// FreshnessDelta is the maximum age of a report that still allows
	// minting, withdrawal and settlement.
	FreshnessDelta time.Duration
	// MinimalReserve is the floor of locked value for every vault.
	MinimalReserve math.Int
	// FeePauseThreshold is the unsettled fee amount at which beacon
	// deposits are paused.
	FeePauseThreshold math.Int
	// Treasury receives settled protocol fees.
	Treasury common.Address
	// Pool receives value rebalanced out of vaults.
	Pool common.Address
}

// DefaultConfig returns the mainnet parameters.
func DefaultConfig() Config {
	return Config{
		FreshnessDelta:    48 * time.Hour,
		MinimalReserve:    types.UnitOfAccount,
		FeePauseThreshold: types.UnitOfAccount,
	}
}

func (cfg Config) ValidateBasic() error {
	if cfg.FreshnessDelta <= 0 {
		return errors.New("freshness delta must be positive")
	}
	if cfg.MinimalReserve.IsNil() || cfg.MinimalReserve.IsNegative() {
		return errors.New("minimal reserve must be non-negative")
	}
	if cfg.FeePauseThreshold.IsNil() || !cfg.FeePauseThreshold.IsPositive() {
		return errors.New("fee pause threshold must be positive")
	}
	return nil
}

// Hub is the vault ledger.
type Hub struct {
	cfg Config

	store     *store.Store
	consensus Consensus
	token     Token
	vaults    StakingVaults
	authz     auth.Authorizer

	clock   clock.Clock
	evsw    events.EventSwitch
	logger  log.Logger
	metrics *Metrics
}

// Option sets an optional parameter on the Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(h *Hub) { h.logger = logger.With("module", "hub") }
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(h *Hub) { h.metrics = metrics }
}

// WithClock sets the clock used for freshness and report timestamps.
func WithClock(c clock.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

// WithEventSwitch sets the switch committed events are fired on.
func WithEventSwitch(evsw events.EventSwitch) Option {
	return func(h *Hub) { h.evsw = evsw }
}

// NewHub returns a Hub over the given store and collaborators.
func NewHub(
	cfg Config,
	st *store.Store,
	consensus Consensus,
	token Token,
	vaults StakingVaults,
	authz auth.Authorizer,
	options ...Option,
) (*Hub, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid hub config: %w", err)
	}
	h := &Hub{
		cfg:       cfg,
		store:     st,
		consensus: consensus,
		token:     token,
		vaults:    vaults,
		authz:     authz,
		clock:     clock.New(),
		evsw:      events.NewEventSwitch(),
		logger:    log.NewNopLogger(),
		metrics:   NopMetrics(),
	}
	for _, option := range options {
		option(h)
	}

	connected, err := st.Vaults()
	if err != nil {
		return nil, fmt.Errorf("listing connected vaults: %w", err)
	}
	h.metrics.ConnectedVaults.Set(float64(len(connected)))
	return h, nil
}

// EventSwitch returns the switch committed events are fired on.
func (h *Hub) EventSwitch() events.EventSwitch {
	return h.evsw
}

// Config returns the hub parameters.
func (h *Hub) Config() Config {
	return h.cfg
}

//-----------------------------------------------------------------------------

// VaultTx is one atomic unit of work on a connected vault. Changes to Vault
// are persisted and emitted events fired only if the work succeeds.
type VaultTx struct {
	Vault *types.Vault
	// Now is the time the transaction runs at.
	Now time.Time
	// RefSlot is the reference slot of the current frame.
	RefSlot uint64

	ctx     context.Context
	rate    *shareRate
	events  []events.Recorded
	calls   []collaboratorCall
	deleted bool
}

// collaboratorCall is a side effect outside the ledger, run only once every
// check of the transaction has passed.
type collaboratorCall struct {
	name string
	run  func(ctx context.Context) error
	// depositSync marks a deposit pause transition. The next transaction on
	// the vault recomputes it, so it never fails one whose value has moved.
	depositSync bool
}

// Emit queues an event to fire after commit.
func (tx *VaultTx) Emit(event string, data events.EventData) {
	tx.events = append(tx.events, events.Recorded{Event: event, Data: data})
}

// call queues run for commit time.
func (tx *VaultTx) call(name string, run func(ctx context.Context) error) {
	tx.calls = append(tx.calls, collaboratorCall{name: name, run: run})
}

// update runs fn as a transaction on vault. Events fire after the vault's
// lock is released, so listeners may call back into the hub.
func (h *Hub) update(ctx context.Context, op string, vault common.Address, fn func(tx *VaultTx) error) (err error) {
	defer func() { h.observe(op, vault, err) }()

	tx, err := h.transact(ctx, vault, fn)
	if tx != nil {
		h.fire(tx)
	}
	return err
}

func (h *Hub) transact(ctx context.Context, vault common.Address, fn func(tx *VaultTx) error) (*VaultTx, error) {
	unlock := h.store.Lock(vault)
	defer unlock()

	v, ok, err := h.store.LoadVault(vault)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrVaultNotConnected, vault)
	}

	tx := &VaultTx{
		Vault:   v,
		Now:     types.CanonicalTime(h.clock.Now()),
		RefSlot: h.consensus.FrameReferenceSlot(),
		ctx:     ctx,
	}
	if err := fn(tx); err != nil {
		return nil, err
	}
	return h.commit(tx)
}

// commit runs the queued collaborator calls in order, then persists the
// vault. If the first call fails nothing has happened and the transaction
// is dropped. Once a call went through the vault no longer matches its
// stored state, so it is saved whatever follows: a later deposit pause sync
// failure is only logged, any other later failure is returned along with
// the committed transaction.
func (h *Hub) commit(tx *VaultTx) (*VaultTx, error) {
	vault := tx.Vault.Address

	var failed error
	for i, c := range tx.calls {
		err := c.run(tx.ctx)
		if err == nil {
			continue
		}
		if i == 0 {
			return nil, err
		}
		if c.depositSync {
			h.logger.Error("deposit pause left out of sync", "vault", vault, "err", err)
			continue
		}
		h.logger.Error("collaborator call failed after value moved", "vault", vault, "call", c.name, "err", err)
		failed = err
		break
	}

	if tx.deleted {
		if err := h.store.DeleteVault(vault); err != nil {
			return nil, err
		}
		h.metrics.ConnectedVaults.Add(-1)
	} else if err := h.store.SaveVault(tx.Vault); err != nil {
		return nil, err
	}
	return tx, failed
}

func (h *Hub) fire(tx *VaultTx) {
	for _, ev := range tx.events {
		h.evsw.FireEvent(ev.Event, ev.Data)
	}
}

func (h *Hub) observe(op string, vault common.Address, err error) {
	if err == nil {
		h.metrics.Mutations.With("op", op).Add(1)
		return
	}

	switch {
	case types.IsInvariantError(err):
		h.metrics.InvariantViolations.Add(1)
		h.metrics.Rejections.With("op", op, "kind", types.KindInvariant.String()).Add(1)
		h.logger.Error("inconsistent vault state", "op", op, "vault", vault, "err", err)
	case types.IsInputError(err):
		h.metrics.Rejections.With("op", op, "kind", types.KindInput.String()).Add(1)
		h.logger.Debug("rejected", "op", op, "vault", vault, "err", err)
	case types.IsPreconditionError(err):
		h.metrics.Rejections.With("op", op, "kind", types.KindPrecondition.String()).Add(1)
		h.logger.Debug("rejected", "op", op, "vault", vault, "err", err)
	default:
		h.logger.Error("operation failed", "op", op, "vault", vault, "err", err)
	}
}

func (h *Hub) requireResumed() error {
	paused, err := h.store.HubPaused()
	if err != nil {
		return err
	}
	if paused {
		return types.ErrHubPaused
	}
	return nil
}

func requireOwner(tx *VaultTx, caller common.Address) error {
	if caller != tx.Vault.Connection.Owner {
		return fmt.Errorf("%w: %s is not the owner of %s", types.ErrNotAuthorized, caller, tx.Vault.Address)
	}
	return nil
}

func requirePositive(amount math.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return types.ErrZeroAmount
	}
	return nil
}

func wei(i math.Int) float64 {
	f, _ := new(big.Float).SetInt(i.BigInt()).Float64()
	return f
}

//-----------------------------------------------------------------------------

// shareRate converts between pooled value and shares.
type shareRate struct {
	pooled, shares math.Int
}

func (h *Hub) shareRate(tx *VaultTx) (*shareRate, error) {
	if tx.rate != nil {
		return tx.rate, nil
	}
	pooled, shares, err := h.token.ShareRate(tx.ctx)
	if err != nil {
		return nil, fmt.Errorf("share rate: %w", err)
	}
	tx.rate = newShareRate(pooled, shares)
	return tx.rate, nil
}

func newShareRate(pooled, shares math.Int) *shareRate {
	if pooled.IsNil() || shares.IsNil() || !pooled.IsPositive() || !shares.IsPositive() {
		return &shareRate{pooled: math.OneInt(), shares: math.OneInt()}
	}
	return &shareRate{pooled: pooled, shares: shares}
}

func (r *shareRate) sharesByValue(value math.Int) math.Int {
	return value.Mul(r.shares).Quo(r.pooled)
}

func (r *shareRate) valueByShares(shares math.Int) math.Int {
	return shares.Mul(r.pooled).Quo(r.shares)
}

func (r *shareRate) valueBySharesRoundUp(shares math.Int) math.Int {
	return types.CeilDiv(shares.Mul(r.pooled), r.shares)
}
