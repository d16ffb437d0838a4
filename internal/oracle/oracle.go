// Package oracle ingests vault reports.
//
// Once per frame the reporting authority publishes a Merkle root committing
// to every vault's data as of the frame's reference slot. Afterwards anyone
// may submit a single vault's leaf with its proof. A leaf that passes the
// sanity checks is handed to the hub, with any unexplained value jump held
// back by the quarantine.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"

	"github.com/stvaults/vaulthub/crypto/merkle"
	"github.com/stvaults/vaulthub/internal/auth"
	"github.com/stvaults/vaulthub/internal/hub"
	"github.com/stvaults/vaulthub/internal/quarantine"
	"github.com/stvaults/vaulthub/internal/store"
	"github.com/stvaults/vaulthub/libs/log"
	tmsync "github.com/stvaults/vaulthub/libs/sync"
	"github.com/stvaults/vaulthub/types"
)

// DefaultSanityParams returns the mainnet sanity parameters.
func DefaultSanityParams() types.SanityParams {
	return types.SanityParams{
		QuarantinePeriod: 72 * time.Hour,
		MaxRewardRatioBP: 350,
		// 0.0001 ether per second
		MaxLidoFeeRatePerSecond: math.NewIntWithDecimal(1, 14),
	}
}

// Oracle is the report ingestion service.
type Oracle struct {
	defaults types.SanityParams

	store     *store.Store
	hub       *hub.Hub
	consensus hub.Consensus
	vaults    hub.StakingVaults
	authz     auth.Authorizer

	// mtx serializes root publication and parameter updates. Leaf
	// submissions only take the vault's lock.
	mtx tmsync.Mutex

	clock   clock.Clock
	logger  log.Logger
	metrics *Metrics
}

// Option sets an optional parameter on the Oracle.
type Option func(*Oracle)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *Oracle) { o.logger = logger.With("module", "oracle") }
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(o *Oracle) { o.metrics = metrics }
}

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(o *Oracle) { o.clock = c }
}

// NewOracle returns an Oracle feeding h. defaults are used until sanity
// parameters are first updated.
func NewOracle(
	defaults types.SanityParams,
	st *store.Store,
	h *hub.Hub,
	consensus hub.Consensus,
	vaults hub.StakingVaults,
	authz auth.Authorizer,
	options ...Option,
) (*Oracle, error) {
	if err := defaults.ValidateBasic(); err != nil {
		return nil, err
	}
	o := &Oracle{
		defaults:  defaults,
		store:     st,
		hub:       h,
		consensus: consensus,
		vaults:    vaults,
		authz:     authz,
		clock:     clock.New(),
		logger:    log.NewNopLogger(),
		metrics:   NopMetrics(),
	}
	for _, option := range options {
		option(o)
	}
	return o, nil
}

// SanityParams returns the parameters leaves are checked against.
func (o *Oracle) SanityParams() (types.SanityParams, error) {
	p, ok, err := o.store.LoadSanityParams()
	if err != nil {
		return types.SanityParams{}, err
	}
	if !ok {
		return o.defaults, nil
	}
	return p, nil
}

// UpdateSanityParams replaces the sanity parameters.
func (o *Oracle) UpdateSanityParams(caller common.Address, p types.SanityParams) error {
	if err := auth.Check(o.authz, caller, auth.RoleSanityParamsUpdater); err != nil {
		return err
	}
	if err := p.ValidateBasic(); err != nil {
		return err
	}

	o.mtx.Lock()
	defer o.mtx.Unlock()

	if err := o.store.SaveSanityParams(p); err != nil {
		return err
	}
	o.hub.EventSwitch().FireEvent(types.EventSanityParamsUpdated, types.EventDataSanityParams{SanityParams: p})
	o.logger.Info("sanity params updated",
		"quarantine_period", p.QuarantinePeriod,
		"max_reward_ratio_bp", p.MaxRewardRatioBP,
		"max_lido_fee_rate_per_second", p.MaxLidoFeeRatePerSecond)
	return nil
}

// LatestReportData returns the last published report data.
func (o *Oracle) LatestReportData() (types.ReportData, error) {
	data, ok, err := o.store.LoadReportData()
	if err != nil {
		return types.ReportData{}, err
	}
	if !ok {
		return types.ReportData{}, types.ErrNoReportPublished
	}
	return data, nil
}

// PublishRoot records the commitment for a final frame. Republishing for the
// same reference slot is allowed, an older one is not. No vault changes
// until its leaf is submitted.
func (o *Oracle) PublishRoot(caller common.Address, data types.ReportData) error {
	if err := auth.Check(o.authz, caller, auth.RoleReporter); err != nil {
		return err
	}
	if err := data.ValidateBasic(); err != nil {
		return err
	}
	data.Timestamp = types.CanonicalTime(data.Timestamp)

	o.mtx.Lock()
	defer o.mtx.Unlock()

	current, ok, err := o.store.LoadReportData()
	if err != nil {
		return err
	}
	if ok {
		if data.RefSlot < current.RefSlot {
			return fmt.Errorf("%w: ref slot %d, published %d", types.ErrStaleRoot, data.RefSlot, current.RefSlot)
		}
		if !data.Timestamp.After(current.Timestamp) {
			return fmt.Errorf("%w: timestamp %s not after published %s", types.ErrStaleRoot, data.Timestamp, current.Timestamp)
		}
	}
	if !o.consensus.IsFrameFinal(data.RefSlot) {
		return fmt.Errorf("%w: ref slot %d", types.ErrFrameNotFinal, data.RefSlot)
	}

	if err := o.store.SaveReportData(data); err != nil {
		return err
	}
	o.metrics.RootsPublished.Add(1)
	o.metrics.LastRefSlot.Set(float64(data.RefSlot))
	o.hub.EventSwitch().FireEvent(types.EventRootPublished, types.EventDataRootPublished{ReportData: data})
	o.logger.Info("report root published", "ref_slot", data.RefSlot, "root", data.Root, "cid", data.CID)
	return nil
}

// SubmitVaultLeaf applies leaf, proven against the latest published root, to
// its vault. Each vault accepts a given root once; other vaults' leaves for
// the same root are independent.
func (o *Oracle) SubmitVaultLeaf(ctx context.Context, leaf types.VaultLeaf, proof []common.Hash) (err error) {
	defer func() { o.observeLeaf(leaf.Vault, err) }()

	data, err := o.LatestReportData()
	if err != nil {
		return err
	}
	hash, err := leaf.Hash()
	if err != nil {
		return err
	}
	if !merkle.VerifyProof(proof, data.Root, hash) {
		return fmt.Errorf("%w: leaf of %s against root %s", types.ErrInvalidProof, leaf.Vault, data.Root)
	}
	if leaf.TotalValue.GT(types.MaxSaneTotalValue) {
		return fmt.Errorf("%w: %s", types.ErrTotalValueTooLarge, leaf.TotalValue)
	}
	if leaf.MaxLiabilityShares.LT(leaf.LiabilityShares) {
		return fmt.Errorf("%w: max %s below liability %s",
			types.ErrInvalidMaxLiabilityShares, leaf.MaxLiabilityShares, leaf.LiabilityShares)
	}

	wc, err := o.vaults.WithdrawalCredentials(ctx, leaf.Vault)
	if err != nil {
		return fmt.Errorf("withdrawal credentials of %s: %w", leaf.Vault, err)
	}
	if wc != hub.WithdrawalCredentials(leaf.Vault) {
		return fmt.Errorf("%w: %s has %s", types.ErrInvalidWithdrawalCredentials, leaf.Vault, wc)
	}

	params, err := o.SanityParams()
	if err != nil {
		return err
	}
	return o.hub.ApplyVaultReport(ctx, leaf.Vault, func(tx *hub.VaultTx) (types.Report, error) {
		return o.checkLeaf(tx, params, data, leaf)
	})
}

// checkLeaf runs the checks that depend on the vault's state and settles
// the quarantine.
func (o *Oracle) checkLeaf(
	tx *hub.VaultTx,
	params types.SanityParams,
	data types.ReportData,
	leaf types.VaultLeaf,
) (types.Report, error) {
	rec := tx.Vault.Record
	prev := rec.Report

	if !data.Timestamp.After(prev.Timestamp) {
		return types.Report{}, fmt.Errorf("%w: %s already reported at %s",
			types.ErrReportAlreadyApplied, leaf.Vault, prev.Timestamp)
	}

	inOutDeltaOnRefSlot, err := rec.InOutDelta.ValueForRefSlot(data.RefSlot)
	if err != nil {
		return types.Report{}, err
	}

	if err := checkFees(params, rec, data.Timestamp, leaf.CumulativeLidoFees); err != nil {
		return types.Report{}, err
	}
	if leaf.MaxLiabilityShares.GT(rec.MaxLiabilityShares) {
		return types.Report{}, fmt.Errorf("%w: reported %s above recorded %s",
			types.ErrInvalidMaxLiabilityShares, leaf.MaxLiabilityShares, rec.MaxLiabilityShares)
	}

	// value the ledger explains at the ref slot: the previous trusted value
	// plus net deposits made between the two reports
	onchain := prev.TotalValue.Add(inOutDeltaOnRefSlot).Sub(prev.InOutDelta)
	if onchain.IsNegative() {
		return types.Report{}, fmt.Errorf("%w: explained value %s at ref slot %d",
			types.ErrTotalValueUnderflow, onchain, data.RefSlot)
	}

	out := quarantine.Process(tx.Vault.Quarantine, params, quarantine.Input{
		Reported:  leaf.TotalValue,
		Onchain:   onchain,
		Timestamp: data.Timestamp,
	})
	if out.Trusted.Add(rec.InOutDelta.Current()).Sub(inOutDeltaOnRefSlot).IsNegative() {
		return types.Report{}, fmt.Errorf("%w: trusted %s, net deposits %s, at ref slot %s",
			types.ErrTotalValueUnderflow, out.Trusted, rec.InOutDelta.Current(), inOutDeltaOnRefSlot)
	}

	tx.Vault.Quarantine = out.Quarantine
	o.emitQuarantine(tx, out)

	return types.Report{
		TotalValue:         out.Trusted,
		InOutDelta:         inOutDeltaOnRefSlot,
		CumulativeLidoFees: leaf.CumulativeLidoFees,
		LiabilityShares:    leaf.LiabilityShares,
		MaxLiabilityShares: leaf.MaxLiabilityShares,
		SlashingReserve:    leaf.SlashingReserve,
		Timestamp:          data.Timestamp,
		RefSlot:            data.RefSlot,
	}, nil
}

// checkFees enforces that cumulative fees never decrease and grow no faster
// than the configured rate since the previous report.
func checkFees(params types.SanityParams, rec types.VaultRecord, at time.Time, reported math.Int) error {
	previous := rec.CumulativeLidoFees
	if reported.LT(previous) {
		return fmt.Errorf("%w: %s below %s", types.ErrCumulativeFeesTooLow, reported, previous)
	}
	elapsed := int64(at.Sub(rec.Report.Timestamp) / time.Second)
	limit := params.MaxLidoFeeRatePerSecond.MulRaw(elapsed)
	if increase := reported.Sub(previous); increase.GT(limit) {
		return fmt.Errorf("%w: increase %s over %ds exceeds %s",
			types.ErrCumulativeFeesTooLarge, increase, elapsed, limit)
	}
	return nil
}

func (o *Oracle) emitQuarantine(tx *hub.VaultTx, out quarantine.Outcome) {
	vault := tx.Vault.Address
	if out.Released != nil {
		o.metrics.QuarantinesReleased.With("reason", out.ReleaseReason).Add(1)
		tx.Emit(types.EventQuarantineReleased, types.EventDataQuarantine{
			Vault:   vault,
			Pending: out.Released.PendingTotalValueIncrease,
			Start:   out.Released.StartTimestamp,
			End:     out.Released.EndTimestamp,
			Reason:  out.ReleaseReason,
		})
	}
	if out.Opened {
		o.metrics.QuarantinesOpened.Add(1)
		q := out.Quarantine
		tx.Emit(types.EventQuarantineOpened, types.EventDataQuarantine{
			Vault:   vault,
			Pending: q.PendingTotalValueIncrease,
			Start:   q.StartTimestamp,
			End:     q.EndTimestamp,
		})
		o.logger.Info("quarantine opened", "vault", vault, "pending", q.PendingTotalValueIncrease, "until", q.EndTimestamp)
	}
}

func (o *Oracle) observeLeaf(vault common.Address, err error) {
	switch {
	case err == nil:
		o.metrics.LeavesSubmitted.With("result", "applied").Add(1)
		o.logger.Debug("vault leaf applied", "vault", vault)
	case errors.Is(err, types.ErrReportAlreadyApplied):
		o.metrics.LeavesSubmitted.With("result", "duplicate").Add(1)
	case types.IsInvariantError(err):
		o.metrics.LeavesSubmitted.With("result", "inconsistent").Add(1)
		o.logger.Error("vault leaf hit inconsistent state", "vault", vault, "err", err)
	default:
		o.metrics.LeavesSubmitted.With("result", "rejected").Add(1)
		o.logger.Debug("vault leaf rejected", "vault", vault, "err", err)
	}
}
