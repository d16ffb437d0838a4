package hub

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/stvaults/vaulthub/types"
)

// VaultState is a vault together with everything derived from it at one
// point in time.
type VaultState struct {
	*types.Vault

	TotalValue  math.Int          `json:"total_value"`
	Locked      math.Int          `json:"locked"`
	Obligations types.Obligations `json:"obligations"`
	// Withdrawable is the value the owner could withdraw now, ignoring
	// report freshness.
	Withdrawable math.Int `json:"withdrawable"`
	Healthy      bool     `json:"healthy"`
	ReportFresh  bool     `json:"report_fresh"`
}

// State returns the derived state of vault.
func (h *Hub) State(ctx context.Context, vault common.Address) (*VaultState, error) {
	tx, err := h.view(ctx, vault)
	if err != nil {
		return nil, err
	}
	return h.state(tx)
}

// TotalValue returns the current total value of vault.
func (h *Hub) TotalValue(ctx context.Context, vault common.Address) (math.Int, error) {
	tx, err := h.view(ctx, vault)
	if err != nil {
		return math.Int{}, err
	}
	return tx.Vault.Record.TotalValue()
}

// Locked returns the value vault must retain given its liabilities.
func (h *Hub) Locked(ctx context.Context, vault common.Address) (math.Int, error) {
	tx, err := h.view(ctx, vault)
	if err != nil {
		return math.Int{}, err
	}
	return h.locked(tx)
}

// Obligations returns what vault owes.
func (h *Hub) Obligations(ctx context.Context, vault common.Address) (types.Obligations, error) {
	tx, err := h.view(ctx, vault)
	if err != nil {
		return types.Obligations{}, err
	}
	return h.obligations(tx)
}

// IsHealthy reports whether vault's liability stays within its forced
// rebalance threshold.
func (h *Hub) IsHealthy(ctx context.Context, vault common.Address) (bool, error) {
	tx, err := h.view(ctx, vault)
	if err != nil {
		return false, err
	}
	breached, err := h.thresholdBreached(tx)
	return !breached, err
}

// IsReportFresh reports whether vault's report allows value-moving
// operations.
func (h *Hub) IsReportFresh(ctx context.Context, vault common.Address) (bool, error) {
	tx, err := h.view(ctx, vault)
	if err != nil {
		return false, err
	}
	return h.isReportFresh(tx)
}

// Vaults returns the addresses of all connected vaults.
func (h *Hub) Vaults() ([]common.Address, error) {
	return h.store.Vaults()
}

// Paused reports whether the hub is paused.
func (h *Hub) Paused() (bool, error) {
	return h.store.HubPaused()
}

//-----------------------------------------------------------------------------

// view loads vault for reading. The load holds the vault's lock so it never
// sees a save or delete half applied. Nothing done on the returned tx is
// saved.
func (h *Hub) view(ctx context.Context, vault common.Address) (*VaultTx, error) {
	unlock := h.store.Lock(vault)
	v, ok, err := h.store.LoadVault(vault)
	unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrVaultNotConnected, vault)
	}
	return &VaultTx{
		Vault:   v,
		Now:     types.CanonicalTime(h.clock.Now()),
		RefSlot: h.consensus.FrameReferenceSlot(),
		ctx:     ctx,
	}, nil
}

func (h *Hub) state(tx *VaultTx) (*VaultState, error) {
	tv, err := tx.Vault.Record.TotalValue()
	if err != nil {
		return nil, err
	}
	locked, err := h.locked(tx)
	if err != nil {
		return nil, err
	}
	obligations, err := h.obligations(tx)
	if err != nil {
		return nil, err
	}
	breached, err := h.thresholdBreached(tx)
	if err != nil {
		return nil, err
	}
	fresh, err := h.isReportFresh(tx)
	if err != nil {
		return nil, err
	}
	return &VaultState{
		Vault:        tx.Vault,
		TotalValue:   tv,
		Locked:       locked,
		Obligations:  obligations,
		Withdrawable: headroom(tv, locked),
		Healthy:      !breached,
		ReportFresh:  fresh,
	}, nil
}

// lockedFor is the reserve requirement for maxLiabilityShares: the greater of
// minimalReserve and the liability value grown by the reserve ratio, rounded
// up.
func lockedFor(rate *shareRate, maxLiabilityShares, minimalReserve math.Int, reserveRatioBP uint32) math.Int {
	liability := rate.valueBySharesRoundUp(maxLiabilityShares)
	reserved := types.CeilDiv(
		liability.MulRaw(int64(types.TotalBasisPoints+reserveRatioBP)),
		math.NewInt(types.TotalBasisPoints),
	)
	return math.MaxInt(minimalReserve, reserved)
}

func (h *Hub) locked(tx *VaultTx) (math.Int, error) {
	rate, err := h.shareRate(tx)
	if err != nil {
		return math.Int{}, err
	}
	rec := tx.Vault.Record
	return lockedFor(rate, rec.MaxLiabilityShares, rec.MinimalReserve, tx.Vault.Connection.ReserveRatioBP), nil
}

// headroom is the value above locked, zero if none.
func headroom(tv, locked math.Int) math.Int {
	if tv.LTE(locked) {
		return math.ZeroInt()
	}
	return tv.Sub(locked)
}

func (h *Hub) thresholdBreached(tx *VaultTx) (bool, error) {
	tv, err := tx.Vault.Record.TotalValue()
	if err != nil {
		return false, err
	}
	rate, err := h.shareRate(tx)
	if err != nil {
		return false, err
	}
	return isThresholdBreached(rate, tv, tx.Vault.Record.LiabilityShares,
		tx.Vault.Connection.ForcedRebalanceThresholdBP), nil
}

func isThresholdBreached(rate *shareRate, tv, liabilityShares math.Int, thresholdBP uint32) bool {
	liability := rate.valueBySharesRoundUp(liabilityShares)
	return liability.GT(types.MulBP(tv, types.TotalBasisPoints-thresholdBP))
}

// healthShortfallShares returns the shares that must be rebalanced to bring
// the vault back to its reserve ratio, or UnboundedShares when its total
// value cannot cover its liability at all.
func (h *Hub) healthShortfallShares(tx *VaultTx) (math.Int, error) {
	breached, err := h.thresholdBreached(tx)
	if err != nil || !breached {
		return math.ZeroInt(), err
	}

	tv, err := tx.Vault.Record.TotalValue()
	if err != nil {
		return math.Int{}, err
	}
	rate, err := h.shareRate(tx)
	if err != nil {
		return math.Int{}, err
	}

	liabilityShares := tx.Vault.Record.LiabilityShares
	sharesByTotalValue := rate.sharesByValue(tv)
	if liabilityShares.GTE(sharesByTotalValue) {
		return types.UnboundedShares, nil
	}

	// X shares rebalanced restore (LS - X) <= (sharesByTV - X) * (1 - RR)
	rr := int64(tx.Vault.Connection.ReserveRatioBP)
	numerator := liabilityShares.MulRaw(types.TotalBasisPoints).
		Sub(sharesByTotalValue.MulRaw(types.TotalBasisPoints - rr))
	if !numerator.IsPositive() {
		return math.ZeroInt(), nil
	}
	return types.CeilDiv(numerator, math.NewInt(rr)), nil
}

func (h *Hub) obligations(tx *VaultTx) (types.Obligations, error) {
	shortfall, err := h.healthShortfallShares(tx)
	if err != nil {
		return types.Obligations{}, err
	}
	return types.Obligations{
		FeesToSettle: tx.Vault.Record.FeesToSettle(),
		SharesToBurn: math.MaxInt(shortfall, tx.Vault.Record.RedemptionShares),
	}, nil
}

// isReportFresh requires the report to be recent and to come from the latest
// published root.
func (h *Hub) isReportFresh(tx *VaultTx) (bool, error) {
	ts := tx.Vault.Record.Report.Timestamp
	if tx.Now.Sub(ts) > h.cfg.FreshnessDelta {
		return false, nil
	}
	latest, ok, err := h.store.LoadReportData()
	if err != nil || !ok {
		return err == nil, err
	}
	return !ts.Before(latest.Timestamp), nil
}

func (h *Hub) requireFreshReport(tx *VaultTx) error {
	fresh, err := h.isReportFresh(tx)
	if err != nil {
		return err
	}
	if !fresh {
		return fmt.Errorf("%w: %s reported at %s", types.ErrReportStale,
			tx.Vault.Address, tx.Vault.Record.Report.Timestamp)
	}
	return nil
}
