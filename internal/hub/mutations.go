package hub

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/stvaults/vaulthub/internal/auth"
	"github.com/stvaults/vaulthub/internal/quarantine"
	"github.com/stvaults/vaulthub/types"
)

// Fund records amount deposited into vault by its owner. The deposit counts
// toward total value immediately.
func (h *Hub) Fund(ctx context.Context, caller, vault common.Address, amount math.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := h.requireResumed(); err != nil {
		return err
	}
	return h.update(ctx, "fund", vault, func(tx *VaultTx) error {
		if err := requireOwner(tx, caller); err != nil {
			return err
		}
		if tx.Vault.Connection.PendingDisconnect {
			return fmt.Errorf("%w: %s", types.ErrPendingDisconnect, vault)
		}
		before, err := tx.Vault.Record.TotalValue()
		if err != nil {
			return err
		}

		rec := &tx.Vault.Record
		rec.InOutDelta = rec.InOutDelta.WithIncrease(tx.RefSlot, amount)

		tx.Emit(types.EventFunded, types.EventDataValueMoved{
			Vault:            vault,
			Amount:           amount,
			TotalValueBefore: before,
			TotalValueAfter:  before.Add(amount),
		})
		return h.syncDepositsPause(tx)
	})
}

// Withdraw moves amount out of vault to recipient. The vault must keep at
// least its locked value. A pending quarantined increase pays for the
// withdrawal first and total value only drops by the rest.
func (h *Hub) Withdraw(ctx context.Context, caller, vault, recipient common.Address, amount math.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: recipient", types.ErrZeroAddress)
	}
	if err := h.requireResumed(); err != nil {
		return err
	}
	return h.update(ctx, "withdraw", vault, func(tx *VaultTx) error {
		if err := requireOwner(tx, caller); err != nil {
			return err
		}
		if tx.Vault.Connection.PendingDisconnect {
			return fmt.Errorf("%w: %s", types.ErrPendingDisconnect, vault)
		}
		if err := h.requireFreshReport(tx); err != nil {
			return err
		}

		tv, err := tx.Vault.Record.TotalValue()
		if err != nil {
			return err
		}
		locked, err := h.locked(tx)
		if err != nil {
			return err
		}
		if available := headroom(tv, locked); amount.GT(available) {
			return fmt.Errorf("%w: withdrawing %s, %s available above locked %s",
				types.ErrInsufficientValue, amount, available, locked)
		}

		q, absorbed := quarantine.Absorb(tx.Vault.Quarantine, amount)
		if absorbed.IsPositive() && !q.IsActive {
			released := tx.Vault.Quarantine
			tx.Emit(types.EventQuarantineReleased, types.EventDataQuarantine{
				Vault:   vault,
				Pending: released.PendingTotalValueIncrease,
				Start:   released.StartTimestamp,
				End:     released.EndTimestamp,
				Reason:  quarantine.ReasonWithdrawn,
			})
		}
		tx.Vault.Quarantine = q

		rec := &tx.Vault.Record
		// the absorbed part of the pending increase is trusted as it leaves,
		// so the next report still finds the rest of the pending value
		rec.Report.TotalValue = rec.Report.TotalValue.Add(absorbed)
		rec.InOutDelta = rec.InOutDelta.WithIncrease(tx.RefSlot, amount.Neg())

		tx.call("withdraw", func(ctx context.Context) error {
			if err := h.vaults.Withdraw(ctx, vault, recipient, amount); err != nil {
				return fmt.Errorf("withdraw from %s: %w", vault, err)
			}
			return nil
		})
		tx.Emit(types.EventWithdrawn, types.EventDataValueMoved{
			Vault:            vault,
			Amount:           amount,
			TotalValueBefore: tv,
			TotalValueAfter:  tv.Sub(amount).Add(absorbed),
			Recipient:        recipient,
		})
		return h.syncDepositsPause(tx)
	})
}

// MintShares mints shares against vault to recipient. The resulting locked
// value must fit in total value net of unsettled fees and liability must stay
// within the share limit.
func (h *Hub) MintShares(ctx context.Context, caller, vault, recipient common.Address, shares math.Int) error {
	if err := requirePositive(shares); err != nil {
		return err
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: recipient", types.ErrZeroAddress)
	}
	if err := h.requireResumed(); err != nil {
		return err
	}
	return h.update(ctx, "mint_shares", vault, func(tx *VaultTx) error {
		if err := requireOwner(tx, caller); err != nil {
			return err
		}
		if tx.Vault.Connection.PendingDisconnect {
			return fmt.Errorf("%w: %s", types.ErrPendingDisconnect, vault)
		}
		if err := h.requireFreshReport(tx); err != nil {
			return err
		}

		rec := &tx.Vault.Record
		conn := tx.Vault.Connection
		before := rec.LiabilityShares
		after := before.Add(shares)
		if after.GT(conn.ShareLimit) {
			return fmt.Errorf("%w: %s shares exceed limit %s", types.ErrShareLimitExceeded, after, conn.ShareLimit)
		}

		tv, err := rec.TotalValue()
		if err != nil {
			return err
		}
		rate, err := h.shareRate(tx)
		if err != nil {
			return err
		}
		maxAfter := math.MaxInt(rec.MaxLiabilityShares, after)
		lockedAfter := lockedFor(rate, maxAfter, rec.MinimalReserve, conn.ReserveRatioBP)
		maxLockable := tv.Sub(rec.FeesToSettle())
		if lockedAfter.GT(maxLockable) {
			return fmt.Errorf("%w: minting would lock %s of %s lockable",
				types.ErrInsufficientValue, lockedAfter, maxLockable)
		}

		tx.call("mint_shares", func(ctx context.Context) error {
			if err := h.token.MintExternalShares(ctx, recipient, shares); err != nil {
				return fmt.Errorf("mint shares: %w", err)
			}
			return nil
		})
		rec.LiabilityShares = after
		rec.MaxLiabilityShares = maxAfter

		tx.Emit(types.EventSharesMinted, types.EventDataShares{
			Vault:                 vault,
			Shares:                shares,
			Value:                 rate.valueByShares(shares),
			LiabilitySharesBefore: before,
			LiabilitySharesAfter:  after,
		})
		return h.syncDepositsPause(tx)
	})
}

// BurnShares burns shares the owner returns, reducing the vault's
// liability.
func (h *Hub) BurnShares(ctx context.Context, caller, vault common.Address, shares math.Int) error {
	if err := requirePositive(shares); err != nil {
		return err
	}
	if err := h.requireResumed(); err != nil {
		return err
	}
	return h.update(ctx, "burn_shares", vault, func(tx *VaultTx) error {
		if err := requireOwner(tx, caller); err != nil {
			return err
		}
		before := tx.Vault.Record.LiabilityShares
		if err := decreaseLiability(&tx.Vault.Record, shares); err != nil {
			return err
		}
		tx.call("burn_shares", func(ctx context.Context) error {
			if err := h.token.BurnExternalShares(ctx, caller, shares); err != nil {
				return fmt.Errorf("burn shares: %w", err)
			}
			return nil
		})
		tx.Emit(types.EventSharesBurned, types.EventDataShares{
			Vault:                 vault,
			Shares:                shares,
			LiabilitySharesBefore: before,
			LiabilitySharesAfter:  tx.Vault.Record.LiabilityShares,
		})
		return h.syncDepositsPause(tx)
	})
}

// Rebalance lets the owner pay back shares with vault value.
func (h *Hub) Rebalance(ctx context.Context, caller, vault common.Address, shares math.Int) error {
	if err := requirePositive(shares); err != nil {
		return err
	}
	if err := h.requireResumed(); err != nil {
		return err
	}
	return h.update(ctx, "rebalance", vault, func(tx *VaultTx) error {
		if err := requireOwner(tx, caller); err != nil {
			return err
		}
		return h.rebalance(tx, shares, false)
	})
}

// ForceRebalance resolves a health shortfall or pending redemption of vault
// by rebalancing as many shares as its value allows. Anyone may call it.
// Fees are left for SettleLidoFees.
func (h *Hub) ForceRebalance(ctx context.Context, vault common.Address) error {
	if err := h.requireResumed(); err != nil {
		return err
	}
	return h.update(ctx, "force_rebalance", vault, func(tx *VaultTx) error {
		if err := h.requireFreshReport(tx); err != nil {
			return err
		}
		obligations, err := h.obligations(tx)
		if err != nil {
			return err
		}
		if !obligations.SharesToBurn.IsPositive() {
			return fmt.Errorf("%w: %s", types.ErrNoReasonForForceRebalance, vault)
		}

		tv, err := tx.Vault.Record.TotalValue()
		if err != nil {
			return err
		}
		rate, err := h.shareRate(tx)
		if err != nil {
			return err
		}
		shares := math.MinInt(obligations.SharesToBurn,
			math.MinInt(tx.Vault.Record.LiabilityShares, rate.sharesByValue(tv)))
		if !shares.IsPositive() {
			return fmt.Errorf("%w: nothing to rebalance from %s", types.ErrInsufficientValue, vault)
		}
		return h.rebalance(tx, shares, true)
	})
}

func (h *Hub) rebalance(tx *VaultTx, shares math.Int, forced bool) error {
	rec := &tx.Vault.Record
	tv, err := rec.TotalValue()
	if err != nil {
		return err
	}
	rate, err := h.shareRate(tx)
	if err != nil {
		return err
	}

	value := math.MinInt(rate.valueBySharesRoundUp(shares), tv)
	if !forced && rate.valueBySharesRoundUp(shares).GT(tv) {
		return fmt.Errorf("%w: rebalancing %s shares needs %s, vault holds %s",
			types.ErrInsufficientValue, shares, rate.valueBySharesRoundUp(shares), tv)
	}

	before := rec.LiabilityShares
	if err := decreaseLiability(rec, shares); err != nil {
		return err
	}
	rec.InOutDelta = rec.InOutDelta.WithIncrease(tx.RefSlot, value.Neg())

	vault := tx.Vault.Address
	tx.call("withdraw_to_pool", func(ctx context.Context) error {
		if err := h.vaults.Withdraw(ctx, vault, h.cfg.Pool, value); err != nil {
			return fmt.Errorf("withdraw from %s: %w", vault, err)
		}
		return nil
	})
	tx.call("rebalance_to_pool", func(ctx context.Context) error {
		if err := h.token.RebalanceExternalEtherToInternal(ctx, value); err != nil {
			return fmt.Errorf("rebalance to pool: %w", err)
		}
		return nil
	})

	tx.Emit(types.EventRebalanced, types.EventDataShares{
		Vault:                 vault,
		Shares:                shares,
		Value:                 value,
		LiabilitySharesBefore: before,
		LiabilitySharesAfter:  rec.LiabilityShares,
		Forced:                forced,
	})
	return h.syncDepositsPause(tx)
}

// decreaseLiability retires shares from the record. Redemption shares are
// paid down first.
func decreaseLiability(rec *types.VaultRecord, shares math.Int) error {
	if shares.GT(rec.LiabilityShares) {
		return fmt.Errorf("%w: burning %s of %s", types.ErrInsufficientShares, shares, rec.LiabilityShares)
	}
	rec.LiabilityShares = rec.LiabilityShares.Sub(shares)
	if rec.RedemptionShares.IsPositive() {
		rec.RedemptionShares = rec.RedemptionShares.Sub(math.MinInt(rec.RedemptionShares, shares))
	}
	return nil
}

// SettleLidoFees pays as much of vault's unsettled fees to the treasury as
// its value above locked allows. Anyone may call it. Partial settlement
// leaves the rest outstanding.
func (h *Hub) SettleLidoFees(ctx context.Context, vault common.Address) error {
	if err := h.requireResumed(); err != nil {
		return err
	}
	return h.update(ctx, "settle_lido_fees", vault, func(tx *VaultTx) error {
		if err := h.requireFreshReport(tx); err != nil {
			return err
		}
		obligations, err := h.obligations(tx)
		if err != nil {
			return err
		}
		if obligations.BadDebt() {
			return fmt.Errorf("%w: %s", types.ErrBadDebt, vault)
		}
		if obligations.FeesToSettle.IsZero() {
			return fmt.Errorf("%w: %s", types.ErrNoFeesToSettle, vault)
		}

		tv, err := tx.Vault.Record.TotalValue()
		if err != nil {
			return err
		}
		locked, err := h.locked(tx)
		if err != nil {
			return err
		}
		available := headroom(tv, locked)
		if available.IsZero() {
			return fmt.Errorf("%w: %s has %s locked of %s", types.ErrNoFundsToSettle, vault, locked, tv)
		}

		if err := h.settle(tx, math.MinInt(obligations.FeesToSettle, available)); err != nil {
			return err
		}
		return h.syncDepositsPause(tx)
	})
}

// settle pays amount of fees to the treasury.
func (h *Hub) settle(tx *VaultTx, amount math.Int) error {
	rec := &tx.Vault.Record
	vault := tx.Vault.Address

	before := rec.SettledLidoFees
	rec.SettledLidoFees = before.Add(amount)
	rec.InOutDelta = rec.InOutDelta.WithIncrease(tx.RefSlot, amount.Neg())

	tx.call("settle_fees", func(ctx context.Context) error {
		if err := h.vaults.Withdraw(ctx, vault, h.cfg.Treasury, amount); err != nil {
			return fmt.Errorf("settle fees of %s: %w", vault, err)
		}
		h.metrics.FeesSettled.Add(wei(amount))
		return nil
	})
	tx.Emit(types.EventFeesSettled, types.EventDataFeesSettled{
		Vault:              vault,
		Transferred:        amount,
		CumulativeLidoFees: rec.CumulativeLidoFees,
		SettledBefore:      before,
		SettledAfter:       rec.SettledLidoFees,
	})
	return nil
}

// SetLiabilitySharesTarget asks vault to bring its liability down to target.
// The difference becomes redemption shares, an obligation that pauses
// deposits and allows forced rebalancing until paid.
func (h *Hub) SetLiabilitySharesTarget(ctx context.Context, caller, vault common.Address, target math.Int) error {
	if target.IsNil() || target.IsNegative() {
		return fmt.Errorf("%w: negative liability target", types.ErrInvalidMaxLiabilityShares)
	}
	if err := auth.Check(h.authz, caller, auth.RoleRedemptionMaster); err != nil {
		return err
	}
	return h.update(ctx, "set_liability_shares_target", vault, func(tx *VaultTx) error {
		rec := &tx.Vault.Record
		before := rec.RedemptionShares
		after := math.ZeroInt()
		if rec.LiabilityShares.GT(target) {
			after = rec.LiabilityShares.Sub(target)
		}
		rec.RedemptionShares = after

		tx.Emit(types.EventRedemptionSharesUpdated, types.EventDataRedemptionShares{
			Vault:  vault,
			Before: before,
			After:  after,
		})
		return h.syncDepositsPause(tx)
	})
}
