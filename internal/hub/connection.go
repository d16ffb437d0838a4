package hub

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/stvaults/vaulthub/internal/auth"
	"github.com/stvaults/vaulthub/types"
)

// ConnectVault brings vault under the hub with initialValue as both its
// trusted value and its net deposit baseline.
func (h *Hub) ConnectVault(
	ctx context.Context,
	caller, vault, owner, nodeOperator common.Address,
	params types.ConnectionParams,
	initialValue math.Int,
) (err error) {
	defer func() { h.observe("connect_vault", vault, err) }()

	if err := auth.Check(h.authz, caller, auth.RoleVaultMaster); err != nil {
		return err
	}
	if err := h.requireResumed(); err != nil {
		return err
	}
	if vault == (common.Address{}) || owner == (common.Address{}) {
		return fmt.Errorf("%w: vault and owner are required", types.ErrZeroAddress)
	}
	if err := params.ValidateBasic(); err != nil {
		return err
	}
	if initialValue.IsNil() || initialValue.LT(h.cfg.MinimalReserve) {
		return fmt.Errorf("%w: initial value %s below minimal reserve %s",
			types.ErrInsufficientValue, initialValue, h.cfg.MinimalReserve)
	}

	wc, err := h.vaults.WithdrawalCredentials(ctx, vault)
	if err != nil {
		return fmt.Errorf("withdrawal credentials of %s: %w", vault, err)
	}
	if want := WithdrawalCredentials(vault); wc != want {
		return fmt.Errorf("%w: %s has %s, want %s", types.ErrInvalidWithdrawalCredentials, vault, wc, want)
	}

	tx, err := h.connect(ctx, vault, owner, nodeOperator, params, initialValue)
	if err != nil {
		return err
	}
	h.fire(tx)
	h.metrics.ConnectedVaults.Add(1)
	h.logger.Info("vault connected", "vault", vault, "owner", owner, "initial_value", initialValue)
	return nil
}

func (h *Hub) connect(
	ctx context.Context,
	vault, owner, nodeOperator common.Address,
	params types.ConnectionParams,
	initialValue math.Int,
) (*VaultTx, error) {
	unlock := h.store.Lock(vault)
	defer unlock()

	connected, err := h.store.HasVault(vault)
	if err != nil {
		return nil, err
	}
	if connected {
		return nil, fmt.Errorf("%w: %s", types.ErrVaultAlreadyConnected, vault)
	}

	now := types.CanonicalTime(h.clock.Now())
	tx := &VaultTx{
		Vault: &types.Vault{
			Address: vault,
			Connection: types.VaultConnection{
				ConnectionParams: params,
				Owner:            owner,
				NodeOperator:     nodeOperator,
				ConnectedAt:      now,
			},
			Record: types.NewVaultRecord(initialValue, h.cfg.MinimalReserve, now, h.consensus.FrameReferenceSlot()),
			Quarantine: types.Quarantine{
				PendingTotalValueIncrease: math.ZeroInt(),
			},
		},
		Now:     now,
		RefSlot: h.consensus.FrameReferenceSlot(),
		ctx:     ctx,
	}
	tx.Emit(types.EventVaultConnected, types.EventDataVaultConnected{
		Vault:        vault,
		Owner:        owner,
		InitialValue: initialValue,
		Params:       params,
	})
	if err := h.syncDepositsPause(tx); err != nil {
		return nil, err
	}
	return h.commit(tx)
}

// UpdateConnection replaces the risk and fee parameters of vault. The vault
// must stay within the new reserve ratio.
func (h *Hub) UpdateConnection(ctx context.Context, caller, vault common.Address, params types.ConnectionParams) error {
	if err := auth.Check(h.authz, caller, auth.RoleVaultMaster); err != nil {
		return err
	}
	if err := params.ValidateBasic(); err != nil {
		return err
	}
	return h.update(ctx, "update_connection", vault, func(tx *VaultTx) error {
		if tx.Vault.Connection.PendingDisconnect {
			return fmt.Errorf("%w: %s", types.ErrPendingDisconnect, vault)
		}
		if err := h.requireFreshReport(tx); err != nil {
			return err
		}

		rec := tx.Vault.Record
		tv, err := rec.TotalValue()
		if err != nil {
			return err
		}
		rate, err := h.shareRate(tx)
		if err != nil {
			return err
		}
		if locked := lockedFor(rate, rec.MaxLiabilityShares, rec.MinimalReserve, params.ReserveRatioBP); locked.GT(tv) {
			return fmt.Errorf("%w: new reserve ratio locks %s of %s", types.ErrInsufficientValue, locked, tv)
		}

		before := tx.Vault.Connection.ConnectionParams
		tx.Vault.Connection.ConnectionParams = params
		tx.Emit(types.EventConnectionUpdated, types.EventDataConnectionUpdated{
			Vault:  vault,
			Before: before,
			After:  params,
		})
		return h.syncDepositsPause(tx)
	})
}

// VoluntaryDisconnect starts the owner's exit from the hub. The vault must
// have no liability and its fees must be settled, which is attempted first
// with all of its value. The disconnect completes on the next report.
func (h *Hub) VoluntaryDisconnect(ctx context.Context, caller, vault common.Address) error {
	if err := h.requireResumed(); err != nil {
		return err
	}
	return h.update(ctx, "voluntary_disconnect", vault, func(tx *VaultTx) error {
		if err := requireOwner(tx, caller); err != nil {
			return err
		}
		if tx.Vault.Connection.PendingDisconnect {
			return fmt.Errorf("%w: %s", types.ErrPendingDisconnect, vault)
		}
		if err := h.requireFreshReport(tx); err != nil {
			return err
		}
		rec := tx.Vault.Record
		if rec.LiabilityShares.IsPositive() {
			return fmt.Errorf("%w: %s shares", types.ErrLiabilitySharesRemain, rec.LiabilityShares)
		}
		obligations, err := h.obligations(tx)
		if err != nil {
			return err
		}
		if obligations.BadDebt() {
			return fmt.Errorf("%w: %s", types.ErrBadDebt, vault)
		}

		payable, err := h.disconnectSettlement(tx, obligations)
		if err != nil {
			return err
		}
		if remaining := obligations.FeesToSettle.Sub(payable); remaining.IsPositive() {
			return fmt.Errorf("%w: %s left after settling %s", types.ErrUnsettledFees, remaining, payable)
		}
		if payable.IsPositive() {
			if err := h.settle(tx, payable); err != nil {
				return err
			}
		}
		h.initiateDisconnect(tx, false)
		return nil
	})
}

// Disconnect force-disconnects vault. It always proceeds: fees are settled
// as far as the vault's value allows and the rest stays tracked until a
// later report completes the disconnect.
func (h *Hub) Disconnect(ctx context.Context, caller, vault common.Address) error {
	if err := auth.Check(h.authz, caller, auth.RoleVaultMaster); err != nil {
		return err
	}
	return h.update(ctx, "disconnect", vault, func(tx *VaultTx) error {
		if tx.Vault.Connection.PendingDisconnect {
			return fmt.Errorf("%w: %s", types.ErrPendingDisconnect, vault)
		}
		if err := h.settleBestEffort(tx); err != nil {
			return err
		}
		h.initiateDisconnect(tx, true)
		return nil
	})
}

// disconnectSettlement returns how much of the fees a leaving vault can pay.
// With no liability left nothing needs to stay locked.
func (h *Hub) disconnectSettlement(tx *VaultTx, obligations types.Obligations) (math.Int, error) {
	if obligations.BadDebt() || obligations.FeesToSettle.IsZero() {
		return math.ZeroInt(), nil
	}
	tv, err := tx.Vault.Record.TotalValue()
	if err != nil {
		return math.Int{}, err
	}
	if tx.Vault.Record.LiabilityShares.IsPositive() {
		locked, err := h.locked(tx)
		if err != nil {
			return math.Int{}, err
		}
		tv = headroom(tv, locked)
	}
	return math.MinInt(obligations.FeesToSettle, math.MaxInt(tv, math.ZeroInt())), nil
}

func (h *Hub) settleBestEffort(tx *VaultTx) error {
	obligations, err := h.obligations(tx)
	if err != nil {
		return err
	}
	payable, err := h.disconnectSettlement(tx, obligations)
	if err != nil || !payable.IsPositive() {
		return err
	}
	return h.settle(tx, payable)
}

func (h *Hub) initiateDisconnect(tx *VaultTx, forced bool) {
	conn := &tx.Vault.Connection
	conn.PendingDisconnect = true
	conn.DisconnectForced = forced
	conn.DisconnectInitiatedAt = tx.Now

	tx.Emit(types.EventDisconnectInitiated, types.EventDataDisconnect{
		Vault:           tx.Vault.Address,
		Forced:          forced,
		FeesToSettle:    tx.Vault.Record.FeesToSettle(),
		LiabilityShares: tx.Vault.Record.LiabilityShares,
	})
	h.logger.Info("disconnect initiated", "vault", tx.Vault.Address, "forced", forced)
}

// resolveDisconnect runs on every report applied to a vault with a pending
// disconnect. A report taken after the initiation completes the disconnect
// once liability and fees are cleared, and aborts it when the vault must
// still hold a slashing reserve.
func (h *Hub) resolveDisconnect(tx *VaultTx) error {
	conn := &tx.Vault.Connection
	rec := tx.Vault.Record
	if !conn.PendingDisconnect || rec.Report.Timestamp.Before(conn.DisconnectInitiatedAt) {
		return nil
	}

	data := types.EventDataDisconnect{
		Vault:           tx.Vault.Address,
		Forced:          conn.DisconnectForced,
		LiabilityShares: rec.LiabilityShares,
		SlashingReserve: rec.Report.SlashingReserve,
	}

	if rec.Report.SlashingReserve.IsPositive() {
		conn.PendingDisconnect = false
		conn.DisconnectForced = false
		conn.DisconnectInitiatedAt = time.Time{}
		data.FeesToSettle = rec.FeesToSettle()
		tx.Emit(types.EventDisconnectAborted, data)
		h.logger.Info("disconnect aborted", "vault", tx.Vault.Address, "slashing_reserve", rec.Report.SlashingReserve)
		return nil
	}

	if err := h.settleBestEffort(tx); err != nil {
		return err
	}
	data.FeesToSettle = tx.Vault.Record.FeesToSettle()
	if tx.Vault.Record.LiabilityShares.IsPositive() || data.FeesToSettle.IsPositive() {
		return nil
	}

	tx.deleted = true
	tx.Emit(types.EventDisconnectCompleted, data)
	h.logger.Info("disconnect completed", "vault", tx.Vault.Address)
	return nil
}

// Pause stops every owner and permissionless operation on the hub. Report
// ingestion stays available.
func (h *Hub) Pause(caller common.Address) error {
	return h.setPaused(caller, true)
}

// Resume lifts a Pause.
func (h *Hub) Resume(caller common.Address) error {
	return h.setPaused(caller, false)
}

func (h *Hub) setPaused(caller common.Address, paused bool) error {
	if err := auth.Check(h.authz, caller, auth.RolePauser); err != nil {
		return err
	}
	current, err := h.store.HubPaused()
	if err != nil {
		return err
	}
	if current == paused {
		return nil
	}
	if err := h.store.SetHubPaused(paused); err != nil {
		return err
	}

	event := types.EventHubResumed
	if paused {
		event = types.EventHubPaused
	}
	h.evsw.FireEvent(event, types.EventDataHubPause{By: caller})
	h.logger.Info("hub pause changed", "paused", paused, "by", caller)
	return nil
}
