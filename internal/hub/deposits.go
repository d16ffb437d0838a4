package hub

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stvaults/vaulthub/types"
)

// PauseBeaconDeposits records the owner's intent to pause beacon chain
// deposits of vault.
func (h *Hub) PauseBeaconDeposits(ctx context.Context, caller, vault common.Address) error {
	return h.setDepositsIntent(ctx, "pause_beacon_deposits", caller, vault, true)
}

// ResumeBeaconDeposits clears the owner's pause intent. Deposits stay paused
// while fees or shares to burn remain outstanding.
func (h *Hub) ResumeBeaconDeposits(ctx context.Context, caller, vault common.Address) error {
	return h.setDepositsIntent(ctx, "resume_beacon_deposits", caller, vault, false)
}

func (h *Hub) setDepositsIntent(ctx context.Context, op string, caller, vault common.Address, paused bool) error {
	if err := h.requireResumed(); err != nil {
		return err
	}
	return h.update(ctx, op, vault, func(tx *VaultTx) error {
		if err := requireOwner(tx, caller); err != nil {
			return err
		}
		conn := &tx.Vault.Connection
		if conn.BeaconDepositsManuallyPaused != paused {
			conn.BeaconDepositsManuallyPaused = paused
			tx.Emit(types.EventDepositsPauseIntentSet, types.EventDataDeposits{
				Vault:       vault,
				ManualPause: paused,
			})
		}
		return h.syncDepositsPause(tx)
	})
}

// syncDepositsPause pauses beacon deposits while the owner asks for it,
// fees to settle reach the threshold or shares must be burned, and resumes
// them once none of these hold. The current pause flag is read right away;
// the transition, and its event, only happen at commit.
func (h *Hub) syncDepositsPause(tx *VaultTx) error {
	obligations, err := h.obligations(tx)
	if err != nil {
		return err
	}
	manual := tx.Vault.Connection.BeaconDepositsManuallyPaused
	shouldPause := manual ||
		obligations.FeesToSettle.GTE(h.cfg.FeePauseThreshold) ||
		obligations.SharesToBurn.IsPositive()

	vault := tx.Vault.Address
	paused, err := h.vaults.BeaconChainDepositsPaused(tx.ctx, vault)
	if err != nil {
		return fmt.Errorf("deposit pause state of %s: %w", vault, err)
	}
	if paused == shouldPause {
		return nil
	}

	data := types.EventDataDeposits{
		Vault:        vault,
		FeesToSettle: obligations.FeesToSettle,
		SharesToBurn: obligations.SharesToBurn,
		ManualPause:  manual,
	}
	tx.calls = append(tx.calls, collaboratorCall{
		name:        "sync_deposit_pause",
		depositSync: true,
		run: func(ctx context.Context) error {
			if shouldPause {
				if err := h.vaults.PauseBeaconChainDeposits(ctx, vault); err != nil {
					return fmt.Errorf("pause deposits of %s: %w", vault, err)
				}
				h.metrics.DepositPauses.With("direction", "pause").Add(1)
				tx.Emit(types.EventDepositsPaused, data)
				return nil
			}
			if err := h.vaults.ResumeBeaconChainDeposits(ctx, vault); err != nil {
				return fmt.Errorf("resume deposits of %s: %w", vault, err)
			}
			h.metrics.DepositPauses.With("direction", "resume").Add(1)
			tx.Emit(types.EventDepositsResumed, data)
			return nil
		},
	})
	return nil
}
