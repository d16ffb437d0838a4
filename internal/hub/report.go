package hub

import (
	"context"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/stvaults/vaulthub/types"
)

// ReportCheck validates an oracle report against the vault it is applied
// to and returns the report to store. It runs under the vault's lock and may
// update tx.Vault.Quarantine and emit events; nothing is persisted if it
// fails.
type ReportCheck func(tx *VaultTx) (types.Report, error)

// ApplyVaultReport replaces vault's trusted report with the one produced by
// check, then reconciles everything derived from it: minimal reserve,
// liability ceiling, net deposit cache, a pending disconnect and the deposit
// pause.
func (h *Hub) ApplyVaultReport(ctx context.Context, vault common.Address, check ReportCheck) error {
	return h.update(ctx, "apply_report", vault, func(tx *VaultTx) error {
		rec := &tx.Vault.Record
		before, err := rec.TotalValue()
		if err != nil {
			return err
		}
		feesBefore := rec.CumulativeLidoFees

		report, err := check(tx)
		if err != nil {
			return err
		}

		rec.Report = report
		rec.CumulativeLidoFees = report.CumulativeLidoFees
		rec.MinimalReserve = math.MaxInt(h.cfg.MinimalReserve, report.SlashingReserve)
		rec.MaxLiabilityShares = math.MaxInt(rec.LiabilityShares, report.MaxLiabilityShares)
		rec.InOutDelta = rec.InOutDelta.Prune(report.RefSlot)

		after, err := rec.TotalValue()
		if err != nil {
			return err
		}

		tx.Emit(types.EventReportApplied, types.EventDataReportApplied{
			Vault:                    vault,
			RefSlot:                  report.RefSlot,
			Timestamp:                report.Timestamp,
			ReportTotalValue:         report.TotalValue,
			TotalValueBefore:         before,
			TotalValueAfter:          after,
			CumulativeLidoFeesBefore: feesBefore,
			CumulativeLidoFeesAfter:  report.CumulativeLidoFees,
			LiabilityShares:          report.LiabilityShares,
			MaxLiabilityShares:       report.MaxLiabilityShares,
			SlashingReserve:          report.SlashingReserve,
		})
		h.metrics.ReportsApplied.Add(1)

		if err := h.resolveDisconnect(tx); err != nil {
			return err
		}
		if tx.deleted {
			return nil
		}
		return h.syncDepositsPause(tx)
	})
}
