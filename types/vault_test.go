package types

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewVaultRecord(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC)
	rec := NewVaultRecord(UnitOfAccount, UnitOfAccount, now, 100)

	assert.True(t, now.Truncate(time.Second).Equal(rec.Report.Timestamp))
	assert.EqualValues(t, 100, rec.Report.RefSlot)
	assert.True(t, rec.FeesToSettle().IsZero())

	tv, err := rec.TotalValue()
	require.NoError(t, err)
	assert.Equal(t, UnitOfAccount.String(), tv.String())
}

func TestVaultRecordTotalValueUnderflow(t *testing.T) {
	rec := NewVaultRecord(math.NewInt(5), math.ZeroInt(), time.Unix(0, 0), 1)
	rec.InOutDelta = rec.InOutDelta.WithIncrease(1, math.NewInt(-6))

	_, err := rec.TotalValue()
	require.ErrorIs(t, err, ErrTotalValueUnderflow)
	assert.True(t, IsInvariantError(err))
	assert.False(t, IsPreconditionError(err))
}

func TestVaultRecordFeesToSettle(t *testing.T) {
	rec := VaultRecord{
		CumulativeLidoFees: math.NewInt(5),
		SettledLidoFees:    math.NewInt(2),
	}
	assert.Equal(t, "3", rec.FeesToSettle().String())

	// zero-valued records decode with nil integers
	assert.True(t, VaultRecord{}.FeesToSettle().IsZero())
}

// A vault that only funds and withdraws and never reports keeps
// totalValue == report.totalValue + funds - withdrawals.
func TestVaultRecordConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1, 1_000_000).Draw(t, "initial").(int64)
		refSlot := rapid.Uint64Range(1, 1000).Draw(t, "refSlot").(uint64)
		rec := NewVaultRecord(math.NewInt(initial), math.ZeroInt(), time.Unix(0, 0), refSlot)

		expected := initial
		steps := rapid.IntRange(1, 50).Draw(t, "steps").(int)
		for i := 0; i < steps; i++ {
			refSlot += rapid.Uint64Range(0, 2).Draw(t, "frames").(uint64)
			amount := rapid.Int64Range(-expected, 1_000).Draw(t, "amount").(int64)
			rec.InOutDelta = rec.InOutDelta.WithIncrease(refSlot, math.NewInt(amount))
			expected += amount

			tv, err := rec.TotalValue()
			require.NoError(t, err)
			require.Equal(t, math.NewInt(expected).String(), tv.String())
		}
	})
}
