package types

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() ConnectionParams {
	return ConnectionParams{
		ShareLimit:                 math.NewIntWithDecimal(100, 18),
		ReserveRatioBP:             1000,
		ForcedRebalanceThresholdBP: 800,
		InfraFeeBP:                 100,
		LiquidityFeeBP:             650,
		ReservationFeeBP:           0,
	}
}

func TestConnectionParamsValidateBasic(t *testing.T) {
	testCases := []struct {
		name     string
		malleate func(p *ConnectionParams)
		wantErr  bool
	}{
		{"valid", func(p *ConnectionParams) {}, false},
		{"nil share limit", func(p *ConnectionParams) { p.ShareLimit = math.Int{} }, true},
		{"negative share limit", func(p *ConnectionParams) { p.ShareLimit = math.NewInt(-1) }, true},
		{"zero reserve ratio", func(p *ConnectionParams) { p.ReserveRatioBP = 0 }, true},
		{"full reserve ratio", func(p *ConnectionParams) { p.ReserveRatioBP = TotalBasisPoints }, true},
		{"threshold above reserve ratio", func(p *ConnectionParams) { p.ForcedRebalanceThresholdBP = 1001 }, true},
		{"threshold equal to reserve ratio", func(p *ConnectionParams) { p.ForcedRebalanceThresholdBP = 1000 }, false},
		{"zero threshold", func(p *ConnectionParams) { p.ForcedRebalanceThresholdBP = 0 }, true},
		{"infra fee too large", func(p *ConnectionParams) { p.InfraFeeBP = TotalBasisPoints + 1 }, true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.malleate(&p)
			err := p.ValidateBasic()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidConnectionParams)
				assert.True(t, IsInputError(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, "0", CeilDiv(math.ZeroInt(), math.NewInt(3)).String())
	assert.Equal(t, "2", CeilDiv(math.NewInt(6), math.NewInt(3)).String())
	assert.Equal(t, "3", CeilDiv(math.NewInt(7), math.NewInt(3)).String())
}

func TestMulBP(t *testing.T) {
	assert.Equal(t, "350", MulBP(math.NewInt(10_000), 350).String())
	assert.Equal(t, "0", MulBP(math.NewInt(99), 100).String())
}

func TestCanonicalTime(t *testing.T) {
	assert.True(t, CanonicalTime(time.Time{}).IsZero())

	loc := time.FixedZone("x", 3600)
	in := time.Date(2025, 5, 6, 7, 8, 9, 999, loc)
	out := CanonicalTime(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.True(t, out.Equal(in.Truncate(time.Second)))
}

func TestBounds(t *testing.T) {
	assert.Equal(t, 96, MaxSaneTotalValue.BigInt().BitLen())
	assert.Equal(t, 256, UnboundedShares.BigInt().BitLen())
}
