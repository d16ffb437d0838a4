package store

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/sync/errgroup"

	"github.com/stvaults/vaulthub/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(dbm.NewMemDB())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeVault(addr common.Address) *types.Vault {
	now := types.CanonicalTime(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	rec := types.NewVaultRecord(types.UnitOfAccount, types.UnitOfAccount, now, 7200)
	rec.InOutDelta = rec.InOutDelta.WithIncrease(7425, math.NewInt(-5))
	rec.LiabilityShares = math.NewInt(42)
	rec.MaxLiabilityShares = math.NewInt(50)
	rec.CumulativeLidoFees = math.NewInt(9)
	rec.SettledLidoFees = math.NewInt(4)

	return &types.Vault{
		Address: addr,
		Connection: types.VaultConnection{
			ConnectionParams: types.ConnectionParams{
				ShareLimit:                 math.NewIntWithDecimal(1000, 18),
				ReserveRatioBP:             1000,
				ForcedRebalanceThresholdBP: 800,
				InfraFeeBP:                 100,
				LiquidityFeeBP:             650,
				ReservationFeeBP:           25,
			},
			Owner:                        common.HexToAddress("0x1111111111111111111111111111111111111111"),
			NodeOperator:                 common.HexToAddress("0x2222222222222222222222222222222222222222"),
			ConnectedAt:                  now,
			BeaconDepositsManuallyPaused: true,
			PendingDisconnect:            true,
			DisconnectInitiatedAt:        now.Add(time.Hour),
		},
		Record: rec,
		Quarantine: types.Quarantine{
			PendingTotalValueIncrease: math.NewIntWithDecimal(3, 18),
			StartTimestamp:            now,
			EndTimestamp:              now.Add(72 * time.Hour),
			IsActive:                  true,
		},
	}
}

func requireSameJSON(t *testing.T, want, got interface{}) {
	t.Helper()
	wantBz, err := json.Marshal(want)
	require.NoError(t, err)
	gotBz, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, string(wantBz), string(gotBz))
}

func TestSaveLoadVault(t *testing.T) {
	s := newTestStore(t)
	addr := common.HexToAddress("0xaaaa")

	_, ok, err := s.LoadVault(addr)
	require.NoError(t, err)
	require.False(t, ok)

	v := makeVault(addr)
	require.NoError(t, s.SaveVault(v))

	got, ok, err := s.LoadVault(addr)
	require.NoError(t, err)
	require.True(t, ok)
	requireSameJSON(t, v, got)

	has, err := s.HasVault(addr)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.DeleteVault(addr))
	_, ok, err = s.LoadVault(addr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadVaultWithoutQuarantine(t *testing.T) {
	s := newTestStore(t)
	addr := common.HexToAddress("0xbbbb")
	v := makeVault(addr)
	require.NoError(t, s.SaveVault(v))
	require.NoError(t, s.db.Delete(quarantineKey(addr)))

	got, ok, err := s.LoadVault(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.Quarantine.IsActive)
	assert.True(t, got.Quarantine.Pending().IsZero())
	assert.Equal(t, "0", got.Quarantine.PendingTotalValueIncrease.String())
}

func TestLoadVaultCorruption(t *testing.T) {
	s := newTestStore(t)
	addr := common.HexToAddress("0xcccc")
	require.NoError(t, s.SaveVault(makeVault(addr)))

	require.NoError(t, s.db.Set(recordKey(addr), mustEncode(&pbRecord{Report: &pbReport{}})))
	assert.Panics(t, func() { _, _, _ = s.LoadVault(addr) })

	require.NoError(t, s.db.Delete(recordKey(addr)))
	_, _, err := s.LoadVault(addr)
	assert.ErrorIs(t, err, ErrIncompleteVault)
}

func TestLockedReadsSeeWholeVault(t *testing.T) {
	s := newTestStore(t)
	addr := common.HexToAddress("0xeeee")

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		for i := 0; i < 200; i++ {
			unlock := s.Lock(addr)
			err := s.SaveVault(makeVault(addr))
			if err == nil {
				err = s.DeleteVault(addr)
			}
			unlock()
			if err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-done:
				return nil
			default:
			}
			unlock := s.Lock(addr)
			v, ok, err := s.LoadVault(addr)
			unlock()
			if err != nil {
				return err
			}
			if ok && !v.Quarantine.IsActive {
				return fmt.Errorf("vault %s loaded without its quarantine", addr)
			}
		}
	})
	require.NoError(t, g.Wait())
}

func TestVaultsInKeyOrder(t *testing.T) {
	s := newTestStore(t)
	addrs := []common.Address{
		common.HexToAddress("0x03"),
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
	}
	for _, a := range addrs {
		require.NoError(t, s.SaveVault(makeVault(a)))
	}
	require.NoError(t, s.SaveReportData(types.ReportData{Timestamp: time.Unix(1, 0), Root: common.HexToHash("0x01")}))

	got, err := s.Vaults()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{addrs[1], addrs[2], addrs[0]}, got)
}

func TestReportData(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.LoadReportData()
	require.NoError(t, err)
	require.False(t, ok)

	rd := types.ReportData{
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
		RefSlot:   8_000_000,
		Root:      common.HexToHash("0xdeadbeef"),
		CID:       "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
	}
	require.NoError(t, s.SaveReportData(rd))
	got, ok, err := s.LoadReportData()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rd, got)
}

func TestSanityParamsAndHubState(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.LoadSanityParams()
	require.NoError(t, err)
	require.False(t, ok)

	p := types.SanityParams{
		QuarantinePeriod:        72 * time.Hour,
		MaxRewardRatioBP:        350,
		MaxLidoFeeRatePerSecond: math.NewIntWithDecimal(1, 14),
	}
	require.NoError(t, s.SaveSanityParams(p))
	got, ok, err := s.LoadSanityParams()
	require.NoError(t, err)
	require.True(t, ok)
	requireSameJSON(t, p, got)

	paused, err := s.HubPaused()
	require.NoError(t, err)
	assert.False(t, paused)
	require.NoError(t, s.SetHubPaused(true))
	paused, err = s.HubPaused()
	require.NoError(t, err)
	assert.True(t, paused)
}

func TestDecodeVaultKey(t *testing.T) {
	addr := common.HexToAddress("0xabcdef")
	got, err := decodeVaultKey(prefixRecord, recordKey(addr))
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	_, err = decodeVaultKey(prefixConnection, recordKey(addr))
	assert.Error(t, err)
}

func TestLockSerializesVault(t *testing.T) {
	s := newTestStore(t)
	addr := common.HexToAddress("0xdddd")
	require.NoError(t, s.SaveVault(makeVault(addr)))

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			unlock := s.Lock(addr)
			defer unlock()

			v, _, err := s.LoadVault(addr)
			if err != nil {
				return err
			}
			v.Record.LiabilityShares = v.Record.LiabilityShares.AddRaw(1)
			return s.SaveVault(v)
		})
	}
	require.NoError(t, g.Wait())

	v, _, err := s.LoadVault(addr)
	require.NoError(t, err)
	assert.Equal(t, "62", v.Record.LiabilityShares.String())
}
