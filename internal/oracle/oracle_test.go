package oracle_test

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"

	"github.com/stvaults/vaulthub/crypto/merkle"
	"github.com/stvaults/vaulthub/internal/auth"
	"github.com/stvaults/vaulthub/internal/hub"
	"github.com/stvaults/vaulthub/internal/oracle"
	"github.com/stvaults/vaulthub/internal/quarantine"
	"github.com/stvaults/vaulthub/internal/store"
	"github.com/stvaults/vaulthub/internal/test/fakes"
	"github.com/stvaults/vaulthub/libs/events"
	"github.com/stvaults/vaulthub/libs/log"
	"github.com/stvaults/vaulthub/types"
)

var (
	reporter = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	master   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	updater  = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000b2")

	vault1 = common.HexToAddress("0x1000000000000000000000000000000000000001")
	vault2 = common.HexToAddress("0x1000000000000000000000000000000000000002")
)

func ether(n int64) math.Int {
	return types.UnitOfAccount.MulRaw(n)
}

func requireValue(t require.TestingT, want, got math.Int, msgAndArgs ...interface{}) {
	require.Equal(t, want.String(), got.String(), msgAndArgs...)
}

func leafFor(vault common.Address, tv math.Int) types.VaultLeaf {
	return types.VaultLeaf{
		Vault:              vault,
		TotalValue:         tv,
		CumulativeLidoFees: math.ZeroInt(),
		LiabilityShares:    math.ZeroInt(),
		MaxLiabilityShares: math.ZeroInt(),
		SlashingReserve:    math.ZeroInt(),
	}
}

type testOracle struct {
	*oracle.Oracle

	hub       *hub.Hub
	consensus *fakes.Consensus
	vaults    *fakes.StakingVaults
	clock     *clock.Mock
	rec       *events.Recorder
}

func newTestOracle(t *testing.T) *testOracle {
	t.Helper()

	st := store.NewStore(dbm.NewMemDB())
	t.Cleanup(func() { _ = st.Close() })

	to := &testOracle{
		consensus: fakes.NewConsensus(100),
		vaults:    fakes.NewStakingVaults(),
		clock:     clock.NewMock(),
		rec:       &events.Recorder{},
	}
	to.clock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	roles := auth.NewRolesFromGrants(map[auth.Role][]common.Address{
		auth.RoleReporter:            {reporter},
		auth.RoleVaultMaster:         {master},
		auth.RoleSanityParamsUpdater: {updater},
	})
	logger := log.NewTestingLogger(t)

	h, err := hub.NewHub(hub.DefaultConfig(), st, to.consensus,
		fakes.NewToken(ether(1), ether(1)), to.vaults, roles,
		hub.WithClock(to.clock), hub.WithLogger(logger))
	require.NoError(t, err)
	o, err := oracle.NewOracle(oracle.DefaultSanityParams(), st, h, to.consensus, to.vaults, roles,
		oracle.WithClock(to.clock), oracle.WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, to.rec.Listen(h.EventSwitch(), "test", types.AllEvents...))

	to.hub, to.Oracle = h, o
	return to
}

func (to *testOracle) connect(t *testing.T, vault common.Address, initial math.Int) {
	t.Helper()
	params := types.ConnectionParams{
		ShareLimit:                 ether(100),
		ReserveRatioBP:             2000,
		ForcedRebalanceThresholdBP: 1500,
	}
	require.NoError(t, to.hub.ConnectVault(context.Background(), master, vault, owner, owner, params, initial))
}

// nextFrame moves consensus and the clock forward by one frame.
func (to *testOracle) nextFrame() {
	to.consensus.SetRefSlot(to.consensus.FrameReferenceSlot() + 100)
	to.clock.Add(time.Hour)
}

// publish commits leaves for the current frame.
func (to *testOracle) publish(t require.TestingT, leaves ...types.VaultLeaf) *merkle.Tree {
	return to.publishFor(t, to.consensus.FrameReferenceSlot(), leaves...)
}

// publishFor commits leaves taken at refSlot.
func (to *testOracle) publishFor(t require.TestingT, refSlot uint64, leaves ...types.VaultLeaf) *merkle.Tree {
	hashes := make([]common.Hash, 0, len(leaves))
	for _, leaf := range leaves {
		h, err := leaf.Hash()
		require.NoError(t, err)
		hashes = append(hashes, h)
	}
	tree, err := merkle.NewTree(hashes)
	require.NoError(t, err)

	require.NoError(t, to.PublishRoot(reporter, types.ReportData{
		Timestamp: to.clock.Now(),
		RefSlot:   refSlot,
		Root:      tree.Root(),
		CID:       "bafkreitest",
	}))
	return tree
}

func (to *testOracle) submit(t require.TestingT, tree *merkle.Tree, leaf types.VaultLeaf) error {
	h, err := leaf.Hash()
	require.NoError(t, err)
	proof, err := tree.Proof(h)
	require.NoError(t, err)
	return to.SubmitVaultLeaf(context.Background(), leaf, proof)
}

func (to *testOracle) state(t *testing.T, vault common.Address) *hub.VaultState {
	t.Helper()
	s, err := to.hub.State(context.Background(), vault)
	require.NoError(t, err)
	return s
}

//-----------------------------------------------------------------------------

func TestPublishRoot(t *testing.T) {
	to := newTestOracle(t)

	_, err := to.LatestReportData()
	assert.ErrorIs(t, err, types.ErrNoReportPublished)

	data := types.ReportData{
		Timestamp: to.clock.Now(),
		RefSlot:   100,
		Root:      common.HexToHash("0xaa"),
	}
	assert.ErrorIs(t, to.PublishRoot(stranger, data), types.ErrNotAuthorized)
	assert.ErrorIs(t, to.PublishRoot(reporter, types.ReportData{Timestamp: to.clock.Now()}), types.ErrInvalidReportData)

	to.consensus.AllFinal = false
	assert.ErrorIs(t, to.PublishRoot(reporter, data), types.ErrFrameNotFinal)
	to.consensus.Finalize(100)
	require.NoError(t, to.PublishRoot(reporter, data))

	latest, err := to.LatestReportData()
	require.NoError(t, err)
	assert.Equal(t, data.Root, latest.Root)
	assert.True(t, data.Timestamp.Equal(latest.Timestamp))

	// same timestamp
	assert.ErrorIs(t, to.PublishRoot(reporter, data), types.ErrStaleRoot)

	// older frame
	older := data
	older.RefSlot = 50
	older.Timestamp = data.Timestamp.Add(time.Minute)
	to.consensus.Finalize(50)
	assert.ErrorIs(t, to.PublishRoot(reporter, older), types.ErrStaleRoot)

	// republishing the same frame later is allowed
	again := data
	again.Timestamp = data.Timestamp.Add(time.Minute)
	again.Root = common.HexToHash("0xbb")
	require.NoError(t, to.PublishRoot(reporter, again))
	assert.Equal(t, 2, to.rec.Count(types.EventRootPublished))
}

func TestSubmitVaultLeafRejectsBadProof(t *testing.T) {
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))

	err := to.SubmitVaultLeaf(context.Background(), leafFor(vault1, ether(1)), nil)
	assert.ErrorIs(t, err, types.ErrNoReportPublished)

	to.nextFrame()
	leaf := leafFor(vault1, ether(1))
	tree := to.publish(t, leaf, leafFor(vault2, ether(5)))

	h, err := leaf.Hash()
	require.NoError(t, err)
	proof, err := tree.Proof(h)
	require.NoError(t, err)

	tampered := leaf
	tampered.TotalValue = ether(2)
	err = to.SubmitVaultLeaf(context.Background(), tampered, proof)
	assert.ErrorIs(t, err, types.ErrInvalidProof)
	assert.True(t, types.IsInputError(err))

	err = to.SubmitVaultLeaf(context.Background(), leaf, proof[:0])
	assert.ErrorIs(t, err, types.ErrInvalidProof)

	// the other vault's leaf proves fine but it is not connected
	err = to.submit(t, tree, leafFor(vault2, ether(5)))
	assert.ErrorIs(t, err, types.ErrVaultNotConnected)

	require.NoError(t, to.SubmitVaultLeaf(context.Background(), leaf, proof))
}

func TestFrameCorrectReconciliation(t *testing.T) {
	ctx := context.Background()
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(10)))
	requireValue(t, ether(11), to.state(t, vault1).TotalValue)

	to.nextFrame()
	leaf := leafFor(vault1, ether(11))
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	requireValue(t, ether(11), to.state(t, vault1).TotalValue)
	reportedAt := to.consensus.FrameReferenceSlot()

	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(10)))
	requireValue(t, ether(21), to.state(t, vault1).TotalValue)

	// a frame later, a report still taken at the previous ref slot arrives
	to.nextFrame()
	tree := to.publishFor(t, reportedAt, leaf)
	require.NoError(t, to.submit(t, tree, leaf))
	s := to.state(t, vault1)
	requireValue(t, ether(21), s.TotalValue)
	assert.Equal(t, reportedAt, s.Record.Report.RefSlot)
	assert.False(t, s.Quarantine.IsActive)
}

func TestRepublishedFrameReconciliation(t *testing.T) {
	ctx := context.Background()
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(10)))

	// the report for the next frame sees the deposit
	to.nextFrame()
	leaf := leafFor(vault1, ether(11))
	tree := to.publish(t, leaf)
	require.NoError(t, to.submit(t, tree, leaf))
	requireValue(t, ether(11), to.state(t, vault1).TotalValue)

	// a deposit made after the ref slot is not in a republished report for
	// the same frame, and must not be lost or counted twice
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(10)))
	requireValue(t, ether(21), to.state(t, vault1).TotalValue)

	to.clock.Add(time.Minute)
	tree = to.publish(t, leaf)
	require.NoError(t, to.submit(t, tree, leaf))
	s := to.state(t, vault1)
	requireValue(t, ether(21), s.TotalValue)
	assert.False(t, s.Quarantine.IsActive)

	// the next frame's report includes it
	to.nextFrame()
	leaf = leafFor(vault1, ether(21))
	tree = to.publish(t, leaf)
	require.NoError(t, to.submit(t, tree, leaf))
	requireValue(t, ether(21), to.state(t, vault1).TotalValue)
	assert.Equal(t, 3, to.rec.Count(types.EventReportApplied))
}

func TestSubmitVaultLeafOnce(t *testing.T) {
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))
	to.connect(t, vault2, ether(1))

	to.nextFrame()
	leaf1, leaf2 := leafFor(vault1, ether(1)), leafFor(vault2, ether(1))
	tree := to.publish(t, leaf1, leaf2)

	const n = 8
	errs := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			errs[i] = to.submit(t, tree, leaf1)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	applied := 0
	for _, err := range errs {
		if err == nil {
			applied++
			continue
		}
		assert.ErrorIs(t, err, types.ErrReportAlreadyApplied)
	}
	assert.Equal(t, 1, applied)

	// other vaults are independent
	require.NoError(t, to.submit(t, tree, leaf2))
	assert.Equal(t, 2, to.rec.Count(types.EventReportApplied))
}

func TestCumulativeFeeChecks(t *testing.T) {
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))

	// an hour allows 0.36 ether
	to.nextFrame()
	leaf := leafFor(vault1, ether(1))
	leaf.CumulativeLidoFees = math.NewIntWithDecimal(37, 16)
	tree := to.publish(t, leaf)
	err := to.submit(t, tree, leaf)
	assert.ErrorIs(t, err, types.ErrCumulativeFeesTooLarge)

	to.clock.Add(time.Second)
	leaf.CumulativeLidoFees = math.NewIntWithDecimal(36, 16)
	tree = to.publish(t, leaf)
	require.NoError(t, to.submit(t, tree, leaf))
	requireValue(t, leaf.CumulativeLidoFees, to.state(t, vault1).Record.CumulativeLidoFees)

	to.nextFrame()
	leaf.CumulativeLidoFees = math.NewIntWithDecimal(35, 16)
	tree = to.publish(t, leaf)
	err = to.submit(t, tree, leaf)
	assert.ErrorIs(t, err, types.ErrCumulativeFeesTooLow)
	assert.True(t, types.IsInputError(err))
}

func TestLiabilityChecks(t *testing.T) {
	ctx := context.Background()
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(9)))
	require.NoError(t, to.hub.MintShares(ctx, owner, vault1, owner, ether(5)))

	to.nextFrame()
	leaf := leafFor(vault1, ether(10))
	leaf.LiabilityShares = ether(5)
	leaf.MaxLiabilityShares = ether(4)
	tree := to.publish(t, leaf)
	assert.ErrorIs(t, to.submit(t, tree, leaf), types.ErrInvalidMaxLiabilityShares)

	to.clock.Add(time.Second)
	leaf.MaxLiabilityShares = ether(6)
	tree = to.publish(t, leaf)
	assert.ErrorIs(t, to.submit(t, tree, leaf), types.ErrInvalidMaxLiabilityShares)

	to.clock.Add(time.Second)
	leaf.MaxLiabilityShares = ether(5)
	tree = to.publish(t, leaf)
	require.NoError(t, to.submit(t, tree, leaf))
}

func TestTotalValueCeiling(t *testing.T) {
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))

	to.nextFrame()
	leaf := leafFor(vault1, types.MaxSaneTotalValue.AddRaw(1))
	tree := to.publish(t, leaf)
	assert.ErrorIs(t, to.submit(t, tree, leaf), types.ErrTotalValueTooLarge)
}

func TestWithdrawalCredentialsChecked(t *testing.T) {
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))
	to.vaults.SetCredentials(vault1, common.HexToHash("0x01"))

	to.nextFrame()
	leaf := leafFor(vault1, ether(1))
	tree := to.publish(t, leaf)
	assert.ErrorIs(t, to.submit(t, tree, leaf), types.ErrInvalidWithdrawalCredentials)
}

func TestQuarantine(t *testing.T) {
	ctx := context.Background()
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(9)))

	to.nextFrame()
	leaf := leafFor(vault1, ether(10))
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))

	// 3.5% over 10 is trusted right away
	to.nextFrame()
	leaf = leafFor(vault1, math.NewIntWithDecimal(1035, 16))
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	requireValue(t, leaf.TotalValue, to.state(t, vault1).TotalValue)

	// a jump of 10 is held back
	to.nextFrame()
	leaf = leafFor(vault1, ether(20))
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	s := to.state(t, vault1)
	requireValue(t, math.NewIntWithDecimal(1035, 16), s.TotalValue)
	require.True(t, s.Quarantine.IsActive)
	requireValue(t, math.NewIntWithDecimal(965, 16), s.Quarantine.PendingTotalValueIncrease)
	assert.Equal(t, 1, to.rec.Count(types.EventQuarantineOpened))

	// still held before the period ends
	to.nextFrame()
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	s = to.state(t, vault1)
	requireValue(t, math.NewIntWithDecimal(1035, 16), s.TotalValue)
	assert.True(t, s.Quarantine.IsActive)

	to.clock.Add(oracle.DefaultSanityParams().QuarantinePeriod)
	to.nextFrame()
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	s = to.state(t, vault1)
	requireValue(t, ether(20), s.TotalValue)
	assert.False(t, s.Quarantine.IsActive)

	var released types.EventDataQuarantine
	for _, ev := range to.rec.Events() {
		if ev.Event == types.EventQuarantineReleased {
			released = ev.Data.(types.EventDataQuarantine)
		}
	}
	assert.Equal(t, quarantine.ReasonExpired, released.Reason)
	assert.Equal(t, vault1, released.Vault)
}

func TestWithdrawShrinksQuarantine(t *testing.T) {
	ctx := context.Background()
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(9)))

	to.nextFrame()
	leaf := leafFor(vault1, ether(20))
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	s := to.state(t, vault1)
	requireValue(t, ether(10), s.TotalValue)
	requireValue(t, ether(10), s.Quarantine.PendingTotalValueIncrease)

	// deposits do not touch the quarantine, withdrawals drain it before
	// total value
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(5)))
	require.NoError(t, to.hub.Withdraw(ctx, owner, vault1, stranger, ether(4)))
	s = to.state(t, vault1)
	requireValue(t, ether(15), s.TotalValue)
	requireValue(t, ether(6), s.Quarantine.PendingTotalValueIncrease)
	assert.True(t, s.Quarantine.IsActive)

	require.NoError(t, to.hub.Withdraw(ctx, owner, vault1, stranger, ether(6)))
	s = to.state(t, vault1)
	requireValue(t, ether(15), s.TotalValue)
	assert.False(t, s.Quarantine.IsActive)
	requireValue(t, math.ZeroInt(), s.Quarantine.PendingTotalValueIncrease)
	assert.Equal(t, 1, to.rec.Count(types.EventQuarantineReleased))

	// beyond the pending value the withdrawal comes out of total value
	require.NoError(t, to.hub.Withdraw(ctx, owner, vault1, stranger, ether(2)))
	requireValue(t, ether(13), to.state(t, vault1).TotalValue)
	requireValue(t, ether(12), to.vaults.TransferredTo(stranger))
}

func TestQuarantineReleasedAfterWithdrawal(t *testing.T) {
	ctx := context.Background()
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(9)))

	to.nextFrame()
	leaf := leafFor(vault1, ether(20))
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))

	require.NoError(t, to.hub.Withdraw(ctx, owner, vault1, stranger, ether(4)))
	s := to.state(t, vault1)
	requireValue(t, ether(10), s.TotalValue)
	requireValue(t, ether(6), s.Quarantine.PendingTotalValueIncrease)

	// the vault really holds 16: trusted 10 plus what is still pending
	to.clock.Add(oracle.DefaultSanityParams().QuarantinePeriod)
	to.nextFrame()
	leaf = leafFor(vault1, ether(16))
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	s = to.state(t, vault1)
	requireValue(t, ether(16), s.TotalValue)
	assert.False(t, s.Quarantine.IsActive)
	assert.Equal(t, 1, to.rec.Count(types.EventQuarantineOpened))

	var released types.EventDataQuarantine
	for _, ev := range to.rec.Events() {
		if ev.Event == types.EventQuarantineReleased {
			released = ev.Data.(types.EventDataQuarantine)
		}
	}
	assert.Equal(t, quarantine.ReasonExpired, released.Reason)
}

func TestFundDuringQuarantineCountsImmediately(t *testing.T) {
	ctx := context.Background()
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(9)))

	to.nextFrame()
	leaf := leafFor(vault1, ether(20))
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	requireValue(t, ether(10), to.state(t, vault1).TotalValue)

	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(5)))
	requireValue(t, ether(15), to.state(t, vault1).TotalValue)

	// the next report sees the deposit before its ref slot; only the
	// original jump stays quarantined
	to.nextFrame()
	leaf = leafFor(vault1, ether(25))
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	s := to.state(t, vault1)
	requireValue(t, ether(15), s.TotalValue)
	assert.True(t, s.Quarantine.IsActive)
	requireValue(t, ether(10), s.Quarantine.PendingTotalValueIncrease)

	to.clock.Add(oracle.DefaultSanityParams().QuarantinePeriod)
	to.nextFrame()
	require.NoError(t, to.submit(t, to.publish(t, leaf), leaf))
	s = to.state(t, vault1)
	requireValue(t, ether(25), s.TotalValue)
	assert.False(t, s.Quarantine.IsActive)
	assert.Equal(t, 1, to.rec.Count(types.EventQuarantineOpened))
}

func TestCacheOverwritten(t *testing.T) {
	ctx := context.Background()
	to := newTestOracle(t)
	to.connect(t, vault1, ether(1))

	to.nextFrame()
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(1)))
	to.nextFrame()
	require.NoError(t, to.hub.Fund(ctx, owner, vault1, ether(1)))

	// a root for a frame both cache slots have moved past
	leaf := leafFor(vault1, ether(1))
	tree, err := merkle.NewTree([]common.Hash{mustHash(t, leaf)})
	require.NoError(t, err)
	require.NoError(t, to.PublishRoot(reporter, types.ReportData{
		Timestamp: to.clock.Now(),
		RefSlot:   150,
		Root:      tree.Root(),
	}))

	err = to.submit(t, tree, leaf)
	assert.ErrorIs(t, err, types.ErrInOutDeltaCacheOverwritten)
	assert.True(t, types.IsInvariantError(err))
	requireValue(t, ether(3), to.state(t, vault1).TotalValue)
}

func mustHash(t *testing.T, leaf types.VaultLeaf) common.Hash {
	t.Helper()
	h, err := leaf.Hash()
	require.NoError(t, err)
	return h
}

func TestUpdateSanityParams(t *testing.T) {
	to := newTestOracle(t)

	p, err := to.SanityParams()
	require.NoError(t, err)
	assert.Equal(t, oracle.DefaultSanityParams().QuarantinePeriod, p.QuarantinePeriod)

	p.MaxRewardRatioBP = 100
	assert.ErrorIs(t, to.UpdateSanityParams(stranger, p), types.ErrNotAuthorized)

	bad := p
	bad.QuarantinePeriod = -time.Hour
	assert.ErrorIs(t, to.UpdateSanityParams(updater, bad), types.ErrInvalidSanityParams)

	require.NoError(t, to.UpdateSanityParams(updater, p))
	got, err := to.SanityParams()
	require.NoError(t, err)
	assert.Equal(t, uint32(100), got.MaxRewardRatioBP)
	assert.Equal(t, 1, to.rec.Count(types.EventSanityParamsUpdated))
}

// Accepted cumulative fees never decrease, and a report is accepted exactly
// when its increase fits the rate limit since the last accepted report.
func TestCumulativeFeesMonotonic(t *testing.T) {
	unit := oracle.DefaultSanityParams().MaxLidoFeeRatePerSecond

	rapid.Check(t, func(rt *rapid.T) {
		to := newTestOracle(t)
		to.connect(t, vault1, ether(1))

		fees := math.ZeroInt()
		lastAccepted := to.clock.Now()
		steps := rapid.IntRange(1, 10).Draw(rt, "steps").(int)
		for i := 0; i < steps; i++ {
			elapsed := rapid.Int64Range(1, 100).Draw(rt, "elapsed").(int64)
			delta := rapid.Int64Range(-3, 200).Draw(rt, "delta").(int64)

			to.consensus.SetRefSlot(to.consensus.FrameReferenceSlot() + 100)
			to.clock.Add(time.Duration(elapsed) * time.Second)

			leaf := leafFor(vault1, ether(1))
			leaf.CumulativeLidoFees = math.MaxInt(fees.Add(unit.MulRaw(delta)), math.ZeroInt())
			err := to.submit(rt, to.publish(rt, leaf), leaf)

			allowed := int64(to.clock.Now().Sub(lastAccepted) / time.Second)
			switch {
			case delta < 0 && !fees.IsZero():
				require.ErrorIs(rt, err, types.ErrCumulativeFeesTooLow)
			case delta > allowed:
				require.ErrorIs(rt, err, types.ErrCumulativeFeesTooLarge)
			default:
				require.NoError(rt, err)
				require.True(rt, leaf.CumulativeLidoFees.GTE(fees))
				fees = leaf.CumulativeLidoFees
				lastAccepted = to.clock.Now()
			}

			requireValue(rt, fees, to.state(t, vault1).Record.CumulativeLidoFees)
		}
	})
}
