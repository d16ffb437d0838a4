package store

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gogo/protobuf/proto"
	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	tmsync "github.com/stvaults/vaulthub/libs/sync"
	"github.com/stvaults/vaulthub/types"
)

/*
Store is the ledger's persistence layer.

Per vault it keeps three entries, always written together in one batch:
  - Connection:  governance parameters and lifecycle flags
  - Record:      last trusted report, net deposit cache and obligation counters
  - Quarantine:  the pending value increase, absent when none was ever opened

Hub-wide it keeps the last published report data, the oracle sanity
parameters and the hub pause flag.

Vaults are independent units of consistency. Callers serialize work on a
vault with Lock; nothing here locks across vaults.

NOTE: Store methods panic if they encounter errors deserializing loaded data,
indicating probable corruption on disk.
*/
type Store struct {
	db    dbm.DB
	locks *tmsync.KeyedMutex[common.Address]
}

// NewStore returns a Store backed by db.
func NewStore(db dbm.DB) *Store {
	return &Store{
		db:    db,
		locks: tmsync.NewKeyedMutex[common.Address](),
	}
}

// Lock takes the single-writer lock of vault and returns its release.
func (s *Store) Lock(vault common.Address) (unlock func()) {
	return s.locks.Lock(vault)
}

// HasVault reports whether vault is connected.
func (s *Store) HasVault(vault common.Address) (bool, error) {
	return s.db.Has(connectionKey(vault))
}

// ErrIncompleteVault is returned when a vault's entries are read while they
// are only partly written or removed. Readers must hold the vault's lock.
var ErrIncompleteVault = errors.New("incomplete vault entries")

// LoadVault returns the vault, or false if it is not connected. Callers hold
// the vault's lock: the entries are read one by one.
func (s *Store) LoadVault(vault common.Address) (*types.Vault, bool, error) {
	connBz, err := s.db.Get(connectionKey(vault))
	if err != nil {
		return nil, false, err
	}
	if len(connBz) == 0 {
		return nil, false, nil
	}
	recBz, err := s.db.Get(recordKey(vault))
	if err != nil {
		return nil, false, err
	}
	if len(recBz) == 0 {
		return nil, false, fmt.Errorf("%w: vault %s has a connection but no record", ErrIncompleteVault, vault)
	}
	qBz, err := s.db.Get(quarantineKey(vault))
	if err != nil {
		return nil, false, err
	}

	v := &types.Vault{Address: vault}

	pbc := new(pbConnection)
	if err := proto.Unmarshal(connBz, pbc); err != nil {
		panic(fmt.Errorf("unmarshal connection of %s: %w", vault, err))
	}
	if v.Connection, err = connectionFromProto(pbc); err != nil {
		panic(fmt.Errorf("decode connection of %s: %w", vault, err))
	}

	pbr := new(pbRecord)
	if err := proto.Unmarshal(recBz, pbr); err != nil {
		panic(fmt.Errorf("unmarshal record of %s: %w", vault, err))
	}
	if v.Record, err = recordFromProto(pbr); err != nil {
		panic(fmt.Errorf("decode record of %s: %w", vault, err))
	}

	v.Quarantine.PendingTotalValueIncrease = math.ZeroInt()
	if len(qBz) > 0 {
		pbq := new(pbQuarantine)
		if err := proto.Unmarshal(qBz, pbq); err != nil {
			panic(fmt.Errorf("unmarshal quarantine of %s: %w", vault, err))
		}
		if v.Quarantine, err = quarantineFromProto(pbq); err != nil {
			panic(fmt.Errorf("decode quarantine of %s: %w", vault, err))
		}
	}

	return v, true, nil
}

// SaveVault writes every part of v atomically.
func (s *Store) SaveVault(v *types.Vault) error {
	if v == nil {
		panic("SaveVault cannot save a nil vault")
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(connectionKey(v.Address), mustEncode(connectionToProto(v.Connection))); err != nil {
		return err
	}
	if err := batch.Set(recordKey(v.Address), mustEncode(recordToProto(v.Record))); err != nil {
		return err
	}
	if err := batch.Set(quarantineKey(v.Address), mustEncode(quarantineToProto(v.Quarantine))); err != nil {
		return err
	}
	return batch.WriteSync()
}

// DeleteVault removes every entry of vault.
func (s *Store) DeleteVault(vault common.Address) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, key := range [][]byte{connectionKey(vault), recordKey(vault), quarantineKey(vault)} {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	return batch.WriteSync()
}

// Vaults returns the addresses of all connected vaults in key order.
func (s *Store) Vaults() ([]common.Address, error) {
	iter, err := dbm.IteratePrefix(s.db, prefixKey(prefixConnection))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var vaults []common.Address
	for ; iter.Valid(); iter.Next() {
		vault, err := decodeVaultKey(prefixConnection, iter.Key())
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, vault)
	}
	return vaults, iter.Error()
}

// LoadReportData returns the last published report data, or false if no
// root was ever published.
func (s *Store) LoadReportData() (types.ReportData, bool, error) {
	bz, err := s.db.Get(reportDataKey())
	if err != nil {
		return types.ReportData{}, false, err
	}
	if len(bz) == 0 {
		return types.ReportData{}, false, nil
	}
	pb := new(pbReportData)
	if err := proto.Unmarshal(bz, pb); err != nil {
		panic(fmt.Errorf("unmarshal report data: %w", err))
	}
	return reportDataFromProto(pb), true, nil
}

func (s *Store) SaveReportData(rd types.ReportData) error {
	return s.db.SetSync(reportDataKey(), mustEncode(reportDataToProto(rd)))
}

// LoadSanityParams returns the stored sanity parameters, or false if they
// were never written.
func (s *Store) LoadSanityParams() (types.SanityParams, bool, error) {
	bz, err := s.db.Get(sanityParamsKey())
	if err != nil {
		return types.SanityParams{}, false, err
	}
	if len(bz) == 0 {
		return types.SanityParams{}, false, nil
	}
	pb := new(pbSanityParams)
	if err := proto.Unmarshal(bz, pb); err != nil {
		panic(fmt.Errorf("unmarshal sanity params: %w", err))
	}
	p, err := sanityParamsFromProto(pb)
	if err != nil {
		panic(fmt.Errorf("decode sanity params: %w", err))
	}
	return p, true, nil
}

func (s *Store) SaveSanityParams(p types.SanityParams) error {
	return s.db.SetSync(sanityParamsKey(), mustEncode(sanityParamsToProto(p)))
}

// HubPaused returns the persisted hub-wide pause flag.
func (s *Store) HubPaused() (bool, error) {
	bz, err := s.db.Get(hubStateKey())
	if err != nil || len(bz) == 0 {
		return false, err
	}
	pb := new(pbHubState)
	if err := proto.Unmarshal(bz, pb); err != nil {
		panic(fmt.Errorf("unmarshal hub state: %w", err))
	}
	return pb.Paused, nil
}

func (s *Store) SetHubPaused(paused bool) error {
	return s.db.SetSync(hubStateKey(), mustEncode(&pbHubState{Paused: paused}))
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

//---------------------------------- KEY ENCODING -----------------------------------------

// key prefixes
const (
	// prefixes are unique across all ledger keys
	prefixConnection   = int64(0)
	prefixRecord       = int64(1)
	prefixQuarantine   = int64(2)
	prefixReportData   = int64(3)
	prefixSanityParams = int64(4)
	prefixHubState     = int64(5)
)

func vaultKey(prefix int64, vault common.Address) []byte {
	key, err := orderedcode.Append(nil, prefix, string(vault.Bytes()))
	if err != nil {
		panic(err)
	}
	return key
}

func decodeVaultKey(expected int64, key []byte) (common.Address, error) {
	var (
		prefix int64
		addr   string
	)
	remaining, err := orderedcode.Parse(string(key), &prefix, &addr)
	if err != nil {
		return common.Address{}, err
	}
	if len(remaining) != 0 {
		return common.Address{}, fmt.Errorf("expected complete key but got remainder: %s", remaining)
	}
	if prefix != expected {
		return common.Address{}, fmt.Errorf("incorrect prefix. Expected %v, got %v", expected, prefix)
	}
	if len(addr) != common.AddressLength {
		return common.Address{}, fmt.Errorf("key holds %d address bytes", len(addr))
	}
	return common.BytesToAddress([]byte(addr)), nil
}

func prefixKey(prefix int64) []byte {
	key, err := orderedcode.Append(nil, prefix)
	if err != nil {
		panic(err)
	}
	return key
}

func connectionKey(vault common.Address) []byte { return vaultKey(prefixConnection, vault) }
func recordKey(vault common.Address) []byte     { return vaultKey(prefixRecord, vault) }
func quarantineKey(vault common.Address) []byte { return vaultKey(prefixQuarantine, vault) }
func reportDataKey() []byte                     { return prefixKey(prefixReportData) }
func sanityParamsKey() []byte                   { return prefixKey(prefixSanityParams) }
func hubStateKey() []byte                       { return prefixKey(prefixHubState) }
