// Package demo is the in-memory substitute for the ledger, used when the
// ledger is unreachable at boot. It holds the same logical entities as
// the ledger-shaped contracts and implements vault.Backend with identical
// conversion semantics.
package demo

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/cantonlabs/vault/pkg/vault"
)

// Default seed state: one vault at price 1.0 and a fixed starting set of
// underlying instruments granted to every party on first observation, so
// a new party always has something to deposit in demonstrations.
var (
	seedVault = vault.Vault{
		ContractID:      "vault-1",
		Admin:           "vault-operator",
		Name:            "Canton USD Vault",
		UnderlyingAsset: "USDC",
		ShareInstrument: "CVUSD",
		TotalAssets:     decimal.NewFromInt(1_000_000),
		TotalShares:     decimal.NewFromInt(1_000_000),
	}

	seedHoldings = []struct {
		instrument string
		amount     decimal.Decimal
	}{
		{"USDC", decimal.NewFromInt(10_000)},
		{"CC", decimal.NewFromInt(1_000)},
	}
)

type shareEntry struct {
	contractID string
	amount     decimal.Decimal
	locked     bool
}

type vaultRecord struct {
	// mu serializes every read-compute-write against this vault, so two
	// concurrent deposits cannot both apply stale totals.
	mu     sync.Mutex
	vault  vault.Vault
	shares map[string]*shareEntry // by party
}

// Store owns all demo-mode state. Construct one per process (or per
// test); there is no package-level state.
type Store struct {
	mu         sync.RWMutex
	byName     map[string]*vaultRecord
	byContract map[string]*vaultRecord

	// hmu guards holdings and party seeding. Lock order: vaultRecord.mu
	// first, then hmu.
	hmu      sync.Mutex
	holdings map[string][]*vault.UnderlyingHolding // by party

	seq    atomic.Uint64
	logger log.Logger
}

// NewStore creates a store seeded with the default demo vault.
func NewStore(logger log.Logger) *Store {
	s := &Store{
		byName:     make(map[string]*vaultRecord),
		byContract: make(map[string]*vaultRecord),
		holdings:   make(map[string][]*vault.UnderlyingHolding),
		logger:     logger,
	}
	s.AddVault(seedVault)
	return s
}

// NewEmptyStore creates a store with no vaults, for tests that seed
// their own state.
func NewEmptyStore(logger log.Logger) *Store {
	return &Store{
		byName:     make(map[string]*vaultRecord),
		byContract: make(map[string]*vaultRecord),
		holdings:   make(map[string][]*vault.UnderlyingHolding),
		logger:     logger,
	}
}

// AddVault registers a vault. Existing entries with the same name are
// replaced; vaults are created externally and never deleted here.
func (s *Store) AddVault(v vault.Vault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &vaultRecord{
		vault:  v,
		shares: make(map[string]*shareEntry),
	}
	s.byName[v.Name] = rec
	if v.ContractID != "" {
		s.byContract[v.ContractID] = rec
	}
}

// SetShareHolding seeds a party's share position, for tests and demos.
func (s *Store) SetShareHolding(vaultID, party string, amount decimal.Decimal) {
	rec := s.lookup(vaultID)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.shares[party] = &shareEntry{
		contractID: s.nextID("share"),
		amount:     amount,
	}
}

// SetUnderlyingHolding seeds a party's underlying balance, replacing any
// seeded defaults for that instrument.
func (s *Store) SetUnderlyingHolding(party, instrument string, amount decimal.Decimal, locked bool) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.seedLocked(party)
	for _, h := range s.holdings[party] {
		if h.Instrument == instrument {
			h.Amount = amount
			h.Locked = locked
			return
		}
	}
	s.holdings[party] = append(s.holdings[party], &vault.UnderlyingHolding{
		Party:      party,
		Instrument: instrument,
		Amount:     amount,
		Locked:     locked,
		ContractID: s.nextID("holding"),
	})
}

// EnsureParty lazily seeds a party's starting holdings. Idempotent: a
// party is seeded at most once per store lifetime.
func (s *Store) EnsureParty(party string) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.seedLocked(party)
}

// seedLocked seeds a party if absent. Callers hold hmu.
func (s *Store) seedLocked(party string) {
	if _, ok := s.holdings[party]; ok {
		return
	}
	hs := make([]*vault.UnderlyingHolding, 0, len(seedHoldings))
	for _, seed := range seedHoldings {
		hs = append(hs, &vault.UnderlyingHolding{
			Party:      party,
			Instrument: seed.instrument,
			Amount:     seed.amount,
			ContractID: s.nextID("holding"),
		})
	}
	s.holdings[party] = hs
}

// lookup resolves a vault record by name, then by contract reference.
func (s *Store) lookup(id string) *vaultRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.byName[id]; ok {
		return rec
	}
	return s.byContract[id]
}

// nextID mints an opaque demo contract reference.
func (s *Store) nextID(kind string) string {
	return fmt.Sprintf("demo-%s-%d", kind, s.seq.Add(1))
}
