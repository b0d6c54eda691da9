package vault

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Backend is the storage capability behind the accounting core. Two
// implementations exist: the Canton ledger (pkg/ledger) and the in-memory
// demo store (pkg/demo). The core is written once against this interface
// and never branches on mode past construction.
type Backend interface {
	// ListVaults returns every known vault.
	ListVaults(ctx context.Context) ([]Vault, error)

	// GetVault resolves a vault by stable identity (name) or opaque
	// contract reference, tried in that order. Absence is not an error.
	GetVault(ctx context.Context, id string) (Vault, bool, error)

	// ShareHoldings returns the aggregate share position of party in the
	// given vault. A party with no position gets a zero-value holding.
	ShareHoldings(ctx context.Context, v Vault, party string) (ShareHolding, error)

	// UnderlyingHoldings returns a party's underlying holdings, optionally
	// filtered by instrument identifier.
	UnderlyingHoldings(ctx context.Context, party, instrument string) ([]UnderlyingHolding, error)

	// Deposit applies a validated deposit against the vault. v is the
	// snapshot the core resolved; implementations that own their state
	// re-read totals inside their own critical section.
	Deposit(ctx context.Context, v Vault, req DepositRequest) (DepositResult, error)

	// Redeem applies a validated redemption against the vault.
	Redeem(ctx context.Context, v Vault, req RedeemRequest) (RedeemResult, error)
}

// AvailabilityProber answers a single liveness question about the ledger.
type AvailabilityProber interface {
	IsAvailable(ctx context.Context) bool
}

// Event describes an accepted deposit or redemption, fanned out to the
// configured sinks (journal, NATS, websocket hub).
type Event struct {
	Kind    string          `json:"kind"` // "deposit" or "redeem"
	VaultID string          `json:"vaultId"`
	Party   string          `json:"party"`
	Assets  decimal.Decimal `json:"assets"`
	Shares  decimal.Decimal `json:"shares"`
	TxID    string          `json:"txId,omitempty"`
	Vault   Summary         `json:"vault"`
	At      time.Time       `json:"at"`
}

// Sink consumes accepted-operation events. Sinks must not fail the
// operation; errors are theirs to log.
type Sink interface {
	Accepted(ctx context.Context, ev Event)
}

// Metrics receives operation observations from the core.
type Metrics interface {
	OperationObserved(op string, code Code, elapsed time.Duration)
	LedgerMode(enabled bool)
	VaultTotals(vaultID string, assets, shares decimal.Decimal)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) OperationObserved(string, Code, time.Duration)        {}
func (NopMetrics) LedgerMode(bool)                                      {}
func (NopMetrics) VaultTotals(string, decimal.Decimal, decimal.Decimal) {}
