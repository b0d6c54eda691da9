// Package vault implements pooled vault share accounting: deposits of an
// underlying asset mint proportional shares, redeeming shares returns a
// proportional claim on the pool. State is resolved through a Backend,
// either the Canton ledger or the in-memory demo store.
package vault

import (
	"github.com/shopspring/decimal"
)

// Vault is the typed view of a vault contract. The (Admin, Name) pair is
// the stable identity; ContractID is the opaque ledger reference for the
// current contract version.
type Vault struct {
	ContractID      string
	Admin           string
	Name            string
	UnderlyingAsset string
	ShareInstrument string
	TotalAssets     decimal.Decimal
	TotalShares     decimal.Decimal
	DepositLimit    *decimal.Decimal
	MinDeposit      *decimal.Decimal
}

// Summary is the vault shape handed to request handlers.
type Summary struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Admin           string          `json:"admin,omitempty"`
	UnderlyingAsset string          `json:"underlyingAsset"`
	ShareInstrument string          `json:"shareInstrument,omitempty"`
	TotalAssets     decimal.Decimal `json:"totalAssets"`
	TotalShares     decimal.Decimal `json:"totalShares"`
	SharePrice      decimal.Decimal `json:"sharePrice"`
}

// Summarize builds the handler-facing shape. The routable ID is the
// contract reference; Name stays resolvable too (see Service.GetVault).
func Summarize(v Vault) Summary {
	return Summary{
		ID:              v.ContractID,
		Name:            v.Name,
		Admin:           v.Admin,
		UnderlyingAsset: v.UnderlyingAsset,
		ShareInstrument: v.ShareInstrument,
		TotalAssets:     v.TotalAssets,
		TotalShares:     v.TotalShares,
		SharePrice:      SharePrice(v),
	}
}

// ShareHolding is the aggregate share position of a party in one vault.
// The ledger may hold it as several fragments; backends always report the
// sum, with Locked true if any fragment is locked. ContractID is the first
// fragment's reference and is only a redemption hint.
type ShareHolding struct {
	Party      string
	VaultID    string
	ContractID string
	Amount     decimal.Decimal
	Locked     bool
}

// ShareHoldingView annotates a holding with its current value.
type ShareHoldingView struct {
	Party      string          `json:"party"`
	VaultID    string          `json:"vaultId"`
	Shares     decimal.Decimal `json:"shares"`
	Value      decimal.Decimal `json:"value"`
	Locked     bool            `json:"locked"`
	ContractID string          `json:"contractId,omitempty"`
}

// UnderlyingHolding is a party's balance record of a deposit-eligible
// instrument. Multiple holdings per (party, instrument) may coexist.
type UnderlyingHolding struct {
	Party      string          `json:"party"`
	Instrument string          `json:"instrument"`
	Amount     decimal.Decimal `json:"amount"`
	Locked     bool            `json:"locked"`
	ContractID string          `json:"contractId,omitempty"`
}

// DepositRequest asks to deposit Amount of the vault's underlying asset.
// UnderlyingHoldingCID is required in ledger mode; demo mode selects a
// holding automatically when it is empty. Receiver defaults to Party.
type DepositRequest struct {
	Party                string
	Receiver             string
	Amount               decimal.Decimal
	UnderlyingHoldingCID string
}

// RedeemRequest asks to redeem Shares from the party's holding.
// ShareHoldingCID is optional; when empty the holding is resolved.
type RedeemRequest struct {
	Party           string
	Receiver        string
	Shares          decimal.Decimal
	ShareHoldingCID string
}

// DepositResult reports an accepted deposit. Shares is computed from the
// vault totals read before the transition. TxID is the ledger completion
// offset, empty in demo mode.
type DepositResult struct {
	Status string          `json:"status"`
	Shares decimal.Decimal `json:"shares"`
	TxID   string          `json:"txId,omitempty"`
}

// RedeemResult reports an accepted redemption.
type RedeemResult struct {
	Status string          `json:"status"`
	Assets decimal.Decimal `json:"assets"`
	TxID   string          `json:"txId,omitempty"`
}

// StatusAccepted is the status value of successful results.
const StatusAccepted = "accepted"
