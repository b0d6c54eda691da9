package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cantonlabs/vault/pkg/vault"
)

// Template identifiers of the vault Daml model.
const (
	TemplateVault             = "CantonVault.Vault:Vault"
	TemplateShareHolding      = "CantonVault.Vault:ShareHolding"
	TemplateUnderlyingHolding = "CantonVault.Holding:UnderlyingHolding"
)

// Ledger amounts are exact-precision decimal strings on the wire.

type vaultPayload struct {
	Admin           string  `json:"admin"`
	Name            string  `json:"name"`
	UnderlyingAsset string  `json:"underlyingAsset"`
	ShareInstrument string  `json:"shareInstrument"`
	TotalAssets     string  `json:"totalAssets"`
	TotalShares     string  `json:"totalShares"`
	DepositLimit    *string `json:"depositLimit,omitempty"`
	MinDeposit      *string `json:"minDeposit,omitempty"`
}

type shareHoldingPayload struct {
	Owner  string `json:"owner"`
	Vault  string `json:"vault"`
	Amount string `json:"amount"`
	Locked bool   `json:"locked"`
}

type underlyingHoldingPayload struct {
	Owner      string `json:"owner"`
	Instrument string `json:"instrument"`
	Amount     string `json:"amount"`
	Locked     bool   `json:"locked"`
}

// MapVault turns a raw vault contract into the typed view. A payload
// that does not decode is an unexpected ledger response, surfaced fatal.
func MapVault(c Contract) (vault.Vault, error) {
	var p vaultPayload
	if err := json.Unmarshal(c.Payload, &p); err != nil {
		return vault.Vault{}, fmt.Errorf("%w: vault %s payload: %v", vault.ErrLedgerResponse, c.ContractID, err)
	}
	totalAssets, err := parseAmount(p.TotalAssets, "totalAssets")
	if err != nil {
		return vault.Vault{}, err
	}
	totalShares, err := parseAmount(p.TotalShares, "totalShares")
	if err != nil {
		return vault.Vault{}, err
	}
	depositLimit, err := parseOptAmount(p.DepositLimit, "depositLimit")
	if err != nil {
		return vault.Vault{}, err
	}
	minDeposit, err := parseOptAmount(p.MinDeposit, "minDeposit")
	if err != nil {
		return vault.Vault{}, err
	}
	return vault.Vault{
		ContractID:      c.ContractID,
		Admin:           p.Admin,
		Name:            p.Name,
		UnderlyingAsset: p.UnderlyingAsset,
		ShareInstrument: p.ShareInstrument,
		TotalAssets:     totalAssets,
		TotalShares:     totalShares,
		DepositLimit:    depositLimit,
		MinDeposit:      minDeposit,
	}, nil
}

// shareFragment is one ShareHolding contract before aggregation.
type shareFragment struct {
	contractID string
	vaultRef   string
	amount     decimal.Decimal
	locked     bool
}

func mapShareFragment(c Contract) (shareFragment, error) {
	var p shareHoldingPayload
	if err := json.Unmarshal(c.Payload, &p); err != nil {
		return shareFragment{}, fmt.Errorf("%w: share holding %s payload: %v", vault.ErrLedgerResponse, c.ContractID, err)
	}
	amount, err := parseAmount(p.Amount, "amount")
	if err != nil {
		return shareFragment{}, err
	}
	return shareFragment{
		contractID: c.ContractID,
		vaultRef:   p.Vault,
		amount:     amount,
		locked:     p.Locked,
	}, nil
}

// AggregateShareHoldings folds the party's fragments referencing the
// vault into the one logical holding the core reports: the amount is the
// sum, the lock flag is true if any fragment is locked, and the
// representative reference is the first match (a redemption hint only,
// re-resolved before submission).
func AggregateShareHoldings(v vault.Vault, party string, contracts []Contract) (vault.ShareHolding, error) {
	h := vault.ShareHolding{Party: party, VaultID: v.Name}
	for _, c := range contracts {
		frag, err := mapShareFragment(c)
		if err != nil {
			return vault.ShareHolding{}, err
		}
		if frag.vaultRef != v.ContractID && frag.vaultRef != v.Name {
			continue
		}
		if h.ContractID == "" {
			h.ContractID = frag.contractID
		}
		h.Amount = h.Amount.Add(frag.amount)
		h.Locked = h.Locked || frag.locked
	}
	return h, nil
}

// MapUnderlyingHolding turns a raw holding contract into the typed view.
func MapUnderlyingHolding(c Contract) (vault.UnderlyingHolding, error) {
	var p underlyingHoldingPayload
	if err := json.Unmarshal(c.Payload, &p); err != nil {
		return vault.UnderlyingHolding{}, fmt.Errorf("%w: holding %s payload: %v", vault.ErrLedgerResponse, c.ContractID, err)
	}
	amount, err := parseAmount(p.Amount, "amount")
	if err != nil {
		return vault.UnderlyingHolding{}, err
	}
	return vault.UnderlyingHolding{
		Party:      p.Owner,
		Instrument: p.Instrument,
		Amount:     amount,
		Locked:     p.Locked,
		ContractID: c.ContractID,
	}, nil
}

func parseAmount(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s %q is not a decimal", vault.ErrLedgerResponse, field, s)
	}
	return d, nil
}

func parseOptAmount(s *string, field string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseAmount(*s, field)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
