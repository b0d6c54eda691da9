package ledger

import (
	"context"
	"fmt"

	"github.com/luxfi/log"

	"github.com/cantonlabs/vault/pkg/vault"
)

// Backend implements vault.Backend against the live ledger. The ledger's
// contract versioning provides the mutual exclusion deposits and redeems
// need: a submission against a stale reference comes back as a Conflict
// and the caller resubmits with a fresh one.
type Backend struct {
	client *Client
	logger log.Logger
}

// NewBackend wires the ledger-mode backend over a gateway client.
func NewBackend(client *Client, logger log.Logger) *Backend {
	return &Backend{client: client, logger: logger}
}

// ListVaults queries every vault contract and maps it.
func (b *Backend) ListVaults(ctx context.Context) ([]vault.Vault, error) {
	contracts, err := b.client.QueryContracts(ctx, TemplateVault, nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]vault.Vault, 0, len(contracts))
	for _, c := range contracts {
		v, err := MapVault(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetVault issues a filtered query by identity first, then falls back to
// matching the opaque contract reference.
func (b *Backend) GetVault(ctx context.Context, id string) (vault.Vault, bool, error) {
	contracts, err := b.client.QueryContracts(ctx, TemplateVault, map[string]interface{}{"name": id}, nil)
	if err != nil {
		return vault.Vault{}, false, err
	}
	if len(contracts) > 0 {
		v, err := MapVault(contracts[0])
		if err != nil {
			return vault.Vault{}, false, err
		}
		return v, true, nil
	}

	contracts, err = b.client.QueryContracts(ctx, TemplateVault, nil, nil)
	if err != nil {
		return vault.Vault{}, false, err
	}
	for _, c := range contracts {
		if c.ContractID != id {
			continue
		}
		v, err := MapVault(c)
		if err != nil {
			return vault.Vault{}, false, err
		}
		return v, true, nil
	}
	return vault.Vault{}, false, nil
}

// ShareHoldings queries the party's share-holding contracts and folds
// the fragments referencing the vault into one aggregate.
func (b *Backend) ShareHoldings(ctx context.Context, v vault.Vault, party string) (vault.ShareHolding, error) {
	contracts, err := b.client.QueryContracts(ctx, TemplateShareHolding,
		map[string]interface{}{"owner": party}, []string{party})
	if err != nil {
		return vault.ShareHolding{}, err
	}
	return AggregateShareHoldings(v, party, contracts)
}

// UnderlyingHoldings queries the party's holdings, optionally filtered
// by instrument.
func (b *Backend) UnderlyingHoldings(ctx context.Context, party, instrument string) ([]vault.UnderlyingHolding, error) {
	filter := map[string]interface{}{"owner": party}
	if instrument != "" {
		filter["instrument"] = instrument
	}
	contracts, err := b.client.QueryContracts(ctx, TemplateUnderlyingHolding, filter, []string{party})
	if err != nil {
		return nil, err
	}
	out := make([]vault.UnderlyingHolding, 0, len(contracts))
	for _, c := range contracts {
		h, err := MapUnderlyingHolding(c)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Deposit exercises the vault's deposit choice acting as the depositor.
// The ledger owns the post-state; the minted shares reported back are
// computed from the snapshot resolved before submission, and the
// completion offset is surfaced as the transaction id.
func (b *Backend) Deposit(ctx context.Context, v vault.Vault, req vault.DepositRequest) (vault.DepositResult, error) {
	shares := vault.AssetsToShares(v, req.Amount)
	cmd := ExerciseCommand{
		TemplateID: TemplateVault,
		ContractID: v.ContractID,
		Choice:     "Vault_Deposit",
		Argument: map[string]interface{}{
			"depositor":  req.Party,
			"receiver":   req.Receiver,
			"holdingCid": req.UnderlyingHoldingCID,
			"amount":     req.Amount.String(),
		},
	}
	res, err := b.client.Submit(ctx, []string{req.Party}, []ExerciseCommand{cmd})
	if err != nil {
		return vault.DepositResult{}, err
	}
	return vault.DepositResult{
		Status: vault.StatusAccepted,
		Shares: shares,
		TxID:   res.CompletionOffset,
	}, nil
}

// Redeem exercises the vault's redeem choice acting as the redeemer. The
// share-holding reference is resolved when the caller did not supply one.
func (b *Backend) Redeem(ctx context.Context, v vault.Vault, req vault.RedeemRequest) (vault.RedeemResult, error) {
	cid := req.ShareHoldingCID
	if cid == "" {
		h, err := b.ShareHoldings(ctx, v, req.Party)
		if err != nil {
			return vault.RedeemResult{}, err
		}
		if h.ContractID == "" {
			return vault.RedeemResult{}, fmt.Errorf("%w: no share holding for %s in %s",
				vault.ErrHoldingNotFound, req.Party, v.Name)
		}
		cid = h.ContractID
	}

	assets := vault.SharesToAssets(v, req.Shares)
	cmd := ExerciseCommand{
		TemplateID: TemplateVault,
		ContractID: v.ContractID,
		Choice:     "Vault_Redeem",
		Argument: map[string]interface{}{
			"redeemer":        req.Party,
			"receiver":        req.Receiver,
			"shareHoldingCid": cid,
			"shares":          req.Shares.String(),
		},
	}
	res, err := b.client.Submit(ctx, []string{req.Party}, []ExerciseCommand{cmd})
	if err != nil {
		return vault.RedeemResult{}, err
	}
	return vault.RedeemResult{
		Status: vault.StatusAccepted,
		Assets: assets,
		TxID:   res.CompletionOffset,
	}, nil
}
