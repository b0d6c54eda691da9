package demo

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cantonlabs/vault/pkg/vault"
)

// Store implements vault.Backend. Mutations run entirely inside the
// vault record's critical section: preconditions are checked against the
// totals read there, so a rejected operation never partially mutates and
// concurrent deposits cannot lose an update.

// ListVaults returns all demo vaults, ordered by name.
func (s *Store) ListVaults(_ context.Context) ([]vault.Vault, error) {
	s.mu.RLock()
	recs := make([]*vaultRecord, 0, len(s.byName))
	for _, rec := range s.byName {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]vault.Vault, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.vault)
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetVault scans by name, then by contract reference.
func (s *Store) GetVault(_ context.Context, id string) (vault.Vault, bool, error) {
	rec := s.lookup(id)
	if rec == nil {
		return vault.Vault{}, false, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.vault, true, nil
}

// ShareHoldings returns the single aggregate record for (vault, party),
// or a zero-value holding if the party has no position.
func (s *Store) ShareHoldings(_ context.Context, v vault.Vault, party string) (vault.ShareHolding, error) {
	rec := s.lookup(v.Name)
	if rec == nil {
		return vault.ShareHolding{}, fmt.Errorf("%w: %s", vault.ErrVaultNotFound, v.Name)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	h := vault.ShareHolding{Party: party, VaultID: v.Name}
	if entry, ok := rec.shares[party]; ok {
		h.Amount = entry.amount
		h.Locked = entry.locked
		h.ContractID = entry.contractID
	}
	return h, nil
}

// UnderlyingHoldings seeds the party on first observation and returns
// copies of its holdings, optionally filtered by instrument.
func (s *Store) UnderlyingHoldings(_ context.Context, party, instrument string) ([]vault.UnderlyingHolding, error) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.seedLocked(party)

	out := make([]vault.UnderlyingHolding, 0, len(s.holdings[party]))
	for _, h := range s.holdings[party] {
		if instrument != "" && h.Instrument != instrument {
			continue
		}
		out = append(out, *h)
	}
	return out, nil
}

// Deposit debits an unlocked underlying holding, credits the receiver's
// share position, and moves the vault totals, all under the vault lock.
// Share conversion uses the totals as they are at the head of the
// critical section, not the snapshot the caller resolved.
func (s *Store) Deposit(_ context.Context, v vault.Vault, req vault.DepositRequest) (vault.DepositResult, error) {
	rec := s.lookup(v.Name)
	if rec == nil {
		return vault.DepositResult{}, fmt.Errorf("%w: %s", vault.ErrVaultNotFound, v.Name)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.seedLocked(req.Party)

	source, err := s.selectHolding(rec.vault, req)
	if err != nil {
		return vault.DepositResult{}, err
	}

	shares := vault.AssetsToShares(rec.vault, req.Amount)

	source.Amount = source.Amount.Sub(req.Amount)
	entry, ok := rec.shares[req.Receiver]
	if !ok {
		entry = &shareEntry{contractID: s.nextID("share")}
		rec.shares[req.Receiver] = entry
	}
	entry.amount = entry.amount.Add(shares)
	rec.vault.TotalAssets = rec.vault.TotalAssets.Add(req.Amount)
	rec.vault.TotalShares = rec.vault.TotalShares.Add(shares)

	return vault.DepositResult{Status: vault.StatusAccepted, Shares: shares}, nil
}

// selectHolding picks the underlying holding a deposit consumes: the
// explicit reference when given, otherwise the first unlocked holding of
// the vault's instrument that covers the amount. Holdings are never split
// or merged. Callers hold hmu.
func (s *Store) selectHolding(v vault.Vault, req vault.DepositRequest) (*vault.UnderlyingHolding, error) {
	if req.UnderlyingHoldingCID != "" {
		for _, h := range s.holdings[req.Party] {
			if h.ContractID != req.UnderlyingHoldingCID {
				continue
			}
			if h.Locked || h.Instrument != v.UnderlyingAsset || h.Amount.Cmp(req.Amount) < 0 {
				return nil, fmt.Errorf("%w: holding %s cannot cover %s %s",
					vault.ErrInsufficientBalance, h.ContractID, req.Amount, v.UnderlyingAsset)
			}
			return h, nil
		}
		return nil, fmt.Errorf("%w: %s", vault.ErrHoldingNotFound, req.UnderlyingHoldingCID)
	}
	for _, h := range s.holdings[req.Party] {
		if !h.Locked && h.Instrument == v.UnderlyingAsset && h.Amount.Cmp(req.Amount) >= 0 {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: no unlocked %s holding covers %s",
		vault.ErrInsufficientBalance, v.UnderlyingAsset, req.Amount)
}

// Redeem debits the party's share position, credits the receiver's
// underlying holding, and moves the vault totals, under the vault lock.
func (s *Store) Redeem(_ context.Context, v vault.Vault, req vault.RedeemRequest) (vault.RedeemResult, error) {
	rec := s.lookup(v.Name)
	if rec == nil {
		return vault.RedeemResult{}, fmt.Errorf("%w: %s", vault.ErrVaultNotFound, v.Name)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.seedLocked(req.Receiver)

	entry, ok := rec.shares[req.Party]
	if !ok || entry.amount.Cmp(req.Shares) < 0 {
		return vault.RedeemResult{}, fmt.Errorf("%w: party %s holds fewer than %s shares",
			vault.ErrInsufficientShares, req.Party, req.Shares)
	}

	assets := vault.SharesToAssets(rec.vault, req.Shares)

	entry.amount = entry.amount.Sub(req.Shares)
	if entry.amount.IsZero() {
		delete(rec.shares, req.Party)
	}
	s.creditUnderlying(req.Receiver, rec.vault.UnderlyingAsset, assets)
	rec.vault.TotalAssets = rec.vault.TotalAssets.Sub(assets)
	rec.vault.TotalShares = rec.vault.TotalShares.Sub(req.Shares)

	return vault.RedeemResult{Status: vault.StatusAccepted, Assets: assets}, nil
}

// creditUnderlying adds to the party's first unlocked holding of the
// instrument, creating one if none exists. Callers hold hmu.
func (s *Store) creditUnderlying(party, instrument string, amount decimal.Decimal) {
	for _, h := range s.holdings[party] {
		if h.Instrument == instrument && !h.Locked {
			h.Amount = h.Amount.Add(amount)
			return
		}
	}
	s.holdings[party] = append(s.holdings[party], &vault.UnderlyingHolding{
		Party:      party,
		Instrument: instrument,
		Amount:     amount,
		ContractID: s.nextID("holding"),
	})
}
