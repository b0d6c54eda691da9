package vault

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// SharePrice derives the price of one share from the vault totals.
// An empty pool prices at 1.0. Every call site that needs a price must go
// through this function; deposit and redeem correctness depends on the
// price being computed once, from pre-transition totals.
func SharePrice(v Vault) decimal.Decimal {
	if v.TotalShares.IsZero() {
		return one
	}
	return v.TotalAssets.Div(v.TotalShares)
}

// AssetsToShares converts an asset amount to the shares it would mint
// against the given vault snapshot. First-depositor convention: with an
// empty pool, 1 unit of asset mints 1 unit of share. Pure; callers use it
// to preview a deposit, mutating paths use it with pre-transition totals.
func AssetsToShares(v Vault, assets decimal.Decimal) decimal.Decimal {
	if v.TotalShares.IsZero() || v.TotalAssets.IsZero() {
		return assets
	}
	return assets.Mul(v.TotalShares).Div(v.TotalAssets)
}

// SharesToAssets converts a share amount to the assets it would redeem
// against the given vault snapshot.
func SharesToAssets(v Vault, shares decimal.Decimal) decimal.Decimal {
	if v.TotalAssets.IsZero() || v.TotalShares.IsZero() {
		return shares
	}
	return shares.Mul(v.TotalAssets).Div(v.TotalShares)
}
