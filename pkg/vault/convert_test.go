package vault

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snapshot(assets, shares string) Vault {
	return Vault{
		Name:        "Test Vault",
		TotalAssets: dec(assets),
		TotalShares: dec(shares),
	}
}

func TestSharePriceEmptyPool(t *testing.T) {
	v := snapshot("0", "0")
	if got := SharePrice(v); !got.Equal(dec("1")) {
		t.Errorf("expected price 1.0 for empty pool, got %s", got)
	}
}

func TestSharePriceDerivation(t *testing.T) {
	v := snapshot("500", "475")
	want := dec("500").Div(dec("475"))
	if got := SharePrice(v); !got.Equal(want) {
		t.Errorf("expected price %s, got %s", want, got)
	}
}

func TestAssetsToSharesFirstDeposit(t *testing.T) {
	v := snapshot("0", "0")
	if got := AssetsToShares(v, dec("250")); !got.Equal(dec("250")) {
		t.Errorf("first deposit of 250 should mint exactly 250 shares, got %s", got)
	}
}

func TestAssetsToSharesAtPar(t *testing.T) {
	v := snapshot("1000000", "1000000")
	if got := AssetsToShares(v, dec("100")); !got.Equal(dec("100")) {
		t.Errorf("expected 100 shares at price 1.0, got %s", got)
	}
}

func TestSharesToAssetsAbovePar(t *testing.T) {
	v := snapshot("500", "475")
	got := SharesToAssets(v, dec("10"))
	want := dec("10.526")
	if got.Sub(want).Abs().Cmp(dec("0.001")) > 0 {
		t.Errorf("redeeming 10 shares at price ~1.0526 should return ~10.526 assets, got %s", got)
	}
}

func TestSharesToAssetsEmptyPool(t *testing.T) {
	v := snapshot("0", "0")
	if got := SharesToAssets(v, dec("7")); !got.Equal(dec("7")) {
		t.Errorf("expected 1:1 conversion against empty pool, got %s", got)
	}
}

func TestConversionRoundTrip(t *testing.T) {
	v := snapshot("500", "475")
	assets := dec("123.45")

	shares := AssetsToShares(v, assets)
	after := Vault{
		TotalAssets: v.TotalAssets.Add(assets),
		TotalShares: v.TotalShares.Add(shares),
	}
	back := SharesToAssets(after, shares)

	if back.Sub(assets).Abs().Cmp(dec("0.0000000001")) > 0 {
		t.Errorf("deposit %s then redeem all shares returned %s", assets, back)
	}
}

func TestSummarizeUsesSharePrice(t *testing.T) {
	v := snapshot("500", "475")
	sum := Summarize(v)
	if !sum.SharePrice.Equal(SharePrice(v)) {
		t.Errorf("summary price %s diverges from SharePrice %s", sum.SharePrice, SharePrice(v))
	}
	if !sum.TotalAssets.Equal(v.TotalAssets) || !sum.TotalShares.Equal(v.TotalShares) {
		t.Error("summary totals diverge from vault totals")
	}
}
