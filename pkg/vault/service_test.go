package vault_test

import (
	"context"
	"sync"
	"testing"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantonlabs/vault/pkg/demo"
	"github.com/cantonlabs/vault/pkg/vault"
)

const demoVaultID = "vault-1"

func testLogger() log.Logger {
	level, _ := log.ToLevel("error")
	return log.NewTestLogger(level)
}

type stubProbe bool

func (p stubProbe) IsAvailable(context.Context) bool { return bool(p) }

// captureSink records events fanned out by the service.
type captureSink struct {
	mu     sync.Mutex
	events []vault.Event
}

func (c *captureSink) Accepted(_ context.Context, ev vault.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) all() []vault.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]vault.Event(nil), c.events...)
}

func newDemoService(t *testing.T, opts ...vault.Option) (*vault.Service, *demo.Store) {
	t.Helper()
	store := demo.NewStore(testLogger())
	svc := vault.NewService(context.Background(), stubProbe(false), nil, store, testLogger(), opts...)
	require.False(t, svc.LedgerMode())
	return svc, store
}

func TestDepositScenario(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	res, err := svc.Deposit(ctx, demoVaultID, vault.DepositRequest{
		Party:  "party-1",
		Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Equal(t, vault.StatusAccepted, res.Status)
	assert.True(t, res.Shares.Equal(decimal.NewFromInt(100)), "price 1.0 mints 1:1, got %s", res.Shares)

	sum, ok, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, sum.TotalAssets.Equal(decimal.NewFromInt(1_000_100)))
	assert.True(t, sum.TotalShares.Equal(decimal.NewFromInt(1_000_100)))

	holdings, err := svc.UnderlyingHoldings(ctx, "party-1", "USDC")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].Amount.Equal(decimal.NewFromInt(9_900)),
		"expected 9900 USDC after depositing 100, got %s", holdings[0].Amount)
}

func TestFirstDepositConvention(t *testing.T) {
	store := demo.NewEmptyStore(testLogger())
	store.AddVault(vault.Vault{
		ContractID:      "vault-empty",
		Name:            "Empty Vault",
		UnderlyingAsset: "USDC",
	})
	svc := vault.NewService(context.Background(), stubProbe(false), nil, store, testLogger())

	res, err := svc.Deposit(context.Background(), "vault-empty", vault.DepositRequest{
		Party:  "alice",
		Amount: decimal.NewFromInt(42),
	})
	require.NoError(t, err)
	assert.True(t, res.Shares.Equal(decimal.NewFromInt(42)))
}

func TestDepositValidation(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, demoVaultID, vault.DepositRequest{Party: "p", Amount: decimal.Zero})
	assert.Equal(t, vault.CodeInvalidArgument, vault.CodeOf(err))

	_, err = svc.Deposit(ctx, demoVaultID, vault.DepositRequest{Party: "p", Amount: decimal.NewFromInt(-5)})
	assert.Equal(t, vault.CodeInvalidArgument, vault.CodeOf(err))

	_, err = svc.Deposit(ctx, demoVaultID, vault.DepositRequest{Amount: decimal.NewFromInt(5)})
	assert.Equal(t, vault.CodeInvalidArgument, vault.CodeOf(err))

	_, err = svc.Deposit(ctx, "no-such-vault", vault.DepositRequest{Party: "p", Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, vault.ErrVaultNotFound)
}

func TestGetVaultAbsentIsNotAnError(t *testing.T) {
	svc, _ := newDemoService(t)
	_, ok, err := svc.GetVault(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetVaultResolvesByNameAndReference(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	byName, ok, err := svc.GetVault(ctx, "Canton USD Vault")
	require.NoError(t, err)
	require.True(t, ok)
	byRef, ok, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byName, byRef)
}

func TestReadIdempotence(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	a, okA, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)
	b, okB, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)
	assert.Equal(t, okA, okB)
	assert.Equal(t, a, b)

	h1, err := svc.ShareHoldings(ctx, demoVaultID, "party-observer")
	require.NoError(t, err)
	h2, err := svc.ShareHoldings(ctx, demoVaultID, "party-observer")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestRoundTrip(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()
	amount := decimal.RequireFromString("123.45")

	dep, err := svc.Deposit(ctx, demoVaultID, vault.DepositRequest{Party: "rt", Amount: amount})
	require.NoError(t, err)

	red, err := svc.Redeem(ctx, demoVaultID, vault.RedeemRequest{Party: "rt", Shares: dep.Shares})
	require.NoError(t, err)

	diff := red.Assets.Sub(amount).Abs()
	assert.True(t, diff.Cmp(decimal.RequireFromString("0.0000000001")) <= 0,
		"deposited %s, got back %s", amount, red.Assets)
}

func TestPreviewMatchesDeposit(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()
	amount := decimal.RequireFromString("77.7")

	preview, err := svc.ConvertToShares(ctx, demoVaultID, amount)
	require.NoError(t, err)

	res, err := svc.Deposit(ctx, demoVaultID, vault.DepositRequest{Party: "pv", Amount: amount})
	require.NoError(t, err)
	assert.True(t, preview.Shares.Equal(res.Shares),
		"preview %s diverges from executed %s", preview.Shares, res.Shares)
}

func TestPreviewMatchesRedeem(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	dep, err := svc.Deposit(ctx, demoVaultID, vault.DepositRequest{
		Party: "pr", Amount: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	preview, err := svc.ConvertToAssets(ctx, demoVaultID, dep.Shares)
	require.NoError(t, err)
	red, err := svc.Redeem(ctx, demoVaultID, vault.RedeemRequest{Party: "pr", Shares: dep.Shares})
	require.NoError(t, err)
	assert.True(t, preview.Assets.Equal(red.Assets))
}

func TestInsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	before, _, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, demoVaultID, vault.DepositRequest{
		Party:  "poor",
		Amount: decimal.NewFromInt(999_999_999),
	})
	assert.ErrorIs(t, err, vault.ErrInsufficientBalance)

	after, _, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	holdings, err := svc.UnderlyingHoldings(ctx, "poor", "USDC")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].Amount.Equal(decimal.NewFromInt(10_000)))
}

func TestInsufficientSharesLeavesStateUnchanged(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	before, _, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, demoVaultID, vault.RedeemRequest{
		Party:  "nobody",
		Shares: decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, vault.ErrInsufficientShares)

	after, _, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSharePriceIdentityAfterOperations(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	dep, err := svc.Deposit(ctx, demoVaultID, vault.DepositRequest{
		Party: "ident", Amount: decimal.RequireFromString("333.33"),
	})
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, demoVaultID, vault.RedeemRequest{
		Party: "ident", Shares: dep.Shares.Div(decimal.NewFromInt(2)),
	})
	require.NoError(t, err)

	sum, _, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)
	want := sum.TotalAssets.Div(sum.TotalShares)
	assert.True(t, sum.SharePrice.Equal(want),
		"price %s diverges from totals ratio %s", sum.SharePrice, want)
}

func TestSinksReceiveEvents(t *testing.T) {
	sink := &captureSink{}
	svc, _ := newDemoService(t, vault.WithSinks(sink))
	ctx := context.Background()

	dep, err := svc.Deposit(ctx, demoVaultID, vault.DepositRequest{
		Party: "observer", Amount: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, demoVaultID, vault.RedeemRequest{
		Party: "observer", Shares: dep.Shares,
	})
	require.NoError(t, err)

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, "deposit", events[0].Kind)
	assert.Equal(t, "redeem", events[1].Kind)
	assert.Equal(t, "observer", events[0].Party)
	assert.Equal(t, demoVaultID, events[0].Vault.ID)
	assert.False(t, events[0].At.IsZero())
}

// fakeLedger is a minimal ledger-shaped backend for mode tests.
type fakeLedger struct {
	vaults   []vault.Vault
	deposits int
}

func (f *fakeLedger) ListVaults(context.Context) ([]vault.Vault, error) { return f.vaults, nil }

func (f *fakeLedger) GetVault(_ context.Context, id string) (vault.Vault, bool, error) {
	for _, v := range f.vaults {
		if v.Name == id || v.ContractID == id {
			return v, true, nil
		}
	}
	return vault.Vault{}, false, nil
}

func (f *fakeLedger) ShareHoldings(_ context.Context, v vault.Vault, party string) (vault.ShareHolding, error) {
	return vault.ShareHolding{Party: party, VaultID: v.Name}, nil
}

func (f *fakeLedger) UnderlyingHoldings(context.Context, string, string) ([]vault.UnderlyingHolding, error) {
	return nil, nil
}

func (f *fakeLedger) Deposit(_ context.Context, v vault.Vault, req vault.DepositRequest) (vault.DepositResult, error) {
	f.deposits++
	return vault.DepositResult{
		Status: vault.StatusAccepted,
		Shares: vault.AssetsToShares(v, req.Amount),
		TxID:   "offset-1",
	}, nil
}

func (f *fakeLedger) Redeem(_ context.Context, v vault.Vault, req vault.RedeemRequest) (vault.RedeemResult, error) {
	return vault.RedeemResult{
		Status: vault.StatusAccepted,
		Assets: vault.SharesToAssets(v, req.Shares),
		TxID:   "offset-2",
	}, nil
}

func TestLedgerModeRequiresHoldingReference(t *testing.T) {
	fake := &fakeLedger{vaults: []vault.Vault{{
		ContractID:      "cid-1",
		Name:            "Ledger Vault",
		UnderlyingAsset: "USDC",
		TotalAssets:     decimal.NewFromInt(1000),
		TotalShares:     decimal.NewFromInt(1000),
	}}}
	svc := vault.NewService(context.Background(), stubProbe(true), fake, nil, testLogger())
	require.True(t, svc.LedgerMode())

	_, err := svc.Deposit(context.Background(), "Ledger Vault", vault.DepositRequest{
		Party: "p", Amount: decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, vault.ErrMissingReference)
	assert.Zero(t, fake.deposits)

	res, err := svc.Deposit(context.Background(), "Ledger Vault", vault.DepositRequest{
		Party: "p", Amount: decimal.NewFromInt(10), UnderlyingHoldingCID: "holding-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "offset-1", res.TxID)
	assert.Equal(t, 1, fake.deposits)
}

func TestStickyModeDecision(t *testing.T) {
	// An unreachable ledger at boot demotes the process to demo mode
	// permanently, even though a ledger backend is configured.
	fake := &fakeLedger{}
	store := demo.NewStore(testLogger())
	svc := vault.NewService(context.Background(), stubProbe(false), fake, store, testLogger())
	assert.False(t, svc.LedgerMode())

	// Demo vault resolves, proving operations bind to the demo store.
	_, ok, err := svc.GetVault(context.Background(), demoVaultID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentDepositsNoLostUpdate(t *testing.T) {
	svc, _ := newDemoService(t)
	ctx := context.Background()

	const workers = 32
	amount := decimal.NewFromInt(10)

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Deposit(ctx, demoVaultID, vault.DepositRequest{
				Party:  "racer",
				Amount: amount,
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	sum, _, err := svc.GetVault(ctx, demoVaultID)
	require.NoError(t, err)
	want := decimal.NewFromInt(1_000_000 + workers*10)
	assert.True(t, sum.TotalAssets.Equal(want),
		"expected %s total assets, got %s", want, sum.TotalAssets)
	// At price 1.0 every deposit mints 1:1, so shares track assets.
	assert.True(t, sum.TotalShares.Equal(want),
		"expected %s total shares, got %s", want, sum.TotalShares)
}
