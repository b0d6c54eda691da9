package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
)

// Service is the vault accounting core. It resolves state through one of
// two backends, enforces preconditions, and fans accepted operations out
// to the configured sinks. It never retries: errors are classified and
// returned for the caller to decide.
type Service struct {
	backend    Backend
	ledgerMode bool
	logger     log.Logger
	metrics    Metrics
	sinks      []Sink
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches a metrics collector.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSinks attaches accepted-operation sinks.
func WithSinks(sinks ...Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// NewService probes the ledger once and caches the answer for the life of
// the process: reachable means every subsequent operation runs against
// ledgerBackend, unreachable means demoBackend. The decision is one-way.
// A network hiccup at boot therefore demotes the process to demo mode
// until restart; the two storages are not kept in sync, so flipping
// mid-session is not safe. The chosen mode is logged and exported.
func NewService(ctx context.Context, probe AvailabilityProber, ledgerBackend, demoBackend Backend, logger log.Logger, opts ...Option) *Service {
	s := &Service{
		logger:  logger,
		metrics: NopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ledgerMode = ledgerBackend != nil && probe != nil && probe.IsAvailable(ctx)
	if s.ledgerMode {
		s.backend = ledgerBackend
		s.logger.Info("ledger reachable, running in ledger mode")
	} else {
		s.backend = demoBackend
		s.logger.Warn("ledger unreachable, running in demo mode until restart")
	}
	s.metrics.LedgerMode(s.ledgerMode)
	return s
}

// LedgerMode reports whether the process resolved to ledger mode at boot.
func (s *Service) LedgerMode() bool { return s.ledgerMode }

// ListVaults returns every known vault as a summary.
func (s *Service) ListVaults(ctx context.Context) ([]Summary, error) {
	vaults, err := s.backend.ListVaults(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(vaults))
	for _, v := range vaults {
		out = append(out, Summarize(v))
	}
	return out, nil
}

// GetVault resolves a vault by name or contract reference. Absence is
// reported as ok=false, not an error, so handlers can shape a 404.
func (s *Service) GetVault(ctx context.Context, id string) (Summary, bool, error) {
	v, ok, err := s.backend.GetVault(ctx, id)
	if err != nil || !ok {
		return Summary{}, ok, err
	}
	return Summarize(v), true, nil
}

// ShareHoldings returns the aggregate share position of party in the
// vault, valued at the current share price.
func (s *Service) ShareHoldings(ctx context.Context, vaultID, party string) (ShareHoldingView, error) {
	v, ok, err := s.backend.GetVault(ctx, vaultID)
	if err != nil {
		return ShareHoldingView{}, err
	}
	if !ok {
		return ShareHoldingView{}, fmt.Errorf("%w: %s", ErrVaultNotFound, vaultID)
	}
	h, err := s.backend.ShareHoldings(ctx, v, party)
	if err != nil {
		return ShareHoldingView{}, err
	}
	return ShareHoldingView{
		Party:      party,
		VaultID:    vaultID,
		Shares:     h.Amount,
		Value:      h.Amount.Mul(SharePrice(v)),
		Locked:     h.Locked,
		ContractID: h.ContractID,
	}, nil
}

// UnderlyingHoldings returns the party's underlying holdings, optionally
// filtered by instrument.
func (s *Service) UnderlyingHoldings(ctx context.Context, party, instrument string) ([]UnderlyingHolding, error) {
	return s.backend.UnderlyingHoldings(ctx, party, instrument)
}

// ConversionResult is a priced preview of a deposit or redemption.
type ConversionResult struct {
	Assets     decimal.Decimal `json:"assets"`
	Shares     decimal.Decimal `json:"shares"`
	SharePrice decimal.Decimal `json:"sharePrice"`
}

// ConvertToShares previews how many shares a deposit of assets would
// mint. Uses the same conversion as Deposit so previews match results.
func (s *Service) ConvertToShares(ctx context.Context, vaultID string, assets decimal.Decimal) (ConversionResult, error) {
	v, ok, err := s.backend.GetVault(ctx, vaultID)
	if err != nil {
		return ConversionResult{}, err
	}
	if !ok {
		return ConversionResult{}, fmt.Errorf("%w: %s", ErrVaultNotFound, vaultID)
	}
	return ConversionResult{
		Assets:     assets,
		Shares:     AssetsToShares(v, assets),
		SharePrice: SharePrice(v),
	}, nil
}

// ConvertToAssets previews how many assets redeeming shares would return.
func (s *Service) ConvertToAssets(ctx context.Context, vaultID string, shares decimal.Decimal) (ConversionResult, error) {
	v, ok, err := s.backend.GetVault(ctx, vaultID)
	if err != nil {
		return ConversionResult{}, err
	}
	if !ok {
		return ConversionResult{}, fmt.Errorf("%w: %s", ErrVaultNotFound, vaultID)
	}
	return ConversionResult{
		Assets:     SharesToAssets(v, shares),
		Shares:     shares,
		SharePrice: SharePrice(v),
	}, nil
}

// Deposit executes a deposit into the vault. Preconditions are checked
// before any state moves; a rejected deposit never partially mutates.
func (s *Service) Deposit(ctx context.Context, vaultID string, req DepositRequest) (DepositResult, error) {
	start := time.Now()
	res, err := s.deposit(ctx, vaultID, req)
	s.metrics.OperationObserved("deposit", CodeOf(err), time.Since(start))
	return res, err
}

func (s *Service) deposit(ctx context.Context, vaultID string, req DepositRequest) (DepositResult, error) {
	if req.Party == "" {
		return DepositResult{}, fmt.Errorf("%w: party required", ErrInvalidArgument)
	}
	if !req.Amount.IsPositive() {
		return DepositResult{}, fmt.Errorf("%w: deposit amount must be positive", ErrInvalidArgument)
	}
	v, ok, err := s.backend.GetVault(ctx, vaultID)
	if err != nil {
		return DepositResult{}, err
	}
	if !ok {
		return DepositResult{}, fmt.Errorf("%w: %s", ErrVaultNotFound, vaultID)
	}
	if v.MinDeposit != nil && req.Amount.Cmp(*v.MinDeposit) < 0 {
		return DepositResult{}, fmt.Errorf("%w: deposit below minimum %s", ErrInvalidArgument, v.MinDeposit)
	}
	if v.DepositLimit != nil && v.TotalAssets.Add(req.Amount).Cmp(*v.DepositLimit) > 0 {
		return DepositResult{}, fmt.Errorf("%w: deposit limit %s exceeded", ErrInvalidArgument, v.DepositLimit)
	}
	if s.ledgerMode && req.UnderlyingHoldingCID == "" {
		return DepositResult{}, ErrMissingReference
	}
	if req.Receiver == "" {
		req.Receiver = req.Party
	}

	res, err := s.backend.Deposit(ctx, v, req)
	if err != nil {
		s.logger.Warn("deposit rejected",
			"vault", vaultID, "party", req.Party,
			"amount", req.Amount, "code", CodeOf(err).String(), "error", err)
		return DepositResult{}, err
	}
	s.logger.Info("deposit accepted",
		"vault", vaultID, "party", req.Party,
		"amount", req.Amount, "shares", res.Shares, "txId", res.TxID)
	s.accepted(ctx, Event{
		Kind:    "deposit",
		VaultID: vaultID,
		Party:   req.Party,
		Assets:  req.Amount,
		Shares:  res.Shares,
		TxID:    res.TxID,
	})
	return res, nil
}

// Redeem executes a redemption of shares from the vault.
func (s *Service) Redeem(ctx context.Context, vaultID string, req RedeemRequest) (RedeemResult, error) {
	start := time.Now()
	res, err := s.redeem(ctx, vaultID, req)
	s.metrics.OperationObserved("redeem", CodeOf(err), time.Since(start))
	return res, err
}

func (s *Service) redeem(ctx context.Context, vaultID string, req RedeemRequest) (RedeemResult, error) {
	if req.Party == "" {
		return RedeemResult{}, fmt.Errorf("%w: party required", ErrInvalidArgument)
	}
	if !req.Shares.IsPositive() {
		return RedeemResult{}, fmt.Errorf("%w: share amount must be positive", ErrInvalidArgument)
	}
	v, ok, err := s.backend.GetVault(ctx, vaultID)
	if err != nil {
		return RedeemResult{}, err
	}
	if !ok {
		return RedeemResult{}, fmt.Errorf("%w: %s", ErrVaultNotFound, vaultID)
	}
	if req.Receiver == "" {
		req.Receiver = req.Party
	}

	res, err := s.backend.Redeem(ctx, v, req)
	if err != nil {
		s.logger.Warn("redeem rejected",
			"vault", vaultID, "party", req.Party,
			"shares", req.Shares, "code", CodeOf(err).String(), "error", err)
		return RedeemResult{}, err
	}
	s.logger.Info("redeem accepted",
		"vault", vaultID, "party", req.Party,
		"shares", req.Shares, "assets", res.Assets, "txId", res.TxID)
	s.accepted(ctx, Event{
		Kind:    "redeem",
		VaultID: vaultID,
		Party:   req.Party,
		Assets:  res.Assets,
		Shares:  req.Shares,
		TxID:    res.TxID,
	})
	return res, nil
}

// accepted refreshes the vault summary and fans the event out. Sinks are
// best-effort observers; they never fail the operation.
func (s *Service) accepted(ctx context.Context, ev Event) {
	ev.At = time.Now().UTC()
	if v, ok, err := s.backend.GetVault(ctx, ev.VaultID); err == nil && ok {
		ev.Vault = Summarize(v)
		s.metrics.VaultTotals(ev.Vault.ID, v.TotalAssets, v.TotalShares)
	}
	for _, sink := range s.sinks {
		sink.Accepted(ctx, ev)
	}
}
