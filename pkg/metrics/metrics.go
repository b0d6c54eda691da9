// Package metrics exposes Prometheus collectors for the vault service.
package metrics

import (
	"net/http"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/cantonlabs/vault/pkg/vault"
)

// Metrics implements vault.Metrics on its own Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry
	logger   log.Logger

	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	ledgerMode       prometheus.Gauge
	vaultAssets      *prometheus.GaugeVec
	vaultShares      *prometheus.GaugeVec
}

// New creates the collectors under the given namespace.
func New(namespace string, logger log.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		logger:   logger,

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Vault operations by type and outcome code",
		}, []string{"op", "code"}),

		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of vault operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		ledgerMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_mode",
			Help:      "1 when the process resolved to ledger mode at boot, 0 for demo mode",
		}),

		vaultAssets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vault_total_assets",
			Help:      "Total assets per vault as of the last mutation",
		}, []string{"vault"}),

		vaultShares: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vault_total_shares",
			Help:      "Total shares per vault as of the last mutation",
		}, []string{"vault"}),
	}

	registry.MustRegister(
		m.operations,
		m.operationLatency,
		m.ledgerMode,
		m.vaultAssets,
		m.vaultShares,
	)
	return m
}

// OperationObserved records one deposit/redeem outcome.
func (m *Metrics) OperationObserved(op string, code vault.Code, elapsed time.Duration) {
	m.operations.WithLabelValues(op, code.String()).Inc()
	m.operationLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// LedgerMode records the sticky mode decision.
func (m *Metrics) LedgerMode(enabled bool) {
	if enabled {
		m.ledgerMode.Set(1)
	} else {
		m.ledgerMode.Set(0)
	}
}

// VaultTotals refreshes the per-vault gauges. Decimal totals are
// truncated to float for the gauge; the API remains the exact source.
func (m *Metrics) VaultTotals(vaultID string, assets, shares decimal.Decimal) {
	m.vaultAssets.WithLabelValues(vaultID).Set(assets.InexactFloat64())
	m.vaultShares.WithLabelValues(vaultID).Set(shares.InexactFloat64())
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
