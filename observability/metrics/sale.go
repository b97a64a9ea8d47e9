package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics carries the instruments exposed by the sale engine's transport
// layer.
type SaleMetrics struct {
	depositsTotal    *prometheus.CounterVec
	depositsRejected *prometheus.CounterVec
	withdrawalsTotal *prometheus.CounterVec
	epochSold        *prometheus.GaugeVec
}

var (
	saleOnce     sync.Once
	saleRegistry *SaleMetrics
)

// Sale returns the process-wide sale metrics, registering them on first use.
func Sale() *SaleMetrics {
	saleOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			depositsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_deposits_total",
				Help: "Count of settled deposits by settlement asset.",
			}, []string{"asset"}),
			depositsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_deposits_rejected_total",
				Help: "Count of rejected deposits by error kind.",
			}, []string{"reason"}),
			withdrawalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_withdrawals_total",
				Help: "Count of settled promoter withdrawals by asset.",
			}, []string{"asset"}),
			epochSold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "sale_epoch_sold_units",
				Help: "Asset units sold in an epoch.",
			}, []string{"epoch"}),
		}
		prometheus.MustRegister(
			saleRegistry.depositsTotal,
			saleRegistry.depositsRejected,
			saleRegistry.withdrawalsTotal,
			saleRegistry.epochSold,
		)
	})
	return saleRegistry
}

// ObserveDeposit records a settled deposit.
func (m *SaleMetrics) ObserveDeposit(asset string) {
	if m == nil {
		return
	}
	m.depositsTotal.WithLabelValues(asset).Inc()
}

// ObserveDepositRejected records a rejected deposit by error kind.
func (m *SaleMetrics) ObserveDepositRejected(reason string) {
	if m == nil {
		return
	}
	m.depositsRejected.WithLabelValues(reason).Inc()
}

// ObserveWithdrawal records a settled promoter withdrawal.
func (m *SaleMetrics) ObserveWithdrawal(asset string) {
	if m == nil {
		return
	}
	m.withdrawalsTotal.WithLabelValues(asset).Inc()
}

// SetEpochSold tracks the running sold total for an epoch. Values beyond
// float precision saturate rather than alias.
func (m *SaleMetrics) SetEpochSold(epoch string, sold *big.Int) {
	if m == nil || sold == nil {
		return
	}
	value, _ := new(big.Float).SetInt(sold).Float64()
	m.epochSold.WithLabelValues(epoch).Set(value)
}
