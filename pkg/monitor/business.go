package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
// nil 接收者上的方法都是空操作，未启用监控时可以直接传 nil
type BusinessMetrics struct {
	SubmissionsTotal     *prometheus.CounterVec
	WalletRequestsTotal  *prometheus.CounterVec
	ConfirmationDuration prometheus.Histogram
	TransactionCount     prometheus.Gauge
	HistoryRefreshTotal  *prometheus.CounterVec
}

// NewBusinessMetrics 在 reg 上注册业务指标
func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	factory := promauto.With(reg)
	return &BusinessMetrics{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_submissions_total",
			Help: "Total number of transfer submissions by result",
		}, []string{"result"}),
		WalletRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_wallet_requests_total",
			Help: "Wallet provider requests by method and result",
		}, []string{"method", "result"}),
		ConfirmationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transfer_confirmation_duration_seconds",
			Help:    "Time from metadata write to confirmation",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		}),
		TransactionCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "transfer_transaction_count",
			Help: "Last known on-chain transaction count",
		}),
		HistoryRefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_history_refresh_total",
			Help: "History refreshes by result",
		}, []string{"result"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *BusinessMetrics) ObserveSubmission(err error) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(result(err)).Inc()
}

func (m *BusinessMetrics) ObserveWalletRequest(method string, err error) {
	if m == nil {
		return
	}
	m.WalletRequestsTotal.WithLabelValues(method, result(err)).Inc()
}

func (m *BusinessMetrics) ObserveConfirmation(d time.Duration) {
	if m == nil {
		return
	}
	m.ConfirmationDuration.Observe(d.Seconds())
}

func (m *BusinessMetrics) SetTransactionCount(n uint64) {
	if m == nil {
		return
	}
	m.TransactionCount.Set(float64(n))
}

func (m *BusinessMetrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	m.HistoryRefreshTotal.WithLabelValues(result(err)).Inc()
}
