package metrics

import (
	"time"

	"sakura_marketplace/internal/app/port"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sakura_marketplace"

// Prometheus implements port.Metrics with client_golang collectors.
type Prometheus struct {
	workflowTotal    *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	rpcCalls         *prometheus.CounterVec
	walletRequests   *prometheus.CounterVec
	readModel        *prometheus.CounterVec
	reconcilePending prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		workflowTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_total",
			Help:      "Marketplace workflows by kind and outcome.",
		}, []string{"kind", "outcome"}),
		workflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Wall time of marketplace workflows including confirmation.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		}, []string{"kind"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Read-only JSON-RPC calls per network.",
		}, []string{"network", "method", "outcome"}),
		walletRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_requests_total",
			Help:      "Requests sent to the wallet provider.",
		}, []string{"method", "outcome"}),
		readModel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_model_refresh_total",
			Help:      "Read model view refreshes.",
		}, []string{"view", "outcome"}),
		reconcilePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconciliation_pending",
			Help:      "Off-chain writes waiting to be reconciled.",
		}),
	}
	reg.MustRegister(m.workflowTotal, m.workflowDuration, m.rpcCalls, m.walletRequests, m.readModel, m.reconcilePending)
	return m
}

func (m *Prometheus) ObserveWorkflow(kind, outcome string, duration time.Duration) {
	m.workflowTotal.WithLabelValues(kind, outcome).Inc()
	m.workflowDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Prometheus) IncRPCCall(network, method, outcome string) {
	m.rpcCalls.WithLabelValues(network, method, outcome).Inc()
}

func (m *Prometheus) IncWalletRequest(method, outcome string) {
	m.walletRequests.WithLabelValues(method, outcome).Inc()
}

func (m *Prometheus) IncReadModelRefresh(view, outcome string) {
	m.readModel.WithLabelValues(view, outcome).Inc()
}

func (m *Prometheus) SetReconciliationPending(n int) {
	m.reconcilePending.Set(float64(n))
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) ObserveWorkflow(string, string, time.Duration) {}
func (Nop) IncRPCCall(string, string, string)             {}
func (Nop) IncWalletRequest(string, string)               {}
func (Nop) IncReadModelRefresh(string, string)            {}
func (Nop) SetReconciliationPending(int)                  {}

var (
	_ port.Metrics = (*Prometheus)(nil)
	_ port.Metrics = Nop{}
)

// Outcome labels a call result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
