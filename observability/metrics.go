package observability

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics tracks the executor: one counter and latency sample per
// operation plus gauges mirroring the committed ledger and pool state.
type VaultMetrics struct {
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	reserve      prometheus.Gauge
	totalShares  prometheus.Gauge
	poolReserves *prometheus.GaugeVec
	swapVolume   *prometheus.CounterVec
}

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetrics

	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics
)

// Vault returns the lazily-initialised executor metrics.
func Vault() *VaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rebasevault",
				Subsystem: "vault",
				Name:      "operations_total",
				Help:      "Vault operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rebasevault",
				Subsystem: "vault",
				Name:      "operation_duration_seconds",
				Help:      "Latency of vault operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			reserve: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rebasevault",
				Subsystem: "ledger",
				Name:      "reserve",
				Help:      "Cached reserve of the rebasing ledger in base units.",
			}),
			totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rebasevault",
				Subsystem: "ledger",
				Name:      "total_shares",
				Help:      "Shares outstanding on the rebasing ledger.",
			}),
			poolReserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "rebasevault",
				Subsystem: "amm",
				Name:      "reserve",
				Help:      "Pool reserves in base units segmented by pool and side.",
			}, []string{"pool", "side"}),
			swapVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rebasevault",
				Subsystem: "amm",
				Name:      "swap_volume_total",
				Help:      "Swap input volume in base units segmented by pool and direction.",
			}, []string{"pool", "direction"}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.latency,
			vaultRegistry.reserve,
			vaultRegistry.totalShares,
			vaultRegistry.poolReserves,
			vaultRegistry.swapVolume,
		)
	})
	return vaultRegistry
}

// Observe records the outcome of a vault operation.
func (m *VaultMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(label(operation), outcome).Inc()
	m.latency.WithLabelValues(label(operation)).Observe(duration.Seconds())
}

// SetLedger mirrors the committed ledger state.
func (m *VaultMetrics) SetLedger(reserve, totalShares *uint256.Int) {
	if m == nil {
		return
	}
	m.reserve.Set(uintToFloat(reserve))
	m.totalShares.Set(uintToFloat(totalShares))
}

// SetPoolReserves mirrors the live reserves of a pool.
func (m *VaultMetrics) SetPoolReserves(pool string, a, b *uint256.Int) {
	if m == nil {
		return
	}
	m.poolReserves.WithLabelValues(label(pool), "a").Set(uintToFloat(a))
	m.poolReserves.WithLabelValues(label(pool), "b").Set(uintToFloat(b))
}

// RecordSwap adds a committed swap's input to the volume counter.
func (m *VaultMetrics) RecordSwap(pool, direction string, amountIn *uint256.Int) {
	if m == nil {
		return
	}
	m.swapVolume.WithLabelValues(label(pool), label(direction)).Add(uintToFloat(amountIn))
}

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rebasevault",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total API module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rebasevault",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total API module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rebasevault",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rebasevault",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(label(module), label(method), outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(label(module), label(method), strconv.Itoa(status)).Inc()
	}
	m.latency.WithLabelValues(label(module), label(method)).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(label(module), reason).Inc()
}

func label(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func uintToFloat(value *uint256.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value.ToBig()).Float64()
	if math.IsInf(f, 0) {
		return math.MaxFloat64
	}
	return f
}
