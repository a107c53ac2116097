package gateway

import (
	"time"

	"github.com/nao1215/learnhub/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// ルーティング結果の分類。
const (
	outcomeForwarded   = "forwarded"
	outcomeNoRoute     = "no_route"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "upstream_unavailable"
)

// gatewayMetrics はルーティング結果と転送時間を記録する。
type gatewayMetrics struct {
	routed  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// newGatewayMetrics はGateway固有のメトリクスを生成し、regに登録する。
func newGatewayMetrics(reg *metrics.Registry) *gatewayMetrics {
	m := &gatewayMetrics{
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnhub",
			Subsystem: "gateway",
			Name:      "routed_requests_total",
			Help:      "Requests handled by the gateway router, by route prefix and outcome.",
		}, []string{"route", "outcome", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "learnhub",
			Subsystem: "gateway",
			Name:      "upstream_duration_seconds",
			Help:      "Time spent forwarding requests to upstream services.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"service"}),
	}
	reg.MustRegister(m.routed, m.latency)
	return m
}

// observe はルーティング結果を記録する。codeはエラー種別で、成功時は空文字列。
func (m *gatewayMetrics) observe(route, outcome, code string) {
	m.routed.WithLabelValues(route, outcome, code).Inc()
}

// observeUpstream は転送にかかった時間を記録する。
func (m *gatewayMetrics) observeUpstream(service string, start time.Time) {
	m.latency.WithLabelValues(service).Observe(time.Since(start).Seconds())
}
