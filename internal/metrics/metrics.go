// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordRoleOperation(operation, outcome string)
	RecordArtworkOperation(operation, outcome string)
	RecordUpstreamLatency(operation string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordCleanup(sessions, files int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	roleOps         *prometheus.CounterVec
	artworkOps      *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
	filesCleaned    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perkportal_logins_total",
			Help: "OAuthログインの結果別件数",
		}, []string{"outcome"}),
		roleOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perkportal_role_operations_total",
			Help: "カスタムロール操作の種類・結果別件数",
		}, []string{"operation", "outcome"}),
		artworkOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perkportal_artwork_operations_total",
			Help: "作品操作の種類・結果別件数",
		}, []string{"operation", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perkportal_upstream_latency_seconds",
			Help:    "外部API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perkportal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perkportal_sessions_cleaned_total",
			Help: "クリーンアップで削除した期限切れセッションの合計数",
		}),
		filesCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perkportal_orphan_files_cleaned_total",
			Help: "クリーンアップで削除した孤立ファイルの合計数",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.roleOps,
		c.artworkOps,
		c.upstreamLatency,
		c.httpStatus,
		c.sessionsCleaned,
		c.filesCleaned,
	)

	return c
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordRoleOperation はロール操作の結果を記録する。
func (c *Collector) RecordRoleOperation(operation, outcome string) {
	c.roleOps.WithLabelValues(operation, outcome).Inc()
}

// RecordArtworkOperation は作品操作の結果を記録する。
func (c *Collector) RecordArtworkOperation(operation, outcome string) {
	c.artworkOps.WithLabelValues(operation, outcome).Inc()
}

// RecordUpstreamLatency は外部API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(operation string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanup はクリーンアップで削除した件数を記録する。
func (c *Collector) RecordCleanup(sessions, files int) {
	c.sessionsCleaned.Add(float64(sessions))
	c.filesCleaned.Add(float64(files))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクス無効時やテストで使う。
type Nop struct{}

func (Nop) RecordLogin(string)                          {}
func (Nop) RecordRoleOperation(string, string)          {}
func (Nop) RecordArtworkOperation(string, string)       {}
func (Nop) RecordUpstreamLatency(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                        {}
func (Nop) RecordCleanup(int, int)                      {}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
