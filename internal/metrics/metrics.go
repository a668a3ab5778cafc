// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// HTTPミドルウェアと会員サービスの両方から記録される。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	uploadsStored   prometheus.Counter
	uploadsRejected *prometheus.CounterVec
	membersCreated  prometheus.Counter
	membersUpdated  prometheus.Counter
	membersDeleted  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memberbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "memberbook_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		uploadsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memberbook_uploads_stored_total",
			Help: "保存されたプロフィール画像の合計数",
		}),
		uploadsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memberbook_uploads_rejected_total",
			Help: "拒否されたアップロードの合計数（理由別）",
		}, []string{"reason"}),
		membersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memberbook_members_created_total",
			Help: "作成された会員の合計数",
		}),
		membersUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memberbook_members_updated_total",
			Help: "更新された会員の合計数",
		}),
		membersDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memberbook_members_deleted_total",
			Help: "削除された会員の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.uploadsStored,
		c.uploadsRejected,
		c.membersCreated,
		c.membersUpdated,
		c.membersDeleted,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordUploadStored は画像保存の成功を記録する。
func (c *Collector) RecordUploadStored() {
	c.uploadsStored.Inc()
}

// RecordUploadRejected はアップロード拒否を理由別に記録する。
// reasonにはエラーコード（UNSUPPORTED_MEDIA_TYPE等）を渡す。
func (c *Collector) RecordUploadRejected(reason string) {
	c.uploadsRejected.WithLabelValues(reason).Inc()
}

// RecordMemberCreated は会員作成を記録する。
func (c *Collector) RecordMemberCreated() {
	c.membersCreated.Inc()
}

// RecordMemberUpdated は会員更新を記録する。
func (c *Collector) RecordMemberUpdated() {
	c.membersUpdated.Inc()
}

// RecordMemberDeleted は会員削除を記録する。
func (c *Collector) RecordMemberDeleted() {
	c.membersDeleted.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
