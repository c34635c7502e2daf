package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesDeleted prometheus.Counter

	// 邮件指标
	EmailsReceived prometheus.Counter
	EmailsRead     prometheus.Counter
	EmailsDeleted  prometheus.Counter

	// 附件指标
	AttachmentsStored  prometheus.Counter
	AttachmentsChunked prometheus.Counter
	AttachmentSize     prometheus.Histogram

	// 清理任务指标
	SweepRuns            prometheus.Counter
	SweepDeletions       *prometheus.CounterVec
	SweepStepErrors      *prometheus.CounterVec
	SweepDurationSeconds prometheus.Histogram

	// SMTP 指标
	SMTPConnections     prometheus.Counter
	SMTPRejectedRcpts   prometheus.Counter
	SMTPAttachmentDrops prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MailboxesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_mailboxes_created_total",
				Help: "Total number of mailboxes created",
			},
		),

		MailboxesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_mailboxes_deleted_total",
				Help: "Total number of mailboxes deleted",
			},
		),

		EmailsReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_emails_received_total",
				Help: "Total number of emails received",
			},
		),

		EmailsRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_emails_read_total",
				Help: "Total number of emails read",
			},
		),

		EmailsDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_emails_deleted_total",
				Help: "Total number of emails deleted",
			},
		),

		AttachmentsStored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_attachments_stored_total",
				Help: "Total number of attachments stored",
			},
		),

		AttachmentsChunked: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_attachments_chunked_total",
				Help: "Total number of attachments stored in chunked form",
			},
		),

		AttachmentSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempbox_attachment_size_bytes",
				Help:    "Attachment size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),

		SweepRuns: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_sweep_runs_total",
				Help: "Total number of cleanup sweeps executed",
			},
		),

		SweepDeletions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempbox_sweep_deletions_total",
				Help: "Total number of rows deleted by cleanup sweeps",
			},
			[]string{"step"},
		),

		SweepStepErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempbox_sweep_step_errors_total",
				Help: "Total number of cleanup sweep step failures",
			},
			[]string{"step"},
		),

		SweepDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempbox_sweep_duration_seconds",
				Help:    "Cleanup sweep duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		SMTPConnections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_smtp_connections_total",
				Help: "Total number of SMTP connections accepted",
			},
		),

		SMTPRejectedRcpts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_smtp_rejected_rcpts_total",
				Help: "Total number of SMTP recipients rejected",
			},
		),

		SMTPAttachmentDrops: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_smtp_attachment_drops_total",
				Help: "Total number of attachments dropped during ingestion",
			},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempbox_rate_limit_blocks_total",
				Help: "Total number of requests blocked by rate limiting",
			},
			[]string{"limit_type"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempbox_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempbox_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMailboxCreated 记录邮箱创建
func (m *Metrics) RecordMailboxCreated() {
	m.MailboxesCreated.Inc()
}

// RecordMailboxDeleted 记录邮箱删除
func (m *Metrics) RecordMailboxDeleted() {
	m.MailboxesDeleted.Inc()
}

// RecordEmailReceived 记录邮件接收
func (m *Metrics) RecordEmailReceived() {
	m.EmailsReceived.Inc()
}

// RecordEmailRead 记录邮件首次详情读取
func (m *Metrics) RecordEmailRead() {
	m.EmailsRead.Inc()
}

// RecordEmailDeleted 记录邮件删除
func (m *Metrics) RecordEmailDeleted() {
	m.EmailsDeleted.Inc()
}

// RecordAttachmentStored 记录附件入库
func (m *Metrics) RecordAttachmentStored(size int64, chunked bool) {
	m.AttachmentsStored.Inc()
	m.AttachmentSize.Observe(float64(size))
	if chunked {
		m.AttachmentsChunked.Inc()
	}
}

// RecordSweep 记录一次清理任务的执行结果
func (m *Metrics) RecordSweep(duration time.Duration) {
	m.SweepRuns.Inc()
	m.SweepDurationSeconds.Observe(duration.Seconds())
}

// RecordSweepStep 记录清理任务单个步骤的删除数量
func (m *Metrics) RecordSweepStep(step string, deleted int) {
	m.SweepDeletions.WithLabelValues(step).Add(float64(deleted))
}

// RecordSweepStepError 记录清理任务单个步骤的失败
func (m *Metrics) RecordSweepStepError(step string) {
	m.SweepStepErrors.WithLabelValues(step).Inc()
}

// RecordRateLimitBlock 记录限流拦截
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(component string) {
	m.ErrorsTotal.WithLabelValues(component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
