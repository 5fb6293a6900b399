package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_auth_attempts_total",
			Help: "Total number of authentication attempts.",
		},
		[]string{"service", "flow", "result"},
	)

	SessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of live chat sessions.",
		},
		[]string{"service"},
	)

	SessionEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_session_evictions_total",
			Help: "Total number of stale sessions evicted by a newer login.",
		},
		[]string{"service"},
	)

	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of send attempts.",
		},
		[]string{"service", "result"},
	)

	MessagesDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_delivered_total",
			Help: "Total number of messages pushed to a recipient.",
		},
		[]string{"service", "mode"},
	)

	TranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_translations_total",
			Help: "Total number of translation gateway calls.",
		},
		[]string{"service", "result"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	AuthAttemptsTotal = AuthAttemptsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	SessionsActive = SessionsActive.MustCurryWith(prometheus.Labels{"service": serviceName})
	SessionEvictionsTotal = SessionEvictionsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	MessagesSentTotal = MessagesSentTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	MessagesDeliveredTotal = MessagesDeliveredTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	TranslationsTotal = TranslationsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		AuthAttemptsTotal,
		SessionsActive,
		SessionEvictionsTotal,
		MessagesSentTotal,
		MessagesDeliveredTotal,
		TranslationsTotal,
	)
}
