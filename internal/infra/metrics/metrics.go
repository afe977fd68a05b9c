package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clinicase"

var requestLabels = []string{"component", "operation", "target", "status"}

var (
	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bot_send_errors_total",
		Help:      "Ошибки отправки сообщений ботом",
	})

	// NetworkRequestDuration и NetworkRequestTotal покрывают Bot API, Postgres и Redis.
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "network_request_duration_seconds",
		Help:      "Длительность сетевых запросов",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, requestLabels)

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "network_request_total",
		Help:      "Количество сетевых запросов",
	}, requestLabels)

	DeeplinkRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deeplink_requests_total",
		Help:      "Запросы по диплинкам по результату",
	}, []string{"result"})

	DeliverySweptMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_swept_messages_total",
		Help:      "Сообщения, удалённые по истечении срока хранения",
	})

	AdsPublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ads_publish_total",
		Help:      "Публикации рекламы по результату",
	}, []string{"result"})

	AdsActiveCampaigns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ads_active_campaigns",
		Help:      "Количество запущенных рекламных кампаний",
	})

	BatchItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_items_total",
		Help:      "Элементы лотов по результату публикации",
	}, []string{"result"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
		DeeplinkRequests,
		DeliverySweptMessages,
		AdsPublishTotal,
		AdsActiveCampaigns,
		BatchItems,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	labels := prometheus.Labels{
		"component": orUnknown(component),
		"operation": orUnknown(operation),
		"target":    orUnknown(target),
		"status":    status,
	}
	NetworkRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.With(labels).Inc()
}

// IncDeeplink увеличивает счётчик диплинков с результатом result.
func IncDeeplink(result string) {
	DeeplinkRequests.WithLabelValues(orUnknown(result)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
