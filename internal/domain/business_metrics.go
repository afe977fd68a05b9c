package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *int64
	ChannelID  *int64
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventDeeplinkDelivered фиксирует доставку контента по диплинку.
	BusinessMetricEventDeeplinkDelivered = "deeplink_delivered"
	// BusinessMetricEventDeeplinkFailed фиксирует неудачную доставку по диплинку.
	BusinessMetricEventDeeplinkFailed = "deeplink_failed"
	// BusinessMetricEventAdPublished фиксирует публикацию рекламы в канале.
	BusinessMetricEventAdPublished = "ad_published"
	// BusinessMetricEventBatchPublished фиксирует публикацию лота.
	BusinessMetricEventBatchPublished = "batch_published"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}

// NopBusinessMetrics отбрасывает события, когда журнал не настроен.
type NopBusinessMetrics struct{}

// RecordBusinessMetric ничего не делает.
func (NopBusinessMetrics) RecordBusinessMetric(context.Context, BusinessMetric) error {
	return nil
}
