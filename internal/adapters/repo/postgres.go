package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/infra/metrics"
)

const queryTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS business_metrics (
	id          BIGSERIAL PRIMARY KEY,
	event       TEXT NOT NULL,
	user_id     BIGINT,
	channel_id  BIGINT,
	metadata    JSONB,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS business_metrics_event_idx ON business_metrics (event, occurred_at);
`

const insertMetric = `
INSERT INTO business_metrics (event, user_id, channel_id, metadata, occurred_at)
VALUES (@event, @user_id, @channel_id, @metadata, @occurred_at)`

// Postgres: журнал бизнес-событий.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.BusinessMetricRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// withTimeout ограничивает запрос, если у вызывающего нет своего дедлайна.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, queryTimeout)
}

// EnsureSchema создаёт таблицу журнала, если её нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, schema)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "business_metrics", start, err)
	return err
}

// RecordBusinessMetric сохраняет одно событие.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	return p.RecordBusinessMetrics(ctx, []domain.BusinessMetric{metric})
}

// RecordBusinessMetrics сохраняет события одним батчем. События без имени пропускаются.
func (p *Postgres) RecordBusinessMetrics(ctx context.Context, events []domain.BusinessMetric) error {
	batch := &pgx.Batch{}
	for _, m := range events {
		if m.Event == "" {
			continue
		}
		batch.Queue(insertMetric, metricArgs(m))
	}
	if batch.Len() == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()
	start := time.Now()
	err := p.pool.SendBatch(ctx, batch).Close()
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	if err != nil {
		return fmt.Errorf("запись %d бизнес-метрик: %w", batch.Len(), err)
	}
	return nil
}

func metricArgs(m domain.BusinessMetric) pgx.NamedArgs {
	occurred := m.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	// nil-указатели pgx пишет как NULL, map — как jsonb
	return pgx.NamedArgs{
		"event":       m.Event,
		"user_id":     m.UserID,
		"channel_id":  m.ChannelID,
		"metadata":    m.Metadata,
		"occurred_at": occurred,
	}
}
