package repo

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinicase-bot/internal/domain"
)

const (
	asyncBuffer = 256
	maxBatch    = 32
)

// batchRecorder умеет сохранять несколько событий за один запрос.
type batchRecorder interface {
	RecordBusinessMetrics(ctx context.Context, events []domain.BusinessMetric) error
}

// Async пишет события в фоне, не задерживая обработку апдейтов.
// При переполнении буфера событие отбрасывается.
type Async struct {
	next  domain.BusinessMetricRepo
	log   zerolog.Logger
	queue chan domain.BusinessMetric
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ domain.BusinessMetricRepo = (*Async)(nil)

// NewAsync запускает фоновую запись в next.
func NewAsync(next domain.BusinessMetricRepo, log zerolog.Logger) *Async {
	a := &Async{
		next:  next,
		log:   log,
		queue: make(chan domain.BusinessMetric, asyncBuffer),
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer a.wg.Done()
	for first := range a.queue {
		pending := []domain.BusinessMetric{first}
	collect:
		for len(pending) < maxBatch {
			select {
			case m, ok := <-a.queue:
				if !ok {
					break collect
				}
				pending = append(pending, m)
			default:
				break collect
			}
		}
		a.flush(pending)
	}
}

func (a *Async) flush(pending []domain.BusinessMetric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if br, ok := a.next.(batchRecorder); ok {
		if err := br.RecordBusinessMetrics(ctx, pending); err != nil {
			a.log.Warn().Err(err).Int("events", len(pending)).Msg("не удалось сохранить бизнес-метрики")
		}
		return
	}
	for _, m := range pending {
		if err := a.next.RecordBusinessMetric(ctx, m); err != nil {
			a.log.Warn().Err(err).Str("event", m.Event).Msg("не удалось сохранить бизнес-метрику")
		}
	}
}

// RecordBusinessMetric ставит событие в очередь.
func (a *Async) RecordBusinessMetric(_ context.Context, metric domain.BusinessMetric) error {
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.queue <- metric:
	default:
		a.log.Warn().Str("event", metric.Event).Msg("очередь бизнес-метрик переполнена")
	}
	return nil
}

// Close дожидается записи накопленных событий.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
