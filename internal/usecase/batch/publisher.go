package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/infra/metrics"
	"clinicase-bot/internal/usecase/markup"
)

// ErrEmptyBatch: в лоте нет элементов.
var ErrEmptyBatch = errors.New("лот пуст")

// PlaceholderText несёт кнопки, если лот начинается с элемента без контента.
const PlaceholderText = "💭 Contenido disponible:"

// Result: итог публикации лота.
type Result struct {
	// Sent: сообщения, появившиеся в канале, включая заглушку.
	Sent int
	// Failed: элементы и привязки кнопок, которые не удалось выполнить.
	Failed int
}

// Publisher публикует лот в канал строго в порядке добавления.
type Publisher struct {
	messenger domain.Messenger
	recorder  domain.BusinessMetricRepo
	channelID int64
	delay     time.Duration
	log       zerolog.Logger
}

// NewPublisher создаёт публикатор. delay — пауза между отправками.
func NewPublisher(messenger domain.Messenger, recorder domain.BusinessMetricRepo, channelID int64, delay time.Duration, log zerolog.Logger) *Publisher {
	if recorder == nil {
		recorder = domain.NopBusinessMetrics{}
	}
	return &Publisher{
		messenger: messenger,
		recorder:  recorder,
		channelID: channelID,
		delay:     delay,
		log:       log,
	}
}

// sentMessage: последнее отправленное сообщение и его текущие кнопки.
type sentMessage struct {
	id   int
	rows [][]domain.Button
}

type run struct {
	p       *Publisher
	log     zerolog.Logger
	result  Result
	last    *sentMessage
	pending []domain.Button
	sends   int
}

// Publish отправляет элементы лота. Ошибки отдельных элементов не прерывают публикацию.
func (p *Publisher) Publish(ctx context.Context, operatorID int64, items []domain.PendingItem) (Result, error) {
	if len(items) == 0 {
		return Result{}, ErrEmptyBatch
	}
	runID := uuid.NewString()
	r := &run{p: p, log: p.log.With().Str("run", runID).Int("items", len(items)).Logger()}
	r.log.Info().Msg("публикация лота начата")

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if b, ok := item.(domain.ButtonOnlyItem); ok {
			r.pending = append(r.pending, b.Buttons...)
			if r.last == nil {
				r.placeholder(ctx)
			}
			continue
		}
		r.flushButtons(ctx)
		r.send(ctx, item)
	}
	// хвостовые кнопки уходят к последнему отправленному сообщению
	r.flushButtons(context.WithoutCancel(ctx))

	r.log.Info().Int("sent", r.result.Sent).Int("failed", r.result.Failed).Msg("публикация лота завершена")

	channelID := p.channelID
	owner := operatorID
	if err := p.recorder.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:     domain.BusinessMetricEventBatchPublished,
		UserID:    &owner,
		ChannelID: &channelID,
		Metadata:  map[string]any{"run": runID, "items": len(items), "sent": r.result.Sent, "failed": r.result.Failed},
	}); err != nil {
		r.log.Warn().Err(err).Msg("не удалось записать бизнес-метрику")
	}
	return r.result, ctx.Err()
}

func (r *run) wait(ctx context.Context) error {
	if r.sends == 0 || r.p.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(r.p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *run) placeholder(ctx context.Context) {
	if err := r.wait(ctx); err != nil {
		return
	}
	r.sends++
	id, err := r.p.messenger.SendText(ctx, domain.TextMessage{ChatID: r.p.channelID, Text: PlaceholderText})
	if err != nil {
		r.fail(err, "не удалось отправить заглушку для кнопок")
		return
	}
	r.result.Sent++
	r.last = &sentMessage{id: id}
}

// flushButtons пристёгивает накопленные кнопки к последнему сообщению, сохраняя его раскладку.
func (r *run) flushButtons(ctx context.Context) {
	if len(r.pending) == 0 || r.last == nil {
		return
	}
	rows := markup.Append(r.last.rows, r.pending)
	count := len(r.pending)
	r.pending = nil
	if err := r.p.messenger.EditButtons(ctx, r.p.channelID, r.last.id, rows); err != nil {
		r.fail(err, "не удалось привязать кнопки к предыдущему сообщению")
		return
	}
	r.last.rows = rows
	r.log.Info().Int("buttons", count).Int("message", r.last.id).Msg("кнопки привязаны к сообщению")
}

func (r *run) send(ctx context.Context, item domain.PendingItem) {
	if err := r.wait(ctx); err != nil {
		return
	}
	r.sends++

	var (
		id   int
		rows [][]domain.Button
		err  error
	)
	switch it := item.(type) {
	case domain.PollItem:
		id, err = r.p.messenger.SendPoll(ctx, r.p.channelID, it.Poll)
	case domain.TextItem:
		if it.Body == "" {
			return
		}
		rows = markup.Rows(it.Buttons)
		id, err = r.p.messenger.SendText(ctx, domain.TextMessage{ChatID: r.p.channelID, Text: it.Body, Buttons: rows})
	case domain.MediaItem:
		rows = markup.Rows(it.Buttons)
		caption := it.Caption
		id, err = r.p.messenger.CopyMessage(ctx, domain.CopyRequest{To: r.p.channelID, From: it.Source, Caption: &caption, Buttons: rows})
	case domain.ForwardItem:
		id, err = r.p.messenger.CopyMessage(ctx, domain.CopyRequest{To: r.p.channelID, From: it.Source})
	default:
		err = fmt.Errorf("неизвестный элемент лота %T", item)
	}
	if err != nil {
		r.fail(err, "не удалось отправить элемент лота")
		return
	}
	metrics.BatchItems.WithLabelValues("sent").Inc()
	r.result.Sent++
	r.last = &sentMessage{id: id, rows: rows}
}

func (r *run) fail(err error, msg string) {
	metrics.BatchItems.WithLabelValues("failed").Inc()
	r.result.Failed++
	r.log.Error().Err(err).Msg(msg)
}
