package ads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/infra/metrics"
)

// ErrCampaignNotFound: кампании с таким id нет.
var ErrCampaignNotFound = errors.New("кампания не найдена")

const networkTimeout = 10 * time.Second

// Config задаёт параметры ротации.
type Config struct {
	ChannelID   int64
	MinInterval time.Duration
	// SettleDelay: пауза между удалением старого объявления и публикацией нового.
	SettleDelay time.Duration
}

type campaign struct {
	info   domain.AdCampaign
	cancel context.CancelFunc
	done   chan struct{}
}

// Rotator держит независимые таймеры кампаний и общий слот видимого объявления.
type Rotator struct {
	messenger domain.Messenger
	recorder  domain.BusinessMetricRepo
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time

	base   context.Context
	cancel context.CancelFunc

	// slotMu защищает только visible, сетевые вызовы под ним не выполняются.
	slotMu  sync.Mutex
	visible int

	mu        sync.Mutex
	nextID    int
	campaigns map[int]*campaign
}

// NewRotator создаёт планировщик рекламы.
func NewRotator(messenger domain.Messenger, recorder domain.BusinessMetricRepo, cfg Config, log zerolog.Logger) *Rotator {
	if recorder == nil {
		recorder = domain.NopBusinessMetrics{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Rotator{
		messenger: messenger,
		recorder:  recorder,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		base:      base,
		cancel:    cancel,
		campaigns: make(map[int]*campaign),
	}
}

// Start запускает кампанию: первая публикация сразу, затем каждые interval.
func (r *Rotator) Start(ownerID int64, content domain.MessageRef, preview string, interval time.Duration) (domain.AdCampaign, error) {
	if interval <= 0 || interval < r.cfg.MinInterval {
		return domain.AdCampaign{}, fmt.Errorf("%w: минимум %s", ErrIntervalTooShort, FormatInterval(r.cfg.MinInterval))
	}

	r.mu.Lock()
	if r.base.Err() != nil {
		r.mu.Unlock()
		return domain.AdCampaign{}, r.base.Err()
	}
	r.nextID++
	ctx, cancel := context.WithCancel(r.base)
	c := &campaign{
		info: domain.AdCampaign{
			ID:        r.nextID,
			OwnerID:   ownerID,
			Content:   content,
			Preview:   preview,
			Interval:  interval,
			CreatedAt: r.now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.campaigns[c.info.ID] = c
	active := len(r.campaigns)
	r.mu.Unlock()

	metrics.AdsActiveCampaigns.Set(float64(active))
	r.log.Info().Int("campaign", c.info.ID).Int64("owner", ownerID).Dur("interval", interval).Msg("кампания запущена")
	go r.run(ctx, c)
	return c.info, nil
}

func (r *Rotator) run(ctx context.Context, c *campaign) {
	defer close(c.done)
	log := r.log.With().Int("campaign", c.info.ID).Logger()
	for {
		r.publish(ctx, c.info, log)
		timer := time.NewTimer(c.info.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("кампания остановлена")
			return
		case <-timer.C:
		}
	}
}

// publish выполняет один цикл: освободить слот, опубликовать, занять слот.
func (r *Rotator) publish(ctx context.Context, info domain.AdCampaign, log zerolog.Logger) {
	if ctx.Err() != nil {
		return
	}
	// начатые сетевые вызовы доводятся до конца даже после отмены
	netCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), networkTimeout)
	defer cancel()

	r.slotMu.Lock()
	previous := r.visible
	r.visible = 0
	r.slotMu.Unlock()

	if previous != 0 {
		r.deleteAd(netCtx, previous, log)
	}

	if r.cfg.SettleDelay > 0 {
		timer := time.NewTimer(r.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	messageID, err := r.messenger.CopyMessage(netCtx, domain.CopyRequest{To: r.cfg.ChannelID, From: info.Content})
	if err != nil {
		metrics.AdsPublishTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("не удалось опубликовать объявление")
		return
	}
	metrics.AdsPublishTotal.WithLabelValues("success").Inc()

	r.slotMu.Lock()
	displaced := r.visible
	r.visible = messageID
	r.slotMu.Unlock()

	// другая кампания успела опубликоваться между очисткой и публикацией
	if displaced != 0 {
		r.deleteAd(netCtx, displaced, log)
	}
	log.Info().Int("message", messageID).Msg("объявление опубликовано")

	channelID := r.cfg.ChannelID
	owner := info.OwnerID
	if err := r.recorder.RecordBusinessMetric(netCtx, domain.BusinessMetric{
		Event:     domain.BusinessMetricEventAdPublished,
		UserID:    &owner,
		ChannelID: &channelID,
		Metadata:  map[string]any{"campaign": info.ID, "message_id": messageID},
	}); err != nil {
		log.Warn().Err(err).Msg("не удалось записать бизнес-метрику")
	}
}

func (r *Rotator) deleteAd(ctx context.Context, messageID int, log zerolog.Logger) {
	if err := r.messenger.DeleteMessage(ctx, r.cfg.ChannelID, messageID); err != nil {
		log.Debug().Err(err).Int("message", messageID).Msg("объявление уже удалено")
	}
}

// Stop отменяет одну кампанию. Видимое объявление остаётся до следующей ротации или StopAll.
func (r *Rotator) Stop(id int) error {
	r.mu.Lock()
	c, ok := r.campaigns[id]
	if ok {
		delete(r.campaigns, id)
	}
	active := len(r.campaigns)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: #%d", ErrCampaignNotFound, id)
	}
	c.cancel()
	<-c.done
	metrics.AdsActiveCampaigns.Set(float64(active))
	return nil
}

// StopAll отменяет все кампании, дожидается их завершения и очищает слот.
// Возвращает число остановленных кампаний.
func (r *Rotator) StopAll(ctx context.Context) int {
	stopped := r.cancelAll()

	r.slotMu.Lock()
	previous := r.visible
	r.visible = 0
	r.slotMu.Unlock()
	if previous != 0 {
		r.deleteAd(ctx, previous, r.log)
	}
	r.log.Info().Int("stopped", stopped).Msg("вся реклама остановлена")
	return stopped
}

func (r *Rotator) cancelAll() int {
	r.mu.Lock()
	all := make([]*campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		c.cancel()
		all = append(all, c)
	}
	clear(r.campaigns)
	r.mu.Unlock()

	for _, c := range all {
		<-c.done
	}
	metrics.AdsActiveCampaigns.Set(0)
	return len(all)
}

// List возвращает запущенные кампании по возрастанию id.
func (r *Rotator) List() []domain.AdCampaign {
	r.mu.Lock()
	out := make([]domain.AdCampaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		out = append(out, c.info)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// VisibleMessage возвращает id объявления, записанного в слот.
func (r *Rotator) VisibleMessage() int {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()
	return r.visible
}

// Close останавливает все кампании при завершении процесса, не трогая канал.
func (r *Rotator) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.cancelAll()
}
