package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/infra/metrics"
)

// LoadingText показывается, пока контент копируется.
const LoadingText = "⏳ Obteniendo contenido..."

// afterCopyTimeout: сколько даём уборке индикатора и сопровождению, когда
// контекст /start уже истёк, а копии ушли.
const afterCopyTimeout = 5 * time.Second

// ChannelResolver переводит идентичность канала в числовой id.
type ChannelResolver interface {
	Resolve(ctx context.Context, channel domain.ChannelIdentity) (int64, error)
}

// Config задаёт параметры доставки.
type Config struct {
	// Retention: через сколько сообщения удаляются; 0 выключает отложенное удаление.
	Retention time.Duration
	// CopyDelay: пауза между копиями внутри одной доставки.
	CopyDelay time.Duration
}

type pendingDeletion struct {
	messageID int
	sentAt    time.Time
}

// Scheduler доставляет защищённые копии и следит за их удалением.
type Scheduler struct {
	messenger  domain.Messenger
	resolver   ChannelResolver
	companions *Companions
	cfg        Config
	log        zerolog.Logger
	now        func() time.Time

	mu      sync.Mutex
	records map[int64]domain.DeliveryRecord
	pending map[int64][]pendingDeletion
}

// NewScheduler создаёт планировщик доставки.
func NewScheduler(messenger domain.Messenger, resolver ChannelResolver, companions *Companions, cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		messenger:  messenger,
		resolver:   resolver,
		companions: companions,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		records:    make(map[int64]domain.DeliveryRecord),
		pending:    make(map[int64][]pendingDeletion),
	}
}

// Deliver копирует сообщения ссылки пользователю. triggerMessageID (если > 0)
// попадает в запись, чтобы команда /start удалилась вместе с контентом.
func (s *Scheduler) Deliver(ctx context.Context, userID int64, ref domain.ContentReference, triggerMessageID int) (domain.DeliveryRecord, error) {
	sourceID, err := s.resolver.Resolve(ctx, ref.Source)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	log := s.log.With().Int64("user", userID).Int64("source", sourceID).Ints("messages", ref.MessageIDs).Logger()

	s.dropPrevious(ctx, userID)

	loadingID, err := s.messenger.SendText(ctx, domain.TextMessage{ChatID: userID, Text: LoadingText, Silent: true})
	if err != nil {
		log.Warn().Err(err).Msg("не удалось отправить индикатор загрузки")
	}

	sent := make([]int, 0, len(ref.MessageIDs)+2)
	for i, messageID := range ref.MessageIDs {
		if i > 0 && s.cfg.CopyDelay > 0 {
			if err := sleep(ctx, s.cfg.CopyDelay); err != nil {
				break
			}
		}
		copied, err := s.messenger.CopyMessage(ctx, domain.CopyRequest{
			To:      userID,
			From:    domain.MessageRef{ChatID: sourceID, MessageID: messageID},
			Protect: true,
		})
		if err != nil {
			log.Error().Err(err).Int("message", messageID).Msg("не удалось скопировать сообщение")
			continue
		}
		sent = append(sent, copied)
	}

	if loadingID > 0 {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCopyTimeout)
		if err := s.messenger.DeleteMessage(cleanupCtx, userID, loadingID); err != nil {
			log.Debug().Err(err).Msg("индикатор загрузки уже удалён")
		}
		cancel()
	}

	if len(sent) == 0 {
		return domain.DeliveryRecord{}, fmt.Errorf("%w: %d из %d", domain.ErrNothingDelivered, 0, len(ref.MessageIDs))
	}

	companionCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCopyTimeout)
	companionID, err := s.messenger.SendText(companionCtx, domain.TextMessage{ChatID: userID, Text: s.companions.Pick(ref.Style), Silent: true})
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("не удалось отправить сопроводительное сообщение")
	} else {
		sent = append(sent, companionID)
	}
	if triggerMessageID > 0 {
		sent = append(sent, triggerMessageID)
	}

	record := domain.DeliveryRecord{UserID: userID, MessageIDs: sent, SentAt: s.now()}
	s.mu.Lock()
	s.records[userID] = record
	if s.cfg.Retention > 0 {
		for _, id := range sent {
			s.pending[userID] = append(s.pending[userID], pendingDeletion{messageID: id, sentAt: record.SentAt})
		}
	}
	s.mu.Unlock()

	log.Info().Int("sent", len(sent)).Str("style", ref.Style.String()).Msg("контент доставлен")
	return record, nil
}

// dropPrevious удаляет сообщения прошлой доставки пользователю.
func (s *Scheduler) dropPrevious(ctx context.Context, userID int64) {
	s.mu.Lock()
	prev, ok := s.records[userID]
	delete(s.records, userID)
	delete(s.pending, userID)
	s.mu.Unlock()
	if !ok {
		return
	}
	for _, id := range prev.MessageIDs {
		if err := s.messenger.DeleteMessage(ctx, userID, id); err != nil {
			s.log.Debug().Err(err).Int64("user", userID).Int("message", id).Msg("сообщение прошлой доставки уже удалено")
		}
	}
}

// Sweep удаляет все сообщения старше срока хранения. Возвращает число удалённых.
func (s *Scheduler) Sweep(ctx context.Context) int {
	if s.cfg.Retention <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.Retention)
	expired := make(map[int64][]int)

	s.mu.Lock()
	for userID, entries := range s.pending {
		keep := entries[:0]
		for _, e := range entries {
			if e.sentAt.Before(cutoff) || e.sentAt.Equal(cutoff) {
				expired[userID] = append(expired[userID], e.messageID)
			} else {
				keep = append(keep, e)
			}
		}
		if len(keep) == 0 {
			delete(s.pending, userID)
			if rec, ok := s.records[userID]; ok && !rec.SentAt.After(cutoff) {
				delete(s.records, userID)
			}
		} else {
			s.pending[userID] = keep
		}
	}
	s.mu.Unlock()

	deleted := 0
	for userID, ids := range expired {
		for _, id := range ids {
			if err := s.messenger.DeleteMessage(ctx, userID, id); err != nil {
				s.log.Debug().Err(err).Int64("user", userID).Int("message", id).Msg("сообщение уже удалено")
				continue
			}
			deleted++
		}
	}
	if deleted > 0 {
		metrics.DeliverySweptMessages.Add(float64(deleted))
		s.log.Info().Int("deleted", deleted).Msg("очистка: удалены старые сообщения")
	}
	return deleted
}

// Record возвращает активную запись пользователя.
func (s *Scheduler) Record(userID int64) (domain.DeliveryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	return rec, ok
}

// PendingCount возвращает число сообщений, ожидающих удаления.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entries := range s.pending {
		n += len(entries)
	}
	return n
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
