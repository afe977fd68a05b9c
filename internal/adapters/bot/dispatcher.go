package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// chatQueueLimit ограничивает хвост одного чата; сверх него апдейты отбрасываются.
const chatQueueLimit = 64

// Dispatcher обрабатывает апдейты одного чата строго по очереди,
// разные чаты обрабатываются параллельно. Dispatch никогда не блокируется.
type Dispatcher struct {
	handle func(context.Context, tgbotapi.Update)
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	mu     sync.Mutex
	queues map[int64][]tgbotapi.Update
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер поверх функции обработки.
func NewDispatcher(handle func(context.Context, tgbotapi.Update), log zerolog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handle: handle,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		queues: make(map[int64][]tgbotapi.Update),
	}
}

// Dispatch ставит апдейт в очередь его чата. Возвращает false после Close
// и когда очередь чата переполнена.
func (d *Dispatcher) Dispatch(upd tgbotapi.Update) bool {
	key := chatKey(upd)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	queue, running := d.queues[key]
	if len(queue) >= chatQueueLimit {
		d.log.Warn().Int64("chat_id", key).Int("update", upd.UpdateID).Msg("очередь чата переполнена, апдейт отброшен")
		return false
	}
	d.queues[key] = append(queue, upd)
	if !running {
		d.wg.Add(1)
		go d.drain(key)
	}
	return true
}

// drain разбирает очередь чата и снимает её, когда та опустела.
func (d *Dispatcher) drain(key int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 || d.ctx.Err() != nil {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		upd := queue[0]
		d.queues[key] = queue[1:]
		d.mu.Unlock()

		d.process(upd)
	}
}

func (d *Dispatcher) process(upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Int("update", upd.UpdateID).Msg("паника при обработке апдейта")
		}
	}()
	d.handle(d.ctx, upd)
}

// Close прекращает приём апдейтов и ждёт завершения текущих обработчиков.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

func chatKey(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID
	case upd.ChannelPost != nil && upd.ChannelPost.Chat != nil:
		return upd.ChannelPost.Chat.ID
	default:
		return 0
	}
}
