package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/infra/metrics"
	"clinicase-bot/internal/usecase/ads"
	"clinicase-bot/internal/usecase/batch"
	"clinicase-bot/internal/usecase/deeplink"
	"clinicase-bot/internal/usecase/delivery"
	"clinicase-bot/internal/usecase/markup"
	"clinicase-bot/internal/usecase/session"
)

const replyTimeout = 5 * time.Second

// Deps: сценарии и порты, которыми пользуется обработчик.
type Deps struct {
	Messenger domain.Messenger
	Codec     *deeplink.Codec
	Compiler  *markup.Compiler
	Delivery  *delivery.Scheduler
	Rotator   *ads.Rotator
	Publisher *batch.Publisher
	Sessions  *session.Store
	Recorder  domain.BusinessMetricRepo
	Dedup     domain.Cache
}

// Config задаёт параметры обработчика.
type Config struct {
	Admins          []int64
	DeeplinkTimeout time.Duration
	AdsMinInterval  time.Duration
	DedupTTL        time.Duration
}

// Handler обслуживает апдейты бота.
type Handler struct {
	messenger domain.Messenger
	codec     *deeplink.Codec
	compiler  *markup.Compiler
	delivery  *delivery.Scheduler
	rotator   *ads.Rotator
	publisher *batch.Publisher
	sessions  *session.Store
	recorder  domain.BusinessMetricRepo
	dedup     domain.Cache
	cfg       Config
	log       zerolog.Logger

	mu        sync.Mutex
	lastPosts map[int64]channelPost
}

// NewHandler создаёт обработчик.
func NewHandler(deps Deps, cfg Config, log zerolog.Logger) *Handler {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = domain.NopBusinessMetrics{}
	}
	return &Handler{
		messenger: deps.Messenger,
		codec:     deps.Codec,
		compiler:  deps.Compiler,
		delivery:  deps.Delivery,
		rotator:   deps.Rotator,
		publisher: deps.Publisher,
		sessions:  deps.Sessions,
		recorder:  recorder,
		dedup:     deps.Dedup,
		cfg:       cfg,
		log:       log,
		lastPosts: make(map[int64]channelPost),
	}
}

// HandleUpdate обрабатывает входящий апдейт. Повторно доставленный апдейт пропускается.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if h.dedup == nil || upd.UpdateID == 0 {
		h.route(ctx, upd)
		return
	}
	key := "update:" + strconv.Itoa(upd.UpdateID)
	err := h.dedup.Once(ctx, key, h.cfg.DedupTTL, func() error {
		h.route(ctx, upd)
		return nil
	})
	if err != nil {
		// без кэша лучше обработать апдейт, чем потерять его
		h.log.Warn().Err(err).Int("update", upd.UpdateID).Msg("дедупликация недоступна")
		h.route(ctx, upd)
	}
}

func (h *Handler) route(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	case upd.ChannelPost != nil:
		h.handleChannelPost(ctx, upd.ChannelPost)
	}
}

func (h *Handler) isAdmin(userID int64) bool {
	return slices.Contains(h.cfg.Admins, userID)
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	if msg.IsCommand() {
		args := strings.TrimSpace(msg.CommandArguments())
		switch msg.Command() {
		case "start":
			h.handleStart(ctx, msg, userID, args)
			return
		case "myid":
			h.reply(ctx, msg.Chat.ID, fmt.Sprintf(textMyID, userID))
			return
		}
		if !h.isAdmin(userID) {
			return
		}
		h.handleOperatorCommand(ctx, msg, userID, msg.Command(), args)
		return
	}

	if h.isAdmin(userID) && msg.Chat.IsPrivate() {
		h.handleOperatorMessage(ctx, msg, userID)
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message, userID int64, token string) {
	chatID := msg.Chat.ID
	if h.isAdmin(userID) {
		h.sessions.Reset(userID)
	}
	if token == "" {
		h.reply(ctx, chatID, textWelcome)
		return
	}

	log := h.log.With().Int64("user", userID).Str("token", token).Logger()
	ctx, cancel := context.WithTimeout(ctx, h.cfg.DeeplinkTimeout)
	defer cancel()

	ref, err := h.codec.Decode(token)
	if err != nil {
		log.Info().Err(err).Msg("некорректный диплинк")
		metrics.IncDeeplink("invalid")
		h.recordDeeplink(ctx, domain.BusinessMetricEventDeeplinkFailed, userID, nil, "invalid")
		h.reply(ctx, chatID, textInvalidLink)
		return
	}

	record, err := h.delivery.Deliver(ctx, chatID, ref, msg.MessageID)
	if err == nil {
		metrics.IncDeeplink("delivered")
		h.recordDeeplink(ctx, domain.BusinessMetricEventDeeplinkDelivered, userID, &ref, strconv.Itoa(len(record.MessageIDs)))
		return
	}

	var result, text string
	switch {
	case ctx.Err() != nil:
		result, text = "timeout", textTimeout
	case errors.Is(err, domain.ErrChannelUnresolvable):
		result, text = "unresolvable", textChannelAccess
	default:
		result, text = "failed", textNoContent
	}
	log.Warn().Err(err).Str("result", result).Msg("не удалось доставить контент по диплинку")
	metrics.IncDeeplink(result)
	h.recordDeeplink(ctx, domain.BusinessMetricEventDeeplinkFailed, userID, &ref, result)
	h.reply(ctx, chatID, text)
}

func (h *Handler) recordDeeplink(ctx context.Context, event string, userID int64, ref *domain.ContentReference, result string) {
	metric := domain.BusinessMetric{
		Event:    event,
		UserID:   &userID,
		Metadata: map[string]any{"result": result},
	}
	if ref != nil {
		metric.Metadata["source"] = ref.Source.String()
		metric.Metadata["messages"] = ref.MessageIDs
		metric.Metadata["style"] = ref.Style.String()
		if ref.Source.Resolved() {
			channelID := ref.Source.ID
			metric.ChannelID = &channelID
		}
	}
	if err := h.recorder.RecordBusinessMetric(context.WithoutCancel(ctx), metric); err != nil {
		h.log.Warn().Err(err).Str("event", event).Msg("не удалось записать бизнес-метрику")
	}
}

// reply отправляет ответ даже если контекст обработки уже истёк.
func (h *Handler) reply(ctx context.Context, chatID int64, text string) int {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()
	id, err := h.messenger.SendText(ctx, domain.TextMessage{ChatID: chatID, Text: text})
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
		return 0
	}
	return id
}
