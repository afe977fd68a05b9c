package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clinicase-bot/internal/adapters/telegram"
	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/usecase/ads"
	"clinicase-bot/internal/usecase/batch"
	"clinicase-bot/internal/usecase/session"
)

const previewLength = 30

func (h *Handler) handleOperatorCommand(ctx context.Context, msg *tgbotapi.Message, userID int64, command, args string) {
	chatID := msg.Chat.ID
	switch command {
	case "admin":
		h.reply(ctx, chatID, textAdminPanel)
	case "lote":
		prev := h.sessions.StartBatch(userID)
		h.log.Info().Int64("operator", userID).Str("prev", prev.String()).Msg("режим лота включён")
		h.reply(ctx, chatID, textBatchMode)
	case "enviar":
		h.publishBatch(ctx, chatID, userID)
	case "cancelar", "cancel":
		h.sessions.Reset(userID)
		h.reply(ctx, chatID, textCancelled)
	case "set_ads":
		prev := h.sessions.StartAd(userID)
		h.log.Info().Int64("operator", userID).Str("prev", prev.String()).Msg("настройка рекламы начата")
		h.reply(ctx, chatID, textAdSetup)
	case "stop_ads":
		if args == "" {
			h.stopAllAds(ctx, chatID)
			return
		}
		id, err := strconv.Atoi(strings.TrimPrefix(args, "#"))
		if err != nil {
			h.reply(ctx, chatID, textAdStopUsage)
			return
		}
		if err := h.rotator.Stop(id); err != nil {
			if errors.Is(err, ads.ErrCampaignNotFound) {
				h.reply(ctx, chatID, fmt.Sprintf(textAdNotFound, id))
				return
			}
			h.log.Error().Err(err).Int("campaign", id).Msg("не удалось остановить кампанию")
			return
		}
		h.reply(ctx, chatID, fmt.Sprintf(textAdStopped, id))
	case "stop_all_ads":
		h.stopAllAds(ctx, chatID)
	case "list_ads":
		h.listAds(ctx, chatID)
	}
}

func (h *Handler) stopAllAds(ctx context.Context, chatID int64) {
	stopped := h.rotator.StopAll(ctx)
	h.log.Info().Int("stopped", stopped).Msg("реклама остановлена оператором")
	h.reply(ctx, chatID, textAdsStopped)
}

func (h *Handler) listAds(ctx context.Context, chatID int64) {
	campaigns := h.rotator.List()
	if len(campaigns) == 0 {
		h.reply(ctx, chatID, textAdsEmpty)
		return
	}
	var b strings.Builder
	b.WriteString(textAdsHeader)
	for _, c := range campaigns {
		fmt.Fprintf(&b, textAdsLine, c.ID, ads.FormatInterval(c.Interval), c.Preview)
	}
	h.reply(ctx, chatID, b.String())
}

func (h *Handler) publishBatch(ctx context.Context, chatID, userID int64) {
	sess := h.sessions.Get(userID)
	if sess.Mode != session.ComposingBatch {
		h.reply(ctx, chatID, textBatchFirst)
		return
	}
	if len(sess.Items) == 0 {
		h.reply(ctx, chatID, textBatchEmpty)
		return
	}
	// сессия очищается до публикации: частичные ошибки не оставляют лот висеть
	items, err := h.sessions.TakeItems(userID)
	if err != nil {
		h.reply(ctx, chatID, textBatchFirst)
		return
	}

	statusID := h.reply(ctx, chatID, fmt.Sprintf(textBatchSending, len(items)))
	res, err := h.publisher.Publish(ctx, userID, items)

	text := fmt.Sprintf(textBatchSent, res.Sent)
	if res.Failed > 0 {
		text += fmt.Sprintf(textBatchFailed, res.Failed)
	}
	if err != nil {
		h.log.Error().Err(err).Int64("operator", userID).Msg("публикация лота прервана")
		text = fmt.Sprintf(textBatchError, err)
	}
	h.updateStatus(ctx, chatID, statusID, text)
}

func (h *Handler) updateStatus(ctx context.Context, chatID int64, statusID int, text string) {
	if statusID > 0 {
		editCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
		err := h.messenger.EditText(editCtx, chatID, statusID, text, nil)
		cancel()
		if err == nil {
			return
		}
		h.log.Warn().Err(err).Msg("не удалось обновить статус лота")
	}
	h.reply(ctx, chatID, text)
}

func (h *Handler) handleOperatorMessage(ctx context.Context, msg *tgbotapi.Message, userID int64) {
	sess := h.sessions.Get(userID)
	switch sess.Mode {
	case session.ComposingAd:
		h.adIntake(ctx, msg, userID, sess)
	case session.ComposingBatch:
		h.batchIntake(ctx, msg, userID)
	default:
		h.reply(ctx, msg.Chat.ID, textNoActiveMode)
	}
}

func (h *Handler) adIntake(ctx context.Context, msg *tgbotapi.Message, userID int64, sess session.Session) {
	chatID := msg.Chat.ID
	in := telegram.Inbound(msg)

	if sess.AdStep == session.AwaitContent {
		if err := h.sessions.SetAdContent(userID, in.Ref, preview(in)); err != nil {
			h.reply(ctx, chatID, textNoActiveMode)
			return
		}
		h.reply(ctx, chatID, textAdInterval)
		return
	}

	interval, err := ads.ParseInterval(in.Text, h.cfg.AdsMinInterval)
	switch {
	case errors.Is(err, ads.ErrIntervalTooShort):
		h.reply(ctx, chatID, fmt.Sprintf(textAdTooShort, ads.FormatInterval(h.cfg.AdsMinInterval)))
		return
	case err != nil:
		h.reply(ctx, chatID, textAdFormat)
		return
	}

	campaign, err := h.rotator.Start(userID, sess.AdContent, sess.AdPreview, interval)
	if err != nil {
		h.log.Error().Err(err).Int64("operator", userID).Msg("не удалось запустить кампанию")
		h.reply(ctx, chatID, fmt.Sprintf(textAdStartFailed, err))
		return
	}
	h.sessions.Reset(userID)
	h.reply(ctx, chatID, fmt.Sprintf(textAdActivated, campaign.ID, ads.FormatInterval(interval)))
}

func (h *Handler) batchIntake(ctx context.Context, msg *tgbotapi.Message, userID int64) {
	chatID := msg.Chat.ID
	item, err := batch.Classify(telegram.Inbound(msg), h.compiler, h.messenger.BotHandle())
	if errors.Is(err, batch.ErrNoButtons) {
		h.reply(ctx, chatID, textButtonInvalid)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось разобрать элемент лота")
		return
	}

	size, err := h.sessions.Append(userID, item)
	if err != nil {
		h.reply(ctx, chatID, textBatchFirst)
		return
	}
	h.reply(ctx, chatID, intakeAck(item)+fmt.Sprintf(textBatchCount, size))
}

func intakeAck(item domain.PendingItem) string {
	switch it := item.(type) {
	case domain.PollItem:
		if !it.Poll.IsQuiz() {
			return textPollCaptured
		}
		if !it.Poll.AnswerKnown {
			return textQuizNoAnswer
		}
		return fmt.Sprintf(textQuizCaptured, rune('A'+it.Poll.CorrectIndex))
	case domain.ButtonOnlyItem:
		return textButtonCaptured
	case domain.MediaItem, domain.TextItem:
		return textMarkupCaptured
	default:
		return textForwardCapture
	}
}

func preview(in domain.InboundMessage) string {
	body := strings.Join(strings.Fields(in.Body()), " ")
	if body == "" {
		switch {
		case in.Poll != nil:
			body = "📊 " + in.Poll.Question
		case in.HasMedia:
			return "🖼 multimedia"
		default:
			return "—"
		}
	}
	runes := []rune(body)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "…"
	}
	return body
}
