package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"clinicase-bot/internal/adapters/telegram"
	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/usecase/markup"
)

// channelPost: последний пост канала и его кнопки.
type channelPost struct {
	id   int
	rows [][]domain.Button
}

// handleChannelPost превращает сигилы в посте канала в кнопки прямо на месте.
func (h *Handler) handleChannelPost(ctx context.Context, post *tgbotapi.Message) {
	if post.Chat == nil {
		return
	}
	chatID := post.Chat.ID
	in := telegram.Inbound(post)
	body := in.Body()
	if !markup.HasMarkup(body) {
		h.rememberPost(chatID, channelPost{id: post.MessageID})
		return
	}

	buttons, cleaned := h.compiler.Compile(body, h.messenger.BotHandle())
	log := h.log.With().Int64("channel", chatID).Int("post", post.MessageID).Logger()
	if len(buttons) == 0 {
		log.Warn().Msg("в посте нет корректных кнопок")
		return
	}

	if cleaned == "" && !in.HasMedia {
		if h.attachToPrevious(ctx, chatID, post.MessageID, buttons, log) {
			return
		}
		cleaned = textMarkupOnlyPost
	}

	rows := markup.Rows(buttons)
	var err error
	if in.HasMedia {
		err = h.messenger.EditCaption(ctx, chatID, post.MessageID, cleaned, rows)
	} else {
		err = h.messenger.EditText(ctx, chatID, post.MessageID, cleaned, rows)
	}
	if err != nil {
		log.Error().Err(err).Msg("не удалось отрисовать кнопки поста")
		return
	}
	h.rememberPost(chatID, channelPost{id: post.MessageID, rows: rows})
	log.Info().Int("buttons", len(buttons)).Msg("кнопки поста созданы")
}

func (h *Handler) rememberPost(chatID int64, post channelPost) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPosts[chatID] = post
}

func (h *Handler) previousPost(chatID int64) (channelPost, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	post, ok := h.lastPosts[chatID]
	return post, ok
}

// attachToPrevious переносит кнопки на предыдущий пост канала и удаляет пост-разметку.
func (h *Handler) attachToPrevious(ctx context.Context, chatID int64, markupID int, buttons []domain.Button, log zerolog.Logger) bool {
	prev, ok := h.previousPost(chatID)
	if !ok {
		return false
	}
	rows := markup.Append(prev.rows, buttons)
	if err := h.messenger.EditButtons(ctx, chatID, prev.id, rows); err != nil {
		log.Warn().Err(err).Int("target", prev.id).Msg("не удалось прикрепить кнопки к предыдущему посту")
		return false
	}
	if err := h.messenger.DeleteMessage(ctx, chatID, markupID); err != nil {
		log.Warn().Err(err).Msg("не удалось удалить пост с кнопками")
	}
	h.rememberPost(chatID, channelPost{id: prev.id, rows: rows})
	log.Info().Int("target", prev.id).Int("buttons", len(buttons)).Msg("кнопки перенесены на предыдущий пост")
	return true
}
