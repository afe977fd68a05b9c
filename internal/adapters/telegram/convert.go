package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clinicase-bot/internal/domain"
)

// Inbound переводит сообщение Bot API в независимое от транспорта представление.
func Inbound(msg *tgbotapi.Message) domain.InboundMessage {
	in := domain.InboundMessage{
		Ref:      domain.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID},
		Text:     msg.Text,
		Caption:  msg.Caption,
		HasMedia: hasMedia(msg),
	}
	if msg.From != nil {
		in.FromID = msg.From.ID
	}
	if msg.Poll != nil {
		in.Poll = pollData(msg.Poll)
	}
	return in
}

func hasMedia(msg *tgbotapi.Message) bool {
	return len(msg.Photo) > 0 ||
		msg.Video != nil ||
		msg.Document != nil ||
		msg.Audio != nil ||
		msg.Animation != nil ||
		msg.Voice != nil
}

func pollData(p *tgbotapi.Poll) *domain.PollData {
	options := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		options = append(options, o.Text)
	}
	// поле omitempty: ноль неотличим от отсутствия ответа
	return &domain.PollData{
		Question:        p.Question,
		Options:         options,
		Kind:            p.Type,
		MultipleAllowed: p.AllowsMultipleAnswers,
		CorrectIndex:    p.CorrectOptionID,
		AnswerKnown:     p.CorrectOptionID > 0,
		Explanation:     p.Explanation,
	}
}
