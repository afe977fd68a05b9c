package batch

import (
	"errors"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/usecase/markup"
)

// ErrNoButtons: сообщение состоит только из разметки, но ни одна кнопка не собралась.
var ErrNoButtons = errors.New("в разметке нет ни одной корректной кнопки")

// Classify превращает входящее сообщение оператора в элемент лота.
func Classify(msg domain.InboundMessage, compiler *markup.Compiler, botHandle string) (domain.PendingItem, error) {
	if msg.Poll != nil {
		poll := *msg.Poll
		poll.Options = append([]string(nil), msg.Poll.Options...)
		return domain.PollItem{Poll: poll}, nil
	}

	body := msg.Body()
	switch {
	case markup.IsMarkupOnly(body):
		buttons, _ := compiler.Compile(body, botHandle)
		if len(buttons) == 0 {
			return nil, ErrNoButtons
		}
		return domain.ButtonOnlyItem{Buttons: buttons}, nil
	case markup.HasMarkup(body):
		buttons, cleaned := compiler.Compile(body, botHandle)
		if msg.HasMedia {
			return domain.MediaItem{Source: msg.Ref, Caption: cleaned, Buttons: buttons}, nil
		}
		return domain.TextItem{Body: cleaned, Buttons: buttons}, nil
	default:
		return domain.ForwardItem{Source: msg.Ref}, nil
	}
}
