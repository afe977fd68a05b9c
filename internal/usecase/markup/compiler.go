package markup

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/usecase/deeplink"
)

// JustificationLabel: подпись кнопки, созданной сигилом %%%.
const JustificationLabel = "VER JUSTIFICACIÓN 💬"

// ButtonsPerRow: сколько обычных кнопок помещается в строку.
const ButtonsPerRow = 2

var (
	justificationRegex = regexp.MustCompile(`%%%\s*((?:https?://)?t\.me/\S+|\d+)`)
	customButtonRegex  = regexp.MustCompile(`@@@\s*([^|\n]+?)\s*\|\s*([^\n]+)`)
	messageLinkRegex   = regexp.MustCompile(`^(?:https?://)?t\.me/(?:c/(\d+)|([A-Za-z][A-Za-z0-9_]*))/(\d+)(?:[/?#]\S*)?$`)
	schemeRegex        = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
	handleRegex        = regexp.MustCompile(`^@([A-Za-z][A-Za-z0-9_]*)$`)
)

// Compiler разбирает сигилы %%% и @@@ в кнопки.
type Compiler struct {
	codec *deeplink.Codec
	log   zerolog.Logger
}

// NewCompiler создаёт компилятор разметки.
func NewCompiler(codec *deeplink.Codec, log zerolog.Logger) *Compiler {
	return &Compiler{codec: codec, log: log}
}

// HasMarkup сообщает, есть ли в тексте хотя бы один сигил.
func HasMarkup(text string) bool {
	return justificationRegex.MatchString(text) || customButtonRegex.MatchString(text)
}

// IsMarkupOnly сообщает, что после удаления сигилов остаются одни пробелы.
func IsMarkupOnly(text string) bool {
	if !HasMarkup(text) {
		return false
	}
	return strings.TrimSpace(strip(text)) == ""
}

// Compile возвращает кнопки и текст без сигилов. Текст без сигилов возвращается как есть.
func (c *Compiler) Compile(text, botHandle string) ([]domain.Button, string) {
	if !HasMarkup(text) {
		return nil, text
	}
	var buttons []domain.Button
	cleaned := text
	for HasMarkup(cleaned) {
		for _, m := range justificationRegex.FindAllStringSubmatch(cleaned, -1) {
			if b, ok := c.justificationButton(m[1], botHandle); ok {
				buttons = append(buttons, b)
			}
		}
		for _, m := range customButtonRegex.FindAllStringSubmatch(cleaned, -1) {
			if b, ok := c.customButton(m[1], m[2], botHandle); ok {
				buttons = append(buttons, b)
			}
		}
		cleaned = strip(cleaned)
	}
	return buttons, strings.TrimSpace(cleaned)
}

func strip(text string) string {
	text = justificationRegex.ReplaceAllString(text, "")
	return customButtonRegex.ReplaceAllString(text, "")
}

func (c *Compiler) justificationButton(target, botHandle string) (domain.Button, bool) {
	target = strings.TrimSpace(target)
	var messageID int
	if m := messageLinkRegex.FindStringSubmatch(target); m != nil {
		messageID, _ = strconv.Atoi(m[3])
	} else {
		messageID, _ = strconv.Atoi(target)
	}
	ref := domain.ContentReference{
		Source:     domain.ChannelByID(c.codec.FallbackChannel()),
		MessageIDs: []int{messageID},
		Style:      domain.CompanionJoke,
	}
	token, err := c.codec.Encode(ref)
	if err != nil {
		c.log.Warn().Err(err).Str("target", target).Msg("не удалось построить диплинк для %%%")
		return domain.Button{}, false
	}
	return domain.Button{Label: JustificationLabel, URL: deeplink.Link(botHandle, token), Wide: true}, true
}

func (c *Compiler) customButton(label, target, botHandle string) (domain.Button, bool) {
	label = strings.TrimSpace(label)
	target = strings.TrimSpace(target)
	if label == "" || target == "" {
		return domain.Button{}, false
	}
	url, ok := c.resolveTarget(target, botHandle)
	if !ok {
		c.log.Warn().Str("label", label).Str("target", target).Msg("кнопка пропущена: неизвестная цель")
		return domain.Button{}, false
	}
	return domain.Button{Label: label, URL: url}, true
}

// resolveTarget переводит цель кнопки @@@ в URL. Ссылка на сообщение канала
// превращается в диплинк даже со схемой, чтобы контент уходил защищённой копией.
func (c *Compiler) resolveTarget(target, botHandle string) (string, bool) {
	if m := messageLinkRegex.FindStringSubmatch(target); m != nil {
		messageID, err := strconv.Atoi(m[3])
		if err != nil {
			return "", false
		}
		ref := domain.ContentReference{MessageIDs: []int{messageID}, Style: domain.CompanionPlain}
		if m[1] != "" {
			channelID, err := strconv.ParseInt(domain.PrivateChannelPrefix+m[1], 10, 64)
			if err != nil {
				return "", false
			}
			ref.Source = domain.ChannelByID(channelID)
		} else {
			ref.Source = domain.ChannelByHandle(m[2])
		}
		token, err := c.codec.Encode(ref)
		if err != nil {
			c.log.Warn().Err(err).Str("target", target).Msg("не удалось построить диплинк для @@@")
			return "", false
		}
		return deeplink.Link(botHandle, token), true
	}
	switch {
	case schemeRegex.MatchString(target):
		return target, true
	case handleRegex.MatchString(target):
		return "https://t.me/" + target[1:], true
	case strings.HasPrefix(target, "t.me/"):
		return "https://" + target, true
	case strings.Contains(target, ".") && !strings.ContainsAny(target, " \t"):
		return "https://" + target, true
	default:
		return "", false
	}
}

// Rows раскладывает кнопки по строкам: широкие по одной, остальные по ButtonsPerRow.
func Rows(buttons []domain.Button) [][]domain.Button {
	var rows [][]domain.Button
	var current []domain.Button
	flush := func() {
		if len(current) > 0 {
			rows = append(rows, current)
			current = nil
		}
	}
	for _, b := range buttons {
		if b.Wide {
			flush()
			rows = append(rows, []domain.Button{b})
			continue
		}
		current = append(current, b)
		if len(current) == ButtonsPerRow {
			flush()
		}
	}
	flush()
	return rows
}

// Append добавляет кнопки к существующей раскладке.
func Append(rows [][]domain.Button, buttons []domain.Button) [][]domain.Button {
	out := make([][]domain.Button, 0, len(rows)+len(buttons))
	out = append(out, rows...)
	return append(out, Rows(buttons)...)
}
