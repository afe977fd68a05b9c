package telegram

import (
	"strings"
	"unicode"
)

const (
	messageLimit = 4096
	captionLimit = 1024
)

// SplitMessage режет текст на части не длиннее лимита сообщения Telegram.
func SplitMessage(text string) []string {
	return splitRunes(text, messageLimit)
}

// FitCaption укорачивает подпись до лимита медиа, обрезая по границе слова.
func FitCaption(caption string) string {
	runes := []rune(caption)
	if len(runes) <= captionLimit {
		return caption
	}
	cut := breakPoint(runes, 0, captionLimit-1)
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + "…"
}

func splitRunes(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			parts = append(parts, chunk)
		}
		start = end
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
	}
	return parts
}

// breakPoint ищет место разреза в runes[start:end]: сначала перевод строки,
// затем пробел, иначе режет ровно по end.
func breakPoint(runes []rune, start, end int) int {
	for i := end; i > start; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > start; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
