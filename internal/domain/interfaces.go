package domain

import (
	"context"
	"time"
)

// TextMessage описывает исходящее текстовое сообщение.
type TextMessage struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
	Silent  bool
}

// CopyRequest описывает копирование сообщения в другой чат.
type CopyRequest struct {
	To      int64
	From    MessageRef
	Protect bool
	Silent  bool
	// Caption == nil оставляет исходную подпись.
	Caption *string
	Buttons [][]Button
}

// Messenger: примитивы транспорта мессенджера.
type Messenger interface {
	SendText(ctx context.Context, msg TextMessage) (int, error)
	CopyMessage(ctx context.Context, req CopyRequest) (int, error)
	SendPoll(ctx context.Context, chatID int64, poll PollData) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	EditButtons(ctx context.Context, chatID int64, messageID int, rows [][]Button) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, rows [][]Button) error
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string, rows [][]Button) error
	ResolveChannel(ctx context.Context, handle string) (int64, error)
	BotHandle() string
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}
