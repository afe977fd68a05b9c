// Package domaintest содержит фейковый транспорт для тестов сценариев.
package domaintest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"clinicase-bot/internal/domain"
)

// Call: записанный вызов транспорта.
type Call struct {
	Op        string
	ChatID    int64
	MessageID int
	Text      string
	From      domain.MessageRef
	Protect   bool
	Silent    bool
	Caption   *string
	Buttons   [][]domain.Button
	Poll      *domain.PollData
}

// Messenger: потокобезопасный фейк domain.Messenger. Помнит, какие сообщения
// сейчас видны в каждом чате.
type Messenger struct {
	Handle   string
	Channels map[string]int64
	// FailCopy перечисляет id исходных сообщений, копирование которых падает.
	FailCopy map[int]bool
	FailSend bool
	// BeforeCopy вызывается перед каждым копированием без блокировки фейка.
	BeforeCopy func(req domain.CopyRequest)

	mu      sync.Mutex
	nextID  int
	calls   []Call
	visible map[int64]map[int]bool
	markup  map[int64]map[int][][]domain.Button
}

var _ domain.Messenger = (*Messenger)(nil)

// NewMessenger создаёт фейк с ботом bot.
func NewMessenger(bot string) *Messenger {
	return &Messenger{
		Handle:   bot,
		Channels: make(map[string]int64),
		FailCopy: make(map[int]bool),
		nextID:   1000,
		visible:  make(map[int64]map[int]bool),
		markup:   make(map[int64]map[int][][]domain.Button),
	}
}

func (m *Messenger) post(call Call) int {
	m.nextID++
	call.MessageID = m.nextID
	m.calls = append(m.calls, call)
	if m.visible[call.ChatID] == nil {
		m.visible[call.ChatID] = make(map[int]bool)
		m.markup[call.ChatID] = make(map[int][][]domain.Button)
	}
	m.visible[call.ChatID][m.nextID] = true
	m.markup[call.ChatID][m.nextID] = call.Buttons
	return m.nextID
}

// Seed помечает сообщение видимым, как будто его отправили вне фейка.
func (m *Messenger) Seed(chatID int64, messageID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.visible[chatID] == nil {
		m.visible[chatID] = make(map[int]bool)
		m.markup[chatID] = make(map[int][][]domain.Button)
	}
	m.visible[chatID][messageID] = true
}

func (m *Messenger) SendText(_ context.Context, msg domain.TextMessage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend {
		return 0, errors.New("send failed")
	}
	return m.post(Call{Op: "send", ChatID: msg.ChatID, Text: msg.Text, Buttons: msg.Buttons, Silent: msg.Silent}), nil
}

func (m *Messenger) CopyMessage(_ context.Context, req domain.CopyRequest) (int, error) {
	if m.BeforeCopy != nil {
		m.BeforeCopy(req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCopy[req.From.MessageID] {
		m.calls = append(m.calls, Call{Op: "copy_failed", ChatID: req.To, From: req.From})
		return 0, fmt.Errorf("copy %d failed", req.From.MessageID)
	}
	return m.post(Call{Op: "copy", ChatID: req.To, From: req.From, Protect: req.Protect, Silent: req.Silent, Caption: req.Caption, Buttons: req.Buttons}), nil
}

func (m *Messenger) SendPoll(_ context.Context, chatID int64, poll domain.PollData) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := poll
	return m.post(Call{Op: "poll", ChatID: chatID, Text: poll.Question, Poll: &p}), nil
}

func (m *Messenger) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "delete", ChatID: chatID, MessageID: messageID})
	if !m.visible[chatID][messageID] {
		return domain.ErrMessageGone
	}
	delete(m.visible[chatID], messageID)
	return nil
}

func (m *Messenger) EditButtons(_ context.Context, chatID int64, messageID int, rows [][]domain.Button) error {
	return m.edit("edit_buttons", chatID, messageID, "", rows)
}

func (m *Messenger) EditText(_ context.Context, chatID int64, messageID int, text string, rows [][]domain.Button) error {
	return m.edit("edit_text", chatID, messageID, text, rows)
}

func (m *Messenger) EditCaption(_ context.Context, chatID int64, messageID int, caption string, rows [][]domain.Button) error {
	return m.edit("edit_caption", chatID, messageID, caption, rows)
}

func (m *Messenger) edit(op string, chatID int64, messageID int, text string, rows [][]domain.Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: op, ChatID: chatID, MessageID: messageID, Text: text, Buttons: rows})
	if !m.visible[chatID][messageID] {
		return domain.ErrMessageGone
	}
	m.markup[chatID][messageID] = rows
	return nil
}

func (m *Messenger) ResolveChannel(_ context.Context, handle string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.Channels[handle]
	if !ok {
		return 0, errors.New("chat not found")
	}
	return id, nil
}

func (m *Messenger) BotHandle() string {
	return m.Handle
}

// Calls возвращает копию журнала вызовов.
func (m *Messenger) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsOf возвращает вызовы одной операции.
func (m *Messenger) CallsOf(op string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Visible возвращает число видимых сообщений в чате.
func (m *Messenger) Visible(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visible[chatID])
}

// IsVisible сообщает, видно ли сообщение.
func (m *Messenger) IsVisible(chatID int64, messageID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible[chatID][messageID]
}

// Markup возвращает текущие кнопки сообщения.
func (m *Messenger) Markup(chatID int64, messageID int) [][]domain.Button {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markup[chatID][messageID]
}
