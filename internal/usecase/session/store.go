// Package session хранит режим работы каждого оператора. Один оператор
// находится ровно в одном режиме, поэтому реклама и лот взаимоисключающие.
package session

import (
	"errors"
	"sync"

	"clinicase-bot/internal/domain"
)

// ErrModeConflict: операция не подходит к текущему режиму оператора.
var ErrModeConflict = errors.New("операция недоступна в текущем режиме")

// Mode: режим оператора.
type Mode int

const (
	Idle Mode = iota
	ComposingAd
	ComposingBatch
)

func (m Mode) String() string {
	switch m {
	case ComposingAd:
		return "ad"
	case ComposingBatch:
		return "batch"
	default:
		return "idle"
	}
}

// AdStep: шаг настройки рекламы.
type AdStep int

const (
	AwaitContent AdStep = iota
	AwaitInterval
)

// Session: состояние одного оператора.
type Session struct {
	Mode      Mode
	AdStep    AdStep
	AdContent domain.MessageRef
	AdPreview string
	Items     []domain.PendingItem
}

// Store: потокобезопасное хранилище сессий.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get возвращает копию сессии оператора.
func (s *Store) Get(operatorID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[operatorID]
	if !ok {
		return Session{}
	}
	out := *sess
	out.Items = append([]domain.PendingItem(nil), sess.Items...)
	return out
}

// StartBatch переводит оператора в режим лота с пустым буфером. Возвращает прежний режим.
func (s *Store) StartBatch(operatorID int64) Mode {
	return s.replace(operatorID, &Session{Mode: ComposingBatch})
}

// StartAd переводит оператора в настройку рекламы. Возвращает прежний режим.
func (s *Store) StartAd(operatorID int64) Mode {
	return s.replace(operatorID, &Session{Mode: ComposingAd, AdStep: AwaitContent})
}

// Reset возвращает оператора в Idle. Возвращает прежний режим.
func (s *Store) Reset(operatorID int64) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := Idle
	if sess, ok := s.sessions[operatorID]; ok {
		prev = sess.Mode
	}
	delete(s.sessions, operatorID)
	return prev
}

func (s *Store) replace(operatorID int64, next *Session) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := Idle
	if sess, ok := s.sessions[operatorID]; ok {
		prev = sess.Mode
	}
	s.sessions[operatorID] = next
	return prev
}

// SetAdContent запоминает контент объявления и переходит к выбору интервала.
func (s *Store) SetAdContent(operatorID int64, content domain.MessageRef, preview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[operatorID]
	if !ok || sess.Mode != ComposingAd || sess.AdStep != AwaitContent {
		return ErrModeConflict
	}
	sess.AdContent = content
	sess.AdPreview = preview
	sess.AdStep = AwaitInterval
	return nil
}

// Append добавляет элемент в лот. Возвращает размер лота.
func (s *Store) Append(operatorID int64, item domain.PendingItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[operatorID]
	if !ok || sess.Mode != ComposingBatch {
		return 0, ErrModeConflict
	}
	sess.Items = append(sess.Items, item)
	return len(sess.Items), nil
}

// TakeItems забирает элементы лота и возвращает оператора в Idle.
func (s *Store) TakeItems(operatorID int64) ([]domain.PendingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[operatorID]
	if !ok || sess.Mode != ComposingBatch {
		return nil, ErrModeConflict
	}
	delete(s.sessions, operatorID)
	return sess.Items, nil
}
