package domain

import (
	"strconv"
	"time"
)

// CompanionStyle определяет тон сопроводительного сообщения при доставке.
type CompanionStyle int

const (
	// CompanionJoke: сообщение из ротируемой библиотеки шуток.
	CompanionJoke CompanionStyle = iota
	// CompanionPlain: нейтральный фиксированный текст.
	CompanionPlain
)

func (s CompanionStyle) String() string {
	if s == CompanionPlain {
		return "plain"
	}
	return "joke"
}

// PrivateChannelPrefix: префикс, который Telegram добавляет к id приватных каналов и супергрупп.
const PrivateChannelPrefix = "-100"

// ChannelIdentity описывает канал либо по числовому id, либо по публичному хэндлу.
type ChannelIdentity struct {
	ID     int64
	Handle string
}

// ChannelByID создаёт идентичность по числовому id.
func ChannelByID(id int64) ChannelIdentity {
	return ChannelIdentity{ID: id}
}

// ChannelByHandle создаёт идентичность по хэндлу без @.
func ChannelByHandle(handle string) ChannelIdentity {
	return ChannelIdentity{Handle: handle}
}

// Resolved сообщает, известен ли числовой id.
func (c ChannelIdentity) Resolved() bool {
	return c.ID != 0
}

func (c ChannelIdentity) String() string {
	if c.Resolved() {
		return strconv.FormatInt(c.ID, 10)
	}
	return "@" + c.Handle
}

// ContentReference указывает на одно или несколько сообщений канала, которые нужно доставить пользователю.
type ContentReference struct {
	Source     ChannelIdentity
	MessageIDs []int
	Style      CompanionStyle
}

// Equal сравнивает ссылки поэлементно.
func (r ContentReference) Equal(other ContentReference) bool {
	if r.Source != other.Source || r.Style != other.Style || len(r.MessageIDs) != len(other.MessageIDs) {
		return false
	}
	for i := range r.MessageIDs {
		if r.MessageIDs[i] != other.MessageIDs[i] {
			return false
		}
	}
	return true
}

// DeliveryRecord хранит всё, что было отправлено пользователю последней доставкой.
type DeliveryRecord struct {
	UserID     int64
	MessageIDs []int
	SentAt     time.Time
}

// MessageRef указывает на конкретное сообщение в чате.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button: инлайн-кнопка со ссылкой.
type Button struct {
	Label string
	URL   string
	// Wide требует отдельной строки под кнопку.
	Wide bool
}

// PollData содержит поля опроса, необходимые для его пересоздания.
type PollData struct {
	Question        string
	Options         []string
	Kind            string
	MultipleAllowed bool
	CorrectIndex    int
	// AnswerKnown == false означает, что платформа не сообщила правильный ответ.
	AnswerKnown     bool
	Explanation     string
}

// IsQuiz сообщает, является ли опрос викториной.
func (p PollData) IsQuiz() bool {
	return p.Kind == "quiz"
}

// InboundMessage: входящее сообщение в виде, не зависящем от транспорта.
type InboundMessage struct {
	Ref      MessageRef
	FromID   int64
	Text     string
	Caption  string
	HasMedia bool
	Poll     *PollData
}

// Body возвращает текст либо подпись сообщения.
func (m InboundMessage) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// AdCampaign: запущенная рекламная кампания.
type AdCampaign struct {
	ID        int
	OwnerID   int64
	Content   MessageRef
	Preview   string
	Interval  time.Duration
	CreatedAt time.Time
}
