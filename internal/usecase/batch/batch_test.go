package batch

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/domain/domaintest"
	"clinicase-bot/internal/usecase/deeplink"
	"clinicase-bot/internal/usecase/markup"
)

const (
	channel  int64 = -1002679848195
	operator int64 = 77
	bot            = "clinicase_bot"
)

func newPublisher() (*Publisher, *domaintest.Messenger) {
	fake := domaintest.NewMessenger(bot)
	return NewPublisher(fake, domain.NopBusinessMetrics{}, channel, 0, zerolog.Nop()), fake
}

func button(label string) domain.Button {
	return domain.Button{Label: label, URL: "https://example.com/" + label}
}

func TestPublishAttachesButtonsToPreviousMessage(t *testing.T) {
	p, fake := newPublisher()
	b1, b2 := button("b1"), button("b2")
	items := []domain.PendingItem{
		domain.TextItem{Body: "a"},
		domain.ButtonOnlyItem{Buttons: []domain.Button{b1}},
		domain.MediaItem{Source: domain.MessageRef{ChatID: operator, MessageID: 5}, Caption: "x"},
		domain.ButtonOnlyItem{Buttons: []domain.Button{b2}},
	}

	res, err := p.Publish(context.Background(), operator, items)
	require.NoError(t, err)
	require.Equal(t, Result{Sent: 2}, res)

	sends, copies := fake.CallsOf("send"), fake.CallsOf("copy")
	require.Len(t, sends, 1)
	require.Len(t, copies, 1)
	require.Equal(t, 2, fake.Visible(channel))

	textID, mediaID := sends[0].MessageID, copies[0].MessageID
	require.Equal(t, [][]domain.Button{{b1}}, fake.Markup(channel, textID))
	require.Equal(t, [][]domain.Button{{b2}}, fake.Markup(channel, mediaID))

	// порядок: текст, привязка b1, медиа, привязка b2
	var ops []string
	for _, c := range fake.Calls() {
		ops = append(ops, c.Op)
	}
	require.Equal(t, []string{"send", "edit_buttons", "copy", "edit_buttons"}, ops)
}

func TestPublishMergesWithExistingButtons(t *testing.T) {
	p, fake := newPublisher()
	own, extra := button("own"), button("extra")
	items := []domain.PendingItem{
		domain.TextItem{Body: "a", Buttons: []domain.Button{own}},
		domain.ButtonOnlyItem{Buttons: []domain.Button{extra}},
	}
	_, err := p.Publish(context.Background(), operator, items)
	require.NoError(t, err)

	id := fake.CallsOf("send")[0].MessageID
	require.Equal(t, [][]domain.Button{{own}, {extra}}, fake.Markup(channel, id))
}

func TestPublishPlaceholderForLeadingButtons(t *testing.T) {
	p, fake := newPublisher()
	b := button("b")
	items := []domain.PendingItem{
		domain.ButtonOnlyItem{Buttons: []domain.Button{b}},
		domain.ForwardItem{Source: domain.MessageRef{ChatID: operator, MessageID: 9}},
	}
	res, err := p.Publish(context.Background(), operator, items)
	require.NoError(t, err)
	require.Equal(t, 2, res.Sent)

	sends := fake.CallsOf("send")
	require.Len(t, sends, 1)
	require.Equal(t, PlaceholderText, sends[0].Text)
	require.Equal(t, [][]domain.Button{{b}}, fake.Markup(channel, sends[0].MessageID))
}

func TestPublishPollReconstructed(t *testing.T) {
	p, fake := newPublisher()
	poll := domain.PollData{Question: "¿Diagnóstico?", Options: []string{"A", "B"}, Kind: "quiz", CorrectIndex: 1, Explanation: "porque sí"}
	_, err := p.Publish(context.Background(), operator, []domain.PendingItem{domain.PollItem{Poll: poll}})
	require.NoError(t, err)

	polls := fake.CallsOf("poll")
	require.Len(t, polls, 1)
	require.Equal(t, channel, polls[0].ChatID)
	require.Equal(t, poll, *polls[0].Poll)
	require.Empty(t, fake.CallsOf("copy"))
}

func TestPublishCountsFailures(t *testing.T) {
	p, fake := newPublisher()
	fake.FailCopy[9] = true
	items := []domain.PendingItem{
		domain.TextItem{Body: "a"},
		domain.ForwardItem{Source: domain.MessageRef{ChatID: operator, MessageID: 9}},
		domain.ButtonOnlyItem{Buttons: []domain.Button{button("b")}},
	}
	res, err := p.Publish(context.Background(), operator, items)
	require.NoError(t, err)
	require.Equal(t, Result{Sent: 1, Failed: 1}, res)

	// кнопки после упавшего элемента уходят к последнему успешному
	id := fake.CallsOf("send")[0].MessageID
	require.Len(t, fake.Markup(channel, id), 1)
}

func TestPublishEmpty(t *testing.T) {
	p, _ := newPublisher()
	_, err := p.Publish(context.Background(), operator, nil)
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestClassify(t *testing.T) {
	compiler := markup.NewCompiler(deeplink.NewCodec(-1003058530208), zerolog.Nop())
	ref := domain.MessageRef{ChatID: operator, MessageID: 3}

	item, err := Classify(domain.InboundMessage{Ref: ref, Poll: &domain.PollData{Question: "q", Options: []string{"a", "b"}}}, compiler, bot)
	require.NoError(t, err)
	require.IsType(t, domain.PollItem{}, item)

	item, err = Classify(domain.InboundMessage{Ref: ref, Text: "@@@ Web | example.com"}, compiler, bot)
	require.NoError(t, err)
	require.Equal(t, domain.ButtonOnlyItem{Buttons: []domain.Button{{Label: "Web", URL: "https://example.com"}}}, item)

	_, err = Classify(domain.InboundMessage{Ref: ref, Text: "@@@ Web | nada"}, compiler, bot)
	require.ErrorIs(t, err, ErrNoButtons)

	item, err = Classify(domain.InboundMessage{Ref: ref, Caption: "Caso 1\n@@@ Web | example.com", HasMedia: true}, compiler, bot)
	require.NoError(t, err)
	media, ok := item.(domain.MediaItem)
	require.True(t, ok)
	require.Equal(t, "Caso 1", media.Caption)
	require.Equal(t, ref, media.Source)
	require.Len(t, media.Buttons, 1)

	item, err = Classify(domain.InboundMessage{Ref: ref, Text: "Caso 2\n%%% 15"}, compiler, bot)
	require.NoError(t, err)
	text, ok := item.(domain.TextItem)
	require.True(t, ok)
	require.Equal(t, "Caso 2", text.Body)
	require.Equal(t, markup.JustificationLabel, text.Buttons[0].Label)

	item, err = Classify(domain.InboundMessage{Ref: ref, Text: "sin botones"}, compiler, bot)
	require.NoError(t, err)
	require.Equal(t, domain.ForwardItem{Source: ref}, item)
}

type failingRecorder struct{ events []domain.BusinessMetric }

func (r *failingRecorder) RecordBusinessMetric(_ context.Context, m domain.BusinessMetric) error {
	r.events = append(r.events, m)
	return errors.New("journal down")
}

func TestPublishLogsJournalFailure(t *testing.T) {
	var out bytes.Buffer
	rec := &failingRecorder{}
	p := NewPublisher(domaintest.NewMessenger(bot), rec, channel, 0, zerolog.New(&out))

	res, err := p.Publish(context.Background(), operator, []domain.PendingItem{domain.TextItem{Body: "a"}})
	require.NoError(t, err)
	require.Equal(t, Result{Sent: 1}, res)

	require.Len(t, rec.events, 1)
	require.Equal(t, domain.BusinessMetricEventBatchPublished, rec.events[0].Event)
	require.Contains(t, out.String(), "journal down")
	require.Contains(t, out.String(), `"level":"warn"`)
}
