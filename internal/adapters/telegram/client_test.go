package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"clinicase-bot/internal/domain"
)

type request struct {
	endpoint string
	params   tgbotapi.Params
}

type requesterStub struct {
	requests []request
	errs     []error
	result   string
}

func (s *requesterStub) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	s.requests = append(s.requests, request{endpoint: endpoint, params: params})
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return &tgbotapi.APIResponse{}, err
		}
	}
	result := s.result
	if result == "" {
		result = `{"message_id": 501}`
	}
	return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage(result)}, nil
}

func newClient(stub *requesterStub) (*Client, *[]time.Duration) {
	c := NewClient(stub, "clinicase_bot", Config{RetryMax: 3}, zerolog.Nop())
	var waits []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

func TestCopyMessageParams(t *testing.T) {
	stub := &requesterStub{}
	c, _ := newClient(stub)
	caption := "Caso 1"
	id, err := c.CopyMessage(context.Background(), domain.CopyRequest{
		To:      42,
		From:    domain.MessageRef{ChatID: -100123, MessageID: 71},
		Protect: true,
		Caption: &caption,
		Buttons: [][]domain.Button{{{Label: "Web", URL: "https://example.com"}}},
	})
	require.NoError(t, err)
	require.Equal(t, 501, id)

	require.Len(t, stub.requests, 1)
	p := stub.requests[0].params
	require.Equal(t, "copyMessage", stub.requests[0].endpoint)
	require.Equal(t, "42", p["chat_id"])
	require.Equal(t, "-100123", p["from_chat_id"])
	require.Equal(t, "71", p["message_id"])
	require.Equal(t, "true", p["protect_content"])
	require.Equal(t, "Caso 1", p["caption"])
	require.JSONEq(t, `{"inline_keyboard":[[{"text":"Web","url":"https://example.com"}]]}`, p["reply_markup"])
}

func TestRetryAfterIsHonored(t *testing.T) {
	flood := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}}
	stub := &requesterStub{errs: []error{flood, nil}}
	c, waits := newClient(stub)

	_, err := c.SendText(context.Background(), domain.TextMessage{ChatID: 1, Text: "hola"})
	require.NoError(t, err)
	require.Len(t, stub.requests, 2)
	require.Equal(t, []time.Duration{3 * time.Second}, *waits)
}

func TestRetryExhausted(t *testing.T) {
	flood := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1}}
	stub := &requesterStub{errs: []error{flood, flood, flood}}
	c, waits := newClient(stub)

	_, err := c.SendText(context.Background(), domain.TextMessage{ChatID: 1, Text: "hola"})
	var retryErr *RetryAfterError
	require.ErrorAs(t, err, &retryErr)
	require.Equal(t, time.Second, retryErr.After)
	require.Len(t, stub.requests, 3)
	require.Len(t, *waits, 2)
}

func TestClientErrorNotRetried(t *testing.T) {
	stub := &requesterStub{errs: []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}}}
	c, waits := newClient(stub)

	_, err := c.ResolveChannel(context.Background(), "missing_channel")
	require.Error(t, err)
	require.Len(t, stub.requests, 1)
	require.Empty(t, *waits)
	require.Equal(t, "@missing_channel", stub.requests[0].params["chat_id"])
}

func TestDeleteMissingMessageIsSuccess(t *testing.T) {
	stub := &requesterStub{errs: []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: message to delete not found"}}}
	c, _ := newClient(stub)
	require.NoError(t, c.DeleteMessage(context.Background(), 1, 2))
}

func TestEditMissingMessage(t *testing.T) {
	stub := &requesterStub{errs: []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: message to edit not found"}}}
	c, _ := newClient(stub)
	err := c.EditButtons(context.Background(), 1, 2, nil)
	require.ErrorIs(t, err, domain.ErrMessageGone)
}

func TestResolveChannel(t *testing.T) {
	stub := &requesterStub{result: `{"id": -1001234567890, "type": "channel"}`}
	c, _ := newClient(stub)
	id, err := c.ResolveChannel(context.Background(), "@clinicase")
	require.NoError(t, err)
	require.Equal(t, int64(-1001234567890), id)
	require.Equal(t, "getChat", stub.requests[0].endpoint)
	require.Equal(t, "@clinicase", stub.requests[0].params["chat_id"])
}

func TestSetWebhookCarriesSecret(t *testing.T) {
	stub := &requesterStub{result: "true"}
	c, _ := newClient(stub)
	require.NoError(t, c.SetWebhook(context.Background(), "https://bot.example.com/bot/webhook", "s3cr3t"))

	require.Len(t, stub.requests, 1)
	p := stub.requests[0].params
	require.Equal(t, "setWebhook", stub.requests[0].endpoint)
	require.Equal(t, "https://bot.example.com/bot/webhook", p["url"])
	require.Equal(t, "s3cr3t", p["secret_token"])
	require.JSONEq(t, `["message","channel_post"]`, p["allowed_updates"])
}

func TestSendPollQuiz(t *testing.T) {
	stub := &requesterStub{}
	c, _ := newClient(stub)
	_, err := c.SendPoll(context.Background(), 5, domain.PollData{
		Question:     "¿Diagnóstico?",
		Options:      []string{"A", "B"},
		Kind:         "quiz",
		CorrectIndex: 0,
		Explanation:  "ver caso",
	})
	require.NoError(t, err)
	p := stub.requests[0].params
	require.Equal(t, "sendPoll", stub.requests[0].endpoint)
	require.Equal(t, "0", p["correct_option_id"])
	require.Equal(t, "true", p["is_anonymous"])
	require.Equal(t, "quiz", p["type"])
	require.JSONEq(t, `["A","B"]`, p["options"])

	_, err = c.SendPoll(context.Background(), 5, domain.PollData{Question: "q", Options: []string{"x", "y"}, Kind: "regular"})
	require.NoError(t, err)
	_, ok := stub.requests[1].params["correct_option_id"]
	require.False(t, ok)
}

func TestRetryDelay(t *testing.T) {
	wait, retry := RetryDelay(errors.New("connection reset"), 2)
	require.True(t, retry)
	require.Equal(t, time.Second, wait)

	_, retry = RetryDelay(context.Canceled, 1)
	require.False(t, retry)

	_, retry = RetryDelay(&tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, 1)
	require.True(t, retry)

	_, retry = RetryDelay(&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, 1)
	require.False(t, retry)
}

func TestInbound(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 9,
		From:      &tgbotapi.User{ID: 77},
		Chat:      &tgbotapi.Chat{ID: 77},
		Caption:   "foto",
		Photo:     []tgbotapi.PhotoSize{{FileID: "x"}},
	}
	in := Inbound(msg)
	require.Equal(t, domain.MessageRef{ChatID: 77, MessageID: 9}, in.Ref)
	require.Equal(t, int64(77), in.FromID)
	require.True(t, in.HasMedia)
	require.Equal(t, "foto", in.Body())

	msg = &tgbotapi.Message{
		MessageID: 10,
		Chat:      &tgbotapi.Chat{ID: 77},
		Poll: &tgbotapi.Poll{
			Question:        "q",
			Options:         []tgbotapi.PollOption{{Text: "a"}, {Text: "b"}},
			Type:            "quiz",
			CorrectOptionID: 1,
		},
	}
	in = Inbound(msg)
	require.NotNil(t, in.Poll)
	require.Equal(t, []string{"a", "b"}, in.Poll.Options)
	require.True(t, in.Poll.AnswerKnown)
	require.Equal(t, 1, in.Poll.CorrectIndex)
}
