package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/infra/metrics"
)

// Requester: часть tgbotapi.BotAPI, через которую идут все вызовы.
type Requester interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// RetryAfterError возвращается, когда Telegram просит подождать дольше, чем позволяют попытки.
type RetryAfterError struct {
	After time.Duration
	Err   error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("telegram: повторить через %s: %v", e.After, e.Err)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// Config задаёт ограничения клиента.
type Config struct {
	RPS      int
	RetryMax int
}

// Client реализует domain.Messenger поверх Bot API.
type Client struct {
	api     Requester
	handle  string
	limiter *rate.Limiter
	retries int
	log     zerolog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ domain.Messenger = (*Client)(nil)

// NewClient создаёт клиента. handle — username бота без @.
func NewClient(api Requester, handle string, cfg Config, log zerolog.Logger) *Client {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	retries := cfg.RetryMax
	if retries < 1 {
		retries = 1
	}
	return &Client{
		api:     api,
		handle:  handle,
		limiter: rate.NewLimiter(limit, max(cfg.RPS, 1)),
		retries: retries,
		log:     log,
		sleep:   sleepCtx,
	}
}

// BotHandle возвращает username бота.
func (c *Client) BotHandle() string {
	return c.handle
}

// SendText отправляет текст; длинный текст режется на части, кнопки крепятся к первой.
func (c *Client) SendText(ctx context.Context, msg domain.TextMessage) (int, error) {
	parts := SplitMessage(msg.Text)
	if len(parts) == 0 {
		return 0, errors.New("telegram: пустой текст")
	}
	first := 0
	for i, part := range parts {
		params := tgbotapi.Params{}
		params.AddNonZero64("chat_id", msg.ChatID)
		params["text"] = part
		params.AddBool("disable_notification", msg.Silent)
		if i == 0 {
			if err := addKeyboard(params, msg.Buttons); err != nil {
				return 0, err
			}
		}
		id, err := c.messageCall(ctx, "sendMessage", msg.ChatID, params)
		if err != nil {
			metrics.BotSendErrors.Inc()
			return first, err
		}
		if i == 0 {
			first = id
		}
	}
	return first, nil
}

// CopyMessage копирует сообщение с защитой от пересылки и новыми кнопками.
func (c *Client) CopyMessage(ctx context.Context, req domain.CopyRequest) (int, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", req.To)
	params.AddNonZero64("from_chat_id", req.From.ChatID)
	params.AddNonZero("message_id", req.From.MessageID)
	params.AddBool("protect_content", req.Protect)
	params.AddBool("disable_notification", req.Silent)
	if req.Caption != nil {
		params["caption"] = FitCaption(*req.Caption)
	}
	if err := addKeyboard(params, req.Buttons); err != nil {
		return 0, err
	}
	id, err := c.messageCall(ctx, "copyMessage", req.To, params)
	if err != nil {
		metrics.BotSendErrors.Inc()
	}
	return id, err
}

// SendPoll пересоздаёт анонимный опрос из сохранённых полей.
func (c *Client) SendPoll(ctx context.Context, chatID int64, poll domain.PollData) (int, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params["question"] = poll.Question
	if err := params.AddInterface("options", poll.Options); err != nil {
		return 0, err
	}
	params["is_anonymous"] = "true"
	params.AddNonEmpty("type", poll.Kind)
	params.AddBool("allows_multiple_answers", poll.MultipleAllowed)
	if poll.IsQuiz() {
		params["correct_option_id"] = strconv.Itoa(poll.CorrectIndex)
		params.AddNonEmpty("explanation", poll.Explanation)
	}
	id, err := c.messageCall(ctx, "sendPoll", chatID, params)
	if err != nil {
		metrics.BotSendErrors.Inc()
	}
	return id, err
}

// DeleteMessage удаляет сообщение. Уже удалённое сообщение не считается ошибкой.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", messageID)
	_, err := c.call(ctx, "deleteMessage", chatID, params)
	if err != nil && isMessageMissing(err) {
		return nil
	}
	return err
}

// EditButtons заменяет инлайн-клавиатуру сообщения.
func (c *Client) EditButtons(ctx context.Context, chatID int64, messageID int, rows [][]domain.Button) error {
	params := editParams(chatID, messageID)
	if err := params.AddInterface("reply_markup", keyboard(rows)); err != nil {
		return err
	}
	return c.edit(ctx, "editMessageReplyMarkup", chatID, params)
}

// EditText заменяет текст и кнопки сообщения.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, rows [][]domain.Button) error {
	params := editParams(chatID, messageID)
	params["text"] = text
	if err := addKeyboard(params, rows); err != nil {
		return err
	}
	return c.edit(ctx, "editMessageText", chatID, params)
}

// EditCaption заменяет подпись и кнопки сообщения.
func (c *Client) EditCaption(ctx context.Context, chatID int64, messageID int, caption string, rows [][]domain.Button) error {
	params := editParams(chatID, messageID)
	params["caption"] = FitCaption(caption)
	if err := addKeyboard(params, rows); err != nil {
		return err
	}
	return c.edit(ctx, "editMessageCaption", chatID, params)
}

func (c *Client) edit(ctx context.Context, endpoint string, chatID int64, params tgbotapi.Params) error {
	_, err := c.call(ctx, endpoint, chatID, params)
	switch {
	case err == nil:
		return nil
	case isNotModified(err):
		return nil
	case isMessageMissing(err):
		return fmt.Errorf("%w: %v", domain.ErrMessageGone, err)
	default:
		return err
	}
}

// ResolveChannel возвращает числовой id публичного канала по хэндлу.
func (c *Client) ResolveChannel(ctx context.Context, handle string) (int64, error) {
	params := tgbotapi.Params{}
	params["chat_id"] = "@" + strings.TrimPrefix(handle, "@")
	resp, err := c.call(ctx, "getChat", 0, params)
	if err != nil {
		return 0, err
	}
	var chat tgbotapi.Chat
	if err := json.Unmarshal(resp.Result, &chat); err != nil {
		return 0, fmt.Errorf("telegram: разбор getChat: %w", err)
	}
	if chat.ID == 0 {
		return 0, errors.New("telegram: getChat вернул пустой id")
	}
	return chat.ID, nil
}

// AllowedUpdates: типы апдейтов, которые обрабатывает бот.
var AllowedUpdates = []string{"message", "channel_post"}

// SetWebhook регистрирует вебхук с секретом для заголовка X-Telegram-Bot-Api-Secret-Token.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := tgbotapi.Params{}
	params["url"] = url
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", AllowedUpdates); err != nil {
		return err
	}
	_, err := c.call(ctx, "setWebhook", 0, params)
	return err
}

// DeleteWebhook снимает вебхук перед переходом на long polling.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.call(ctx, "deleteWebhook", 0, tgbotapi.Params{})
	return err
}

func (c *Client) messageCall(ctx context.Context, endpoint string, chatID int64, params tgbotapi.Params) (int, error) {
	resp, err := c.call(ctx, endpoint, chatID, params)
	if err != nil {
		return 0, err
	}
	var sent struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		return 0, fmt.Errorf("telegram: разбор ответа %s: %w", endpoint, err)
	}
	return sent.MessageID, nil
}

// call выполняет запрос с ограничением частоты и ограниченным числом повторов.
func (c *Client) call(ctx context.Context, endpoint string, chatID int64, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	target := strconv.FormatInt(chatID, 10)
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		start := time.Now()
		resp, err := c.api.MakeRequest(endpoint, params)
		metrics.ObserveNetworkRequest("telegram_bot", endpoint, target, start, err)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		wait, retry := RetryDelay(err, attempt)
		if !retry {
			return nil, err
		}
		if attempt == c.retries {
			break
		}
		c.log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Dur("wait", wait).Msg("повтор запроса к Telegram")
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	if apiErr, ok := asAPIError(lastErr); ok && apiErr.RetryAfter > 0 {
		return nil, &RetryAfterError{After: time.Duration(apiErr.RetryAfter) * time.Second, Err: lastErr}
	}
	return nil, lastErr
}

// RetryDelay решает, повторять ли запрос после ошибки, и сколько ждать.
// 429 ждёт столько, сколько просит Telegram; 5xx и сетевые ошибки — линейная задержка;
// остальные ответы API не повторяются.
func RetryDelay(err error, attempt int) (time.Duration, bool) {
	backoff := time.Duration(attempt) * 500 * time.Millisecond
	apiErr, ok := asAPIError(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, false
		}
		return backoff, true
	}
	switch {
	case apiErr.RetryAfter > 0:
		return time.Duration(apiErr.RetryAfter) * time.Second, true
	case apiErr.Code == http.StatusTooManyRequests:
		return time.Second, true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	default:
		return 0, false
	}
}

func asAPIError(err error) (*tgbotapi.Error, bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) {
		return ptr, true
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return &val, true
	}
	return nil, false
}

func isMessageMissing(err error) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "message to delete not found") ||
		strings.Contains(msg, "message to edit not found") ||
		strings.Contains(msg, "message can't be deleted")
}

func isNotModified(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && strings.Contains(strings.ToLower(apiErr.Message), "message is not modified")
}

func editParams(chatID int64, messageID int) tgbotapi.Params {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", messageID)
	return params
}

func addKeyboard(params tgbotapi.Params, rows [][]domain.Button) error {
	if len(rows) == 0 {
		return nil
	}
	return params.AddInterface("reply_markup", keyboard(rows))
}

func keyboard(rows [][]domain.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
		}
		out = append(out, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: out}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
