package deeplink

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"clinicase-bot/internal/domain"
)

// MaxTokenLength: предел длины параметра start в Telegram.
const MaxTokenLength = 64

const (
	prefixPlain    = "n_"
	prefixJoke     = "j_"
	prefixPublic   = "p_"
	prefixPrivate  = "c_"
	prefixLegacyP  = "d_p_"
	prefixLegacyC  = "d_c_"
	prefixJust     = "just_"
	prefixJst      = "jst_"
	idSeparator    = "-"
	fieldSeparator = "_"
)

var (
	// ErrUnencodable: ссылку нельзя выразить токеном.
	ErrUnencodable = errors.New("ссылку нельзя закодировать")
	// ErrTokenTooLong: токен не помещается в параметр start.
	ErrTokenTooLong = errors.New("токен длиннее 64 символов")
)

// handleRegex: правило имён пользователей Telegram, 5-32 символа.
var handleRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{4,31}$`)

// ErrorKind классифицирует ошибки разбора токена.
type ErrorKind int

const (
	// UnrecognizedFormat: токен не подходит ни под одну грамматику.
	UnrecognizedFormat ErrorKind = iota + 1
	// MalformedID: числовая часть токена некорректна.
	MalformedID
)

func (k ErrorKind) String() string {
	switch k {
	case UnrecognizedFormat:
		return "неизвестный формат"
	case MalformedID:
		return "некорректный id"
	default:
		return "unknown"
	}
}

// DecodeError возвращается Decode для любого невалидного токена.
type DecodeError struct {
	Kind  ErrorKind
	Token string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("диплинк %q: %s", e.Token, e.Kind)
}

// Codec кодирует и разбирает токены диплинков.
type Codec struct {
	fallback int64
}

// NewCodec создаёт кодек. fallbackChannelID используется для голых чисел и токенов j_.
func NewCodec(fallbackChannelID int64) *Codec {
	return &Codec{fallback: fallbackChannelID}
}

// FallbackChannel возвращает id канала по умолчанию.
func (c *Codec) FallbackChannel() int64 {
	return c.fallback
}

// Link строит ссылку t.me на бота с параметром start.
func Link(botHandle, token string) string {
	return "https://t.me/" + botHandle + "?start=" + token
}

// Encode возвращает канонический токен для ссылки.
func (c *Codec) Encode(ref domain.ContentReference) (string, error) {
	ids, err := joinIDs(ref.MessageIDs)
	if err != nil {
		return "", err
	}

	var body string
	switch {
	case ref.Source.Resolved() && ref.Source.ID == c.fallback:
		body = prefixJoke + ids
		if ref.Style == domain.CompanionPlain {
			body = prefixPlain + body
		}
		return checkLength(body)
	case ref.Source.Resolved():
		raw := strconv.FormatInt(ref.Source.ID, 10)
		frag := strings.TrimPrefix(raw, domain.PrivateChannelPrefix)
		if frag == raw || !isDigits(frag) {
			return "", fmt.Errorf("%w: канал %d без префикса -100", ErrUnencodable, ref.Source.ID)
		}
		body = prefixPrivate + frag + fieldSeparator + ids
	case handleRegex.MatchString(ref.Source.Handle):
		body = prefixPublic + ref.Source.Handle + fieldSeparator + ids
	default:
		return "", fmt.Errorf("%w: хэндл %q", ErrUnencodable, ref.Source.Handle)
	}

	if ref.Style == domain.CompanionJoke {
		body = prefixJoke + body
	}
	return checkLength(body)
}

// Decode разбирает токен. Ошибка всегда имеет тип *DecodeError.
func (c *Codec) Decode(token string) (domain.ContentReference, error) {
	token = strings.TrimSpace(token)
	ref, kind := c.decode(token)
	if kind != 0 {
		return domain.ContentReference{}, &DecodeError{Kind: kind, Token: token}
	}
	return ref, nil
}

func (c *Codec) decode(token string) (domain.ContentReference, ErrorKind) {
	if rest, ok := strings.CutPrefix(token, prefixPlain); ok {
		ref, kind := c.decodeBody(rest, domain.CompanionPlain)
		ref.Style = domain.CompanionPlain
		return ref, kind
	}
	return c.decodeBody(token, domain.CompanionJoke)
}

// decodeBody разбирает токен без префикса n_. style — стиль для форм,
// у которых он не задан явно (голое число, j_, just_).
func (c *Codec) decodeBody(token string, style domain.CompanionStyle) (domain.ContentReference, ErrorKind) {
	switch {
	case token == "":
		return domain.ContentReference{}, UnrecognizedFormat
	case isDigits(token):
		return c.fallbackRef([]string{token}, style)
	case strings.HasPrefix(token, prefixJust):
		return c.fallbackRef(strings.Split(token[len(prefixJust):], idSeparator), style)
	case strings.HasPrefix(token, prefixJst):
		return c.fallbackRef(strings.Split(token[len(prefixJst):], idSeparator), style)
	case strings.HasPrefix(token, prefixLegacyC):
		frag, id, ok := cutLast(token[len(prefixLegacyC):], idSeparator)
		if !ok {
			return domain.ContentReference{}, UnrecognizedFormat
		}
		return privateRef(frag, []string{id}, domain.CompanionPlain)
	case strings.HasPrefix(token, prefixLegacyP):
		handle, id, ok := cutLast(token[len(prefixLegacyP):], idSeparator)
		if !ok {
			return domain.ContentReference{}, UnrecognizedFormat
		}
		return publicRef(handle, []string{id}, domain.CompanionPlain)
	case strings.HasPrefix(token, prefixJoke):
		rest := token[len(prefixJoke):]
		if strings.HasPrefix(rest, prefixPublic) || strings.HasPrefix(rest, prefixPrivate) {
			ref, kind := c.decodeBody(rest, style)
			if kind == 0 && style == domain.CompanionJoke {
				ref.Style = domain.CompanionJoke
			}
			return ref, kind
		}
		return c.fallbackRef(strings.Split(rest, idSeparator), style)
	case strings.HasPrefix(token, prefixPublic):
		rest := token[len(prefixPublic):]
		if handle, ids, ok := cutLast(rest, fieldSeparator); ok {
			return publicRef(handle, strings.Split(ids, idSeparator), domain.CompanionPlain)
		}
		// p_<handle>-<id> из ранних выпусков.
		handle, id, ok := strings.Cut(rest, idSeparator)
		if !ok {
			return domain.ContentReference{}, UnrecognizedFormat
		}
		return publicRef(handle, []string{id}, domain.CompanionPlain)
	case strings.HasPrefix(token, prefixPrivate):
		frag, ids, ok := strings.Cut(token[len(prefixPrivate):], fieldSeparator)
		if !ok {
			return domain.ContentReference{}, UnrecognizedFormat
		}
		return privateRef(frag, strings.Split(ids, idSeparator), domain.CompanionPlain)
	default:
		return domain.ContentReference{}, UnrecognizedFormat
	}
}

func (c *Codec) fallbackRef(parts []string, style domain.CompanionStyle) (domain.ContentReference, ErrorKind) {
	ids, kind := parseIDs(parts)
	if kind != 0 {
		return domain.ContentReference{}, kind
	}
	return domain.ContentReference{Source: domain.ChannelByID(c.fallback), MessageIDs: ids, Style: style}, 0
}

func publicRef(handle string, parts []string, style domain.CompanionStyle) (domain.ContentReference, ErrorKind) {
	if !handleRegex.MatchString(handle) {
		return domain.ContentReference{}, UnrecognizedFormat
	}
	ids, kind := parseIDs(parts)
	if kind != 0 {
		return domain.ContentReference{}, kind
	}
	return domain.ContentReference{Source: domain.ChannelByHandle(handle), MessageIDs: ids, Style: style}, 0
}

func privateRef(frag string, parts []string, style domain.CompanionStyle) (domain.ContentReference, ErrorKind) {
	if !isDigits(frag) {
		return domain.ContentReference{}, MalformedID
	}
	channelID, err := strconv.ParseInt(domain.PrivateChannelPrefix+frag, 10, 64)
	if err != nil {
		return domain.ContentReference{}, MalformedID
	}
	ids, kind := parseIDs(parts)
	if kind != 0 {
		return domain.ContentReference{}, kind
	}
	return domain.ContentReference{Source: domain.ChannelByID(channelID), MessageIDs: ids, Style: style}, 0
}

func parseIDs(parts []string) ([]int, ErrorKind) {
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		if !isDigits(part) {
			return nil, MalformedID
		}
		id, err := strconv.Atoi(part)
		if err != nil || id < 1 {
			return nil, MalformedID
		}
		ids = append(ids, id)
	}
	return ids, 0
}

func joinIDs(ids []int) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: нет сообщений", ErrUnencodable)
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		if id < 1 {
			return "", fmt.Errorf("%w: id сообщения %d", ErrUnencodable, id)
		}
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, idSeparator), nil
}

func checkLength(token string) (string, error) {
	if len(token) > MaxTokenLength {
		return "", ErrTokenTooLong
	}
	return token, nil
}

func cutLast(s, sep string) (before, after string, ok bool) {
	idx := strings.LastIndex(s, sep)
	if idx <= 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(sep):], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
