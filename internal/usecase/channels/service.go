package channels

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinicase-bot/internal/domain"
)

// ErrHandleInvalid: строка не похожа на хэндл канала.
var ErrHandleInvalid = errors.New("некорректный хэндл")

var handleRegex = regexp.MustCompile(`(?i)^(?:@|https?://t\.me/|t\.me/)?([a-z][a-z0-9_]{4,31})$`)

// HandleLookup переводит публичный хэндл в id канала.
type HandleLookup interface {
	ResolveChannel(ctx context.Context, handle string) (int64, error)
}

// Resolver кэширует соответствие хэндл → id. Кэш не инвалидируется.
type Resolver struct {
	lookup HandleLookup
	shared domain.Cache
	ttl    time.Duration
	log    zerolog.Logger

	mu    sync.RWMutex
	known map[string]int64
}

// NewResolver создаёт резолвер. shared может быть nil, тогда кэш только в памяти процесса.
func NewResolver(lookup HandleLookup, shared domain.Cache, ttl time.Duration, log zerolog.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		shared: shared,
		ttl:    ttl,
		log:    log,
		known:  make(map[string]int64),
	}
}

// ParseHandle приводит ввод к каноничному хэндлу.
func ParseHandle(input string) (string, error) {
	matches := handleRegex.FindStringSubmatch(strings.TrimSpace(input))
	if len(matches) < 2 {
		return "", ErrHandleInvalid
	}
	return strings.ToLower(matches[1]), nil
}

// Resolve возвращает числовой id канала.
func (r *Resolver) Resolve(ctx context.Context, channel domain.ChannelIdentity) (int64, error) {
	if channel.Resolved() {
		return channel.ID, nil
	}
	handle, err := ParseHandle(channel.Handle)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrChannelUnresolvable, channel.Handle)
	}

	r.mu.RLock()
	id, ok := r.known[handle]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	if id, ok := r.fromShared(ctx, handle); ok {
		r.remember(handle, id)
		return id, nil
	}

	id, err = r.lookup.ResolveChannel(ctx, handle)
	if err != nil {
		return 0, fmt.Errorf("%w: @%s: %v", domain.ErrChannelUnresolvable, handle, err)
	}
	r.remember(handle, id)
	if r.shared != nil {
		if err := r.shared.Set(ctx, sharedKey(handle), []byte(strconv.FormatInt(id, 10)), r.ttl); err != nil {
			r.log.Warn().Err(err).Str("handle", handle).Msg("не удалось сохранить канал в redis")
		}
	}
	r.log.Debug().Str("handle", handle).Int64("channel_id", id).Msg("канал закэширован")
	return id, nil
}

func (r *Resolver) fromShared(ctx context.Context, handle string) (int64, bool) {
	if r.shared == nil {
		return 0, false
	}
	raw, ok, err := r.shared.Get(ctx, sharedKey(handle))
	if err != nil {
		r.log.Warn().Err(err).Str("handle", handle).Msg("не удалось прочитать канал из redis")
		return 0, false
	}
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (r *Resolver) remember(handle string, id int64) {
	r.mu.Lock()
	r.known[handle] = id
	r.mu.Unlock()
}

func sharedKey(handle string) string {
	return "channel:handle:" + handle
}
