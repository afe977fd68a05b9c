package channels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clinicase-bot/internal/domain"
)

func TestParseHandle(t *testing.T) {
	cases := map[string]string{
		"@Example":       "example",
		"https://t.me/A": "",
		"t.me/golang":    "golang",
		"clinicase":      "clinicase",
		"bad handle":     "",
	}
	for input, expected := range cases {
		handle, err := ParseHandle(input)
		if expected == "" {
			if err == nil {
				t.Fatalf("ожидали ошибку для %s", input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if handle != expected {
			t.Fatalf("ожидали %s, получили %s", expected, handle)
		}
	}
}

type lookupStub struct {
	ids   map[string]int64
	calls int
}

func (l *lookupStub) ResolveChannel(_ context.Context, handle string) (int64, error) {
	l.calls++
	id, ok := l.ids[handle]
	if !ok {
		return 0, errors.New("chat not found")
	}
	return id, nil
}

type memCache struct {
	data map[string][]byte
}

func (m *memCache) Once(_ context.Context, key string, _ time.Duration, fn func() error) error {
	if _, ok := m.data[key]; ok {
		return nil
	}
	m.data[key] = []byte("1")
	return fn()
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func TestResolveCachesHandle(t *testing.T) {
	lookup := &lookupStub{ids: map[string]int64{"clinicase": -1001}}
	r := NewResolver(lookup, nil, time.Hour, zerolog.Nop())

	for i := 0; i < 3; i++ {
		id, err := r.Resolve(context.Background(), domain.ChannelByHandle("Clinicase"))
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if id != -1001 {
			t.Fatalf("ожидали -1001, получили %d", id)
		}
	}
	if lookup.calls != 1 {
		t.Fatalf("ожидали один запрос к API, получили %d", lookup.calls)
	}
}

func TestResolveNumericSkipsLookup(t *testing.T) {
	lookup := &lookupStub{}
	r := NewResolver(lookup, nil, time.Hour, zerolog.Nop())
	id, err := r.Resolve(context.Background(), domain.ChannelByID(-100777))
	if err != nil || id != -100777 {
		t.Fatalf("ожидали -100777, получили %d (%v)", id, err)
	}
	if lookup.calls != 0 {
		t.Fatalf("не ожидали запросов к API")
	}
}

func TestResolveUsesSharedCache(t *testing.T) {
	shared := &memCache{data: map[string][]byte{"channel:handle:clinicase": []byte("-1002")}}
	lookup := &lookupStub{}
	r := NewResolver(lookup, shared, time.Hour, zerolog.Nop())
	id, err := r.Resolve(context.Background(), domain.ChannelByHandle("clinicase"))
	if err != nil || id != -1002 {
		t.Fatalf("ожидали -1002 из redis, получили %d (%v)", id, err)
	}

	lookup.ids = map[string]int64{"otrocanal": -1003}
	if _, err := r.Resolve(context.Background(), domain.ChannelByHandle("otrocanal")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if string(shared.data["channel:handle:otrocanal"]) != "-1003" {
		t.Fatalf("ожидали запись в redis")
	}
}

func TestResolveFailure(t *testing.T) {
	r := NewResolver(&lookupStub{}, nil, time.Hour, zerolog.Nop())
	_, err := r.Resolve(context.Background(), domain.ChannelByHandle("missing_channel"))
	if !errors.Is(err, domain.ErrChannelUnresolvable) {
		t.Fatalf("ожидали ErrChannelUnresolvable, получили %v", err)
	}
	_, err = r.Resolve(context.Background(), domain.ChannelByHandle(""))
	if !errors.Is(err, domain.ErrChannelUnresolvable) {
		t.Fatalf("ожидали ErrChannelUnresolvable для пустого хэндла, получили %v", err)
	}
}
