package ads

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"clinicase-bot/internal/domain"
	"clinicase-bot/internal/domain/domaintest"
)

const channel int64 = -1002679848195

func newRotator(t *testing.T, settle time.Duration) (*Rotator, *domaintest.Messenger) {
	t.Helper()
	fake := domaintest.NewMessenger("clinicase_bot")
	r := NewRotator(fake, domain.NopBusinessMetrics{}, Config{
		ChannelID:   channel,
		MinInterval: time.Millisecond,
		SettleDelay: settle,
	}, zerolog.Nop())
	t.Cleanup(r.Close)
	return r, fake
}

func content(id int) domain.MessageRef {
	return domain.MessageRef{ChatID: 1, MessageID: id}
}

func TestStartPublishesImmediately(t *testing.T) {
	r, fake := newRotator(t, 0)
	c, err := r.Start(7, content(10), "promo", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, c.ID)

	require.Eventually(t, func() bool { return r.VisibleMessage() != 0 }, time.Second, 5*time.Millisecond)
	copies := fake.CallsOf("copy")
	require.Len(t, copies, 1)
	require.Equal(t, channel, copies[0].ChatID)
	require.Equal(t, 10, copies[0].From.MessageID)
	require.Equal(t, 1, fake.Visible(channel))
}

func TestStartRejectsShortInterval(t *testing.T) {
	r, _ := newRotator(t, 0)
	r.cfg.MinInterval = time.Minute
	_, err := r.Start(7, content(10), "", 30*time.Second)
	require.ErrorIs(t, err, ErrIntervalTooShort)
	require.Empty(t, r.List())
}

func TestRotationKeepsSingleVisibleAd(t *testing.T) {
	r, fake := newRotator(t, time.Millisecond)
	_, err := r.Start(7, content(10), "", 5*time.Millisecond)
	require.NoError(t, err)
	_, err = r.Start(8, content(20), "", 7*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(fake.CallsOf("copy")) >= 10 }, 2*time.Second, 5*time.Millisecond)
	r.Close()

	require.LessOrEqual(t, fake.Visible(channel), 1)
}

func TestRapidCampaignsAtQuiescence(t *testing.T) {
	r, fake := newRotator(t, 0)
	for i := 0; i < 20; i++ {
		_, err := r.Start(int64(i), content(100+i), "", time.Hour)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		return len(fake.CallsOf("copy")) == 20 && fake.Visible(channel) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.True(t, fake.IsVisible(channel, r.VisibleMessage()))
}

func TestStopDoesNotDeleteOtherCampaignAd(t *testing.T) {
	r, fake := newRotator(t, 0)
	first, err := r.Start(7, content(10), "", time.Hour)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.VisibleMessage() != 0 }, time.Second, 5*time.Millisecond)

	_, err = r.Start(8, content(20), "", time.Hour)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(fake.CallsOf("copy")) == 2 && r.VisibleMessage() != 0 && fake.Visible(channel) == 1
	}, time.Second, 5*time.Millisecond)
	visible := r.VisibleMessage()

	require.NoError(t, r.Stop(first.ID))
	require.True(t, fake.IsVisible(channel, visible))
	require.Equal(t, 1, fake.Visible(channel))

	list := r.List()
	require.Len(t, list, 1)
	require.Equal(t, int64(8), list[0].OwnerID)

	require.ErrorIs(t, r.Stop(first.ID), ErrCampaignNotFound)
}

func TestStopAllClearsSlot(t *testing.T) {
	r, fake := newRotator(t, 0)
	for i := 0; i < 3; i++ {
		_, err := r.Start(7, content(10+i), "", time.Hour)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(fake.CallsOf("copy")) == 3 }, time.Second, 5*time.Millisecond)

	require.Equal(t, 3, r.StopAll(context.Background()))
	require.Zero(t, fake.Visible(channel))
	require.Zero(t, r.VisibleMessage())
	require.Empty(t, r.List())
}

func TestStopAllWaitsForInFlightPublish(t *testing.T) {
	r, fake := newRotator(t, 0)
	var started atomic.Bool
	release := make(chan struct{})
	fake.BeforeCopy = func(domain.CopyRequest) {
		started.Store(true)
		<-release
	}
	_, err := r.Start(7, content(10), "", time.Hour)
	require.NoError(t, err)
	require.Eventually(t, started.Load, time.Second, time.Millisecond)

	done := make(chan int)
	go func() { done <- r.StopAll(context.Background()) }()
	close(release)

	require.Equal(t, 1, <-done)
	require.Zero(t, fake.Visible(channel))
}

func TestListSortedByID(t *testing.T) {
	r, _ := newRotator(t, 0)
	for i := 0; i < 3; i++ {
		_, err := r.Start(int64(i), content(i), "", time.Hour)
		require.NoError(t, err)
	}
	list := r.List()
	require.Len(t, list, 3)
	for i, c := range list {
		require.Equal(t, i+1, c.ID)
	}
}
