package repo

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"clinicase-bot/internal/domain"
)

type recorderStub struct {
	mu     sync.Mutex
	events []domain.BusinessMetric
}

func (r *recorderStub) RecordBusinessMetric(_ context.Context, m domain.BusinessMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, m)
	return nil
}

func TestAsyncFlushesOnClose(t *testing.T) {
	stub := &recorderStub{}
	a := NewAsync(stub, zerolog.Nop())
	for i := 0; i < 5; i++ {
		require.NoError(t, a.RecordBusinessMetric(context.Background(), domain.BusinessMetric{Event: domain.BusinessMetricEventAdPublished}))
	}
	a.Close()

	require.Len(t, stub.events, 5)
	for _, e := range stub.events {
		require.False(t, e.OccurredAt.IsZero())
	}

	// после закрытия события молча отбрасываются
	require.NoError(t, a.RecordBusinessMetric(context.Background(), domain.BusinessMetric{Event: "late"}))
	a.Close()
	require.Len(t, stub.events, 5)
}

type batchStub struct {
	recorderStub
	batches []int
}

func (b *batchStub) RecordBusinessMetrics(_ context.Context, events []domain.BusinessMetric) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, len(events))
	b.events = append(b.events, events...)
	return nil
}

func TestAsyncUsesBatches(t *testing.T) {
	stub := &batchStub{}
	a := NewAsync(stub, zerolog.Nop())
	for i := 0; i < 100; i++ {
		require.NoError(t, a.RecordBusinessMetric(context.Background(), domain.BusinessMetric{Event: domain.BusinessMetricEventBatchPublished}))
	}
	a.Close()

	require.Len(t, stub.events, 100)
	total := 0
	for _, n := range stub.batches {
		require.LessOrEqual(t, n, maxBatch)
		total += n
	}
	require.Equal(t, 100, total)
}
