package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPoolBoundsConcurrency runs many more calls than slots and checks the
// observed concurrency never exceeds capacity.
func TestPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	const capacity = 3
	pool := New("test_bound", capacity)

	var (
		wg      sync.WaitGroup
		current atomic.Int64
		maxSeen atomic.Int64
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), func(context.Context) error {
				n := current.Add(1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				current.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(capacity))
	assert.LessOrEqual(t, pool.Peak(), int64(capacity))
	assert.Positive(t, pool.Peak())
	assert.Zero(t, pool.InFlight())
}

func TestPoolReturnsCallbackError(t *testing.T) {
	t.Parallel()

	pool := New("test_err", 1)
	boom := errors.New("boom")
	err := pool.Do(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Zero(t, pool.InFlight())
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	pool := New("test_ctx", 1)
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := pool.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	close(hold)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestNewClampsCapacity(t *testing.T) {
	t.Parallel()

	pool := New("test_clamp", 0)
	assert.Equal(t, 1, pool.Capacity())
	assert.Equal(t, "test_clamp", pool.Name())
}

// TestPoolGaugesMatchFinalState hammers a pool from many goroutines and checks
// the exported gauges end at zero in flight and at the pool's own peak.
func TestPoolGaugesMatchFinalState(t *testing.T) {
	t.Parallel()

	const name = "test_gauges"
	pool := New(name, 8)

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	assert.Zero(t, pool.InFlight())
	assert.Equal(t, float64(0), gaugeValue(t, "catalog_pool_in_flight", name))
	assert.Equal(t, float64(pool.Peak()), gaugeValue(t, "catalog_pool_in_flight_peak", name))
}

func gaugeValue(t *testing.T, family, pool string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "pool" && lp.GetValue() == pool {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("gauge %s{pool=%q} not found", family, pool)
	return 0
}
