// Package dispatcher bounds how many units of work of one kind run at once.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// Pool is a counting semaphore that admits at most Capacity concurrent calls
// to Do. Callers beyond capacity block until a slot frees or their context
// ends. Pools are independent: work in one never holds a slot in another.
type Pool struct {
	name     string
	capacity int64
	sem      *semaphore.Weighted

	// mu orders the counters with their gauge writes, so the exported
	// values always match the last state change.
	mu       sync.Mutex
	inFlight int64
	peak     int64
}

// New creates a Pool. Capacities below one are raised to one.
func New(name string, capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		name:     name,
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Do runs fn while holding one slot of the pool.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire %s slot: %w", p.name, err)
	}
	defer p.sem.Release(1)

	p.enter()
	defer p.leave()

	return fn(ctx)
}

// Name returns the pool label used in logs and metrics.
func (p *Pool) Name() string {
	return p.name
}

// Capacity returns the maximum number of concurrent calls.
func (p *Pool) Capacity() int {
	return int(p.capacity)
}

// InFlight returns the number of calls currently holding a slot.
func (p *Pool) InFlight() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Peak returns the highest number of concurrent calls observed.
func (p *Pool) Peak() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

func (p *Pool) enter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight++
	if p.inFlight > p.peak {
		p.peak = p.inFlight
		metrics.SetInFlightPeak(p.name, p.peak)
	}
	metrics.SetInFlight(p.name, p.inFlight)
}

func (p *Pool) leave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--
	metrics.SetInFlight(p.name, p.inFlight)
}
