// Package events carries SaleCompleted notifications from checkout to the
// commission engine. Delivery is at-least-once; handlers must be idempotent.
package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

var ErrBusFull = errors.New("sales event queue is full")

// Handler consumes one sale
type Handler func(ctx context.Context, sale models.SaleCompleted) error

// SalesEventBus is the publish/subscribe boundary between checkout and the
// affiliate engine.
type SalesEventBus interface {
	Publish(ctx context.Context, sale models.SaleCompleted) error
	Subscribe(h Handler)
	// Run consumes events until ctx is cancelled. Events already picked up
	// are processed to completion before Run returns.
	Run(ctx context.Context) error
}

type dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

func (d *dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// dispatch runs every handler; it reports the first handler error but still
// runs the rest.
func (d *dispatcher) dispatch(ctx context.Context, sale models.SaleCompleted) error {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers...)
	d.mu.RUnlock()

	var first error
	for _, h := range handlers {
		if err := safeCall(ctx, h, sale); err != nil {
			log.Printf("Sales bus: handler failed for sale %s: %v", sale.ID, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func safeCall(ctx context.Context, h Handler, sale models.SaleCompleted) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, sale)
}

const (
	defaultMemoryAttempts   = 3
	defaultMemoryRetryDelay = time.Second
)

// MemoryBus is an in-process bus backed by a buffered channel and a fixed
// worker pool. A failed dispatch is retried in place with a doubling delay;
// after maxAttempts the sale is logged and dropped.
type MemoryBus struct {
	dispatcher
	queue       chan models.SaleCompleted
	workers     int
	maxAttempts int
	retryDelay  time.Duration
}

func NewMemoryBus(workers, queueSize int) *MemoryBus {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &MemoryBus{
		queue:       make(chan models.SaleCompleted, queueSize),
		workers:     workers,
		maxAttempts: defaultMemoryAttempts,
		retryDelay:  defaultMemoryRetryDelay,
	}
}

// Publish enqueues a sale. It blocks while the queue is full until ctx ends.
func (b *MemoryBus) Publish(ctx context.Context, sale models.SaleCompleted) error {
	select {
	case b.queue <- sale:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish sale %s: %w", sale.ID, ErrBusFull)
	}
}

func (b *MemoryBus) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < b.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case sale := <-b.queue:
					b.deliver(gctx, sale)
				}
			}
		})
	}
	return g.Wait()
}

// deliver dispatches one sale until it succeeds or runs out of attempts. An
// attempt in progress is never cut short; shutdown only stops further retries.
func (b *MemoryBus) deliver(ctx context.Context, sale models.SaleCompleted) {
	delay := b.retryDelay
	for attempt := 1; ; attempt++ {
		err := b.dispatch(context.WithoutCancel(ctx), sale)
		if err == nil {
			return
		}
		if attempt >= b.maxAttempts {
			log.Printf("Sales bus: giving up on sale %s after %d attempts: %v", sale.ID, attempt, err)
			return
		}
		select {
		case <-ctx.Done():
			log.Printf("Sales bus: shutdown before retrying sale %s: %v", sale.ID, err)
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}
