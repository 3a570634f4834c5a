package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

func completedSale(id string) models.SaleCompleted {
	return models.SaleCompleted{ID: id, ResellerID: "r-1", Amount: 10, Status: models.SaleStatusCompleted}
}

func TestMemoryBusDeliversToEverySubscriber(t *testing.T) {
	bus := NewMemoryBus(2, 8)

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	wg.Add(4)
	record := func(_ context.Context, sale models.SaleCompleted) error {
		mu.Lock()
		seen[sale.ID]++
		mu.Unlock()
		wg.Done()
		return nil
	}
	bus.Subscribe(record)
	bus.Subscribe(record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()

	require.NoError(t, bus.Publish(context.Background(), completedSale("s-1")))
	require.NoError(t, bus.Publish(context.Background(), completedSale("s-2")))
	wg.Wait()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, map[string]int{"s-1": 2, "s-2": 2}, seen)
}

func TestMemoryBusPublishFailsWhenFull(t *testing.T) {
	bus := NewMemoryBus(1, 1)
	require.NoError(t, bus.Publish(context.Background(), completedSale("s-1")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := bus.Publish(ctx, completedSale("s-2"))
	assert.ErrorIs(t, err, ErrBusFull)
}

func TestDispatchRecoversPanicsAndRunsRemainingHandlers(t *testing.T) {
	var d dispatcher
	failing := errors.New("store down")
	var ran []string

	d.Subscribe(func(context.Context, models.SaleCompleted) error { panic("boom") })
	d.Subscribe(func(context.Context, models.SaleCompleted) error {
		ran = append(ran, "second")
		return failing
	})
	d.Subscribe(func(context.Context, models.SaleCompleted) error {
		ran = append(ran, "third")
		return nil
	})

	err := d.dispatch(context.Background(), completedSale("s-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
	assert.Equal(t, []string{"second", "third"}, ran)
}

func TestMemoryBusFinishesStartedSaleOnShutdown(t *testing.T) {
	bus := NewMemoryBus(1, 1)
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerCtxErr error
	bus.Subscribe(func(ctx context.Context, _ models.SaleCompleted) error {
		close(started)
		<-release
		handlerCtxErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()
	require.NoError(t, bus.Publish(context.Background(), completedSale("s-1")))

	<-started
	cancel()
	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, handlerCtxErr, "in-flight sale keeps a live context")
}

func TestMemoryBusRetriesFailedDispatch(t *testing.T) {
	bus := NewMemoryBus(1, 1)
	bus.retryDelay = time.Millisecond

	var mu sync.Mutex
	calls := 0
	delivered := make(chan struct{})
	bus.Subscribe(func(context.Context, models.SaleCompleted) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("store down")
		}
		close(delivered)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()
	require.NoError(t, bus.Publish(context.Background(), completedSale("s-1")))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("sale was not redelivered")
	}
	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
}

func TestMemoryBusGivesUpAfterMaxAttempts(t *testing.T) {
	bus := NewMemoryBus(1, 2)
	bus.retryDelay = time.Millisecond

	var mu sync.Mutex
	calls := map[string]int{}
	next := make(chan struct{})
	bus.Subscribe(func(_ context.Context, sale models.SaleCompleted) error {
		mu.Lock()
		defer mu.Unlock()
		calls[sale.ID]++
		if sale.ID == "s-2" {
			close(next)
			return nil
		}
		return errors.New("store down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()
	require.NoError(t, bus.Publish(context.Background(), completedSale("s-1")))
	require.NoError(t, bus.Publish(context.Background(), completedSale("s-2")))

	select {
	case <-next:
	case <-time.After(2 * time.Second):
		t.Fatal("worker stuck on failing sale")
	}
	mu.Lock()
	assert.Equal(t, defaultMemoryAttempts, calls["s-1"])
	mu.Unlock()
}
