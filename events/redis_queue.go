package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

const (
	defaultQueueKey      = "sales:completed"
	processingKeySuffix  = ":processing"
	defaultBlockDuration = 2 * time.Second
)

// RedisQueue is a durable at-least-once bus on a Redis list. Each event is
// moved atomically to a processing list while handled and removed only after
// every handler succeeded; Recover re-queues what a crashed worker left behind.
type RedisQueue struct {
	dispatcher
	client     *redis.Client
	queue      string
	processing string
	workers    int
	block      time.Duration
}

func NewRedisQueue(client *redis.Client, key string, workers int) *RedisQueue {
	if key == "" {
		key = defaultQueueKey
	}
	if workers <= 0 {
		workers = 1
	}
	return &RedisQueue{
		client:     client,
		queue:      key,
		processing: key + processingKeySuffix,
		workers:    workers,
		block:      defaultBlockDuration,
	}
}

func (q *RedisQueue) Publish(ctx context.Context, sale models.SaleCompleted) error {
	raw, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("encode sale %s: %w", sale.ID, err)
	}
	if err := q.client.LPush(ctx, q.queue, raw).Err(); err != nil {
		return fmt.Errorf("publish sale %s: %w", sale.ID, err)
	}
	return nil
}

// Recover moves unacknowledged events back onto the queue
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.RPopLPush(ctx, q.processing, q.queue).Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("recover sales queue: %w", err)
		}
		moved++
	}
}

func (q *RedisQueue) Run(ctx context.Context) error {
	if n, err := q.Recover(ctx); err != nil {
		return err
	} else if n > 0 {
		log.Printf("Sales queue: re-queued %d unacknowledged sales", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error { return q.work(gctx) })
	}
	return g.Wait()
}

func (q *RedisQueue) work(ctx context.Context) error {
	for {
		raw, err := q.client.BRPopLPush(ctx, q.queue, q.processing, q.block).Result()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			log.Printf("Sales queue: receive failed: %v", err)
			time.Sleep(q.block)
			continue
		}

		var sale models.SaleCompleted
		if err := json.Unmarshal([]byte(raw), &sale); err != nil {
			log.Printf("Sales queue: dropping undecodable event: %v", err)
			q.ack(raw)
			continue
		}

		if err := q.dispatch(context.WithoutCancel(ctx), sale); err != nil {
			// Leave it on the processing list; Recover picks it up on the next start.
			continue
		}
		q.ack(raw)
	}
}

func (q *RedisQueue) ack(raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.LRem(ctx, q.processing, 1, raw).Err(); err != nil {
		log.Printf("Sales queue: ack failed: %v", err)
	}
}
