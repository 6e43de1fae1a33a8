package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"reviewflow/internal/domain/review"
	"reviewflow/internal/errs"
	"reviewflow/internal/ports"
)

// DefaultQueueName is the list the reviewer worker pops from.
const DefaultQueueName = "review-pr-queue"

// RedisPublisher appends JSON work items to the tail of a Redis list.
type RedisPublisher struct {
	client redis.Cmdable
	queue  string
}

var _ ports.JobPublisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client redis.Cmdable, queue string) *RedisPublisher {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = DefaultQueueName
	}
	return &RedisPublisher{client: client, queue: queue}
}

func (p *RedisPublisher) Publish(ctx context.Context, item review.WorkItem) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if p.client == nil {
		return errors.New("redis client is required")
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return errs.Wrap(err, "encode work item")
	}
	if err := p.client.RPush(ctx, p.queue, raw).Err(); err != nil {
		return errs.Wrapf(err, "rpush %s", p.queue)
	}
	return nil
}
