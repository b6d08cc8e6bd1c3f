// Package redisqueue implements queue.Backend over Redis: list operations
// (BLPOP/BRPOP) for FIFO/LIFO, a sorted set with a composite priority and
// sequence score for Priority, a shared queue_metadata hash, and a
// queue_events pub/sub channel so every client process converges on the
// same queue set without polling.
//
// Grounded on mindtrace/jobs/redis/client.py (original_source) and on the
// go-redis usage in the pack's job-queue examples
// (flyingrobots-go-redis-work-queue, salgue441-task-queue,
// Geocoder89-event-hub, Nuulab-GoFlow, jordigilh-kubernaut).
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cuemby/clustercore/pkg/log"
	"github.com/cuemby/clustercore/pkg/queue"
)

const (
	metadataKey   = "queue_metadata"
	eventsChannel = "queue_events"
	lockKey       = "queue_lock"
	lockTimeout   = 5 * time.Second
)

func listKey(name string) string { return "queue:" + name }
func itemKey(name, member string) string { return "queue:" + name + ":item:" + member }
func seqKey(name string) string { return "queue:" + name + ":seq" }

type event struct {
	Action string     `json:"action"` // "declare" | "delete"
	Name   string     `json:"name"`
	Type   queue.Type `json:"type,omitempty"`
}

// Backend is the Redis-backed queue.Backend.
type Backend struct {
	client *redis.Client

	mu    sync.RWMutex
	types map[string]queue.Type

	cancel context.CancelFunc
	done   chan struct{}
}

// New connects to uri (redis://host:port/db) and starts the background
// subscriber that keeps the local queue-type cache converged with the rest
// of the cluster.
func New(uri string) (*Backend, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("redisqueue: parse %s: %w", uri, err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		client: client,
		types:  make(map[string]queue.Type),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := b.hydrate(ctx); err != nil {
		cancel()
		return nil, err
	}
	go b.listen(ctx)

	return b, nil
}

func (b *Backend) hydrate(ctx context.Context) error {
	all, err := b.client.HGetAll(ctx, metadataKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redisqueue: hydrate metadata: %w", err)
	}
	b.mu.Lock()
	for name, t := range all {
		b.types[name] = queue.Type(t)
	}
	b.mu.Unlock()
	return nil
}

func (b *Backend) listen(ctx context.Context) {
	defer close(b.done)
	sub := b.client.Subscribe(ctx, eventsChannel)
	defer sub.Close()
	ch := sub.Channel()
	logger := log.WithComponent("redisqueue")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev event
			if err := unmarshalEvent(msg.Payload, &ev); err != nil {
				logger.Warn().Err(err).Msg("discarding malformed queue event")
				continue
			}
			b.mu.Lock()
			switch ev.Action {
			case "declare":
				b.types[ev.Name] = ev.Type
			case "delete":
				delete(b.types, ev.Name)
			}
			b.mu.Unlock()
		}
	}
}

func (b *Backend) withLock(ctx context.Context, fn func() error) error {
	token := uuid.NewString()
	ok, err := b.client.SetNX(ctx, lockKey, token, lockTimeout).Result()
	if err != nil {
		return fmt.Errorf("redisqueue: acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("redisqueue: %s held by another client", lockKey)
	}
	defer releaseLock(ctx, b.client, token)
	return fn()
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

func releaseLock(ctx context.Context, client *redis.Client, token string) {
	releaseScript.Run(ctx, client, []string{lockKey}, token)
}

func marshalEvent(ev event) ([]byte, error) {
	return json.Marshal(ev)
}

func unmarshalEvent(payload string, ev *event) error {
	return json.Unmarshal([]byte(payload), ev)
}

func (b *Backend) publish(ctx context.Context, ev event) error {
	payload, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, eventsChannel, payload).Err()
}

func (b *Backend) DeclareQueue(ctx context.Context, name string, t queue.Type) error {
	b.mu.RLock()
	existing, ok := b.types[name]
	b.mu.RUnlock()
	if ok {
		if existing != t {
			return queue.ErrQueueExists
		}
		return nil
	}

	return b.withLock(ctx, func() error {
		if err := b.client.HSet(ctx, metadataKey, name, string(t)).Err(); err != nil {
			return fmt.Errorf("redisqueue: declare %s: %w", name, err)
		}
		b.mu.Lock()
		b.types[name] = t
		b.mu.Unlock()
		return b.publish(ctx, event{Action: "declare", Name: name, Type: t})
	})
}

func (b *Backend) DeleteQueue(ctx context.Context, name string) error {
	return b.withLock(ctx, func() error {
		if _, err := b.Clean(ctx, name); err != nil && err != queue.ErrNoQueue {
			return err
		}
		if err := b.client.HDel(ctx, metadataKey, name).Err(); err != nil {
			return fmt.Errorf("redisqueue: delete %s: %w", name, err)
		}
		b.mu.Lock()
		delete(b.types, name)
		b.mu.Unlock()
		return b.publish(ctx, event{Action: "delete", Name: name})
	})
}

func (b *Backend) queueType(name string) (queue.Type, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.types[name]
	if !ok {
		return "", queue.ErrNoQueue
	}
	return t, nil
}

func (b *Backend) Push(ctx context.Context, name string, data []byte, priority *int) error {
	t, err := b.queueType(name)
	if err != nil {
		return err
	}

	if t == queue.Priority {
		p := 0
		if priority != nil {
			p = *priority
		}
		seq, err := b.client.Incr(ctx, seqKey(name)).Result()
		if err != nil {
			return fmt.Errorf("redisqueue: push %s: %w", name, err)
		}
		member := uuid.NewString()
		score := float64(p)*1e9 - float64(seq)
		if err := b.client.Set(ctx, itemKey(name, member), data, 0).Err(); err != nil {
			return fmt.Errorf("redisqueue: push %s: %w", name, err)
		}
		return b.client.ZAdd(ctx, listKey(name), redis.Z{Score: score, Member: member}).Err()
	}

	return b.client.RPush(ctx, listKey(name), data).Err()
}

func (b *Backend) Pop(ctx context.Context, name string, block bool, timeout time.Duration) ([]byte, error) {
	t, err := b.queueType(name)
	if err != nil {
		return nil, err
	}

	if t == queue.Priority {
		return b.popPriority(ctx, name, block, timeout)
	}

	if !block {
		var res *redis.StringCmd
		if t == queue.LIFO {
			res = b.client.RPop(ctx, listKey(name))
		} else {
			res = b.client.LPop(ctx, listKey(name))
		}
		data, err := res.Bytes()
		if err == redis.Nil {
			return nil, queue.ErrEmpty
		}
		if err != nil {
			return nil, fmt.Errorf("redisqueue: pop %s: %w", name, err)
		}
		return data, nil
	}

	waitTimeout := timeout
	if waitTimeout <= 0 {
		waitTimeout = 0 // go-redis: 0 means block indefinitely
	}
	var res *redis.StringSliceCmd
	if t == queue.LIFO {
		res = b.client.BRPop(ctx, waitTimeout, listKey(name))
	} else {
		res = b.client.BLPop(ctx, waitTimeout, listKey(name))
	}
	vals, err := res.Result()
	if err == redis.Nil {
		return nil, queue.ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redisqueue: pop %s: %w", name, err)
	}
	// vals[0] is the key name, vals[1] is the popped value.
	return []byte(vals[1]), nil
}

func (b *Backend) popPriority(ctx context.Context, name string, block bool, timeout time.Duration) ([]byte, error) {
	var member string
	if block {
		waitTimeout := timeout
		if waitTimeout <= 0 {
			waitTimeout = 0
		}
		res, err := b.client.BZPopMax(ctx, waitTimeout, listKey(name)).Result()
		if err == redis.Nil {
			return nil, queue.ErrEmpty
		}
		if err != nil {
			return nil, fmt.Errorf("redisqueue: pop %s: %w", name, err)
		}
		member = fmt.Sprint(res.Member)
	} else {
		res, err := b.client.ZPopMax(ctx, listKey(name), 1).Result()
		if err != nil {
			return nil, fmt.Errorf("redisqueue: pop %s: %w", name, err)
		}
		if len(res) == 0 {
			return nil, queue.ErrEmpty
		}
		member = fmt.Sprint(res[0].Member)
	}

	key := itemKey(name, member)
	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redisqueue: fetch item for %s: %w", name, err)
	}
	b.client.Del(ctx, key)
	return data, nil
}

func (b *Backend) QSize(ctx context.Context, name string) (int, error) {
	t, err := b.queueType(name)
	if err != nil {
		return 0, err
	}
	if t == queue.Priority {
		n, err := b.client.ZCard(ctx, listKey(name)).Result()
		return int(n), err
	}
	n, err := b.client.LLen(ctx, listKey(name)).Result()
	return int(n), err
}

func (b *Backend) Clean(ctx context.Context, name string) (int, error) {
	t, err := b.queueType(name)
	if err != nil {
		return 0, err
	}

	if t == queue.Priority {
		members, err := b.client.ZRange(ctx, listKey(name), 0, -1).Result()
		if err != nil {
			return 0, fmt.Errorf("redisqueue: clean %s: %w", name, err)
		}
		for _, m := range members {
			b.client.Del(ctx, itemKey(name, m))
		}
		if err := b.client.Del(ctx, listKey(name)).Err(); err != nil {
			return 0, fmt.Errorf("redisqueue: clean %s: %w", name, err)
		}
		return len(members), nil
	}

	n, err := b.client.LLen(ctx, listKey(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("redisqueue: clean %s: %w", name, err)
	}
	if err := b.client.Del(ctx, listKey(name)).Err(); err != nil {
		return 0, fmt.Errorf("redisqueue: clean %s: %w", name, err)
	}
	return int(n), nil
}

func (b *Backend) Close() error {
	b.cancel()
	<-b.done
	return b.client.Close()
}
