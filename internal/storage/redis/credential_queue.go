package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const stockKeyPrefix = "stock:"

// credentialQueueRedis — FIFO-очередь на Redis-списках: RPUSH в хвост,
// LPOP с головы. LPOP атомарен на стороне сервера, двойная выдача
// исключена даже при нескольких процессах.
type credentialQueueRedis struct {
	client *redis.Client
}

// NewCredentialQueue возвращает Redis-очередь учётных данных.
func NewCredentialQueue(client *redis.Client) domain.CredentialQueue {
	return &credentialQueueRedis{client: client}
}

func stockKey(productID string) string {
	return stockKeyPrefix + productID
}

func (q *credentialQueueRedis) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// Push добавляет записи в хвост очереди и возвращает новую длину.
func (q *credentialQueueRedis) Push(productID string, credentials []string) (int, error) {
	ctx, cancel := q.opCtx()
	defer cancel()

	values := make([]interface{}, 0, len(credentials))
	for _, cred := range credentials {
		values = append(values, cred)
	}
	n, err := q.client.RPush(ctx, stockKey(productID), values...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to push credentials to redis: %w", err)
	}
	return int(n), nil
}

// Pop атомарно снимает голову очереди.
func (q *credentialQueueRedis) Pop(productID string) (string, bool, error) {
	ctx, cancel := q.opCtx()
	defer cancel()

	cred, err := q.client.LPop(ctx, stockKey(productID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to pop credential from redis: %w", err)
	}
	return cred, true, nil
}

// PushFront возвращает записи в голову очереди с сохранением порядка.
// LPUSH ставит каждый аргумент в голову, поэтому записи передаются
// в обратном порядке.
func (q *credentialQueueRedis) PushFront(productID string, credentials []string) error {
	if len(credentials) == 0 {
		return nil
	}

	ctx, cancel := q.opCtx()
	defer cancel()

	values := make([]interface{}, 0, len(credentials))
	for i := len(credentials) - 1; i >= 0; i-- {
		values = append(values, credentials[i])
	}
	if err := q.client.LPush(ctx, stockKey(productID), values...).Err(); err != nil {
		return fmt.Errorf("failed to push credentials back to redis: %w", err)
	}
	return nil
}

func (q *credentialQueueRedis) Len(productID string) (int, error) {
	ctx, cancel := q.opCtx()
	defer cancel()

	n, err := q.client.LLen(ctx, stockKey(productID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length from redis: %w", err)
	}
	return int(n), nil
}

// Lens возвращает длины всех непустых очередей.
func (q *credentialQueueRedis) Lens() (map[string]int, error) {
	ctx, cancel := q.opCtx()
	defer cancel()

	lens := make(map[string]int)
	iter := q.client.Scan(ctx, 0, stockKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		n, err := q.client.LLen(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to get queue length from redis: %w", err)
		}
		if n > 0 {
			lens[strings.TrimPrefix(key, stockKeyPrefix)] = int(n)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan stock keys in redis: %w", err)
	}
	return lens, nil
}

var _ domain.CredentialQueue = (*credentialQueueRedis)(nil)
