package leader

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	releaseScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `

	extendScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("PEXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `
)

// RedisLeaderElection holds leadership as a Redis key with a TTL that the holder
// keeps refreshing. The heartbeat ends when the key is lost, by expiry or release,
// or when the context passed to BecomeLeader is done.
type RedisLeaderElection struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLeaderElection(client *redis.Client, key string, ttl time.Duration) *RedisLeaderElection {
	return &RedisLeaderElection{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	acquired, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if acquired {
		go r.heartbeat(ctx, instanceID)
	}
	return acquired, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	holder, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return holder == instanceID, nil
}

// ReleaseLeadership deletes the key only if instanceID still holds it.
func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return r.client.Eval(ctx, releaseScript, []string{r.key}, instanceID).Err()
}

// extend pushes the key's expiry out by one TTL and reports whether instanceID
// still held it.
func (r *RedisLeaderElection) extend(ctx context.Context, instanceID string) (bool, error) {
	n, err := r.client.Eval(ctx, extendScript, []string{r.key},
		instanceID, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisLeaderElection) heartbeat(ctx context.Context, instanceID string) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		held, err := r.extend(callCtx, instanceID)
		cancel()
		if err != nil || !held {
			return
		}
	}
}
