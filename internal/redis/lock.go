package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token, so a
// holder whose lock expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func paymentLockKey(serviceRequestID string) string {
	return fmt.Sprintf("lock:payment:%s", serviceRequestID)
}

// AcquirePaymentLock attempts to acquire the initiation lock for a service request.
// Returns the lock token and true if the lock was acquired, false if already held.
func (s *LockStore) AcquirePaymentLock(ctx context.Context, serviceRequestID string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()

	ok, err := s.client.SetNX(ctx, paymentLockKey(serviceRequestID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// ReleasePaymentLock releases the lock if token still owns it.
func (s *LockStore) ReleasePaymentLock(ctx context.Context, serviceRequestID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{paymentLockKey(serviceRequestID)}, token).Err()
}
