package rdx

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"myhomeneeds/apperr"
)

func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestSessionStoreReportsBackendUnavailable(t *testing.T) {
	conn := unreachable()
	defer conn.Close()
	s := SessionStore{Conn: conn}
	ctx := context.Background()

	_, err := s.Exists(ctx, "jti")
	assert.True(t, apperr.IsKind(err, apperr.BackendUnavailable))
	assert.True(t, apperr.Retryable(err))
	assert.True(t, apperr.IsKind(s.Put(ctx, "jti", "u1", time.Minute), apperr.BackendUnavailable))
	assert.True(t, apperr.IsKind(s.Delete(ctx, "jti"), apperr.BackendUnavailable))
}

func TestPublishRejectsUnencodableEvent(t *testing.T) {
	err := EventBus{}.Publish(context.Background(), "order-events", make(chan int))
	assert.Error(t, err)
	assert.False(t, apperr.Retryable(err))
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "auth:session:abc", sessionKey("abc"))
}
