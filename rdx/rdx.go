package rdx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"myhomeneeds/apperr"
)

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx).Err(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return conn, nil
}

// SessionStore keeps the live session ids of issued access tokens. A token
// whose id is missing here has been signed out.
type SessionStore struct {
	Conn *redis.Client
}

func sessionKey(tokenID string) string {
	return "auth:session:" + tokenID
}

func (s SessionStore) Put(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	err := s.Conn.Set(ctx, sessionKey(tokenID), userID, ttl).Err()
	return apperr.Wrap(apperr.BackendUnavailable, "rdx.SessionStore.Put", err)
}

func (s SessionStore) Exists(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.Conn.Exists(ctx, sessionKey(tokenID)).Result()
	if err != nil {
		return false, apperr.Wrap(apperr.BackendUnavailable, "rdx.SessionStore.Exists", err)
	}
	return n > 0, nil
}

func (s SessionStore) Delete(ctx context.Context, tokenID string) error {
	err := s.Conn.Del(ctx, sessionKey(tokenID)).Err()
	return apperr.Wrap(apperr.BackendUnavailable, "rdx.SessionStore.Delete", err)
}

// EventBus publishes JSON events on Redis pub/sub channels.
type EventBus struct {
	Conn *redis.Client
}

func (b EventBus) Publish(ctx context.Context, channel string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.Conn.Publish(ctx, channel, data).Err(); err != nil {
		return apperr.Wrap(apperr.BackendUnavailable, "rdx.EventBus.Publish", err)
	}
	return nil
}

// Listen calls fn for every message on channel until ctx is done.
func (b EventBus) Listen(ctx context.Context, channel string, fn func(payload []byte)) error {
	sub := b.Conn.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return apperr.Wrap(apperr.BackendUnavailable, "rdx.EventBus.Listen", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn([]byte(msg.Payload))
		}
	}
}
