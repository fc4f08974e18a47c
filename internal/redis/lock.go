package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
	// ErrLockUnavailable means Redis could not be asked at all; callers may
	// proceed without the lock when another mechanism guarantees exclusion.
	ErrLockUnavailable = errors.New("slot lock backend unavailable")
)

const slotLockPrefix = "clinic:lock:slot:"

// Locker is used by the booking path to turn away concurrent claims on the
// same slot before they queue on the database row lock.
type Locker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

type slotLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisSlotLocker returns a Locker holding one short lived key per slot.
// fn runs with a deadline of ttl so the key never outlives the claim.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) Locker {
	return &slotLocker{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "slot_lock").Logger(),
	}
}

func SlotLockKey(slotID uuid.UUID) string {
	return slotLockPrefix + slotID.String()
}

func (l *slotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	key := SlotLockKey(slotID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()

		released, err := l.release(releaseCtx, key, token)
		switch {
		case err != nil:
			l.logger.Warn().Err(err).Str("key", key).Msg("slot lock release failed, key expires on its own")
		case !released:
			l.logger.Warn().Str("key", key).Dur("ttl", l.ttl).Msg("slot lock expired before release")
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

// unlockScript deletes the key only while it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *slotLocker) release(ctx context.Context, key, token string) (bool, error) {
	n, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("release slot lock: %w", err)
	}
	return n == 1, nil
}
