package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "txengine:idempotency:"

type Options struct {
	KeyPrefix  string
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultOptions keeps the lock alive well past one create round-trip and
// retries for roughly ten seconds before giving up.
func DefaultOptions() Options {
	return Options{
		KeyPrefix:  defaultKeyPrefix,
		Expiry:     10 * time.Second,
		Tries:      100,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Locker implements ports.KeyLocker with the RedLock algorithm so that
// processes sharing one store also share idempotency critical sections.
type Locker struct {
	redsync *redsync.Redsync
	options Options
	logger  *slog.Logger
}

func NewLocker(client redis.UniversalClient, options Options, logger *slog.Logger) *Locker {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultOptions()
	if strings.TrimSpace(options.KeyPrefix) == "" {
		options.KeyPrefix = defaults.KeyPrefix
	}
	if options.Expiry <= 0 {
		options.Expiry = defaults.Expiry
	}
	if options.Tries <= 0 {
		options.Tries = defaults.Tries
	}
	if options.RetryDelay <= 0 {
		options.RetryDelay = defaults.RetryDelay
	}
	return &Locker{
		redsync: redsync.New(goredis.NewPool(client)),
		options: options,
		logger:  logger,
	}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domainerrors.ErrIdempotencyKeyRequired
	}

	name := l.options.KeyPrefix + key
	mutex := l.redsync.NewMutex(
		name,
		redsync.WithExpiry(l.options.Expiry),
		redsync.WithTries(l.options.Tries),
		redsync.WithRetryDelay(l.options.RetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire idempotency lock %q: %w", name, err)
	}

	return func() {
		// Release must not depend on the caller's context being alive.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(releaseCtx); err != nil || !ok {
			l.logger.Warn("idempotency lock release failed",
				"event", "idempotency_lock_release_failed",
				"module", "finance-core/transaction-service",
				"layer", "adapter",
				"lock", name,
				"released", ok,
				"error", errString(err),
			)
		}
	}, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
