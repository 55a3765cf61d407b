package memory

import (
	"context"
	"strings"
	"sync"

	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"

	"github.com/moby/locker"
)

// KeyLocker is an in-process per-key mutex. Lock entries are reference
// counted by moby/locker and released once no caller holds or waits on them.
type KeyLocker struct {
	locks *locker.Locker
}

func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: locker.New()}
}

func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domainerrors.ErrIdempotencyKeyRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.locks.Lock(key)
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = l.locks.Unlock(key)
		})
	}, nil
}
