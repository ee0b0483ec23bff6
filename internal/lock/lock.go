// Package lock serializes work on a single contact list across the manual and
// scheduled sync paths.
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/LeventeLantos/listsync/internal/model"
)

// Locker hands out exclusive, non-blocking leases keyed by string. Acquire
// returns model.ErrListBusy when the key is already held.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func ListKey(listID int64) string {
	return fmt.Sprintf("listsync:lock:list:%d", listID)
}

// KeyedMutex is the in-process Locker used when Redis is not configured.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: make(map[string]struct{})}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, busy := k.held[key]; busy {
		return nil, model.ErrListBusy
	}
	k.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.held, key)
			k.mu.Unlock()
		})
	}, nil
}
