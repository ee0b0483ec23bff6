package cache

import (
	"context"
	"sync"
	"time"

	"github.com/LeventeLantos/listsync/internal/model"
)

// LastSync is the outcome of the most recent add or rebuild on a list.
type LastSync struct {
	Trigger string           `json:"trigger"`
	Result  model.SyncResult `json:"result"`
	Error   string           `json:"error,omitempty"`
	At      time.Time        `json:"at"`
}

type ResultCache interface {
	StoreResult(ctx context.Context, tenantID, listID int64, last LastSync) error
	// LastResult returns nil without error when nothing was recorded.
	LastResult(ctx context.Context, tenantID, listID int64) (*LastSync, error)
}

type listRef struct{ tenantID, listID int64 }

// MemoryCache keeps results in process; used when Redis is disabled.
type MemoryCache struct {
	mu     sync.RWMutex
	byList map[listRef]LastSync
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{byList: make(map[listRef]LastSync)}
}

func (c *MemoryCache) StoreResult(_ context.Context, tenantID, listID int64, last LastSync) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	last.At = last.At.UTC()
	c.byList[listRef{tenantID, listID}] = last
	return nil
}

func (c *MemoryCache) LastResult(_ context.Context, tenantID, listID int64) (*LastSync, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.byList[listRef{tenantID, listID}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}
