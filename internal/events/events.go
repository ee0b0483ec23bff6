// Package events relays list changes to browser clients. Delivery is fire and
// forget: publish failures are logged, never returned.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/model"
)

type Action string

const (
	ActionAdded  Action = "added"
	ActionSynced Action = "synced"
)

type ListEvent struct {
	Action Action           `json:"action"`
	ListID int64            `json:"contactListId"`
	Result model.SyncResult `json:"result"`
}

type Sink interface {
	Publish(ctx context.Context, tenantID int64, ev ListEvent)
}

func Channel(tenantID int64) string {
	return fmt.Sprintf("company-%d-contactlistitem", tenantID)
}

type NopSink struct{}

func (NopSink) Publish(context.Context, int64, ListEvent) {}

type RedisSink struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisSink(rdb *redis.Client, logger *zap.Logger) *RedisSink {
	return &RedisSink{rdb: rdb, logger: logger}
}

func (s *RedisSink) Publish(ctx context.Context, tenantID int64, ev ListEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("failed to encode list event", zap.Error(err))
		return
	}
	if err := s.rdb.Publish(ctx, Channel(tenantID), b).Err(); err != nil {
		s.logger.Warn("failed to publish list event",
			zap.Int64("tenant_id", tenantID),
			zap.Int64("list_id", ev.ListID),
			zap.Error(err),
		)
	}
}
