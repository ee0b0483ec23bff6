package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/cache"
	"github.com/LeventeLantos/listsync/internal/events"
	"github.com/LeventeLantos/listsync/internal/filter"
	"github.com/LeventeLantos/listsync/internal/lock"
	"github.com/LeventeLantos/listsync/internal/metrics"
	"github.com/LeventeLantos/listsync/internal/model"
	"github.com/LeventeLantos/listsync/internal/repo"
)

const (
	TriggerManual    = "manual"
	TriggerSync      = "sync"
	TriggerScheduled = "scheduled"
)

const itemsPageSize = 20

// Syncer is the entry point for every operation that changes list membership.
// All of them take the list's lock first, so an additive run never
// interleaves with a rebuild of the same list.
type Syncer struct {
	store      repo.Store
	reconciler *Reconciler
	locker     lock.Locker

	results cache.ResultCache
	events  events.Sink
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewSyncer(store repo.Store, reconciler *Reconciler, locker lock.Locker, logger *zap.Logger) *Syncer {
	return &Syncer{
		store:      store,
		reconciler: reconciler,
		locker:     locker,
		events:     events.NopSink{},
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Syncer) WithResults(c cache.ResultCache) *Syncer {
	s.results = c
	return s
}

func (s *Syncer) WithEvents(sink events.Sink) *Syncer {
	if sink == nil {
		sink = events.NopSink{}
	}
	s.events = sink
	return s
}

func (s *Syncer) WithMetrics(m *metrics.Metrics) *Syncer {
	s.metrics = m
	return s
}

// AddFilteredContacts appends the contacts matching spec to the list.
// Existing members are never removed.
func (s *Syncer) AddFilteredContacts(ctx context.Context, listID, tenantID int64, spec filter.Spec) (model.SyncResult, error) {
	if err := checkRequest(listID, tenantID, spec); err != nil {
		return model.SyncResult{}, err
	}

	release, err := s.locker.Acquire(ctx, lock.ListKey(listID))
	if err != nil {
		return model.SyncResult{}, err
	}
	defer release()

	done := s.metrics.TrackSync(TriggerManual)
	res, err := s.reconciler.Reconcile(ctx, s.store, listID, tenantID, spec)
	done(err)

	s.finish(ctx, TriggerManual, events.ActionAdded, listID, tenantID, res, err)
	return res, err
}

// SyncListBySavedFilter rebuilds the list from its saved filter. A missing
// list or one without a saved filter is a no-op returning zero counts.
func (s *Syncer) SyncListBySavedFilter(ctx context.Context, listID, tenantID int64) (model.SyncResult, error) {
	return s.syncList(ctx, TriggerSync, listID, tenantID)
}

// RunScheduledSync rebuilds every list that has a saved filter. A failure on
// one list is logged and the run moves on to the next.
func (s *Syncer) RunScheduledSync(ctx context.Context) {
	lists, err := s.store.ListsWithSavedFilter(ctx)
	if err != nil {
		s.logger.Error("failed to load lists with saved filter", zap.Error(err))
		return
	}

	s.logger.Info("scheduled sync started", zap.Int("lists", len(lists)))

	var synced, failed int
	for _, l := range lists {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("scheduled sync interrupted", zap.Error(err))
			break
		}

		res, err := s.syncList(ctx, TriggerScheduled, l.ID, l.TenantID)
		if err != nil {
			failed++
			s.logger.Error("failed to sync contact list",
				zap.Int64("list_id", l.ID),
				zap.Int64("tenant_id", l.TenantID),
				zap.Error(err),
			)
			continue
		}
		synced++
		s.logger.Debug("contact list synced",
			zap.Int64("list_id", l.ID),
			zap.Int("added", res.Added),
			zap.Int("duplicated", res.Duplicated),
			zap.Int("errors", res.Errors),
		)
	}

	s.logger.Info("scheduled sync finished",
		zap.Int("synced", synced),
		zap.Int("failed", failed),
	)
}

func (s *Syncer) syncList(ctx context.Context, trigger string, listID, tenantID int64) (model.SyncResult, error) {
	var res model.SyncResult
	if listID <= 0 || tenantID <= 0 {
		return res, model.NewValidationError(model.StageInput, "tenant id and contact list id are required")
	}

	release, err := s.locker.Acquire(ctx, lock.ListKey(listID))
	if err != nil {
		return res, err
	}
	defer release()

	list, err := s.store.GetList(ctx, tenantID, listID)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("contact list not found", zap.Int64("list_id", listID), zap.Int64("tenant_id", tenantID))
		return res, nil
	}
	if err != nil {
		return res, &model.QueryError{Stage: model.StageMembership, Op: "load contact list", Err: err}
	}
	if !list.HasSavedFilter() {
		s.logger.Debug("contact list has no saved filter", zap.Int64("list_id", listID))
		return res, nil
	}

	spec, err := filter.Decode(list.SavedFilter)
	if err != nil {
		return res, model.NewValidationError(model.StageInput, "stored filter is unreadable: %v", err)
	}
	if spec.IsEmpty() {
		s.logger.Debug("saved filter has no criteria", zap.Int64("list_id", listID))
		return res, nil
	}
	if err := checkRequest(listID, tenantID, spec); err != nil {
		return res, err
	}

	done := s.metrics.TrackSync(trigger)
	err = s.store.WithinTx(ctx, func(tx repo.Store) error {
		cleared, err := tx.ClearItems(ctx, tenantID, listID)
		if err != nil {
			return &model.QueryError{Stage: model.StageMembership, Op: "clear list items", Err: err}
		}
		s.logger.Debug("contact list cleared", zap.Int64("list_id", listID), zap.Int64("removed", cleared))

		res, err = s.reconciler.Reconcile(ctx, tx, listID, tenantID, spec)
		return err
	})
	done(err)
	if err != nil {
		res = model.SyncResult{}
	}

	s.finish(ctx, trigger, events.ActionSynced, listID, tenantID, res, err)
	return res, err
}

// finish records the outcome and notifies the tenant. Neither step can fail
// the operation.
func (s *Syncer) finish(ctx context.Context, trigger string, action events.Action, listID, tenantID int64, res model.SyncResult, runErr error) {
	if s.results != nil {
		last := cache.LastSync{Trigger: trigger, Result: res, At: s.now()}
		if runErr != nil {
			last.Error = runErr.Error()
		}
		if err := s.results.StoreResult(ctx, tenantID, listID, last); err != nil {
			s.logger.Warn("failed to store sync result", zap.Int64("list_id", listID), zap.Error(err))
		}
	}
	if runErr == nil {
		s.events.Publish(ctx, tenantID, events.ListEvent{Action: action, ListID: listID, Result: res})
	}
}

// SetSavedFilter stores spec as the list's saved filter, enabling the
// scheduled rebuild.
func (s *Syncer) SetSavedFilter(ctx context.Context, tenantID, listID int64, spec filter.Spec) error {
	if err := checkRequest(listID, tenantID, spec); err != nil {
		return err
	}
	raw, err := spec.Encode()
	if err != nil {
		return err
	}
	return s.store.SetSavedFilter(ctx, tenantID, listID, raw)
}

// ClearSavedFilter disables the scheduled rebuild; current items stay.
func (s *Syncer) ClearSavedFilter(ctx context.Context, tenantID, listID int64) error {
	return s.store.SetSavedFilter(ctx, tenantID, listID, nil)
}

// ListItems returns one page of the list's items. Pages start at 1.
func (s *Syncer) ListItems(ctx context.Context, tenantID, listID int64, search string, page int) (model.ItemPage, error) {
	if page < 1 {
		page = 1
	}
	if _, err := s.store.GetList(ctx, tenantID, listID); err != nil {
		return model.ItemPage{}, err
	}

	offset := (page - 1) * itemsPageSize
	items, count, err := s.store.PageItems(ctx, tenantID, listID, search, itemsPageSize, offset)
	if err != nil {
		return model.ItemPage{}, err
	}
	if items == nil {
		items = []model.ContactListItem{}
	}
	return model.ItemPage{
		Items:   items,
		Count:   count,
		HasMore: count > offset+len(items),
	}, nil
}

// LastResult returns the most recent outcome recorded for the tenant's list, or nil.
func (s *Syncer) LastResult(ctx context.Context, tenantID, listID int64) (*cache.LastSync, error) {
	if s.results == nil {
		return nil, nil
	}
	return s.results.LastResult(ctx, tenantID, listID)
}
