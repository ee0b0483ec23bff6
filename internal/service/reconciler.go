package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/dedup"
	"github.com/LeventeLantos/listsync/internal/filter"
	"github.com/LeventeLantos/listsync/internal/metrics"
	"github.com/LeventeLantos/listsync/internal/model"
	"github.com/LeventeLantos/listsync/internal/repo"
	"github.com/LeventeLantos/listsync/internal/validator"
)

// Reconciler appends filter matches to a contact list, skipping contacts the
// list already holds.
type Reconciler struct {
	store     repo.Store
	evaluator *Evaluator
	validator validator.NumberValidator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewReconciler(store repo.Store, evaluator *Evaluator, v validator.NumberValidator, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		evaluator: evaluator,
		validator: v,
		logger:    logger,
	}
}

func (r *Reconciler) WithMetrics(m *metrics.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// AddFilteredContacts runs Reconcile against the reconciler's own store.
func (r *Reconciler) AddFilteredContacts(ctx context.Context, listID, tenantID int64, spec filter.Spec) (model.SyncResult, error) {
	return r.Reconcile(ctx, r.store, listID, tenantID, spec)
}

// Reconcile inserts every candidate matched by spec that is not yet a member
// of the list. Each candidate lands in exactly one of the result counters;
// failures of a single candidate never abort the run.
func (r *Reconciler) Reconcile(ctx context.Context, st repo.Store, listID, tenantID int64, spec filter.Spec) (model.SyncResult, error) {
	var res model.SyncResult

	if err := checkRequest(listID, tenantID, spec); err != nil {
		return res, err
	}

	candidates, err := r.evaluator.Evaluate(ctx, st, tenantID, spec)
	if err != nil {
		return res, err
	}
	if len(candidates) == 0 {
		return res, nil
	}

	members, err := st.ListMembers(ctx, tenantID, listID)
	if err != nil {
		return res, &model.QueryError{Stage: model.StageMembership, Op: "load list members", Err: err}
	}
	keys := make([]dedup.Key, 0, len(members))
	for _, m := range members {
		keys = append(keys, dedup.KeyOf(m.Number, m.Email))
	}
	index := dedup.NewIndex(keys...)

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		c := &candidates[i]
		if index.Contains(dedup.KeyOf(c.Number, c.Email)) {
			res.Duplicated++
			continue
		}

		if err := r.addCandidate(ctx, st, listID, tenantID, c, index); err != nil {
			res.Errors++
			r.logger.Warn("failed to add contact to list",
				zap.Int64("list_id", listID),
				zap.Int64("tenant_id", tenantID),
				zap.Error(err),
			)
			continue
		}
		res.Added++
	}

	r.metrics.RecordResult(res)
	r.logger.Info("contact list reconciled",
		zap.Int64("list_id", listID),
		zap.Int64("tenant_id", tenantID),
		zap.Int("candidates", len(candidates)),
		zap.Int("added", res.Added),
		zap.Int("duplicated", res.Duplicated),
		zap.Int("errors", res.Errors),
	)
	return res, nil
}

// addCandidate inserts c and then checks its number. Only the insert can fail
// the candidate; a rejected number leaves the item stored as unreachable.
func (r *Reconciler) addCandidate(ctx context.Context, st repo.Store, listID, tenantID int64, c *model.Contact, index *dedup.Index) error {
	item := &model.ContactListItem{
		ContactListID: listID,
		TenantID:      tenantID,
		Name:          c.Name,
		Number:        c.Number,
		Email:         c.Email,
	}
	if err := st.InsertItem(ctx, item); err != nil {
		return &model.CandidateError{ContactID: c.ID, Err: err}
	}
	index.Add(dedup.KeyOf(c.Number, c.Email))

	if r.validator == nil {
		return nil
	}

	number, err := r.validator.Validate(ctx, item.Number, tenantID)
	if err != nil {
		r.metrics.RecordValidatorFailure()
		r.logger.Warn("contact number not validated",
			zap.Int64("list_id", listID),
			zap.Int64("contact_id", c.ID),
			zap.String("number", item.Number),
			zap.Error(err),
		)
		return nil
	}

	if err := st.MarkItemValidated(ctx, item.ID, number); err != nil {
		r.logger.Error("failed to store validated number",
			zap.Int64("item_id", item.ID),
			zap.Error(err),
		)
		return nil
	}
	item.Number = number
	item.IsWhatsappValid = true
	index.Add(dedup.KeyOf(number, c.Email))
	return nil
}

// checkRequest rejects malformed input before any store or lock is touched.
func checkRequest(listID, tenantID int64, spec filter.Spec) error {
	if listID <= 0 {
		return model.NewValidationError(model.StageInput, "contact list id is required")
	}
	if tenantID <= 0 {
		return model.NewValidationError(model.StageInput, "tenant id is required")
	}
	_, err := filter.Compile(spec)
	return err
}
