package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/filter"
	"github.com/LeventeLantos/listsync/internal/model"
	"github.com/LeventeLantos/listsync/internal/repo"
)

// Evaluator selects the contacts matching a filter spec.
type Evaluator struct {
	logger *zap.Logger
}

func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate returns the tenant's contacts satisfying every category of spec,
// ordered by id. An empty spec is rejected rather than matching everything.
func (e *Evaluator) Evaluate(ctx context.Context, contacts repo.ContactReader, tenantID int64, spec filter.Spec) ([]model.Contact, error) {
	if tenantID <= 0 {
		return nil, model.NewValidationError(model.StageInput, "tenant id is required")
	}
	q, err := filter.Compile(spec)
	if err != nil {
		return nil, err
	}

	if tags, ok := q.Tags(); ok {
		rows, err := contacts.ContactTags(ctx, tenantID, tags.TagIDs)
		if err != nil {
			return nil, &model.QueryError{Stage: model.StageTags, Op: "load tag associations", Err: err}
		}
		ids := filter.ContactsWithAllTags(rows, tags.TagIDs)
		e.logger.Debug("resolved tag filter",
			zap.Int64("tenant_id", tenantID),
			zap.Int64s("tags", tags.TagIDs),
			zap.Int("contacts", len(ids)),
		)
		if len(ids) == 0 {
			return nil, nil
		}
		q = q.WithContactIDs(ids)
	}

	out, err := contacts.FindContacts(ctx, tenantID, q)
	if err != nil {
		return nil, &model.QueryError{Stage: model.StageContacts, Op: "find contacts", Err: err}
	}
	return out, nil
}
