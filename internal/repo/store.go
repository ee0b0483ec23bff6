package repo

import (
	"context"
	"encoding/json"

	"github.com/LeventeLantos/listsync/internal/filter"
	"github.com/LeventeLantos/listsync/internal/model"
)

type ContactReader interface {
	// FindContacts returns the tenant's contacts matching every predicate,
	// ordered by id ascending. HasAllTags must be resolved beforehand.
	FindContacts(ctx context.Context, tenantID int64, q filter.Query) ([]model.Contact, error)
	// ContactTags returns the association rows for the given tags.
	ContactTags(ctx context.Context, tenantID int64, tagIDs []int64) ([]model.ContactTag, error)
}

type ListRepository interface {
	GetList(ctx context.Context, tenantID, listID int64) (model.ContactList, error)
	ListsWithSavedFilter(ctx context.Context) ([]model.ContactList, error)
	// SetSavedFilter stores raw as the list's filter; nil clears it.
	SetSavedFilter(ctx context.Context, tenantID, listID int64, raw json.RawMessage) error

	ListMembers(ctx context.Context, tenantID, listID int64) ([]model.ContactListItem, error)
	InsertItem(ctx context.Context, item *model.ContactListItem) error
	MarkItemValidated(ctx context.Context, itemID int64, number string) error
	ClearItems(ctx context.Context, tenantID, listID int64) (int64, error)
	PageItems(ctx context.Context, tenantID, listID int64, search string, limit, offset int) ([]model.ContactListItem, int, error)
}

type Store interface {
	ContactReader
	ListRepository

	// WithinTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise,
	// including on panic. Nested calls reuse the open transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error
}
