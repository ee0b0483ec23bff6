package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/filter"
	"github.com/LeventeLantos/listsync/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db     *sql.DB
	q      querier
	inTx   bool
	logger *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, q: db, logger: logger}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&PostgresStore{db: s.db, q: tx, inTx: true, logger: s.logger}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) FindContacts(ctx context.Context, tenantID int64, q filter.Query) ([]model.Contact, error) {
	query, args, err := compileContactQuery(tenantID, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		var situation string
		var founded sql.NullTime
		if err := rows.Scan(
			&c.ID,
			&c.TenantID,
			&c.Name,
			&c.Number,
			&c.Email,
			&c.Channel,
			&c.RepresentativeCode,
			&c.City,
			&situation,
			&founded,
			&c.CreditLimit,
		); err != nil {
			return nil, err
		}
		c.Situation = model.Situation(situation)
		if founded.Valid {
			t := founded.Time
			c.FoundationDate = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ContactTags(ctx context.Context, tenantID int64, tagIDs []int64) ([]model.ContactTag, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT ct.contact_id, ct.tag_id
		FROM contact_tags ct
		JOIN contacts c ON c.id = ct.contact_id
		WHERE c.tenant_id = $1 AND ct.tag_id = ANY($2)
		ORDER BY ct.contact_id ASC, ct.tag_id ASC
	`, tenantID, tagIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContactTag
	for rows.Next() {
		var ct model.ContactTag
		if err := rows.Scan(&ct.ContactID, &ct.TagID); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetList(ctx context.Context, tenantID, listID int64) (model.ContactList, error) {
	var l model.ContactList
	var saved []byte
	err := s.q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, saved_filter
		FROM contact_lists
		WHERE id = $1 AND tenant_id = $2
	`, listID, tenantID).Scan(&l.ID, &l.TenantID, &l.Name, &saved)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ContactList{}, model.ErrNotFound
	}
	if err != nil {
		return model.ContactList{}, err
	}
	if saved != nil {
		l.SavedFilter = json.RawMessage(saved)
	}
	return l, nil
}

func (s *PostgresStore) ListsWithSavedFilter(ctx context.Context) ([]model.ContactList, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, tenant_id, name, saved_filter
		FROM contact_lists
		WHERE saved_filter IS NOT NULL AND saved_filter <> 'null'::jsonb
		ORDER BY tenant_id ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContactList
	for rows.Next() {
		var l model.ContactList
		var saved []byte
		if err := rows.Scan(&l.ID, &l.TenantID, &l.Name, &saved); err != nil {
			return nil, err
		}
		l.SavedFilter = json.RawMessage(saved)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetSavedFilter(ctx context.Context, tenantID, listID int64, raw json.RawMessage) error {
	var value any
	if len(raw) > 0 {
		value = string(raw)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE contact_lists
		SET saved_filter = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, listID, tenantID, value)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, tenantID, listID int64) ([]model.ContactListItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, COALESCE(number, ''), COALESCE(email, '')
		FROM contact_list_items
		WHERE contact_list_id = $1 AND tenant_id = $2
	`, listID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContactListItem
	for rows.Next() {
		it := model.ContactListItem{ContactListID: listID, TenantID: tenantID}
		if err := rows.Scan(&it.ID, &it.Number, &it.Email); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// underSavepoint runs fn inside SAVEPOINT list_item when a transaction is
// open. A failed statement is rolled back to the savepoint so the rest of the
// rebuild stays usable.
func (s *PostgresStore) underSavepoint(ctx context.Context, fn func() error) error {
	if !s.inTx {
		return fn()
	}
	if _, err := s.q.ExecContext(ctx, "SAVEPOINT list_item"); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := s.q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT list_item"); rbErr != nil {
			s.logger.Error("rollback to savepoint failed", zap.Error(rbErr))
		}
		return err
	}
	_, err := s.q.ExecContext(ctx, "RELEASE SAVEPOINT list_item")
	return err
}

func (s *PostgresStore) InsertItem(ctx context.Context, item *model.ContactListItem) error {
	return s.underSavepoint(ctx, func() error {
		return s.q.QueryRowContext(ctx, `
			INSERT INTO contact_list_items (contact_list_id, tenant_id, name, number, email, is_whatsapp_valid)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`, item.ContactListID, item.TenantID, item.Name, item.Number, item.Email, item.IsWhatsappValid,
		).Scan(&item.ID, &item.CreatedAt)
	})
}

func (s *PostgresStore) MarkItemValidated(ctx context.Context, itemID int64, number string) error {
	return s.underSavepoint(ctx, func() error {
		_, err := s.q.ExecContext(ctx, `
			UPDATE contact_list_items
			SET number = $2, is_whatsapp_valid = TRUE, updated_at = now()
			WHERE id = $1
		`, itemID, number)
		return err
	})
}

func (s *PostgresStore) ClearItems(ctx context.Context, tenantID, listID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM contact_list_items
		WHERE contact_list_id = $1 AND tenant_id = $2
	`, listID, tenantID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) PageItems(ctx context.Context, tenantID, listID int64, search string, limit, offset int) ([]model.ContactListItem, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(search)) + "%"

	var count int
	if err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM contact_list_items
		WHERE contact_list_id = $1 AND tenant_id = $2
		  AND (LOWER(name) LIKE $3 OR number LIKE $3)
	`, listID, tenantID, pattern).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, contact_list_id, tenant_id, COALESCE(name, ''), COALESCE(number, ''),
		       COALESCE(email, ''), is_whatsapp_valid, created_at
		FROM contact_list_items
		WHERE contact_list_id = $1 AND tenant_id = $2
		  AND (LOWER(name) LIKE $3 OR number LIKE $3)
		ORDER BY name ASC, id ASC
		LIMIT $4 OFFSET $5
	`, listID, tenantID, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.ContactListItem
	for rows.Next() {
		var it model.ContactListItem
		if err := rows.Scan(
			&it.ID,
			&it.ContactListID,
			&it.TenantID,
			&it.Name,
			&it.Number,
			&it.Email,
			&it.IsWhatsappValid,
			&it.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, count, rows.Err()
}
