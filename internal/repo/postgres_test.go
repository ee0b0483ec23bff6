package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/filter"
	"github.com/LeventeLantos/listsync/internal/model"
)

// passThrough lets slice arguments reach the mock the way pgx receives them.
type passThrough struct{}

func (passThrough) ConvertValue(v any) (driver.Value, error) { return v, nil }

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passThrough{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db, mock, NewPostgresStore(db, zap.NewNop())
}

var contactCols = []string{
	"id", "tenant_id", "name", "number", "email", "channel", "representative_code",
	"city", "situation", "foundation_date", "credit_limit",
}

func TestFindContacts_BindsValuesAndScans(t *testing.T) {
	_, mock, store := setupMockDB(t)

	q, err := filter.Compile(filter.Spec{City: []string{"Curitiba"}, MinCreditLimit: "1.000,00"})
	require.NoError(t, err)

	founded := time.Date(2020, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(contactCols).
		AddRow(int64(1), int64(7), "Ana", "5541999990000", "", "whatsapp", "R1", "Curitiba", "Ativo", founded, "2.500,00").
		AddRow(int64(4), int64(7), "Bia", "5541988880000", "bia@example.com", "whatsapp", "", "Curitiba", "Inativo", nil, "1.000,00")

	mock.ExpectQuery(`FROM contacts c`).
		WithArgs(int64(7), []string{"Curitiba"}, 1000.0).
		WillReturnRows(rows)

	got, err := store.FindContacts(context.Background(), 7, q)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, model.Active, got[0].Situation)
	require.NotNil(t, got[0].FoundationDate)
	assert.True(t, founded.Equal(*got[0].FoundationDate))
	assert.Nil(t, got[1].FoundationDate)
	assert.Equal(t, "bia@example.com", got[1].Email)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindContacts_RejectsUnresolvedTags(t *testing.T) {
	_, mock, store := setupMockDB(t)

	q, err := filter.Compile(filter.Spec{Tags: []int64{1}})
	require.NoError(t, err)

	_, err = store.FindContacts(context.Background(), 1, q)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompileContactQuery_ParametersOnly(t *testing.T) {
	q, err := filter.Compile(filter.Spec{
		Channel:          []string{"whatsapp"},
		City:             []string{"x'; DROP TABLE contacts; --"},
		Situation:        []string{"Ativo"},
		MonthYear:        "2024-02",
		FoundationMonths: []int{3},
		MaxCreditLimit:   "5.000,00",
	})
	require.NoError(t, err)
	q = q.WithContactIDs([]int64{10, 11})

	query, args, err := compileContactQuery(3, q)
	require.NoError(t, err)

	assert.NotContains(t, query, "DROP TABLE")
	assert.Contains(t, query, "c.tenant_id = $1")
	assert.Contains(t, query, "c.channel = ANY($2)")
	assert.Contains(t, query, "c.city = ANY($3)")
	assert.Contains(t, query, "c.situation::text = ANY($4)")
	assert.Contains(t, query, "c.foundation_date BETWEEN $5 AND $6")
	assert.Contains(t, query, "= ANY($7::int[])")
	assert.Contains(t, query, "<= CAST($8 AS NUMERIC)")
	assert.Contains(t, query, `'^R\$?', '', 'i'`, "only a leading currency symbol is stripped")
	assert.NotContains(t, query, `|R\$?`)
	assert.Contains(t, query, "c.id = ANY($9)")
	assert.Contains(t, query, "ORDER BY c.id ASC")

	require.Len(t, args, 9)
	assert.Equal(t, int64(3), args[0])
	assert.Equal(t, []string{"x'; DROP TABLE contacts; --"}, args[2])
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), args[5])
	assert.Equal(t, []int{3}, args[6])
	assert.Equal(t, 5000.0, args[7])
	assert.Equal(t, []int64{10, 11}, args[8])
}

func TestContactTags(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery(`FROM contact_tags ct`).
		WithArgs(int64(2), []int64{5, 6}).
		WillReturnRows(sqlmock.NewRows([]string{"contact_id", "tag_id"}).
			AddRow(int64(1), int64(5)).
			AddRow(int64(1), int64(6)))

	got, err := store.ContactTags(context.Background(), 2, []int64{5, 6})
	require.NoError(t, err)
	assert.Equal(t, []model.ContactTag{{ContactID: 1, TagID: 5}, {ContactID: 1, TagID: 6}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetList(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery(`FROM contact_lists`).
		WithArgs(int64(9), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "saved_filter"}).
			AddRow(int64(9), int64(1), "VIP", []byte(`{"city":["Curitiba"]}`)))

	l, err := store.GetList(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.Equal(t, "VIP", l.Name)
	assert.True(t, l.HasSavedFilter())

	mock.ExpectQuery(`FROM contact_lists`).
		WithArgs(int64(10), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "saved_filter"}))

	_, err = store.GetList(context.Background(), 1, 10)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSavedFilter(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectExec(`UPDATE contact_lists`).
		WithArgs(int64(3), int64(1), `{"tags":[1]}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SetSavedFilter(context.Background(), 1, 3, json.RawMessage(`{"tags":[1]}`)))

	mock.ExpectExec(`UPDATE contact_lists`).
		WithArgs(int64(3), int64(1), nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.SetSavedFilter(context.Background(), 1, 3, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM contact_list_items`).
		WithArgs(int64(3), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	var cleared int64
	err := store.WithinTx(context.Background(), func(tx Store) error {
		n, err := tx.ClearItems(context.Background(), 1, 3)
		cleared = n
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), cleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM contact_list_items`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	boom := errors.New("rebuild failed")
	err := store.WithinTx(context.Background(), func(tx Store) error {
		if _, err := tx.ClearItems(context.Background(), 1, 3); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertItem_SavepointIsolatesFailedRow(t *testing.T) {
	_, mock, store := setupMockDB(t)
	created := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`^SAVEPOINT list_item$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO contact_list_items`).WillReturnError(errors.New("value too long"))
	mock.ExpectExec(`^ROLLBACK TO SAVEPOINT list_item$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^SAVEPOINT list_item$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO contact_list_items`).
		WithArgs(int64(3), int64(1), "Bia", "5541988880000", "", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(77), created))
	mock.ExpectExec(`^RELEASE SAVEPOINT list_item$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var second model.ContactListItem
	err := store.WithinTx(context.Background(), func(tx Store) error {
		bad := &model.ContactListItem{ContactListID: 3, TenantID: 1, Name: "Ana"}
		assert.Error(t, tx.InsertItem(context.Background(), bad))

		second = model.ContactListItem{ContactListID: 3, TenantID: 1, Name: "Bia", Number: "5541988880000"}
		return tx.InsertItem(context.Background(), &second)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), second.ID)
	assert.True(t, created.Equal(second.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertItem_NoSavepointOutsideTx(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO contact_list_items`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	item := &model.ContactListItem{ContactListID: 3, TenantID: 1, Name: "Ana", Number: "1"}
	require.NoError(t, store.InsertItem(context.Background(), item))
	assert.Equal(t, int64(1), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMembersAndMarkValidated(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery(`FROM contact_list_items`).
		WithArgs(int64(3), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "email"}).
			AddRow(int64(1), "+55 11 91234-5678", "").
			AddRow(int64(2), "", "ana@example.com"))
	mock.ExpectExec(`UPDATE contact_list_items`).
		WithArgs(int64(1), "5511912345678").
		WillReturnResult(sqlmock.NewResult(0, 1))

	members, err := store.ListMembers(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "ana@example.com", members[1].Email)

	require.NoError(t, store.MarkItemValidated(context.Background(), 1, "5511912345678"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkItemValidated_SavepointIsolatesFailedUpdate(t *testing.T) {
	_, mock, store := setupMockDB(t)
	created := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`^SAVEPOINT list_item$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE contact_list_items`).
		WithArgs(int64(9), "5511912345678").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectExec(`^ROLLBACK TO SAVEPOINT list_item$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^SAVEPOINT list_item$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO contact_list_items`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(10), created))
	mock.ExpectExec(`^RELEASE SAVEPOINT list_item$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx Store) error {
		assert.Error(t, tx.MarkItemValidated(context.Background(), 9, "5511912345678"))

		next := &model.ContactListItem{ContactListID: 3, TenantID: 1, Name: "Caio", Number: "5521977770000"}
		return tx.InsertItem(context.Background(), next)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageItems(t *testing.T) {
	_, mock, store := setupMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(int64(3), int64(1), "%ana%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(`ORDER BY name ASC`).
		WithArgs(int64(3), int64(1), "%ana%", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "contact_list_id", "tenant_id", "name", "number", "email", "is_whatsapp_valid", "created_at",
		}).AddRow(int64(5), int64(3), int64(1), "Ana", "554199", "", true, now))

	items, count, err := store.PageItems(context.Background(), 1, 3, " Ana ", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 21, count)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsWhatsappValid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
