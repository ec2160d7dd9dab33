package addressbook

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	postgresclient "github.com/StricklySoft/addressbook/pkg/clients/postgres"
	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// newPostgresStoreWithMock builds a store over a pgxmock pool.
func newPostgresStoreWithMock(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	store, err := NewPostgresStore(postgresclient.NewFromPool(mock, nil))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store, mock
}

func TestNewPostgresStore_NilClient(t *testing.T) {
	store, err := NewPostgresStore(nil)
	if err == nil {
		t.Fatal("expected error for nil client, got nil")
	}
	if store != nil {
		t.Error("expected nil store on error")
	}
	if !sserr.HasCode(err, sserr.CodeInternalConfiguration) {
		t.Errorf("code = %v, want %v", sserr.GetCode(err), sserr.CodeInternalConfiguration)
	}
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS contacts").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v, want nil", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_Put(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	mock.ExpectExec("INSERT INTO contacts").
		WithArgs("owner-1", "user-2", "grace@stricklysoft.test", "grace").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	contact := Contact{UserID: "user-2", Email: "grace@stricklysoft.test", Alias: "grace"}
	if err := store.Put(context.Background(), "owner-1", contact); err != nil {
		t.Fatalf("Put() error = %v, want nil", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_Put_EmptyOwner(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	err := store.Put(context.Background(), "", Contact{UserID: "u", Email: "e@x.test"})
	if err == nil {
		t.Fatal("expected error for empty owner, got nil")
	}
	if !sserr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no SQL should have been issued: %v", err)
	}
}

func TestPostgresStore_Put_InvalidContact(t *testing.T) {
	store, _ := newPostgresStoreWithMock(t)

	err := store.Put(context.Background(), "owner-1", Contact{UserID: "u"})
	if err == nil {
		t.Fatal("expected error for contact without email, got nil")
	}
	if !sserr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPostgresStore_Put_DatabaseError(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	mock.ExpectExec("INSERT INTO contacts").
		WithArgs("owner-1", "user-2", "e@x.test", "").
		WillReturnError(errors.New("connection refused"))

	err := store.Put(context.Background(), "owner-1", Contact{UserID: "user-2", Email: "e@x.test"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !sserr.HasCode(err, sserr.CodeInternalDatabase) {
		t.Errorf("code = %v, want %v", sserr.GetCode(err), sserr.CodeInternalDatabase)
	}
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	rows := pgxmock.NewRows([]string{"contact_id", "email", "alias"}).
		AddRow("user-2", "grace@stricklysoft.test", "grace").
		AddRow("user-3", "alan@stricklysoft.test", "alan")
	mock.ExpectQuery("SELECT contact_id, email, alias FROM contacts").
		WithArgs("owner-1").
		WillReturnRows(rows)

	contacts, err := store.List(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("List() error = %v, want nil", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("len(contacts) = %d, want 2", len(contacts))
	}
	want := Contact{UserID: "user-2", Email: "grace@stricklysoft.test", Alias: "grace"}
	if contacts[0] != want {
		t.Errorf("contacts[0] = %+v, want %+v", contacts[0], want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_List_Empty(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	mock.ExpectQuery("SELECT contact_id, email, alias FROM contacts").
		WithArgs("owner-1").
		WillReturnRows(pgxmock.NewRows([]string{"contact_id", "email", "alias"}))

	contacts, err := store.List(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("List() error = %v, want nil", err)
	}
	if contacts == nil {
		t.Fatal("empty collection must be a slice, not nil")
	}
	if len(contacts) != 0 {
		t.Errorf("len(contacts) = %d, want 0", len(contacts))
	}
}

func TestPostgresStore_List_QueryError(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	mock.ExpectQuery("SELECT contact_id, email, alias FROM contacts").
		WithArgs("owner-1").
		WillReturnError(errors.New("connection refused"))

	contacts, err := store.List(context.Background(), "owner-1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if contacts != nil {
		t.Error("expected nil contacts on error")
	}
	if !sserr.HasCode(err, sserr.CodeInternalDatabase) {
		t.Errorf("code = %v, want %v", sserr.GetCode(err), sserr.CodeInternalDatabase)
	}
}

func TestPostgresStore_List_ScanError(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	rows := pgxmock.NewRows([]string{"contact_id", "email", "alias"}).
		AddRow(nil, "grace@stricklysoft.test", "grace")
	mock.ExpectQuery("SELECT contact_id, email, alias FROM contacts").
		WithArgs("owner-1").
		WillReturnRows(rows)

	_, err := store.List(context.Background(), "owner-1")
	if err == nil {
		t.Fatal("expected scan error, got nil")
	}
	if !sserr.HasCode(err, sserr.CodeInternalDatabase) {
		t.Errorf("code = %v, want %v", sserr.GetCode(err), sserr.CodeInternalDatabase)
	}
}

func TestPostgresStore_Health(t *testing.T) {
	store, mock := newPostgresStoreWithMock(t)

	mock.ExpectPing()

	if err := store.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v, want nil", err)
	}
}
