package kv

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupPostgresMock(t *testing.T) (*Postgres, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	store := NewPostgres(db)
	cleanup := func() { db.Close() }
	return store, mock, cleanup
}

func TestPostgresGet_Found(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries WHERE key = $1`)).
		WithArgs("U1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("02"))

	v, err := store.Get(context.Background(), "U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "02" {
		t.Errorf("Get = %q; want %q", v, "02")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresGet_NotFound(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries WHERE key = $1`)).
		WithArgs("U2").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := store.Get(context.Background(), "U2")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get error = %v; want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresGet_Error(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries`)).
		WithArgs("U3").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "U3")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Get error = %v; want backend error", err)
	}
}

func TestPostgresSet(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_entries (key, value) VALUES ($1, $2)`)).
		WithArgs("U1", "04").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Set(context.Background(), "U1", "04"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresSetNX(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	query := regexp.QuoteMeta(`INSERT INTO kv_entries (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`)
	mock.ExpectExec(query).WithArgs("U1", "01").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("U1", "01").WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := store.SetNX(context.Background(), "U1", "01")
	if err != nil || !created {
		t.Fatalf("first SetNX = %v, %v; want true, nil", created, err)
	}
	created, err = store.SetNX(context.Background(), "U1", "01")
	if err != nil || created {
		t.Fatalf("second SetNX = %v, %v; want false, nil", created, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresRPush(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("inquiry").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_list_items (list_key, value) VALUES ($1, $2)`)).
		WithArgs("inquiry", "送信完了 foo").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM kv_list_items WHERE list_key = $1`)).
		WithArgs("inquiry").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectCommit()

	n, err := store.RPush(context.Background(), "inquiry", "送信完了 foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("RPush = %d; want 7", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresRPush_RollsBackOnError(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("inquiry").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_list_items`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, err := store.RPush(context.Background(), "inquiry", "送信完了 foo"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresLRange(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_list_items WHERE list_key = $1 ORDER BY id`)).
		WithArgs("inquiry").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("a").AddRow("b").AddRow("c"))

	got, err := store.LRange(context.Background(), "inquiry", -2, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("LRange = %v; want [b c]", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
