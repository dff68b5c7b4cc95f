package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresPairStoreCommitsBothHalves(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	pair := testPair("ev-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO participation_receipts").
		WithArgs(pair.Provider.ID, "alice", "bob", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"ev-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO participation_receipts").
		WithArgs(pair.Receiver.ID, "bob", "alice", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"ev-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := NewPostgresPairStore(db)
	if err := s.StorePair(context.Background(), pair); err != nil {
		t.Fatalf("StorePair: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresPairStoreRollsBackOnSecondInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	pair := testPair("ev-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO participation_receipts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO participation_receipts").
		WillReturnError(errors.New("duplicate key value"))
	mock.ExpectRollback()

	s := NewPostgresPairStore(db)
	if err := s.StorePair(context.Background(), pair); err == nil {
		t.Fatal("expected the pair insert to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresPairStoreListScopesByOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"receipt_id", "owner_id", "counterparty", "claim", "commitment_id", "event_id",
		"timeliness", "completeness", "accuracy",
		"content_hash", "signer_key", "signature", "signing_role", "signed_at",
		"context_note", "issued_at",
	}).AddRow("r-1", "alice", "bob", "CUSTODY_TRANSFER", nil, "ev-1",
		1.0, 0.9, 1.0, "sha256:abc", "key-alice", "deadbeef", "provider", issued,
		nil, issued)

	mock.ExpectQuery("SELECT(.|\n)+FROM participation_receipts(.|\n)+WHERE owner_id = \\$1").
		WithArgs("alice", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	s := NewPostgresPairStore(db)
	got, err := s.ListByOwner(context.Background(), "alice", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(got) != 1 || got[0].OwnerID != "alice" || got[0].Claim != "CUSTODY_TRANSFER" {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
