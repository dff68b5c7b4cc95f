package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/commonshold/core/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLitePairStore persists receipt pairs in SQLite. Each half is one row
// keyed by its owner; both rows of a pair go in under one transaction.
type SQLitePairStore struct {
	db *sql.DB
}

func NewSQLitePairStore(db *sql.DB) (*SQLitePairStore, error) {
	s := &SQLitePairStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLitePairStore opens (or creates) the database at path.
func OpenSQLitePairStore(path string) (*SQLitePairStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open receipt database: %w", err)
	}
	return NewSQLitePairStore(db)
}

func (s *SQLitePairStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS participation_receipts (
		receipt_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		counterparty TEXT NOT NULL,
		claim TEXT NOT NULL,
		commitment_id TEXT,
		event_id TEXT NOT NULL,
		timeliness REAL NOT NULL,
		completeness REAL NOT NULL,
		accuracy REAL NOT NULL,
		content_hash TEXT NOT NULL,
		signer_key TEXT NOT NULL,
		signature TEXT NOT NULL,
		signing_role TEXT NOT NULL,
		signed_at DATETIME NOT NULL,
		context_note TEXT,
		issued_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_receipts_owner ON participation_receipts (owner_id, issued_at);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

const sqliteInsertReceipt = `INSERT INTO participation_receipts (
	receipt_id, owner_id, counterparty, claim, commitment_id, event_id,
	timeliness, completeness, accuracy,
	content_hash, signer_key, signature, signing_role, signed_at,
	context_note, issued_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// StorePair inserts both halves in one transaction; a failure on either
// rolls back both.
func (s *SQLitePairStore) StorePair(ctx context.Context, pair contracts.ReceiptPair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin receipt transaction: %w", err)
	}
	for _, r := range []contracts.ParticipationReceipt{pair.Provider, pair.Receiver} {
		if _, err := tx.ExecContext(ctx, sqliteInsertReceipt,
			r.ID, r.OwnerID, r.Counterparty, string(r.Claim), r.CommitmentID, r.EventID,
			r.Metrics.Timeliness, r.Metrics.Completeness, r.Metrics.Accuracy,
			r.Signature.ContentHash, r.Signature.SignerKey, r.Signature.Signature,
			r.Signature.SigningRole, r.Signature.SignedAt.UTC().Format(time.RFC3339Nano),
			r.Context, r.IssuedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert receipt %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit receipt pair: %w", err)
	}
	return nil
}

const sqliteSelectByOwner = `SELECT
	receipt_id, owner_id, counterparty, claim, commitment_id, event_id,
	timeliness, completeness, accuracy,
	content_hash, signer_key, signature, signing_role, signed_at,
	context_note, issued_at
FROM participation_receipts
WHERE owner_id = ? AND issued_at >= ? AND issued_at <= ?
ORDER BY issued_at ASC`

// ListByOwner returns only rows belonging to ownerID; there is no
// cross-owner read path.
func (s *SQLitePairStore) ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]contracts.ParticipationReceipt, error) {
	if to.IsZero() {
		to = time.Now().Add(24 * time.Hour)
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectByOwner,
		ownerID, from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts for %s: %w", ownerID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.ParticipationReceipt
	for rows.Next() {
		r, err := scanReceiptRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceiptRow(row rowScanner) (*contracts.ParticipationReceipt, error) {
	var (
		r            contracts.ParticipationReceipt
		claim        string
		commitmentID sql.NullString
		contextNote  sql.NullString
		signedAt     string
		issuedAt     string
	)
	if err := row.Scan(
		&r.ID, &r.OwnerID, &r.Counterparty, &claim, &commitmentID, &r.EventID,
		&r.Metrics.Timeliness, &r.Metrics.Completeness, &r.Metrics.Accuracy,
		&r.Signature.ContentHash, &r.Signature.SignerKey, &r.Signature.Signature,
		&r.Signature.SigningRole, &signedAt,
		&contextNote, &issuedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan receipt row: %w", err)
	}
	r.Claim = contracts.ClaimType(claim)
	r.CommitmentID = commitmentID.String
	r.Context = contextNote.String

	var err error
	if r.Signature.SignedAt, err = time.Parse(time.RFC3339Nano, signedAt); err != nil {
		return nil, fmt.Errorf("receipt %s: bad signed_at: %w", r.ID, err)
	}
	if r.IssuedAt, err = time.Parse(time.RFC3339Nano, issuedAt); err != nil {
		return nil, fmt.Errorf("receipt %s: bad issued_at: %w", r.ID, err)
	}
	return &r, nil
}
