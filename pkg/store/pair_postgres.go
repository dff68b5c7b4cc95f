package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/commonshold/core/pkg/contracts"

	_ "github.com/lib/pq"
)

// PostgresPairStore is the multi-node receipt store. Same row shape as the
// SQLite store; both halves of a pair commit in one transaction.
type PostgresPairStore struct {
	db *sql.DB
}

func NewPostgresPairStore(db *sql.DB) *PostgresPairStore {
	return &PostgresPairStore{db: db}
}

// OpenPostgresPairStore connects with a DSN and runs migration.
func OpenPostgresPairStore(dsn string) (*PostgresPairStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to receipt database: %w", err)
	}
	s := NewPostgresPairStore(db)
	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

const pgReceiptSchema = `
CREATE TABLE IF NOT EXISTS participation_receipts (
	receipt_id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	counterparty TEXT NOT NULL,
	claim TEXT NOT NULL,
	commitment_id TEXT,
	event_id TEXT NOT NULL,
	timeliness DOUBLE PRECISION NOT NULL,
	completeness DOUBLE PRECISION NOT NULL,
	accuracy DOUBLE PRECISION NOT NULL,
	content_hash TEXT NOT NULL,
	signer_key TEXT NOT NULL,
	signature TEXT NOT NULL,
	signing_role TEXT NOT NULL,
	signed_at TIMESTAMPTZ NOT NULL,
	context_note TEXT,
	issued_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_owner ON participation_receipts (owner_id, issued_at);`

func (s *PostgresPairStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, pgReceiptSchema); err != nil {
		return fmt.Errorf("failed to migrate receipt schema: %w", err)
	}
	return nil
}

const pgInsertReceipt = `INSERT INTO participation_receipts (
	receipt_id, owner_id, counterparty, claim, commitment_id, event_id,
	timeliness, completeness, accuracy,
	content_hash, signer_key, signature, signing_role, signed_at,
	context_note, issued_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

func (s *PostgresPairStore) StorePair(ctx context.Context, pair contracts.ReceiptPair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin receipt transaction: %w", err)
	}
	for _, r := range []contracts.ParticipationReceipt{pair.Provider, pair.Receiver} {
		if _, err := tx.ExecContext(ctx, pgInsertReceipt,
			r.ID, r.OwnerID, r.Counterparty, string(r.Claim), r.CommitmentID, r.EventID,
			r.Metrics.Timeliness, r.Metrics.Completeness, r.Metrics.Accuracy,
			r.Signature.ContentHash, r.Signature.SignerKey, r.Signature.Signature,
			r.Signature.SigningRole, r.Signature.SignedAt.UTC(),
			r.Context, r.IssuedAt.UTC(),
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

const pgSelectByOwner = `SELECT
	receipt_id, owner_id, counterparty, claim, commitment_id, event_id,
	timeliness, completeness, accuracy,
	content_hash, signer_key, signature, signing_role, signed_at,
	context_note, issued_at
FROM participation_receipts
WHERE owner_id = $1 AND issued_at >= $2 AND issued_at <= $3
ORDER BY issued_at ASC`

func (s *PostgresPairStore) ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]contracts.ParticipationReceipt, error) {
	if to.IsZero() {
		to = time.Now().Add(24 * time.Hour)
	}
	rows, err := s.db.QueryContext(ctx, pgSelectByOwner, ownerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts for %s: %w", ownerID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.ParticipationReceipt
	for rows.Next() {
		r, err := scanPgReceiptRow(rows)
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

// scanPgReceiptRow differs from the SQLite scanner only in timestamp
// handling: pq returns time.Time directly.
func scanPgReceiptRow(row rowScanner) (*contracts.ParticipationReceipt, error) {
	var (
		r            contracts.ParticipationReceipt
		claim        string
		commitmentID sql.NullString
		contextNote  sql.NullString
	)
	if err := row.Scan(
		&r.ID, &r.OwnerID, &r.Counterparty, &claim, &commitmentID, &r.EventID,
		&r.Metrics.Timeliness, &r.Metrics.Completeness, &r.Metrics.Accuracy,
		&r.Signature.ContentHash, &r.Signature.SignerKey, &r.Signature.Signature,
		&r.Signature.SigningRole, &r.Signature.SignedAt,
		&contextNote, &r.IssuedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan receipt row: %w", err)
	}
	r.Claim = contracts.ClaimType(claim)
	r.CommitmentID = commitmentID.String
	r.Context = contextNote.String
	return &r, nil
}
