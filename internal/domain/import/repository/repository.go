// Package repository provides database operations for import batches,
// committed transactions and SIE verifications.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SourceFormat tells which pipeline produced a batch.
type SourceFormat string

const (
	SourceDelimited SourceFormat = "delimited"
	SourceSIE       SourceFormat = "sie"
)

// ImportBatch is one uploaded file and its commit outcome.
type ImportBatch struct {
	ID            uuid.UUID
	WorkspaceID   uuid.UUID
	Filename      string
	SourceFormat  SourceFormat
	RowCount      int
	ImportedCount int
	SkippedCount  int
	CreatedAt     time.Time
}

// Transaction is a committed bank-statement row. Amounts are stored in minor
// units (öre); the fingerprint backs the cross-batch duplicate guard via a
// unique index on (workspace_id, fingerprint).
type Transaction struct {
	ID             uuid.UUID
	WorkspaceID    uuid.UUID
	BatchID        uuid.UUID
	AccountingDate time.Time
	AmountMinor    int64
	CurrencyCode   string
	Reference      string
	BalanceMinor   *int64
	Fingerprint    string
	CreatedAt      time.Time
}

// VerificationLine is one posting line of a committed verification.
type VerificationLine struct {
	AccountNumber string
	AccountName   string
	DebitMinor    int64
	CreditMinor   int64
	Description   string
}

// Verification is a journal entry committed from an SIE file.
type Verification struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	BatchID     uuid.UUID
	SourceID    string
	Date        time.Time
	Description string
	Lines       []VerificationLine
	CreatedAt   time.Time
}

// HeaderMapping remembers a confirmed column mapping keyed by the header
// fingerprint, so re-imports from the same bank skip the suggestion step.
type HeaderMapping struct {
	ID                uuid.UUID
	WorkspaceID       uuid.UUID
	HeaderFingerprint string
	DateCol           int
	AmountCol         int
	ReferenceCol      *int
	BalanceCol        *int
	MatchCount        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CommitResult reports how a commit went.
type CommitResult struct {
	Imported int
	Skipped  int
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	From   *time.Time
	To     *time.Time
	Search string
	Limit  int
}

// ImportRepository defines the persistence operations of the import pipeline.
type ImportRepository interface {
	GetBatch(ctx context.Context, id uuid.UUID) (*ImportBatch, error)

	// CommitTransactions persists the batch row and its rows in one
	// database transaction; a failure leaves no batch behind. Rows whose
	// fingerprint already exists in the workspace are skipped, not errored.
	CommitTransactions(ctx context.Context, batch *ImportBatch, txs []*Transaction) (CommitResult, error)

	// CommitVerifications persists the batch row and its journal entries in
	// one database transaction. Entries whose lines do not balance in minor
	// units are skipped.
	CommitVerifications(ctx context.Context, batch *ImportBatch, vers []*Verification) (CommitResult, error)

	SaveHeaderMapping(ctx context.Context, m *HeaderMapping) error
	FindHeaderMapping(ctx context.Context, workspaceID uuid.UUID, fingerprint string) (*HeaderMapping, error)

	ListTransactions(ctx context.Context, workspaceID uuid.UUID, filter TransactionFilter) ([]*Transaction, error)
}

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
