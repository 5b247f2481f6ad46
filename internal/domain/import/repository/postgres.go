package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PostgresImportRepository implements ImportRepository using PostgreSQL.
type PostgresImportRepository struct {
	db DB
}

// NewPostgresImportRepository creates a new PostgreSQL import repository.
func NewPostgresImportRepository(db DB) *PostgresImportRepository {
	return &PostgresImportRepository{db: db}
}

// insertBatch writes the batch row inside the commit's database transaction,
// so a failed commit rolls the batch back along with its rows.
func (r *PostgresImportRepository) insertBatch(ctx context.Context, dbTx pgx.Tx, batch *ImportBatch) error {
	query := `
		INSERT INTO import_batches (id, workspace_id, filename, source_format, row_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}

	err := dbTx.QueryRow(ctx, query,
		batch.ID,
		batch.WorkspaceID,
		batch.Filename,
		batch.SourceFormat,
		batch.RowCount,
	).Scan(&batch.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create import batch: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by ID.
func (r *PostgresImportRepository) GetBatch(ctx context.Context, id uuid.UUID) (*ImportBatch, error) {
	query := `
		SELECT id, workspace_id, filename, source_format, row_count, imported_count, skipped_count, created_at
		FROM import_batches
		WHERE id = $1`

	batch := &ImportBatch{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&batch.ID,
		&batch.WorkspaceID,
		&batch.Filename,
		&batch.SourceFormat,
		&batch.RowCount,
		&batch.ImportedCount,
		&batch.SkippedCount,
		&batch.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}
	return batch, nil
}

// CommitTransactions inserts the batch row and every transaction row in one
// database transaction. The unique index on (workspace_id, fingerprint) plus
// ON CONFLICT DO NOTHING makes the skip decision inside the database, so two
// concurrent imports of the same file cannot both land a row.
func (r *PostgresImportRepository) CommitTransactions(ctx context.Context, batch *ImportBatch, txs []*Transaction) (CommitResult, error) {
	var result CommitResult

	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	if err := r.insertBatch(ctx, dbTx, batch); err != nil {
		return CommitResult{}, err
	}

	insertQuery := `
		INSERT INTO transactions (id, workspace_id, batch_id, accounting_date, amount_minor, currency_code, reference, balance_minor, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (workspace_id, fingerprint) DO NOTHING`

	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		tag, err := dbTx.Exec(ctx, insertQuery,
			t.ID,
			batch.WorkspaceID,
			batch.ID,
			t.AccountingDate,
			t.AmountMinor,
			t.CurrencyCode,
			t.Reference,
			t.BalanceMinor,
			t.Fingerprint,
		)
		if err != nil {
			return CommitResult{}, fmt.Errorf("failed to insert transaction: %w", err)
		}
		if tag.RowsAffected() == 1 {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	if err := r.finishCommit(ctx, dbTx, batch, result); err != nil {
		return CommitResult{}, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return CommitResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// CommitVerifications inserts the batch row and the journal entries with
// their lines in one database transaction. Balance is re-checked here in
// minor units; an entry whose debits and credits differ is skipped even if
// an upstream check was bypassed.
func (r *PostgresImportRepository) CommitVerifications(ctx context.Context, batch *ImportBatch, vers []*Verification) (CommitResult, error) {
	var result CommitResult

	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	if err := r.insertBatch(ctx, dbTx, batch); err != nil {
		return CommitResult{}, err
	}

	verQuery := `
		INSERT INTO verifications (id, workspace_id, batch_id, source_id, entry_date, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id, source_id, entry_date) DO NOTHING`
	lineQuery := `
		INSERT INTO verification_lines (id, verification_id, account_number, account_name, debit_minor, credit_minor, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, v := range vers {
		if !balancedMinor(v.Lines) {
			result.Skipped++
			continue
		}
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		tag, err := dbTx.Exec(ctx, verQuery,
			v.ID,
			batch.WorkspaceID,
			batch.ID,
			v.SourceID,
			v.Date,
			v.Description,
		)
		if err != nil {
			return CommitResult{}, fmt.Errorf("failed to insert verification: %w", err)
		}
		if tag.RowsAffected() == 0 {
			result.Skipped++
			continue
		}
		for _, line := range v.Lines {
			_, err := dbTx.Exec(ctx, lineQuery,
				uuid.New(),
				v.ID,
				line.AccountNumber,
				line.AccountName,
				line.DebitMinor,
				line.CreditMinor,
				line.Description,
			)
			if err != nil {
				return CommitResult{}, fmt.Errorf("failed to insert verification line: %w", err)
			}
		}
		result.Imported++
	}

	if err := r.finishCommit(ctx, dbTx, batch, result); err != nil {
		return CommitResult{}, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return CommitResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// finishCommit updates the batch counters and writes the audit row inside
// the same database transaction as the inserts.
func (r *PostgresImportRepository) finishCommit(ctx context.Context, dbTx pgx.Tx, batch *ImportBatch, result CommitResult) error {
	updateQuery := `
		UPDATE import_batches
		SET imported_count = $2, skipped_count = $3
		WHERE id = $1`
	if _, err := dbTx.Exec(ctx, updateQuery, batch.ID, result.Imported, result.Skipped); err != nil {
		return fmt.Errorf("failed to update batch counters: %w", err)
	}

	auditQuery := `
		INSERT INTO import_audit (id, workspace_id, batch_id, action, imported, skipped)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := dbTx.Exec(ctx, auditQuery, uuid.New(), batch.WorkspaceID, batch.ID, "commit", result.Imported, result.Skipped); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	batch.ImportedCount = result.Imported
	batch.SkippedCount = result.Skipped
	return nil
}

func balancedMinor(lines []VerificationLine) bool {
	var debit, credit int64
	for _, l := range lines {
		debit += l.DebitMinor
		credit += l.CreditMinor
	}
	return debit == credit
}

// SaveHeaderMapping upserts a remembered column mapping. Confirming the same
// header set again bumps the match counter.
func (r *PostgresImportRepository) SaveHeaderMapping(ctx context.Context, m *HeaderMapping) error {
	query := `
		INSERT INTO header_mappings (id, workspace_id, header_fingerprint, date_col, amount_col, reference_col, balance_col)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workspace_id, header_fingerprint) DO UPDATE
		SET date_col = EXCLUDED.date_col,
		    amount_col = EXCLUDED.amount_col,
		    reference_col = EXCLUDED.reference_col,
		    balance_col = EXCLUDED.balance_col,
		    match_count = header_mappings.match_count + 1,
		    updated_at = now()
		RETURNING id, match_count, created_at, updated_at`

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, query,
		m.ID,
		m.WorkspaceID,
		m.HeaderFingerprint,
		m.DateCol,
		m.AmountCol,
		m.ReferenceCol,
		m.BalanceCol,
	).Scan(&m.ID, &m.MatchCount, &m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save header mapping: %w", err)
	}
	return nil
}

// FindHeaderMapping retrieves a remembered mapping by header fingerprint.
func (r *PostgresImportRepository) FindHeaderMapping(ctx context.Context, workspaceID uuid.UUID, fingerprint string) (*HeaderMapping, error) {
	query := `
		SELECT id, workspace_id, header_fingerprint, date_col, amount_col, reference_col, balance_col, match_count, created_at, updated_at
		FROM header_mappings
		WHERE workspace_id = $1 AND header_fingerprint = $2`

	m := &HeaderMapping{}
	err := r.db.QueryRow(ctx, query, workspaceID, fingerprint).Scan(
		&m.ID,
		&m.WorkspaceID,
		&m.HeaderFingerprint,
		&m.DateCol,
		&m.AmountCol,
		&m.ReferenceCol,
		&m.BalanceCol,
		&m.MatchCount,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find header mapping: %w", err)
	}
	return m, nil
}

// ListTransactions retrieves committed transactions for a workspace, newest
// first. Search matches the reference case-insensitively.
func (r *PostgresImportRepository) ListTransactions(ctx context.Context, workspaceID uuid.UUID, filter TransactionFilter) ([]*Transaction, error) {
	query := `
		SELECT id, workspace_id, batch_id, accounting_date, amount_minor, currency_code, reference, balance_minor, fingerprint, created_at
		FROM transactions
		WHERE workspace_id = $1`

	args := []any{workspaceID}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(` AND accounting_date >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(` AND accounting_date <= $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND reference ILIKE $%d`, len(args))
	}
	query += ` ORDER BY accounting_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		t := &Transaction{}
		err := rows.Scan(
			&t.ID,
			&t.WorkspaceID,
			&t.BatchID,
			&t.AccountingDate,
			&t.AmountMinor,
			&t.CurrencyCode,
			&t.Reference,
			&t.BalanceMinor,
			&t.Fingerprint,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}
