package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresImportRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresImportRepository(mock)
}

func TestCommitTransactions(t *testing.T) {
	mock, repo := newMockRepo(t)

	workspaceID := uuid.New()
	now := time.Now()
	batch := &ImportBatch{ID: uuid.New(), WorkspaceID: workspaceID, Filename: "statement.csv", SourceFormat: SourceDelimited, RowCount: 3}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	txs := []*Transaction{
		{AccountingDate: date, AmountMinor: -69900, CurrencyCode: "SEK", Reference: "Spotify", Fingerprint: "2024-01-15|-699.00|spotify"},
		{AccountingDate: date, AmountMinor: 125000, CurrencyCode: "SEK", Reference: "Hyra", Fingerprint: "2024-01-15|1250.00|hyra"},
		{AccountingDate: date, AmountMinor: -69900, CurrencyCode: "SEK", Reference: "spotify", Fingerprint: "2024-01-15|-699.00|spotify"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO import_batches`).
		WithArgs(batch.ID, workspaceID, "statement.csv", SourceDelimited, 3).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), workspaceID, batch.ID, date, int64(-69900), "SEK", "Spotify", pgxmock.AnyArg(), txs[0].Fingerprint).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), workspaceID, batch.ID, date, int64(125000), "SEK", "Hyra", pgxmock.AnyArg(), txs[1].Fingerprint).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Third row hits the (workspace_id, fingerprint) unique index.
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), workspaceID, batch.ID, date, int64(-69900), "SEK", "spotify", pgxmock.AnyArg(), txs[2].Fingerprint).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(`UPDATE import_batches`).
		WithArgs(batch.ID, 2, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO import_audit`).
		WithArgs(pgxmock.AnyArg(), workspaceID, batch.ID, "commit", 2, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := repo.CommitTransactions(context.Background(), batch, txs)

	require.NoError(t, err)
	assert.Equal(t, CommitResult{Imported: 2, Skipped: 1}, result)
	assert.Equal(t, 2, batch.ImportedCount)
	assert.Equal(t, 1, batch.SkippedCount)
	assert.Equal(t, now, batch.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The batch row shares the transaction with the row inserts, so a failed
// commit rolls it back too and no empty batch survives.
func TestCommitTransactions_InsertFailureRollsBackBatchRow(t *testing.T) {
	mock, repo := newMockRepo(t)

	batch := &ImportBatch{ID: uuid.New(), WorkspaceID: uuid.New(), Filename: "statement.csv", SourceFormat: SourceDelimited, RowCount: 1}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO import_batches`).
		WithArgs(batch.ID, batch.WorkspaceID, "statement.csv", SourceDelimited, 1).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.CommitTransactions(context.Background(), batch, []*Transaction{
		{AccountingDate: date, AmountMinor: 100, CurrencyCode: "SEK", Fingerprint: "x"},
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitVerifications(t *testing.T) {
	mock, repo := newMockRepo(t)

	workspaceID := uuid.New()
	batch := &ImportBatch{ID: uuid.New(), WorkspaceID: workspaceID, Filename: "export.se", SourceFormat: SourceSIE, RowCount: 2}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	vers := []*Verification{
		{
			SourceID:    "A-1",
			Date:        date,
			Description: "Faktura 1001",
			Lines: []VerificationLine{
				{AccountNumber: "1930", AccountName: "Företagskonto", DebitMinor: 125000},
				{AccountNumber: "3001", AccountName: "Försäljning", CreditMinor: 125000},
			},
		},
		{
			SourceID: "A-2",
			Date:     date,
			Lines: []VerificationLine{
				{AccountNumber: "1930", DebitMinor: 100000},
				{AccountNumber: "3001", CreditMinor: 99900},
			},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO import_batches`).
		WithArgs(batch.ID, workspaceID, "export.se", SourceSIE, 2).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO verifications`).
		WithArgs(pgxmock.AnyArg(), workspaceID, batch.ID, "A-1", date, "Faktura 1001").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO verification_lines`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "1930", "Företagskonto", int64(125000), int64(0), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO verification_lines`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "3001", "Försäljning", int64(0), int64(125000), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// A-2 is unbalanced and never reaches the database.
	mock.ExpectExec(`UPDATE import_batches`).
		WithArgs(batch.ID, 1, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO import_audit`).
		WithArgs(pgxmock.AnyArg(), workspaceID, batch.ID, "commit", 1, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := repo.CommitVerifications(context.Background(), batch, vers)

	require.NoError(t, err)
	assert.Equal(t, CommitResult{Imported: 1, Skipped: 1}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitVerifications_AlreadyCommittedIsSkipped(t *testing.T) {
	mock, repo := newMockRepo(t)

	workspaceID := uuid.New()
	batch := &ImportBatch{ID: uuid.New(), WorkspaceID: workspaceID, Filename: "export.se", SourceFormat: SourceSIE, RowCount: 1}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO import_batches`).
		WithArgs(batch.ID, workspaceID, "export.se", SourceSIE, 1).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO verifications`).
		WithArgs(pgxmock.AnyArg(), workspaceID, batch.ID, "A-1", date, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(`UPDATE import_batches`).
		WithArgs(batch.ID, 0, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO import_audit`).
		WithArgs(pgxmock.AnyArg(), workspaceID, batch.ID, "commit", 0, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := repo.CommitVerifications(context.Background(), batch, []*Verification{
		{
			SourceID: "A-1",
			Date:     date,
			Lines: []VerificationLine{
				{AccountNumber: "1930", DebitMinor: 100},
				{AccountNumber: "3001", CreditMinor: 100},
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, CommitResult{Imported: 0, Skipped: 1}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveHeaderMapping(t *testing.T) {
	mock, repo := newMockRepo(t)

	workspaceID := uuid.New()
	mappingID := uuid.New()
	now := time.Now()
	refCol := 2

	mock.ExpectQuery(`INSERT INTO header_mappings`).
		WithArgs(pgxmock.AnyArg(), workspaceID, "abc123", 0, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "match_count", "created_at", "updated_at"}).
			AddRow(mappingID, 4, now, now))

	m := &HeaderMapping{
		WorkspaceID:       workspaceID,
		HeaderFingerprint: "abc123",
		DateCol:           0,
		AmountCol:         1,
		ReferenceCol:      &refCol,
	}
	err := repo.SaveHeaderMapping(context.Background(), m)

	require.NoError(t, err)
	assert.Equal(t, mappingID, m.ID)
	assert.Equal(t, 4, m.MatchCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindHeaderMapping(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		workspaceID := uuid.New()
		now := time.Now()
		refCol := 2

		mock.ExpectQuery(`SELECT id, workspace_id, header_fingerprint`).
			WithArgs(workspaceID, "abc123").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "workspace_id", "header_fingerprint", "date_col", "amount_col",
				"reference_col", "balance_col", "match_count", "created_at", "updated_at",
			}).AddRow(uuid.New(), workspaceID, "abc123", 0, 1, &refCol, nil, 7, now, now))

		m, err := repo.FindHeaderMapping(context.Background(), workspaceID, "abc123")

		require.NoError(t, err)
		assert.Equal(t, 0, m.DateCol)
		assert.Equal(t, 1, m.AmountCol)
		require.NotNil(t, m.ReferenceCol)
		assert.Equal(t, 2, *m.ReferenceCol)
		assert.Nil(t, m.BalanceCol)
		assert.Equal(t, 7, m.MatchCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown fingerprint", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		workspaceID := uuid.New()
		mock.ExpectQuery(`SELECT id, workspace_id, header_fingerprint`).
			WithArgs(workspaceID, "nope").
			WillReturnError(pgx.ErrNoRows)

		m, err := repo.FindHeaderMapping(context.Background(), workspaceID, "nope")

		assert.Nil(t, m)
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListTransactions(t *testing.T) {
	mock, repo := newMockRepo(t)

	workspaceID := uuid.New()
	now := time.Now()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, workspace_id, batch_id, accounting_date`).
		WithArgs(workspaceID, "%spotify%", 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "workspace_id", "batch_id", "accounting_date", "amount_minor",
			"currency_code", "reference", "balance_minor", "fingerprint", "created_at",
		}).AddRow(
			uuid.New(), workspaceID, uuid.New(), date, int64(-69900),
			"SEK", "Spotify AB", nil, "2024-01-15|-699.00|spotify ab", now,
		))

	txs, err := repo.ListTransactions(context.Background(), workspaceID, TransactionFilter{
		Search: "spotify",
		Limit:  50,
	})

	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(-69900), txs[0].AmountMinor)
	assert.Equal(t, "Spotify AB", txs[0].Reference)
	assert.Nil(t, txs[0].BalanceMinor)
	assert.NoError(t, mock.ExpectationsWereMet())
}
