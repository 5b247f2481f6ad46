// Package service provides the import orchestration logic.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nordbok/nordbok/internal/domain/import/dedup"
	"github.com/nordbok/nordbok/internal/domain/import/mapper"
	"github.com/nordbok/nordbok/internal/domain/import/normalizer"
	"github.com/nordbok/nordbok/internal/domain/import/parser"
	"github.com/nordbok/nordbok/internal/domain/import/repository"
	"github.com/nordbok/nordbok/internal/domain/import/sniffer"
	"github.com/nordbok/nordbok/internal/domain/import/validator"
	"github.com/nordbok/nordbok/internal/domain/ledger"
	"github.com/nordbok/nordbok/internal/domain/sie"
	"github.com/nordbok/nordbok/pkg/money"
)

// DefaultMaxFileBytes caps uploaded statement files.
const DefaultMaxFileBytes = 10 << 20

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrFileTooLarge      = errors.New("file exceeds the size limit")
	ErrNotDelimited      = errors.New("file is not a delimited statement")
	ErrNotSIE            = errors.New("file is not an SIE export")
	ErrIncompleteMapping = errors.New("mapping needs at least a date and an amount column")
	ErrNothingToCommit   = errors.New("no rows selected for commit")
)

// MappingSource tells the review surface where the seeded mapping came from.
type MappingSource string

const (
	MappingSourceRemembered MappingSource = "remembered"
	MappingSourceKnown      MappingSource = "known_layout"
	MappingSourceAI         MappingSource = "ai"
	MappingSourceHeuristic  MappingSource = "heuristic"
	MappingSourceNone       MappingSource = "none"
)

// Analysis is the result of inspecting an uploaded file. For SIE files only
// Format is set; the caller continues with PreviewSIE.
type Analysis struct {
	Format            sniffer.Format
	Table             *parser.ParsedTable
	Mapping           mapper.FieldMapping
	Suggestion        mapper.Suggestion
	Source            MappingSource
	HeaderFingerprint string
	DecimalSeparator  normalizer.DecimalSeparator
}

// PreviewStats summarizes a validated batch for the review surface.
type PreviewStats struct {
	Total      int
	Valid      int
	Invalid    int
	Duplicates int
	Selected   int
}

// Preview pairs the per-row outcomes with the default selection: valid,
// non-duplicate rows in, everything else out.
type Preview struct {
	Candidates []validator.CandidateTransaction
	Selected   []bool
	Stats      PreviewStats
}

// CommitOptions lets the user override preview defaults at commit time.
type CommitOptions struct {
	// IncludeDuplicates selects the valid rows flagged as in-batch
	// duplicates on top of the preview selection and submits them. The
	// database unique index still rejects rows already stored.
	IncludeDuplicates bool
}

// CommitSummary is the outcome of one commit call.
type CommitSummary struct {
	BatchID  uuid.UUID
	Imported int
	Skipped  int
	Rejected int // selected rows that failed re-validation
}

// ImportService orchestrates file analysis, preview and commit.
type ImportService struct {
	repo         repository.ImportRepository
	ai           mapper.Suggester
	heuristic    mapper.Suggester
	logger       *slog.Logger
	maxFileBytes int64
}

// NewImportService creates a new import service.
func NewImportService(repo repository.ImportRepository, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:         repo,
		heuristic:    mapper.NewHeuristicSuggester(),
		logger:       logger,
		maxFileBytes: DefaultMaxFileBytes,
	}
}

// WithAISuggester adds an AI mapping suggester. The heuristic suggester
// remains the fallback when the AI one is unavailable or fails.
func (s *ImportService) WithAISuggester(sg mapper.Suggester) *ImportService {
	s.ai = sg
	return s
}

// WithMaxFileBytes overrides the upload size cap.
func (s *ImportService) WithMaxFileBytes(n int64) *ImportService {
	s.maxFileBytes = n
	return s
}

func (s *ImportService) checkSize(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}
	if int64(len(data)) > s.maxFileBytes {
		return ErrFileTooLarge
	}
	return nil
}

// Analyze detects the file format, tokenizes it and seeds a column mapping.
// Mapping sources are tried in order: a remembered mapping for this header
// set, a recognized bank layout, the AI suggester, the header heuristics.
// Every source is advisory; the user confirms or edits the result.
func (s *ImportService) Analyze(ctx context.Context, workspaceID uuid.UUID, data []byte) (*Analysis, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}

	format := sniffer.Detect(data)
	if format.Kind == sniffer.KindSIE {
		return &Analysis{Format: format, Source: MappingSourceNone}, nil
	}

	table := parser.Tokenize(format.Text, format.Separator, format.SkipFirstLine)
	if table.Empty() {
		return nil, ErrEmptyFile
	}

	analysis := &Analysis{
		Format:            format,
		Table:             table,
		Source:            MappingSourceNone,
		HeaderFingerprint: sniffer.HeaderFingerprint(table.Headers),
	}

	if stored := s.rememberedMapping(ctx, workspaceID, analysis.HeaderFingerprint); stored != nil {
		analysis.Mapping = *stored
		analysis.Source = MappingSourceRemembered
	} else if layout, ok := parser.RecognizeLayout(format.Text, format.Separator, format.SkipFirstLine); ok {
		analysis.Suggestion = layoutSuggestion(layout)
		analysis.Mapping = mapper.Seed(analysis.Suggestion)
		analysis.Source = MappingSourceKnown
	} else {
		analysis.Suggestion, analysis.Source = s.suggest(ctx, table)
		analysis.Mapping = mapper.Seed(analysis.Suggestion)
	}

	if !analysis.Mapping.InBounds(len(table.Headers)) {
		analysis.Mapping = mapper.FieldMapping{}
		analysis.Source = MappingSourceNone
	}

	analysis.DecimalSeparator = detectDecimalSeparator(table, analysis.Mapping)
	return analysis, nil
}

// rememberedMapping looks up the stored mapping for a header fingerprint.
// Lookup failures are logged and treated as a miss; analysis must not fail
// because the mapping memory is unreachable.
func (s *ImportService) rememberedMapping(ctx context.Context, workspaceID uuid.UUID, fingerprint string) *mapper.FieldMapping {
	stored, err := s.repo.FindHeaderMapping(ctx, workspaceID, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logger.Warn("header mapping lookup failed", "error", err)
		return nil
	}

	var m mapper.FieldMapping
	m.Set(mapper.FieldAccountingDate, stored.DateCol)
	m.Set(mapper.FieldAmount, stored.AmountCol)
	if stored.ReferenceCol != nil {
		m.Set(mapper.FieldReference, *stored.ReferenceCol)
	}
	if stored.BalanceCol != nil {
		m.Set(mapper.FieldBookedBalance, *stored.BalanceCol)
	}
	return &m
}

func (s *ImportService) suggest(ctx context.Context, table *parser.ParsedTable) (mapper.Suggestion, MappingSource) {
	samples := mapper.Samples(table)

	if s.ai != nil {
		if sg := s.ai.Suggest(ctx, table.Headers, samples); sg.Available {
			return sg, MappingSourceAI
		}
		s.logger.Warn("ai mapping suggestion unavailable, falling back to heuristics")
	}
	if sg := s.heuristic.Suggest(ctx, table.Headers, samples); sg.Available {
		return sg, MappingSourceHeuristic
	}
	return mapper.Unavailable(), MappingSourceNone
}

// layoutSuggestion converts a recognized bank layout into suggestion form so
// the review surface can show confidences uniformly.
func layoutSuggestion(l parser.KnownLayout) mapper.Suggestion {
	fields := map[mapper.Field]mapper.FieldSuggestion{
		mapper.FieldAccountingDate: {Column: l.DateCol, Confidence: 0.95},
		mapper.FieldAmount:         {Column: l.AmountCol, Confidence: 0.95},
	}
	if l.ReferenceCol >= 0 {
		fields[mapper.FieldReference] = mapper.FieldSuggestion{Column: l.ReferenceCol, Confidence: 0.9}
	}
	if l.BalanceCol >= 0 {
		fields[mapper.FieldBookedBalance] = mapper.FieldSuggestion{Column: l.BalanceCol, Confidence: 0.9}
	}
	return mapper.Suggestion{Available: true, Fields: fields}
}

// detectDecimalSeparator samples the mapped amount column. Comma wins
// whenever present; Swedish exports default to comma when nothing decides.
func detectDecimalSeparator(table *parser.ParsedTable, m mapper.FieldMapping) normalizer.DecimalSeparator {
	col := m.Column(mapper.FieldAmount)
	if col < 0 {
		return normalizer.DecimalComma
	}
	sawDot := false
	for _, v := range table.Column(col, mapper.SampleLimit) {
		if strings.ContainsRune(v, ',') {
			return normalizer.DecimalComma
		}
		if strings.ContainsRune(v, '.') {
			sawDot = true
		}
	}
	if sawDot {
		return normalizer.DecimalDot
	}
	return normalizer.DecimalComma
}

// Preview validates every row, marks in-batch duplicates and computes the
// default selection.
func (s *ImportService) Preview(table *parser.ParsedTable, m mapper.FieldMapping, sep normalizer.DecimalSeparator) *Preview {
	candidates := validator.ValidateTable(table, m, validator.Config{DecimalSeparator: sep})
	dedup.MarkBatch(candidates)

	p := &Preview{
		Candidates: candidates,
		Selected:   make([]bool, len(candidates)),
	}
	p.Stats.Total = len(candidates)
	for i := range candidates {
		c := &candidates[i]
		if c.Valid() {
			p.Stats.Valid++
		} else {
			p.Stats.Invalid++
		}
		if c.IsDuplicate {
			p.Stats.Duplicates++
		}
		if c.Valid() && !c.IsDuplicate {
			p.Selected[i] = true
			p.Stats.Selected++
		}
	}
	return p
}

// Commit persists the selected rows of a previewed batch. Every selected row
// is re-validated; rows that no longer pass are counted as rejected, never
// silently committed. Rows already stored in the workspace are skipped by
// the database, not here.
func (s *ImportService) Commit(ctx context.Context, workspaceID uuid.UUID, filename string, preview *Preview, opts CommitOptions) (*CommitSummary, error) {
	if preview == nil || len(preview.Candidates) == 0 {
		return nil, ErrNothingToCommit
	}

	summary := &CommitSummary{}
	txs := make([]*repository.Transaction, 0, len(preview.Candidates))
	for i := range preview.Candidates {
		c := &preview.Candidates[i]
		selected := i < len(preview.Selected) && preview.Selected[i]
		// The default selection leaves duplicates out, so the override has
		// to pull them back in.
		if !selected && opts.IncludeDuplicates && c.IsDuplicate && c.Valid() {
			selected = true
		}
		if !selected {
			continue
		}
		if c.IsDuplicate && !opts.IncludeDuplicates {
			summary.Skipped++
			continue
		}
		tx, err := buildTransaction(c)
		if err != nil {
			summary.Rejected++
			continue
		}
		txs = append(txs, tx)
	}
	if len(txs) == 0 {
		return nil, ErrNothingToCommit
	}

	batch := &repository.ImportBatch{
		WorkspaceID:  workspaceID,
		Filename:     filename,
		SourceFormat: repository.SourceDelimited,
		RowCount:     len(preview.Candidates),
	}
	result, err := s.repo.CommitTransactions(ctx, batch, txs)
	if err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	summary.BatchID = batch.ID
	summary.Imported = result.Imported
	summary.Skipped += result.Skipped
	s.logger.Info("batch committed",
		"batch_id", batch.ID,
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"rejected", summary.Rejected)
	return summary, nil
}

// buildTransaction re-validates a candidate and converts it to storage form.
func buildTransaction(c *validator.CandidateTransaction) (*repository.Transaction, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("row %d is not valid", c.RowIndex)
	}
	date, err := time.Parse("2006-01-02", c.AccountingDate)
	if err != nil {
		return nil, fmt.Errorf("row %d: bad date %q", c.RowIndex, c.AccountingDate)
	}
	fingerprint, ok := dedup.Fingerprint(c)
	if !ok {
		return nil, fmt.Errorf("row %d has no fingerprint", c.RowIndex)
	}

	tx := &repository.Transaction{
		AccountingDate: date,
		AmountMinor:    money.MinorFromDecimal(*c.Amount, money.SEK),
		CurrencyCode:   money.SEK,
		Reference:      c.Reference,
		Fingerprint:    fingerprint,
	}
	if c.BookedBalance != nil {
		minor := money.MinorFromDecimal(*c.BookedBalance, money.SEK)
		tx.BalanceMinor = &minor
	}
	return tx, nil
}

// ConfirmMapping stores a user-confirmed column mapping under the header
// fingerprint so the next file with the same headers maps automatically.
func (s *ImportService) ConfirmMapping(ctx context.Context, workspaceID uuid.UUID, fingerprint string, m mapper.FieldMapping) error {
	dateCol := m.Column(mapper.FieldAccountingDate)
	amountCol := m.Column(mapper.FieldAmount)
	if fingerprint == "" || dateCol < 0 || amountCol < 0 {
		return ErrIncompleteMapping
	}

	stored := &repository.HeaderMapping{
		WorkspaceID:       workspaceID,
		HeaderFingerprint: fingerprint,
		DateCol:           dateCol,
		AmountCol:         amountCol,
	}
	if col := m.Column(mapper.FieldReference); col >= 0 {
		stored.ReferenceCol = &col
	}
	if col := m.Column(mapper.FieldBookedBalance); col >= 0 {
		stored.BalanceCol = &col
	}
	if err := s.repo.SaveHeaderMapping(ctx, stored); err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}
	return nil
}

// PreviewSIE parses an SIE file and builds the verification review surface.
func (s *ImportService) PreviewSIE(data []byte) (*sie.Preview, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}
	if sniffer.Detect(data).Kind != sniffer.KindSIE {
		return nil, ErrNotSIE
	}
	doc := sie.Parse(data)
	return sie.BuildPreview(doc), nil
}

// CommitSIE persists the selected verifications. The balance invariant is
// re-checked here for every selected candidate; a client that selected an
// unbalanced entry gets it rejected, not stored. The repository repeats the
// check in minor units.
func (s *ImportService) CommitSIE(ctx context.Context, workspaceID uuid.UUID, filename string, preview *sie.Preview, selected []bool) (*CommitSummary, error) {
	if preview == nil || len(preview.Candidates) == 0 {
		return nil, ErrNothingToCommit
	}

	summary := &CommitSummary{}
	vers := make([]*repository.Verification, 0, len(preview.Candidates))
	for i := range preview.Candidates {
		c := &preview.Candidates[i]
		take := c.Selected
		if selected != nil {
			take = i < len(selected) && selected[i]
		}
		if !take {
			continue
		}
		if len(c.Lines) == 0 || !ledger.Balanced(c.Lines) {
			summary.Rejected++
			continue
		}
		v, err := buildVerification(c)
		if err != nil {
			summary.Rejected++
			continue
		}
		vers = append(vers, v)
	}
	if len(vers) == 0 {
		return nil, ErrNothingToCommit
	}

	batch := &repository.ImportBatch{
		WorkspaceID:  workspaceID,
		Filename:     filename,
		SourceFormat: repository.SourceSIE,
		RowCount:     len(preview.Candidates),
	}
	result, err := s.repo.CommitVerifications(ctx, batch, vers)
	if err != nil {
		return nil, fmt.Errorf("failed to commit verifications: %w", err)
	}

	summary.BatchID = batch.ID
	summary.Imported = result.Imported
	summary.Skipped = result.Skipped
	s.logger.Info("sie batch committed",
		"batch_id", batch.ID,
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"rejected", summary.Rejected)
	return summary, nil
}

func buildVerification(c *sie.VerificationCandidate) (*repository.Verification, error) {
	date, err := time.Parse("2006-01-02", c.Date)
	if err != nil {
		return nil, fmt.Errorf("verification %s: bad date %q", c.SourceID(), c.Date)
	}

	v := &repository.Verification{
		SourceID:    c.SourceID(),
		Date:        date,
		Description: c.Description,
	}
	for _, line := range c.Lines {
		v.Lines = append(v.Lines, repository.VerificationLine{
			AccountNumber: line.AccountNumber,
			AccountName:   line.AccountName,
			DebitMinor:    money.MinorFromDecimal(line.Debit, money.SEK),
			CreditMinor:   money.MinorFromDecimal(line.Credit, money.SEK),
			Description:   line.Description,
		})
	}
	return v, nil
}

// ListTransactions exposes the committed transaction history.
func (s *ImportService) ListTransactions(ctx context.Context, workspaceID uuid.UUID, filter repository.TransactionFilter) ([]*repository.Transaction, error) {
	txs, err := s.repo.ListTransactions(ctx, workspaceID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
