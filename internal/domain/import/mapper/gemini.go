package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiSuggester asks a Gemini model to map the file's columns. The model
// is an unreliable oracle: any transport error, empty response or
// unparseable answer degrades to Unavailable and the manual flow takes over.
type GeminiSuggester struct {
	model  *genai.GenerativeModel
	client *genai.Client
	logger *slog.Logger
}

// NewGeminiSuggester dials the Gemini API. The returned suggester holds one
// client for the life of the process; Close releases it.
func NewGeminiSuggester(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiSuggester, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini suggester: api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini suggester: %w", err)
	}
	return &GeminiSuggester{
		client: client,
		model:  client.GenerativeModel(model),
		logger: logger,
	}, nil
}

// Close releases the underlying API client.
func (g *GeminiSuggester) Close() error {
	return g.client.Close()
}

// Suggest sends headers plus up to SampleLimit sample rows and parses the
// model's per-field column guesses. One in-flight request, no retries;
// failures are logged and surfaced as Unavailable.
func (g *GeminiSuggester) Suggest(ctx context.Context, headers []string, sampleRows [][]string) Suggestion {
	prompt := buildPrompt(headers, sampleRows)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		g.logger.Warn("field suggestion call failed, falling back to manual mapping", "error", err)
		return Unavailable()
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		g.logger.Warn("field suggestion returned no candidates")
		return Unavailable()
	}

	text := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	s := parseSuggestionResponse(text, len(headers))
	if !s.Available {
		g.logger.Warn("field suggestion response was unparseable", "response", text)
	}
	return s
}

func buildPrompt(headers []string, sampleRows [][]string) string {
	var b strings.Builder
	b.WriteString("You are mapping columns of a Swedish bank statement export to logical fields.\n")
	b.WriteString("Headers (0-indexed): ")
	for i, h := range headers {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d=%q", i, h)
	}
	b.WriteString("\nSample rows:\n")
	n := len(sampleRows)
	if n > SampleLimit {
		n = SampleLimit
	}
	for _, row := range sampleRows[:n] {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	b.WriteString(`
For each field below, answer with the column index and a confidence between 0 and 1,
one per line, exactly in the format "field: index confidence". Use -1 for a field
that has no matching column.

accounting_date: the booking/transaction date
amount: the signed transaction amount
reference: free-text reference or counterparty
booked_balance: the account balance after the transaction
`)
	return b.String()
}

// parseSuggestionResponse reads lines of "field: index confidence". The
// model wraps answers in prose often enough that anything unmatched is
// simply skipped.
func parseSuggestionResponse(text string, columns int) Suggestion {
	s := Suggestion{Fields: map[Field]FieldSuggestion{}}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "`*"))
		name, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		field := Field(strings.ToLower(strings.TrimSpace(name)))
		switch field {
		case FieldAccountingDate, FieldAmount, FieldReference, FieldBookedBalance:
		default:
			continue
		}

		parts := strings.Fields(rest)
		if len(parts) == 0 {
			continue
		}
		col, err := strconv.Atoi(strings.TrimSuffix(parts[0], ","))
		if err != nil || col < 0 || col >= columns {
			continue
		}
		conf := 0.5
		if len(parts) > 1 {
			if c, err := strconv.ParseFloat(strings.Trim(parts[1], "()"), 64); err == nil && c >= 0 && c <= 1 {
				conf = c
			}
		}
		s.Fields[field] = FieldSuggestion{Column: col, Confidence: conf}
	}

	s.Available = len(s.Fields) > 0
	return s
}
