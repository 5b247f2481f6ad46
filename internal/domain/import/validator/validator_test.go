package validator

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbok/nordbok/internal/domain/import/mapper"
	"github.com/nordbok/nordbok/internal/domain/import/normalizer"
	"github.com/nordbok/nordbok/internal/domain/import/parser"
)

func commaConfig() Config {
	return Config{DecimalSeparator: normalizer.DecimalComma}
}

func fullMapping() mapper.FieldMapping {
	var m mapper.FieldMapping
	m.Set(mapper.FieldAccountingDate, 0)
	m.Set(mapper.FieldAmount, 1)
	m.Set(mapper.FieldReference, 2)
	return m
}

func TestValidateRow(t *testing.T) {
	t.Run("well-formed row", func(t *testing.T) {
		row := []string{"2024-01-15", "-699,00", "Spotify"}

		c := ValidateRow(0, row, fullMapping(), commaConfig())

		assert.Empty(t, c.Errors)
		assert.Equal(t, "2024-01-15", c.AccountingDate)
		require.NotNil(t, c.Amount)
		assert.True(t, c.Amount.Equal(decimal.RequireFromString("-699")))
		assert.Equal(t, "Spotify", c.Reference)
		assert.True(t, c.Valid())
	})

	t.Run("missing is distinguished from malformed", func(t *testing.T) {
		missing := ValidateRow(0, []string{"", "", "x"}, fullMapping(), commaConfig())
		assert.Contains(t, missing.Errors, "accounting date: missing")
		assert.Contains(t, missing.Errors, "amount: missing")

		malformed := ValidateRow(0, []string{"not-a-date", "abc", "x"}, fullMapping(), commaConfig())
		assert.Contains(t, malformed.Errors, `accounting date: malformed value "not-a-date"`)
		assert.Contains(t, malformed.Errors, `amount: malformed value "abc"`)
		assert.False(t, malformed.Valid())
	})

	t.Run("unmapped required columns are reported", func(t *testing.T) {
		c := ValidateRow(0, []string{"2024-01-15"}, mapper.FieldMapping{}, commaConfig())

		assert.Contains(t, c.Errors, "accounting date: no column mapped")
		assert.Contains(t, c.Errors, "amount: no column mapped")
	})

	t.Run("short rows are tolerated", func(t *testing.T) {
		c := ValidateRow(3, []string{"2024-01-15"}, fullMapping(), commaConfig())

		assert.Equal(t, "2024-01-15", c.AccountingDate)
		assert.Contains(t, c.Errors, "amount: missing")
		assert.Equal(t, 3, c.RowIndex)
	})

	t.Run("reference and balance never block acceptance", func(t *testing.T) {
		var m mapper.FieldMapping
		m.Set(mapper.FieldAccountingDate, 0)
		m.Set(mapper.FieldAmount, 1)
		m.Set(mapper.FieldReference, 2)
		m.Set(mapper.FieldBookedBalance, 3)

		c := ValidateRow(0, []string{"2024-01-15", "100,00", "", "not-a-number"}, m, commaConfig())

		assert.Empty(t, c.Errors)
		assert.True(t, c.Valid())
		assert.Nil(t, c.BookedBalance)
	})

	t.Run("booked balance is parsed when present", func(t *testing.T) {
		var m mapper.FieldMapping
		m.Set(mapper.FieldAccountingDate, 0)
		m.Set(mapper.FieldAmount, 1)
		m.Set(mapper.FieldBookedBalance, 2)

		c := ValidateRow(0, []string{"2024-01-15", "100,00", "12 400,50"}, m, commaConfig())

		require.NotNil(t, c.BookedBalance)
		assert.True(t, c.BookedBalance.Equal(decimal.RequireFromString("12400.5")))
	})

	t.Run("never panics on arbitrary input", func(t *testing.T) {
		faker := gofakeit.New(42)
		m := fullMapping()
		for i := 0; i < 200; i++ {
			row := []string{faker.LetterN(12), faker.Sentence(3), string(rune(faker.IntRange(0, 0x10FFFF)))}
			assert.NotPanics(t, func() {
				c := ValidateRow(i, row, m, commaConfig())
				assert.Equal(t, i, c.RowIndex)
			})
		}
	})
}

func TestValidateTable(t *testing.T) {
	table := &parser.ParsedTable{
		Rows: [][]string{
			{"2024-01-15", "-699,00", "Spotify"},
			{"garbage", "-699,00", "Spotify"},
			{"2024-01-16"},
		},
	}

	candidates := ValidateTable(table, fullMapping(), commaConfig())

	require.Len(t, candidates, 3)
	assert.True(t, candidates[0].Valid())
	assert.False(t, candidates[1].Valid())
	assert.False(t, candidates[2].Valid())
}
