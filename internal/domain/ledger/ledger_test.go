package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBalanced(t *testing.T) {
	t.Run("equal debit and credit balance", func(t *testing.T) {
		lines := []Line{
			{AccountNumber: "1930", Debit: d("1000")},
			{AccountNumber: "3001", Credit: d("800")},
			{AccountNumber: "2611", Credit: d("200")},
		}
		assert.True(t, Balanced(lines))
	})

	t.Run("one öre difference is unbalanced", func(t *testing.T) {
		lines := []Line{
			{Debit: d("1000")},
			{Credit: d("999.99")},
		}
		assert.False(t, Balanced(lines))
	})

	t.Run("sub-öre rounding noise is tolerated", func(t *testing.T) {
		lines := []Line{
			{Debit: d("1000.005")},
			{Credit: d("1000")},
		}
		assert.True(t, Balanced(lines))
	})

	t.Run("whole-unit imbalance is reported", func(t *testing.T) {
		lines := []Line{
			{Debit: d("1000")},
			{Credit: d("999")},
		}
		assert.False(t, Balanced(lines))
		assert.True(t, Imbalance(lines).Equal(d("1")))
	})

	t.Run("empty line set balances trivially", func(t *testing.T) {
		assert.True(t, Balanced(nil))
	})
}

func TestEntry_Validate(t *testing.T) {
	t.Run("balanced entry passes", func(t *testing.T) {
		e := &Entry{
			Date:        "2024-01-15",
			Description: "Hyra januari",
			Lines: []Line{
				{AccountNumber: "5010", Debit: d("12000")},
				{AccountNumber: "1930", Credit: d("12000")},
			},
		}
		assert.NoError(t, e.Validate())
	})

	t.Run("unbalanced entry is rejected", func(t *testing.T) {
		e := &Entry{Lines: []Line{{Debit: d("100")}}}
		assert.ErrorIs(t, e.Validate(), ErrNotBalanced)
	})

	t.Run("empty entry is rejected", func(t *testing.T) {
		e := &Entry{}
		assert.ErrorIs(t, e.Validate(), ErrNoLines)
	})
}
