// Package money provides currency-safe monetary values using integer minor
// units (öre for SEK) backed by go-money, with shopspring/decimal at the
// conversion boundary so statement amounts never pass through floats.
package money

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// SEK is the default currency for imported statements.
const SEK = "SEK"

// Money wraps go-money for safe arithmetic on stored amounts.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units (öre) and currency code.
func New(minor int64, currencyCode string) *Money {
	return &Money{m: money.New(minor, currencyCode)}
}

// NewFromDecimal converts a decimal amount in major units to Money,
// rounding half away from zero to the currency's fraction.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	return New(MinorFromDecimal(amount, currencyCode), currencyCode)
}

// MinorFromDecimal converts a decimal major-unit amount to minor units.
// "-699.00" SEK becomes -69900 öre.
func MinorFromDecimal(amount decimal.Decimal, currencyCode string) int64 {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(SEK)
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	return amount.Mul(multiplier).Round(0).IntPart()
}

// DecimalFromMinor converts stored minor units back to a decimal major-unit
// amount. -69900 öre becomes "-699".
func DecimalFromMinor(minor int64, currencyCode string) decimal.Decimal {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(SEK)
	}
	return decimal.New(minor, -int32(currency.Fraction))
}

// Amount returns the value in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// Decimal returns the value as a decimal in major units.
func (m *Money) Decimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return DecimalFromMinor(m.m.Amount(), m.m.Currency().Code)
}

// Add returns the sum of two Money values of the same currency.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || other == nil {
		return nil, fmt.Errorf("cannot add nil money")
	}
	sum, err := m.m.Add(other.m)
	if err != nil {
		return nil, fmt.Errorf("add money: %w", err)
	}
	return &Money{m: sum}, nil
}

// IsNegative reports whether the amount is below zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Display formats the amount with its currency symbol.
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}
