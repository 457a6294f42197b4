// README: Common money value object used across modules.
package types

// Money is an amount in the smallest currency unit (paise for INR).
type Money struct {
	Amount   int64
	Currency string
}

func Rupees(amount int64) Money {
	return Money{Amount: amount, Currency: "INR"}
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}
