package bson

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Decimal128 is an IEEE 754-2008 128-bit decimal in BID encoding, stored as
// two 64-bit halves. It is never converted through float64, so values such as
// 10.09 keep their exact digits.
type Decimal128 struct {
	High uint64
	Low  uint64
}

// ParseDecimal128 parses a decimal string such as "10.09", "-1.5E+3",
// "Infinity" or "NaN".
func ParseDecimal128(s string) (Decimal128, error) {
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		return Decimal128{}, fmt.Errorf("bson: invalid decimal128 %q: %w", s, err)
	}
	high, low := d.GetBytes()
	return Decimal128{High: high, Low: low}, nil
}

// String returns the exact decimal representation.
func (d Decimal128) String() string {
	return primitive.NewDecimal128(d.High, d.Low).String()
}
