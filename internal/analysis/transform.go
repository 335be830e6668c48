// Package analysis provides the price transforms and the multi-horizon report
// built on top of them.
package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "stock-tracker/internal/errors"
)

var hundred = decimal.NewFromInt(100)

// PercentChange returns (now-then)/then*100.
// The result is absent when either input is absent or then is zero.
func PercentChange(now, then decimal.NullDecimal) decimal.NullDecimal {
	if !now.Valid || !then.Valid || then.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	change := now.Decimal.Sub(then.Decimal).Div(then.Decimal).Mul(hundred)
	return decimal.NewNullDecimal(change)
}

// PercentChangeOf is PercentChange for plain values.
func PercentChangeOf(now, then decimal.Decimal) decimal.NullDecimal {
	return PercentChange(decimal.NewNullDecimal(now), decimal.NewNullDecimal(then))
}

// SMA calculates a trailing simple moving average over closes.
type SMA struct {
	period int
}

// NewSMA creates a new SMA transform.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

// Name returns the overlay label, e.g. "20-Day MA".
func (s *SMA) Name() string {
	return fmt.Sprintf("%d-Day MA", s.period)
}

// Period returns the window length.
func (s *SMA) Period() int {
	return s.period
}

// Calculate returns one value per input index. Indices before period-1 are
// absent. ErrInsufficientSeries is returned (with an all-absent result) when
// there are fewer closes than the window.
func (s *SMA) Calculate(closes []decimal.Decimal) ([]decimal.NullDecimal, error) {
	result := make([]decimal.NullDecimal, len(closes))
	if s.period <= 0 || len(closes) < s.period {
		return result, apperrors.ErrInsufficientSeries
	}

	window := decimal.NewFromInt(int64(s.period))
	sum := decimal.Zero
	for i, c := range closes {
		sum = sum.Add(c)
		if i >= s.period {
			sum = sum.Sub(closes[i-s.period])
		}
		if i >= s.period-1 {
			result[i] = decimal.NewNullDecimal(sum.Div(window))
		}
	}

	return result, nil
}

// MovingAverage is the tolerant form of SMA.Calculate: a short series yields
// a result with no valid points instead of an error.
func MovingAverage(closes []decimal.Decimal, window int) []decimal.NullDecimal {
	result, _ := NewSMA(window).Calculate(closes)
	return result
}

// ValidCount returns the number of present values.
func ValidCount(values []decimal.NullDecimal) int {
	n := 0
	for _, v := range values {
		if v.Valid {
			n++
		}
	}
	return n
}
